// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package pool exposes the pool engine over HTTP.
package pool

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/pospool/pospool/api/utils"
	"github.com/pospool/pospool/logdb"
	enginepool "github.com/pospool/pospool/pool"
	"github.com/pospool/pospool/pool/maturity"
	"github.com/pospool/pospool/pospool"
)

type Pool struct {
	engine *enginepool.Pool
	logDB  *logdb.LogDB
}

// New creates the pool API surface. logDB may be nil, disabling the events
// endpoint.
func New(engine *enginepool.Pool, logDB *logdb.LogDB) *Pool {
	return &Pool{engine: engine, logDB: logDB}
}

type stakeRequest struct {
	Units uint64                `json:"units"`
	Value *math.HexOrDecimal256 `json:"value"`
}

type unitsRequest struct {
	Units uint64 `json:"units"`
}

type claimRequest struct {
	// Amount to claim; absent means claim everything.
	Amount *math.HexOrDecimal256 `json:"amount"`
}

type claimResponse struct {
	Claimed *math.HexOrDecimal256 `json:"claimed"`
}

func (p *Pool) handleGetSummary(w http.ResponseWriter, _ *http.Request) error {
	summary, err := p.engine.PoolSummary()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, summary)
}

func (p *Pool) handleGetAPY(w http.ResponseWriter, _ *http.Request) error {
	yield, err := p.engine.PoolAPY()
	if err != nil {
		return err
	}
	mirrored, err := p.engine.MirroredAPY()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{
		"apy":         (*math.HexOrDecimal256)(yield),
		"mirroredApy": mirrored,
	})
}

func (p *Pool) handleGetAccount(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	summary, err := p.engine.UserSummary(addr)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, summary)
}

func (p *Pool) handleGetEntryQueue(w http.ResponseWriter, req *http.Request) error {
	return p.handleGetQueue(w, req, p.engine.ListEntryQueue)
}

func (p *Pool) handleGetExitQueue(w http.ResponseWriter, req *http.Request) error {
	return p.handleGetQueue(w, req, p.engine.ListExitQueue)
}

func (p *Pool) handleGetQueue(
	w http.ResponseWriter,
	req *http.Request,
	list func(pospool.Address, uint64, uint64) ([]maturity.Item, error),
) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	offset, err := parseUintQuery(req, "offset", 0)
	if err != nil {
		return err
	}
	limit, err := parseUintQuery(req, "limit", 20)
	if err != nil {
		return err
	}
	items, err := list(addr, offset, limit)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, items)
}

func (p *Pool) handlePostStake(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	var body stakeRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.engine.IncreaseStake(addr, body.Units, (*big.Int)(body.Value)); err != nil {
		return convertEngineError(err)
	}
	return utils.WriteJSON(w, utils.M{"ok": true})
}

func (p *Pool) handlePostUnstake(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	var body unitsRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.engine.DecreaseStake(addr, body.Units); err != nil {
		return convertEngineError(err)
	}
	return utils.WriteJSON(w, utils.M{"ok": true})
}

func (p *Pool) handlePostWithdraw(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	var body unitsRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.engine.WithdrawStake(addr, body.Units); err != nil {
		return convertEngineError(err)
	}
	return utils.WriteJSON(w, utils.M{"ok": true})
}

func (p *Pool) handlePostClaim(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	var body claimRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}

	if body.Amount == nil {
		claimed, err := p.engine.ClaimAllInterest(addr)
		if err != nil {
			return convertEngineError(err)
		}
		return utils.WriteJSON(w, claimResponse{Claimed: (*math.HexOrDecimal256)(claimed)})
	}
	amount := (*big.Int)(body.Amount)
	if err := p.engine.ClaimInterest(addr, amount); err != nil {
		return convertEngineError(err)
	}
	return utils.WriteJSON(w, claimResponse{Claimed: body.Amount})
}

func (p *Pool) handleGetEvents(w http.ResponseWriter, req *http.Request) error {
	if p.logDB == nil {
		return utils.HTTPError(errors.New("event log disabled"), http.StatusNotFound)
	}
	filter := &logdb.EventFilter{Op: req.URL.Query().Get("op")}
	if s := req.URL.Query().Get("participant"); s != "" {
		addr, err := pospool.ParseAddress(s)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "participant"))
		}
		filter.Participant = addr
	}
	var err error
	if filter.FromBlock, err = parseUintQuery(req, "from", 0); err != nil {
		return err
	}
	if filter.ToBlock, err = parseUintQuery(req, "to", 0); err != nil {
		return err
	}
	if filter.Limit, err = parseUintQuery(req, "limit", 100); err != nil {
		return err
	}

	events, err := p.logDB.Filter(req.Context(), filter)
	if err != nil {
		return err
	}
	out := make([]utils.M, 0, len(events))
	for _, ev := range events {
		out = append(out, utils.M{
			"op":          ev.Op,
			"participant": ev.Participant,
			"units":       ev.Units,
			"value":       (*math.HexOrDecimal256)(ev.Value),
			"block":       ev.Block,
		})
	}
	return utils.WriteJSON(w, out)
}

func parseAddress(req *http.Request) (pospool.Address, error) {
	addr, err := pospool.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return pospool.Address{}, utils.BadRequest(errors.WithMessage(err, "address"))
	}
	return *addr, nil
}

func parseUintQuery(req *http.Request, name string, def uint64) (uint64, error) {
	s := req.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, utils.BadRequest(errors.WithMessage(err, name))
	}
	return v, nil
}

// convertEngineError maps engine validation failures onto http statuses.
func convertEngineError(err error) error {
	switch errors.Cause(err) {
	case enginepool.ErrUnauthorized:
		return utils.Forbidden(err)
	case enginepool.ErrNotReady,
		enginepool.ErrInvalidAmount,
		enginepool.ErrInsufficientLocked,
		enginepool.ErrInsufficientUnlocked,
		enginepool.ErrInsufficientCollateral,
		enginepool.ErrInsufficientInterest,
		enginepool.ErrAlreadyRegistered,
		enginepool.ErrNothingToClaim:
		return utils.BadRequest(err)
	default:
		return err
	}
}

func (p *Pool) Mount(router *mux.Router, pathPrefix string) {
	sub := router.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /pool").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetSummary))
	sub.Path("/apy").
		Methods(http.MethodGet).
		Name("GET /pool/apy").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetAPY))
	sub.Path("/events").
		Methods(http.MethodGet).
		Name("GET /pool/events").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetEvents))
	sub.Path("/accounts/{address}").
		Methods(http.MethodGet).
		Name("GET /pool/accounts/{address}").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetAccount))
	sub.Path("/accounts/{address}/entry-queue").
		Methods(http.MethodGet).
		Name("GET /pool/accounts/{address}/entry-queue").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetEntryQueue))
	sub.Path("/accounts/{address}/exit-queue").
		Methods(http.MethodGet).
		Name("GET /pool/accounts/{address}/exit-queue").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetExitQueue))
	sub.Path("/accounts/{address}/stake").
		Methods(http.MethodPost).
		Name("POST /pool/accounts/{address}/stake").
		HandlerFunc(utils.WrapHandlerFunc(p.handlePostStake))
	sub.Path("/accounts/{address}/unstake").
		Methods(http.MethodPost).
		Name("POST /pool/accounts/{address}/unstake").
		HandlerFunc(utils.WrapHandlerFunc(p.handlePostUnstake))
	sub.Path("/accounts/{address}/withdraw").
		Methods(http.MethodPost).
		Name("POST /pool/accounts/{address}/withdraw").
		HandlerFunc(utils.WrapHandlerFunc(p.handlePostWithdraw))
	sub.Path("/accounts/{address}/claim").
		Methods(http.MethodPost).
		Name("POST /pool/accounts/{address}/claim").
		HandlerFunc(utils.WrapHandlerFunc(p.handlePostClaim))
}
