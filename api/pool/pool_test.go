// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pospool/pospool/lvldb"
	enginepool "github.com/pospool/pospool/pool"
	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/state"
)

type stubStaking struct {
	block uint64
	held  *big.Int
}

func (s *stubStaking) DepositCollateral(amount *big.Int) error {
	s.held.Add(s.held, amount)
	return nil
}

func (s *stubStaking) WithdrawCollateral(*big.Int) error { return nil }

func (s *stubStaking) RegisterNode(pospool.Bytes32, uint64, []byte) error { return nil }

func (s *stubStaking) IncreaseVotePower(uint64) error { return nil }

func (s *stubStaking) RetireVotePower(uint64) error { return nil }

func (s *stubStaking) LockForVotePower(*big.Int, uint64) error { return nil }

func (s *stubStaking) Transfer(_ pospool.Address, amount *big.Int) error {
	s.held.Sub(s.held, amount)
	return nil
}

func (s *stubStaking) HeldBalance() (*big.Int, error) { return new(big.Int).Set(s.held), nil }

func (s *stubStaking) BlockMarker() (uint64, error) { return s.block, nil }

func newTestServer(t *testing.T) (*httptest.Server, *stubStaking) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	staking := &stubStaking{held: new(big.Int)}
	engine := enginepool.New(pospool.BytesToAddress([]byte("pool")), state.New(db), staking, enginepool.Options{
		Owner:      pospool.BytesToAddress([]byte("owner")),
		EntryDelay: 10,
		ExitDelay:  10,
	})
	require.NoError(t, engine.Register(pospool.BytesToBytes32([]byte("node")), 0, nil))

	router := mux.NewRouter()
	New(engine, nil).Mount(router, "/pool")
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, staking
}

func httpPost(t *testing.T, url string, body any) (int, []byte) {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer res.Body.Close()
	payload, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, payload
}

func httpGet(t *testing.T, url string) (int, []byte) {
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	payload, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, payload
}

func TestPoolEndpoints(t *testing.T) {
	srv, staking := newTestServer(t)
	alice := pospool.BytesToAddress([]byte("alice"))

	code, body := httpGet(t, srv.URL+"/pool")
	require.Equal(t, http.StatusOK, code)
	var summary enginepool.PoolSummary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.True(t, summary.Registered)
	assert.Equal(t, uint64(0), summary.TotalAvailable)

	// stake 2 units
	code, _ = httpPost(t, fmt.Sprintf("%s/pool/accounts/%s/stake", srv.URL, alice), map[string]any{
		"units": 2,
		"value": "0x7d0", // 2000
	})
	require.Equal(t, http.StatusOK, code)

	code, body = httpGet(t, fmt.Sprintf("%s/pool/accounts/%s", srv.URL, alice))
	require.Equal(t, http.StatusOK, code)
	var user enginepool.UserSummary
	require.NoError(t, json.Unmarshal(body, &user))
	assert.Equal(t, uint64(2), user.TotalVotes)

	code, body = httpGet(t, fmt.Sprintf("%s/pool/accounts/%s/entry-queue", srv.URL, alice))
	require.Equal(t, http.StatusOK, code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(body, &items))
	require.Len(t, items, 1)
	assert.Equal(t, float64(10), items[0]["maturity"])

	// validation failures map to 400
	code, _ = httpPost(t, fmt.Sprintf("%s/pool/accounts/%s/stake", srv.URL, alice), map[string]any{
		"units": 1,
		"value": "0x1",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = httpPost(t, fmt.Sprintf("%s/pool/accounts/%s/unstake", srv.URL, alice), map[string]any{
		"units": 5,
	})
	assert.Equal(t, http.StatusBadRequest, code)

	// claim with nothing accrued
	code, _ = httpPost(t, fmt.Sprintf("%s/pool/accounts/%s/claim", srv.URL, alice), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)

	// reward lands, claim all
	staking.block = 10
	staking.held.Add(staking.held, big.NewInt(2000))
	code, body = httpPost(t, fmt.Sprintf("%s/pool/accounts/%s/claim", srv.URL, alice), map[string]any{})
	require.Equal(t, http.StatusOK, code)
	var claim map[string]string
	require.NoError(t, json.Unmarshal(body, &claim))
	assert.Equal(t, "0x708", claim["claimed"]) // 1800 = 90% of 2000

	// bad address
	code, _ = httpGet(t, srv.URL+"/pool/accounts/not-an-address")
	assert.Equal(t, http.StatusBadRequest, code)

	// events endpoint disabled without a log db
	code, _ = httpGet(t, srv.URL+"/pool/events")
	assert.Equal(t, http.StatusNotFound, code)
}
