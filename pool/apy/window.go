// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package apy

import (
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"

	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/slot"
)

// Sample is one observed reward interval.
type Sample struct {
	Reward   *big.Int // value units received over the interval
	Workload *big.Int // stake value x blocks carried over the interval
	Start    uint64
	End      uint64
}

type index uint64

func (i index) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(i))
	return b[:]
}

// Window accumulates reward samples over a fixed trailing span of blocks and
// computes a trailing annualized yield. Samples use the same append-only
// arena with forward-only cursors as the maturity queues.
type Window struct {
	span uint64

	head  *slot.Uint64
	tail  *slot.Uint64
	items *slot.Mapping[index, *Sample]
}

// New creates a window of the given span rooted at the base position.
func New(sctx *slot.Context, base pospool.Bytes32, span uint64) *Window {
	return &Window{
		span:  span,
		head:  slot.NewUint64(sctx, pospool.Blake2b(base.Bytes(), []byte("head"))),
		tail:  slot.NewUint64(sctx, pospool.Blake2b(base.Bytes(), []byte("tail"))),
		items: slot.NewMapping[index, *Sample](sctx, pospool.Blake2b(base.Bytes(), []byte("items"))),
	}
}

// RecordSample appends an observed interval and evicts samples that fell out
// of the trailing window. Zero-span intervals are never recorded.
func (w *Window) RecordSample(reward, workload *big.Int, start, end uint64) error {
	if end <= start {
		return nil
	}

	head, err := w.head.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get window head")
	}
	tail, err := w.tail.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get window tail")
	}

	// evict samples older than the window
	var horizon uint64
	if end > w.span {
		horizon = end - w.span
	}
	cursor := head
	for cursor < tail {
		s, err := w.items.Get(index(cursor))
		if err != nil {
			return errors.Wrap(err, "failed to get window sample")
		}
		if s.End >= horizon {
			break
		}
		if err := w.items.Clear(index(cursor)); err != nil {
			return errors.Wrap(err, "failed to clear window sample")
		}
		cursor++
	}
	if cursor != head {
		w.head.Set(cursor)
	}

	sample := &Sample{
		Reward:   new(big.Int).Set(reward),
		Workload: new(big.Int).Set(workload),
		Start:    start,
		End:      end,
	}
	if err := w.items.Set(index(tail), sample); err != nil {
		return errors.Wrap(err, "failed to set window sample")
	}
	w.tail.Set(tail + 1)
	return nil
}

// ComputeAnnualizedYield sums retained samples plus an extra live
// contribution for the interval since the last recorded sample, and returns
// the trailing yield scaled by RatioBase. An empty window or zero workload
// yields zero, never faults.
func (w *Window) ComputeAnnualizedYield(liveReward, liveWorkload *big.Int) (*big.Int, error) {
	head, err := w.head.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get window head")
	}
	tail, err := w.tail.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get window tail")
	}

	totalReward := new(big.Int)
	totalWorkload := new(big.Int)
	for cursor := head; cursor < tail; cursor++ {
		s, err := w.items.Get(index(cursor))
		if err != nil {
			return nil, errors.Wrap(err, "failed to get window sample")
		}
		totalReward.Add(totalReward, s.Reward)
		totalWorkload.Add(totalWorkload, s.Workload)
	}
	if liveReward != nil {
		totalReward.Add(totalReward, liveReward)
	}
	if liveWorkload != nil {
		totalWorkload.Add(totalWorkload, liveWorkload)
	}

	if totalWorkload.Sign() == 0 {
		return new(big.Int), nil
	}

	yield := new(big.Int).Mul(totalReward, new(big.Int).SetUint64(pospool.RatioBase))
	yield.Mul(yield, new(big.Int).SetUint64(pospool.BlocksPerYear))
	return yield.Div(yield, totalWorkload), nil
}

// Samples returns the retained samples, oldest first.
func (w *Window) Samples() ([]Sample, error) {
	head, err := w.head.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get window head")
	}
	tail, err := w.tail.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get window tail")
	}

	samples := make([]Sample, 0, tail-head)
	for cursor := head; cursor < tail; cursor++ {
		s, err := w.items.Get(index(cursor))
		if err != nil {
			return nil, errors.Wrap(err, "failed to get window sample")
		}
		samples = append(samples, *s)
	}
	return samples, nil
}
