// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package maturity

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/slot"
)

// Item is one queued parcel of vote power.
type Item struct {
	Units    uint64 `json:"units"`
	Maturity uint64 `json:"maturity"` // block marker at/after which the parcel is matured
}

type index uint64

func (i index) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(i))
	return b[:]
}

// Queue is a delayed-maturity FIFO of stake parcels.
//
// Storage is an append-only arena indexed by forward-only head/tail cursors;
// collected slots are cleared but indices never move backwards, so paginated
// listings stay stable. Maturity markers must be non-decreasing in enqueue
// order, which holds by construction since markers are always computed as
// "current block + configured delay".
type Queue struct {
	head  *slot.Uint64
	tail  *slot.Uint64
	items *slot.Mapping[index, *Item]
}

// New creates a queue rooted at the given base position.
func New(sctx *slot.Context, base pospool.Bytes32) *Queue {
	return &Queue{
		head:  slot.NewUint64(sctx, pospool.Blake2b(base.Bytes(), []byte("head"))),
		tail:  slot.NewUint64(sctx, pospool.Blake2b(base.Bytes(), []byte("tail"))),
		items: slot.NewMapping[index, *Item](sctx, pospool.Blake2b(base.Bytes(), []byte("items"))),
	}
}

func (q *Queue) cursors() (head uint64, tail uint64, err error) {
	if head, err = q.head.Get(); err != nil {
		return 0, 0, errors.Wrap(err, "failed to get queue head")
	}
	if tail, err = q.tail.Get(); err != nil {
		return 0, 0, errors.Wrap(err, "failed to get queue tail")
	}
	return head, tail, nil
}

// Len returns the number of un-collected items.
func (q *Queue) Len() (uint64, error) {
	head, tail, err := q.cursors()
	if err != nil {
		return 0, err
	}
	return tail - head, nil
}

// Enqueue appends a parcel at the tail.
// Markers must be non-decreasing across calls.
func (q *Queue) Enqueue(units uint64, maturity uint64) error {
	head, tail, err := q.cursors()
	if err != nil {
		return err
	}
	if tail > head {
		last, err := q.items.Get(index(tail - 1))
		if err != nil {
			return errors.Wrap(err, "failed to get queue tail item")
		}
		if last.Maturity > maturity {
			return errors.New("maturity queue out of order")
		}
	}
	if err := q.items.Set(index(tail), &Item{Units: units, Maturity: maturity}); err != nil {
		return errors.Wrap(err, "failed to set queue item")
	}
	q.tail.Set(tail + 1)
	return nil
}

// CollectMatured removes all head parcels matured at the given marker and
// returns their summed units. O(1) when nothing has matured.
func (q *Queue) CollectMatured(now uint64) (uint64, error) {
	head, tail, err := q.cursors()
	if err != nil {
		return 0, err
	}

	var sum uint64
	cursor := head
	for cursor < tail {
		item, err := q.items.Get(index(cursor))
		if err != nil {
			return 0, errors.Wrap(err, "failed to get queue item")
		}
		if item.Maturity > now {
			break
		}
		sum += item.Units
		if err := q.items.Clear(index(cursor)); err != nil {
			return 0, errors.Wrap(err, "failed to clear queue item")
		}
		cursor++
	}
	if cursor != head {
		q.head.Set(cursor)
	}
	return sum, nil
}

// PeekSumMatured returns what CollectMatured would return, without mutating.
func (q *Queue) PeekSumMatured(now uint64) (uint64, error) {
	head, tail, err := q.cursors()
	if err != nil {
		return 0, err
	}

	var sum uint64
	for cursor := head; cursor < tail; cursor++ {
		item, err := q.items.Get(index(cursor))
		if err != nil {
			return 0, errors.Wrap(err, "failed to get queue item")
		}
		if item.Maturity > now {
			break
		}
		sum += item.Units
	}
	return sum, nil
}

// ListItems returns a read-only page of un-collected parcels.
// Offsets beyond the queue length yield an empty page; the limit is clamped
// to the remaining length.
func (q *Queue) ListItems(offset, limit uint64) ([]Item, error) {
	head, tail, err := q.cursors()
	if err != nil {
		return nil, err
	}

	length := tail - head
	if offset >= length {
		return []Item{}, nil
	}
	if limit > length-offset {
		limit = length - offset
	}

	page := make([]Item, 0, limit)
	for cursor := head + offset; cursor < head+offset+limit; cursor++ {
		item, err := q.items.Get(index(cursor))
		if err != nil {
			return nil, errors.Wrap(err, "failed to get queue item")
		}
		page = append(page, *item)
	}
	return page, nil
}
