// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"

	"github.com/pospool/pospool/kv"
	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/stackedmap"
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

// State manages ledger storage slots with save-restore/snapshot-revert manner.
// All mutations are journaled until Commit, so a failed operation can be
// rolled back to its checkpoint without touching the underlying store.
type State struct {
	store kv.GetPutter
	cache *lru.Cache // committed raw slots
	sm    *stackedmap.StackedMap
}

type storageKey struct {
	addr pospool.Address
	key  pospool.Bytes32
}

// persistKey derives the store key of a slot.
func persistKey(k storageKey) []byte {
	h := pospool.Blake2b(k.addr.Bytes(), k.key.Bytes())
	return h.Bytes()
}

// New create state object bound to the given store.
func New(store kv.GetPutter) *State {
	cache, _ := lru.New(4096)
	state := &State{
		store: store,
		cache: cache,
	}
	state.sm = stackedmap.New(state.srcGetter)
	// the base level holds uncommitted writes
	state.sm.Push()
	return state
}

// srcGetter implements stackedmap.MapGetter, reading through to the store.
func (s *State) srcGetter(key any) (any, bool, error) {
	k, ok := key.(storageKey)
	if !ok {
		panic(fmt.Errorf("unexpected key type %+v", key))
	}
	pk := persistKey(k)
	if cached, ok := s.cache.Get(string(pk)); ok {
		return rlp.RawValue(cached.([]byte)), true, nil
	}
	data, err := s.store.Get(pk)
	if err != nil {
		if s.store.IsNotFound(err) {
			return rlp.RawValue(nil), true, nil
		}
		return nil, false, err
	}
	s.cache.Add(string(pk), data)
	return rlp.RawValue(data), true, nil
}

// GetStorage returns storage value for the given address and key.
func (s *State) GetStorage(addr pospool.Address, key pospool.Bytes32) (pospool.Bytes32, error) {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return pospool.Bytes32{}, &Error{err}
	}
	if len(raw) == 0 {
		return pospool.Bytes32{}, nil
	}
	kind, content, _, err := rlp.Split(raw)
	if err != nil {
		return pospool.Bytes32{}, &Error{err}
	}
	if kind == rlp.List {
		// special case for rlp list, it should be customized storage value
		// return hash of raw data
		return pospool.Blake2b(raw), nil
	}
	return pospool.BytesToBytes32(content), nil
}

// SetStorage set storage value for the given address and key.
func (s *State) SetStorage(addr pospool.Address, key, value pospool.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(addr, key, nil)
		return
	}
	v, _ := rlp.EncodeToBytes(bytes.TrimLeft(value[:], "\x00"))
	s.SetRawStorage(addr, key, v)
}

// GetRawStorage returns storage value in rlp raw for given address and key.
func (s *State) GetRawStorage(addr pospool.Address, key pospool.Bytes32) (rlp.RawValue, error) {
	data, _, err := s.sm.Get(storageKey{addr, key})
	if err != nil {
		return nil, &Error{err}
	}
	return data.(rlp.RawValue), nil
}

// SetRawStorage set storage value in rlp raw.
func (s *State) SetRawStorage(addr pospool.Address, key pospool.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{addr, key}, raw)
}

// EncodeStorage set storage value encoded by given enc method.
func (s *State) EncodeStorage(addr pospool.Address, key pospool.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage get and decode storage value.
func (s *State) DecodeStorage(addr pospool.Address, key pospool.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return &Error{err}
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// Commit writes all journaled changes into the store in one batch,
// then resets the journal. Checkpoints taken before Commit are invalidated.
func (s *State) Commit() error {
	batch := s.store.NewBatch()

	// later journal entries overwrite earlier ones inside the batch
	var jerr error
	s.sm.Journal(func(k, v any) bool {
		key := k.(storageKey)
		raw := v.(rlp.RawValue)
		pk := persistKey(key)
		if len(raw) == 0 {
			jerr = batch.Delete(pk)
		} else {
			jerr = batch.Put(pk, raw)
		}
		return jerr == nil
	})
	if jerr != nil {
		return &Error{jerr}
	}
	if err := batch.Write(); err != nil {
		return &Error{err}
	}

	// refresh the committed-slot cache
	s.sm.Journal(func(k, v any) bool {
		key := k.(storageKey)
		raw := v.(rlp.RawValue)
		s.cache.Add(string(persistKey(key)), []byte(raw))
		return true
	})

	s.sm.PopTo(0)
	s.sm.Push()
	return nil
}
