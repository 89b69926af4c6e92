// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import (
	"math/big"

	"github.com/pospool/pospool/pospool"
)

// Uint64 is a storage cell holding a single uint64 counter or marker.
type Uint64 struct {
	inner *Uint256
}

func NewUint64(context *Context, pos pospool.Bytes32) *Uint64 {
	return &Uint64{inner: NewUint256(context, pos)}
}

func (u *Uint64) Get() (uint64, error) {
	v, err := u.inner.Get()
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

func (u *Uint64) Set(value uint64) {
	u.inner.Set(new(big.Int).SetUint64(value))
}

func (u *Uint64) Add(delta uint64) error {
	v, err := u.Get()
	if err != nil {
		return err
	}
	u.Set(v + delta)
	return nil
}

func (u *Uint64) Sub(delta uint64) error {
	v, err := u.Get()
	if err != nil {
		return err
	}
	u.Set(v - delta)
	return nil
}
