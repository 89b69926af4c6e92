// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import "github.com/pospool/pospool/pospool"

// Address is a storage cell holding a single address, right-aligned in the
// 32-byte slot.
type Address struct {
	context *Context
	pos     pospool.Bytes32
}

func NewAddress(context *Context, pos pospool.Bytes32) *Address {
	return &Address{context: context, pos: pos}
}

func (a *Address) Get() (pospool.Address, error) {
	storage, err := a.context.state.GetStorage(a.context.address, a.pos)
	if err != nil {
		return pospool.Address{}, err
	}
	return pospool.BytesToAddress(storage.Bytes()), nil
}

func (a *Address) Set(value pospool.Address) {
	a.context.state.SetStorage(a.context.address, a.pos, pospool.BytesToBytes32(value.Bytes()))
}
