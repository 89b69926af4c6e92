// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import (
	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/state"
)

// Context binds storage cells to one pool instance.
type Context struct {
	address pospool.Address
	state   *state.State
}

func NewContext(address pospool.Address, state *state.State) *Context {
	return &Context{
		address: address,
		state:   state,
	}
}

func (c *Context) Address() pospool.Address {
	return c.address
}

func (c *Context) State() *state.State {
	return c.state
}
