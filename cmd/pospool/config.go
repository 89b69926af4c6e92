// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	yaml "gopkg.in/yaml.v3"

	"github.com/pospool/pospool/pool"
	"github.com/pospool/pospool/pospool"
)

// Config is the operator-supplied pool configuration. Zero-valued fields fall
// back to the built-in defaults at registration.
type Config struct {
	Owner        string `yaml:"owner"`
	Relay        string `yaml:"relay"`
	NodeIdentity string `yaml:"nodeIdentity"`
	ShareRatio   uint64 `yaml:"shareRatio"`
	EntryDelay   uint64 `yaml:"entryDelay"`
	ExitDelay    uint64 `yaml:"exitDelay"`
	CountPerVote uint64 `yaml:"countPerVote"`
}

func loadConfig(ctx *cli.Context) (*Config, error) {
	cfg := &Config{NodeIdentity: "pospool-dev-node"}
	path := ctx.String(configFlag.Name)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// PoolOptions converts the config into engine options. A missing owner gets a
// fixed dev address so admin operations stay usable in local runs.
func (c *Config) PoolOptions(recorder pool.Recorder) (pool.Options, error) {
	opts := pool.Options{
		ShareRatio:   c.ShareRatio,
		EntryDelay:   c.EntryDelay,
		ExitDelay:    c.ExitDelay,
		CountPerVote: c.CountPerVote,
		Recorder:     recorder,
	}

	if c.Owner == "" {
		opts.Owner = pospool.BytesToAddress([]byte("pospool-dev-owner"))
	} else {
		owner, err := pospool.ParseAddress(c.Owner)
		if err != nil {
			return pool.Options{}, errors.Wrap(err, "owner")
		}
		opts.Owner = *owner
	}

	if c.Relay != "" {
		relay, err := pospool.ParseAddress(c.Relay)
		if err != nil {
			return pool.Options{}, errors.Wrap(err, "relay")
		}
		opts.Relay = *relay
	}
	return opts, nil
}

// Identity derives the consensus node identity commitment.
func (c *Config) Identity() pospool.Bytes32 {
	return pospool.Blake2b([]byte(c.NodeIdentity))
}
