// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/pospool/pospool/api"
	"github.com/pospool/pospool/cmd/pospool/solo"
	"github.com/pospool/pospool/log"
	"github.com/pospool/pospool/logdb"
	"github.com/pospool/pospool/lvldb"
	"github.com/pospool/pospool/metrics"
	"github.com/pospool/pospool/pool"
	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/state"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "PoSPool",
		Usage:     "Staking pool accounting service",
		Copyright: "2025 The PoSPool developers",
		Flags: []cli.Flag{
			dataDirFlag,
			configFlag,
			apiAddrFlag,
			apiCorsFlag,
			verbosityFlag,
			enableAPILogsFlag,
			enableMetricsFlag,
			pprofFlag,
			blockIntervalFlag,
			rewardRateFlag,
		},
		Action: defaultAction,
		Commands: []cli.Command{
			{
				Name:  "solo",
				Usage: "in-memory pool for test & dev",
				Flags: []cli.Flag{
					dataDirFlag,
					configFlag,
					apiAddrFlag,
					apiCorsFlag,
					verbosityFlag,
					enableAPILogsFlag,
					enableMetricsFlag,
					pprofFlag,
					onDemandFlag,
					persistFlag,
					blockIntervalFlag,
					rewardRateFlag,
				},
				Action: soloAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { log.Info("exited") }()

	initLogger(ctx)
	dataDir := makeDataDir(ctx)

	mainDB := openMainDB(dataDir)
	defer func() { log.Info("closing main database..."); mainDB.Close() }()

	logDB := openLogDB(dataDir)
	defer func() { log.Info("closing log database..."); logDB.Close() }()

	return runPool(ctx, mainDB, logDB, dataDir, false)
}

func soloAction(ctx *cli.Context) error {
	defer func() { log.Info("exited") }()

	initLogger(ctx)

	var (
		mainDB      *lvldb.LevelDB
		logDB       *logdb.LogDB
		instanceDir string
	)
	if ctx.Bool(persistFlag.Name) {
		instanceDir = makeDataDir(ctx)
		mainDB = openMainDB(instanceDir)
		logDB = openLogDB(instanceDir)
	} else {
		instanceDir = "Memory"
		mainDB = openMemMainDB()
		logDB = openMemLogDB()
	}
	defer func() { log.Info("closing main database..."); mainDB.Close() }()
	defer func() { log.Info("closing log database..."); logDB.Close() }()

	return runPool(ctx, mainDB, logDB, instanceDir, ctx.Bool(onDemandFlag.Name))
}

func runPool(ctx *cli.Context, mainDB *lvldb.LevelDB, logDB *logdb.LogDB, instanceDir string, onDemand bool) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	opts, err := cfg.PoolOptions(logDB)
	if err != nil {
		return err
	}

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	identity := cfg.Identity()
	poolAddr := pospool.BytesToAddress(identity[:])

	staking := solo.New()
	engine := pool.New(poolAddr, state.New(mainDB), staking, opts)

	if err := engine.Register(identity, 0, nil); err != nil {
		if errors.Cause(err) != pool.ErrAlreadyRegistered {
			return errors.Wrap(err, "register pool")
		}
		log.Info("pool already registered", "addr", poolAddr)
	}

	apiHandler := api.New(engine, logDB, api.Options{
		AllowedOrigins:  ctx.String(apiCorsFlag.Name),
		PprofOn:         ctx.Bool(pprofFlag.Name),
		EnableReqLogger: ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:   ctx.Bool(enableMetricsFlag.Name),
	})
	apiSrv, apiURL := startAPIServer(ctx, apiHandler)

	printStartupMessage(poolAddr, instanceDir, apiURL)

	group, groupCtx := errgroup.WithContext(handleExitSignal())

	if !onDemand {
		interval := time.Duration(ctx.Uint64(blockIntervalFlag.Name)) * time.Second
		rewardRate := ctx.Uint64(rewardRateFlag.Name)
		group.Go(func() error {
			if err := staking.Run(groupCtx, interval, rewardRate); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("stopping API server...")
		return apiSrv.Shutdown(context.Background())
	})

	return group.Wait()
}

func printStartupMessage(poolAddr pospool.Address, instanceDir string, apiURL string) {
	fmt.Printf(`Starting %v
    Pool address  [ %v ]
    Instance dir  [ %v ]
    API portal    [ %v ]
`,
		"PoSPool "+fullVersion(),
		poolAddr,
		instanceDir,
		apiURL,
	)
}
