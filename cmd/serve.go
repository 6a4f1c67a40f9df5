package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"reputation-chain/config"
	"reputation-chain/consensus"
	"reputation-chain/db"
	"reputation-chain/handlers"
	"reputation-chain/ledger"
	"reputation-chain/logger"
	"reputation-chain/repository"
	"reputation-chain/reputation"
	"reputation-chain/routers"
	"reputation-chain/transport"
	"reputation-chain/txpool"
)

func runServe(cmdCtx *cli.Context) error {
	// Load config
	cfg, err := config.Load(cmdCtx.String("config"))
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.Log.AppLogFile); cfg.Log.AppLogFile != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}
	if err := logger.InitLogger(cfg.Log.AppLogFile, cfg.Log.Level); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Logger.Sync()

	logger.Logger.Info("Starting consensus server...")

	// Round archive
	ldb, err := db.NewLevelDB(cfg.LevelDB.Path)
	if err != nil {
		logger.Logger.Error("Failed to open leveldb", zap.String("path", cfg.LevelDB.Path), zap.Error(err))
		return err
	}
	defer ldb.Close()

	roundRepo := repository.NewRoundRepository(ldb)
	if cfg.LevelDB.ResetOnStart {
		if err := roundRepo.Reset(); err != nil {
			return fmt.Errorf("reset round archive: %w", err)
		}
	}

	// Consensus engine
	cc := cfg.Consensus
	rc := cc.Reputation
	table := reputation.NewTable(reputation.Params{
		Initial:       rc.Initial,
		Min:           rc.Min,
		Max:           rc.Max,
		Decay:         rc.Decay,
		ProposerShare: rc.ProposerShare,
		VoterShare:    rc.VoterShare,
	})
	seed := cc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	hub := transport.NewHub()
	engineCfg := consensus.Config{
		RoundDuration:        cc.RoundDuration,
		TransactionsPerBlock: cc.TransactionsPerBlock,
		OnlineProbability:    cc.OnlineProbability,
		EarlyExit:            cc.EarlyExit,
		InboxSize:            cc.InboxSize,
	}
	controller := consensus.NewController(engineCfg,
		ledger.New(cc.TransactionsPerBlock),
		table,
		txpool.New(cc.Transactions),
		consensus.WithNotifier(hub),
		consensus.WithArchive(roundRepo),
		consensus.WithRand(rand.New(rand.NewSource(seed))),
	)

	// Initialize HTTP handlers
	h := handlers.NewHandler(controller, hub, roundRepo)

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Logger.Info("Server stopped", zap.Error(err))
		}
	}()
	logger.Logger.Info("Server running on port", zap.Int("port", cfg.Server.Port))

	ctx, stop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		controller.Run(ctx)
		close(loopDone)
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")
	stop()
	<-loopDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// open event streams only end when their clients go away
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
	}
	return nil
}
