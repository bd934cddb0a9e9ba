package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ethiobingo/bingo-engine/internal/engine"
	"github.com/ethiobingo/bingo-engine/internal/server"
	"github.com/ethiobingo/bingo-engine/internal/wallet"
)

// ServeCmd runs the WebSocket gateway and the room engine
type ServeCmd struct {
	Config string `short:"c" default:"bingo-engine.hcl" help:"Path to the HCL config file"`
	Addr   string `help:"Listen address override (host:port)"`
}

func (cmd *ServeCmd) Run() error {
	cfg, err := server.LoadServerConfig(cmd.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	addr := cfg.GetServerAddress()
	if cmd.Addr != "" {
		addr = cmd.Addr
	}

	level, err := log.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	engineLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	var accounts wallet.Accounts
	var payouts wallet.Payouts
	if cfg.Wallet.BaseURL != "" {
		hw := wallet.NewHTTPWallet(cfg.Wallet.BaseURL, cfg.Wallet.AdminSecret)
		accounts, payouts = hw, hw
		logger.Info("Using platform wallet API", "baseUrl", cfg.Wallet.BaseURL)
	} else {
		mw := wallet.NewMemoryWallet()
		accounts, payouts = mw, mw
		logger.Warn("No wallet API configured, using in-memory balances")
	}

	gateway := server.NewServer(addr, logger)
	rooms := engine.NewManager(engineLogger, quartz.NewReal(), accounts, payouts, gateway, cfg.EngineConfig())
	gateway.SetRoomManager(rooms)

	rooms.Start()
	defer rooms.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gateway.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		return gateway.Stop()
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
