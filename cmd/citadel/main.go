package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mastersh0w/citadel/internal/cases"
	"github.com/mastersh0w/citadel/internal/config"
	"github.com/mastersh0w/citadel/internal/decay"
	"github.com/mastersh0w/citadel/internal/engine"
	"github.com/mastersh0w/citadel/internal/gateway"
	"github.com/mastersh0w/citadel/internal/logging"
	"github.com/mastersh0w/citadel/internal/metrics"
	"github.com/mastersh0w/citadel/internal/platform"
	"github.com/mastersh0w/citadel/internal/watchdog"
)

const configPath = "config.json"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "citadel: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.LoadOrDefault(configPath)

	if err := logging.Init(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Path); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Close()
	metrics.Init()

	if cfg.Bot.Token == "" {
		return fmt.Errorf("no bot token configured (set bot.token or DISCORD_TOKEN)")
	}

	configs := config.NewStore(cfg.Defaults)
	cfg.Seed(configs)

	store, err := cases.NewStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// The session is created before the engine so the capability layer can
	// share it; the connection itself is opened last.
	gw, err := gateway.New(cfg.Bot.Token)
	if err != nil {
		return err
	}

	bans := platform.NewBanExecutor(cfg.Bot.Token, 4)
	caps := platform.NewDiscord(gw.Session(), configs, bans)

	eng, err := engine.New(configs, store, caps)
	if err != nil {
		return err
	}
	eng.SetResolveTimeout(cfg.Engine.ResolveTimeout())
	gw.Bind(eng)

	wd := watchdog.New(10 * time.Second)
	wd.Register("decay_scheduler", 3*cfg.Engine.SweepInterval())
	wd.Start()
	defer wd.Stop()

	scheduler := decay.NewScheduler(eng.Ledger(), configs, cfg.Engine.SweepInterval(), cfg.Engine.Retention())
	scheduler.OnSweep(func() { wd.Heartbeat("decay_scheduler") })
	scheduler.Start()
	defer scheduler.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if watcher, err := config.NewWatcher(configs, configPath); err == nil {
		go watcher.Run(ctx)
	} else {
		logging.Warn("config hot reload unavailable: %v", err)
	}

	if err := gw.Open(); err != nil {
		return err
	}
	defer gw.Close()

	logging.Info("citadel threat engine started (sweep=%s retention=%s)",
		cfg.Engine.SweepInterval(), cfg.Engine.Retention())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logging.Info("shutdown signal received")
	return nil
}
