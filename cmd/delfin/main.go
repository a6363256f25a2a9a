package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/merliyatf/delfin/internal/alerts"
	"github.com/merliyatf/delfin/internal/alertsource"
	"github.com/merliyatf/delfin/internal/config"
	"github.com/merliyatf/delfin/internal/drivermgr"
	"github.com/merliyatf/delfin/internal/event"
	"github.com/merliyatf/delfin/internal/inventory"
	"github.com/merliyatf/delfin/internal/poller"
	"github.com/merliyatf/delfin/internal/registry"
	"github.com/merliyatf/delfin/internal/secrets"
	"github.com/merliyatf/delfin/internal/server"
	"github.com/merliyatf/delfin/internal/store"
	"github.com/merliyatf/delfin/internal/version"
	"github.com/merliyatf/delfin/pkg/models"
	"github.com/merliyatf/delfin/pkg/module"
	"go.uber.org/zap"

	_ "github.com/merliyatf/delfin/internal/drivers/hpe3par" // Register the 3PAR driver factory
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(version.Info())
		return
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.New(viperCfg)

	// Initialize logger from configuration.
	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Delfin server starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	// Open database
	dsn := viperCfg.GetString("database.dsn")
	if dsn == "" {
		dsn = "./data/delfin.db"
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}
	db, err := store.New(dsn)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		logger.Fatal("database version check failed", zap.Error(err))
	}

	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("dsn", dsn),
	)

	// Derive the credential encryption key.
	passphrase := viperCfg.GetString("secrets.passphrase")
	if passphrase == "" {
		logger.Fatal("secrets.passphrase is not set; set it in the config file or DELFIN_SECRETS_PASSPHRASE")
	}
	secretsMgr := secrets.NewManager()
	if err := secretsMgr.Open(ctx, db.DB(), passphrase); err != nil {
		logger.Fatal("failed to open secrets manager", zap.Error(err))
	}
	defer secretsMgr.Close()
	logger.Info("secrets manager opened", zap.String("component", "secrets"))

	// Create shared services
	bus := event.NewBus(logger.Named("event"))

	// Create modules. Stores come to life in Init, so cross-module lookups go
	// through late-binding adapters that resolve at call time.
	invMod := inventory.New()
	asMod := alertsource.New()
	alertsMod := alerts.New()
	pollerMod := poller.New()

	storages := &inventoryStorageReader{inv: invMod}
	driverMgr := drivermgr.New(storages, logger.Named("drivermgr"))

	invMod.SetSecrets(secretsMgr)
	invMod.SetProber(driverMgr)
	// Deregistration tears down the storage's trap source before the
	// record is deleted, so the array stops forwarding traps.
	invMod.SetSourceRemover(asMod)

	asMod.SetSecrets(secretsMgr)
	asMod.SetDrivers(driverMgr)
	asMod.SetStorages(storages)

	alertsMod.SetDrivers(driverMgr)

	pollerMod.SetSources(&alertSourceLister{as: asMod})
	pollerMod.SetDrivers(driverMgr)

	// Create module registry
	reg := registry.New(logger.Named("registry"))
	for _, m := range []module.Module{invMod, asMod, alertsMod, pollerMod} {
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register module", zap.Error(err))
		}
	}

	if err := reg.Validate(); err != nil {
		logger.Fatal("module validation failed", zap.Error(err))
	}

	if err := reg.InitAll(ctx, func(name string) module.Dependencies {
		return module.Dependencies{
			Config: cfg.Sub("modules." + name),
			Logger: logger.Named(name),
			Store:  db,
			Bus:    bus,
		}
	}); err != nil {
		logger.Fatal("failed to initialize modules", zap.Error(err))
	}

	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start modules", zap.Error(err))
	}

	// Deregistered storages drop their cached driver so a re-registration
	// with new credentials starts clean.
	bus.Subscribe(inventory.TopicStorageDeregistered, func(_ context.Context, ev module.Event) {
		if p, ok := ev.Payload.(inventory.StorageEvent); ok {
			driverMgr.Dispose(p.StorageID)
		}
	})

	// Create and start HTTP server
	addr := fmt.Sprintf("%s:%d",
		viperCfg.GetString("server.host"), viperCfg.GetInt("server.port"))
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(addr, reg, logger.Named("server"), readyCheck)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("Delfin server ready", zap.String("addr", addr))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	reg.StopAll(shutdownCtx)
	driverMgr.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("Delfin server stopped")
}

// inventoryStorageReader resolves storage records through the inventory
// module's store, which exists only after Init. Lives in the composition
// root to avoid coupling the driver manager to the inventory module.
type inventoryStorageReader struct {
	inv *inventory.Module
}

func (r *inventoryStorageReader) Get(ctx context.Context, id string) (*models.Storage, error) {
	s := r.inv.Store()
	if s == nil {
		return nil, fmt.Errorf("inventory store not initialized")
	}
	return s.Get(ctx, id)
}

// alertSourceLister enumerates configured alert sources through the
// alertsource module's store, which exists only after Init.
type alertSourceLister struct {
	as *alertsource.Module
}

func (l *alertSourceLister) ListStorageIDs(ctx context.Context) ([]string, error) {
	s := l.as.Store()
	if s == nil {
		return nil, fmt.Errorf("alertsource store not initialized")
	}
	return s.ListStorageIDs(ctx)
}
