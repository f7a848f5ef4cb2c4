package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lendpool/bank"
	"lendpool/config"
	"lendpool/crypto"
	"lendpool/lending"
	"lendpool/observability/logging"
	"lendpool/oracle"
	"lendpool/rpc"
	"lendpool/state"
	"lendpool/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to lendpoold configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LENDPOOL_ENV"))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if env == "" {
		env = cfg.Environment
	}

	logger := logging.Setup("lendpoold", env, logging.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	db, err := openDatabase(cfg.Storage)
	if err != nil {
		logger.Error("open storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	poolAddr, err := cfg.Pool()
	if err != nil {
		logger.Error("pool address", "error", err)
		os.Exit(1)
	}
	owner, err := cfg.Owner()
	if err != nil {
		logger.Error("owner address", "error", err)
		os.Exit(1)
	}
	params, err := cfg.RiskParameters()
	if err != nil {
		logger.Error("risk parameters", "error", err)
		os.Exit(1)
	}
	routes, err := cfg.OracleRouterConfig()
	if err != nil {
		logger.Error("oracle routes", "error", err)
		os.Exit(1)
	}

	ledger := state.NewManager(db)
	registry := lending.NewRegistry(ledger)
	funds := bank.NewBank(db, poolAddr)
	prices := oracle.NewRouter(routes, funds)

	engine := lending.NewEngine(ledger, registry, prices, funds, params)
	engine.SetOwner(owner)

	if err := bootstrapAssets(cfg, registry); err != nil {
		logger.Error("bootstrap assets", "error", err)
		os.Exit(1)
	}

	server := rpc.NewServer(engine, prices, logger, cfg.AdminSecret)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("lendpoold listening", "addr", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

func openDatabase(cfg config.StorageConfig) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		return storage.NewBoltDB(cfg.Path)
	default:
		return storage.NewLevelDB(cfg.Path)
	}
}

// bootstrapAssets registers configured assets that are not present yet.
// Re-registration of an existing asset is rejected by the registry, so
// already-known assets are skipped instead.
func bootstrapAssets(cfg config.Config, registry *lending.Registry) error {
	for _, entry := range cfg.Assets {
		addr, err := crypto.DecodeAddress(entry.Address)
		if err != nil {
			return err
		}
		if err := registry.RequireSupported(addr); err == nil {
			continue
		}
		if err := registry.RegisterAsset(addr, entry.Weight); err != nil && !errors.Is(err, lending.ErrAssetExists) {
			return fmt.Errorf("register %s: %w", entry.Address, err)
		}
	}
	return nil
}
