package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"dgenerate/config"
	"dgenerate/core/genesis"
	"dgenerate/core/runtime"
	"dgenerate/index"
	"dgenerate/observability/logging"
	"dgenerate/observability/otel"
	"dgenerate/rpc"
	"dgenerate/storage"
)

const (
	genesisPathEnv = "DG_GENESIS"
	envNameEnv     = "DG_ENV"
	indexBuffer    = 1024
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides DG_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	env := cfg.Environment
	if v := strings.TrimSpace(os.Getenv(envNameEnv)); v != "" {
		env = v
	}
	logger, logCloser, err := logging.SetupWithOptions("rewardd", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := otel.Init(ctx, otel.Config{
		ServiceName: "rewardd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Error("Failed to initialise telemetry", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	genesisPath := resolveGenesisPath(*genesisFlag, cfg.GenesisFile, os.LookupEnv)
	d, err := start(ctx, cfg, genesisPath, logger)
	if err != nil {
		logger.Error("Failed to start", slog.Any("error", err))
		os.Exit(1)
	}
	defer d.Close()

	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		logger.Error("Failed to listen", slog.String("addr", cfg.RPCAddress), slog.Any("error", err))
		os.Exit(1)
	}
	if err := d.server.ServeListener(ctx, listener); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("rewardd stopped")
}

// resolveGenesisPath picks the genesis file: flag, then environment, then
// config.
func resolveGenesisPath(flagValue, cfgValue string, lookupEnv func(string) (string, bool)) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if lookupEnv != nil {
		if v, ok := lookupEnv(genesisPathEnv); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(cfgValue)
}

type daemon struct {
	db      storage.Database
	rt      *runtime.Runtime
	store   *index.Store
	server  *rpc.Server
	cancel  func()
	indexWG sync.WaitGroup
}

// start opens state, applies genesis to an empty state, attaches the index
// and builds the RPC server.
func start(ctx context.Context, cfg *config.Config, genesisPath string, logger *slog.Logger) (*daemon, error) {
	logger.Info("starting rewardd",
		slog.String("rpcAddress", cfg.RPCAddress),
		slog.String("dataDir", cfg.DataDir),
		slog.String("genesis", genesisPath),
		slog.String("indexDSN", logging.MaskDSN(cfg.Index.DSN)),
		logging.MaskField("jwtSecret", cfg.JWTSecret()))
	db, err := storage.NewLevelDB(cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d := &daemon{db: db, cancel: func() {}}

	d.rt, err = runtime.New(db, cfg.Reward, runtime.Options{Logger: logger})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open runtime: %w", err)
	}
	authority, bump, err := d.rt.GameAuthority()
	if err != nil {
		d.Close()
		return nil, err
	}
	logger.Info("runtime ready",
		slog.Uint64("height", d.rt.Height()),
		slog.String("root", d.rt.Root().Hex()),
		slog.String("gameAuthority", authority.String()),
		slog.Int("bump", int(bump)))

	if genesisPath != "" {
		if err := applyGenesis(ctx, d.rt, genesisPath, logger); err != nil {
			d.Close()
			return nil, err
		}
	}

	var history rpc.History
	if dsn := strings.TrimSpace(cfg.Index.DSN); dsn != "" {
		d.store, err = index.Open(dsn, logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		receipts, cancel := d.rt.Subscribe("index", indexBuffer)
		d.cancel = cancel
		d.indexWG.Add(1)
		go func() {
			defer d.indexWG.Done()
			if err := d.store.Run(ctx, receipts); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("index stopped", slog.Any("error", err))
			}
		}()
		history = d.store
	}

	d.server = rpc.NewServer(d.rt, history, rpc.Config{
		JWTSecret:         cfg.JWTSecret(),
		JWTIssuer:         cfg.RPC.JWTIssuer,
		RequestsPerMinute: cfg.RPC.RequestsPerMinute,
		Burst:             cfg.RPC.Burst,
		MaxBodyBytes:      cfg.RPC.MaxBodyBytes,
		ReadTimeout:       time.Duration(cfg.RPC.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.RPC.WriteTimeout) * time.Second,
	}, logger)
	if cfg.JWTSecret() == "" {
		logger.Warn("RPC write methods are unauthenticated; set RPC.JWTSecret for production")
	}
	return d, nil
}

func applyGenesis(ctx context.Context, rt *runtime.Runtime, path string, logger *slog.Logger) error {
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		return fmt.Errorf("load genesis spec: %w", err)
	}
	err = rt.ApplyGenesis(ctx, spec)
	if errors.Is(err, runtime.ErrGenesisApplied) {
		logger.Info("genesis already applied, skipping", slog.String("path", path))
		return nil
	}
	return err
}

// Close stops the indexer and releases the index and the database.
func (d *daemon) Close() {
	d.cancel()
	d.indexWG.Wait()
	if d.store != nil {
		_ = d.store.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}
