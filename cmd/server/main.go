package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reversi-cards/reversi-server-go/internal/config"
	"github.com/reversi-cards/reversi-server-go/internal/game"
	"github.com/reversi-cards/reversi-server-go/internal/game/cards"
	"github.com/reversi-cards/reversi-server-go/internal/match"
	"github.com/reversi-cards/reversi-server-go/internal/server"
	"github.com/reversi-cards/reversi-server-go/internal/store"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting reversi server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	catalog := cards.Default()
	if cfg.CatalogPath != "" {
		catalog, err = cards.Load(cfg.CatalogPath)
		if err != nil {
			logger.Fatal("failed to load card catalog", zap.String("path", cfg.CatalogPath), zap.Error(err))
		}
	}
	logger.Info("card catalog loaded", zap.Int("cards", catalog.Size()))

	engine := game.New(catalog, game.WithRules(cfg.Rules), game.WithLogger(logger.Named("engine")))

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer st.Close()

	opts := []match.Option{match.WithMaxMatches(cfg.Server.MaxMatches)}
	if cfg.Replay.Enabled {
		opts = append(opts, match.WithRecorder(game.NewReplayRecorder(logger.Named("replay"), cfg.Replay.Directory)))
		logger.Info("replay recording enabled", zap.String("directory", cfg.Replay.Directory))
	}
	matchMgr := match.NewManager(engine, st, logger.Named("match"), opts...)
	logger.Info("match manager initialized", zap.Int("max_matches", cfg.Server.MaxMatches))

	grpcServer := server.NewGRPCServer(cfg.Server.GRPC, matchMgr, logger.Named("grpc"))
	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	hub := server.NewHub(matchMgr, cfg.Server.HTTP, logger.Named("stream"))
	go hub.Run(ctx)
	httpServer := server.NewHTTPServer(cfg.Server.HTTP, server.NewRouter(matchMgr, hub, logger.Named("http")))

	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTP.Address))
		if httpErr := httpServer.ListenAndServe(); httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(httpErr))
		}
	}()

	logger.Info("reversi server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.String("store", cfg.Database.Driver),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	cancel()
	grpcServer.GracefulStop()

	logger.Info("reversi server stopped", zap.Int("active_matches", matchMgr.ActiveCount()))
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
