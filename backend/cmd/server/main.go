package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"memgraph/backend/internal/api"
	"memgraph/backend/internal/graph"
	"memgraph/backend/internal/seed"
	"memgraph/backend/internal/snapshot"
	"memgraph/backend/internal/storage"
	"memgraph/backend/pkg/config"
	"memgraph/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...", zap.String("driver", cfg.DBDriver))

	ctx := context.Background()
	client, err := openClient(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open graph", zap.Error(err))
	}
	defer client.Close()

	if cfg.SeedOnEmpty {
		seeded, err := seed.SeedIfEmpty(ctx, client)
		if err != nil {
			log.Fatal("Failed to seed graph", zap.Error(err))
		}
		if seeded {
			log.Info("Seeded empty graph with demo data")
		}
	}

	snapshots := snapshot.NewManager(client)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandler(client, snapshots, logger.Named("api")), log)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// openClient opens the configured store and binds a graph client to it
func openClient(ctx context.Context, cfg *config.Config) (*graph.Client, error) {
	st, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client, err := graph.Open(ctx, st, graph.Options{
		LockTimeout:     cfg.LockTimeout,
		ConflictRetries: cfg.ConflictRetries,
		Logger:          logger.Named("graph"),
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	return client, nil
}
