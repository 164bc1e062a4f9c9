package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/rl1809/invsnap/internal/adapter/handler"
	"github.com/rl1809/invsnap/internal/adapter/storage"
	"github.com/rl1809/invsnap/internal/config"
	"github.com/rl1809/invsnap/internal/core/service"
	"github.com/rl1809/invsnap/internal/port"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve snapshots over HTTP and gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cfg)
		},
	}
}

type persistence interface {
	port.SnapshotRepository
	EnsureSchema(ctx context.Context) error
}

// openRepository connects the configured database. It returns a nil
// repository when persistence is disabled.
func openRepository(ctx context.Context, cfg config.DatabaseConfig) (persistence, func(), error) {
	switch cfg.Driver {
	case "mysql":
		db, err := sql.Open("mysql", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		log.Println("connected to mysql")
		return storage.NewMySQLAdapter(db), func() { db.Close() }, nil
	case "postgres":
		pool, err := storage.OpenPostgres(ctx, cfg.DSN, 10)
		if err != nil {
			return nil, nil, err
		}
		log.Println("connected to postgres")
		return storage.NewPostgresAdapter(pool), pool.Close, nil
	}
	return nil, func() {}, nil
}

func serve(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := log.Default()

	sources, err := buildSources(cfg, logger)
	if err != nil {
		return err
	}

	// Initialize Redis
	var rdb *redis.Client
	var lock port.SyncLock
	var cache port.SummaryCache
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		log.Println("connected to redis")
		redisAdapter := storage.NewRedisAdapter(rdb, cfg.Snapshot.LockTTL)
		lock, cache = redisAdapter, redisAdapter
	}

	// Initialize database
	repo, closeRepo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if repo != nil {
		if err := repo.EnsureSchema(ctx); err != nil {
			closeRepo()
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	opts := serviceOptions(cfg, logger)
	if repo == nil {
		opts.QueueSize = 0
	}
	snapshotService := service.NewSnapshotService(sources, lock, cache, opts)

	// Start worker pool
	var wg sync.WaitGroup
	if repo != nil {
		for i := 0; i < cfg.Server.WorkerCount; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				service.PersistSnapshots(id, snapshotService.GetSnapshotQueue(), repo, logger)
			}(i)
		}
		log.Printf("started %d workers", cfg.Server.WorkerCount)
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterSnapshotServer(grpcServer, handler.NewGRPCHandler(snapshotService))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}

	go func() {
		log.Printf("gRPC server listening on %s", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()

	// Initialize HTTP server
	var snapshots port.SnapshotRepository
	if repo != nil {
		snapshots = repo
	}
	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: handler.NewHTTPHandler(snapshotService, snapshots).Routes(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Println("gRPC server stopped")

	// Close snapshot queue and wait for workers
	snapshotService.Close()
	wg.Wait()
	log.Println("workers stopped")

	if rdb != nil {
		rdb.Close()
	}
	closeRepo()
	log.Println("connections closed")
	return nil
}
