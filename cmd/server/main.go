package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shop-catalog/internal/adapter/handler"
	"github.com/rl1809/shop-catalog/internal/adapter/storage"
	"github.com/rl1809/shop-catalog/internal/config"
	"github.com/rl1809/shop-catalog/internal/core/service"
	"github.com/rl1809/shop-catalog/internal/port"
)

const healthInterval = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	// Initialize MySQL
	db, err := storage.OpenMySQL(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	log.Println("connected to mysql")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if cfg.Database.AutoMigrate {
		if err := mysqlAdapter.Migrate(ctx); err != nil {
			log.Fatalf("failed to migrate schema: %v", err)
		}
		log.Println("schema migrated")
	}

	// Initialize Redis, optional
	var (
		rdb         *redis.Client
		idempotency port.IdempotencyRepository
	)
	if cfg.RedisAddr != "" {
		rdb, err = storage.OpenRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		idempotency = storage.NewRedisAdapter(rdb)
		log.Println("connected to redis")
	} else {
		log.Println("REDIS_ADDR not set, idempotency keys disabled")
	}

	// Initialize services
	catalogService := service.NewCatalogService(mysqlAdapter, mysqlAdapter)
	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, idempotency)

	// Initialize gRPC health server
	monitor := handler.NewHealthMonitor(mysqlAdapter, healthInterval)
	go monitor.Run(ctx)

	grpcServer := handler.NewGRPCServer(monitor)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	go func() {
		log.Printf("gRPC health server listening on :%s", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(catalogService, orderService, mysqlAdapter)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.NewRouter(httpHandler, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.Port)
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
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")

	cancel()
	monitor.Shutdown()
	grpcServer.GracefulStop()
	log.Println("gRPC server stopped")

	// Close connections
	if rdb != nil {
		rdb.Close()
	}
	if err := mysqlAdapter.Close(); err != nil {
		log.Printf("failed to close mysql: %v", err)
	}
	log.Println("connections closed")
}
