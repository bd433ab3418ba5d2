package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"turion-be/internal/bootstrap"
	"turion-be/internal/config"
	"turion-be/internal/pkg/serverutils"
	"turion-be/internal/server"
	"turion-be/internal/tracer"
	"turion-be/pkg/database"
)

func main() {
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Configuration
	cfg := config.Load()
	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	serverutils.SetJwtSecret(cfg.JWT.Secret)

	// 2. Database
	gormDB, err := database.NewGormDB(database.GormConfig{
		URL:      cfg.Database.Connection,
		LogLevel: cfg.Database.LogLevel,
	})
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Dependencies
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()
	sysLogger := container.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Background services
	go container.WebSocketHub.Run(ctx)

	if n, err := container.ProjectService.Reconcile(ctx); err != nil {
		sysLogger.Error("BOOT", "Project reconcile failed", map[string]interface{}{"error": err.Error()})
	} else if n > 0 {
		sysLogger.Warn("BOOT", "Failed interrupted scaffolds", map[string]interface{}{"count": n})
	}

	if err := container.ConsumerService.Consume(ctx); err != nil {
		sysLogger.Error("BOOT", "Summary consumer failed to start", map[string]interface{}{"error": err.Error()})
	}
	if container.NotificationService != nil {
		_ = container.NotificationService.Start()
	}
	if container.BillingService != nil {
		_ = container.BillingService.Start()
	}

	// 5. HTTP
	srv := server.New(cfg, container)
	go func() {
		if err := srv.Run(); err != nil {
			sysLogger.Error("SERVER", "Server stopped", map[string]interface{}{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	sysLogger.Info("SERVER", "Shutting down", nil)
	if err := srv.Shutdown(); err != nil {
		sysLogger.Error("SERVER", "Shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	container.ProjectService.Wait()
}
