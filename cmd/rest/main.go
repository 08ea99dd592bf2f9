package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-accelerator-be/internal/bootstrap"
	"ai-accelerator-be/internal/config"
	"ai-accelerator-be/internal/server"
	"ai-accelerator-be/internal/tracer"
	"ai-accelerator-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer("session-manager")
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.MustLoad()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}
	if err := database.Migrate(gormDB); err != nil {
		log.Panicf("Unable to migrate database: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Seed the config registry when a seed file is configured
	if cfg.App.ConfigSeedPath != "" {
		if err := container.ConfigService.SeedFromFile(context.Background(), cfg.App.ConfigSeedPath); err != nil {
			log.Printf("[WARN] Config seeding failed: %v", err)
		}
	}

	// 5. Route orchestrator answers back to their websocket connections
	if err := container.WebSocketHub.Listen(
		context.Background(),
		container.Bus,
		cfg.Channels.ResponseChannel,
		container.SessionService.HandleFrame,
	); err != nil {
		log.Panicf("Unable to subscribe to response channel: %v", err)
	}

	// 6. Run Server
	srv := server.New(cfg, container)
	go func() {
		if err := srv.Run(); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down session manager...")
	container.WebSocketHub.CloseAll()
	if err := srv.Shutdown(); err != nil {
		log.Printf("[WARN] Server shutdown error: %v", err)
	}
	_ = container.Bus.Close()
	if container.Notifier != nil {
		container.Notifier.Close()
	}
}
