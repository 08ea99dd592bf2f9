package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-accelerator-be/internal/bootstrap"
	"ai-accelerator-be/internal/config"
	"ai-accelerator-be/internal/tracer"
	"ai-accelerator-be/pkg/database"
	"ai-accelerator-be/pkg/notification"
	"ai-accelerator-be/pkg/queue"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer("orchestrator")
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

	// 4. Drain both task queues into the step machine
	ragManager := queue.NewManager(container.RagQueue, container.Orchestrator.HandleTask, cfg.App.OrchestratorWorkers, container.Logger)
	retailManager := queue.NewManager(container.RetailQueue, container.Orchestrator.HandleTask, cfg.App.OrchestratorWorkers, container.Logger)

	ragManager.Start(context.Background())
	retailManager.Start(context.Background())
	log.Printf("✅ Orchestrator draining %s and %s with %d worker(s) each",
		cfg.Channels.TaskQueue, cfg.Channels.TaskQueueRetail, cfg.App.OrchestratorWorkers)

	// 5. Post-call summary mailer (optional)
	var natsSub *notification.NatsSubscriber
	if cfg.SMTP.Host != "" && cfg.SMTP.NotifyEmail != "" {
		natsSub, err = notification.NewNatsSubscriber(cfg.App.NatsURL, container.Logger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else {
			mailer := notification.NewCallSummaryMailer(container.EmailSender, cfg.SMTP.NotifyEmail, container.Logger)
			if err := mailer.Start(natsSub); err != nil {
				log.Printf("[WARN] Failed to start call summary mailer: %v", err)
			}
		}
	}

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestrator...")
	ragManager.Stop()
	retailManager.Stop()
	if natsSub != nil {
		natsSub.Close()
	}
	_ = container.Bus.Close()
	if container.Notifier != nil {
		container.Notifier.Close()
	}
}
