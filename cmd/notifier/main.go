package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"trainee_notification_service/internal/app"
	"trainee_notification_service/internal/domain/notification"
	"trainee_notification_service/internal/infra/accounts"
	"trainee_notification_service/internal/infra/actions"
	"trainee_notification_service/internal/infra/config"
	idb "trainee_notification_service/internal/infra/database"
	"trainee_notification_service/internal/infra/email"
	"trainee_notification_service/internal/infra/inapp"
	"trainee_notification_service/internal/infra/locking"
	"trainee_notification_service/internal/infra/logger"
	"trainee_notification_service/internal/infra/queue"
	"trainee_notification_service/internal/infra/scheduler"

	"github.com/google/uuid"
)

func main() {
	fmt.Println("Trainee Notification Service starting...")

	mainLogger := log.New(os.Stdout, "MAIN: ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger.Printf("INFO: Configuration loaded. LogLevel: %s, Environment: %s", cfg.LogLevel, cfg.Environment)

	// Database
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Println("INFO: Database connection established successfully.")

	notificationRepo := idb.NewPostgresNotificationRepository(db)

	// Distributed lock: one holder id per process instance.
	hostname, _ := os.Hostname()
	holder := fmt.Sprintf("%s-%s", hostname, uuid.New())
	lockBackend := idb.NewPostgresLockBackend(db, holder)
	lockRunner := locking.NewRunner(lockBackend, log.New(os.Stdout, "LOCK: ", log.LstdFlags))
	mainLogger.Printf("INFO: Lock runner initialized (holder: %s).", holder)

	// Kafka
	producer, err := queue.NewSyncProducer(cfg.KafkaBrokers)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create Kafka producer: %v", err)
	}
	defer producer.Close()
	deliveryQueue := queue.NewKafkaDeliveryQueue(producer, cfg.DeliveryTopic)
	changePublisher := queue.NewKafkaChangePublisher(producer, cfg.ChangeTopic)
	mainLogger.Println("INFO: Kafka producer initialized.")

	// External collaborators
	accountResolver := accounts.NewCachedResolver(
		accounts.NewHTTPResolver(cfg.AccountServiceURL, cfg.HTTPTimeout),
		cfg.AccountCacheTTL,
	)
	actionClient := actions.NewHTTPClient(cfg.ActionServiceURL, cfg.HTTPTimeout)

	// Delivery gateways
	gateways := map[notification.Channel]notification.Gateway{
		notification.ChannelEmail: email.NewGateway(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom),
		notification.ChannelInApp: inapp.NewGateway(),
	}

	// Application services
	notifService := app.NewNotificationService(notificationRepo, log.New(os.Stdout, "NOTIF: ", log.LstdFlags|log.Lshortfile))
	outboxService := app.NewOutboxService(notificationRepo, deliveryQueue, lockRunner,
		log.New(os.Stdout, "OUTBOX: ", log.LstdFlags|log.Lshortfile), cfg.SweepLockLease)
	deliveryService := app.NewDeliveryService(notificationRepo, gateways,
		log.New(os.Stdout, "DELIVERY: ", log.LstdFlags|log.Lshortfile))
	reminderService := app.NewReminderService(notifService, notificationRepo, actionClient, accountResolver,
		log.New(os.Stdout, "REMINDER: ", log.LstdFlags|log.Lshortfile), cfg.ReminderGraceWindow)
	migrationService := app.NewMigrationService(notificationRepo, changePublisher,
		log.New(os.Stdout, "MIGRATE: ", log.LstdFlags|log.Lshortfile))
	eventHandler := app.NewEventHandler(notifService, reminderService, migrationService, accountResolver,
		log.New(os.Stdout, "EVENTS: ", log.LstdFlags|log.Lshortfile))
	reconcileService := app.NewReconcileService(notifService,
		log.New(os.Stdout, "RECONCILE: ", log.LstdFlags|log.Lshortfile))
	mainLogger.Println("INFO: Application services initialized.")

	// Consumers: delivery requests, inbound business events, provider
	// delivery outcomes.
	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()
	consumerLogger := log.New(os.Stdout, "CONSUMER: ", log.LstdFlags|log.Lshortfile)

	deliveryConsumer, err := queue.NewDeliveryConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup+"-delivery", cfg.DeliveryTopic,
		deliveryService, consumerLogger)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create delivery consumer: %v", err)
	}
	eventConsumer, err := queue.NewBusinessEventConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup+"-events", cfg.EventTopic,
		eventHandler, consumerLogger)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create business event consumer: %v", err)
	}
	outcomeConsumer, err := queue.NewOutcomeConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup+"-outcomes", cfg.OutcomeTopic,
		reconcileService, consumerLogger)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create delivery outcome consumer: %v", err)
	}

	runConsumer := func(name string, run func(context.Context) error) {
		go func() {
			if err := run(consumerCtx); err != nil && err != context.Canceled {
				mainLogger.Printf("ERROR: %s consumer stopped: %v", name, err)
			}
		}()
	}
	runConsumer("delivery", deliveryConsumer.Run)
	runConsumer("business event", eventConsumer.Run)
	runConsumer("delivery outcome", outcomeConsumer.Run)
	mainLogger.Println("INFO: Kafka consumers started.")

	// Outbox scheduler
	outboxScheduler := scheduler.NewOutboxScheduler(outboxService,
		log.New(os.Stdout, "SCHEDULER: ", log.LstdFlags|log.Lshortfile), cfg.CronSpecSweep)
	outboxScheduler.Start()

	mainLogger.Println("INFO: Application setup complete.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Println("INFO: Shutting down application...")
	outboxScheduler.Stop()
	cancelConsumers()
	for _, closer := range []interface{ Close() error }{deliveryConsumer, eventConsumer, outcomeConsumer} {
		if err := closer.Close(); err != nil {
			mainLogger.Printf("ERROR: Failed to close consumer: %v", err)
		}
	}
	mainLogger.Println("INFO: Application shut down gracefully.")
}
