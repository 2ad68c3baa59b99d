package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/curbfleet/dispatch/internal/agent"
	"github.com/curbfleet/dispatch/internal/alert"
	"github.com/curbfleet/dispatch/internal/config"
	"github.com/curbfleet/dispatch/internal/feed"
	"github.com/curbfleet/dispatch/internal/ingest"
	"github.com/curbfleet/dispatch/internal/queue"
	"github.com/curbfleet/dispatch/internal/routesync"
	"github.com/curbfleet/dispatch/internal/routing"
	"github.com/curbfleet/dispatch/internal/session"
	"github.com/curbfleet/dispatch/internal/storage"
	"github.com/curbfleet/dispatch/internal/telemetry"
	"github.com/curbfleet/dispatch/internal/wake"
	"github.com/curbfleet/dispatch/shared/logger"
	"github.com/curbfleet/dispatch/shared/postgresql"
	"github.com/curbfleet/dispatch/shared/rabbitmq"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("COURIER_AGENT_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/courier-agent/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAgentConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	courierID := cfg.Agent.CourierID

	appLogger.Info("Starting courier agent",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("courier_id", courierID),
	)

	// Direct store access backs the telemetry fallback path and the queue.
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, courierID, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	store := storage.NewStore(dbClient)
	sess := session.NewContext(cfg.Agent.GuardTTL)

	newJobCue := alert.CueNewJob
	if cfg.Agent.AlertCue == "voice" {
		newJobCue = alert.CueVoice
	}
	alerts := alert.NewCoordinator(alert.Config{
		CourierID: courierID,
		Logger:    appLogger.Logger,
		NewJobCue: newJobCue,
	})

	waker := wake.NewController(wake.Config{
		Logger:    appLogger.Logger,
		Heartbeat: cfg.Agent.WakeHeartbeat,
	})

	queueManager := queue.NewManager(queue.Config{
		CourierID: courierID,
		Store:     store,
		Session:   sess,
		Alerter:   alerts,
		Waker:     waker,
		Logger:    appLogger.Logger,
	})

	routingClient := routing.NewClient(routing.Config{
		BaseURL: cfg.Routing.BaseURL,
		APIKey:  cfg.Routing.APIKey,
		Timeout: cfg.Routing.Timeout,
		Logger:  appLogger.Logger,
	})

	synchronizer := routesync.New(routesync.Config{
		Directions: routingClient,
		Geocoder:   routingClient,
		Surface:    routesync.NewLogSurface(appLogger.Logger),
		Store:      store,
		Logger:     appLogger.Logger,
		FollowMode: cfg.Agent.FollowMode,
	})

	ingestClient := ingest.NewClient(ingest.Config{
		BaseURL: cfg.Tracking.IngestURL,
		Token:   cfg.Agent.BearerToken,
	})

	consumer := feed.NewConsumer(rabbitClient, queueManager, alerts, appLogger.Logger)

	// Position fixes arrive as "lat,lng[,accuracy]" lines on stdin.
	source := telemetry.NewStreamSource(os.Stdin, appLogger.Logger)

	reporter := telemetry.NewReporter(telemetry.Config{
		CourierID:        courierID,
		Source:           source,
		Probe:            telemetry.NewHostProbe(),
		Ingest:           ingestClient,
		Store:            store,
		Logger:           appLogger.Logger,
		PersistInterval:  cfg.Tracking.PersistInterval,
		PersistDistanceM: cfg.Tracking.PersistDistanceM,
	})

	agentInstance := agent.New(&agent.Config{
		CourierID: courierID,
		Logger:    appLogger.Logger,
		Queue:     queueManager,
		Reporter:  reporter,
		Sync:      synchronizer,
		Consumer:  consumer,
		Alerts:    alerts,
		Wake:      waker,
	})
	reporter.SetOnSample(agentInstance.OnSample)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := agentInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Courier agent started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Agent error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		agentInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Agent stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Agent shutdown timeout exceeded, forcing exit")
	}

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.AddSource,
		TimeFormat: time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ declares the courier-scoped consumer queue bound to the
// change-feed exchange.
func initRabbitMQ(cfg *config.RabbitMQConfig, courierID string, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		User:              cfg.User,
		Password:          cfg.Password,
		VHost:             cfg.VHost,
		ExchangeName:      cfg.Exchange,
		ExchangeDurable:   cfg.ExchangeDurable,
		QueueName:         fmt.Sprintf("%s.%s", cfg.Queue, courierID),
		QueueDurable:      cfg.QueueDurable,
		QueueAutoDelete:   cfg.QueueAutoDelete,
		BindingKeys:       feed.BindingKeys(courierID),
		RetryAttempts:     cfg.RetryAttempts,
		RetryInterval:     cfg.RetryInterval,
		Heartbeat:         cfg.Heartbeat,
		PublishRetries:    cfg.PublishRetries,
		PublishRetryDelay: cfg.PublishDelay,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
