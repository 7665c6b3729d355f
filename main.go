package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"

	"github.com/richd0tcom/sensordocs/core/server"
	"github.com/richd0tcom/sensordocs/internal/broker"
	"github.com/richd0tcom/sensordocs/internal/config"
	"github.com/richd0tcom/sensordocs/internal/db"
	"github.com/richd0tcom/sensordocs/internal/ingest"
	"github.com/richd0tcom/sensordocs/internal/logging"
)

var check = flag.Bool("check", false, "connect to MongoDB, list databases and exit")

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred shutdown always happens.
func run() int {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 1
	}

	logger, err := logging.New(cfg.Debug, cfg.LogJSON)
	if err != nil {
		log.Printf("Failed to build logger: %v", err)
		return 1
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var conns *db.ConnectionManager[*mongo.Client]
	if cfg.StoreType == config.StoreMongo {
		conns = db.NewMongoConnectionManager(cfg.Mongo.ConnectionURI(), cfg.Mongo.KeepConnection)
		defer func() {
			if err := conns.Shutdown(context.Background()); err != nil {
				logger.Warn("failed to close MongoDB connection", zap.Error(err))
			}
		}()
	}

	if *check {
		if err := checkConnection(ctx, conns, logger); err != nil {
			logger.Error("connection check failed", zap.Error(err))
			return 1
		}
		return 0
	}

	opts := []server.ConfigOption{
		server.WithLogger(logger),
		server.WithDecoder(ingest.Decoder{
			DisableUnwrap: cfg.DisableSNSRemoval,
			LogInput:      cfg.DebugInput,
		}),
		server.WithWorkerConfig(cfg.WorkerCount, cfg.BatchSize),
		server.WithWriteConcurrency(cfg.WriteConcurrency),
		server.WithPort(cfg.Port),
	}

	switch cfg.StoreType {
	case config.StoreMemory:
		opts = append(opts, server.WithStore(db.NewMemoryStore()))
	default:
		opts = append(opts, server.WithStore(db.NewMongoOpener(conns, cfg.Mongo.Database)))
	}

	switch cfg.MessageQueueType {
	case config.QueueKafka:
		opts = append(opts, server.WithKafka(broker.KafkaConfig{
			Brokers:         cfg.Kafka.Brokers,
			Topic:           cfg.Kafka.Topic,
			GroupID:         cfg.Kafka.GroupID,
			DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
		}))
	case config.QueueChannel:
		opts = append(opts, server.WithQueue(broker.NewChannelQueue(1024, logger.Named("queue"))))
	}

	srv, err := server.NewServer(opts...)
	if err != nil {
		logger.Error("failed to create server", zap.Error(err))
		return 1
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	code := 0
	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
		code = 1
	}

	// Start has drained the queue by now.
	if err := srv.Close(); err != nil {
		logger.Warn("failed to close message queue", zap.Error(err))
	}
	logger.Info("server shutdown complete")
	return code
}

func checkConnection(ctx context.Context, conns *db.ConnectionManager[*mongo.Client], logger *zap.Logger) error {
	if conns == nil {
		logger.Info("memory store configured, nothing to check")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, release, err := conns.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release(context.Background())

	names, err := db.CheckConnection(ctx, client)
	if err != nil {
		return err
	}
	logger.Info("connected to MongoDB", zap.Strings("databases", names))
	return nil
}
