package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/richd0tcom/sensordocs/internal/broker"
	"github.com/richd0tcom/sensordocs/internal/domain"
	"github.com/richd0tcom/sensordocs/internal/ingest"
)

type ServerConfig struct {
	MessageQueue     broker.MessageQueue
	DeadLetter       broker.Publisher
	Store            domain.StoreOpener
	Consumer         domain.BatchObserver
	Decoder          ingest.Decoder
	Logger           *zap.Logger
	WorkerCount      int
	BatchSize        int
	FlushInterval    time.Duration
	WriteConcurrency int
	Port             string
}

type ConfigOption func(*ServerConfig) error

func WithKafka(cfg broker.KafkaConfig) ConfigOption {
	return func(config *ServerConfig) error {
		mq, err := broker.NewKafkaQueue(cfg, config.Logger.Named("kafka"))
		if err != nil {
			return err
		}
		config.MessageQueue = mq
		if dl := mq.DeadLetterQueue(); dl != nil {
			config.DeadLetter = dl
		}
		return nil
	}
}

// WithQueue uses an already constructed message queue.
func WithQueue(mq broker.MessageQueue) ConfigOption {
	return func(config *ServerConfig) error {
		config.MessageQueue = mq
		return nil
	}
}

// WithDeadLetter sets where the worker sends measurements it could not write.
func WithDeadLetter(p broker.Publisher) ConfigOption {
	return func(config *ServerConfig) error {
		config.DeadLetter = p
		return nil
	}
}

func WithStore(store domain.StoreOpener) ConfigOption {
	return func(config *ServerConfig) error {
		config.Store = store
		return nil
	}
}

func WithConsumer(consumer domain.BatchObserver) ConfigOption {
	return func(config *ServerConfig) error {
		config.Consumer = consumer
		return nil
	}
}

func WithDecoder(decoder ingest.Decoder) ConfigOption {
	return func(config *ServerConfig) error {
		config.Decoder = decoder
		return nil
	}
}

// WithLogger must come before options that build components, such as WithKafka.
func WithLogger(logger *zap.Logger) ConfigOption {
	return func(config *ServerConfig) error {
		config.Logger = logger
		return nil
	}
}

func WithWorkerConfig(workerCount, batchSize int) ConfigOption {
	return func(config *ServerConfig) error {
		config.WorkerCount = workerCount
		config.BatchSize = batchSize
		return nil
	}
}

func WithFlushInterval(d time.Duration) ConfigOption {
	return func(config *ServerConfig) error {
		config.FlushInterval = d
		return nil
	}
}

func WithWriteConcurrency(n int) ConfigOption {
	return func(config *ServerConfig) error {
		config.WriteConcurrency = n
		return nil
	}
}

func WithPort(port string) ConfigOption {
	return func(config *ServerConfig) error {
		config.Port = port
		return nil
	}
}
