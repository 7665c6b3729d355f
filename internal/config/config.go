package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrMissingConfig = errors.New("missing configuration")

const (
	QueueKafka   = "kafka"
	QueueChannel = "channel"
	QueueNone    = "none"

	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type MongoConfig struct {
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Hosts          string `yaml:"hosts"`
	Database       string `yaml:"database"`
	Options        string `yaml:"options"`
	KeepConnection bool   `yaml:"keep_connection"`
}

type KafkaConfig struct {
	Brokers         string `yaml:"brokers"`
	Topic           string `yaml:"topic"`
	GroupID         string `yaml:"group_id"`
	DeadLetterTopic string `yaml:"dead_letter_topic"`
}

type Config struct {
	Debug             bool `yaml:"debug"`
	DebugInput        bool `yaml:"debug_input"`
	DisableSNSRemoval bool `yaml:"disable_sns_removal"`
	LocalTest         bool `yaml:"localtest"`
	LogJSON           bool `yaml:"log_json"`

	Port             string `yaml:"port"`
	MessageQueueType string `yaml:"message_queue_type"`
	StoreType        string `yaml:"store_type"`
	WriteConcurrency int    `yaml:"write_concurrency"`
	WorkerCount      int    `yaml:"worker_count"`
	BatchSize        int    `yaml:"batch_size"`

	Mongo MongoConfig `yaml:"mongodb"`
	Kafka KafkaConfig `yaml:"kafka"`
}

func Default() Config {
	return Config{
		Port:             "8080",
		MessageQueueType: QueueNone,
		StoreType:        StoreMongo,
		WriteConcurrency: 1,
		WorkerCount:      8,
		BatchSize:        200,
		Kafka: KafkaConfig{
			Brokers:         "localhost:9092",
			Topic:           "sensor-data",
			GroupID:         "sensor-aggregator",
			DeadLetterTopic: "sensor-data-dead-letter",
		},
	}
}

// Load reads an optional .env file, an optional YAML file named by
// SENSORDOCS_CONFIG and then the environment, later sources winning.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("SENSORDOCS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if cfg.LocalTest {
		if cfg.Mongo.Hosts == "" {
			cfg.Mongo.Hosts = "localhost"
		}
		if cfg.Mongo.Database == "" {
			cfg.Mongo.Database = "unitTest"
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	bools := map[string]*bool{
		"Debug":                   &c.Debug,
		"Debug_Input":             &c.DebugInput,
		"Disable_SNS_Removal":     &c.DisableSNSRemoval,
		"localtest":               &c.LocalTest,
		"LOG_JSON":                &c.LogJSON,
		"MongoDB_Keep_Connection": &c.Mongo.KeepConnection,
	}
	for key, dst := range bools {
		if v, ok := lookup(key); ok {
			*dst = ParseBool(v)
		}
	}

	strs := map[string]*string{
		"PORT":                    &c.Port,
		"MESSAGE_QUEUE_TYPE":      &c.MessageQueueType,
		"STORE_TYPE":              &c.StoreType,
		"MongoDB_Username":        &c.Mongo.Username,
		"MongoDB_Password":        &c.Mongo.Password,
		"MongoDB_Hosts":           &c.Mongo.Hosts,
		"MongoDB_Database":        &c.Mongo.Database,
		"MongoDB_Options":         &c.Mongo.Options,
		"KAFKA_BROKERS":           &c.Kafka.Brokers,
		"KAFKA_TOPIC":             &c.Kafka.Topic,
		"KAFKA_GROUP_ID":          &c.Kafka.GroupID,
		"KAFKA_DEAD_LETTER_TOPIC": &c.Kafka.DeadLetterTopic,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WRITE_CONCURRENCY": &c.WriteConcurrency,
		"WORKER_COUNT":      &c.WorkerCount,
		"BATCH_SIZE":        &c.BatchSize,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
	}
	return nil
}

// ParseBool accepts "true" in any case and "1".
func ParseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

// Validate reports every missing required key at once. Nothing is required in
// localtest mode.
func (c Config) Validate() error {
	if c.LocalTest {
		return nil
	}

	var missing []string
	if c.StoreType == StoreMongo {
		for key, v := range map[string]string{
			"MongoDB_Username": c.Mongo.Username,
			"MongoDB_Password": c.Mongo.Password,
			"MongoDB_Hosts":    c.Mongo.Hosts,
			"MongoDB_Database": c.Mongo.Database,
		} {
			if v == "" {
				missing = append(missing, key)
			}
		}
	}
	if c.MessageQueueType == QueueKafka && c.Kafka.Brokers == "" {
		missing = append(missing, "KAFKA_BROKERS")
	}

	switch c.StoreType {
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_TYPE %q", c.StoreType)
	}
	switch c.MessageQueueType {
	case QueueKafka, QueueChannel, QueueNone:
	default:
		return fmt.Errorf("unknown MESSAGE_QUEUE_TYPE %q", c.MessageQueueType)
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// ConnectionURI builds mongodb://[user[:pass]@]hosts[/db][?options].
func (m MongoConfig) ConnectionURI() string {
	var b strings.Builder
	b.WriteString("mongodb://")
	if m.Username != "" {
		if m.Password != "" {
			b.WriteString(url.UserPassword(m.Username, m.Password).String())
		} else {
			b.WriteString(url.User(m.Username).String())
		}
		b.WriteByte('@')
	}
	b.WriteString(m.Hosts)
	if m.Database != "" {
		b.WriteByte('/')
		b.WriteString(m.Database)
	}
	if m.Options != "" {
		if m.Database == "" {
			b.WriteByte('/')
		}
		b.WriteByte('?')
		b.WriteString(m.Options)
	}
	return b.String()
}
