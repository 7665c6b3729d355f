package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{"True", true},
		{"1", true},
		{"false", false},
		{"0", false},
		{"yes", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ParseBool(tt.in); got != tt.want {
			t.Errorf("ParseBool(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(lookupFrom(map[string]string{
		"Debug":                   "1",
		"Disable_SNS_Removal":     "True",
		"MongoDB_Keep_Connection": "true",
		"MongoDB_Hosts":           "db1:27017,db2:27017",
		"KAFKA_TOPIC":             "",
		"WRITE_CONCURRENCY":       "4",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}

	if !cfg.Debug || !cfg.DisableSNSRemoval || !cfg.Mongo.KeepConnection {
		t.Errorf("booleans not applied: %+v", cfg)
	}
	if cfg.DebugInput {
		t.Error("unset boolean should stay false")
	}
	if cfg.Mongo.Hosts != "db1:27017,db2:27017" {
		t.Errorf("unexpected hosts %q", cfg.Mongo.Hosts)
	}
	if cfg.Kafka.Topic != "sensor-data" {
		t.Errorf("empty value must not override default, got %q", cfg.Kafka.Topic)
	}
	if cfg.WriteConcurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.WriteConcurrency)
	}

	bad := Default()
	if err := bad.applyEnv(lookupFrom(map[string]string{"BATCH_SIZE": "lots"})); err == nil {
		t.Error("expected error for non-numeric BATCH_SIZE")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if !errors.Is(err, ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig, got %v", err)
	}
	for _, key := range []string{"MongoDB_Username", "MongoDB_Password", "MongoDB_Hosts", "MongoDB_Database"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should name %s: %v", key, err)
		}
	}

	cfg.Mongo = MongoConfig{Username: "u", Password: "p", Hosts: "h", Database: "d"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("complete config should validate, got %v", err)
	}

	local := Default()
	local.LocalTest = true
	if err := local.Validate(); err != nil {
		t.Errorf("localtest skips validation, got %v", err)
	}

	mem := Default()
	mem.StoreType = StoreMemory
	if err := mem.Validate(); err != nil {
		t.Errorf("memory store needs no credentials, got %v", err)
	}

	mem.MessageQueueType = "rabbitmq"
	if err := mem.Validate(); err == nil {
		t.Error("expected error for unknown queue type")
	}
}

func TestConnectionURI(t *testing.T) {
	tests := []struct {
		name string
		cfg  MongoConfig
		want string
	}{
		{"hosts only", MongoConfig{Hosts: "localhost"}, "mongodb://localhost"},
		{"with database", MongoConfig{Hosts: "localhost", Database: "unitTest"}, "mongodb://localhost/unitTest"},
		{"user only", MongoConfig{Username: "bob", Hosts: "h:27017"}, "mongodb://bob@h:27017"},
		{
			"full",
			MongoConfig{Username: "bob", Password: "secret", Hosts: "h1,h2", Database: "sensors", Options: "replicaSet=rs0"},
			"mongodb://bob:secret@h1,h2/sensors?replicaSet=rs0",
		},
		{"options without database", MongoConfig{Hosts: "h", Options: "ssl=true"}, "mongodb://h/?ssl=true"},
		{"escaped password", MongoConfig{Username: "bob", Password: "p@ss", Hosts: "h"}, "mongodb://bob:p%40ss@h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ConnectionURI(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensordocs.yaml")
	yml := `
port: "9090"
store_type: memory
write_concurrency: 2
mongodb:
  hosts: filehost
  database: filedb
kafka:
  topic: file-topic
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SENSORDOCS_CONFIG", path)
	t.Setenv("MongoDB_Database", "envdb")
	t.Setenv("localtest", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.StoreType != StoreMemory || cfg.WriteConcurrency != 2 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Mongo.Hosts != "filehost" || cfg.Mongo.Database != "envdb" {
		t.Errorf("expected env to override file, got %+v", cfg.Mongo)
	}
	if cfg.Kafka.Topic != "file-topic" || cfg.Kafka.GroupID != "sensor-aggregator" {
		t.Errorf("unexpected kafka config %+v", cfg.Kafka)
	}
}

func TestLoad_LocalTestDefaults(t *testing.T) {
	t.Setenv("SENSORDOCS_CONFIG", "")
	t.Setenv("localtest", "true")
	t.Setenv("MongoDB_Hosts", "")
	t.Setenv("MongoDB_Database", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mongo.Hosts != "localhost" || cfg.Mongo.Database != "unitTest" {
		t.Errorf("unexpected localtest defaults %+v", cfg.Mongo)
	}
	if got := cfg.Mongo.ConnectionURI(); got != "mongodb://localhost/unitTest" {
		t.Errorf("unexpected uri %q", got)
	}
}
