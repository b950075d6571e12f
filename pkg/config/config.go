// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Node, Index, Kafka, Redis, Postgres, ObjectStore, etc.).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SubsystemName is the fixed directory name joined onto the data root when
// no explicit rootPath is configured.
const SubsystemName = "tessera"

// Config is the top-level application configuration.
type Config struct {
	Node        NodeConfig        `yaml:"node"`
	Index       IndexConfig       `yaml:"index"`
	Schema      SchemaConfig      `yaml:"schema"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// NodeConfig identifies this logical node in the cluster.
type NodeConfig struct {
	Name string `yaml:"name"`
}

// IndexConfig controls the partitioned local index stores: where they live
// on disk, how many partitions this node hosts, and when in-memory postings
// spill to segment files.
type IndexConfig struct {
	RootPath        string        `yaml:"rootPath"`
	Partitions      int           `yaml:"partitions"`
	SegmentMaxSize  int64         `yaml:"segmentMaxSize"`
	FlushInterval   time.Duration `yaml:"flushInterval"`
	StreamBatchSize int           `yaml:"streamBatchSize"`
}

// PartitionPath returns the store directory for the given partition id.
func (c IndexConfig) PartitionPath(id int) string {
	return filepath.Join(c.RootPath, fmt.Sprintf("partition-%d", id))
}

// SchemaConfig locates the on-disk index schema definitions.
type SchemaConfig struct {
	Dir string `yaml:"dir"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
}

// RedisConfig holds the document-cache connection parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// PostgresConfig holds PostgreSQL connection parameters for the
// postgres-backed object store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ObjectStoreConfig selects and configures the document object store
// backend. Backend is one of "memory", "postgres", or "minio".
type ObjectStoreConfig struct {
	Backend string      `yaml:"backend"`
	Minio   MinioConfig `yaml:"minio"`
}

// MinioConfig holds credentials for an S3-compatible object store.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"useSSL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if cfg.Index.Partitions <= 0 {
		return nil, fmt.Errorf("index.partitions must be positive, got %d", cfg.Index.Partitions)
	}
	return cfg, nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return &Config{
		Node: NodeConfig{
			Name: hostname,
		},
		Index: IndexConfig{
			RootPath:        filepath.Join("data", SubsystemName),
			Partitions:      8,
			SegmentMaxSize:  32 * 1024 * 1024,
			FlushInterval:   30 * time.Second,
			StreamBatchSize: 100,
		},
		Schema: SchemaConfig{
			Dir: filepath.Join("configs", "schemas"),
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "tessera-indexer",
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "tessera",
			User:            "tessera",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Backend: "memory",
			Minio: MinioConfig{
				Endpoint: "localhost:9000",
				Bucket:   "tessera-documents",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads TS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TS_NODE_NAME"); v != "" {
		cfg.Node.Name = v
	}
	if v := os.Getenv("TS_INDEX_ROOT_PATH"); v != "" {
		cfg.Index.RootPath = v
	}
	if v := os.Getenv("TS_INDEX_PARTITIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.Partitions = n
		}
	}
	if v := os.Getenv("TS_SCHEMA_DIR"); v != "" {
		cfg.Schema.Dir = v
	}
	if v := os.Getenv("TS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TS_KAFKA_CONSUMER_GROUP"); v != "" {
		cfg.Kafka.ConsumerGroup = v
	}
	if v := os.Getenv("TS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("TS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("TS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TS_OBJECT_STORE_BACKEND"); v != "" {
		cfg.ObjectStore.Backend = v
	}
	if v := os.Getenv("TS_MINIO_ENDPOINT"); v != "" {
		cfg.ObjectStore.Minio.Endpoint = v
	}
	if v := os.Getenv("TS_MINIO_ACCESS_KEY"); v != "" {
		cfg.ObjectStore.Minio.AccessKey = v
	}
	if v := os.Getenv("TS_MINIO_SECRET_KEY"); v != "" {
		cfg.ObjectStore.Minio.SecretKey = v
	}
	if v := os.Getenv("TS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
