package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Index.Partitions)
	assert.Equal(t, filepath.Join("data", SubsystemName), cfg.Index.RootPath)
	assert.Equal(t, "memory", cfg.ObjectStore.Backend)
	assert.Equal(t, 100, cfg.Index.StreamBatchSize)
	assert.NotEmpty(t, cfg.Node.Name)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
node:
  name: node-7
index:
  partitions: 16
  rootPath: /var/lib/tessera
objectStore:
  backend: postgres
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node-7", cfg.Node.Name)
	assert.Equal(t, 16, cfg.Index.Partitions)
	assert.Equal(t, "/var/lib/tessera", cfg.Index.RootPath)
	assert.Equal(t, "postgres", cfg.ObjectStore.Backend)
	// Unspecified values keep their defaults.
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsNonPositivePartitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  partitions: 0\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "partitions")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TS_NODE_NAME", "env-node")
	t.Setenv("TS_INDEX_PARTITIONS", "4")
	t.Setenv("TS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TS_REDIS_ADDR", "redis:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-node", cfg.Node.Name)
	assert.Equal(t, 4, cfg.Index.Partitions)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
}

func TestPartitionPath(t *testing.T) {
	cfg := IndexConfig{RootPath: "/data/tessera"}
	assert.Equal(t, filepath.Join("/data/tessera", "partition-3"), cfg.PartitionPath(3))
}
