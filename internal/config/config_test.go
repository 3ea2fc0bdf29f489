package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "rabbitmq", cfg.Queue.Type)
	assert.Equal(t, 50, cfg.Batcher.Size)
	assert.Equal(t, 5*time.Second, cfg.Batcher.Timeout)
	assert.Equal(t, 0.9, cfg.Vendor.SuccessRate)
	assert.Equal(t, time.Second, cfg.Vendor.MaxLatency)
	assert.False(t, cfg.Dispatch.RequireDraft)
	assert.False(t, cfg.Delivery.AutoComplete)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	content := `
queue:
  type: redis
  redis_addr: "redis:6379"
batcher:
  size: 10
  timeout: 2s
dispatch:
  require_draft: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
	t.Setenv("CRM_BATCHER_SIZE", "25")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Queue.Type)
	assert.Equal(t, "redis:6379", cfg.Queue.RedisAddr)
	assert.Equal(t, 25, cfg.Batcher.Size)
	assert.Equal(t, 2*time.Second, cfg.Batcher.Timeout)
	assert.True(t, cfg.Dispatch.RequireDraft)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Queue:   QueueConfig{Type: "memory"},
			Batcher: BatcherConfig{Size: 50, Timeout: 5 * time.Second},
			Vendor:  VendorConfig{SuccessRate: 0.9},
			Worker:  WorkerConfig{Concurrency: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"unknown queue", func(c *Config) { c.Queue.Type = "kafka" }, true},
		{"zero batch size", func(c *Config) { c.Batcher.Size = 0 }, true},
		{"zero timeout", func(c *Config) { c.Batcher.Timeout = 0 }, true},
		{"success rate above one", func(c *Config) { c.Vendor.SuccessRate = 1.5 }, true},
		{"no workers", func(c *Config) { c.Worker.Concurrency = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
