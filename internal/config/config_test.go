package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvRedisAddr, "")
			t.Setenv(EnvResourceDir, "")

			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, "fabseal-worker", cfg.App.Name)
			assert.True(t, cfg.App.IsDevelopment())
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
			assert.Equal(t, 2, cfg.Redis.DB)
			assert.Equal(t, "test:submissions", cfg.Queue.Stream)
			assert.Equal(t, "test:converters", cfg.Queue.Group)
			assert.Equal(t, 500*time.Millisecond, cfg.Queue.BlockTimeout)
			assert.Equal(t, int64(100), cfg.Queue.MaxLen)
			assert.Equal(t, 5*time.Minute, cfg.Limits.ImageTTL)
			assert.Equal(t, 15*time.Minute, cfg.Limits.ResultTTL)
			assert.Equal(t, time.Hour, cfg.Limits.SessionTTL)
			assert.Equal(t, "/opt/blender/blender", cfg.Engine.Tool)
			assert.Equal(t, "/srv/dmstl", cfg.Engine.ResourceDir)
			assert.True(t, cfg.Database.Enabled)
			assert.Equal(t, "fabseal.events", cfg.RabbitMQ.Exchange.Name)
			assert.False(t, cfg.ObjectStore.Enabled)

			// unset values fall back to defaults
			assert.Equal(t, DefaultArtifactTTL, cfg.Limits.ProcessedImageTTL)
			assert.Equal(t, "fsdata_v1", cfg.Limits.Namespace)
			assert.Equal(t, "topic", cfg.RabbitMQ.Exchange.Type)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvRedisAddr, "")
	t.Setenv(EnvResourceDir, "")

	cfg, err := Load("testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, "fabseal:submissions", cfg.Queue.Stream)
	assert.Equal(t, "fabseal:converters", cfg.Queue.Group)
	assert.Equal(t, time.Second, cfg.Queue.BlockTimeout)
	assert.Equal(t, int64(50), cfg.Queue.MaxLen)
	assert.Equal(t, "fsdata_v1", cfg.Limits.Namespace)
	assert.Equal(t, 10*time.Minute, cfg.Limits.InputTTL)
	assert.Equal(t, 10*time.Minute, cfg.Limits.ImageTTL)
	assert.Equal(t, 10*time.Minute, cfg.Limits.ProcessedImageTTL)
	assert.Equal(t, 10*time.Minute, cfg.Limits.ResultTTL)
	assert.Equal(t, 30*time.Minute, cfg.Limits.SessionTTL)
	assert.Equal(t, int64(8<<20), cfg.Limits.MaxUploadSize)
	assert.Equal(t, "/usr/bin/blender", cfg.Engine.Tool)
	assert.False(t, cfg.App.IsDevelopment())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvRedisAddr, "redis.internal:6380")
	t.Setenv(EnvResourceDir, "/opt/dmstl")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, "/opt/dmstl", cfg.Engine.ResourceDir)
}

func TestLimitsConfig_Expirations(t *testing.T) {
	l := LimitsConfig{
		InputTTL:          time.Minute,
		ImageTTL:          2 * time.Minute,
		ProcessedImageTTL: 3 * time.Minute,
		ResultTTL:         4 * time.Minute,
	}

	exp := l.Expirations()
	assert.Equal(t, time.Minute, exp.Input)
	assert.Equal(t, 2*time.Minute, exp.Image)
	assert.Equal(t, 3*time.Minute, exp.ProcessedImage)
	assert.Equal(t, 4*time.Minute, exp.Result)
}

func validConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{Port: 8080},
		Engine: EngineConfig{ResourceDir: "/srv/dmstl"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "missing redis addr",
			mutate:    func(c *Config) { c.Redis.Addr = "" },
			errString: "redis addr is required",
		},
		{
			name:      "missing group",
			mutate:    func(c *Config) { c.Queue.Group = "" },
			errString: "queue stream and group are required",
		},
		{
			name:      "negative result ttl",
			mutate:    func(c *Config) { c.Limits.ResultTTL = -time.Second },
			errString: "result_ttl must be greater than 0",
		},
		{
			name:      "negative block timeout",
			mutate:    func(c *Config) { c.Queue.BlockTimeout = -time.Second },
			errString: "block_timeout must be greater than 0",
		},
		{
			name:      "missing resource dir",
			mutate:    func(c *Config) { c.Engine.ResourceDir = "" },
			errString: "engine resource_dir is required",
		},
		{
			name: "database enabled without host",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Enabled: true, Port: 5432, Database: "fabseal"}
			},
			errString: "database host is required",
		},
		{
			name: "database enabled with bad port",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Enabled: true, Host: "db", Port: 70000, Database: "fabseal"}
			},
			errString: "invalid database port",
		},
		{
			name: "database disabled is not checked",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Enabled: false}
			},
		},
		{
			name: "rabbitmq enabled without exchange",
			mutate: func(c *Config) {
				c.RabbitMQ.Enabled = true
				c.RabbitMQ.Host = "localhost"
				c.RabbitMQ.Port = 5672
			},
			errString: "rabbitmq exchange name is required",
		},
		{
			name: "object store enabled without bucket",
			mutate: func(c *Config) {
				c.ObjectStore = ObjectStoreConfig{Enabled: true, Endpoint: "localhost:9000"}
			},
			errString: "object_store bucket is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:   "worker-only fields are not required",
			mutate: func(c *Config) { c.Engine.ResourceDir = "" },
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			errString: "invalid server port",
		},
		{
			name:      "negative queue length",
			mutate:    func(c *Config) { c.Queue.MaxLen = -1 },
			errString: "max_len must be greater than 0",
		},
		{
			name:      "negative session ttl",
			mutate:    func(c *Config) { c.Limits.SessionTTL = -time.Minute },
			errString: "session_ttl must be greater than 0",
		},
		{
			name:      "negative upload size",
			mutate:    func(c *Config) { c.Limits.MaxUploadSize = -1 },
			errString: "max_upload_size must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestApplyEnv_IgnoresEmpty(t *testing.T) {
	cfg := validConfig()
	env := map[string]string{EnvRedisAddr: "", EnvResourceDir: "/env/dmstl"}

	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, "/env/dmstl", cfg.Engine.ResourceDir)
}
