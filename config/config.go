package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/storage"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		Prod       bool             `env:"TCS_PROD" envDefault:"false" yaml:"prod"`
		Common     CommonConfig     `yaml:"common"`
		Storage    StorageConfig    `yaml:"storage"`
		Recording  RecordingConfig  `yaml:"recording"`
		Polling    PollingConfig    `yaml:"polling" envPrefix:"TCS_POLLING_"`
		Monitoring MonitoringConfig `yaml:"monitoring"`
	}

	CommonConfig struct {
		// Domain is the zone the DNS recording server is authoritative for.
		Domain     string `env:"TCS_DOMAIN" yaml:"domain"`
		ExternalIP string `env:"TCS_EXTERNAL_IP" envDefault:"127.0.0.1" yaml:"external_ip"`
	}

	StorageConfig struct {
		InMemory InMemoryConfig `yaml:"in_memory"`
		Redis    RedisConfig    `yaml:"redis"`
	}

	InMemoryConfig struct {
		Enabled             bool  `env:"TCS_STORAGE_IN_MEMORY_ENABLED" envDefault:"true" yaml:"enabled"`
		InteractionTTLSecs  int64 `env:"TCS_STORAGE_IN_MEMORY_INTERACTION_TTL_SECS" envDefault:"3600" yaml:"interaction_ttl_secs"`
		CleanupIntervalSecs int64 `env:"TCS_STORAGE_IN_MEMORY_CLEANUP_INTERVAL_SECS" envDefault:"60" yaml:"cleanup_interval_secs"`
	}

	RedisConfig struct {
		Enabled            bool   `env:"TCS_STORAGE_REDIS_ENABLED" envDefault:"false" yaml:"enabled"`
		InteractionTTLSecs int64  `env:"TCS_STORAGE_REDIS_INTERACTION_TTL_SECS" envDefault:"3600" yaml:"interaction_ttl_secs"`
		ReadEndpointHost   string `env:"TCS_STORAGE_REDIS_READ_ENDPOINT_HOST" envDefault:"localhost" yaml:"read_endpoint_host"`
		ReadEndpointPort   int    `env:"TCS_STORAGE_REDIS_READ_ENDPOINT_PORT" envDefault:"6379" yaml:"read_endpoint_port"`
		WriteEndpointHost  string `env:"TCS_STORAGE_REDIS_WRITE_ENDPOINT_HOST" envDefault:"localhost" yaml:"write_endpoint_host"`
		WriteEndpointPort  int    `env:"TCS_STORAGE_REDIS_WRITE_ENDPOINT_PORT" envDefault:"6379" yaml:"write_endpoint_port"`
	}

	RecordingConfig struct {
		DNS  ServerConfig `yaml:"dns" envPrefix:"TCS_RECORDING_DNS_"`
		HTTP ServerConfig `yaml:"http" envPrefix:"TCS_RECORDING_HTTP_"`
	}

	ServerConfig struct {
		Enabled        bool  `env:"ENABLED" yaml:"enabled"`
		Port           int   `env:"PORT" yaml:"port"`
		WorkerPoolSize int64 `env:"WORKER_POOL_SIZE" yaml:"worker_pool_size"`
	}

	// PollingConfig configures the polling server, which always runs.
	PollingConfig struct {
		Port           int   `env:"PORT" yaml:"port"`
		WorkerPoolSize int64 `env:"WORKER_POOL_SIZE" yaml:"worker_pool_size"`
	}

	MonitoringConfig struct {
		// MetricsPort serves Prometheus metrics when non-zero.
		MetricsPort int `env:"TCS_MONITORING_METRICS_PORT" envDefault:"0" yaml:"metrics_port"`
	}
)

// defaults covers the fields whose env tags are shared between servers.
func defaults() *Config {
	return &Config{
		Recording: RecordingConfig{
			DNS:  ServerConfig{Enabled: false, Port: 8053},
			HTTP: ServerConfig{Enabled: true, Port: 8881},
		},
		Polling: PollingConfig{Port: 8880},
	}
}

// Load reads the configuration from the environment and then overlays the
// YAML file at path, if any. The result is not validated.
func Load(path string) (*Config, error) {
	c := defaults()
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment: %w", err)
	}

	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return c, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	mem, redis := c.Storage.InMemory, c.Storage.Redis
	if mem.Enabled == redis.Enabled {
		errs = append(errs, errors.New("exactly one of storage.in_memory and storage.redis must be enabled"))
	}
	if mem.Enabled {
		if mem.InteractionTTLSecs <= 0 {
			errs = append(errs, errors.New("storage.in_memory.interaction_ttl_secs must be positive"))
		}
		if mem.CleanupIntervalSecs <= 0 {
			errs = append(errs, errors.New("storage.in_memory.cleanup_interval_secs must be positive"))
		}
	}
	if redis.Enabled {
		if redis.InteractionTTLSecs <= 0 {
			errs = append(errs, errors.New("storage.redis.interaction_ttl_secs must be positive"))
		}
		if redis.ReadEndpointHost == "" {
			errs = append(errs, errors.New("storage.redis.read_endpoint_host is required"))
		}
		if redis.WriteEndpointHost == "" {
			errs = append(errs, errors.New("storage.redis.write_endpoint_host is required"))
		}
		errs = append(errs, checkPort("storage.redis.read_endpoint_port", redis.ReadEndpointPort))
		errs = append(errs, checkPort("storage.redis.write_endpoint_port", redis.WriteEndpointPort))
	}

	if c.Recording.DNS.Enabled {
		if c.Common.Domain == "" {
			errs = append(errs, errors.New("common.domain is required when dns recording is enabled"))
		}
		if _, err := netip.ParseAddr(c.Common.ExternalIP); err != nil {
			errs = append(errs, fmt.Errorf("common.external_ip is not valid: %q", c.Common.ExternalIP))
		}
	}

	ports := map[int]string{}
	for _, s := range []struct {
		name string
		cfg  ServerConfig
	}{
		{"recording.dns", c.Recording.DNS},
		{"recording.http", c.Recording.HTTP},
		{"polling", ServerConfig{Enabled: true, Port: c.Polling.Port, WorkerPoolSize: c.Polling.WorkerPoolSize}},
		{"monitoring", ServerConfig{Enabled: c.Monitoring.MetricsPort != 0, Port: c.Monitoring.MetricsPort}},
	} {
		if !s.cfg.Enabled {
			continue
		}
		errs = append(errs, checkPort(s.name+".port", s.cfg.Port))
		if s.cfg.WorkerPoolSize < 0 {
			errs = append(errs, fmt.Errorf("%s.worker_pool_size must not be negative", s.name))
		}
		// dns listens on udp, so it may share a port number with a tcp server
		if s.name == "recording.dns" {
			continue
		}
		if other, ok := ports[s.cfg.Port]; ok {
			errs = append(errs, fmt.Errorf("%s.port collides with %s.port", s.name, other))
		}
		ports[s.cfg.Port] = s.name
	}
	return errors.Join(errs...)
}

func checkPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in 1..65535, got %d", name, port)
	}
	return nil
}

func (c *Config) StorageOptions() storage.Options {
	var opts storage.Options
	if m := c.Storage.InMemory; m.Enabled {
		opts.Memory = &storage.MemoryConfig{
			InteractionTTL:  time.Duration(m.InteractionTTLSecs) * time.Second,
			CleanupInterval: time.Duration(m.CleanupIntervalSecs) * time.Second,
		}
	}
	if r := c.Storage.Redis; r.Enabled {
		opts.Valkey = &storage.ValkeyConfig{
			InteractionTTL: time.Duration(r.InteractionTTLSecs) * time.Second,
			ReadAddress:    net.JoinHostPort(r.ReadEndpointHost, strconv.Itoa(r.ReadEndpointPort)),
			WriteAddress:   net.JoinHostPort(r.WriteEndpointHost, strconv.Itoa(r.WriteEndpointPort)),
		}
	}
	return opts
}

func ListenAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
