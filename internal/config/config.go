package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	BrickLink BrickLinkConfig `yaml:"bricklink"`
	BrickOwl  BrickOwlConfig  `yaml:"brickowl"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Transport TransportConfig `yaml:"transport"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
}

type ServerConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	WorkerCount int    `yaml:"worker_count"`
	QueueSize   int    `yaml:"queue_size"`
}

type BrickLinkConfig struct {
	APIHost             string `yaml:"api_host"`
	AccountHost         string `yaml:"account_host"`
	WebHost             string `yaml:"web_host"`
	Authorization       string `yaml:"authorization"`
	BrickStoreToken     string `yaml:"brickstore_token"`
	ClientID            string `yaml:"client_id"`
	AllowEmptyInventory bool   `yaml:"allow_empty_inventory"`
}

type BrickOwlConfig struct {
	APIHost             string `yaml:"api_host"`
	Key                 string `yaml:"key"`
	ReuseEmpty          bool   `yaml:"reuse_empty"`
	MinimumOrderDate    int64  `yaml:"minimum_order_date"`
	AllowEmptyInventory bool   `yaml:"allow_empty_inventory"`
}

type SnapshotConfig struct {
	MaxRestarts        int           `yaml:"max_restarts"`
	SettleDelay        time.Duration `yaml:"settle_delay"`
	TrackerMaxFailures int           `yaml:"tracker_max_failures"`
	DiagnosticsDir     string        `yaml:"diagnostics_dir"`
	LockTTL            time.Duration `yaml:"lock_ttl"`
}

type TransportConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // mysql, postgres or none
	DSN    string `yaml:"dsn"`
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:    ":8080",
			GRPCAddr:    ":50051",
			WorkerCount: 4,
			QueueSize:   64,
		},
		BrickLink: BrickLinkConfig{
			APIHost:     "api.bricklink.com",
			AccountHost: "account.bricklink.com",
			WebHost:     "www.bricklink.com",
		},
		BrickOwl: BrickOwlConfig{
			APIHost: "api.brickowl.com",
		},
		Snapshot: SnapshotConfig{
			MaxRestarts:        5,
			SettleDelay:        2500 * time.Millisecond,
			TrackerMaxFailures: 4,
			LockTTL:            5 * time.Minute,
		},
		Transport: TransportConfig{
			Timeout:      60 * time.Second,
			MaxRetries:   2,
			RetryBackoff: time.Second,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Database: DatabaseConfig{
			Driver: "mysql",
			DSN:    "root:root@tcp(localhost:3306)/invsnap?parseTime=true",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "none", "":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.BrickLink.BrickStoreToken != "" && c.BrickLink.Authorization == "" {
		return fmt.Errorf("bricklink.brickstore_token requires bricklink.authorization")
	}
	if c.Snapshot.MaxRestarts < 0 {
		return fmt.Errorf("snapshot.max_restarts must not be negative")
	}
	if c.Transport.MaxRetries < 0 {
		return fmt.Errorf("transport.max_retries must not be negative")
	}
	return nil
}
