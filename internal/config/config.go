// Package config 載入 config.yaml 與 .env
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-bank-ledger/pkg/database"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
)

// 帳本後端
const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Ledger   LedgerConfig    `yaml:"ledger"`
	Database database.Config `yaml:"database"`
	Auth     AuthConfig      `yaml:"auth"`
	Kafka    KafkaConfig     `yaml:"kafka"`
	Log      logger.Config   `yaml:"log"`
	Retry    RetryConfig     `yaml:"retry"`
}

type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LedgerConfig struct {
	// Backend: "memory" (MutexLedger + WAL) 或 "mysql" (SQLLedger，依 database.driver 連 MySQL / Postgres)
	Backend     string `yaml:"backend"`
	WALPath     string `yaml:"wal_path"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type AuthConfig struct {
	AccessSecret  string        `yaml:"access_secret"`
	RefreshSecret string        `yaml:"refresh_secret"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	QueueSize    int           `yaml:"queue_size"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// RetryConfig 並發衝突時整個 unit of work 的重試策略
type RetryConfig struct {
	MaxAttempts     uint          `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// Load 讀取設定檔
//
// 先載入同目錄下的 .env (不存在則略過)，再以環境變數展開 yaml 內的 ${VAR}，
// 最後補上預設值並檢查。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(raw)
}

// Parse 解析 yaml 內容 (已展開環境變數)
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults 補全預設配置 (如果 yaml 沒寫)
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = ":50051"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Ledger.Backend == "" {
		c.Ledger.Backend = BackendMemory
	}
	if c.Ledger.WALPath == "" {
		c.Ledger.WALPath = "data/ledger.wal"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = database.DriverMySQL
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
		if c.Database.Driver == database.DriverPostgres {
			c.Database.Port = 5432
		}
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 100
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Database.ConnectRetries == 0 {
		c.Database.ConnectRetries = 10
	}
	if c.Database.RetryInterval == 0 {
		c.Database.RetryInterval = 2 * time.Second
	}
	if c.Database.SlowThreshold == 0 {
		c.Database.SlowThreshold = 200 * time.Millisecond
	}

	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 12
	}

	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "ledger.transactions"
	}
	if c.Kafka.QueueSize == 0 {
		c.Kafka.QueueSize = 4096
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 50 * time.Millisecond
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Log.FilePath == "" {
		c.Log.FilePath = "logs/core.log"
	}
	if c.Log.MaxSize == 0 {
		c.Log.MaxSize = 100
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialInterval == 0 {
		c.Retry.InitialInterval = 10 * time.Millisecond
	}
	if c.Retry.MaxInterval == 0 {
		c.Retry.MaxInterval = 200 * time.Millisecond
	}
}

// Validate 檢查設定是否完整
func (c *Config) Validate() error {
	var errs []error
	switch c.Ledger.Backend {
	case BackendMemory, BackendMySQL:
	default:
		errs = append(errs, fmt.Errorf("ledger.backend must be %q or %q, got %q", BackendMemory, BackendMySQL, c.Ledger.Backend))
	}
	if c.Ledger.Backend == BackendMySQL {
		switch c.Database.Driver {
		case database.DriverMySQL, database.DriverPostgres:
		default:
			errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q", database.DriverMySQL, database.DriverPostgres, c.Database.Driver))
		}
		if c.Database.Host == "" || c.Database.DBName == "" {
			errs = append(errs, errors.New("database.host and database.name are required"))
		}
	}
	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		errs = append(errs, errors.New("auth.access_secret and auth.refresh_secret are required"))
	}
	if c.Auth.AccessSecret != "" && c.Auth.AccessSecret == c.Auth.RefreshSecret {
		errs = append(errs, errors.New("auth.access_secret and auth.refresh_secret must differ"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	return errors.Join(errs...)
}
