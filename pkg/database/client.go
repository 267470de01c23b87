package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

// NewClient 依 Driver 建立並回傳一個新的資料庫客戶端實例 (GORM)
//
// 參數:
//
//	cfg: Config - 連線配置
//	logger: SQL 與連線重試的 log 輸出
//
// 回傳值:
//
//	*Client: 封裝後的客戶端
//	error: 若重試後仍連線失敗則回傳錯誤
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverMySQL, "":
		dialector = mysql.Open(cfg.DSN())
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	return NewClientWithDialector(ctx, dialector, cfg, logger)
}

// NewClientWithDialector 以指定的 dialector 建立客戶端 (測試時可傳入 sqlite)
func NewClientWithDialector(ctx context.Context, dialector gorm.Dialector, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	gormConfig := &gorm.Config{
		// 帳務寫入一律包在明確的 Transaction 內，不需要 GORM 額外再包一層
		SkipDefaultTransaction: true,
		// 讓 gorm.ErrDuplicatedKey 等錯誤跨驅動一致
		TranslateError: true,
		Logger:         NewGormLogger(logger, cfg.LogLevel, cfg.SlowThreshold),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 1
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	attempt := 0
	db, err := backoff.Retry(ctx, func() (*gorm.DB, error) {
		attempt++
		db, err := gorm.Open(dialector, gormConfig)
		if err == nil {
			// ping 確認連線真的可用
			rawDB, dbErr := db.DB()
			if err = dbErr; err == nil {
				if err = rawDB.PingContext(ctx); err == nil {
					return db, nil
				}
			}
		}
		if attempt < retries {
			logger.WarnContext(ctx, "failed to connect to database, retrying",
				"driver", dialector.Name(), "attempt", attempt, "max_attempts", retries, "retry_in", interval, "error", err)
		}
		return nil, err
	}, backoff.WithBackOff(backoff.NewConstantBackOff(interval)), backoff.WithMaxTries(uint(retries)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", dialector.Name(), attempt, err)
	}

	// 取得底層 sql.DB 物件以設定連線池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.db: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.InfoContext(ctx, "database connected", "driver", dialector.Name())
	return &Client{db: db}, nil
}

// DB 回傳底層的 *gorm.DB 實例，供儲存層使用
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
