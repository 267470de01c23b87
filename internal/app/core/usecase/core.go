package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// 操作結果分類，用於 metrics 與 log
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeTransient = "transient"
	OutcomeError     = "error"
)

// RetryPolicy 並發衝突時整個 unit of work 的重試策略
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy 預設重試 3 次
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 10 * time.Millisecond,
	MaxInterval:     200 * time.Millisecond,
}

// CoreUseCase 是核心業務邏輯層
type CoreUseCase struct {
	ledger    Ledger
	allocator AccountNumberAllocator
	publisher EventPublisher
	observer  Observer
	logger    *slog.Logger
	retry     RetryPolicy
}

// Option 定義了 CoreUseCase 的配置選項函數
type Option func(*CoreUseCase)

// WithPublisher 設定 commit 後的事件出口
func WithPublisher(p EventPublisher) Option {
	return func(c *CoreUseCase) {
		c.publisher = p
	}
}

// WithObserver 設定 metrics 觀測
func WithObserver(o Observer) Option {
	return func(c *CoreUseCase) {
		c.observer = o
	}
}

// WithLogger 設定 logger
func WithLogger(l *slog.Logger) Option {
	return func(c *CoreUseCase) {
		c.logger = l
	}
}

// WithRetryPolicy 設定衝突重試策略
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *CoreUseCase) {
		c.retry = p
	}
}

// WithAllocator 設定帳號配發器
func WithAllocator(a AccountNumberAllocator) Option {
	return func(c *CoreUseCase) {
		c.allocator = a
	}
}

func NewCoreUseCase(ledger Ledger, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		ledger:    ledger,
		allocator: NewRandomAllocator(),
		logger:    slog.Default(),
		retry:     DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// runUnit 執行一個 unit of work；遇到 ErrConflict 時以指數退避重新執行整個 unit
func (c *CoreUseCase) runUnit(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	attempts := c.retry.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	if c.retry.InitialInterval > 0 {
		b.InitialInterval = c.retry.InitialInterval
	}
	if c.retry.MaxInterval > 0 {
		b.MaxInterval = c.retry.MaxInterval
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.ledger.RunInTx(ctx, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, domain.ErrConflict):
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(attempts))
	return err
}

// finish 記錄操作結果 (metrics + log)
func (c *CoreUseCase) finish(ctx context.Context, op, account string, start time.Time, err error) {
	outcome := classify(err)
	if c.observer != nil {
		c.observer.ObserveOperation(op, outcome, time.Since(start))
	}
	switch outcome {
	case OutcomeSuccess:
		c.logger.DebugContext(ctx, "ledger operation committed", "op", op, "account", account)
	case OutcomeRejected:
		c.logger.WarnContext(ctx, "ledger operation rejected", "op", op, "account", account, "error", err)
	case OutcomeTransient:
		c.logger.ErrorContext(ctx, "ledger operation aborted", "op", op, "account", account, "error", err)
	default:
		if errors.Is(err, domain.ErrInvariantViolation) {
			c.logger.ErrorContext(ctx, "ledger invariant violated, operation aborted", "op", op, "account", account, "error", err)
			return
		}
		c.logger.ErrorContext(ctx, "ledger operation failed", "op", op, "account", account, "error", err)
	}
}

// publish commit 之後發佈事件，失敗只記 log，不影響已落地的帳本
func (c *CoreUseCase) publish(ctx context.Context, trans ...*domain.Transaction) {
	if c.publisher == nil || len(trans) == 0 {
		return
	}
	events := make([]domain.TransactionCommitted, 0, len(trans))
	for _, tran := range trans {
		events = append(events, domain.NewTransactionCommitted(tran))
	}
	if err := c.publisher.Publish(ctx, events...); err != nil {
		c.logger.WarnContext(ctx, "failed to publish ledger events", "count", len(events), "error", err)
	}
}

func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case domain.IsBusiness(err):
		return OutcomeRejected
	case domain.IsTransient(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTransient
	default:
		return OutcomeError
	}
}
