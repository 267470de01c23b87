package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
)

// ErrQueueFull 輸送帶已滿，事件被丟棄
var ErrQueueFull = errors.New("event queue is full")

// Sink 事件的最終出口 (Kafka、log ...)
type Sink interface {
	Deliver(ctx context.Context, events []domain.TransactionCommitted) error
}

// Observer 記錄事件去向 (pkg/metrics 實作)
type Observer interface {
	ObserveEvents(outcome string, n int)
}

// Dispatcher 單一寫者的事件派送器
//
// Publish(不等待) -> Channel -> Run Loop -> 湊批 -> Sink
//
// 帳本 commit 之後才會進來，派送失敗或丟棄都不影響已落地的帳本。
type Dispatcher struct {
	sink Sink
	// 輸送帶 負責接收事件
	eventChan     chan domain.TransactionCommitted
	batchSize     int
	flushInterval time.Duration
	// drainTimeout: 關閉時把剩下事件送出的時間上限
	drainTimeout time.Duration
	observer     Observer
	logger       *slog.Logger
	done         chan struct{}
}

type Option func(*Dispatcher)

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.eventChan = make(chan domain.TransactionCommitted, n)
		}
	}
}

func WithBatch(size int, interval time.Duration) Option {
	return func(d *Dispatcher) {
		if size > 0 {
			d.batchSize = size
		}
		if interval > 0 {
			d.flushInterval = interval
		}
	}
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher 建立派送器，需呼叫 Start 才會開始送出
func NewDispatcher(sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:          sink,
		eventChan:     make(chan domain.TransactionCommitted, 1024),
		batchSize:     100,
		flushInterval: 50 * time.Millisecond,
		drainTimeout:  5 * time.Second,
		logger:        slog.Default(),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish 把事件放上輸送帶，不會阻塞呼叫端
// 輸送帶滿時丟棄剩下的事件並回傳 ErrQueueFull
func (d *Dispatcher) Publish(ctx context.Context, events ...domain.TransactionCommitted) error {
	for i, ev := range events {
		select {
		case d.eventChan <- ev:
		default:
			d.observe(metrics.EventDropped, len(events)-i)
			return ErrQueueFull
		}
	}
	return nil
}

// Start 啟動派送迴圈 (非同步)，ctx 結束後把剩下的事件送完
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

// Done 派送迴圈結束 (剩餘事件已送出) 時關閉
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.TransactionCommitted, 0, d.batchSize)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的事件處理完
			d.drain(batch)
			return
		case ev := <-d.eventChan:
			batch = append(batch, ev)
			if len(batch) >= d.batchSize {
				d.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				d.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (d *Dispatcher) drain(batch []domain.TransactionCommitted) {
	ctx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-d.eventChan:
			batch = append(batch, ev)
			if len(batch) >= d.batchSize {
				d.flush(ctx, batch)
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				d.flush(ctx, batch)
			}
			return
		}
	}
}

func (d *Dispatcher) flush(ctx context.Context, batch []domain.TransactionCommitted) {
	out := make([]domain.TransactionCommitted, len(batch))
	copy(out, batch)
	if err := d.sink.Deliver(ctx, out); err != nil {
		d.observe(metrics.EventFailed, len(out))
		d.logger.WarnContext(ctx, "failed to deliver ledger events", "count", len(out), "error", err)
		return
	}
	d.observe(metrics.EventPublished, len(out))
}

func (d *Dispatcher) observe(outcome string, n int) {
	if d.observer != nil {
		d.observer.ObserveEvents(outcome, n)
	}
}

// LogSink 未設定 Kafka 時把事件寫進 log
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, events []domain.TransactionCommitted) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, ev := range events {
		logger.DebugContext(ctx, "ledger event",
			"type", ev.EventType,
			"transaction_id", ev.TransactionID,
			"account", ev.AccountNumber,
			"kind", ev.Type.String(),
			"amount", ev.Amount.StringFixed(domain.CurrencyScale))
	}
	return nil
}

var _ usecase.EventPublisher = (*Dispatcher)(nil)
