package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]domain.TransactionCommitted
	err     error
}

func (s *recordingSink) Deliver(ctx context.Context, events []domain.TransactionCommitted) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, events)
	return s.err
}

func (s *recordingSink) delivered() []domain.TransactionCommitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TransactionCommitted
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveEvents(outcome string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[outcome] += n
}

func (o *countingObserver) get(outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[outcome]
}

func event(account string, amount int64) domain.TransactionCommitted {
	tran := domain.NewTransaction(account, domain.TransactionTypeCredit, decimal.NewFromInt(amount), decimal.NewFromInt(amount), "Deposit", "", "")
	return domain.NewTransactionCommitted(tran)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	observer := &countingObserver{}
	d := NewDispatcher(sink, WithBatch(3, 10*time.Millisecond), WithObserver(observer))
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	for i := int64(1); i <= 10; i++ {
		require.NoError(t, d.Publish(ctx, event("100000000001", i)))
	}
	require.Eventually(t, func() bool { return len(sink.delivered()) == 10 }, time.Second, 5*time.Millisecond)
	cancel()
	<-d.Done()

	got := sink.delivered()
	for i, ev := range got {
		assert.True(t, ev.Amount.Equal(decimal.NewFromInt(int64(i+1))), "event %d out of order", i)
	}
	assert.Equal(t, 10, observer.get(metrics.EventPublished))
	for _, b := range sink.batches {
		assert.LessOrEqual(t, len(b), 3)
	}
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	sink := &recordingSink{}
	observer := &countingObserver{}
	// 不啟動迴圈，輸送帶只能放 2 筆
	d := NewDispatcher(sink, WithQueueSize(2), WithObserver(observer))

	err := d.Publish(context.Background(), event("100000000001", 1), event("100000000001", 2), event("100000000001", 3), event("100000000001", 4))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, observer.get(metrics.EventDropped))

	// 關閉時把已排隊的事件送完
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Start(ctx)
	<-d.Done()
	assert.Len(t, sink.delivered(), 2)
	assert.Equal(t, 2, observer.get(metrics.EventPublished))
}

func TestDispatcher_SinkFailureIsCounted(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	observer := &countingObserver{}
	d := NewDispatcher(sink, WithBatch(1, time.Millisecond), WithObserver(observer))
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	require.NoError(t, d.Publish(ctx, event("100000000001", 1), event("100000000002", 2)))
	require.Eventually(t, func() bool { return observer.get(metrics.EventFailed) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-d.Done()
	assert.Zero(t, observer.get(metrics.EventPublished))
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, LogSink{}.Deliver(context.Background(), []domain.TransactionCommitted{event("100000000001", 5)}))
}
