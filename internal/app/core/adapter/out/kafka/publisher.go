package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Config Kafka 出口設定
type Config struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
}

// messageWriter kafka.Writer 用到的部分
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher 將交易事件寫入 Kafka
// 以帳號作為 key，同一帳戶的事件會落在同一個 partition，保持順序
type Publisher struct {
	writer messageWriter
}

func NewPublisher(cfg Config) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	})
}

func newPublisher(writer messageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// Deliver 一次寫入整批事件
func (p *Publisher) Deliver(ctx context.Context, events []domain.TransactionCommitted) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.TransactionID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.AccountNumber),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(ev.EventType)},
			},
			Time: ev.OccurredAt,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	return nil
}

// Close 送出緩衝中的訊息並關閉連線
func (p *Publisher) Close() error {
	return p.writer.Close()
}
