package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"fusion-trader/internal/types"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each TradeEvent as a JSON message keyed by instrument,
// so one instrument's events stay ordered within a partition.
type KafkaPublisher struct {
	w      messageWriter
	topic  string
	logger *zap.Logger
}

// EnsureTopic attempts to create the topic (best-effort).
func EnsureTopic(ctx context.Context, broker, topic string, logger *zap.Logger) {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		logger.Warn("ensure topic: dial failed", zap.String("broker", broker), zap.Error(err))
		return
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Info("ensure topic: create failed (ok if exists)", zap.String("topic", topic), zap.Error(err))
	}
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Dialer:       dialer,
		BatchTimeout: 200 * time.Millisecond,
		RequiredAcks: int(kafka.RequireOne),
	})
	return newKafkaPublisher(w, topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{w: w, topic: topic, logger: logger}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Publish(ctx context.Context, ev types.TradeEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode trade event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.Trade.Instrument),
		Value: b,
		Time:  ev.Trade.Ts,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish trade event",
			zap.String("topic", p.topic),
			zap.String("trade_id", ev.Trade.ID),
			zap.Error(err),
		)
		return fmt.Errorf("kafka write: %w", err)
	}
	p.logger.Debug("trade event published",
		zap.String("topic", p.topic),
		zap.String("trade_id", ev.Trade.ID),
		zap.String("instrument", ev.Trade.Instrument),
	)
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
