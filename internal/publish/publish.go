package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/insightdelivered/electricity-bill-converter/internal/config"
	"github.com/insightdelivered/electricity-bill-converter/internal/models"
)

// EventBillSaved is the event type header on every published bill.
const EventBillSaved = "bill.saved"

// Publisher announces stored bills to downstream consumers.
type Publisher interface {
	PublishBill(ctx context.Context, bill models.Bill) error
	Close() error
}

// Nop discards events. Used when Kafka is disabled.
type Nop struct{}

func (Nop) PublishBill(context.Context, models.Bill) error { return nil }
func (Nop) Close() error                                   { return nil }

// KafkaPublisher sends each bill as JSON, keyed by account number so one
// account's bills stay ordered on a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// New returns a KafkaPublisher when cfg.Enabled, otherwise Nop.
func New(cfg config.KafkaConfig, logger *zap.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	saramaConfig, err := producerConfig(cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaPublisher(producer, cfg.Topic, logger), nil
}

// NewKafkaPublisher wraps an existing producer.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger.Named("publish")}
}

func (p *KafkaPublisher) PublishBill(ctx context.Context, bill models.Bill) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(bill)
	if err != nil {
		return fmt.Errorf("failed to encode bill event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(bill.AccountNumber),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(EventBillSaved)},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("failed to publish bill",
			zap.String("bill_id", bill.ID.String()),
			zap.String("topic", p.topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish bill %s: %w", bill.ID, err)
	}
	p.logger.Debug("bill published",
		zap.String("bill_id", bill.ID.String()),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func producerConfig(cfg config.KafkaConfig) (*sarama.Config, error) {
	c := sarama.NewConfig()
	acks, err := parseRequiredAcks(cfg.RequiredAcks)
	if err != nil {
		return nil, err
	}
	c.Producer.RequiredAcks = acks
	c.Producer.Retry.Max = cfg.RetryMax
	// Required by SyncProducer.
	c.Producer.Return.Successes = true
	c.Producer.Return.Errors = true
	c.ClientID = "electricity-bill-converter"
	return c, nil
}

func parseRequiredAcks(v string) (sarama.RequiredAcks, error) {
	switch strings.ToLower(v) {
	case "none", "no_response", "0":
		return sarama.NoResponse, nil
	case "leader", "local", "wait_for_local", "1":
		return sarama.WaitForLocal, nil
	case "", "all", "wait_for_all", "-1":
		return sarama.WaitForAll, nil
	default:
		return sarama.WaitForAll, fmt.Errorf("invalid kafka required_acks: %s", v)
	}
}
