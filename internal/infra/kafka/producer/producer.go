package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/craft/internal/backoff"
	"github.com/aliskhannn/craft/internal/config"
	"github.com/aliskhannn/craft/internal/model"
)

// Headers attached to parked messages.
const (
	HeaderSourceTopic     = "x-source-topic"
	HeaderSourcePartition = "x-source-partition"
	HeaderSourceOffset    = "x-source-offset"
	HeaderError           = "x-error"
)

// Producer publishes ad events to Kafka.
type Producer struct {
	Client   *wbfkafka.Producer
	strategy retry.Strategy
	cfg      *config.Kafka
}

// New creates a new Producer for the configured topic.
func New(cfg *config.Kafka, s retry.Strategy) *Producer {
	producer := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)

	return &Producer{
		Client:   producer,
		cfg:      cfg,
		strategy: s,
	}
}

// Produce serializes the event to JSON and sends it to Kafka.
// The ad ID is used as the message key.
func (p *Producer) Produce(ctx context.Context, ev model.AdGenerated) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := []byte(ev.ID.String())

	err = backoff.Do(ctx, p.strategy, nil, func(ctx context.Context) error {
		return p.Client.Send(ctx, key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}

	return nil
}

// DeadLetter parks ad events that could not be handled on a separate topic.
type DeadLetter struct {
	Client   *wbfkafka.Producer
	strategy retry.Strategy
}

// NewDeadLetter creates a DeadLetter producer for the configured dead letter topic.
func NewDeadLetter(cfg *config.Kafka, s retry.Strategy) *DeadLetter {
	return &DeadLetter{
		Client:   wbfkafka.NewProducer(cfg.Brokers, cfg.DeadLetterTopic),
		strategy: s,
	}
}

// Park copies msg to the dead letter topic, recording where it came from and why it failed.
func (d *DeadLetter) Park(ctx context.Context, msg kafka.Message, cause error) error {
	parked := deadLetterMessage(msg, cause)

	err := backoff.Do(ctx, d.strategy, nil, func(ctx context.Context) error {
		return d.Client.Writer.WriteMessages(ctx, parked)
	})
	if err != nil {
		return fmt.Errorf("failed to park message: %w", err)
	}

	return nil
}

func deadLetterMessage(msg kafka.Message, cause error) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderSourceTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderSourcePartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderSourceOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderError, Value: []byte(cause.Error())},
	)

	return kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}
