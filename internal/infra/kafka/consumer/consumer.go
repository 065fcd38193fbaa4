package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/craft/internal/backoff"
	"github.com/aliskhannn/craft/internal/config"
)

const fetchBackoff = 500 * time.Millisecond

// handler processes a single Kafka message.
type handler interface {
	Handle(ctx context.Context, msg kafka.Message) error
}

// parker moves a message that keeps failing out of the main topic.
type parker interface {
	Park(ctx context.Context, msg kafka.Message, cause error) error
}

// source fetches and commits messages of a consumer group.
type source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// Consumer reads ad events from Kafka and hands them to a handler.
type Consumer struct {
	Client     *wbfkafka.Consumer
	source     source
	handler    handler
	deadLetter parker
	cfg        *config.Kafka
	strategy   retry.Strategy
	pause      time.Duration
}

// New creates a new Consumer. Messages the handler keeps failing on are
// handed to dl before their offset is committed.
func New(cfg *config.Kafka, s retry.Strategy, h handler, dl parker) *Consumer {
	consumer := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	return &Consumer{
		Client:     consumer,
		source:     consumer,
		handler:    h,
		deadLetter: dl,
		cfg:        cfg,
		strategy:   s,
		pause:      fetchBackoff,
	}
}

// Consume fetches messages until ctx is canceled. A message is committed only
// after it has been handled or parked; until then it is processed again, so
// later offsets are never committed past it.
func (c *Consumer) Consume(ctx context.Context) error {
	zlog.Logger.Info().
		Str("topic", c.cfg.Topic).
		Str("group_id", c.cfg.GroupID).
		Msg("starting consumer")

	for {
		if ctx.Err() != nil {
			zlog.Logger.Info().Msg("shutdown signal received, stopping consumer")
			return nil
		}

		var msg kafka.Message
		err := backoff.Do(ctx, c.strategy, nil, func(ctx context.Context) error {
			var fetchErr error
			msg, fetchErr = c.source.Fetch(ctx)
			return fetchErr
		})
		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			zlog.Logger.Err(err).Msg("failed to fetch message")
			c.wait(ctx)
			continue
		}

		for {
			err := c.process(ctx, msg)
			if err == nil || ctx.Err() != nil {
				break
			}

			zlog.Logger.Err(err).
				Int64("offset", msg.Offset).
				Str("key", string(msg.Key)).
				Msg("message left uncommitted, processing it again")
			c.wait(ctx)
		}
	}
}

// process handles msg, retrying transient failures. When the handler still
// fails the message is parked. The offset is committed once either succeeds.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	err := backoff.Do(ctx, c.strategy, retryable, func(ctx context.Context) error {
		return c.handler.Handle(ctx, msg)
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}

		zlog.Logger.Err(err).
			Int64("offset", msg.Offset).
			Str("key", string(msg.Key)).
			Msg("failed to handle ad event, parking it")

		if c.deadLetter == nil {
			return fmt.Errorf("handle message: %w", err)
		}
		if perr := c.deadLetter.Park(ctx, msg, err); perr != nil {
			return fmt.Errorf("park message: %w", perr)
		}
	}

	err = backoff.Do(ctx, c.strategy, retryable, func(ctx context.Context) error {
		return c.source.Commit(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("commit message: %w", err)
	}

	zlog.Logger.Info().
		Int64("offset", msg.Offset).
		Str("key", string(msg.Key)).
		Msg("ad event handled")

	return nil
}

func (c *Consumer) wait(ctx context.Context) {
	timer := time.NewTimer(c.pause)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
