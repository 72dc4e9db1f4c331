// Package kafkaconsumer drops cached object documents when update events
// arrive on a Kafka topic.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/geodov/godov/internal/cache"
	obs "github.com/geodov/godov/internal/core/observability"
	"github.com/geodov/godov/internal/invalidation"
)

type Consumer struct {
	cfg     Config
	logger  *slog.Logger
	cache   cache.Cache
	metrics *obs.Metrics
}

func New(cfg Config, logger *slog.Logger, c cache.Cache, m *obs.Metrics) *Consumer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Consumer{
		cfg:     cfg,
		logger:  logger,
		cache:   c,
		metrics: m,
	}
}

// Start consumes update events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("kafkaconsumer: missing cache")
	}
	if len(c.cfg.Brokers) == 0 || c.cfg.Topic == "" {
		return errors.New("kafkaconsumer: brokers and topic are required")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}
	c.logger.Info("cache invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
			c.logger.Error("consumer error", "err", err, "topic", c.cfg.Topic)
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
		}
		if ctx.Err() != nil {
			c.logger.Info("cache invalidation consumer shutting down")
			return nil
		}
	}
}

// ProcessOne decodes one event and invalidates its documents. Invalid
// events are logged and skipped; cache failures are returned so the
// message is not marked.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger.WarnContext(ctx, "undecodable update event skipped",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		c.logger.WarnContext(ctx, "invalid update event skipped",
			"topic", msg.Topic, "offset", msg.Offset, "err", err)
		return nil
	}

	for i, pk := range ev.Pkeys {
		if err := c.cache.Invalidate(ctx, pk); err != nil {
			c.metrics.AddInvalidations(ev.Op, i)
			return fmt.Errorf("invalidate %s: %w", pk, err)
		}
	}
	c.metrics.AddInvalidations(ev.Op, len(ev.Pkeys))
	c.metrics.ObserveUpstream("kafka_invalidation", time.Since(start))
	c.logger.DebugContext(ctx, "invalidated documents",
		"op", ev.Op, "typename", ev.Typename, "pkeys", len(ev.Pkeys))
	return nil
}
