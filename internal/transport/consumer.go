package transport

import (
	"context"
	"errors"
	"time"

	"geomonitoring/internal/ingest"
	"geomonitoring/internal/models"

	"go.uber.org/zap"
)

const (
	CounterAccepted   = "geo:ingest:accepted"
	CounterRejected   = "geo:ingest:rejected"
	CounterDuplicates = "geo:ingest:duplicates"
)

type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topics ...string) error
}

type Ingester interface {
	Ingest(ctx context.Context, sensorID uint, timestamp time.Time, value float64, unit string) (*models.Reading, error)
}

// DeadLetter keeps deliveries that could not be ingested for later inspection.
type DeadLetter interface {
	Send(ctx context.Context, topic string, payload []byte, reason error) error
}

type Counter interface {
	Increment(ctx context.Context, key string) (int64, error)
}

type ConsumerOptions struct {
	Topic   string
	QoS     byte
	Timeout time.Duration
	Counter Counter
}

// Consumer feeds MQTT deliveries into the ingestion pipeline. Each message is
// handled independently; there is no redelivery on failure.
type Consumer struct {
	sub        Subscriber
	ingester   Ingester
	deadLetter DeadLetter
	logger     *zap.Logger
	opts       ConsumerOptions
}

func NewConsumer(sub Subscriber, ingester Ingester, deadLetter DeadLetter, logger *zap.Logger, opts ConsumerOptions) *Consumer {
	if opts.Topic == "" {
		opts.Topic = SubscribeTopic
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Consumer{
		sub:        sub,
		ingester:   ingester,
		deadLetter: deadLetter,
		logger:     logger,
		opts:       opts,
	}
}

func (c *Consumer) Start() error {
	if err := c.sub.Subscribe(c.opts.Topic, c.opts.QoS, c.HandleMessage); err != nil {
		return err
	}
	c.logger.Info("mqtt consumer started", zap.String("topic", c.opts.Topic), zap.Uint8("qos", c.opts.QoS))
	return nil
}

func (c *Consumer) Stop() error {
	return c.sub.Unsubscribe(c.opts.Topic)
}

func (c *Consumer) HandleMessage(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()

	msg, err := ParseMessage(topic, payload)
	if err != nil {
		c.reject(ctx, topic, payload, err)
		return err
	}

	reading, err := c.ingester.Ingest(ctx, msg.SensorID, msg.Timestamp, msg.Value, msg.Unit)
	switch {
	case err == nil:
		c.count(ctx, CounterAccepted)
		c.logger.Debug("reading ingested",
			zap.Uint("sensor_id", reading.SensorID),
			zap.Float64("value", reading.Value),
			zap.Bool("is_alert", reading.IsAlert),
		)
		return nil
	case errors.Is(err, ingest.ErrDuplicateReading):
		c.count(ctx, CounterDuplicates)
		c.logger.Debug("duplicate reading skipped", zap.String("topic", topic))
		return nil
	default:
		c.reject(ctx, topic, payload, err)
		return err
	}
}

func (c *Consumer) reject(ctx context.Context, topic string, payload []byte, reason error) {
	c.count(ctx, CounterRejected)
	c.logger.Warn("mqtt message dropped", zap.String("topic", topic), zap.Error(reason))
	if c.deadLetter == nil {
		return
	}
	if err := c.deadLetter.Send(ctx, topic, payload, reason); err != nil {
		c.logger.Error("dead-letter write failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (c *Consumer) count(ctx context.Context, key string) {
	if c.opts.Counter == nil {
		return
	}
	if _, err := c.opts.Counter.Increment(ctx, key); err != nil {
		c.logger.Debug("ingest counter update failed", zap.String("key", key), zap.Error(err))
	}
}
