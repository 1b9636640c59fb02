package transport

import (
	"context"
	"fmt"
	"time"

	"geomonitoring/internal/repository"
)

const DefaultDeadLetterStream = "geo:ingest:deadletter"

// StreamDeadLetter appends rejected deliveries to a capped redis stream.
type StreamDeadLetter struct {
	cache  repository.CacheRepository
	stream string
	maxLen int64
}

func NewStreamDeadLetter(cache repository.CacheRepository, stream string, maxLen int64) *StreamDeadLetter {
	if stream == "" {
		stream = DefaultDeadLetterStream
	}
	return &StreamDeadLetter{cache: cache, stream: stream, maxLen: maxLen}
}

func (d *StreamDeadLetter) Send(ctx context.Context, topic string, payload []byte, reason error) error {
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	_, err := d.cache.AppendStream(ctx, d.stream, d.maxLen, map[string]interface{}{
		"topic":       topic,
		"payload":     string(payload),
		"reason":      msg,
		"received_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("append to %s: %w", d.stream, err)
	}
	return nil
}
