// Package notify publishes sync status transitions to an external sink.
// Only the event shape is fixed; the default transports are Redis pub/sub
// and the process log.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/voyagen/streamvault/internal/cache"
)

// Counts reports per-kind rows after a completed sync.
type Counts struct {
	Live   int `json:"live"`
	Movies int `json:"movies"`
	Series int `json:"series"`
}

// Event is one provider status transition. Counts is set only on completion.
type Event struct {
	ProviderID int64   `json:"provider_id"`
	Status     string  `json:"status"`
	Counts     *Counts `json:"counts,omitempty"`
}

// Sink receives sync status events.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// LogSink writes events to the process log. Used when Redis is not configured.
type LogSink struct {
	Log *logrus.Logger
}

func (s *LogSink) Publish(_ context.Context, ev Event) error {
	fields := logrus.Fields{"provider_id": ev.ProviderID, "status": ev.Status}
	if ev.Counts != nil {
		fields["live"] = ev.Counts.Live
		fields["movies"] = ev.Counts.Movies
		fields["series"] = ev.Counts.Series
	}
	s.Log.WithFields(fields).Info("sync status")
	return nil
}

// DefaultChannel is the Redis pub/sub channel for sync events.
const DefaultChannel = "streamvault:events:sync"

// RedisSink publishes events as JSON on a Redis pub/sub channel.
type RedisSink struct {
	Redis   *cache.Redis
	Channel string
}

func (s *RedisSink) Publish(ctx context.Context, ev Event) error {
	ch := s.Channel
	if ch == "" {
		ch = DefaultChannel
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify marshal: %w", err)
	}
	if err := s.Redis.Client().Publish(ctx, ch, data).Err(); err != nil {
		return fmt.Errorf("notify publish: %w", err)
	}
	return nil
}
