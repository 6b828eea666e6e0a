package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/moderation-ai/modai/automod/engine"

	"github.com/redis/go-redis/v9"
)

var DefaultQueueKey = "modai/track-events"

// Consumes track/untrack events from a redis list. Producers LPUSH JSON-encoded events; this consumer BRPOPs them, so events are handled in order.
type RedisQueue struct {
	Logger      *slog.Logger
	RedisClient *redis.Client
	Key         string
	// how long each BRPOP blocks before re-checking the context
	PollTimeout time.Duration
}

func (rq *RedisQueue) key() string {
	if rq.Key == "" {
		return DefaultQueueKey
	}
	return rq.Key
}

// Enqueues an event. Used by tooling and tests; the daemon only consumes.
func (rq *RedisQueue) Push(ctx context.Context, evt engine.TrackEvent) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return rq.RedisClient.LPush(ctx, rq.key(), b).Err()
}

// Blocks reading events and sending them to out, until ctx is done. Invalid events are logged and dropped.
func (rq *RedisQueue) Run(ctx context.Context, out chan<- engine.TrackEvent) error {
	if rq.RedisClient == nil {
		return fmt.Errorf("nil redis client")
	}
	logger := rq.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("consumer", "redis-queue", "key", rq.key())
	timeout := rq.PollTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	logger.Info("consuming track events from redis")
	for {
		res, err := rq.RedisClient.BRPop(ctx, timeout, rq.key()).Result()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			logger.Error("reading from redis queue", "err", err)
			if err := sleepCtx(ctx, time.Second); err != nil {
				return err
			}
			continue
		}
		// BRPOP returns [key, value]
		if len(res) != 2 {
			continue
		}
		evt, err := ParseTrackEvent([]byte(res[1]))
		if err != nil {
			trackEventsInvalid.WithLabelValues("redis").Inc()
			logger.Warn("dropping invalid track event", "err", err)
			continue
		}
		trackEventsReceived.WithLabelValues("redis", string(evt.Kind)).Inc()
		select {
		case out <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func ParseTrackEvent(raw []byte) (engine.TrackEvent, error) {
	var evt engine.TrackEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return evt, fmt.Errorf("parsing track event: %w", err)
	}
	if err := evt.Validate(); err != nil {
		return evt, err
	}
	return evt, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
