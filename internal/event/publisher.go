package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cuetprep/examd/internal/config"
)

// ResultReleased is the notification published when a result leaves the
// embargo window and becomes visible to its candidate.
type ResultReleased struct {
	ResultID    uuid.UUID `json:"result_id"`
	CandidateID int       `json:"candidate_id"`
	TestID      uuid.UUID `json:"test_id"`
	ReleasedAt  time.Time `json:"released_at"`
}

// Notifier publishes release notifications. The release gate guarantees it
// is invoked at most once per result.
type Notifier interface {
	NotifyReleased(ctx context.Context, ev ResultReleased) error
}

// RedisNotifier publishes release notifications on a Redis PubSub channel.
// Subscribers (mailers, push gateways) are fire-and-forget; a missed message
// is recoverable because the result row itself carries the AVAILABLE status.
type RedisNotifier struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewRedisNotifier(rdb *redis.Client, log zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{
		rdb: rdb,
		log: log.With().Str("component", "release_notifier").Logger(),
	}
}

func (n *RedisNotifier) NotifyReleased(ctx context.Context, ev ResultReleased) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := n.rdb.Publish(ctx, config.CacheKey.ResultReleaseChannel(), data).Err(); err != nil {
		return err
	}
	n.log.Info().
		Str("result_id", ev.ResultID.String()).
		Int("candidate_id", ev.CandidateID).
		Msg("Release notification published")
	return nil
}
