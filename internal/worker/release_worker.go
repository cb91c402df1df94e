package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cuetprep/examd/internal/config"
	"github.com/cuetprep/examd/internal/repository"
	"github.com/cuetprep/examd/internal/service"
)

// SweepLimit caps how many overdue results one database sweep releases.
const SweepLimit = 200

// ReleaseWorker opens the release gate for results whose embargo has
// elapsed, so candidates get their scores even if they never poll. It runs
// on a coarse ticker: precise timing is the gate's job, not the worker's —
// the trigger itself refuses early releases, so firing often is safe and
// firing late only delays the notification.
//
// Two sources feed it: the Redis due set (fast path, populated at
// submission) and a periodic database sweep (catches results whose ZADD
// was lost).
type ReleaseWorker struct {
	releaseService *service.ReleaseService
	resultRepo     *repository.ResultRepository
	rdb            *redis.Client
	interval       time.Duration
	log            zerolog.Logger
}

// NewReleaseWorker creates a new ReleaseWorker.
func NewReleaseWorker(
	releaseService *service.ReleaseService,
	resultRepo *repository.ResultRepository,
	rdb *redis.Client,
	interval time.Duration,
	log zerolog.Logger,
) *ReleaseWorker {
	return &ReleaseWorker{
		releaseService: releaseService,
		resultRepo:     resultRepo,
		rdb:            rdb,
		interval:       interval,
		log:            log.With().Str("component", "release_worker").Logger(),
	}
}

// Start begins the ticker loop. Call in a goroutine.
func (w *ReleaseWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ReleaseWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Every Nth tick also sweeps the database for results the Redis
	// schedule missed.
	const sweepEvery = 4
	tick := 0

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ReleaseWorker stopped")
			return
		case <-ticker.C:
			w.releaseDue(ctx)
			tick++
			if tick%sweepEvery == 0 {
				w.sweepDatabase(ctx)
			}
		}
	}
}

// releaseDue pops due members off the Redis schedule and triggers each.
func (w *ReleaseWorker) releaseDue(ctx context.Context) {
	now := time.Now().Unix()
	members, err := w.rdb.ZRangeByScore(ctx, config.WorkerKey.ReleaseDueSet, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now, 10),
		Count: SweepLimit,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("ZRangeByScore error")
		}
		return
	}

	for _, member := range members {
		resultID, err := uuid.Parse(member)
		if err != nil {
			// A member that cannot be a result ID will never release; drop it.
			w.log.Error().Str("member", member).Msg("Dropping malformed schedule entry")
			w.rdb.ZRem(ctx, config.WorkerKey.ReleaseDueSet, member)
			continue
		}

		if w.trigger(ctx, resultID) {
			w.rdb.ZRem(ctx, config.WorkerKey.ReleaseDueSet, member)
		}
	}
}

// sweepDatabase releases overdue PENDING results straight off PostgreSQL.
func (w *ReleaseWorker) sweepDatabase(ctx context.Context) {
	ids, err := w.resultRepo.ListDuePending(ctx, SweepLimit)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Database sweep query error")
		}
		return
	}

	for _, id := range ids {
		if w.trigger(ctx, id) {
			w.rdb.ZRem(ctx, config.WorkerKey.ReleaseDueSet, id.String())
		}
	}
}

// trigger attempts one release. It returns true when the result needs no
// further attention: released (by us or a racing caller) or gone.
func (w *ReleaseWorker) trigger(ctx context.Context, resultID uuid.UUID) bool {
	flipped, err := w.releaseService.Trigger(ctx, resultID)
	switch {
	case err == service.ErrResultNotFound:
		// Scheduled before the retry queue persisted it; the next pass
		// will find the row.
		return false
	case err == service.ErrResultEmbargoed:
		return false
	case err != nil:
		w.log.Error().Err(err).Str("result_id", resultID.String()).Msg("Release trigger error")
		return false
	}

	if flipped {
		w.log.Info().Str("result_id", resultID.String()).Msg("Result released on schedule")
	}
	return true
}
