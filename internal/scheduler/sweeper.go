// Package scheduler runs the periodic assign-all sweep.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/allocation"
)

const lockKey = "hostel:sweep:lock"

// releaseLock deletes the lock only while it still holds our token.
var releaseLock = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Assigner is the engine operation the sweeper drives.
type Assigner interface {
	AssignAll(ctx context.Context, dryRun bool) (allocation.SweepReport, error)
}

// Sweeper calls AssignAll every interval.  When a Redis client is set,
// only the replica holding hostel:sweep:lock runs a given tick.
type Sweeper struct {
	assigner Assigner
	rdb      *redis.Client
	interval time.Duration
	lockTTL  time.Duration
	log      *zap.Logger
	// afterRun is called after a sweep that assigned at least one room.
	afterRun func(context.Context)
}

func NewSweeper(a Assigner, rdb *redis.Client, interval, lockTTL time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Sweeper{assigner: a, rdb: rdb, interval: interval, lockTTL: lockTTL, log: log}
}

// OnAssigned registers fn to run after sweeps that placed students.
func (s *Sweeper) OnAssigned(fn func(context.Context)) { s.afterRun = fn }

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	s.log.Info("sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-t.C:
			if _, err := s.tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// tick runs one sweep.  It reports false when another replica holds the
// lock.
func (s *Sweeper) tick(ctx context.Context) (bool, error) {
	if s.rdb != nil {
		token := uuid.NewString()
		ok, err := s.rdb.SetNX(ctx, lockKey, token, s.lockTTL).Result()
		if err != nil {
			return false, err
		}
		if !ok {
			s.log.Debug("sweep skipped, lock held elsewhere")
			return false, nil
		}
		defer func() {
			if err := releaseLock.Run(context.WithoutCancel(ctx), s.rdb, []string{lockKey}, token).Err(); err != nil {
				s.log.Warn("sweep lock release failed", zap.Error(err))
			}
		}()
	}

	rep, err := s.assigner.AssignAll(ctx, false)
	if err != nil {
		return true, err
	}
	s.log.Info("sweep finished",
		zap.Int("assigned", rep.Assigned),
		zap.Int("failed", rep.Failed),
		zap.Int("remaining", rep.Remaining))
	if rep.Assigned > 0 && s.afterRun != nil {
		s.afterRun(ctx)
	}
	return true, nil
}
