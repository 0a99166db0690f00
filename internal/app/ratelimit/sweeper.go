package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically evicts buckets of clients that went quiet.
type Sweeper struct {
	c        *cron.Cron
	log      *zap.Logger
	state    *State
	schedule string
	idleTTL  time.Duration
	now      func() time.Time
}

// NewSweeper creates a sweeper running on a standard cron schedule
// (descriptors such as "@every 5m" are accepted).
func NewSweeper(log *zap.Logger, state *State, schedule string, idleTTL time.Duration) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	if idleTTL < state.Config().Window {
		idleTTL = state.Config().Window
	}
	return &Sweeper{
		c:        cron.New(),
		log:      log,
		state:    state,
		schedule: schedule,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Start registers the sweep job and stops the scheduler once ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.c.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("ratelimit: schedule sweeper %q: %w", s.schedule, err)
	}
	s.c.Start()
	s.log.Info("rate limit sweeper started",
		zap.String("schedule", s.schedule),
		zap.Duration("idle_ttl", s.idleTTL),
	)

	go func() {
		<-ctx.Done()
		stopCtx := s.c.Stop()
		<-stopCtx.Done()
		s.log.Info("rate limit sweeper stopped")
	}()
	return nil
}

func (s *Sweeper) sweep() {
	idleBefore := s.now().Add(-s.idleTTL)
	removed := s.state.Sweep(idleBefore)
	if removed > 0 {
		s.log.Debug("evicted idle rate limit buckets",
			zap.Int("count", removed),
			zap.Int("remaining", s.state.Len()),
		)
	}
}
