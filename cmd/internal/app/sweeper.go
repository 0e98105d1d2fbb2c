package app

import (
	"context"
	"log/slog"
	"time"
)

// expiredSweeper is the slice of the session service the sweeper needs.
type expiredSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically removes expired session records.
//
// Rotation already deletes dead records on touch; the sweeper handles
// sessions that are simply abandoned and never presented again.
type Sweeper struct {
	log      *slog.Logger
	sessions expiredSweeper
	interval time.Duration
}

// NewSweeper constructs a Sweeper. A non-positive interval falls back to
// ten minutes.
func NewSweeper(log *slog.Logger, sessions expiredSweeper, interval time.Duration) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{log: log, sessions: sessions, interval: interval}
}

// Run blocks, sweeping on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	n, err := s.sessions.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error("session.sweep.fail", "err", err)
		return
	}
	if n > 0 {
		sessionsSweptTotal.Add(float64(n))
		s.log.Info("session.sweep", "removed", n)
	}
}
