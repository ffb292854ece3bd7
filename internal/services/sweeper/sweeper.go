// Package sweeper periodically deletes expired sessions so the session table
// stays bounded.
package sweeper

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var sweptTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisory_sessions_swept_total",
	Help: "Expired sessions deleted by the background sweeper.",
})

// SessionSweeper is implemented by auth.Service.
type SessionSweeper interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

type Sweeper struct {
	target   SessionSweeper
	interval time.Duration
	log      *zap.Logger
}

func New(target SessionSweeper, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{target: target, interval: interval, log: log}
}

// Run sweeps once immediately and then every interval until ctx is done.
// It always returns nil; a failed sweep is logged and retried next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.target.SweepExpiredSessions(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("session sweep failed", zap.Error(err))
		}
		return
	}
	sweptTotal.Add(float64(n))
	if n > 0 {
		s.log.Info("expired sessions removed", zap.Int64("count", n))
	}
}
