// Package retention runs the stale-session sweep described in spec §5:
// a periodic background pass that clears sessions which have gone
// quiet past the configured TTL, freeing the graph store of abandoned
// conversations. It keeps the teacher control plane's ticker-driven
// janitor shape but drops the multi-tenant archive/purge machinery that
// domain never needed.
package retention

import (
	"context"
	"time"

	"github.com/mannhummel-graphreasoner/engine/internal/session"
	"github.com/rs/zerolog/log"
)

// DefaultSweepInterval matches spec §5's "~15 min" stale-session sweep cadence.
const DefaultSweepInterval = 15 * time.Minute

// DefaultSessionTTL is how long a session may sit idle before the
// sweeper reclaims it.
const DefaultSessionTTL = 2 * time.Hour

// Janitor periodically sweeps stale sessions out of the session store.
type Janitor struct {
	sessions *session.Manager
	interval time.Duration
	ttl      time.Duration
}

// NewJanitor creates a sweeper that runs on the given interval,
// reclaiming sessions idle longer than ttl. A non-positive interval or
// ttl falls back to the spec defaults.
func NewJanitor(sessions *session.Manager, interval, ttl time.Duration) *Janitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Janitor{sessions: sessions, interval: interval, ttl: ttl}
}

// Start runs the janitor in the calling goroutine until ctx is canceled.
// Callers that want it in the background should `go janitor.Start(ctx)`.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().Dur("interval", j.interval).Dur("ttl", j.ttl).Msg("session retention janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session retention janitor stopped")
			return
		case <-ticker.C:
			j.runCycle(ctx)
		}
	}
}

func (j *Janitor) runCycle(ctx context.Context) {
	start := time.Now()
	n, err := j.sessions.Sweep(ctx, j.ttl)
	if err != nil {
		log.Warn().Err(err).Msg("session sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int("reclaimed", n).Dur("elapsed", time.Since(start)).Msg("session sweep complete")
	}
}
