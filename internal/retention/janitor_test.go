package retention

import (
	"context"
	"testing"
	"time"

	"github.com/mannhummel-graphreasoner/engine/internal/graphstore"
	"github.com/mannhummel-graphreasoner/engine/internal/session"
	"github.com/mannhummel-graphreasoner/engine/internal/tenant"
)

func testSessions(t *testing.T) *session.Manager {
	t.Helper()
	cfg, err := tenant.NewLoader().Load("../../tenant.yaml")
	if err != nil {
		t.Fatalf("load tenant.yaml: %v", err)
	}
	store := graphstore.NewMemoryStore(graphstore.DefaultFixture())
	return session.NewManager(store, cfg)
}

func TestNewJanitor_DefaultsNonPositiveIntervalAndTTL(t *testing.T) {
	j := NewJanitor(testSessions(t), 0, -time.Second)
	if j.interval != DefaultSweepInterval {
		t.Errorf("interval = %v, want default %v", j.interval, DefaultSweepInterval)
	}
	if j.ttl != DefaultSessionTTL {
		t.Errorf("ttl = %v, want default %v", j.ttl, DefaultSessionTTL)
	}
}

func TestNewJanitor_KeepsExplicitValues(t *testing.T) {
	j := NewJanitor(testSessions(t), 5*time.Minute, 10*time.Minute)
	if j.interval != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", j.interval)
	}
	if j.ttl != 10*time.Minute {
		t.Errorf("ttl = %v, want 10m", j.ttl)
	}
}

// TestRunCycle_ReclaimsStaleSessions covers the sweep itself: a session
// whose last activity falls outside the ttl window is removed on the
// next cycle.
func TestRunCycle_ReclaimsStaleSessions(t *testing.T) {
	sessions := testSessions(t)
	ctx := context.Background()

	if _, _, err := sessions.Begin(ctx, "sess-stale", "user-1"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	j := NewJanitor(sessions, time.Hour, time.Millisecond)
	j.runCycle(ctx)

	n, err := sessions.Sweep(ctx, time.Millisecond)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep reclaimed %d more sessions, want 0 (already reclaimed by runCycle)", n)
	}
}
