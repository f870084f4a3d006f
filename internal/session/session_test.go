package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/mannhummel-graphreasoner/engine/internal/graphstore"
	"github.com/mannhummel-graphreasoner/engine/internal/session"
	"github.com/mannhummel-graphreasoner/engine/internal/tenant"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

func testManager(t *testing.T) *session.Manager {
	t.Helper()
	cfg, err := tenant.NewLoader().Load("../../tenant.yaml")
	if err != nil {
		t.Fatalf("load tenant.yaml: %v", err)
	}
	store := graphstore.NewMemoryStore(graphstore.DefaultFixture())
	return session.NewManager(store, cfg)
}

func TestBegin_LoadsFreshStateForNewSession(t *testing.T) {
	m := testManager(t)
	sess, ts, err := m.Begin(context.Background(), "sess-1", "user-1")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if sess.ID != "sess-1" {
		t.Errorf("Session.ID = %q, want sess-1", sess.ID)
	}
	if ts == nil || ts.SessionID != "sess-1" {
		t.Errorf("TechnicalState = %+v, want SessionID sess-1", ts)
	}
}

// TestRecordTurn_NumbersByExistingCount covers the turn-numbering
// convention: the Nth RecordTurn call for a session lands at turn_number
// N, derived from how many turns already exist rather than a caller-held
// counter.
func TestRecordTurn_NumbersByExistingCount(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	if _, _, err := m.Begin(ctx, "sess-1", "user-1"); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	first, err := m.RecordTurn(ctx, "sess-1", models.RoleUser, "hello")
	if err != nil {
		t.Fatalf("RecordTurn 1: %v", err)
	}
	second, err := m.RecordTurn(ctx, "sess-1", models.RoleAssistant, "hi there")
	if err != nil {
		t.Fatalf("RecordTurn 2: %v", err)
	}

	if first.TurnNumber != 1 {
		t.Errorf("first.TurnNumber = %d, want 1", first.TurnNumber)
	}
	if second.TurnNumber != 2 {
		t.Errorf("second.TurnNumber = %d, want 2", second.TurnNumber)
	}
}

func TestRecentHistory_RendersRolePrefixedTranscript(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	if _, _, err := m.Begin(ctx, "sess-1", "user-1"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := m.RecordTurn(ctx, "sess-1", models.RoleUser, "hello"); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}

	out, err := m.RecentHistory(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if out == "" {
		t.Error("expected a non-empty transcript")
	}
}

func TestClear_RemovesSessionSubgraph(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	if _, _, err := m.Begin(ctx, "sess-1", "user-1"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := m.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	n, err := m.Sweep(ctx, time.Nanosecond)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("Sweep found %d sessions after Clear, want 0", n)
	}
}

func TestWriter_ExposesUnderlyingStore(t *testing.T) {
	m := testManager(t)
	if m.Writer() == nil {
		t.Error("expected a non-nil Writer")
	}
}
