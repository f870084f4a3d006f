// Package session is the typed conversation-session manager of spec
// §4.2: it composes graphstore.Store's session-writer surface with
// internal/state's derivation logic, and owns turn-numbering — the one
// piece of session bookkeeping the graph layer intentionally leaves to
// its caller, since the graph only knows how to store a turn at a
// number it's given.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/mannhummel-graphreasoner/engine/internal/graphstore"
	"github.com/mannhummel-graphreasoner/engine/internal/state"
	"github.com/mannhummel-graphreasoner/engine/internal/tenant"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// Manager is the per-process handle conversational callers (cmd/engine's
// HTTP layer, tests) use instead of reaching into graphstore directly.
type Manager struct {
	store graphstore.Store
	cfg   *tenant.Config
}

func NewManager(store graphstore.Store, cfg *tenant.Config) *Manager {
	return &Manager{store: store, cfg: cfg}
}

// Begin ensures the session row exists and loads its cumulative
// technical state, recomputing derivations rather than trusting what
// was last persisted (state.LoadFromGraph's contract).
func (m *Manager) Begin(ctx context.Context, sessionID, userID string) (models.Session, *state.TechnicalState, error) {
	sess, err := m.store.EnsureSession(ctx, sessionID, userID)
	if err != nil {
		return models.Session{}, nil, fmt.Errorf("ensure session: %w", err)
	}
	ts, err := state.LoadFromGraph(ctx, m.store, sessionID, m.cfg)
	if err != nil {
		return models.Session{}, nil, fmt.Errorf("load technical state: %w", err)
	}
	return sess, ts, nil
}

// RecordTurn stores a turn at the next turn_number for the session,
// derived from how many turns already exist — callers never track a
// counter themselves.
func (m *Manager) RecordTurn(ctx context.Context, sessionID string, role models.TurnRole, message string) (models.ConversationTurn, error) {
	existing, err := m.store.GetRecentTurns(ctx, sessionID, 1<<30)
	if err != nil {
		return models.ConversationTurn{}, fmt.Errorf("count existing turns: %w", err)
	}
	return m.store.StoreTurn(ctx, sessionID, role, message, len(existing)+1)
}

// RecentHistory renders the last n turns, oldest first, as a plain
// role-prefixed transcript suitable for inclusion in an LLM prompt.
func (m *Manager) RecentHistory(ctx context.Context, sessionID string, n int) (string, error) {
	turns, err := m.store.GetRecentTurns(ctx, sessionID, n)
	if err != nil {
		return "", fmt.Errorf("get recent turns: %w", err)
	}
	out := ""
	for _, t := range turns {
		out += fmt.Sprintf("%s: %s\n", t.Role, t.Message)
	}
	return out, nil
}

// Clear removes a session's subgraph entirely.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	return m.store.ClearSession(ctx, sessionID)
}

// Sweep runs the stale-session cleanup primitive (spec §4.2's
// cleanup_stale_sessions), returning how many sessions were removed.
func (m *Manager) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	return m.store.CleanupStaleSessions(ctx, ttl)
}

// GraphData returns the session's subgraph for debug visualization.
func (m *Manager) GraphData(ctx context.Context, sessionID string) (graphstore.SessionGraphData, error) {
	return m.store.GetSessionGraphData(ctx, sessionID)
}

// Writer exposes the underlying session-store write surface for
// callers — namely TechnicalState.PersistToGraph — that need the raw
// per-field upsert operations rather than Manager's turn-numbering
// convenience wrapper.
func (m *Manager) Writer() graphstore.SessionWriter {
	return m.store
}
