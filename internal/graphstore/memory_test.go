package graphstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/mannhummel-graphreasoner/engine/internal/graphstore"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

func intPtr(v int) *int { return &v }

func newStore() *graphstore.MemoryStore {
	return graphstore.NewMemoryStore(graphstore.DefaultFixture())
}

func TestEnsureSession_CreatesThenReusesSameSession(t *testing.T) {
	store := newStore()
	ctx := context.Background()

	first, err := store.EnsureSession(ctx, "sess-1", "user-1")
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	second, err := store.EnsureSession(ctx, "sess-1", "user-1")
	if err != nil {
		t.Fatalf("EnsureSession (second call): %v", err)
	}
	if first.ID != second.ID || first.CreatedAt != second.CreatedAt {
		t.Errorf("second EnsureSession created a new session: %+v vs %+v", first, second)
	}
}

func TestUpsertTag_MergesAndMarksComplete(t *testing.T) {
	store := newStore()
	ctx := context.Background()
	if _, err := store.EnsureSession(ctx, "sess-1", "user-1"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	tag, err := store.UpsertTag(ctx, "sess-1", "TAG1", graphstore.TagFields{FilterWidth: intPtr(592)}, nil)
	if err != nil {
		t.Fatalf("UpsertTag: %v", err)
	}
	if tag.IsComplete {
		t.Error("expected IsComplete to be false with only FilterWidth set")
	}

	tag, err = store.UpsertTag(ctx, "sess-1", "TAG1", graphstore.TagFields{
		HousingWidth: intPtr(600), HousingHeight: intPtr(600), HousingLength: intPtr(550),
	}, nil)
	if err != nil {
		t.Fatalf("UpsertTag (second merge): %v", err)
	}
	if !tag.IsComplete {
		t.Error("expected IsComplete to be true once housing dimensions are all set")
	}
	if tag.FilterWidth == nil || *tag.FilterWidth != 592 {
		t.Errorf("FilterWidth = %v, want the first merge's value 592 to survive", tag.FilterWidth)
	}
}

func TestCleanupStaleSessions_RemovesOnlySessionsPastTTL(t *testing.T) {
	store := newStore()
	ctx := context.Background()

	if _, err := store.EnsureSession(ctx, "sess-old", "user-1"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := store.EnsureSession(ctx, "sess-fresh", "user-1"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	n, err := store.CleanupStaleSessions(ctx, 2*time.Millisecond)
	if err != nil {
		t.Fatalf("CleanupStaleSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("reclaimed %d sessions, want 1 (only sess-old)", n)
	}
}

func TestStoreAndGetRecentTurns_PreservesOrder(t *testing.T) {
	store := newStore()
	ctx := context.Background()
	if _, err := store.EnsureSession(ctx, "sess-1", "user-1"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	if _, err := store.StoreTurn(ctx, "sess-1", models.RoleUser, "hello", 1); err != nil {
		t.Fatalf("StoreTurn 1: %v", err)
	}
	if _, err := store.StoreTurn(ctx, "sess-1", models.RoleAssistant, "hi there", 2); err != nil {
		t.Fatalf("StoreTurn 2: %v", err)
	}

	turns, err := store.GetRecentTurns(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("GetRecentTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Message != "hello" || turns[1].Message != "hi there" {
		t.Errorf("turns = %+v, want hello then hi there in order", turns)
	}
}

func TestGetStressorsByKeywords_MatchesFixtureStressor(t *testing.T) {
	store := newStore()
	stressors, err := store.GetStressorsByKeywords(context.Background(), []string{"hospital", "duct"})
	if err != nil {
		t.Fatalf("GetStressorsByKeywords: %v", err)
	}
	if len(stressors) != 1 || stressors[0].ID != "STR_BIOLOGICAL" {
		t.Errorf("stressors = %+v, want just STR_BIOLOGICAL", stressors)
	}
}

func TestGetAllProductFamiliesWithTraits_UnionsMaterialTraits(t *testing.T) {
	store := newStore()
	families, err := store.GetAllProductFamiliesWithTraits(context.Background())
	if err != nil {
		t.Fatalf("GetAllProductFamiliesWithTraits: %v", err)
	}
	var gdb *models.ProductFamilyTraits
	for i := range families {
		if families[i].ProductID == "GDB" {
			gdb = &families[i]
		}
	}
	if gdb == nil {
		t.Fatal("expected GDB in the family list")
	}
	found := map[string]bool{}
	for _, trait := range gdb.AllTraitIDs {
		found[trait] = true
	}
	if !found["TRAIT_CORROSION_C5"] {
		t.Errorf("AllTraitIDs = %v, want TRAIT_CORROSION_C5 reachable via the RF material option", gdb.AllTraitIDs)
	}
}
