package state_test

import (
	"context"
	"testing"

	"github.com/mannhummel-graphreasoner/engine/internal/graphstore"
	"github.com/mannhummel-graphreasoner/engine/internal/state"
	"github.com/mannhummel-graphreasoner/engine/internal/tenant"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

func testTenantConfig(t *testing.T) *tenant.Config {
	t.Helper()
	cfg, err := tenant.NewLoader().Load("../../tenant.yaml")
	if err != nil {
		t.Fatalf("load tenant.yaml: %v", err)
	}
	return cfg
}

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestSetProject_Idempotent(t *testing.T) {
	ts := state.New("sess-1", testTenantConfig(t))
	ts.SetProject("Meridian", "Acme Corp")
	ts.SetProject("SomethingElse", "OtherCo")

	if ts.Project != "Meridian" {
		t.Errorf("Project = %q, want Meridian (locked on first set)", ts.Project)
	}
	if ts.Customer != "Acme Corp" {
		t.Errorf("Customer = %q, want Acme Corp", ts.Customer)
	}
}

func TestLockMaterial_ResolvesAliasAndLocks(t *testing.T) {
	ts := state.New("sess-1", testTenantConfig(t))

	code, ok := ts.LockMaterial("stainless steel")
	if !ok || code != "RF" {
		t.Fatalf("LockMaterial(stainless steel) = (%q, %v), want (RF, true)", code, ok)
	}

	// A second, different request is a no-op — the lock is absolute.
	code2, ok2 := ts.LockMaterial("galvanized")
	if !ok2 || code2 != "RF" {
		t.Errorf("second LockMaterial call = (%q, %v), want (RF, true) unchanged", code2, ok2)
	}
}

func TestMergeTag_DerivesHousingDimensionsFromFilter(t *testing.T) {
	ts := state.New("sess-1", testTenantConfig(t))

	tag := ts.MergeTag("TAG1", graphstore.TagFields{
		FilterWidth:  intPtr(592),
		FilterHeight: intPtr(592),
	})

	if tag.HousingWidth == nil || *tag.HousingWidth != 600 {
		t.Errorf("HousingWidth = %v, want 600 (via dimension_mapping)", tag.HousingWidth)
	}
	if tag.HousingHeight == nil || *tag.HousingHeight != 600 {
		t.Errorf("HousingHeight = %v, want 600", tag.HousingHeight)
	}
}

func TestMergeTag_NeverOverwritesExplicitHousingDimension(t *testing.T) {
	ts := state.New("sess-1", testTenantConfig(t))

	ts.MergeTag("TAG1", graphstore.TagFields{HousingWidth: intPtr(700)})
	tag := ts.MergeTag("TAG1", graphstore.TagFields{FilterWidth: intPtr(592)})

	if *tag.HousingWidth != 700 {
		t.Errorf("HousingWidth = %d, want 700 (explicit value must survive a later filter-derived merge)", *tag.HousingWidth)
	}
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	store := graphstore.NewMemoryStore(graphstore.DefaultFixture())
	cfg := testTenantConfig(t)
	ctx := context.Background()

	if _, err := store.EnsureSession(ctx, "sess-rt", "user-1"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	ts := state.New("sess-rt", cfg)
	ts.SetProject("Meridian", "Acme Corp")
	ts.LockMaterial("RF")
	ts.MergeTag("TAG1", graphstore.TagFields{FilterWidth: intPtr(600), FilterHeight: intPtr(600)})

	if err := ts.PersistToGraph(ctx, store); err != nil {
		t.Fatalf("PersistToGraph: %v", err)
	}

	loaded, err := state.LoadFromGraph(ctx, store, "sess-rt", cfg)
	if err != nil {
		t.Fatalf("LoadFromGraph: %v", err)
	}

	if loaded.Project != "Meridian" {
		t.Errorf("loaded.Project = %q, want Meridian", loaded.Project)
	}
	if loaded.LockedMaterial != "RF" {
		t.Errorf("loaded.LockedMaterial = %q, want RF", loaded.LockedMaterial)
	}
	tag := loaded.Tag("TAG1")
	if tag == nil {
		t.Fatal("expected TAG1 to survive the round trip")
	}
	if tag.HousingWidth == nil || *tag.HousingWidth != 600 {
		t.Errorf("reloaded HousingWidth = %v, want 600", tag.HousingWidth)
	}
}

// TestCreateAssemblyTags_ExpandsStagesAndRemovesBase covers spec §8
// scenario 4: a PROTECTOR+TARGET assembly reasoned over "item_1"
// produces "item_1_stage_1"/"item_1_stage_2" sharing the base tag's
// dimensions, and the base tag no longer exists afterward.
func TestCreateAssemblyTags_ExpandsStagesAndRemovesBase(t *testing.T) {
	ts := state.New("sess-1", testTenantConfig(t))
	ts.MergeTag("item_1", graphstore.TagFields{
		FilterWidth: intPtr(592), FilterHeight: intPtr(592), AirflowM3h: floatPtr(2000),
	})

	stages := []models.AssemblyStage{
		{Role: models.RoleProtector, ProductFamilyID: "GDP"},
		{Role: models.RoleTarget, ProductFamilyID: "GDC"},
	}
	out := ts.CreateAssemblyTags("item_1", stages, "grease pre-filtration ahead of carbon")

	if len(out) != 2 {
		t.Fatalf("CreateAssemblyTags returned %d tags, want 2", len(out))
	}
	if ts.Tag("item_1") != nil {
		t.Error("expected the base tag item_1 to be removed")
	}

	stage1 := ts.Tag("item_1_stage_1")
	if stage1 == nil || stage1.ProductFamily != "GDP" {
		t.Fatalf("item_1_stage_1 = %+v, want ProductFamily GDP", stage1)
	}
	if stage1.FilterWidth == nil || *stage1.FilterWidth != 592 {
		t.Errorf("item_1_stage_1.FilterWidth = %v, want 592 (inherited from base)", stage1.FilterWidth)
	}

	stage2 := ts.Tag("item_1_stage_2")
	if stage2 == nil || stage2.ProductFamily != "GDC" {
		t.Fatalf("item_1_stage_2 = %+v, want ProductFamily GDC", stage2)
	}
	if stage2.AirflowM3h == nil || *stage2.AirflowM3h != 2000 {
		t.Errorf("item_1_stage_2.AirflowM3h = %v, want 2000 (inherited from base)", stage2.AirflowM3h)
	}

	if ts.AssemblyGroup == nil || ts.AssemblyGroup.Rationale == "" {
		t.Error("expected a populated AssemblyGroup with rationale")
	}
}

// TestCreateAssemblyTags_PersistsBaseTagRemoval covers the graph half
// of the same scenario: the removed base tag must not resurrect on a
// subsequent LoadFromGraph.
func TestCreateAssemblyTags_PersistsBaseTagRemoval(t *testing.T) {
	store := graphstore.NewMemoryStore(graphstore.DefaultFixture())
	cfg := testTenantConfig(t)
	ctx := context.Background()

	if _, err := store.EnsureSession(ctx, "sess-asm", "user-1"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	ts := state.New("sess-asm", cfg)
	ts.MergeTag("item_1", graphstore.TagFields{FilterWidth: intPtr(592), FilterHeight: intPtr(592)})
	if err := ts.PersistToGraph(ctx, store); err != nil {
		t.Fatalf("PersistToGraph (base tag): %v", err)
	}

	ts.CreateAssemblyTags("item_1", []models.AssemblyStage{
		{Role: models.RoleProtector, ProductFamilyID: "GDP"},
		{Role: models.RoleTarget, ProductFamilyID: "GDC"},
	}, "grease pre-filtration ahead of carbon")
	if err := ts.PersistToGraph(ctx, store); err != nil {
		t.Fatalf("PersistToGraph (after assembly): %v", err)
	}

	loaded, err := state.LoadFromGraph(ctx, store, "sess-asm", cfg)
	if err != nil {
		t.Fatalf("LoadFromGraph: %v", err)
	}
	if loaded.Tag("item_1") != nil {
		t.Error("expected item_1 to stay removed after a graph round trip")
	}
	if loaded.Tag("item_1_stage_1") == nil || loaded.Tag("item_1_stage_2") == nil {
		t.Error("expected both stage tags to survive the graph round trip")
	}
}

func TestToPromptContext_OmitsEmptySections(t *testing.T) {
	ts := state.New("sess-1", testTenantConfig(t))
	ctx := ts.ToPromptContext()
	if ctx == "" {
		t.Error("expected a non-empty prompt context even for a fresh session")
	}
}
