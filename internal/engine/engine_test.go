package engine_test

import (
	"context"
	"testing"

	"github.com/mannhummel-graphreasoner/engine/internal/engine"
	"github.com/mannhummel-graphreasoner/engine/internal/graphstore"
	"github.com/mannhummel-graphreasoner/engine/internal/tenant"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg, err := tenant.NewLoader().Load("../../tenant.yaml")
	if err != nil {
		t.Fatalf("load tenant.yaml: %v", err)
	}
	store := graphstore.NewMemoryStore(graphstore.DefaultFixture())
	return engine.New(store, cfg)
}

// TestProcessQuery_HospitalDemandsCorrosionWithoutVeto covers the
// hospital scenario: the biological stressor demands corrosion-class C5,
// but every candidate family can still reach C5 through a material
// choice, so nothing is vetoed — the requirement surfaces as an active
// causal rule for the verdict adapter to turn into a material requirement.
func TestProcessQuery_HospitalDemandsCorrosionWithoutVeto(t *testing.T) {
	e := testEngine(t)

	v, err := e.ProcessQuery(context.Background(), engine.Input{
		Query: "hospital ICU duct filter housing",
	})
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	foundDemand := false
	for _, rule := range v.ActiveCausalRules {
		if rule.RuleType == models.RuleDemandsTrait && rule.TraitID == "TRAIT_CORROSION_C5" {
			foundDemand = true
		}
	}
	if !foundDemand {
		t.Error("expected an active DEMANDS_TRAIT rule for TRAIT_CORROSION_C5")
	}
	if len(v.VetoedProducts) != 0 {
		t.Errorf("VetoedProducts = %v, want none (C5 reachable via RF material on every family)", v.VetoedProducts)
	}
	if v.RecommendedProduct == nil {
		t.Error("expected a recommended product")
	}
}

// TestProcessQuery_OutdoorInstallationBlocksIndoorOnlyProduct covers the
// installation-constraint scenario: GDB is indoor-only, so hinting it for
// an outdoor install must produce a critical installation violation with
// an outdoor-rated alternative offered.
func TestProcessQuery_OutdoorInstallationBlocksIndoorOnlyProduct(t *testing.T) {
	e := testEngine(t)

	v, err := e.ProcessQuery(context.Background(), engine.Input{
		Query:       "rooftop unit housing",
		ProductHint: "GDB",
		Context:     map[string]interface{}{"installation_environment": "ENV_OUTDOOR"},
	})
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	if !v.HasInstallationBlock {
		t.Fatal("expected HasInstallationBlock to be true")
	}
	if len(v.InstallationViolations) != 1 {
		t.Fatalf("InstallationViolations = %d, want 1", len(v.InstallationViolations))
	}
	viol := v.InstallationViolations[0]
	if viol.ConstraintID != "IC_GDB_INDOOR" {
		t.Errorf("ConstraintID = %q, want IC_GDB_INDOOR", viol.ConstraintID)
	}
	foundGDC := false
	for _, alt := range viol.Alternatives {
		if alt.ProductFamilyID == "GDC" {
			foundGDC = true
		}
	}
	if !foundGDC {
		t.Errorf("Alternatives = %v, want GDC (outdoor-rated)", viol.Alternatives)
	}
}

// TestProcessQuery_KitchenGreaseBuildsProtectorAssembly covers the
// MANDATES_PROTECTION scenario: hinting the carbon housing (GDC) in a
// grease-laden kitchen exhaust vetoes it directly, but the dependency
// rule converts that veto into a protector+target assembly rather than a
// silent pivot away from carbon adsorption entirely.
func TestProcessQuery_KitchenGreaseBuildsProtectorAssembly(t *testing.T) {
	e := testEngine(t)

	v, err := e.ProcessQuery(context.Background(), engine.Input{
		Query:       "commercial kitchen grease exhaust needs carbon odor control",
		ProductHint: "GDC",
	})
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	if !v.IsAssembly {
		t.Fatal("expected IsAssembly to be true")
	}
	if len(v.Assembly) != 2 {
		t.Fatalf("Assembly = %d stages, want 2", len(v.Assembly))
	}
	if v.Assembly[0].Role != models.RoleProtector || v.Assembly[0].ProductFamilyID != "GDP" {
		t.Errorf("Assembly[0] = %+v, want GDP protector", v.Assembly[0])
	}
	if v.Assembly[1].Role != models.RoleTarget || v.Assembly[1].ProductFamilyID != "GDC" {
		t.Errorf("Assembly[1] = %+v, want GDC target", v.Assembly[1])
	}
	if v.AutoPivotTo != "" {
		t.Errorf("AutoPivotTo = %q, want empty — an assembly supersedes the pivot", v.AutoPivotTo)
	}
}

// TestProcessQuery_ChlorineGate covers the gate-evaluation lifecycle
// across two turns: missing data defers to VALIDATION_REQUIRED, then
// supplying chlorine_ppm above the threshold fires the gate.
func TestProcessQuery_ChlorineGate(t *testing.T) {
	e := testEngine(t)

	v1, err := e.ProcessQuery(context.Background(), engine.Input{
		Query: "swimming pool natatorium air handling",
	})
	if err != nil {
		t.Fatalf("ProcessQuery (turn 1): %v", err)
	}
	if len(v1.GateEvaluations) != 1 {
		t.Fatalf("GateEvaluations = %d, want 1", len(v1.GateEvaluations))
	}
	if v1.GateEvaluations[0].State != models.GateValidationRequired {
		t.Errorf("turn 1 gate state = %q, want VALIDATION_REQUIRED", v1.GateEvaluations[0].State)
	}

	v2, err := e.ProcessQuery(context.Background(), engine.Input{
		Query: "swimming pool natatorium air handling",
		Context: map[string]interface{}{
			"PARAM_CHLORINE_PPM": 0.5,
			"chlorine_ppm":        0.5,
		},
	})
	if err != nil {
		t.Fatalf("ProcessQuery (turn 2): %v", err)
	}
	if v2.GateEvaluations[0].State != models.GateFired {
		t.Errorf("turn 2 gate state = %q, want FIRED", v2.GateEvaluations[0].State)
	}
	if v2.GateEvaluations[0].PhysicsExplanation == "" {
		t.Error("expected a physics explanation on a fired gate")
	}
}
