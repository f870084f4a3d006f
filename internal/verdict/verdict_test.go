package verdict_test

import (
	"strings"
	"testing"

	"github.com/mannhummel-graphreasoner/engine/internal/verdict"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

func TestAdapt_VetoedProductsProduceTraitVetoRisk(t *testing.T) {
	v := models.EngineVerdict{
		VetoedProducts: []models.TraitMatch{
			{ProductFamilyID: "GDB", VetoReasons: []string{"indoor-only product in outdoor install"}},
		},
	}

	report := verdict.Adapt(v)

	if len(report.RiskWarnings) != 1 {
		t.Fatalf("RiskWarnings = %d, want 1", len(report.RiskWarnings))
	}
	w := report.RiskWarnings[0]
	if w.RiskType != models.RiskTraitVeto {
		t.Errorf("RiskType = %q, want %q", w.RiskType, models.RiskTraitVeto)
	}
	if w.GraphPath != "product_family:GDB" {
		t.Errorf("GraphPath = %q, want product_family:GDB", w.GraphPath)
	}
	if w.Message != "indoor-only product in outdoor install" {
		t.Errorf("Message = %q", w.Message)
	}
}

// TestAdapt_InstallationBlockSuppressesClarifications covers suppression
// rule 1: a critical installation violation must wipe out every
// clarification question, including ones a VALIDATION_REQUIRED gate would
// otherwise have produced.
func TestAdapt_InstallationBlockSuppressesClarifications(t *testing.T) {
	v := models.EngineVerdict{
		HasInstallationBlock: true,
		ClarificationQuestions: []models.MissingParameter{
			{FeatureID: "FEAT1", ParamName: "filter_width", Question: "What is filter_width?"},
		},
		GateEvaluations: []models.GateEvaluation{
			{GateID: "GATE_CHLORINE", GateName: "chlorine gate", State: models.GateValidationRequired, MissingParameters: []string{"chlorine_ppm"}},
		},
	}

	report := verdict.Adapt(v)

	if report.ClarificationQuestions != nil {
		t.Errorf("ClarificationQuestions = %v, want nil under an installation block", report.ClarificationQuestions)
	}
}

func TestAdapt_AssemblySupersedesPivot(t *testing.T) {
	v := models.EngineVerdict{
		IsAssembly: true,
		Assembly: []models.AssemblyStage{
			{Role: "primary", ProductFamilyID: "GDC", ProductFamilyName: "GDC Carbon"},
		},
		AutoPivotTo:   "GDP",
		AutoPivotName: "GDP Prefilter",
	}

	report := verdict.Adapt(v)

	if len(report.Assembly) != 1 {
		t.Fatalf("Assembly = %d stages, want 1", len(report.Assembly))
	}
	if report.ProductPivot != nil {
		t.Errorf("ProductPivot = %+v, want nil when IsAssembly is true", report.ProductPivot)
	}
}

func TestAdapt_PivotAppliesWhenNotAssembly(t *testing.T) {
	v := models.EngineVerdict{
		AutoPivotTo:   "GDP",
		AutoPivotName: "GDP Prefilter",
		VetoReason:    "GDC requires a grease prefilter",
		VetoedProducts: []models.TraitMatch{
			{ProductFamilyID: "GDC"},
		},
	}

	report := verdict.Adapt(v)

	if report.ProductPivot == nil {
		t.Fatal("expected a ProductPivot when not an assembly")
	}
	if report.ProductPivot.FromFamilyID != "GDC" || report.ProductPivot.ToFamilyID != "GDP" {
		t.Errorf("ProductPivot = %+v, want from GDC to GDP", report.ProductPivot)
	}
}

func TestAdapt_SetMembershipAlternativesDropSameProduct(t *testing.T) {
	recommended := &models.TraitMatch{ProductFamilyID: "GDB", ProductFamilyName: "GDB Housing"}
	v := models.EngineVerdict{
		RecommendedProduct: recommended,
		InstallationViolations: []models.InstallationViolation{
			{
				ConstraintID:   "INST_INDOOR_ONLY",
				ConstraintType: models.ConstraintSetMembership,
				Severity:       models.SeverityCritical,
				ErrorMsg:       "GDB is rated indoor-only",
				Alternatives: []models.AlternativeProduct{
					{ProductFamilyID: "GDB", ProductFamilyName: "GDB Housing", WhyItWorks: "same product, not a real alternative"},
					{ProductFamilyID: "GDC", ProductFamilyName: "GDC Carbon", WhyItWorks: "outdoor rated"},
				},
			},
		},
	}

	report := verdict.Adapt(v)

	if len(report.RiskWarnings) != 1 {
		t.Fatalf("RiskWarnings = %d, want 1", len(report.RiskWarnings))
	}
	if !strings.Contains(report.RiskWarnings[0].Mitigation, "GDC Carbon") {
		t.Errorf("Mitigation = %q, want it to mention GDC Carbon", report.RiskWarnings[0].Mitigation)
	}
	if strings.Contains(report.RiskWarnings[0].Mitigation, "GDB Housing") {
		t.Errorf("Mitigation = %q, should drop the recommended product itself", report.RiskWarnings[0].Mitigation)
	}
}

// TestAdapt_ValidationRequiredGateInstructsMustAsk covers spec §4.6
// rule 2's active half: a VALIDATION_REQUIRED gate must tell the
// downstream LLM, unambiguously, that it MUST ask for the missing data.
func TestAdapt_ValidationRequiredGateInstructsMustAsk(t *testing.T) {
	v := models.EngineVerdict{
		GateEvaluations: []models.GateEvaluation{
			{GateID: "GATE_CHLORINE", GateName: "Chlorine Gate", State: models.GateValidationRequired, MissingParameters: []string{"chlorine_ppm"}},
		},
	}

	report := verdict.Adapt(v)
	out := verdict.RenderPromptInjection(report, v)

	if !strings.Contains(out, "MUST ask") {
		t.Errorf("expected the rendered prompt injection to contain \"MUST ask\":\n%s", out)
	}
	if strings.Contains(out, "Deferred") {
		t.Errorf("did not expect \"Deferred\" when the gate is not blocked:\n%s", out)
	}
}

// TestAdapt_DeferredGateDropsMustAsk covers spec §4.6 rule 2's
// suppressed half: once every candidate product is blocked, the engine
// marks the gate DEFERRED (internal/engine/gates.go), and the adapter
// must render that as a deferral rather than an instruction to ask.
func TestAdapt_DeferredGateDropsMustAsk(t *testing.T) {
	v := models.EngineVerdict{
		GateEvaluations: []models.GateEvaluation{
			{GateID: "GATE_CHLORINE", GateName: "Chlorine Gate", State: models.GateDeferred, MissingParameters: []string{"chlorine_ppm"}},
		},
	}

	report := verdict.Adapt(v)
	out := verdict.RenderPromptInjection(report, v)

	if !strings.Contains(out, "Deferred") {
		t.Errorf("expected the rendered prompt injection to contain \"Deferred\":\n%s", out)
	}
	if strings.Contains(out, "MUST ask") {
		t.Errorf("did not expect \"MUST ask\" once every candidate is blocked:\n%s", out)
	}
	if len(report.ClarificationQuestions) != 0 {
		t.Errorf("ClarificationQuestions = %v, want none for a deferred gate", report.ClarificationQuestions)
	}
}

func TestAdapt_CorrosionCausalRuleProducesMaterialRequirement(t *testing.T) {
	v := models.EngineVerdict{
		ActiveCausalRules: []models.CausalRule{
			{RuleType: models.RuleDemandsTrait, TraitID: "TRAIT_CORROSION_C5", Explanation: "chlorinated pool air demands C5 resistance"},
		},
	}

	report := verdict.Adapt(v)

	if len(report.MaterialRequirements) != 1 {
		t.Fatalf("MaterialRequirements = %d, want 1", len(report.MaterialRequirements))
	}
	if report.MaterialRequirements[0].CorrosionClass != "C5" {
		t.Errorf("CorrosionClass = %q, want C5", report.MaterialRequirements[0].CorrosionClass)
	}
}

func TestRenderPromptInjection_FixedSectionOrder(t *testing.T) {
	report := models.GraphReasoningReport{
		ProductPivot: &models.ProductPivot{FromFamilyID: "GDC", ToFamilyID: "GDP", ToFamilyName: "GDP Prefilter", Reason: "needs grease protection"},
		Assembly: []models.AssemblyStage{
			{Role: "protector", ProductFamilyID: "GDP", ProductFamilyName: "GDP Prefilter"},
		},
		RiskWarnings: []models.RiskWarning{
			{Severity: models.SeverityCritical, RiskType: models.RiskInstallationBlocked, GraphPath: "constraint:INST1", Message: "blocked"},
			{Severity: models.SeverityCritical, RiskType: models.RiskGateFired, GraphPath: "gate:GATE1", Message: "fired"},
			{Severity: models.SeverityWarning, RiskType: models.RiskHardConstraintOverride, GraphPath: "filter_width", Message: "clamped", Mitigation: "corrected 50 to 100"},
			{Severity: models.SeverityCritical, RiskType: models.RiskAccessoryBlocked, GraphPath: "accessory:ACC1", Message: "blocked accessory"},
		},
		VariableFeatures: []models.MissingParameter{
			{FeatureID: "FEAT1", FeatureName: "damper", ParamName: "position", Question: "open or closed?"},
		},
		ReasoningSummary: []models.ReasoningStep{
			{Stage: "stressor_detection", Summary: "detected 1 stressor"},
		},
	}
	v := models.EngineVerdict{
		CapacityCalculation: &models.CapacityCalculation{ModulesNeeded: 2, InputValue: 8000, OutputRating: 5000},
	}

	out := verdict.RenderPromptInjection(report, v)

	labels := []string{
		"[SUBSTITUTION]", "[MULTI_STAGE]", "[INSTALLATION]", "[LOGIC_GATE]",
		"[CONSTRAINT_OVERRIDE]", "[CAPACITY]", "[VARIANCE_CHECK]", "[ACCESSORY]", "[REASONING_SUMMARY]",
	}
	prev := -1
	for _, label := range labels {
		idx := strings.Index(out, label)
		if idx < 0 {
			t.Fatalf("expected %q to appear in output:\n%s", label, out)
		}
		if idx <= prev {
			t.Errorf("%q appeared out of order (at %d, previous section ended after %d)", label, idx, prev)
		}
		prev = idx
	}
}

func TestRenderPromptInjection_OmitsEmptySections(t *testing.T) {
	report := models.GraphReasoningReport{
		ReasoningSummary: []models.ReasoningStep{
			{Stage: "stressor_detection", Summary: "nothing notable"},
		},
	}

	out := verdict.RenderPromptInjection(report, models.EngineVerdict{})

	if !strings.Contains(out, "[REASONING_SUMMARY]") {
		t.Error("expected [REASONING_SUMMARY] to always be present")
	}
	for _, label := range []string{
		"[SUBSTITUTION]", "[MULTI_STAGE]", "[INSTALLATION]", "[LOGIC_GATE]",
		"[CONSTRAINT_OVERRIDE]", "[CAPACITY]", "[VARIANCE_CHECK]", "[ACCESSORY]",
	} {
		if strings.Contains(out, label) {
			t.Errorf("did not expect %q in output for an otherwise-empty report:\n%s", label, out)
		}
	}
}
