// Package verdict implements spec §4.6: a pure transform from an
// EngineVerdict into the presentation-layer GraphReasoningReport, plus
// a sibling serialization to a fixed-order, labeled prompt-injection
// string. Nothing here touches the graph or calls an LLM — it only
// reshapes data the engine already produced.
package verdict

import (
	"fmt"
	"strings"

	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// Adapt maps an EngineVerdict to a GraphReasoningReport, applying the
// four cross-section suppression rules of spec §4.6.
func Adapt(v models.EngineVerdict) models.GraphReasoningReport {
	report := models.GraphReasoningReport{
		ApplicationMatch: v.ApplicationMatch,
		ReasoningSummary: v.ReasoningTrace,
	}

	for _, m := range v.VetoedProducts {
		report.RiskWarnings = append(report.RiskWarnings, models.RiskWarning{
			Severity: models.SeverityCritical, RiskType: models.RiskTraitVeto,
			GraphPath: "product_family:" + m.ProductFamilyID,
			Message:   strings.Join(m.VetoReasons, " "),
		})
	}

	if v.RecommendedProduct != nil {
		for _, trait := range v.RecommendedProduct.TraitsMissing {
			report.RiskWarnings = append(report.RiskWarnings, models.RiskWarning{
				Severity: models.SeverityWarning, RiskType: models.RiskTraitGap,
				GraphPath: "trait:" + trait,
				Message:   fmt.Sprintf("%s lacks trait %s", v.RecommendedProduct.ProductFamilyName, trait),
			})
		}
		for _, trait := range v.RecommendedProduct.TraitsNeutralized {
			report.RiskWarnings = append(report.RiskWarnings, models.RiskWarning{
				Severity: models.SeverityWarning, RiskType: models.RiskTraitNeutralization,
				GraphPath: "trait:" + trait,
				Message:   fmt.Sprintf("%s's %s is neutralized in this environment", v.RecommendedProduct.ProductFamilyName, trait),
			})
		}
	}

	for _, rule := range v.ActiveCausalRules {
		if rule.RuleType == models.RuleDemandsTrait && isCorrosionTrait(rule.TraitID) {
			report.MaterialRequirements = append(report.MaterialRequirements, models.MaterialRequirement{
				CorrosionClass: corrosionClassFromTrait(rule.TraitID), Reason: rule.Explanation,
			})
		}
	}

	for _, override := range v.ConstraintOverrides {
		report.RiskWarnings = append(report.RiskWarnings, models.RiskWarning{
			Severity: models.SeverityWarning, RiskType: models.RiskHardConstraintOverride,
			GraphPath: override.PropertyKey,
			Message:   override.ErrorMsg,
			Mitigation: fmt.Sprintf("corrected %v to %v", override.OriginalValue, override.CorrectedValue),
		})
	}

	for _, gate := range v.GateEvaluations {
		switch gate.State {
		case models.GateValidationRequired:
			report.RiskWarnings = append(report.RiskWarnings, models.RiskWarning{
				Severity: models.SeverityInfo, RiskType: models.RiskGateValidationRequired,
				GraphPath: "gate:" + gate.GateID,
				Message:   "additional data needed to evaluate " + gate.GateName + " — You MUST ask for " + strings.Join(gate.MissingParameters, ", "),
			})
			if !v.HasInstallationBlock {
				for _, p := range gate.MissingParameters {
					report.ClarificationQuestions = append(report.ClarificationQuestions, models.MissingParameter{
						FeatureID: gate.GateID, FeatureName: gate.GateName, ParamName: p,
						Question: "What is the value of " + p + "?",
					})
				}
			}
		case models.GateFired:
			report.RiskWarnings = append(report.RiskWarnings, models.RiskWarning{
				Severity: models.SeverityCritical, RiskType: models.RiskGateFired,
				GraphPath: "gate:" + gate.GateID,
				Message:   gate.PhysicsExplanation,
			})
		case models.GateDeferred:
			// Suppression rule 2: every candidate product is already
			// blocked, so there is nothing left to validate the gate
			// against — the question is Deferred rather than demanded.
			report.RiskWarnings = append(report.RiskWarnings, models.RiskWarning{
				Severity: models.SeverityInfo, RiskType: models.RiskGateDeferred,
				GraphPath: "gate:" + gate.GateID,
				Message:   gate.GateName + ": Deferred until a candidate product survives",
			})
		}
	}

	for _, acc := range v.AccessoryValidations {
		if acc.Status == models.AccessoryBlocked {
			report.RiskWarnings = append(report.RiskWarnings, models.RiskWarning{
				Severity: models.SeverityCritical, RiskType: models.RiskAccessoryBlocked,
				GraphPath: "accessory:" + acc.AccessoryCode,
				Message:   acc.Reason,
			})
		}
	}

	for _, violation := range v.InstallationViolations {
		alts := violation.Alternatives
		if violation.ConstraintType == models.ConstraintSetMembership {
			alts = dropSameProductAlternatives(alts, v.RecommendedProduct)
		}
		report.RiskWarnings = append(report.RiskWarnings, models.RiskWarning{
			Severity: violation.Severity, RiskType: models.RiskInstallationBlocked,
			GraphPath: "constraint:" + violation.ConstraintID,
			Message:   violation.ErrorMsg,
			Mitigation: alternativesMitigationText(alts),
		})
	}

	// Suppression rule 3: an assembly replaces the pivot entirely.
	if v.IsAssembly {
		report.Assembly = v.Assembly
	} else if v.AutoPivotTo != "" {
		report.ProductPivot = &models.ProductPivot{
			FromFamilyID: hintedFamilyID(v), ToFamilyID: v.AutoPivotTo, ToFamilyName: v.AutoPivotName, Reason: v.VetoReason,
		}
	}

	report.VariableFeatures = v.MissingParameters

	// Suppression rule 1: installation block suppresses clarifications
	// entirely (already gated above for gate-derived ones; this also
	// drops the engine's own Phase 14 clarification output).
	if v.HasInstallationBlock {
		report.ClarificationQuestions = nil
	} else {
		report.ClarificationQuestions = append(report.ClarificationQuestions, v.ClarificationQuestions...)
	}

	return report
}

func hintedFamilyID(v models.EngineVerdict) string {
	for _, m := range v.VetoedProducts {
		return m.ProductFamilyID
	}
	return ""
}

func dropSameProductAlternatives(alts []models.AlternativeProduct, recommended *models.TraitMatch) []models.AlternativeProduct {
	if recommended == nil {
		return alts
	}
	var out []models.AlternativeProduct
	for _, a := range alts {
		if a.ProductFamilyID == recommended.ProductFamilyID {
			continue
		}
		out = append(out, a)
	}
	return out
}

func alternativesMitigationText(alts []models.AlternativeProduct) string {
	if len(alts) == 0 {
		return ""
	}
	names := make([]string, len(alts))
	for i, a := range alts {
		names[i] = a.ProductFamilyName + " (" + a.WhyItWorks + ")"
	}
	return "consider: " + strings.Join(names, "; ")
}

func isCorrosionTrait(traitID string) bool {
	return strings.HasPrefix(traitID, "TRAIT_CORROSION_")
}

func corrosionClassFromTrait(traitID string) string {
	return strings.TrimPrefix(traitID, "TRAIT_CORROSION_")
}
