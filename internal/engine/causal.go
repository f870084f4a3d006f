package engine

import (
	"context"

	"github.com/mannhummel-graphreasoner/engine/internal/graphmodel"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// stressorNames indexes detected stressors by id so later phases can
// render a human-readable explanation without a second graph round trip.
func (r *run) stressorNames() map[string]string {
	out := make(map[string]string, len(r.verdict.DetectedStressors))
	for _, s := range r.verdict.DetectedStressors {
		out[s.ID] = s.Name
	}
	return out
}

// phase2CausalRules implements spec §4.3 Phase 2: fetch DEMANDS_TRAIT
// and NEUTRALIZED_BY edges for the active stressors and coalesce both
// into the CausalRule type.
func (e *Engine) phase2CausalRules(ctx context.Context, r *run) error {
	demands, neutralized, err := e.graph.GetCausalRulesForStressors(ctx, r.activeStressorIDs)
	if err != nil {
		return err
	}
	names := r.stressorNames()

	var out []models.CausalRule
	for _, d := range demands {
		out = append(out, demandsToCausal(d, names[d.StressorID]))
		r.requiredTraits[d.TraitID] = struct{}{}
	}
	for _, n := range neutralized {
		out = append(out, neutralizedToCausal(n, names[n.StressorID]))
	}
	r.verdict.ActiveCausalRules = out

	r.trace("causal_rules", causalSummary(out), nil)
	return nil
}

func demandsToCausal(d graphmodel.DemandsTraitRule, stressorName string) models.CausalRule {
	return models.CausalRule{
		RuleType: models.RuleDemandsTrait, StressorID: d.StressorID, StressorName: stressorName,
		TraitID: d.TraitID, Severity: models.Severity(d.Severity), Explanation: d.Explanation,
	}
}

func neutralizedToCausal(n graphmodel.NeutralizedByRule, stressorName string) models.CausalRule {
	return models.CausalRule{
		RuleType: models.RuleNeutralizedBy, StressorID: n.StressorID, StressorName: stressorName,
		TraitID: n.TraitID, Severity: models.Severity(n.Severity), Explanation: n.Explanation,
	}
}

func causalSummary(rules []models.CausalRule) string {
	if len(rules) == 0 {
		return "no causal rules apply to the detected stressors"
	}
	critical := 0
	for _, rule := range rules {
		if rule.Severity == models.SeverityCritical {
			critical++
		}
	}
	if critical == 0 {
		return "resolved causal rules with no critical severities"
	}
	return "resolved causal rules including critical constraints that may veto candidates"
}
