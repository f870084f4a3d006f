package engine

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// phase3TraitMatching implements spec §4.3 Phase 3: score every
// candidate product family against the set of traits the active
// causal rules demand.
func (e *Engine) phase3TraitMatching(ctx context.Context, r *run) error {
	families, err := e.graph.GetAllProductFamiliesWithTraits(ctx)
	if err != nil {
		return err
	}

	req := make([]string, 0, len(r.requiredTraits))
	for t := range r.requiredTraits {
		req = append(req, t)
	}
	sort.Strings(req)

	neutralizedTraitsByStressor := map[string]map[string]bool{}
	for _, rule := range r.verdict.ActiveCausalRules {
		if rule.RuleType != models.RuleNeutralizedBy {
			continue
		}
		if neutralizedTraitsByStressor[rule.StressorID] == nil {
			neutralizedTraitsByStressor[rule.StressorID] = map[string]bool{}
		}
		neutralizedTraitsByStressor[rule.StressorID][rule.TraitID] = true
	}
	activeStressors := toSet(r.activeStressorIDs)

	matches := make([]models.TraitMatch, 0, len(families))
	for _, fam := range families {
		allSet := toSet(fam.AllTraitIDs)
		present := intersectSet(fam.AllTraitIDs, r.requiredTraits)
		missing := diffSlice(req, allSet)

		var neutralized []string
		for stressorID, traits := range neutralizedTraitsByStressor {
			if !activeStressors[stressorID] {
				continue
			}
			for traitID := range traits {
				if allSet[traitID] {
					neutralized = append(neutralized, traitID)
				}
			}
		}
		neutralized = uniqueSorted(neutralized)

		coverage := 0.0
		if len(req) > 0 {
			coverage = float64(len(present)) / float64(len(req))
		} else {
			coverage = 1.0
		}

		matches = append(matches, models.TraitMatch{
			ProductFamilyID: fam.ProductID, ProductFamilyName: fam.ProductName,
			TraitsPresent: present, TraitsMissing: missing, TraitsNeutralized: neutralized,
			CoverageScore: coverage, SelectionPriority: fam.SelectionPriority,
		})
	}

	r.verdict.RankedProducts = matches
	r.trace("trait_matching", "scored "+strconv.Itoa(len(matches))+" candidate product families against "+strconv.Itoa(len(req))+" required traits", nil)
	return nil
}

// phase4Veto implements spec §4.3 Phase 4: a candidate is vetoed if a
// CRITICAL demands-trait rule names a missing trait, or a CRITICAL
// neutralized-by rule names a neutralized trait that is present.
func (e *Engine) phase4Veto(r *run) {
	criticalDemands := map[string]string{}  // trait -> explanation
	criticalNeutral := map[string]string{}  // trait -> explanation
	for _, rule := range r.verdict.ActiveCausalRules {
		if rule.Severity != models.SeverityCritical {
			continue
		}
		switch rule.RuleType {
		case models.RuleDemandsTrait:
			criticalDemands[rule.TraitID] = explanationOrDefault(rule)
		case models.RuleNeutralizedBy:
			criticalNeutral[rule.TraitID] = explanationOrDefault(rule)
		}
	}

	for i := range r.verdict.RankedProducts {
		m := &r.verdict.RankedProducts[i]
		var reasons []string
		for _, missing := range m.TraitsMissing {
			if explanation, ok := criticalDemands[missing]; ok {
				reasons = append(reasons, explanation)
			}
		}
		for _, neutral := range m.TraitsNeutralized {
			if explanation, ok := criticalNeutral[neutral]; ok {
				reasons = append(reasons, explanation)
			}
		}
		if len(reasons) > 0 {
			m.Vetoed = true
			m.VetoReasons = uniqueSorted(reasons)
		}
	}

	var vetoed []models.TraitMatch
	for _, m := range r.verdict.RankedProducts {
		if m.Vetoed {
			vetoed = append(vetoed, m)
		}
	}
	r.verdict.VetoedProducts = vetoed
	r.trace("veto", strconv.Itoa(len(vetoed))+" of "+strconv.Itoa(len(r.verdict.RankedProducts))+" candidates vetoed by critical causal rules", nil)
}

func explanationOrDefault(rule models.CausalRule) string {
	if rule.Explanation != "" {
		return rule.Explanation
	}
	return rule.StressorName + " conflicts with trait " + rule.TraitName
}

// phase5RankingAndPivot implements spec §4.3 Phase 5.
func (e *Engine) phase5RankingAndPivot(r *run) {
	var eligible []models.TraitMatch
	for _, m := range r.verdict.RankedProducts {
		if !m.Vetoed {
			eligible = append(eligible, m)
		}
	}

	var hintedIdx = -1
	if r.in.ProductHint != "" {
		hint := strings.ToLower(r.in.ProductHint)
		for i, m := range eligible {
			if strings.HasSuffix(strings.ToLower(m.ProductFamilyID), hint) {
				hintedIdx = i
				break
			}
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].CoverageScore != eligible[j].CoverageScore {
			return eligible[i].CoverageScore > eligible[j].CoverageScore
		}
		return eligible[i].SelectionPriority < eligible[j].SelectionPriority
	})

	if hintedIdx >= 0 {
		hinted := eligible[hintedIdx]
		rest := make([]models.TraitMatch, 0, len(eligible))
		rest = append(rest, hinted)
		for _, m := range eligible {
			if m.ProductFamilyID != hinted.ProductFamilyID {
				rest = append(rest, m)
			}
		}
		eligible = rest
	}

	if len(eligible) > 0 {
		top := eligible[0]
		r.verdict.RecommendedProduct = &top
	}

	if r.in.ProductHint != "" && hintedIdx < 0 {
		var hintedVetoed *models.TraitMatch
		for i, m := range r.verdict.VetoedProducts {
			if strings.HasSuffix(strings.ToLower(m.ProductFamilyID), strings.ToLower(r.in.ProductHint)) {
				hintedVetoed = &r.verdict.VetoedProducts[i]
				break
			}
		}
		if hintedVetoed != nil && len(eligible) > 0 {
			r.verdict.HasVeto = true
			r.verdict.AutoPivotTo = eligible[0].ProductFamilyID
			r.verdict.AutoPivotName = eligible[0].ProductFamilyName
			r.verdict.VetoReason = strings.Join(hintedVetoed.VetoReasons, " ")
		}
	}

	r.trace("ranking_and_pivot", rankingSummary(r), nil)
}

func rankingSummary(r *run) string {
	if r.verdict.RecommendedProduct == nil {
		return "no eligible product family after veto"
	}
	if r.verdict.HasVeto {
		return "hinted product vetoed; pivoted to " + r.verdict.AutoPivotName
	}
	return "recommended " + r.verdict.RecommendedProduct.ProductFamilyName
}

// ── small set helpers ─────────────────────────────────────────────

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, x := range items {
		set[x] = true
	}
	return set
}

func intersectSet(items []string, set map[string]struct{}) []string {
	var out []string
	for _, x := range items {
		if _, ok := set[x]; ok {
			out = append(out, x)
		}
	}
	sort.Strings(out)
	return out
}

func diffSlice(items []string, set map[string]bool) []string {
	var out []string
	for _, x := range items {
		if !set[x] {
			out = append(out, x)
		}
	}
	return out
}

func uniqueSorted(items []string) []string {
	set := map[string]bool{}
	var out []string
	for _, x := range items {
		if !set[x] {
			set[x] = true
			out = append(out, x)
		}
	}
	sort.Strings(out)
	return out
}

