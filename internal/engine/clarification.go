package engine

import (
	"context"
	"sort"

	"github.com/mannhummel-graphreasoner/engine/internal/graphmodel"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// phase14ClarificationAssembly implements spec §4.3 Phase 14: gather
// globally-required and contextually-triggered Parameter nodes, skip
// anything already resolved, and sort by priority. An installation
// block suppresses clarification output entirely — the product
// question must settle first.
func (e *Engine) phase14ClarificationAssembly(ctx context.Context, r *run) error {
	if r.verdict.HasInstallationBlock || r.verdict.RecommendedProduct == nil {
		return nil
	}
	family := r.verdict.RecommendedProduct.ProductFamilyID

	required, err := e.graph.GetRequiredParameters(ctx, family)
	if err != nil {
		return err
	}

	appID, _ := stringParam(r.resolvedParams, "detected_application")
	contextual, err := e.graph.GetContextualClarifications(ctx, appID, family)
	if err != nil {
		return err
	}

	all := append(append([]graphmodel.Parameter{}, required...), contextual...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Priority < all[j].Priority })

	seen := map[string]bool{}
	for _, p := range all {
		if _, resolved := r.resolvedParams[p.PropertyKey]; resolved {
			continue
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		r.verdict.ClarificationQuestions = append(r.verdict.ClarificationQuestions, toClarificationParam(p))
	}

	r.trace("clarification_assembly", "assembled clarification questions for "+family, nil)
	return nil
}

func toClarificationParam(p graphmodel.Parameter) models.MissingParameter {
	return models.MissingParameter{FeatureID: p.ID, FeatureName: p.Name, ParamName: p.PropertyKey, Question: p.Question}
}
