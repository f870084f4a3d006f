package engine

import (
	"context"
	"math"
	"strconv"

	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// phase9Capacity implements spec §4.3 Phase 9: module count from a
// ceil division of the resolved requirement over the rule's per-module
// output rating, plus a search for higher-rated alternatives when more
// than one module is needed.
func (e *Engine) phase9Capacity(ctx context.Context, r *run) error {
	if r.verdict.RecommendedProduct == nil {
		return nil
	}
	family := r.verdict.RecommendedProduct.ProductFamilyID

	rules, err := e.graph.GetCapacityRules(ctx, family)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		r.trace("capacity", "no capacity rule for "+family, nil)
		return nil
	}
	rule := rules[0]

	inputValue, ok := floatParam(r.resolvedParams, rule.InputRequirement)
	if !ok {
		r.trace("capacity", "capacity input "+rule.InputRequirement+" not yet resolved", nil)
		return nil
	}

	modulesNeeded := int(math.Ceil(inputValue / rule.OutputRating))
	if modulesNeeded < 1 {
		modulesNeeded = 1
	}

	r.verdict.CapacityCalculation = &models.CapacityCalculation{
		ModulesNeeded: modulesNeeded, InputValue: inputValue, OutputRating: rule.OutputRating,
		Description: rule.ModuleDescriptor,
	}
	r.resolvedParams["modules_needed"] = modulesNeeded

	if modulesNeeded > 1 {
		var required []string
		if r.verdict.RecommendedProduct != nil {
			required = r.verdict.RecommendedProduct.TraitsPresent
		}
		alts, err := e.graph.FindProductsWithHigherCapacity(ctx, family, required)
		if err != nil {
			return err
		}
		r.verdict.CapacityAlternatives = alts
	}

	r.trace("capacity", "capacity requires "+strconv.Itoa(modulesNeeded)+" module(s) of "+family, nil)
	return nil
}
