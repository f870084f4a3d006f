package engine

import (
	"context"

	"github.com/mannhummel-graphreasoner/engine/internal/graphmodel"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// phase13InstallationConstraints implements spec §4.3 Phase 13 /
// §4.5: each InstallationConstraint is dispatched by ConstraintType to
// its own evaluator. A CRITICAL violation sets has_installation_block,
// which the verdict adapter uses to suppress lower-priority sections.
func (e *Engine) phase13InstallationConstraints(ctx context.Context, r *run) error {
	if r.verdict.RecommendedProduct == nil {
		return nil
	}
	family := r.verdict.RecommendedProduct.ProductFamilyID

	constraints, err := e.graph.GetInstallationConstraints(ctx, family)
	if err != nil {
		return err
	}

	requiredTraits := r.verdict.RecommendedProduct.TraitsPresent

	for _, c := range constraints {
		violation, err := e.evaluateInstallationConstraint(ctx, c, r, requiredTraits)
		if err != nil {
			return err
		}
		if violation == nil {
			continue
		}
		r.verdict.InstallationViolations = append(r.verdict.InstallationViolations, *violation)
		if violation.Severity == models.SeverityCritical {
			r.verdict.HasInstallationBlock = true
		}
	}

	r.trace("installation_constraints", "evaluated installation constraints for "+family, nil)
	return nil
}

// evaluateInstallationConstraint is the ConstraintType dispatch table
// of §4.5 — a tagged variant switch over a closed, compile-time-known
// set, never a runtime string-keyed map of handlers.
func (e *Engine) evaluateInstallationConstraint(ctx context.Context, c graphmodel.InstallationConstraint, r *run, requiredTraits []string) (*models.InstallationViolation, error) {
	switch models.ConstraintType(c.ConstraintType) {
	case models.ConstraintSetMembership:
		return e.evalSetMembership(ctx, c, r, requiredTraits)
	case models.ConstraintComputedFormula:
		return e.evalComputedFormula(ctx, c, r, requiredTraits)
	case models.ConstraintCrossNodeThreshold:
		return e.evalCrossNodeThreshold(ctx, c, r, requiredTraits)
	case models.ConstraintCrossPropCompare:
		return e.evalCrossPropertyCompare(ctx, c, r, requiredTraits)
	case models.ConstraintContextMatch:
		return e.evalContextMatch(ctx, c, r, requiredTraits)
	default:
		return nil, nil
	}
}

// evalSetMembership: the property's value (expanded upward through
// IS_A) must intersect the constraint's valid_set.
func (e *Engine) evalSetMembership(ctx context.Context, c graphmodel.InstallationConstraint, r *run, requiredTraits []string) (*models.InstallationViolation, error) {
	value, ok := stringParam(r.resolvedParams, c.PropertyKey)
	if !ok {
		return nil, nil
	}
	chain, err := e.graph.ResolveEnvironmentHierarchy(ctx, value)
	if err != nil {
		return nil, err
	}
	validSet := toSet(c.ValidSet)
	for _, node := range chain {
		if validSet[node] {
			return nil, nil
		}
	}

	alts, err := e.graph.FindAlternativesForEnvironmentConstraint(ctx, value, requiredTraits)
	if err != nil {
		return nil, err
	}
	return &models.InstallationViolation{
		ConstraintID: c.ID, ConstraintType: models.ConstraintSetMembership, Severity: models.Severity(c.Severity),
		ErrorMsg: c.ErrorMsg, Details: map[string]interface{}{"value": value, "valid_set": c.ValidSet},
		Alternatives: alts,
	}, nil
}

// evalComputedFormula: required = dim_value * (1 + service_access_factor); violation if required > available_space.
func (e *Engine) evalComputedFormula(ctx context.Context, c graphmodel.InstallationConstraint, r *run, requiredTraits []string) (*models.InstallationViolation, error) {
	dimValue, ok := floatParam(r.resolvedParams, c.DimensionProperty)
	if !ok {
		return nil, nil
	}
	availableSpace, ok := floatParam(r.resolvedParams, c.AvailableSpaceKey)
	if !ok {
		return nil, nil
	}
	factor := 0.0
	if c.ServiceAccessFactor != nil {
		factor = *c.ServiceAccessFactor
	}
	required := dimValue * (1 + factor)
	if required <= availableSpace {
		return nil, nil
	}

	alts, err := e.graph.FindAlternativesForSpaceConstraint(ctx, availableSpace, requiredTraits)
	if err != nil {
		return nil, err
	}
	return &models.InstallationViolation{
		ConstraintID: c.ID, ConstraintType: models.ConstraintComputedFormula, Severity: models.Severity(c.Severity),
		ErrorMsg: c.ErrorMsg,
		Details: map[string]interface{}{"required": required, "available_space": availableSpace},
		Alternatives: alts,
	}, nil
}

// evalCrossNodeThreshold: a property on a related node (e.g. the
// locked material's resistance rating) must be >= required_value.
func (e *Engine) evalCrossNodeThreshold(ctx context.Context, c graphmodel.InstallationConstraint, r *run, requiredTraits []string) (*models.InstallationViolation, error) {
	if c.RequiredValue == nil {
		return nil, nil
	}
	actual, ok := floatParam(r.resolvedParams, c.CrossNodeProperty)
	if !ok {
		return nil, nil
	}
	if actual >= *c.RequiredValue {
		return nil, nil
	}
	family := r.verdict.RecommendedProduct.ProductFamilyID

	sameProductAlts, err := e.graph.FindMaterialAlternativesForThreshold(ctx, family, c.CrossNodeProperty, *c.RequiredValue)
	if err != nil {
		return nil, err
	}
	otherProductAlts, err := e.graph.FindOtherProductsForMaterialThreshold(ctx, c.CrossNodeProperty, *c.RequiredValue, requiredTraits)
	if err != nil {
		return nil, err
	}

	return &models.InstallationViolation{
		ConstraintID: c.ID, ConstraintType: models.ConstraintCrossNodeThreshold, Severity: models.Severity(c.Severity),
		ErrorMsg: c.ErrorMsg,
		Details:      map[string]interface{}{"actual": actual, "required": *c.RequiredValue},
		Alternatives: append(sameProductAlts, otherProductAlts...),
	}, nil
}

// evalCrossPropertyCompare: two properties on related nodes, compared
// by the constraint's operator.
func (e *Engine) evalCrossPropertyCompare(ctx context.Context, c graphmodel.InstallationConstraint, r *run, requiredTraits []string) (*models.InstallationViolation, error) {
	local, ok1 := floatParam(r.resolvedParams, c.LocalProperty)
	cross, ok2 := floatParam(r.resolvedParams, c.CrossProperty)
	if !ok1 || !ok2 {
		return nil, nil
	}
	if compareOK(local, cross, c.CompareOperator) {
		return nil, nil
	}

	family := r.verdict.RecommendedProduct.ProductFamilyID
	alts, err := e.graph.FindMaterialAlternativesForThreshold(ctx, family, c.CrossProperty, local)
	if err != nil {
		return nil, err
	}
	return &models.InstallationViolation{
		ConstraintID: c.ID, ConstraintType: models.ConstraintCrossPropCompare, Severity: models.Severity(c.Severity),
		ErrorMsg: c.ErrorMsg,
		Details:      map[string]interface{}{"local": local, "cross": cross, "operator": c.CompareOperator},
		Alternatives: alts,
	}, nil
}

// evalContextMatch: a context key must match or be <= a product property.
func (e *Engine) evalContextMatch(ctx context.Context, c graphmodel.InstallationConstraint, r *run, requiredTraits []string) (*models.InstallationViolation, error) {
	required, ok := stringParam(r.resolvedParams, c.ContextKey)
	if !ok {
		return nil, nil
	}
	actual, ok := stringParam(r.resolvedParams, c.PropertyKey)
	if !ok || actual >= required {
		return nil, nil
	}

	family := r.verdict.RecommendedProduct.ProductFamilyID
	alts, err := e.graph.FindMaterialAlternativesForThreshold(ctx, family, c.PropertyKey, 0)
	if err != nil {
		return nil, err
	}
	return &models.InstallationViolation{
		ConstraintID: c.ID, ConstraintType: models.ConstraintContextMatch, Severity: models.Severity(c.Severity),
		ErrorMsg: c.ErrorMsg,
		Details:      map[string]interface{}{"required": required, "actual": actual},
		Alternatives: alts,
	}, nil
}

func compareOK(local, cross float64, operator string) bool {
	switch operator {
	case "<=":
		return local <= cross
	case ">=":
		return local >= cross
	case "<":
		return local < cross
	case ">":
		return local > cross
	case "==":
		return local == cross
	default:
		return true
	}
}
