package engine

import (
	"context"
	"fmt"

	"github.com/mannhummel-graphreasoner/engine/internal/graphmodel"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// phase7HardConstraints implements spec §4.3 Phase 7: a resolved
// parameter that violates a family's hard constraint is silently
// corrected (never vetoed) and the correction is recorded.
func (e *Engine) phase7HardConstraints(ctx context.Context, r *run) error {
	if r.verdict.RecommendedProduct == nil {
		return nil
	}
	family := r.verdict.RecommendedProduct.ProductFamilyID

	constraints, err := e.graph.GetHardConstraints(ctx, family)
	if err != nil {
		return err
	}

	for _, c := range constraints {
		current, ok := r.resolvedParams[c.PropertyKey]
		if !ok {
			continue
		}
		corrected, violated := applyOperator(current, c)
		if !violated {
			continue
		}
		r.verdict.ConstraintOverrides = append(r.verdict.ConstraintOverrides, models.ConstraintOverride{
			ItemID: family, PropertyKey: c.PropertyKey, Operator: c.Operator,
			OriginalValue: current, CorrectedValue: corrected, ErrorMsg: c.ErrorMsg,
		})
		r.resolvedParams[c.PropertyKey] = corrected
	}

	r.trace("hard_constraints", fmt.Sprintf("applied %d hard constraint(s) for %s, %d override(s)", len(constraints), family, len(r.verdict.ConstraintOverrides)), nil)
	return nil
}

// applyOperator checks current against the constraint and, if
// violated, returns the corrected value (clamped to the constraint's
// bound) and true.
func applyOperator(current interface{}, c graphmodel.HardConstraint) (interface{}, bool) {
	cf, ok1 := toFloat(current)
	vf, ok2 := toFloat(c.Value)
	if !ok1 || !ok2 {
		return current, false
	}
	switch c.Operator {
	case "<=":
		if cf > vf {
			return c.Value, true
		}
	case ">=":
		if cf < vf {
			return c.Value, true
		}
	case "<":
		if cf >= vf {
			return c.Value, true
		}
	case ">":
		if cf <= vf {
			return c.Value, true
		}
	case "==":
		if cf != vf {
			return c.Value, true
		}
	}
	return current, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
