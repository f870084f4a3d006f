package engine

import (
	"context"
	"strconv"

	"github.com/mannhummel-graphreasoner/engine/internal/graphmodel"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// phase8LogicGates implements spec §4.3 Phase 8. Gate evaluation never
// panics or propagates a compile/evaluate error past this phase — an
// unevaluable gate degrades to VALIDATION_REQUIRED with every parameter
// in its RequiresData listed as missing; the offending parameter is not
// singled out.
func (e *Engine) phase8LogicGates(ctx context.Context, r *run) error {
	gates, err := e.graph.GetLogicGatesForStressors(ctx, r.activeStressorIDs)
	if err != nil {
		return err
	}

	allProductsBlocked := len(r.verdict.RankedProducts) > 0 && r.verdict.RecommendedProduct == nil

	names := r.stressorNames()
	for _, g := range gates {
		eval := e.evaluateGate(g, r, allProductsBlocked, names)
		r.verdict.GateEvaluations = append(r.verdict.GateEvaluations, eval)
	}

	r.trace("logic_gates", "evaluated "+strconv.Itoa(len(gates))+" logic gate(s) against active stressors", nil)
	return nil
}

func (e *Engine) evaluateGate(g graphmodel.LogicGate, r *run, allProductsBlocked bool, stressorNames map[string]string) models.GateEvaluation {
	eval := models.GateEvaluation{GateID: g.ID, GateName: g.Name}
	if len(g.Monitors) > 0 {
		eval.StressorID = g.Monitors[0]
		eval.StressorName = stressorNames[g.Monitors[0]]
	}

	if allProductsBlocked || r.verdict.HasInstallationBlock {
		eval.State = models.GateDeferred
		return eval
	}

	var missing []string
	for _, paramKey := range g.RequiresData {
		if !paramPresent(r.resolvedParams, paramKey) {
			missing = append(missing, paramKey)
		}
	}
	if len(missing) > 0 {
		eval.State = models.GateValidationRequired
		eval.MissingParameters = missing
		return eval
	}

	fired, err := compileGateCondition(g.ConditionLogic, r.resolvedParams)
	if err != nil {
		// A gate whose condition_logic fails to compile or evaluate
		// degrades to VALIDATION_REQUIRED rather than surfacing an
		// apperrors.ConstraintEvaluationError past this phase.
		eval.State = models.GateValidationRequired
		eval.MissingParameters = g.RequiresData
		return eval
	}

	if fired {
		eval.State = models.GateFired
		eval.PhysicsExplanation = g.PhysicsExplanation
	} else {
		eval.State = models.GateInactive
	}
	return eval
}

// paramPresent reports whether resolvedParams has an entry under key,
// exactly as the gate lists it in RequiresData. It is a single direct
// lookup: no alias (such as a parameter's property key when the gate
// lists its id) is tried.
func paramPresent(params map[string]interface{}, key string) bool {
	_, ok := params[key]
	return ok
}
