// Package engine implements the trait-based reasoning pipeline of spec
// §4.3: a fixed, phase-ordered sequence that turns a query plus
// upstream-extracted context into an EngineVerdict. Every phase is pure
// over (graph snapshot, inputs) — no I/O beyond graph reads — and
// appends a step to the verdict's reasoning trace, which is the only
// side channel the rest of the system trusts for "why did the engine
// decide this".
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mannhummel-graphreasoner/engine/internal/apperrors"
	"github.com/mannhummel-graphreasoner/engine/internal/graphstore"
	"github.com/mannhummel-graphreasoner/engine/internal/telemetry"
	"github.com/mannhummel-graphreasoner/engine/internal/tenant"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// Engine runs the pipeline against a GraphReader snapshot. It holds no
// per-turn state of its own — everything the pipeline needs travels in
// Input and accumulates in the verdict being built.
type Engine struct {
	graph graphstore.GraphReader
	cfg   *tenant.Config
}

func New(graph graphstore.GraphReader, cfg *tenant.Config) *Engine {
	return &Engine{graph: graph, cfg: cfg}
}

// Input mirrors spec §4.3's process_query signature: query plus an
// optional product hint plus the context map upstream extraction
// (Scribe, prior turns) has already resolved.
type Input struct {
	Query       string
	ProductHint string
	Context     map[string]interface{}
}

// run is the mutable scratch space threaded through the phases —
// unexported so no phase can be called out of order from outside the
// package, matching the "fixed pipeline" invariant.
type run struct {
	in      Input
	cfg     *tenant.Config
	verdict models.EngineVerdict

	activeStressorIDs []string
	requiredTraits    map[string]struct{} // REQ: filled by phase 2, read by phase 3
	resolvedParams    map[string]interface{}
}

func (r *run) trace(stage, summary string, details map[string]interface{}) {
	r.verdict.ReasoningTrace = append(r.verdict.ReasoningTrace, models.ReasoningStep{
		Stage: stage, Summary: summary, Details: details,
	})
}

// ProcessQuery runs the full 14-phase pipeline and returns the verdict.
func (e *Engine) ProcessQuery(ctx context.Context, in Input) (models.EngineVerdict, error) {
	ctx, span := telemetry.StartPhase(ctx, "process_query")
	defer span.End()

	r := &run{
		in:             in,
		cfg:            e.cfg,
		requiredTraits: map[string]struct{}{},
		resolvedParams: map[string]interface{}{},
	}
	for k, v := range in.Context {
		r.resolvedParams[k] = v
	}

	phases := []struct {
		name string
		run  func(context.Context, *run) error
	}{
		{"stressor_detection", e.phase1Stressors},
		{"causal_rules", e.phase2CausalRules},
		{"trait_matching", e.phase3TraitMatching},
		{"veto", func(_ context.Context, r *run) error { e.phase4Veto(r); return nil }},
		{"ranking_and_pivot", func(_ context.Context, r *run) error { e.phase5RankingAndPivot(r); return nil }},
		{"assembly_construction", e.phase6AssemblyConstruction},
		{"hard_constraints", e.phase7HardConstraints},
		{"logic_gates", e.phase8LogicGates},
		{"capacity", e.phase9Capacity},
		{"sizing_arrangement", e.phase10SizingArrangement},
		{"missing_parameters", e.phase11MissingParameters},
		{"accessory_validation", e.phase12AccessoryValidation},
		{"installation_constraints", e.phase13InstallationConstraints},
		{"clarification_assembly", e.phase14ClarificationAssembly},
	}

	for i, p := range phases {
		phaseCtx, phaseSpan := telemetry.StartPhase(ctx, p.name)
		err := p.run(phaseCtx, r)
		phaseSpan.End()
		if err != nil {
			var unavailable *apperrors.GraphUnavailable
			if errors.As(err, &unavailable) {
				r.trace("graph_degraded", fmt.Sprintf("graph degraded: phase %d %s did not complete: %v", i+1, p.name, err), nil)
				return r.verdict, nil
			}
			return r.verdict, fmt.Errorf("phase %d %s: %w", i+1, p.name, err)
		}
	}

	return r.verdict, nil
}

// queryKeywords lowercases and tokenizes the raw query for keyword-based
// stressor/environment matching.
func queryKeywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	return fields
}

func stringParam(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func floatParam(params map[string]interface{}, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
