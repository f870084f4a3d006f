// Package turn implements spec §6.1's single in-process entrypoint,
// process_turn: given a session and a raw user message, it extracts
// intent (Scribe), folds it into the session's cumulative technical
// state, runs the reasoning engine, and adapts the verdict into the
// presentation-layer report and prompt-injection text. No transport —
// HTTP/SSE packaging is explicitly out of scope and left to callers.
package turn

import (
	"context"
	"fmt"
	"strings"

	"github.com/mannhummel-graphreasoner/engine/internal/engine"
	"github.com/mannhummel-graphreasoner/engine/internal/graphstore"
	"github.com/mannhummel-graphreasoner/engine/internal/scribe"
	"github.com/mannhummel-graphreasoner/engine/internal/session"
	"github.com/mannhummel-graphreasoner/engine/internal/state"
	"github.com/mannhummel-graphreasoner/engine/internal/tenant"
	"github.com/mannhummel-graphreasoner/engine/internal/verdict"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// Result is the process_turn return shape of spec §6.1.
type Result struct {
	Verdict         models.EngineVerdict
	Report          models.GraphReasoningReport
	PromptInjection string
	StateAfter      *state.TechnicalState
}

// Orchestrator wires the three in-scope subsystems — cumulative state,
// reasoning engine, verdict adapter — around the external Scribe
// collaborator and the session store.
type Orchestrator struct {
	sessions *session.Manager
	engine   *engine.Engine
	scribe   *scribe.Scribe
	cfg      *tenant.Config
}

func New(sessions *session.Manager, eng *engine.Engine, scr *scribe.Scribe, cfg *tenant.Config) *Orchestrator {
	return &Orchestrator{sessions: sessions, engine: eng, scribe: scr, cfg: cfg}
}

// ProcessTurn runs one conversational turn to completion.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, userID, userMessage string) (Result, error) {
	_, ts, err := o.sessions.Begin(ctx, sessionID, userID)
	if err != nil {
		return Result{}, fmt.Errorf("begin session: %w", err)
	}

	if _, err := o.sessions.RecordTurn(ctx, sessionID, models.RoleUser, userMessage); err != nil {
		return Result{}, fmt.Errorf("record user turn: %w", err)
	}

	intent, diagnostics := o.scribe.Extract(ctx, systemPromptForIntent, ts.ToPromptContext(), userMessage)
	applyIntent(ts, intent)

	in := engine.Input{
		Query:       userMessage,
		ProductHint: ts.DetectedFamily,
		Context:     engineContext(ts, intent),
	}

	v, err := o.engine.ProcessQuery(ctx, in)
	if err != nil {
		return Result{}, fmt.Errorf("process query: %w", err)
	}
	for _, d := range diagnostics {
		v.ReasoningTrace = append(v.ReasoningTrace, models.ReasoningStep{Stage: "scribe", Summary: d})
	}

	applyVerdict(ts, v)

	if err := ts.PersistToGraph(ctx, o.sessions.Writer()); err != nil {
		return Result{}, fmt.Errorf("persist state: %w", err)
	}

	report := verdict.Adapt(v)
	promptInjection := verdict.RenderPromptInjection(report, v)

	return Result{Verdict: v, Report: report, PromptInjection: promptInjection, StateAfter: ts}, nil
}

const systemPromptForIntent = "Extract structured engineering intent (dimensions, material, project name, accessories, application, installation environment) from the user's message. Return JSON matching the SemanticIntent schema."

// applyIntent folds a SemanticIntent into the cumulative technical
// state: project/material locks are set once, numeric constraints are
// grouped by their "tagID.field" context key and merged per tag.
func applyIntent(ts *state.TechnicalState, intent models.SemanticIntent) {
	if intent.ProjectName != "" {
		ts.SetProject(intent.ProjectName, "")
	}
	if intent.Material != "" {
		ts.LockMaterial(intent.Material)
	}
	if intent.DetectedApplication != "" {
		ts.ResolvedParams["detected_application"] = intent.DetectedApplication
	}
	if intent.InstallationEnvironment != "" {
		ts.ResolvedParams["installation_environment"] = intent.InstallationEnvironment
	}
	if len(intent.Accessories) > 0 {
		ts.Accessories = mergeUnique(ts.Accessories, intent.Accessories)
	}

	byTag := map[string]graphstore.TagFields{}
	for _, nc := range intent.NumericConstraints {
		tagID, field, ok := splitContext(nc.Context)
		if !ok {
			continue
		}
		fields := byTag[tagID]
		applyNumericField(&fields, field, nc.Value)
		byTag[tagID] = fields
	}
	for tagID, fields := range byTag {
		ts.MergeTag(tagID, fields)
	}
}

func splitContext(context string) (tagID, field string, ok bool) {
	idx := strings.LastIndex(context, ".")
	if idx < 0 {
		return "", "", false
	}
	return context[:idx], context[idx+1:], true
}

func applyNumericField(fields *graphstore.TagFields, field string, value float64) {
	iv := int(value)
	switch field {
	case "filter_width":
		fields.FilterWidth = &iv
	case "filter_height":
		fields.FilterHeight = &iv
	case "filter_depth":
		fields.FilterDepth = &iv
	case "housing_width":
		fields.HousingWidth = &iv
	case "housing_height":
		fields.HousingHeight = &iv
	case "housing_length":
		fields.HousingLength = &iv
	case "airflow_m3h":
		fields.AirflowM3h = &value
	case "weight_kg":
		fields.WeightKg = &value
	case "quantity":
		fields.Quantity = &iv
	}
}

func mergeUnique(existing, incoming []string) []string {
	seen := map[string]bool{}
	out := append([]string{}, existing...)
	for _, v := range existing {
		seen[v] = true
	}
	for _, v := range incoming {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// applyVerdict folds engine output back into the cumulative state: the
// recommended family, any newly vetoed families, and an assembly
// group, if the pipeline produced one. An assembly verdict expands the
// base tag it was reasoned about into one TagUnit per stage (spec
// §4.3 Phase 6) and removes that base tag.
func applyVerdict(ts *state.TechnicalState, v models.EngineVerdict) {
	if v.RecommendedProduct != nil {
		ts.DetectedFamily = v.RecommendedProduct.ProductFamilyID
	}
	for _, m := range v.VetoedProducts {
		ts.VetoedFamilies = mergeUnique(ts.VetoedFamilies, []string{m.ProductFamilyID})
	}
	if v.IsAssembly {
		ts.CreateAssemblyTags(baseTagID(ts), v.Assembly, v.AssemblyRationale)
	}
	if len(v.MissingParameters) > 0 {
		ts.PendingClarification = v.MissingParameters[0].ParamName
	}
}

// baseTagID picks the tag an assembly verdict should expand: the first
// tag not already part of an assembly group, or the single-item
// convention "item_1" if no tag has been merged into yet this session.
func baseTagID(ts *state.TechnicalState) string {
	for _, tag := range ts.Tags() {
		if tag.AssemblyGroupID == "" {
			return tag.TagID
		}
	}
	return "item_1"
}

// engineContext seeds the engine's resolved-params input from the
// state's persisted params plus whatever the intent surfaced this turn
// (accessories as a typed slice, the locked material as a
// cross-property value gates/constraints may reference).
func engineContext(ts *state.TechnicalState, intent models.SemanticIntent) map[string]interface{} {
	ctx := map[string]interface{}{}
	for k, v := range ts.ResolvedParams {
		ctx[k] = v
	}
	if ts.LockedMaterial != "" {
		ctx["locked_material"] = ts.LockedMaterial
	}
	if len(ts.Accessories) > 0 {
		ctx["accessories"] = ts.Accessories
	}
	if len(intent.Accessories) > 0 {
		ctx["accessories"] = mergeUnique(toStrings(ctx["accessories"]), intent.Accessories)
	}
	return ctx
}

func toStrings(v interface{}) []string {
	s, _ := v.([]string)
	return s
}
