// Package scribe implements the intent-extraction adapter of spec
// §4.4: a primary LLM-based extractor (the external collaborator,
// reached through pkg/contracts), a JSON-repair pass over its raw
// output, derived-action resolution for same_as/double references, and
// a regex fallback used whenever the LLM returns an empty or
// unparseable intent. Every fallback table is sourced from a loaded
// tenant.Config — no product names, HVAC terms, or material aliases
// are hardcoded here.
package scribe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mannhummel-graphreasoner/engine/internal/apperrors"
	"github.com/mannhummel-graphreasoner/engine/internal/telemetry"
	"github.com/mannhummel-graphreasoner/engine/internal/tenant"
	"github.com/mannhummel-graphreasoner/engine/pkg/contracts"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// Scribe runs the Scribe LLM first and falls through to the regex
// extractors when it returns nothing usable — the domain-agnostic
// "primary extractor, regex fills gaps only" pipeline.
type Scribe struct {
	llm contracts.IntentExtractor
	cfg *tenant.Config
}

func New(llm contracts.IntentExtractor, cfg *tenant.Config) *Scribe {
	return &Scribe{llm: llm, cfg: cfg}
}

// Extract runs the full pipeline: [Scribe LLM] -> resolve_derived_actions -> merge -> [regex fallback].
func (s *Scribe) Extract(ctx context.Context, systemPrompt, userStateSummary, utterance string) (models.SemanticIntent, []string) {
	var diagnostics []string

	intent, err := s.callLLM(ctx, systemPrompt, userStateSummary, utterance)
	if err != nil {
		diagnostics = append(diagnostics, fmt.Sprintf("scribe llm unavailable, falling back to regex: %v", err))
		intent = models.SemanticIntent{}
	} else {
		cycleDiag := resolveDerivedActions(&intent)
		diagnostics = append(diagnostics, cycleDiag...)
	}

	if intent.Empty() {
		fallback, fallbackDiag := s.regexFallback(utterance)
		intent = mergeIntent(intent, fallback)
		diagnostics = append(diagnostics, fallbackDiag...)
	}

	intent.Diagnostics = append(intent.Diagnostics, diagnostics...)
	return intent, diagnostics
}

func (s *Scribe) callLLM(ctx context.Context, systemPrompt, userStateSummary, utterance string) (models.SemanticIntent, error) {
	if s.llm == nil {
		return models.SemanticIntent{}, &apperrors.ScribeFailure{Reason: "no LLM collaborator configured"}
	}
	ctx, span := telemetry.StartCollaboratorCall(ctx, "scribe")
	defer span.End()
	raw, err := s.llm.ExtractIntent(ctx, systemPrompt, userStateSummary, utterance)
	if err != nil {
		return models.SemanticIntent{}, &apperrors.ScribeFailure{Reason: "llm call failed", Err: err}
	}
	repaired, ok := RepairJSON(raw)
	if !ok {
		return models.SemanticIntent{}, &apperrors.ScribeFailure{Reason: "unrepairable json"}
	}
	var intent models.SemanticIntent
	if err := json.Unmarshal([]byte(repaired), &intent); err != nil {
		return models.SemanticIntent{}, &apperrors.ScribeFailure{Reason: "json did not match SemanticIntent", Err: err}
	}
	return intent, nil
}

// mergeIntent overlays fallback-only fields onto an LLM-derived intent
// without ever discarding what the LLM already supplied — "regex fills
// gaps only".
func mergeIntent(primary, fallback models.SemanticIntent) models.SemanticIntent {
	out := primary
	if len(out.NumericConstraints) == 0 {
		out.NumericConstraints = fallback.NumericConstraints
	}
	if len(out.EntityReferences) == 0 {
		out.EntityReferences = fallback.EntityReferences
	}
	if out.Material == "" {
		out.Material = fallback.Material
	}
	if out.ProjectName == "" {
		out.ProjectName = fallback.ProjectName
	}
	if len(out.Accessories) == 0 {
		out.Accessories = fallback.Accessories
	}
	if out.DetectedApplication == "" {
		out.DetectedApplication = fallback.DetectedApplication
	}
	if out.InstallationEnvironment == "" {
		out.InstallationEnvironment = fallback.InstallationEnvironment
	}
	if !out.HasSpecificConstraint {
		out.HasSpecificConstraint = fallback.HasSpecificConstraint
	}
	return out
}

// RepairJSON balances brackets/braces and strips trailing commas in a
// (possibly truncated) LLM response, returning ok=false if it cannot
// produce something json.Unmarshal-able. It never attempts semantic
// correction — only the mechanical repairs spec §4.4 names.
func RepairJSON(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	start := strings.IndexAny(trimmed, "{[")
	if start < 0 {
		return "", false
	}
	trimmed = trimmed[start:]

	trimmed = stripTrailingCommas(trimmed)
	trimmed = balanceBrackets(trimmed)

	var js json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &js); err != nil {
		return "", false
	}
	return trimmed, true
}

func stripTrailingCommas(s string) string {
	var b strings.Builder
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\t' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the trailing comma
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// balanceBrackets appends closing braces/brackets for any that were
// truncated off the end of the response, respecting string literals so
// a brace inside a quoted value is never counted as structural.
func balanceBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	out := s
	if inString {
		out += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i])
	}
	return out
}

// resolveDerivedActions copies numeric fields from a same_as/double
// referent onto the referencing entity. References that form a cycle
// are dropped and noted in the returned diagnostics rather than
// infinite-looping or panicking.
func resolveDerivedActions(intent *models.SemanticIntent) []string {
	var diagnostics []string
	byID := make(map[string]int, len(intent.EntityReferences))
	for i, e := range intent.EntityReferences {
		byID[e.ID] = i
	}

	for i := range intent.EntityReferences {
		ref := &intent.EntityReferences[i]
		referentID := ref.SameAs
		doubling := false
		if referentID == "" {
			referentID = ref.Double
			doubling = referentID != ""
		}
		if referentID == "" {
			continue
		}

		visited := map[string]bool{ref.ID: true}
		chainIdx, cyclic := followChain(byID, intent.EntityReferences, referentID, visited)
		if cyclic {
			diagnostics = append(diagnostics, fmt.Sprintf("entity %s: same_as/double reference cycle detected, dropped", ref.ID))
			ref.SameAs = ""
			ref.Double = ""
			continue
		}
		if chainIdx < 0 {
			diagnostics = append(diagnostics, fmt.Sprintf("entity %s: unresolved reference %q", ref.ID, referentID))
			continue
		}

		referent := intent.EntityReferences[chainIdx]
		applyDerivedConstraints(intent, ref.ID, referent.ID, doubling)
	}
	return diagnostics
}

// followChain walks same_as/double references to their terminal
// non-derived entity, returning its index, or cyclic=true if the walk
// revisits an id already on the path.
func followChain(byID map[string]int, refs []models.EntityReference, id string, visited map[string]bool) (int, bool) {
	if visited[id] {
		return -1, true
	}
	visited[id] = true

	idx, ok := byID[id]
	if !ok {
		return -1, false
	}
	next := refs[idx].SameAs
	doubling := next == ""
	if next == "" {
		next = refs[idx].Double
	}
	if next == "" {
		return idx, false
	}
	_ = doubling
	return followChain(byID, refs, next, visited)
}

// applyDerivedConstraints copies (or doubles) the referent's numeric
// constraints whose Context matches the referent entity's id onto the
// referencing entity's context namespace.
func applyDerivedConstraints(intent *models.SemanticIntent, refID, referentID string, doubling bool) {
	for _, nc := range intent.NumericConstraints {
		if nc.Context != referentID {
			continue
		}
		derived := nc
		derived.Context = refID
		if doubling {
			derived.Value *= 2
		}
		intent.NumericConstraints = append(intent.NumericConstraints, derived)
	}
}
