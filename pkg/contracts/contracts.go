// Package contracts defines the external-collaborator interfaces that
// sit at the boundary of this service: the Scribe LLM (intent
// extraction), the customer-facing synthesizer LLM, and the judge
// panel used to score a turn's reasoning quality. internal/scribe,
// internal/llmjudge, and cmd/engine depend only on these interfaces —
// swapping providers (OpenAI, Anthropic, a local model) is a wiring
// change in cmd/engine/main.go, never a change to the reasoning code.
package contracts

import "context"

// IntentExtractor is the Scribe LLM collaborator of spec §4.4. It is
// given the cached system prompt, a summary of the current session
// state, and the raw utterance, and must return the SemanticIntent
// JSON as raw text — repair and parsing happen in internal/scribe, not
// here, so this interface stays a thin transport boundary.
type IntentExtractor interface {
	ExtractIntent(ctx context.Context, systemPrompt, stateSummary, utterance string) (string, error)
}

// Synthesizer is the customer-facing LLM that turns a GraphReasoningReport
// (via its prompt-injection rendering) plus conversation history into the
// actual reply shown to the user. internal/verdict produces the text this
// interface is handed; it never calls an LLM itself.
type Synthesizer interface {
	Synthesize(ctx context.Context, systemPrompt, promptContext, utterance string) (string, error)
}

// JudgeVerdict is one judge's scored opinion of a turn.
type JudgeVerdict struct {
	JudgeName string  `json:"judge_name"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
	Err       string  `json:"error,omitempty"`
}

// Judge is one member of the judge panel (spec's llmjudge collaborator
// surface) — an independent LLM asked to score the synthesized reply
// against the reasoning report it was supposed to reflect.
type Judge interface {
	Name() string
	Judge(ctx context.Context, judgePrompt, promptContext, reply string) (JudgeVerdict, error)
}
