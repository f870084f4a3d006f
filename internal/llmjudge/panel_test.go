package llmjudge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mannhummel-graphreasoner/engine/internal/llmjudge"
	"github.com/mannhummel-graphreasoner/engine/pkg/contracts"
)

type fakeJudge struct {
	name     string
	failN    int
	verdict  contracts.JudgeVerdict
	calls    int
	delay    time.Duration
}

func (f *fakeJudge) Name() string { return f.name }

func (f *fakeJudge) Judge(ctx context.Context, judgePrompt, promptContext, reply string) (contracts.JudgeVerdict, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return contracts.JudgeVerdict{}, ctx.Err()
		}
	}
	if f.calls <= f.failN {
		return contracts.JudgeVerdict{}, errors.New("transient failure")
	}
	return f.verdict, nil
}

func TestPanel_Evaluate_FanOutPreservesOrder(t *testing.T) {
	a := &fakeJudge{name: "accuracy", verdict: contracts.JudgeVerdict{Score: 0.9}}
	b := &fakeJudge{name: "completeness", verdict: contracts.JudgeVerdict{Score: 0.7}}
	c := &fakeJudge{name: "safety", verdict: contracts.JudgeVerdict{Score: 1.0}}

	panel := llmjudge.NewPanel([]contracts.Judge{a, b, c}, time.Second)
	results := panel.Evaluate(context.Background(), "judge this", "context", "reply")

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].JudgeName != "accuracy" || results[0].Score != 0.9 {
		t.Errorf("results[0] = %+v, want accuracy/0.9", results[0])
	}
	if results[1].JudgeName != "completeness" || results[1].Score != 0.7 {
		t.Errorf("results[1] = %+v, want completeness/0.7", results[1])
	}
	if results[2].JudgeName != "safety" || results[2].Score != 1.0 {
		t.Errorf("results[2] = %+v, want safety/1.0", results[2])
	}
}

// TestPanel_Evaluate_RetriesThenSucceeds covers a judge that fails twice
// then succeeds on its third attempt, within the panel's retry budget.
func TestPanel_Evaluate_RetriesThenSucceeds(t *testing.T) {
	j := &fakeJudge{name: "accuracy", failN: 2, verdict: contracts.JudgeVerdict{Score: 0.5}}
	panel := llmjudge.NewPanel([]contracts.Judge{j}, 5*time.Second)

	results := panel.Evaluate(context.Background(), "p", "c", "r")

	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Err != "" {
		t.Errorf("Err = %q, want empty after a successful retry", results[0].Err)
	}
	if results[0].Score != 0.5 {
		t.Errorf("Score = %v, want 0.5", results[0].Score)
	}
	if j.calls < 3 {
		t.Errorf("calls = %d, want at least 3 (two failures then a success)", j.calls)
	}
}

// TestPanel_Evaluate_ExhaustedRetriesProducesErrVerdict covers a judge
// that never succeeds: it must still produce a verdict with Err set
// rather than being silently dropped from the results slice.
func TestPanel_Evaluate_ExhaustedRetriesProducesErrVerdict(t *testing.T) {
	j := &fakeJudge{name: "accuracy", failN: 100}
	panel := llmjudge.NewPanel([]contracts.Judge{j}, time.Second)

	results := panel.Evaluate(context.Background(), "p", "c", "r")

	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Err == "" {
		t.Error("expected Err to be populated after exhausting retries")
	}
	if results[0].JudgeName != "accuracy" {
		t.Errorf("JudgeName = %q, want accuracy even on failure", results[0].JudgeName)
	}
}

// TestPanel_Evaluate_OneSlowJudgeDoesNotBlockOthers covers the timeout
// bound: a judge slower than the panel's per-call timeout times out and
// reports an error, while a fast sibling judge still completes.
func TestPanel_Evaluate_OneSlowJudgeDoesNotBlockOthers(t *testing.T) {
	slow := &fakeJudge{name: "slow", delay: 50 * time.Millisecond}
	fast := &fakeJudge{name: "fast", verdict: contracts.JudgeVerdict{Score: 0.8}}

	panel := llmjudge.NewPanel([]contracts.Judge{slow, fast}, 5*time.Millisecond)
	results := panel.Evaluate(context.Background(), "p", "c", "r")

	if results[0].Err == "" {
		t.Error("expected the slow judge to time out and report an error")
	}
	if results[1].Err != "" || results[1].Score != 0.8 {
		t.Errorf("fast judge result = %+v, want a clean 0.8", results[1])
	}
}

func TestNewPanel_DefaultsNonPositiveTimeout(t *testing.T) {
	j := &fakeJudge{name: "accuracy", verdict: contracts.JudgeVerdict{Score: 1}}
	panel := llmjudge.NewPanel([]contracts.Judge{j}, 0)

	results := panel.Evaluate(context.Background(), "p", "c", "r")
	if len(results) != 1 || results[0].Err != "" {
		t.Errorf("results = %+v, want a single clean verdict under the default timeout", results)
	}
}
