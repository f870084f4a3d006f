// Package llmjudge fans a synthesized reply out to a panel of judge
// collaborators (spec §5: "judge-panel fan-out — 3 parallel bounded
// LLM calls") and collects every verdict, including failures, without
// letting one slow or broken judge block the others.
package llmjudge

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mannhummel-graphreasoner/engine/internal/telemetry"
	"github.com/mannhummel-graphreasoner/engine/pkg/contracts"
	"github.com/rs/zerolog/log"
)

const defaultJudgeTimeout = 300 * time.Second

// Panel dispatches a judge prompt to every registered contracts.Judge
// concurrently and waits for all of them to finish or time out.
type Panel struct {
	judges  []contracts.Judge
	timeout time.Duration
}

// NewPanel builds a Panel over the given judges. A zero timeout falls
// back to the default 300s bound from spec §5.
func NewPanel(judges []contracts.Judge, timeout time.Duration) *Panel {
	if timeout <= 0 {
		timeout = defaultJudgeTimeout
	}
	return &Panel{judges: judges, timeout: timeout}
}

// Evaluate runs every judge in the panel concurrently against the same
// prompt/context/reply and returns one verdict per judge, in
// registration order. A judge that errors after retries still
// produces a verdict — with Err set — rather than being dropped, so
// callers can tell "judge said low score" from "judge was unreachable".
func (p *Panel) Evaluate(ctx context.Context, judgePrompt, promptContext, reply string) []contracts.JudgeVerdict {
	results := make([]contracts.JudgeVerdict, len(p.judges))

	var wg sync.WaitGroup
	for i, j := range p.judges {
		wg.Add(1)
		go func(idx int, judge contracts.Judge) {
			defer wg.Done()
			results[idx] = p.runWithRetry(ctx, judge, judgePrompt, promptContext, reply)
		}(i, j)
	}
	wg.Wait()

	return results
}

func (p *Panel) runWithRetry(ctx context.Context, judge contracts.Judge, judgePrompt, promptContext, reply string) contracts.JudgeVerdict {
	ctx, span := telemetry.StartCollaboratorCall(ctx, "judge:"+judge.Name())
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var verdict contracts.JudgeVerdict
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), callCtx)

	err := backoff.Retry(func() error {
		v, err := judge.Judge(callCtx, judgePrompt, promptContext, reply)
		if err != nil {
			log.Warn().Err(err).Str("judge", judge.Name()).Msg("judge call failed, retrying")
			return err
		}
		verdict = v
		return nil
	}, policy)

	if err != nil {
		return contracts.JudgeVerdict{JudgeName: judge.Name(), Err: err.Error()}
	}
	if verdict.JudgeName == "" {
		verdict.JudgeName = judge.Name()
	}
	return verdict
}
