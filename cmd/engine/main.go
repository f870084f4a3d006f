// Command engine is the process entrypoint for the graph reasoning
// engine. There is no HTTP surface here — spec §6.1 defines the core
// API as the in-process call internal/turn.Orchestrator.ProcessTurn;
// packaging it behind a transport (HTTP, SSE, RPC) is left to whatever
// embeds this module. This binary wires storage, session management,
// the reasoning pipeline, and the background retention janitor, then
// drives one or more turns supplied on stdin or as a single -message
// flag, printing each turn's verdict, report, and prompt-injection text.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mannhummel-graphreasoner/engine/internal/apperrors"
	"github.com/mannhummel-graphreasoner/engine/internal/config"
	"github.com/mannhummel-graphreasoner/engine/internal/engine"
	"github.com/mannhummel-graphreasoner/engine/internal/graphstore"
	"github.com/mannhummel-graphreasoner/engine/internal/llmjudge"
	"github.com/mannhummel-graphreasoner/engine/internal/retention"
	"github.com/mannhummel-graphreasoner/engine/internal/scribe"
	"github.com/mannhummel-graphreasoner/engine/internal/session"
	"github.com/mannhummel-graphreasoner/engine/internal/telemetry"
	"github.com/mannhummel-graphreasoner/engine/internal/tenant"
	"github.com/mannhummel-graphreasoner/engine/internal/turn"
	"github.com/mannhummel-graphreasoner/engine/pkg/contracts"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	sessionID := flag.String("session", "", "session id to resume (defaults to a fresh one)")
	message := flag.String("message", "", "a single user message to process and exit; omit to read turns from stdin")
	flag.Parse()

	log.Info().Msg("graph reasoning engine starting")

	cfg := config.Load()
	tenantCfg, err := tenant.NewLoader().Load(cfg.TenantConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("tenant config failed to load")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("graph store unavailable")
	}
	defer store.Close()

	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry init failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	sessions := session.NewManager(store, tenantCfg)

	janitor := retention.NewJanitor(sessions,
		time.Duration(cfg.Session.SweepIntervalMin)*time.Minute,
		time.Duration(cfg.Session.TTLMinutes)*time.Minute)
	go janitor.Start(ctx)

	// The Scribe LLM, synthesizer, and judge panel are external
	// collaborators the core never implements itself (spec §1's
	// Non-goals) — noOpIntentExtractor below is the wiring point a
	// deployment replaces with a real provider (OpenAI, Anthropic, a
	// local model) satisfying pkg/contracts.IntentExtractor.
	scr := scribe.New(noOpIntentExtractor{}, tenantCfg)
	eng := engine.New(graphstore.NewRetryingReader(store, 3), tenantCfg)
	orchestrator := turn.New(sessions, eng, scr, tenantCfg)

	_ = llmjudge.NewPanel(nil, 0) // judge panel wiring point; see pkg/contracts.Judge

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info().Msg("shutting down")
		cancel()
	}()

	sid := *sessionID
	if sid == "" {
		sid = uuid.NewString()
	}

	if *message != "" {
		runTurn(ctx, orchestrator, sid, *message)
		return
	}

	log.Info().Str("session_id", sid).Msg("reading turns from stdin, one message per line")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		runTurn(ctx, orchestrator, sid, line)
	}
}

// openStore connects to Postgres at cfg.Database.URL, falling back to
// the in-memory fixture store when that URL is empty or
// NewPostgresStore returns an error. config.Load always supplies a
// non-empty URL (a localhost default when DATABASE_URL is unset), and
// NewPostgresStore does not ping the server, so an unreachable database
// is not detected here and does not trigger the fallback.
func openStore(ctx context.Context, cfg *config.Config) (graphstore.Store, error) {
	if cfg.Database.URL == "" {
		return graphstore.NewMemoryStore(graphstore.DefaultFixture()), nil
	}
	store, err := graphstore.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		log.Warn().Err(err).Msg("postgres unavailable, falling back to in-memory fixture store")
		return graphstore.NewMemoryStore(graphstore.DefaultFixture()), nil
	}
	return store, nil
}

func runTurn(ctx context.Context, o *turn.Orchestrator, sessionID, message string) {
	result, err := o.ProcessTurn(ctx, sessionID, "cli-user", message)
	if err != nil {
		var graphErr *apperrors.GraphUnavailable
		if errors.As(err, &graphErr) {
			log.Error().Err(err).Msg("graph degraded, turn aborted")
			return
		}
		log.Error().Err(err).Msg("turn failed")
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]interface{}{
		"session_id":       sessionID,
		"verdict":          result.Verdict,
		"report":           result.Report,
		"prompt_injection": result.PromptInjection,
	})
}

// noOpIntentExtractor stands in for the Scribe LLM collaborator: it
// always reports failure so Scribe.Extract falls through to the
// tenant-configured regex fallback, which is enough to exercise the
// full pipeline without a live LLM credential.
type noOpIntentExtractor struct{}

func (noOpIntentExtractor) ExtractIntent(ctx context.Context, systemPrompt, stateSummary, utterance string) (string, error) {
	return "", fmt.Errorf("no intent extractor configured")
}

var _ contracts.IntentExtractor = noOpIntentExtractor{}
