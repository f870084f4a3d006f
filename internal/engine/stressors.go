package engine

import (
	"context"

	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// phase1Stressors implements spec §4.3 Phase 1: union three detection
// sources, deduplicating by stressor id and keeping the
// highest-confidence source for each.
func (e *Engine) phase1Stressors(ctx context.Context, r *run) error {
	byID := map[string]models.DetectedStressor{}

	keep := func(d models.DetectedStressor) {
		existing, ok := byID[d.ID]
		if !ok || d.Confidence > existing.Confidence {
			byID[d.ID] = d
		}
	}

	keywords := queryKeywords(r.in.Query)
	keywordHits, err := e.graph.GetStressorsByKeywords(ctx, keywords)
	if err != nil {
		return err
	}
	for _, s := range keywordHits {
		keep(models.DetectedStressor{
			ID: s.ID, Name: s.Name, Description: s.Description,
			DetectionMethod: models.DetectionKeyword, Confidence: 1.0,
			MatchedKeywords: intersect(keywords, s.Keywords),
		})
	}

	if appID, ok := stringParam(r.resolvedParams, "detected_application"); ok {
		appHits, err := e.graph.GetStressorsForApplication(ctx, appID)
		if err != nil {
			return err
		}
		for _, s := range appHits {
			keep(models.DetectedStressor{
				ID: s.ID, Name: s.Name, Description: s.Description,
				DetectionMethod: models.DetectionApplicationLink, Confidence: 0.9,
				SourceContext: appID,
			})
		}
	}

	if envID, ok := stringParam(r.resolvedParams, "installation_environment"); ok {
		chain, err := e.graph.ResolveEnvironmentHierarchy(ctx, envID)
		if err != nil {
			return err
		}
		envKeywords, err := e.graph.GetEnvironmentKeywords(ctx)
		if err != nil {
			return err
		}
		var chainKeywords []string
		for _, envInChain := range chain {
			chainKeywords = append(chainKeywords, envKeywords[envInChain]...)
		}
		envHits, err := e.graph.GetStressorsByKeywords(ctx, chainKeywords)
		if err != nil {
			return err
		}
		for _, s := range envHits {
			keep(models.DetectedStressor{
				ID: s.ID, Name: s.Name, Description: s.Description,
				DetectionMethod: models.DetectionEnvironmentLink, Confidence: 0.9,
				SourceContext: envID,
			})
		}
	}

	out := make([]models.DetectedStressor, 0, len(byID))
	ids := make([]string, 0, len(byID))
	for _, d := range byID {
		out = append(out, d)
		ids = append(ids, d.ID)
	}
	r.verdict.DetectedStressors = out
	r.activeStressorIDs = ids

	r.trace("stressor_detection", summarizeStressors(out), map[string]interface{}{"stressor_ids": ids})
	return nil
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, x := range b {
		set[x] = true
	}
	var out []string
	for _, x := range a {
		if set[x] {
			out = append(out, x)
		}
	}
	return out
}

func summarizeStressors(stressors []models.DetectedStressor) string {
	if len(stressors) == 0 {
		return "no environmental stressors detected in the query or context"
	}
	names := make([]string, len(stressors))
	for i, s := range stressors {
		names[i] = s.Name
	}
	return "detected stressors: " + joinComma(names)
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
