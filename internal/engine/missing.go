package engine

import (
	"context"

	"github.com/mannhummel-graphreasoner/engine/internal/graphmodel"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// phase11MissingParameters implements spec §4.3 Phase 11: a variable
// feature with auto_resolve=true gets silently defaulted; otherwise an
// unresolved feature becomes a MissingParameter the downstream LLM must
// ask about.
func (e *Engine) phase11MissingParameters(ctx context.Context, r *run) error {
	if r.verdict.RecommendedProduct == nil {
		return nil
	}
	family := r.verdict.RecommendedProduct.ProductFamilyID

	features, err := e.graph.GetVariableFeatures(ctx, family)
	if err != nil {
		return err
	}

	for _, feat := range features {
		if _, present := r.resolvedParams[feat.ParameterName]; present {
			continue
		}
		if feat.AutoResolve {
			r.resolvedParams[feat.ParameterName] = feat.DefaultValue
			continue
		}
		r.verdict.MissingParameters = append(r.verdict.MissingParameters, toMissingParameter(feat))
	}

	r.trace("missing_parameters", "variance check over "+family+"'s variable features", nil)
	return nil
}

func toMissingParameter(feat graphmodel.VariableFeature) models.MissingParameter {
	mp := models.MissingParameter{
		FeatureID: feat.ID, FeatureName: feat.FeatureName, ParamName: feat.ParameterName,
		Question: feat.Question, WhyNeeded: feat.WhyNeeded,
	}
	for _, opt := range feat.Options {
		mp.Options = append(mp.Options, models.FeatureOption{
			Value: opt.Value, Name: opt.Name, DisplayLabel: opt.DisplayLabel, Benefit: opt.Benefit,
			IsDefault: opt.IsDefault, IsRecommended: opt.IsRecommended,
			MinRequiredHousingLen: opt.MinRequiredHousingLen, LengthOffsetMM: opt.LengthOffsetMM,
		})
	}
	return mp
}
