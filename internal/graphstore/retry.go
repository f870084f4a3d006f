package graphstore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/mannhummel-graphreasoner/engine/internal/apperrors"
	"github.com/mannhummel-graphreasoner/engine/internal/graphmodel"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// RetryingReader wraps a GraphReader with bounded exponential backoff
// for transient failures, per spec §7's GraphUnavailable policy. The
// teacher's workflow engine retries steps with a hand-rolled
// time.Duration(1<<attempt) loop and leaves a comment that
// expr-lang/expr could later replace its condition parser; here we take
// the opposite, already-available half of that same opportunity and
// use the backoff library the teacher's go.mod already carries.
type RetryingReader struct {
	inner      GraphReader
	maxRetries uint64
}

func NewRetryingReader(inner GraphReader, maxRetries uint64) *RetryingReader {
	if maxRetries == 0 {
		maxRetries = 3
	}
	return &RetryingReader{inner: inner, maxRetries: maxRetries}
}

func (r *RetryingReader) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)
}

// retry runs op, retrying on any returned error, and wraps the final
// failure as *apperrors.GraphUnavailable so callers can match it with
// errors.As and degrade the verdict rather than fail the turn.
func retry[T any](ctx context.Context, r *RetryingReader, op string, fn func() (T, error)) (T, error) {
	var result T
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var innerErr error
		result, innerErr = fn()
		if innerErr != nil {
			log.Warn().Str("op", op).Int("attempt", attempt).Err(innerErr).Msg("graph read failed, retrying")
		}
		return innerErr
	}, r.policy(ctx))
	if err != nil {
		var zero T
		return zero, &apperrors.GraphUnavailable{Op: op, Err: err}
	}
	return result, nil
}

func (r *RetryingReader) GetStressorsByKeywords(ctx context.Context, keywords []string) ([]graphmodel.EnvironmentalStressor, error) {
	return retry(ctx, r, "GetStressorsByKeywords", func() ([]graphmodel.EnvironmentalStressor, error) {
		return r.inner.GetStressorsByKeywords(ctx, keywords)
	})
}

func (r *RetryingReader) GetStressorsForApplication(ctx context.Context, appID string) ([]graphmodel.EnvironmentalStressor, error) {
	return retry(ctx, r, "GetStressorsForApplication", func() ([]graphmodel.EnvironmentalStressor, error) {
		return r.inner.GetStressorsForApplication(ctx, appID)
	})
}

func (r *RetryingReader) ResolveEnvironmentHierarchy(ctx context.Context, envID string) ([]string, error) {
	return retry(ctx, r, "ResolveEnvironmentHierarchy", func() ([]string, error) {
		return r.inner.ResolveEnvironmentHierarchy(ctx, envID)
	})
}

func (r *RetryingReader) GetEnvironmentKeywords(ctx context.Context) (map[string][]string, error) {
	return retry(ctx, r, "GetEnvironmentKeywords", func() (map[string][]string, error) {
		return r.inner.GetEnvironmentKeywords(ctx)
	})
}

func (r *RetryingReader) GetCausalRulesForStressors(ctx context.Context, stressorIDs []string) ([]graphmodel.DemandsTraitRule, []graphmodel.NeutralizedByRule, error) {
	type pair struct {
		d []graphmodel.DemandsTraitRule
		n []graphmodel.NeutralizedByRule
	}
	p, err := retry(ctx, r, "GetCausalRulesForStressors", func() (pair, error) {
		d, n, err := r.inner.GetCausalRulesForStressors(ctx, stressorIDs)
		return pair{d, n}, err
	})
	return p.d, p.n, err
}

func (r *RetryingReader) GetAllProductFamiliesWithTraits(ctx context.Context) ([]models.ProductFamilyTraits, error) {
	return retry(ctx, r, "GetAllProductFamiliesWithTraits", func() ([]models.ProductFamilyTraits, error) {
		return r.inner.GetAllProductFamiliesWithTraits(ctx)
	})
}

func (r *RetryingReader) GetProductTraits(ctx context.Context, family string) ([]string, error) {
	return retry(ctx, r, "GetProductTraits", func() ([]string, error) { return r.inner.GetProductTraits(ctx, family) })
}

func (r *RetryingReader) GetHardConstraints(ctx context.Context, family string) ([]graphmodel.HardConstraint, error) {
	return retry(ctx, r, "GetHardConstraints", func() ([]graphmodel.HardConstraint, error) {
		return r.inner.GetHardConstraints(ctx, family)
	})
}

func (r *RetryingReader) GetInstallationConstraints(ctx context.Context, family string) ([]graphmodel.InstallationConstraint, error) {
	return retry(ctx, r, "GetInstallationConstraints", func() ([]graphmodel.InstallationConstraint, error) {
		return r.inner.GetInstallationConstraints(ctx, family)
	})
}

func (r *RetryingReader) GetVariableFeatures(ctx context.Context, family string) ([]graphmodel.VariableFeature, error) {
	return retry(ctx, r, "GetVariableFeatures", func() ([]graphmodel.VariableFeature, error) {
		return r.inner.GetVariableFeatures(ctx, family)
	})
}

func (r *RetryingReader) GetCapacityRules(ctx context.Context, family string) ([]graphmodel.CapacityRule, error) {
	return retry(ctx, r, "GetCapacityRules", func() ([]graphmodel.CapacityRule, error) {
		return r.inner.GetCapacityRules(ctx, family)
	})
}

func (r *RetryingReader) GetOptimizationStrategy(ctx context.Context, family string) (*graphmodel.Strategy, error) {
	return retry(ctx, r, "GetOptimizationStrategy", func() (*graphmodel.Strategy, error) {
		return r.inner.GetOptimizationStrategy(ctx, family)
	})
}

func (r *RetryingReader) GetLogicGatesForStressors(ctx context.Context, stressorIDs []string) ([]graphmodel.LogicGate, error) {
	return retry(ctx, r, "GetLogicGatesForStressors", func() ([]graphmodel.LogicGate, error) {
		return r.inner.GetLogicGatesForStressors(ctx, stressorIDs)
	})
}

func (r *RetryingReader) GetGatesTriggeredByContext(ctx context.Context, contextKeys []string) ([]graphmodel.LogicGate, error) {
	return retry(ctx, r, "GetGatesTriggeredByContext", func() ([]graphmodel.LogicGate, error) {
		return r.inner.GetGatesTriggeredByContext(ctx, contextKeys)
	})
}

func (r *RetryingReader) GetDependencyRulesForStressors(ctx context.Context, stressorIDs []string) ([]graphmodel.DependencyRule, error) {
	return retry(ctx, r, "GetDependencyRulesForStressors", func() ([]graphmodel.DependencyRule, error) {
		return r.inner.GetDependencyRulesForStressors(ctx, stressorIDs)
	})
}

func (r *RetryingReader) GetAvailableDimensionModules(ctx context.Context, family string) ([]graphmodel.DimensionModule, error) {
	return retry(ctx, r, "GetAvailableDimensionModules", func() ([]graphmodel.DimensionModule, error) {
		return r.inner.GetAvailableDimensionModules(ctx, family)
	})
}

func (r *RetryingReader) GetReferenceAirflowForDimensions(ctx context.Context, widthMM, heightMM int, family string) (float64, bool, error) {
	type pair struct {
		v  float64
		ok bool
	}
	p, err := retry(ctx, r, "GetReferenceAirflowForDimensions", func() (pair, error) {
		v, ok, err := r.inner.GetReferenceAirflowForDimensions(ctx, widthMM, heightMM, family)
		return pair{v, ok}, err
	})
	return p.v, p.ok, err
}

func (r *RetryingReader) GetVariantWeight(ctx context.Context, variantName string, housingLength *int) (float64, bool, error) {
	type pair struct {
		v  float64
		ok bool
	}
	p, err := retry(ctx, r, "GetVariantWeight", func() (pair, error) {
		v, ok, err := r.inner.GetVariantWeight(ctx, variantName, housingLength)
		return pair{v, ok}, err
	})
	return p.v, p.ok, err
}

func (r *RetryingReader) FindAlternativesForSpaceConstraint(ctx context.Context, requiredDim float64, requiredTraits []string) ([]models.AlternativeProduct, error) {
	return retry(ctx, r, "FindAlternativesForSpaceConstraint", func() ([]models.AlternativeProduct, error) {
		return r.inner.FindAlternativesForSpaceConstraint(ctx, requiredDim, requiredTraits)
	})
}

func (r *RetryingReader) FindAlternativesForEnvironmentConstraint(ctx context.Context, envID string, requiredTraits []string) ([]models.AlternativeProduct, error) {
	return retry(ctx, r, "FindAlternativesForEnvironmentConstraint", func() ([]models.AlternativeProduct, error) {
		return r.inner.FindAlternativesForEnvironmentConstraint(ctx, envID, requiredTraits)
	})
}

func (r *RetryingReader) FindMaterialAlternativesForThreshold(ctx context.Context, productFamily, crossNodeProperty string, requiredValue float64) ([]models.AlternativeProduct, error) {
	return retry(ctx, r, "FindMaterialAlternativesForThreshold", func() ([]models.AlternativeProduct, error) {
		return r.inner.FindMaterialAlternativesForThreshold(ctx, productFamily, crossNodeProperty, requiredValue)
	})
}

func (r *RetryingReader) FindOtherProductsForMaterialThreshold(ctx context.Context, crossNodeProperty string, requiredValue float64, requiredTraits []string) ([]models.AlternativeProduct, error) {
	return retry(ctx, r, "FindOtherProductsForMaterialThreshold", func() ([]models.AlternativeProduct, error) {
		return r.inner.FindOtherProductsForMaterialThreshold(ctx, crossNodeProperty, requiredValue, requiredTraits)
	})
}

func (r *RetryingReader) FindProductsWithHigherCapacity(ctx context.Context, currentFamily string, requiredTraits []string) ([]models.AlternativeProduct, error) {
	return retry(ctx, r, "FindProductsWithHigherCapacity", func() ([]models.AlternativeProduct, error) {
		return r.inner.FindProductsWithHigherCapacity(ctx, currentFamily, requiredTraits)
	})
}

func (r *RetryingReader) GetProductFamilyCodeFormat(ctx context.Context, family string) (string, *int, error) {
	type pair struct {
		format string
		depth  *int
	}
	p, err := retry(ctx, r, "GetProductFamilyCodeFormat", func() (pair, error) {
		f, d, err := r.inner.GetProductFamilyCodeFormat(ctx, family)
		return pair{f, d}, err
	})
	return p.format, p.depth, err
}

func (r *RetryingReader) GetAccessoryCompatibility(ctx context.Context, accessoryCode, family string) (graphmodel.AccessoryEdge, bool, error) {
	type pair struct {
		e  graphmodel.AccessoryEdge
		ok bool
	}
	p, err := retry(ctx, r, "GetAccessoryCompatibility", func() (pair, error) {
		e, ok, err := r.inner.GetAccessoryCompatibility(ctx, accessoryCode, family)
		return pair{e, ok}, err
	})
	return p.e, p.ok, err
}

func (r *RetryingReader) GetAllAccessoryCodes(ctx context.Context) ([]string, error) {
	return retry(ctx, r, "GetAllAccessoryCodes", func() ([]string, error) { return r.inner.GetAllAccessoryCodes(ctx) })
}

func (r *RetryingReader) GetRequiredParameters(ctx context.Context, family string) ([]graphmodel.Parameter, error) {
	return retry(ctx, r, "GetRequiredParameters", func() ([]graphmodel.Parameter, error) {
		return r.inner.GetRequiredParameters(ctx, family)
	})
}

func (r *RetryingReader) GetContextualClarifications(ctx context.Context, appID, family string) ([]graphmodel.Parameter, error) {
	return retry(ctx, r, "GetContextualClarifications", func() ([]graphmodel.Parameter, error) {
		return r.inner.GetContextualClarifications(ctx, appID, family)
	})
}

var _ GraphReader = (*RetryingReader)(nil)
