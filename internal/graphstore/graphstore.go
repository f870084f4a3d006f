// Package graphstore is the portability boundary of spec §6.3 and §9
// "Graph-database portability": a typed Go interface standing in for a
// Cypher-equivalent query surface. Two implementations exist —
// memory.go (fixture-loadable, the default for tests and local runs)
// and postgres.go (a labeled-property-graph-over-SQL backend using
// pgx) — and a retry.go decorator wraps either in the backoff policy
// spec §7 requires for GraphUnavailable. Nothing outside this package
// knows which backend is in use.
package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/mannhummel-graphreasoner/engine/internal/graphmodel"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// ErrNotFound mirrors the teacher's typed not-found error: callers use
// errors.As, never string matching.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// TagFields is the merge input for UpsertTag — a pointer-per-field
// partial update. A nil field is "not supplied", never "clear this
// field"; spec §3.2/§4.1's merge-only semantics are enforced by the
// implementation, not the caller.
type TagFields struct {
	FilterWidth      *int
	FilterHeight     *int
	FilterDepth      *int
	HousingWidth     *int
	HousingHeight    *int
	HousingLength    *int
	AirflowM3h       *float64
	ProductFamily    *string
	ProductCode      *string
	WeightKg         *float64
	Quantity         *int
	AssemblyGroupID  *string
	AssemblyRole     *string
	MaterialOverride *string
}

type ProjectState struct {
	Project  models.ActiveProject
	Tags     []models.TagUnit
	TagCount int
}

type SessionGraphData struct {
	Nodes []map[string]interface{}
	Edges []map[string]interface{}
}

// GraphReader is the read-mostly query surface over Layers 1-3 of the
// knowledge graph (spec §6.3, read section). Every method is pure given
// the graph's current snapshot — no caching beyond what the backend
// itself provides.
type GraphReader interface {
	GetStressorsByKeywords(ctx context.Context, keywords []string) ([]graphmodel.EnvironmentalStressor, error)
	GetStressorsForApplication(ctx context.Context, appID string) ([]graphmodel.EnvironmentalStressor, error)
	ResolveEnvironmentHierarchy(ctx context.Context, envID string) ([]string, error)
	GetEnvironmentKeywords(ctx context.Context) (map[string][]string, error)

	GetCausalRulesForStressors(ctx context.Context, stressorIDs []string) ([]graphmodel.DemandsTraitRule, []graphmodel.NeutralizedByRule, error)

	GetAllProductFamiliesWithTraits(ctx context.Context) ([]models.ProductFamilyTraits, error)
	GetProductTraits(ctx context.Context, family string) ([]string, error)
	GetHardConstraints(ctx context.Context, family string) ([]graphmodel.HardConstraint, error)
	GetInstallationConstraints(ctx context.Context, family string) ([]graphmodel.InstallationConstraint, error)
	GetVariableFeatures(ctx context.Context, family string) ([]graphmodel.VariableFeature, error)
	GetCapacityRules(ctx context.Context, family string) ([]graphmodel.CapacityRule, error)
	GetOptimizationStrategy(ctx context.Context, family string) (*graphmodel.Strategy, error)

	GetLogicGatesForStressors(ctx context.Context, stressorIDs []string) ([]graphmodel.LogicGate, error)
	GetGatesTriggeredByContext(ctx context.Context, contextKeys []string) ([]graphmodel.LogicGate, error)
	GetDependencyRulesForStressors(ctx context.Context, stressorIDs []string) ([]graphmodel.DependencyRule, error)

	GetAvailableDimensionModules(ctx context.Context, family string) ([]graphmodel.DimensionModule, error)
	GetReferenceAirflowForDimensions(ctx context.Context, widthMM, heightMM int, family string) (float64, bool, error)
	GetVariantWeight(ctx context.Context, variantName string, housingLength *int) (float64, bool, error)

	FindAlternativesForSpaceConstraint(ctx context.Context, requiredDim float64, requiredTraits []string) ([]models.AlternativeProduct, error)
	FindAlternativesForEnvironmentConstraint(ctx context.Context, envID string, requiredTraits []string) ([]models.AlternativeProduct, error)
	FindMaterialAlternativesForThreshold(ctx context.Context, productFamily, crossNodeProperty string, requiredValue float64) ([]models.AlternativeProduct, error)
	FindOtherProductsForMaterialThreshold(ctx context.Context, crossNodeProperty string, requiredValue float64, requiredTraits []string) ([]models.AlternativeProduct, error)
	FindProductsWithHigherCapacity(ctx context.Context, currentFamily string, requiredTraits []string) ([]models.AlternativeProduct, error)

	GetProductFamilyCodeFormat(ctx context.Context, family string) (format string, defaultFrameDepth *int, err error)
	GetAccessoryCompatibility(ctx context.Context, accessoryCode, family string) (graphmodel.AccessoryEdge, bool, error)
	GetAllAccessoryCodes(ctx context.Context) ([]string, error)

	GetRequiredParameters(ctx context.Context, family string) ([]graphmodel.Parameter, error)
	GetContextualClarifications(ctx context.Context, appID, family string) ([]graphmodel.Parameter, error)
}

// SessionWriter is the thin write surface over the session subgraph
// (spec §4.2 and §3.2). All operations are idempotent and conditional:
// a nil field never unsets an existing value unless the method is
// explicitly a clearer (ClearSession).
type SessionWriter interface {
	EnsureSession(ctx context.Context, sessionID, userID string) (models.Session, error)

	SetProject(ctx context.Context, sessionID, name, customer string) error
	LockMaterial(ctx context.Context, sessionID, material string) error
	SetDetectedFamily(ctx context.Context, sessionID, family string) error
	SetPendingClarification(ctx context.Context, sessionID, clarification string) error
	SetAccessories(ctx context.Context, sessionID string, accessories []string) error
	SetAssemblyGroup(ctx context.Context, sessionID, assemblyGroupJSON string) error
	SetResolvedParams(ctx context.Context, sessionID, resolvedParamsJSON string) error
	SetVetoedFamilies(ctx context.Context, sessionID string, families []string) error

	UpsertTag(ctx context.Context, sessionID, tagID string, fields TagFields, sharedProperties []string) (models.TagUnit, error)
	DeleteTag(ctx context.Context, sessionID, tagID string) error
	GetProjectState(ctx context.Context, sessionID string) (ProjectState, error)

	StoreTurn(ctx context.Context, sessionID string, role models.TurnRole, message string, turnNumber int) (models.ConversationTurn, error)
	GetRecentTurns(ctx context.Context, sessionID string, n int) ([]models.ConversationTurn, error)

	ClearSession(ctx context.Context, sessionID string) error
	CleanupStaleSessions(ctx context.Context, ttl time.Duration) (int, error)
	GetSessionGraphData(ctx context.Context, sessionID string) (SessionGraphData, error)
}

// Store composes both halves — the pattern the teacher's
// internal/store.Store interface uses to assemble many narrow
// interfaces into the one handle the rest of the codebase depends on.
type Store interface {
	GraphReader
	SessionWriter
	Close() error
}
