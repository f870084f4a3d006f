// Package models holds the value types that cross component boundaries:
// the engine's verdict, the session-store's persisted shapes, and the
// adapter's report. Nothing in this package has behavior beyond small
// pure helpers — orchestration lives in internal/*.
package models

import "time"

// ── Severity & shared enums ─────────────────────────────────────

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

type DetectionMethod string

const (
	DetectionKeyword         DetectionMethod = "keyword"
	DetectionApplicationLink DetectionMethod = "application_link"
	DetectionEnvironmentLink DetectionMethod = "environment_link"
)

type RuleType string

const (
	RuleNeutralizedBy RuleType = "NEUTRALIZED_BY"
	RuleDemandsTrait  RuleType = "DEMANDS_TRAIT"
)

type AssemblyRole string

const (
	RoleProtector AssemblyRole = "PROTECTOR"
	RoleTarget    AssemblyRole = "TARGET"
)

type GateState string

const (
	GateFired              GateState = "FIRED"
	GateValidationRequired GateState = "VALIDATION_REQUIRED"
	GateDeferred           GateState = "DEFERRED"
	GateInactive           GateState = "INACTIVE"
)

type AccessoryStatus string

const (
	AccessoryAllowed    AccessoryStatus = "ALLOWED"
	AccessoryBlocked    AccessoryStatus = "BLOCKED"
	AccessoryNotAllowed AccessoryStatus = "NOT_ALLOWED"
	AccessoryUnknown    AccessoryStatus = "UNKNOWN"
)

// ConstraintType is a closed set, known at compile time from the graph
// schema (§4.5) — dispatch lives in internal/engine/installation.go as a
// tagged variant switch, never a string-keyed map built at runtime.
type ConstraintType string

const (
	ConstraintSetMembership      ConstraintType = "SET_MEMBERSHIP"
	ConstraintComputedFormula    ConstraintType = "COMPUTED_FORMULA"
	ConstraintCrossNodeThreshold ConstraintType = "CROSS_NODE_THRESHOLD"
	ConstraintCrossPropCompare   ConstraintType = "CROSS_PROPERTY_COMPARE"
	ConstraintContextMatch       ConstraintType = "CONTEXT_MATCH"
)

// ── §3.3 Engine in-memory value types ───────────────────────────

type DetectedStressor struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	DetectionMethod DetectionMethod `json:"detection_method"`
	Confidence      float64         `json:"confidence"`
	MatchedKeywords []string        `json:"matched_keywords,omitempty"`
	SourceContext   string          `json:"source_context,omitempty"`
}

type CausalRule struct {
	RuleType     RuleType `json:"rule_type"`
	StressorID   string   `json:"stressor_id"`
	StressorName string   `json:"stressor_name"`
	TraitID      string   `json:"trait_id"`
	TraitName    string   `json:"trait_name"`
	Severity     Severity `json:"severity"`
	Explanation  string   `json:"explanation"`
}

type TraitMatch struct {
	ProductFamilyID   string   `json:"product_family_id"`
	ProductFamilyName string   `json:"product_family_name"`
	TraitsPresent     []string `json:"traits_present"`
	TraitsMissing     []string `json:"traits_missing"`
	TraitsNeutralized []string `json:"traits_neutralized"`
	CoverageScore     float64  `json:"coverage_score"`
	SelectionPriority int      `json:"selection_priority"`
	Vetoed            bool     `json:"vetoed"`
	VetoReasons       []string `json:"veto_reasons,omitempty"`
}

type AssemblyStage struct {
	Role              AssemblyRole `json:"role"`
	ProductFamilyID   string       `json:"product_family_id"`
	ProductFamilyName string       `json:"product_family_name"`
	ProvidesTraitID   string       `json:"provides_trait_id,omitempty"`
	ProvidesTraitName string       `json:"provides_trait_name,omitempty"`
	Reason            string       `json:"reason,omitempty"`
	TagID             string       `json:"tag_id,omitempty"`
}

type GateEvaluation struct {
	GateID              string    `json:"gate_id"`
	GateName            string    `json:"gate_name"`
	State               GateState `json:"state"`
	StressorID          string    `json:"stressor_id,omitempty"`
	StressorName        string    `json:"stressor_name,omitempty"`
	PhysicsExplanation  string    `json:"physics_explanation,omitempty"`
	MissingParameters   []string  `json:"missing_parameters,omitempty"`
}

type ConstraintOverride struct {
	ItemID         string      `json:"item_id"`
	PropertyKey    string      `json:"property_key"`
	Operator       string      `json:"operator"`
	OriginalValue  interface{} `json:"original_value"`
	CorrectedValue interface{} `json:"corrected_value"`
	ErrorMsg       string      `json:"error_msg"`
}

type FeatureOption struct {
	Value                 string  `json:"value"`
	Name                  string  `json:"name"`
	DisplayLabel          string  `json:"display_label"`
	Benefit               string  `json:"benefit,omitempty"`
	IsDefault             bool    `json:"is_default"`
	IsRecommended         bool    `json:"is_recommended"`
	MinRequiredHousingLen *int    `json:"min_required_housing_length,omitempty"`
	LengthOffsetMM        *int    `json:"length_offset_mm,omitempty"`
}

type MissingParameter struct {
	FeatureID   string          `json:"feature_id"`
	FeatureName string          `json:"feature_name"`
	ParamName   string          `json:"parameter_name"`
	Question    string          `json:"question"`
	WhyNeeded   string          `json:"why_needed,omitempty"`
	Options     []FeatureOption `json:"options,omitempty"`
}

type AlternativeProduct struct {
	ProductFamilyID   string                 `json:"product_family_id"`
	ProductFamilyName string                 `json:"product_family_name"`
	WhyItWorks        string                 `json:"why_it_works"`
	Details           map[string]interface{} `json:"details,omitempty"`
}

type AccessoryValidation struct {
	ProductFamilyID        string          `json:"product_family_id"`
	AccessoryCode          string          `json:"accessory_code"`
	AccessoryName          string          `json:"accessory_name,omitempty"`
	IsCompatible           bool            `json:"is_compatible"`
	Status                 AccessoryStatus `json:"status"`
	Reason                 string          `json:"reason,omitempty"`
	CompatibleAlternatives []string        `json:"compatible_alternatives,omitempty"`
}

type InstallationViolation struct {
	ConstraintID   string                 `json:"constraint_id"`
	ConstraintType ConstraintType         `json:"constraint_type"`
	Severity       Severity               `json:"severity"`
	ErrorMsg       string                 `json:"error_msg"`
	Details        map[string]interface{} `json:"details,omitempty"`
	Alternatives   []AlternativeProduct   `json:"alternatives,omitempty"`
}

type CapacityCalculation struct {
	ModulesNeeded int                    `json:"modules_needed"`
	InputValue    float64                `json:"input_value"`
	OutputRating  float64                `json:"output_rating"`
	Description   string                 `json:"description,omitempty"`
	Assumptions   map[string]interface{} `json:"assumptions,omitempty"`
}

type SizingArrangement struct {
	SelectedModuleID     string  `json:"selected_module_id"`
	SelectedModuleWidth  int     `json:"selected_module_width"`
	SelectedModuleHeight int     `json:"selected_module_height"`
	SelectedModuleLabel  string  `json:"selected_module_label"`
	ModulesNeeded        int     `json:"modules_needed"`
	HorizontalCount      int     `json:"horizontal_count"`
	VerticalCount        int     `json:"vertical_count"`
	EffectiveWidth       int     `json:"effective_width"`
	EffectiveHeight      int     `json:"effective_height"`
	BoundingConstraint   string  `json:"bounding_constraint,omitempty"`
}

type ApplicationMatch struct {
	ApplicationID string   `json:"application_id"`
	Name          string   `json:"name"`
	Stressors     []string `json:"stressors,omitempty"`
}

// ReasoningStep is the one and only side channel trusted for the
// "reasoning summary" — every engine phase appends one.
type ReasoningStep struct {
	Stage   string                 `json:"stage"`
	Summary string                 `json:"summary"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// EngineVerdict is the structured output of internal/engine's pipeline —
// see spec §3.3. It is produced once per turn; after the pipeline
// returns, internal/turn only appends Scribe diagnostics to its
// ReasoningTrace.
type EngineVerdict struct {
	DetectedStressors    []DetectedStressor      `json:"detected_stressors"`
	ActiveCausalRules    []CausalRule            `json:"active_causal_rules"`
	RankedProducts       []TraitMatch            `json:"ranked_products"`
	RecommendedProduct   *TraitMatch             `json:"recommended_product,omitempty"`
	VetoedProducts       []TraitMatch            `json:"vetoed_products"`
	IsAssembly           bool                    `json:"is_assembly"`
	Assembly             []AssemblyStage         `json:"assembly,omitempty"`
	AssemblyRationale    string                  `json:"assembly_rationale,omitempty"`
	HasVeto              bool                    `json:"has_veto"`
	AutoPivotTo          string                  `json:"auto_pivot_to,omitempty"`
	AutoPivotName        string                  `json:"auto_pivot_name,omitempty"`
	VetoReason           string                  `json:"veto_reason,omitempty"`
	GateEvaluations      []GateEvaluation        `json:"gate_evaluations"`
	ConstraintOverrides  []ConstraintOverride    `json:"constraint_overrides"`
	CapacityCalculation  *CapacityCalculation    `json:"capacity_calculation,omitempty"`
	CapacityAlternatives []AlternativeProduct    `json:"capacity_alternatives,omitempty"`
	SizingArrangement    *SizingArrangement      `json:"sizing_arrangement,omitempty"`
	MissingParameters    []MissingParameter      `json:"missing_parameters"`
	AccessoryValidations []AccessoryValidation   `json:"accessory_validations"`
	InstallationViolations []InstallationViolation `json:"installation_violations"`
	HasInstallationBlock bool                    `json:"has_installation_block"`
	ClarificationQuestions []MissingParameter    `json:"clarification_questions"`
	ReasoningTrace       []ReasoningStep         `json:"reasoning_trace"`
	ApplicationMatch     *ApplicationMatch       `json:"application_match,omitempty"`
}

// ── §3.2 Session state (mutable, per conversation) ──────────────

type Session struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	LastActive time.Time `json:"last_active" db:"last_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type ActiveProject struct {
	ID                  string `json:"id" db:"id"`
	SessionID           string `json:"session_id" db:"session_id"`
	Name                string `json:"name,omitempty" db:"name"`
	Customer            string `json:"customer,omitempty" db:"customer"`
	LockedMaterial      string `json:"locked_material,omitempty" db:"locked_material"`
	DetectedFamily      string `json:"detected_family,omitempty" db:"detected_family"`
	PendingClarification string `json:"pending_clarification,omitempty" db:"pending_clarification"`
	Accessories         []string `json:"accessories,omitempty"`
	ResolvedParamsJSON  string `json:"resolved_params,omitempty" db:"resolved_params"`
	AssemblyGroupJSON   string `json:"assembly_group,omitempty" db:"assembly_group"`
	VetoedFamilies      []string `json:"vetoed_families,omitempty"`
}

type TagUnit struct {
	ID              string  `json:"id" db:"id"`
	TagID           string  `json:"tag_id" db:"tag_id"`
	SessionID       string  `json:"session_id" db:"session_id"`
	FilterWidth     *int    `json:"filter_width,omitempty" db:"filter_width"`
	FilterHeight    *int    `json:"filter_height,omitempty" db:"filter_height"`
	FilterDepth     *int    `json:"filter_depth,omitempty" db:"filter_depth"`
	HousingWidth    *int    `json:"housing_width,omitempty" db:"housing_width"`
	HousingHeight   *int    `json:"housing_height,omitempty" db:"housing_height"`
	HousingLength   *int    `json:"housing_length,omitempty" db:"housing_length"`
	AirflowM3h      *float64 `json:"airflow_m3h,omitempty" db:"airflow_m3h"`
	ProductFamily   string  `json:"product_family,omitempty" db:"product_family"`
	ProductCode     string  `json:"product_code,omitempty" db:"product_code"`
	WeightKg        *float64 `json:"weight_kg,omitempty" db:"weight_kg"`
	Quantity        int     `json:"quantity" db:"quantity"`
	AssemblyGroupID string  `json:"assembly_group_id,omitempty" db:"assembly_group_id"`
	AssemblyRole    string  `json:"assembly_role,omitempty" db:"assembly_role"`
	MaterialOverride string `json:"material_override,omitempty" db:"material_override"`
	IsComplete      bool    `json:"is_complete" db:"is_complete"`
	MissingParams   []string `json:"missing_params,omitempty"`
}

type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

type ConversationTurn struct {
	ID          string    `json:"id" db:"id"`
	SessionID   string    `json:"session_id" db:"session_id"`
	Role        TurnRole  `json:"role" db:"role"`
	Message     string    `json:"message" db:"message"`
	TurnNumber  int       `json:"turn_number" db:"turn_number"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	JudgeResultsJSON string `json:"judge_results,omitempty" db:"judge_results"`
}

// ── §4.4 Scribe adapter types ────────────────────────────────────

type NumericConstraint struct {
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
	Context string  `json:"context"`
}

type EntityReference struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Code   string `json:"code,omitempty"`
	Role   string `json:"role,omitempty"`
	SameAs string `json:"same_as,omitempty"`
	Double string `json:"double,omitempty"`
}

type ScribeAction struct {
	Verb   string      `json:"verb"`
	Target string      `json:"target"`
	Value  interface{} `json:"value,omitempty"`
}

// SemanticIntent is the structured output the Scribe LLM is contracted
// to return (spec §4.4). A zero-value SemanticIntent (via
// SemanticIntent{}.Empty()) means "no intent extracted".
type SemanticIntent struct {
	Language                string              `json:"language,omitempty"`
	NumericConstraints      []NumericConstraint `json:"numeric_constraints,omitempty"`
	EntityReferences        []EntityReference   `json:"entity_references,omitempty"`
	Actions                 []ScribeAction      `json:"actions,omitempty"`
	ActionIntent            string              `json:"action_intent,omitempty"`
	ContextKeywords         []string            `json:"context_keywords,omitempty"`
	Material                string              `json:"material,omitempty"`
	ProjectName             string              `json:"project_name,omitempty"`
	Accessories             []string            `json:"accessories,omitempty"`
	DetectedApplication     string              `json:"detected_application,omitempty"`
	InstallationEnvironment string              `json:"installation_environment,omitempty"`
	HasSpecificConstraint   bool                `json:"has_specific_constraint"`
	Diagnostics             []string            `json:"diagnostics,omitempty"`
}

// Empty reports whether no usable intent was extracted — the signal the
// caller uses to fall through to the regex extractors.
func (s SemanticIntent) Empty() bool {
	return len(s.NumericConstraints) == 0 && len(s.EntityReferences) == 0 &&
		len(s.Actions) == 0 && s.Material == "" && s.ProjectName == "" &&
		len(s.Accessories) == 0 && s.DetectedApplication == "" &&
		s.InstallationEnvironment == "" && !s.HasSpecificConstraint
}

// ── §4.6 Verdict adapter report types ────────────────────────────

type RiskType string

const (
	RiskTraitVeto             RiskType = "TRAIT_VETO"
	RiskTraitGap              RiskType = "TRAIT_GAP"
	RiskTraitNeutralization   RiskType = "TRAIT_NEUTRALIZATION"
	RiskHardConstraintOverride RiskType = "HARD_CONSTRAINT_OVERRIDE"
	RiskGateValidationRequired RiskType = "GATE_VALIDATION_REQUIRED"
	RiskGateFired             RiskType = "GATE_FIRED"
	RiskGateDeferred          RiskType = "GATE_DEFERRED"
	RiskAccessoryBlocked      RiskType = "ACCESSORY_BLOCKED"
	RiskInstallationBlocked   RiskType = "INSTALLATION_BLOCKED"
)

type RiskWarning struct {
	Severity  Severity `json:"severity"`
	RiskType  RiskType `json:"risk_type"`
	GraphPath string   `json:"graph_path,omitempty"`
	Message   string   `json:"message"`
	Mitigation string  `json:"mitigation,omitempty"`
}

type MaterialRequirement struct {
	CorrosionClass string `json:"corrosion_class"`
	Reason         string `json:"reason,omitempty"`
}

type ProductPivot struct {
	FromFamilyID string `json:"from_family_id,omitempty"`
	ToFamilyID   string `json:"to_family_id"`
	ToFamilyName string `json:"to_family_name"`
	Reason       string `json:"reason"`
}

// GraphReasoningReport is the presentation-layer shape produced by
// internal/verdict — the only thing downstream consumers (UI, LLM
// synthesis) are allowed to depend on.
type GraphReasoningReport struct {
	ApplicationMatch     *ApplicationMatch       `json:"application_match,omitempty"`
	RiskWarnings         []RiskWarning           `json:"risk_warnings"`
	MaterialRequirements []MaterialRequirement   `json:"material_requirements,omitempty"`
	ProductPivot         *ProductPivot           `json:"product_pivot,omitempty"`
	Assembly             []AssemblyStage         `json:"assembly,omitempty"`
	VariableFeatures     []MissingParameter      `json:"variable_features,omitempty"`
	ClarificationQuestions []MissingParameter    `json:"clarification_questions,omitempty"`
	ReasoningSummary     []ReasoningStep         `json:"reasoning_summary"`
}

// ── §6.3 graph query result shapes ───────────────────────────────

type ProductFamilyTraits struct {
	ProductID         string
	ProductName       string
	SelectionPriority int
	DirectTraitIDs    []string
	MaterialTraitIDs  []string
	AllTraitIDs       []string
}
