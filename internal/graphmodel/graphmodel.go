// Package graphmodel defines the read-only knowledge-graph domain types
// of spec §3.1 — Layer 1 (Inventory), Layer 2 (Physics & Traits), and
// Layer 3 (Playbook). These are produced by an out-of-scope ingestion
// pipeline and consumed only through internal/graphstore's typed query
// surface; nothing in this package writes to the graph.
package graphmodel

// ── Layer 1 — Inventory ──────────────────────────────────────────

type ProductFamily struct {
	ID                  string
	Name                string
	SelectionPriority    int
	CodeFormat           string
	ServiceAccessFactor  float64
	AllowedEnvironments  []string
	IndoorOnly           bool
	CorrosionClass       string
}

type ProductVariant struct {
	ID                   string
	ProductFamily        string
	WidthMM              int
	HeightMM             int
	HousingLengthMM      *int
	WeightKg             *float64
	WeightKgShort        *float64
	WeightKgLong         *float64
	ReferenceAirflowM3h  *float64
	CartridgeCount       *int
}

type Material struct {
	ID             string
	Code           string
	Name           string
	CorrosionClass string
}

type MaterialSpecification struct {
	Code           string
	FullName       string
	CorrosionClass string
	Description    string
}

// DimensionModule is the parametric weight model used when a product
// family has no matching ProductVariant for a requested size.
type DimensionModule struct {
	ID                  string
	WidthMM             int
	HeightMM            int
	ReferenceAirflowM3h float64
	UnitWeightKg        float64
	WeightPerMMLength   float64
	ReferenceLengthMM   int
}

type CapacityRule struct {
	ID                  string
	ProductFamily       string
	ModuleDescriptor    string
	InputRequirement    string
	OutputRating        float64
	CapacityPerComponent *float64
	ComponentCountKey    string
}

// ── Layer 2 — Physics & Traits ───────────────────────────────────

type EnvironmentalStressor struct {
	ID          string
	Name        string
	Description string
	Category    string
	Keywords    []string
}

type PhysicalTrait struct {
	ID   string
	Name string
}

type Environment struct {
	ID       string
	Name     string
	Keywords []string
	IsA      string // parent environment id, "" if root
}

type Application struct {
	ID        string
	Name      string
	Keywords  []string
	ExposesTo []string // stressor ids
}

// LogicGate is the graph node backing §4.3 Phase 8; ConditionLogic is
// compiled by internal/engine's gate evaluator, never evaluated here.
type LogicGate struct {
	ID                 string
	Name               string
	ConditionLogic     string
	PhysicsExplanation string
	Monitors           []string // stressor ids
	RequiresData       []string // parameter ids
}

type HardConstraint struct {
	ID          string
	PropertyKey string
	Operator    string
	Value       interface{}
	ErrorMsg    string
}

// InstallationConstraint carries the superset of properties any
// ConstraintType variant might need; internal/engine's dispatcher reads
// only the fields relevant to its own type.
type InstallationConstraint struct {
	ID             string
	ProductFamily  string
	ConstraintType string // mirrors models.ConstraintType
	Severity       string
	ErrorMsg       string

	// SET_MEMBERSHIP
	PropertyKey string
	ValidSet    []string

	// COMPUTED_FORMULA
	DimensionProperty   string
	ServiceAccessFactor *float64
	AvailableSpaceKey   string

	// CROSS_NODE_THRESHOLD
	CrossRelType     string
	CrossNodeProperty string
	RequiredValue     *float64

	// CROSS_PROPERTY_COMPARE
	CrossProperty   string
	CompareOperator string
	LocalProperty   string

	// CONTEXT_MATCH
	ContextKey string
}

type DependencyRule struct {
	ID                string
	DependencyType    string // e.g. MANDATES_PROTECTION
	Description       string
	TriggeredByStressor string
	UpstreamRequiresTrait string
	DownstreamProvidesTrait string
	ProtectorFamilyID string
}

type Strategy struct {
	ID            string
	ProductFamily string
	SortProperty  string
	SortOrder     string
	PrimaryAxis   string
	SecondaryAxis string
	ExpansionUnit int
}

// ── Layer 3 — Playbook ───────────────────────────────────────────

type FeatureOption struct {
	Value                string
	Name                 string
	DisplayLabel         string
	Benefit              string
	IsDefault            bool
	IsRecommended        bool
	MinRequiredHousingLen *int
	LengthOffsetMM       *int
}

type VariableFeature struct {
	ID            string
	ProductFamily string
	FeatureName   string
	ParameterName string
	Question      string
	WhyNeeded     string
	DefaultValue  interface{}
	AutoResolve   bool
	Options       []FeatureOption
}

type Parameter struct {
	ID          string
	Name        string
	PropertyKey string
	Priority    int
	Question    string
	Unit        string
}

type ClarificationRule struct {
	ID                  string
	Name                string
	TriggeredByContext  string // application id
	DemandsParameter    string // parameter id
	AppliesToProduct     string // product family id
}

type Accessory struct {
	ID   string
	Code string
	Name string
}

// ── Relationship records (graph-edge query results) ──────────────

type DemandsTraitRule struct {
	StressorID  string
	TraitID     string
	Severity    string
	Explanation string
}

type NeutralizedByRule struct {
	TraitID     string
	StressorID  string
	Severity    string
	Explanation string
}

type AccessoryEdge struct {
	ProductFamilyID string
	AccessoryCode   string
	Allowed         bool
	Reason          string
}
