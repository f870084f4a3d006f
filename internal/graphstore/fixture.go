package graphstore

import "github.com/mannhummel-graphreasoner/engine/internal/graphmodel"

// Fixture is the static (read-only) knowledge-graph snapshot backing
// MemoryStore. Production deployments point at Postgres instead
// (postgres.go); this fixture exists so the engine and its tests never
// need a live database, and so DefaultFixture() can encode the handful
// of product families/stressors/rules the spec's end-to-end scenarios
// (§8) exercise.
type Fixture struct {
	Stressors    []graphmodel.EnvironmentalStressor
	Environments []graphmodel.Environment
	Applications []graphmodel.Application

	ProductFamilies []graphmodel.ProductFamily
	Materials       []graphmodel.Material

	// FamilyDirectTraits: product family id -> trait ids via HAS_TRAIT.
	FamilyDirectTraits map[string][]string
	// FamilyMaterials: product family id -> material codes available via AVAILABLE_IN_MATERIAL.
	FamilyMaterials map[string][]string
	// MaterialTraits: material code -> trait ids via PROVIDES_TRAIT.
	MaterialTraits map[string][]string

	DemandsTraitRules  []graphmodel.DemandsTraitRule
	NeutralizedByRules []graphmodel.NeutralizedByRule
	DependencyRules    []graphmodel.DependencyRule

	HardConstraints         map[string][]graphmodel.HardConstraint
	InstallationConstraints map[string][]graphmodel.InstallationConstraint
	VariableFeatures        map[string][]graphmodel.VariableFeature
	CapacityRules           map[string][]graphmodel.CapacityRule
	Strategies              map[string]graphmodel.Strategy
	LogicGates              []graphmodel.LogicGate
	DimensionModules        map[string][]graphmodel.DimensionModule
	RequiredParameters      map[string][]graphmodel.Parameter
	ClarificationRules      []graphmodel.ClarificationRule

	Accessories    []graphmodel.Accessory
	AccessoryEdges []graphmodel.AccessoryEdge

	ProductCodeFormats map[string]struct {
		Format            string
		DefaultFrameDepth *int
	}

	// clarificationParameters resolves the Parameter referenced by a
	// ClarificationRule's DemandsParameter id.
	clarificationParameters map[string]graphmodel.Parameter
}

func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }

// DefaultFixture returns the Mann+Hummel-flavored fixture used by the
// default in-memory store and by internal/engine's tests. It encodes
// three product families (GDB, GDC, GDP), three stressors (hospital
// biological load, kitchen grease, pool chlorine), and the rules the
// spec's six end-to-end scenarios (§8) require.
func DefaultFixture() *Fixture {
	f := &Fixture{
		Stressors: []graphmodel.EnvironmentalStressor{
			{ID: "STR_BIOLOGICAL", Name: "Biological contamination load", Category: "biological",
				Keywords: []string{"hospital", "medical", "clinic", "sterile"}},
			{ID: "STR_GREASE", Name: "Airborne grease", Category: "grease",
				Keywords: []string{"grease", "kitchen", "frying", "commercial kitchen"}},
			{ID: "STR_CHLORINE", Name: "Chlorine exposure", Category: "chlorine",
				Keywords: []string{"pool", "chlorine", "swimming", "natatorium"}},
		},
		Environments: []graphmodel.Environment{
			{ID: "ENV_INDOOR", Name: "Indoor", Keywords: []string{"indoor", "inside", "interior"}},
			{ID: "ENV_OUTDOOR", Name: "Outdoor", Keywords: []string{"outdoor", "rooftop", "exterior"}},
			{ID: "ENV_KITCHEN", Name: "Kitchen", Keywords: []string{"kitchen"}, IsA: "ENV_INDOOR"},
		},
		Applications: []graphmodel.Application{
			{ID: "APP_HOSPITAL", Name: "Hospital", Keywords: []string{"hospital", "medical", "clinic", "healthcare"}, ExposesTo: []string{"STR_BIOLOGICAL"}},
			{ID: "APP_KITCHEN", Name: "Commercial kitchen", Keywords: []string{"kitchen", "commercial kitchen", "canteen", "restaurant"}, ExposesTo: []string{"STR_GREASE"}},
			{ID: "APP_POOL", Name: "Swimming pool", Keywords: []string{"pool", "swimming pool", "natatorium"}, ExposesTo: []string{"STR_CHLORINE"}},
		},
		ProductFamilies: []graphmodel.ProductFamily{
			{ID: "GDB", Name: "GDB Duct Filter Housing", SelectionPriority: 10, CodeFormat: "{family}-{width}x{height}-{length}-{material}",
				ServiceAccessFactor: 0.15, AllowedEnvironments: []string{"ENV_INDOOR"}, IndoorOnly: true, CorrosionClass: "C3"},
			{ID: "GDC", Name: "GDC Activated Carbon Housing", SelectionPriority: 20, CodeFormat: "{family}-{width}x{height}-{length}-{material}",
				ServiceAccessFactor: 0.20, AllowedEnvironments: []string{"ENV_INDOOR", "ENV_OUTDOOR"}, CorrosionClass: "C3"},
			{ID: "GDP", Name: "GDP Grease Pre-Filter Housing", SelectionPriority: 15, CodeFormat: "{family}-{width}x{height}-{length}-{material}",
				ServiceAccessFactor: 0.15, AllowedEnvironments: []string{"ENV_INDOOR", "ENV_KITCHEN"}, CorrosionClass: "C3"},
		},
		Materials: []graphmodel.Material{
			{ID: "MAT_RF", Code: "RF", Name: "Stainless steel", CorrosionClass: "C5"},
			{ID: "MAT_FZ", Code: "FZ", Name: "Hot-dip galvanized", CorrosionClass: "C3"},
			{ID: "MAT_ZM", Code: "ZM", Name: "Zinc-magnesium", CorrosionClass: "C4"},
			{ID: "MAT_SF", Code: "SF", Name: "Sendzimir galvanized", CorrosionClass: "C2"},
		},
		FamilyDirectTraits: map[string][]string{
			"GDB": {},
			"GDC": {"TRAIT_CARBON_ADSORPTION"},
			"GDP": {"TRAIT_GREASE_PREFILTER"},
		},
		FamilyMaterials: map[string][]string{
			"GDB": {"RF", "FZ", "ZM", "SF"},
			"GDC": {"RF", "FZ"},
			"GDP": {"RF", "FZ"},
		},
		MaterialTraits: map[string][]string{
			"RF": {"TRAIT_CORROSION_C5"},
			"ZM": {"TRAIT_CORROSION_C4"},
			"FZ": {},
			"SF": {},
		},
		DemandsTraitRules: []graphmodel.DemandsTraitRule{
			{StressorID: "STR_BIOLOGICAL", TraitID: "TRAIT_CORROSION_C5", Severity: "CRITICAL",
				Explanation: "Hospital environments demand corrosion-class-C5 hygiene-rated housings."},
			{StressorID: "STR_GREASE", TraitID: "TRAIT_GREASE_PREFILTER", Severity: "CRITICAL",
				Explanation: "Kitchen exhaust requires grease pre-filtration upstream of any carbon stage."},
		},
		DependencyRules: []graphmodel.DependencyRule{
			{ID: "DEP_GREASE_PROTECTION", DependencyType: "MANDATES_PROTECTION",
				Description:             "Activated-carbon housings require an upstream grease pre-filter to avoid media fouling.",
				TriggeredByStressor:     "STR_GREASE",
				UpstreamRequiresTrait:   "TRAIT_GREASE_PREFILTER",
				DownstreamProvidesTrait: "TRAIT_CARBON_ADSORPTION",
				ProtectorFamilyID:       "GDP"},
		},
		InstallationConstraints: map[string][]graphmodel.InstallationConstraint{
			"GDB": {
				{ID: "IC_GDB_INDOOR", ProductFamily: "GDB", ConstraintType: "SET_MEMBERSHIP", Severity: "CRITICAL",
					ErrorMsg: "GDB is rated for indoor installation only.", PropertyKey: "installation_environment",
					ValidSet: []string{"ENV_INDOOR"}},
			},
		},
		LogicGates: []graphmodel.LogicGate{
			{ID: "GATE_CHLORINE", Name: "Chlorine corrosion gate", ConditionLogic: "chlorine_ppm > 0.3",
				PhysicsExplanation: "Chlorine above 0.3ppm accelerates corrosion of galvanized media; recommend RF or a coated variant.",
				Monitors:           []string{"STR_CHLORINE"}, RequiresData: []string{"PARAM_CHLORINE_PPM"}},
		},
		CapacityRules: map[string][]graphmodel.CapacityRule{
			"GDB": {{ID: "CAP_GDB", ProductFamily: "GDB", ModuleDescriptor: "GDB base module", InputRequirement: "airflow_m3h", OutputRating: 4000}},
			"GDC": {{ID: "CAP_GDC", ProductFamily: "GDC", ModuleDescriptor: "GDC base module", InputRequirement: "airflow_m3h", OutputRating: 6500}},
		},
		Strategies: map[string]graphmodel.Strategy{
			"GDB": {ID: "STRAT_GDB", ProductFamily: "GDB", SortProperty: "width_mm", SortOrder: "asc", PrimaryAxis: "horizontal", SecondaryAxis: "vertical", ExpansionUnit: 1},
		},
		DimensionModules: map[string][]graphmodel.DimensionModule{
			"GDB": {{ID: "MOD_GDB_600", WidthMM: 600, HeightMM: 600, ReferenceAirflowM3h: 4000, UnitWeightKg: 45, WeightPerMMLength: 0.08, ReferenceLengthMM: 600}},
		},
		RequiredParameters: map[string][]graphmodel.Parameter{},
		ClarificationRules: []graphmodel.ClarificationRule{
			{ID: "CLAR_POOL_CHLORINE", Name: "Pool chlorine level", TriggeredByContext: "APP_POOL",
				DemandsParameter: "PARAM_CHLORINE_PPM", AppliesToProduct: ""},
		},
		VariableFeatures: map[string][]graphmodel.VariableFeature{
			"GDB": {
				{ID: "VF_GDB_CONNECTION", ProductFamily: "GDB", FeatureName: "connection_type", ParameterName: "connection_type",
					Question: "Flange or spigot connection?", WhyNeeded: "Determines effective housing length.",
					DefaultValue: "spigot", AutoResolve: true},
			},
		},
		Accessories: []graphmodel.Accessory{
			{ID: "ACC_ROUND_ADAPTER", Code: "ACC_ROUND_ADAPTER", Name: "Round duct adapter"},
			{ID: "ACC_PRESSURE_GAUGE", Code: "ACC_PRESSURE_GAUGE", Name: "Differential pressure gauge"},
		},
		AccessoryEdges: []graphmodel.AccessoryEdge{
			{ProductFamilyID: "GDB", AccessoryCode: "ACC_PRESSURE_GAUGE", Allowed: true},
			{ProductFamilyID: "GDB", AccessoryCode: "ACC_ROUND_ADAPTER", Allowed: false, Reason: "GDB is a rectangular-duct housing only."},
		},
	}

	f.ProductCodeFormats = map[string]struct {
		Format            string
		DefaultFrameDepth *int
	}{
		"GDB": {Format: "{family}-{width}x{height}-{length}-{material}", DefaultFrameDepth: intPtr(292)},
		"GDC": {Format: "{family}-{width}x{height}-{length}-{material}", DefaultFrameDepth: intPtr(292)},
		"GDP": {Format: "{family}-{width}x{height}-{length}-{material}", DefaultFrameDepth: intPtr(292)},
	}

	// Add the PARAM_CHLORINE_PPM parameter referenced above.
	f.RequiredParameters["GDC"] = []graphmodel.Parameter{}
	f.clarificationParameters = map[string]graphmodel.Parameter{
		"PARAM_CHLORINE_PPM": {ID: "PARAM_CHLORINE_PPM", Name: "Chlorine concentration", PropertyKey: "chlorine_ppm",
			Priority: 1, Question: "What is the chlorine concentration in the water (ppm)?", Unit: "ppm"},
	}

	return f
}
