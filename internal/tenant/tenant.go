// Package tenant parses a tenant's domain configuration — material
// hierarchy, dimension maps, derivation tables, fallback keyword tables,
// and prompt templates — from YAML into a typed, immutable struct.
//
// No domain strings (product families, stressor keywords, material
// aliases) are hardcoded anywhere in internal/state, internal/engine, or
// internal/scribe: everything comes from a loaded Config. This is the
// one legitimate process-wide singleton (spec §9 "Global state") — it is
// read-mostly after Load returns.
package tenant

// DepthBreak is one row of a family's depth→housing-length derivation
// table: a filter depth up to MaxDepthMM maps to HousingLengthMM.
type DepthBreak struct {
	MaxDepthMM    int `yaml:"max_depth"`
	HousingLength int `yaml:"length"`
}

type MaterialHierarchyEntry struct {
	Code           string   `yaml:"code"`
	Aliases        []string `yaml:"aliases"`
	CorrosionClass string   `yaml:"corrosion_class"`
}

type ProductCodeFormat struct {
	Format           string `yaml:"format"`
	DefaultFrameDepth *int  `yaml:"default_frame_depth,omitempty"`
}

type PromptTemplates struct {
	ScribeSystemPrompt   string `yaml:"scribe_system_prompt"`
	CustomerSystemPrompt string `yaml:"customer_system_prompt"`
	JudgePrompt          string `yaml:"judge_prompt"`
}

// Config is the typed form of a tenant's YAML configuration (spec §4.7).
type Config struct {
	DomainID string `yaml:"domain_id"`
	Company  string `yaml:"company"`

	ProductFamilies   []string                     `yaml:"product_families"`
	MaterialCodes     []string                     `yaml:"material_codes"`
	MaterialHierarchy []MaterialHierarchyEntry      `yaml:"material_hierarchy"`
	DefaultMaterial   string                        `yaml:"default_material"`
	ProductCodeFormats map[string]ProductCodeFormat `yaml:"product_code_formats"`

	DimensionMapping        map[int]int             `yaml:"dimension_mapping"`
	OrientationThreshold    int                      `yaml:"orientation_threshold"`
	HousingLengthDerivation map[string][]DepthBreak  `yaml:"housing_length_derivation"`

	AssemblySharedProperties []string `yaml:"assembly_shared_properties"`

	FallbackApplicationKeywords map[string][]string `yaml:"fallback_application_keywords"`
	FallbackEnvironmentTerms    map[string][]string `yaml:"fallback_environment_terms"`
	FallbackEnvironmentMapping  map[string]string   `yaml:"fallback_environment_mapping"`
	FallbackEnvToAppInference   map[string]string   `yaml:"fallback_env_to_app_inference"`

	ScribeProductInference map[string]string `yaml:"scribe_product_inference"`
	ScribeConnectionTypes  map[string]int    `yaml:"scribe_connection_types"`
	ScribeMaterialHints    map[string]string `yaml:"scribe_material_hints"`
	ScribeAccessoryHints   map[string]string `yaml:"scribe_accessory_hints"`

	Prompts PromptTemplates `yaml:"prompts"`
}

// DefaultHousingLengthFamily names the fallback row of
// HousingLengthDerivation used when a tag's product family is not yet
// known or has no family-specific table.
const DefaultHousingLengthFamily = "default"

// ResolveMaterialCode looks up a user-supplied string (a code or a
// case-insensitive alias) and returns the canonical material code. The
// second return value is false if nothing matched.
func (c *Config) ResolveMaterialCode(input string) (string, bool) {
	normalized := normalizeAlias(input)
	for _, entry := range c.MaterialHierarchy {
		if normalizeAlias(entry.Code) == normalized {
			return entry.Code, true
		}
		for _, alias := range entry.Aliases {
			if normalizeAlias(alias) == normalized {
				return entry.Code, true
			}
		}
	}
	return "", false
}

// CorrosionClassFor returns the corrosion class declared for a material
// code, or "" if the code is not in the hierarchy.
func (c *Config) CorrosionClassFor(code string) string {
	for _, entry := range c.MaterialHierarchy {
		if entry.Code == code {
			return entry.CorrosionClass
		}
	}
	return ""
}

// HousingLengthTableFor returns the depth→length breakpoints for a
// product family, falling back to DefaultHousingLengthFamily.
func (c *Config) HousingLengthTableFor(family string) []DepthBreak {
	if rows, ok := c.HousingLengthDerivation[family]; ok {
		return rows
	}
	return c.HousingLengthDerivation[DefaultHousingLengthFamily]
}

func normalizeAlias(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}
