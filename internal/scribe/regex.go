package scribe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// regexFallback runs the mechanical extractors used only when the
// Scribe LLM returned nothing usable. Every keyword table it consults
// (material aliases, accessory hints) comes from s.cfg, not from
// literals in this file — only generic linguistic patterns (dimension
// separators, thousand-separator normalization, "project"/"for")
// are fixed, since they aren't tied to any one tenant's vocabulary.
func (s *Scribe) regexFallback(query string) (models.SemanticIntent, []string) {
	var diagnostics []string
	normalized := normalizeNumericSeparators(query)

	var intent models.SemanticIntent

	refs, constraints := extractTagsFromQuery(normalized)
	intent.EntityReferences = refs
	intent.NumericConstraints = constraints
	if len(refs) > 0 {
		diagnostics = append(diagnostics, fmt.Sprintf("regex fallback extracted %d entity reference(s)", len(refs)))
	}

	if mat, ok := s.extractMaterialFromQuery(query); ok {
		intent.Material = mat
		diagnostics = append(diagnostics, "regex fallback extracted material "+mat)
	}

	if proj, ok := extractProjectFromQuery(query); ok {
		intent.ProjectName = proj
	}

	if acc := s.extractAccessoriesFromQuery(query); len(acc) > 0 {
		intent.Accessories = acc
	}

	return intent, diagnostics
}

var (
	thousandCommaRe = regexp.MustCompile(`(\d{1,3}),(\d{3})\b`)
	thousandSpaceRe = regexp.MustCompile(`(\d{1,3})\s(\d{3})\b`)
)

// normalizeNumericSeparators collapses comma/space thousand separators
// ("25,000", "25 000") to a plain number, without disturbing dimension
// patterns like "600x600".
func normalizeNumericSeparators(text string) string {
	text = thousandCommaRe.ReplaceAllString(text, "$1$2")
	text = thousandSpaceRe.ReplaceAllString(text, "$1$2")
	return text
}

var (
	taggedDimensionRe = regexp.MustCompile(`(?i)(?:tag|item|pos(?:ition)?)\s*[:#\-]?\s*(\w+)[:\-\s]+(\d{2,4})[x\x{00d7}X](\d{2,4})(?:[x\x{00d7}X](\d{2,4}))?`)
	bareDimensionRe   = regexp.MustCompile(`(\d{2,4})[x\x{00d7}X](\d{2,4})(?:[x\x{00d7}X](\d{2,4}))?(?:\s*mm)?`)
	airflowRe         = regexp.MustCompile(`(?i)(\d{3,6})\s*(?:m\x{00b3}/h|m3/h|m\x{00b3}|cbm|cubic|m3h)`)
)

// extractTagsFromQuery mirrors extract_tags_from_query: first it looks
// for explicitly tagged "Tag XXXX: WxHxD" entries, falling back to bare
// WxH[xD] sequences assigned synthetic ids, then folds any airflow
// figures onto the tags positionally.
func extractTagsFromQuery(query string) ([]models.EntityReference, []models.NumericConstraint) {
	var refs []models.EntityReference
	var constraints []models.NumericConstraint

	addDims := func(id, w, h, d string) {
		refs = append(refs, models.EntityReference{ID: id, Type: "tag"})
		constraints = append(constraints, models.NumericConstraint{Value: atof(w), Unit: "mm", Context: id + ".filter_width"})
		constraints = append(constraints, models.NumericConstraint{Value: atof(h), Unit: "mm", Context: id + ".filter_height"})
		if d != "" {
			constraints = append(constraints, models.NumericConstraint{Value: atof(d), Unit: "mm", Context: id + ".filter_depth"})
		}
	}

	if matches := taggedDimensionRe.FindAllStringSubmatch(query, -1); len(matches) > 0 {
		for _, m := range matches {
			addDims(m[1], m[2], m[3], m[4])
		}
	} else if matches := bareDimensionRe.FindAllStringSubmatch(query, -1); len(matches) > 0 {
		for i, m := range matches {
			addDims(fmt.Sprintf("item_%d", i+1), m[1], m[2], m[3])
		}
	}

	if airflows := airflowRe.FindAllStringSubmatch(query, -1); len(airflows) > 0 && len(refs) > 0 {
		for i, m := range airflows {
			if i >= len(refs) {
				break
			}
			constraints = append(constraints, models.NumericConstraint{
				Value: atof(m[1]), Unit: "m3h", Context: refs[i].ID + ".airflow_m3h",
			})
		}
	}

	return refs, constraints
}

func atof(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// extractMaterialFromQuery walks the tenant's material hierarchy,
// checking each code's canonical name and every alias as a
// word-boundary match against the lowercased query — longer/multi-word
// aliases are tried in the order the tenant config lists them, so a
// tenant that orders "stainless steel" before "rf" gets the same
// longest-first behavior the Python fallback hardcoded.
func (s *Scribe) extractMaterialFromQuery(query string) (string, bool) {
	lower := strings.ToLower(query)
	for _, entry := range s.cfg.MaterialHierarchy {
		candidates := append([]string{entry.Code}, entry.Aliases...)
		for _, kw := range candidates {
			if kw == "" {
				continue
			}
			if wordBoundaryMatch(lower, strings.ToLower(kw)) {
				return entry.Code, true
			}
		}
	}
	return "", false
}

func wordBoundaryMatch(haystack, needle string) bool {
	pattern := `\b` + regexp.QuoteMeta(needle) + `\b`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(haystack)
}

var (
	projectAfterKeywordRe = regexp.MustCompile(`(?i)(?:project|projekt|for|dla)\s+([A-Z][a-zA-Z0-9]+)`)
	projectBeforeWordRe   = regexp.MustCompile(`(?i)([A-Z][a-zA-Z0-9]+)\s+project`)
)

func extractProjectFromQuery(query string) (string, bool) {
	if m := projectAfterKeywordRe.FindStringSubmatch(query); m != nil {
		return m[1], true
	}
	if m := projectBeforeWordRe.FindStringSubmatch(query); m != nil {
		return m[1], true
	}
	return "", false
}

var roundDuctPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[\x{00d8}O\x{2300}]\s*(\d{2,4})\s*(?:mm)?`),
	regexp.MustCompile(`(?i)(\d{2,4})\s*mm\s+round\s+(?:ducts?|connections?|pipes?)`),
	regexp.MustCompile(`(?i)round\s+(?:ducts?|connections?|pipes?)\s*\(?(\d{2,4})\s*(?:mm)?\s*(?:diameter)?\)?`),
	regexp.MustCompile(`(?i)circular\s+(?:ducts?|connections?|pipes?)\s*\(?(\d{2,4})`),
	regexp.MustCompile(`(?i)(\d{2,4})\s*mm\s+(?:circular|round)\s+(?:ducts?|connections?|pipes?)`),
	regexp.MustCompile(`(?i)(\d{2,4})\s*mm\s+diameter\s+(?:round|circular)?\s*(?:ducts?|pipes?)`),
	regexp.MustCompile(`(?i)(?:round|circular)\s+(?:ducts?|pipes?)\s+(?:of\s+|with\s+)?(\d{2,4})\s*mm`),
}

// extractAccessoriesFromQuery detects round-duct diameter callouts
// structurally (a dimensional pattern, not tenant vocabulary) and
// otherwise defers to the tenant's own accessory-hint keyword table
// for anything else (transition pieces, reducers, adapters, or
// whatever a given tenant's catalog names).
func (s *Scribe) extractAccessoriesFromQuery(query string) []string {
	var accessories []string
	seen := make(map[string]bool)

	addAcc := func(a string) {
		if !seen[a] {
			seen[a] = true
			accessories = append(accessories, a)
		}
	}

	for _, pattern := range roundDuctPatterns {
		for _, m := range pattern.FindAllStringSubmatch(query, -1) {
			addAcc(fmt.Sprintf("Round duct Ø%smm", m[1]))
		}
	}

	lower := strings.ToLower(query)
	hasRoundDuct := len(accessories) > 0
	for keyword, code := range s.cfg.ScribeAccessoryHints {
		if keyword == "" {
			continue
		}
		if wordBoundaryMatch(lower, strings.ToLower(keyword)) && !hasRoundDuct {
			addAcc(code)
		}
	}

	return accessories
}
