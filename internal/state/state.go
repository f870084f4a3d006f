// Package state implements the cumulative technical state of spec
// §4.1 — TechnicalState, the session-scoped aggregate of TagUnits, and
// the merge/derivation/persistence/prompt-context operations layered
// on top of internal/graphstore. Nothing here talks to a graph
// directly except through the graphstore.Store interfaces passed in;
// the derivation rules themselves are pure functions of a tenant.Config
// and the current field values, mirroring the teacher's preference for
// small pure helpers around a thin mutable aggregate.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mannhummel-graphreasoner/engine/internal/graphstore"
	"github.com/mannhummel-graphreasoner/engine/internal/tenant"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// AssemblyGroup is the in-process mirror of a persisted assembly_group
// JSON blob: a PROTECTOR/TARGET chain plus the rationale surfaced to
// the prompt.
type AssemblyGroup struct {
	ID        string                 `json:"id"`
	Rationale string                 `json:"rationale,omitempty"`
	Stages    []models.AssemblyStage `json:"stages"`
}

// TechnicalState is the session-scoped aggregate described in spec
// §4.1: one TagUnit per product-selection unit of the quote, plus the
// project-level facts that must never be re-asked once set.
type TechnicalState struct {
	SessionID             string
	Project               string
	Customer              string
	LockedMaterial        string
	DetectedFamily        string
	PendingClarification  string
	Accessories           []string
	ResolvedParams        map[string]interface{}
	AssemblyGroup         *AssemblyGroup
	VetoedFamilies        []string

	tags        map[string]*models.TagUnit
	tagOrder    []string
	removedTags []string
	cfg         *tenant.Config
}

// New returns an empty TechnicalState for a session, bound to the
// tenant configuration that supplies every derivation table.
func New(sessionID string, cfg *tenant.Config) *TechnicalState {
	return &TechnicalState{
		SessionID:      sessionID,
		ResolvedParams: map[string]interface{}{},
		tags:           map[string]*models.TagUnit{},
		cfg:            cfg,
	}
}

// SetProject is a no-op once Project is already set — spec §4.1
// "Locking": set_project is idempotent against an already-decided name.
func (s *TechnicalState) SetProject(name, customer string) {
	if s.Project == "" && name != "" {
		s.Project = name
	}
	if s.Customer == "" && customer != "" {
		s.Customer = customer
	}
}

// LockMaterial resolves a code or case-insensitive alias via tenant
// config and locks it in. A second call after the material is already
// locked is a no-op, regardless of what it asks for — the lock, once
// set, is the "absolute truth" the prompt context advertises.
func (s *TechnicalState) LockMaterial(input string) (string, bool) {
	if s.LockedMaterial != "" {
		return s.LockedMaterial, true
	}
	if s.cfg != nil {
		if code, ok := s.cfg.ResolveMaterialCode(input); ok {
			s.LockedMaterial = code
			return code, true
		}
	}
	if input != "" {
		s.LockedMaterial = input
		return input, true
	}
	return "", false
}

// Tag returns the current state of a tag, or nil if it has never been
// merged into.
func (s *TechnicalState) Tag(tagID string) *models.TagUnit {
	return s.tags[tagID]
}

// Tags returns every tag in first-created order.
func (s *TechnicalState) Tags() []*models.TagUnit {
	out := make([]*models.TagUnit, 0, len(s.tagOrder))
	for _, id := range s.tagOrder {
		out = append(out, s.tags[id])
	}
	return out
}

func mergeInt(existing, incoming *int) *int {
	if incoming != nil {
		return incoming
	}
	return existing
}

func mergeFloat(existing, incoming *float64) *float64 {
	if incoming != nil {
		return incoming
	}
	return existing
}

func mergeStr(existing string, incoming *string) string {
	if incoming != nil && *incoming != "" {
		return *incoming
	}
	return existing
}

// MergeTag applies merge_tag(tag_id, **fields) — spec §4.1: only
// non-null incoming fields overwrite; then the full derivation chain
// runs in the fixed order the spec prescribes, and finally assembly
// siblings (if any) are resynced.
func (s *TechnicalState) MergeTag(tagID string, fields graphstore.TagFields) *models.TagUnit {
	tag, existed := s.tags[tagID]
	if !existed {
		tag = &models.TagUnit{ID: tagID, TagID: tagID, SessionID: s.SessionID, Quantity: 1}
		s.tags[tagID] = tag
		s.tagOrder = append(s.tagOrder, tagID)
	}

	tag.FilterWidth = mergeInt(tag.FilterWidth, fields.FilterWidth)
	tag.FilterHeight = mergeInt(tag.FilterHeight, fields.FilterHeight)
	tag.FilterDepth = mergeInt(tag.FilterDepth, fields.FilterDepth)
	tag.HousingWidth = mergeInt(tag.HousingWidth, fields.HousingWidth)
	tag.HousingHeight = mergeInt(tag.HousingHeight, fields.HousingHeight)
	tag.HousingLength = mergeInt(tag.HousingLength, fields.HousingLength)
	tag.AirflowM3h = mergeFloat(tag.AirflowM3h, fields.AirflowM3h)
	tag.WeightKg = mergeFloat(tag.WeightKg, fields.WeightKg)
	tag.ProductFamily = mergeStr(tag.ProductFamily, fields.ProductFamily)
	tag.ProductCode = mergeStr(tag.ProductCode, fields.ProductCode)
	tag.AssemblyGroupID = mergeStr(tag.AssemblyGroupID, fields.AssemblyGroupID)
	tag.AssemblyRole = mergeStr(tag.AssemblyRole, fields.AssemblyRole)
	tag.MaterialOverride = mergeStr(tag.MaterialOverride, fields.MaterialOverride)
	if fields.Quantity != nil {
		tag.Quantity = *fields.Quantity
	}

	s.deriveDimensionMapping(tag)
	s.deriveOrientation(tag)
	s.deriveHousingLength(tag)
	deriveCompleteness(tag)
	if tag.AssemblyGroupID != "" {
		s.syncAssemblySiblings(tag.AssemblyGroupID)
	}

	return tag
}

// deriveDimensionMapping: filter dimension -> housing dimension via the
// tenant-configured lookup. Unknown dimensions pass through unchanged
// (the filter value itself becomes the housing value). Never
// overwrites an already-present housing dimension.
func (s *TechnicalState) deriveDimensionMapping(tag *models.TagUnit) {
	if s.cfg == nil {
		return
	}
	if tag.HousingWidth == nil && tag.FilterWidth != nil {
		tag.HousingWidth = mapDimension(s.cfg, *tag.FilterWidth)
	}
	if tag.HousingHeight == nil && tag.FilterHeight != nil {
		tag.HousingHeight = mapDimension(s.cfg, *tag.FilterHeight)
	}
}

func mapDimension(cfg *tenant.Config, filterDim int) *int {
	if mapped, ok := cfg.DimensionMapping[filterDim]; ok {
		return &mapped
	}
	passthrough := filterDim
	return &passthrough
}

// deriveOrientation swaps width<->height (filter dims together) when
// both housing dims are at or below the orientation threshold and the
// tag is currently landscape. Larger modules are left to the sizing
// engine (internal/engine Phase 10).
func (s *TechnicalState) deriveOrientation(tag *models.TagUnit) {
	threshold := 600
	if s.cfg != nil && s.cfg.OrientationThreshold > 0 {
		threshold = s.cfg.OrientationThreshold
	}
	if tag.HousingWidth == nil || tag.HousingHeight == nil {
		return
	}
	if *tag.HousingWidth <= threshold && *tag.HousingHeight <= threshold && *tag.HousingWidth > *tag.HousingHeight {
		tag.HousingWidth, tag.HousingHeight = tag.HousingHeight, tag.HousingWidth
		tag.FilterWidth, tag.FilterHeight = tag.FilterHeight, tag.FilterWidth
	}
}

// deriveHousingLength looks up a family-specific depth->length
// breakpoint table (falling back to tenant.DefaultHousingLengthFamily)
// and picks the first row whose MaxDepthMM is >= the filter depth. It
// never overrides an explicit length.
func (s *TechnicalState) deriveHousingLength(tag *models.TagUnit) {
	if tag.HousingLength != nil || tag.FilterDepth == nil || s.cfg == nil {
		return
	}
	table := s.cfg.HousingLengthTableFor(tag.ProductFamily)
	if len(table) == 0 {
		return
	}
	for _, row := range table {
		if *tag.FilterDepth <= row.MaxDepthMM {
			length := row.HousingLength
			tag.HousingLength = &length
			return
		}
	}
	length := table[len(table)-1].HousingLength
	tag.HousingLength = &length
}

func deriveCompleteness(tag *models.TagUnit) {
	var missing []string
	if tag.HousingWidth == nil {
		missing = append(missing, "housing_width")
	}
	if tag.HousingHeight == nil {
		missing = append(missing, "housing_height")
	}
	if tag.HousingLength == nil {
		missing = append(missing, "housing_length")
	}
	tag.MissingParams = missing
	tag.IsComplete = len(missing) == 0
}

// sharedPropertyGetters/setters mirror graphstore.MemoryStore's
// reflection-free field accessors so both layers apply the identical
// "first non-null wins" rule (spec §4.1 point 5 / §4.2's "the graph —
// not application code — is the enforcer of assembly consistency").
// housing_length is deliberately absent: each assembly stage keeps its
// own length.
var sharedPropertyGetters = map[string]func(*models.TagUnit) interface{}{
	"filter_width":   func(t *models.TagUnit) interface{} { return intIface(t.FilterWidth) },
	"filter_height":  func(t *models.TagUnit) interface{} { return intIface(t.FilterHeight) },
	"filter_depth":   func(t *models.TagUnit) interface{} { return intIface(t.FilterDepth) },
	"housing_width":  func(t *models.TagUnit) interface{} { return intIface(t.HousingWidth) },
	"housing_height": func(t *models.TagUnit) interface{} { return intIface(t.HousingHeight) },
	"airflow_m3h":    func(t *models.TagUnit) interface{} { return floatIface(t.AirflowM3h) },
}

var sharedPropertySetters = map[string]func(*models.TagUnit, interface{}){
	"filter_width":   func(t *models.TagUnit, v interface{}) { t.FilterWidth = toIntPtr(v) },
	"filter_height":  func(t *models.TagUnit, v interface{}) { t.FilterHeight = toIntPtr(v) },
	"filter_depth":   func(t *models.TagUnit, v interface{}) { t.FilterDepth = toIntPtr(v) },
	"housing_width":  func(t *models.TagUnit, v interface{}) { t.HousingWidth = toIntPtr(v) },
	"housing_height": func(t *models.TagUnit, v interface{}) { t.HousingHeight = toIntPtr(v) },
	"airflow_m3h":    func(t *models.TagUnit, v interface{}) { t.AirflowM3h = toFloatPtr(v) },
}

func intIface(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func floatIface(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func toIntPtr(v interface{}) *int {
	if v == nil {
		return nil
	}
	i := v.(int)
	return &i
}

func toFloatPtr(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	f := v.(float64)
	return &f
}

// syncAssemblySiblings copies the first non-null value of each shared
// property across every tag in groupID into siblings missing it.
func (s *TechnicalState) syncAssemblySiblings(groupID string) {
	if s.cfg == nil {
		return
	}
	var members []*models.TagUnit
	for _, id := range s.tagOrder {
		t := s.tags[id]
		if t.AssemblyGroupID == groupID {
			members = append(members, t)
		}
	}
	for _, prop := range s.cfg.AssemblySharedProperties {
		if prop == "housing_length" {
			continue
		}
		getter, ok := sharedPropertyGetters[prop]
		if !ok {
			continue
		}
		var winner interface{}
		for _, t := range members {
			if v := getter(t); v != nil {
				winner = v
				break
			}
		}
		if winner == nil {
			continue
		}
		setter := sharedPropertySetters[prop]
		for _, t := range members {
			if getter(t) == nil {
				setter(t, winner)
			}
		}
	}
}

// CreateAssemblyTags expands an engine-produced assembly (PROTECTOR,
// TARGET, …) into one TagUnit per stage, named "{base}_stage_{n}",
// sharing the base tag's dimensions/airflow via the usual sibling sync,
// then removes the base tag it was expanded from.
func (s *TechnicalState) CreateAssemblyTags(baseTagID string, stages []models.AssemblyStage, rationale string) []*models.TagUnit {
	groupID := baseTagID + "_assembly"
	base := s.tags[baseTagID]

	out := make([]*models.TagUnit, 0, len(stages))
	for i, stage := range stages {
		stageTagID := fmt.Sprintf("%s_stage_%d", baseTagID, i+1)
		family := stage.ProductFamilyID
		role := string(stage.Role)
		fields := graphstore.TagFields{
			ProductFamily:   &family,
			AssemblyGroupID: &groupID,
			AssemblyRole:    &role,
		}
		if base != nil {
			fields.FilterWidth = base.FilterWidth
			fields.FilterHeight = base.FilterHeight
			fields.HousingWidth = base.HousingWidth
			fields.HousingHeight = base.HousingHeight
			fields.AirflowM3h = base.AirflowM3h
		}
		tag := s.MergeTag(stageTagID, fields)
		out = append(out, tag)
	}

	if base != nil {
		s.removeTag(baseTagID)
	}

	s.AssemblyGroup = &AssemblyGroup{ID: groupID, Rationale: rationale, Stages: stages}
	return out
}

// removeTag drops a tag from the live set and queues it for deletion
// from the backing graph on the next PersistToGraph.
func (s *TechnicalState) removeTag(tagID string) {
	delete(s.tags, tagID)
	for i, id := range s.tagOrder {
		if id == tagID {
			s.tagOrder = append(s.tagOrder[:i], s.tagOrder[i+1:]...)
			break
		}
	}
	s.removedTags = append(s.removedTags, tagID)
}

// BuildProductCode fills a graph-supplied template with placeholders
// {family, width, height, length, frame_depth, material, connection,
// side}. The effective length folds in a connection_length_offset from
// ResolvedParams (e.g. a flange connection adds +50mm). Consecutive
// hyphens collapse to handle absent placeholders, and an empty
// codeFormat falls back to "{family}-{width}x{height}[-{length}]".
func (s *TechnicalState) BuildProductCode(tag *models.TagUnit, codeFormat string, defaultFrameDepth *int) string {
	material := tag.MaterialOverride
	if material == "" {
		material = s.LockedMaterial
	}

	length := ""
	if tag.HousingLength != nil {
		effective := *tag.HousingLength
		if offset, ok := s.ResolvedParams["connection_length_offset"]; ok {
			if f, ok := toFloat(offset); ok {
				effective += int(math.Round(f))
			}
		}
		length = fmt.Sprintf("%d", effective)
	}

	frameDepth := ""
	if defaultFrameDepth != nil {
		frameDepth = fmt.Sprintf("%d", *defaultFrameDepth)
	}

	values := map[string]string{
		"family":      tag.ProductFamily,
		"width":       intStr(tag.HousingWidth),
		"height":      intStr(tag.HousingHeight),
		"length":      length,
		"frame_depth": frameDepth,
		"material":    material,
		"connection":  stringParam(s.ResolvedParams, "connection_type"),
		"side":        stringParam(s.ResolvedParams, "side"),
	}

	format := codeFormat
	if format == "" {
		format = "{family}-{width}x{height}[-{length}]"
	}
	// Bracketed segments are emitted only if every placeholder within
	// them is non-empty; otherwise the whole segment is dropped.
	code := expandBracketedSegments(format, values)
	code = substitutePlaceholders(code, values)
	return collapseHyphens(code)
}

func expandBracketedSegments(format string, values map[string]string) string {
	var out strings.Builder
	for i := 0; i < len(format); {
		if format[i] == '[' {
			end := strings.IndexByte(format[i:], ']')
			if end < 0 {
				out.WriteString(format[i:])
				break
			}
			segment := format[i+1 : i+end]
			if segmentResolvable(segment, values) {
				out.WriteString(segment)
			}
			i += end + 1
			continue
		}
		out.WriteByte(format[i])
		i++
	}
	return out.String()
}

func segmentResolvable(segment string, values map[string]string) bool {
	for key, val := range values {
		if strings.Contains(segment, "{"+key+"}") && val == "" {
			return false
		}
	}
	return true
}

func substitutePlaceholders(format string, values map[string]string) string {
	out := format
	for key, val := range values {
		out = strings.ReplaceAll(out, "{"+key+"}", val)
	}
	return out
}

func collapseHyphens(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}

func intStr(p *int) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%d", *p)
}

func stringParam(params map[string]interface{}, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// VerifyMaterialCodes is a read-only audit: if a material is locked
// and a tag's product_code doesn't end with "-{material}" (and the tag
// has no material_override), the in-memory code is rewritten and a
// warning line is returned. Tests and logging consume the warnings;
// nothing here writes to the graph.
func (s *TechnicalState) VerifyMaterialCodes() []string {
	if s.LockedMaterial == "" {
		return nil
	}
	var warnings []string
	suffix := "-" + s.LockedMaterial
	for _, id := range s.tagOrder {
		tag := s.tags[id]
		if tag.MaterialOverride != "" || tag.ProductCode == "" {
			continue
		}
		if strings.HasSuffix(tag.ProductCode, suffix) {
			continue
		}
		idx := strings.LastIndex(tag.ProductCode, "-")
		if idx < 0 {
			continue
		}
		old := tag.ProductCode
		tag.ProductCode = old[:idx] + suffix
		warnings = append(warnings, fmt.Sprintf("tag %s: product_code %q did not carry the locked material %s; rewritten to %q", id, old, s.LockedMaterial, tag.ProductCode))
	}
	return warnings
}

// PersistToGraph writes every field via the SessionWriter upsert
// contract of spec §4.2.
func (s *TechnicalState) PersistToGraph(ctx context.Context, store graphstore.SessionWriter) error {
	if err := store.SetProject(ctx, s.SessionID, s.Project, s.Customer); err != nil {
		return fmt.Errorf("persist project: %w", err)
	}
	if s.LockedMaterial != "" {
		if err := store.LockMaterial(ctx, s.SessionID, s.LockedMaterial); err != nil {
			return fmt.Errorf("persist locked material: %w", err)
		}
	}
	if s.DetectedFamily != "" {
		if err := store.SetDetectedFamily(ctx, s.SessionID, s.DetectedFamily); err != nil {
			return fmt.Errorf("persist detected family: %w", err)
		}
	}
	if s.PendingClarification != "" {
		if err := store.SetPendingClarification(ctx, s.SessionID, s.PendingClarification); err != nil {
			return fmt.Errorf("persist pending clarification: %w", err)
		}
	}
	if len(s.Accessories) > 0 {
		if err := store.SetAccessories(ctx, s.SessionID, s.Accessories); err != nil {
			return fmt.Errorf("persist accessories: %w", err)
		}
	}
	if len(s.ResolvedParams) > 0 {
		raw, err := json.Marshal(s.ResolvedParams)
		if err != nil {
			return fmt.Errorf("marshal resolved params: %w", err)
		}
		if err := store.SetResolvedParams(ctx, s.SessionID, string(raw)); err != nil {
			return fmt.Errorf("persist resolved params: %w", err)
		}
	}
	if s.AssemblyGroup != nil {
		raw, err := json.Marshal(s.AssemblyGroup)
		if err != nil {
			return fmt.Errorf("marshal assembly group: %w", err)
		}
		if err := store.SetAssemblyGroup(ctx, s.SessionID, string(raw)); err != nil {
			return fmt.Errorf("persist assembly group: %w", err)
		}
	}
	if len(s.VetoedFamilies) > 0 {
		if err := store.SetVetoedFamilies(ctx, s.SessionID, s.VetoedFamilies); err != nil {
			return fmt.Errorf("persist vetoed families: %w", err)
		}
	}
	for _, id := range s.tagOrder {
		tag := s.tags[id]
		fields := graphstore.TagFields{
			FilterWidth: tag.FilterWidth, FilterHeight: tag.FilterHeight, FilterDepth: tag.FilterDepth,
			HousingWidth: tag.HousingWidth, HousingHeight: tag.HousingHeight, HousingLength: tag.HousingLength,
			AirflowM3h: tag.AirflowM3h, WeightKg: tag.WeightKg, Quantity: &tag.Quantity,
		}
		if tag.ProductFamily != "" {
			fields.ProductFamily = &tag.ProductFamily
		}
		if tag.ProductCode != "" {
			fields.ProductCode = &tag.ProductCode
		}
		if tag.AssemblyGroupID != "" {
			fields.AssemblyGroupID = &tag.AssemblyGroupID
		}
		if tag.AssemblyRole != "" {
			fields.AssemblyRole = &tag.AssemblyRole
		}
		if tag.MaterialOverride != "" {
			fields.MaterialOverride = &tag.MaterialOverride
		}
		var sharedProps []string
		if s.cfg != nil {
			sharedProps = s.cfg.AssemblySharedProperties
		}
		if _, err := store.UpsertTag(ctx, s.SessionID, id, fields, sharedProps); err != nil {
			return fmt.Errorf("persist tag %s: %w", id, err)
		}
	}
	for _, id := range s.removedTags {
		if err := store.DeleteTag(ctx, s.SessionID, id); err != nil {
			return fmt.Errorf("delete tag %s: %w", id, err)
		}
	}
	s.removedTags = nil
	return nil
}

// LoadFromGraph reconstructs a TechnicalState from a persisted project.
// JSON-encoded fields are decoded; completeness and every derivation
// are recomputed rather than trusted from storage, per spec §4.1.
func LoadFromGraph(ctx context.Context, store graphstore.SessionWriter, sessionID string, cfg *tenant.Config) (*TechnicalState, error) {
	projectState, err := store.GetProjectState(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load project state: %w", err)
	}

	s := New(sessionID, cfg)
	s.Project = projectState.Project.Name
	s.Customer = projectState.Project.Customer
	s.LockedMaterial = projectState.Project.LockedMaterial
	s.DetectedFamily = projectState.Project.DetectedFamily
	s.PendingClarification = projectState.Project.PendingClarification
	s.Accessories = append([]string{}, projectState.Project.Accessories...)
	s.VetoedFamilies = append([]string{}, projectState.Project.VetoedFamilies...)

	if projectState.Project.ResolvedParamsJSON != "" {
		if err := json.Unmarshal([]byte(projectState.Project.ResolvedParamsJSON), &s.ResolvedParams); err != nil {
			return nil, fmt.Errorf("decode resolved_params: %w", err)
		}
	}
	if projectState.Project.AssemblyGroupJSON != "" && projectState.Project.AssemblyGroupJSON != "{}" {
		var group AssemblyGroup
		if err := json.Unmarshal([]byte(projectState.Project.AssemblyGroupJSON), &group); err != nil {
			return nil, fmt.Errorf("decode assembly_group: %w", err)
		}
		if group.ID != "" {
			s.AssemblyGroup = &group
		}
	}

	for _, tag := range projectState.Tags {
		t := tag
		s.tags[t.TagID] = &t
		s.tagOrder = append(s.tagOrder, t.TagID)
	}
	sort.Strings(s.tagOrder) // storage order is not guaranteed; stabilize for deterministic prompt context

	for _, id := range s.tagOrder {
		tag := s.tags[id]
		s.deriveDimensionMapping(tag)
		s.deriveOrientation(tag)
		s.deriveHousingLength(tag)
		deriveCompleteness(tag)
	}
	for _, tag := range s.tags {
		if tag.AssemblyGroupID != "" {
			s.syncAssemblySiblings(tag.AssemblyGroupID)
		}
	}

	return s, nil
}

// ToPromptContext renders the deterministic, section-labeled block
// described in spec §4.1 — the only channel a downstream LLM sees this
// state through. Sections are omitted, never emitted empty.
func (s *TechnicalState) ToPromptContext() string {
	var b strings.Builder
	b.WriteString("CUMULATIVE PROJECT STATE (ABSOLUTE TRUTH - CANNOT BE CHANGED)\n")

	b.WriteString("\nLOCKED PARAMETERS:\n")
	if s.Project != "" {
		fmt.Fprintf(&b, "- project: %s\n", s.Project)
	}
	if s.LockedMaterial != "" {
		fmt.Fprintf(&b, "- material: %s (USE THIS IN ALL PRODUCT CODES)\n", s.LockedMaterial)
	}
	if s.DetectedFamily != "" {
		fmt.Fprintf(&b, "- family: %s\n", s.DetectedFamily)
	}
	if len(s.Accessories) > 0 {
		fmt.Fprintf(&b, "- accessories: %s\n", strings.Join(s.Accessories, ", "))
	}
	if len(s.ResolvedParams) > 0 {
		keys := make([]string, 0, len(s.ResolvedParams))
		for k := range s.ResolvedParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, s.ResolvedParams[k])
		}
	}

	if len(s.VetoedFamilies) > 0 {
		b.WriteString("\nVETOED PRODUCT FAMILIES:\n")
		for _, f := range s.VetoedFamilies {
			fmt.Fprintf(&b, "- %s — VETOED due to environmental incompatibility\n", f)
		}
	}

	if len(s.tagOrder) > 0 {
		b.WriteString("\nTAG SPECIFICATIONS:\n")
		for _, id := range s.tagOrder {
			tag := s.tags[id]
			if tag.IsComplete {
				fmt.Fprintf(&b, "- %s: COMPLETE (%s %dx%dx%d)\n", id, tag.ProductFamily,
					intOrZero(tag.HousingWidth), intOrZero(tag.HousingHeight), intOrZero(tag.HousingLength))
			} else {
				fmt.Fprintf(&b, "- %s: Missing: %s\n", id, strings.Join(tag.MissingParams, ", "))
			}
		}
	}

	b.WriteString("\nPROHIBITIONS:\n")
	b.WriteString("1. NEVER ask for data shown above\n")
	b.WriteString("2. NEVER revert material\n")
	b.WriteString("3. NEVER contradict a VETOED product family\n")

	if s.cfg != nil {
		table := s.cfg.HousingLengthTableFor(s.DetectedFamily)
		if len(table) > 0 {
			b.WriteString("\nAUTO-DERIVATION RULES:\n")
			for _, row := range table {
				fmt.Fprintf(&b, "- depth <= %dmm -> housing_length %dmm\n", row.MaxDepthMM, row.HousingLength)
			}
		}
	}

	if s.AssemblyGroup != nil {
		b.WriteString("\nMULTI-STAGE ASSEMBLY:\n")
		if s.AssemblyGroup.Rationale != "" {
			fmt.Fprintf(&b, "rationale: %s\n", s.AssemblyGroup.Rationale)
		}
		for _, stage := range s.AssemblyGroup.Stages {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", stage.Role, stage.ProductFamilyName, stage.TagID)
		}
	}

	allComplete := len(s.tagOrder) > 0
	for _, id := range s.tagOrder {
		if !s.tags[id].IsComplete {
			allComplete = false
			break
		}
	}
	if allComplete {
		b.WriteString("\nACTION REQUIRED IF ALL COMPLETE: output the final product table now.\n")
	}

	return b.String()
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
