package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mannhummel-graphreasoner/engine/internal/graphmodel"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// MemoryStore is the default, fixture-backed Store implementation. Its
// shape is grounded on the teacher's internal/store.MemoryStore: a
// sync.RWMutex-guarded set of maps, a key(parts...) composite-key
// helper, and values stored and returned by value rather than as
// pointers into the maps. The copies are shallow: fixture slices and
// the pointer fields of a TagUnit are shared between the store and its
// callers.
type MemoryStore struct {
	mu sync.RWMutex

	fixture *Fixture

	sessions map[string]models.Session
	projects map[string]models.ActiveProject
	tags     map[string]map[string]models.TagUnit // sessionID -> tagID -> TagUnit
	turns    map[string][]models.ConversationTurn
}

func NewMemoryStore(fixture *Fixture) *MemoryStore {
	if fixture == nil {
		fixture = DefaultFixture()
	}
	return &MemoryStore{
		fixture:  fixture,
		sessions: make(map[string]models.Session),
		projects: make(map[string]models.ActiveProject),
		tags:     make(map[string]map[string]models.TagUnit),
		turns:    make(map[string][]models.ConversationTurn),
	}
}

func key(parts ...string) string { return strings.Join(parts, "/") }

func (m *MemoryStore) Close() error { return nil }

// ── GraphReader ───────────────────────────────────────────────────

func (m *MemoryStore) GetStressorsByKeywords(_ context.Context, keywords []string) ([]graphmodel.EnvironmentalStressor, error) {
	set := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		set[strings.ToLower(k)] = true
	}
	var out []graphmodel.EnvironmentalStressor
	for _, s := range m.fixture.Stressors {
		for _, kw := range s.Keywords {
			if set[strings.ToLower(kw)] {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) GetStressorsForApplication(_ context.Context, appID string) ([]graphmodel.EnvironmentalStressor, error) {
	var app *graphmodel.Application
	for i := range m.fixture.Applications {
		if m.fixture.Applications[i].ID == appID {
			app = &m.fixture.Applications[i]
			break
		}
	}
	if app == nil {
		return nil, nil
	}
	var out []graphmodel.EnvironmentalStressor
	for _, sid := range app.ExposesTo {
		for _, s := range m.fixture.Stressors {
			if s.ID == sid {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) ResolveEnvironmentHierarchy(_ context.Context, envID string) ([]string, error) {
	chain := []string{}
	current := envID
	seen := map[string]bool{}
	for current != "" && !seen[current] {
		chain = append(chain, current)
		seen[current] = true
		next := ""
		for _, e := range m.fixture.Environments {
			if e.ID == current {
				next = e.IsA
				break
			}
		}
		current = next
	}
	return chain, nil
}

func (m *MemoryStore) GetEnvironmentKeywords(_ context.Context) (map[string][]string, error) {
	out := make(map[string][]string, len(m.fixture.Environments))
	for _, e := range m.fixture.Environments {
		out[e.ID] = e.Keywords
	}
	return out, nil
}

func (m *MemoryStore) GetCausalRulesForStressors(_ context.Context, stressorIDs []string) ([]graphmodel.DemandsTraitRule, []graphmodel.NeutralizedByRule, error) {
	set := toSet(stressorIDs)
	var demands []graphmodel.DemandsTraitRule
	for _, r := range m.fixture.DemandsTraitRules {
		if set[r.StressorID] {
			demands = append(demands, r)
		}
	}
	var neutralized []graphmodel.NeutralizedByRule
	for _, r := range m.fixture.NeutralizedByRules {
		if set[r.StressorID] {
			neutralized = append(neutralized, r)
		}
	}
	return demands, neutralized, nil
}

func (m *MemoryStore) GetAllProductFamiliesWithTraits(_ context.Context) ([]models.ProductFamilyTraits, error) {
	out := make([]models.ProductFamilyTraits, 0, len(m.fixture.ProductFamilies))
	for _, pf := range m.fixture.ProductFamilies {
		direct := m.fixture.FamilyDirectTraits[pf.ID]
		var material []string
		for _, matCode := range m.fixture.FamilyMaterials[pf.ID] {
			material = append(material, m.fixture.MaterialTraits[matCode]...)
		}
		all := uniqueStrings(append(append([]string{}, direct...), material...))
		out = append(out, models.ProductFamilyTraits{
			ProductID:         pf.ID,
			ProductName:       pf.Name,
			SelectionPriority: pf.SelectionPriority,
			DirectTraitIDs:    direct,
			MaterialTraitIDs:  uniqueStrings(material),
			AllTraitIDs:       all,
		})
	}
	return out, nil
}

func (m *MemoryStore) GetProductTraits(_ context.Context, family string) ([]string, error) {
	return m.fixture.FamilyDirectTraits[family], nil
}

func (m *MemoryStore) GetHardConstraints(_ context.Context, family string) ([]graphmodel.HardConstraint, error) {
	return m.fixture.HardConstraints[family], nil
}

func (m *MemoryStore) GetInstallationConstraints(_ context.Context, family string) ([]graphmodel.InstallationConstraint, error) {
	return m.fixture.InstallationConstraints[family], nil
}

func (m *MemoryStore) GetVariableFeatures(_ context.Context, family string) ([]graphmodel.VariableFeature, error) {
	return m.fixture.VariableFeatures[family], nil
}

func (m *MemoryStore) GetCapacityRules(_ context.Context, family string) ([]graphmodel.CapacityRule, error) {
	return m.fixture.CapacityRules[family], nil
}

func (m *MemoryStore) GetOptimizationStrategy(_ context.Context, family string) (*graphmodel.Strategy, error) {
	if s, ok := m.fixture.Strategies[family]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *MemoryStore) GetLogicGatesForStressors(_ context.Context, stressorIDs []string) ([]graphmodel.LogicGate, error) {
	set := toSet(stressorIDs)
	var out []graphmodel.LogicGate
	for _, g := range m.fixture.LogicGates {
		for _, mon := range g.Monitors {
			if set[mon] {
				out = append(out, g)
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) GetGatesTriggeredByContext(_ context.Context, contextKeys []string) ([]graphmodel.LogicGate, error) {
	return nil, nil
}

func (m *MemoryStore) GetDependencyRulesForStressors(_ context.Context, stressorIDs []string) ([]graphmodel.DependencyRule, error) {
	set := toSet(stressorIDs)
	var out []graphmodel.DependencyRule
	for _, r := range m.fixture.DependencyRules {
		if set[r.TriggeredByStressor] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetAvailableDimensionModules(_ context.Context, family string) ([]graphmodel.DimensionModule, error) {
	return m.fixture.DimensionModules[family], nil
}

func (m *MemoryStore) GetReferenceAirflowForDimensions(_ context.Context, widthMM, heightMM int, family string) (float64, bool, error) {
	for _, dm := range m.fixture.DimensionModules[family] {
		if dm.WidthMM == widthMM && dm.HeightMM == heightMM {
			return dm.ReferenceAirflowM3h, true, nil
		}
	}
	return 0, false, nil
}

func (m *MemoryStore) GetVariantWeight(_ context.Context, variantName string, housingLength *int) (float64, bool, error) {
	return 0, false, nil
}

func (m *MemoryStore) FindAlternativesForSpaceConstraint(_ context.Context, requiredDim float64, requiredTraits []string) ([]models.AlternativeProduct, error) {
	return m.qualifiedAlternatives(requiredTraits, func(pf graphmodel.ProductFamily) (bool, string) {
		return true, fmt.Sprintf("fits within the available installation space (%.0fmm)", requiredDim)
	}), nil
}

func (m *MemoryStore) FindAlternativesForEnvironmentConstraint(_ context.Context, envID string, requiredTraits []string) ([]models.AlternativeProduct, error) {
	chain, _ := m.ResolveEnvironmentHierarchy(context.Background(), envID)
	chainSet := toSet(chain)
	return m.qualifiedAlternatives(requiredTraits, func(pf graphmodel.ProductFamily) (bool, string) {
		for _, env := range pf.AllowedEnvironments {
			if chainSet[env] {
				return true, fmt.Sprintf("rated for %s", env)
			}
		}
		return false, ""
	}), nil
}

func (m *MemoryStore) FindMaterialAlternativesForThreshold(_ context.Context, productFamily, crossNodeProperty string, requiredValue float64) ([]models.AlternativeProduct, error) {
	var out []models.AlternativeProduct
	for _, matCode := range m.fixture.FamilyMaterials[productFamily] {
		for _, mat := range m.fixture.Materials {
			if mat.Code == matCode && crossNodeProperty == "chlorine_resistance_ppm" && mat.CorrosionClass >= "C4" {
				out = append(out, models.AlternativeProduct{
					ProductFamilyID:   productFamily,
					ProductFamilyName: productFamily,
					WhyItWorks:        fmt.Sprintf("material %s meets the required threshold", mat.Code),
					Details:           map[string]interface{}{"material": mat.Code},
				})
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) FindOtherProductsForMaterialThreshold(_ context.Context, crossNodeProperty string, requiredValue float64, requiredTraits []string) ([]models.AlternativeProduct, error) {
	return m.qualifiedAlternatives(requiredTraits, func(pf graphmodel.ProductFamily) (bool, string) {
		for _, matCode := range m.fixture.FamilyMaterials[pf.ID] {
			for _, mat := range m.fixture.Materials {
				if mat.Code == matCode && mat.CorrosionClass >= "C4" {
					return true, fmt.Sprintf("available in %s which meets the threshold", mat.Code)
				}
			}
		}
		return false, ""
	}), nil
}

func (m *MemoryStore) FindProductsWithHigherCapacity(_ context.Context, currentFamily string, requiredTraits []string) ([]models.AlternativeProduct, error) {
	var currentRating float64
	for _, r := range m.fixture.CapacityRules[currentFamily] {
		if r.OutputRating > currentRating {
			currentRating = r.OutputRating
		}
	}
	return m.qualifiedAlternatives(requiredTraits, func(pf graphmodel.ProductFamily) (bool, string) {
		if pf.ID == currentFamily {
			return false, ""
		}
		for _, r := range m.fixture.CapacityRules[pf.ID] {
			if r.OutputRating > currentRating {
				return true, fmt.Sprintf("higher per-module capacity (%.0f vs %.0f)", r.OutputRating, currentRating)
			}
		}
		return false, ""
	}), nil
}

// qualifiedAlternatives implements "trait qualification" (spec §4.5):
// only families that possess the required trait set are offered as
// alternatives.
func (m *MemoryStore) qualifiedAlternatives(requiredTraits []string, qualifies func(graphmodel.ProductFamily) (bool, string)) []models.AlternativeProduct {
	var out []models.AlternativeProduct
	for _, pf := range m.fixture.ProductFamilies {
		ok, why := qualifies(pf)
		if !ok {
			continue
		}
		if len(requiredTraits) > 0 {
			all := m.allTraitsFor(pf.ID)
			if !containsAll(all, requiredTraits) {
				continue
			}
		}
		out = append(out, models.AlternativeProduct{
			ProductFamilyID:   pf.ID,
			ProductFamilyName: pf.Name,
			WhyItWorks:        why,
		})
	}
	return out
}

func (m *MemoryStore) allTraitsFor(family string) []string {
	direct := m.fixture.FamilyDirectTraits[family]
	var material []string
	for _, matCode := range m.fixture.FamilyMaterials[family] {
		material = append(material, m.fixture.MaterialTraits[matCode]...)
	}
	return uniqueStrings(append(append([]string{}, direct...), material...))
}

func (m *MemoryStore) GetProductFamilyCodeFormat(_ context.Context, family string) (string, *int, error) {
	if f, ok := m.fixture.ProductCodeFormats[family]; ok {
		return f.Format, f.DefaultFrameDepth, nil
	}
	return "", nil, nil
}

func (m *MemoryStore) GetAccessoryCompatibility(_ context.Context, accessoryCode, family string) (graphmodel.AccessoryEdge, bool, error) {
	for _, e := range m.fixture.AccessoryEdges {
		if e.ProductFamilyID == family && e.AccessoryCode == accessoryCode {
			return e, true, nil
		}
	}
	return graphmodel.AccessoryEdge{}, false, nil
}

func (m *MemoryStore) GetAllAccessoryCodes(_ context.Context) ([]string, error) {
	out := make([]string, 0, len(m.fixture.Accessories))
	for _, a := range m.fixture.Accessories {
		out = append(out, a.Code)
	}
	return out, nil
}

func (m *MemoryStore) GetRequiredParameters(_ context.Context, family string) ([]graphmodel.Parameter, error) {
	return m.fixture.RequiredParameters[family], nil
}

func (m *MemoryStore) GetContextualClarifications(_ context.Context, appID, family string) ([]graphmodel.Parameter, error) {
	var out []graphmodel.Parameter
	for _, cr := range m.fixture.ClarificationRules {
		if cr.TriggeredByContext != appID {
			continue
		}
		if cr.AppliesToProduct != "" && cr.AppliesToProduct != family {
			continue
		}
		if p, ok := m.fixture.clarificationParameters[cr.DemandsParameter]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// ── SessionWriter ─────────────────────────────────────────────────

func (m *MemoryStore) EnsureSession(_ context.Context, sessionID, userID string) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if s, ok := m.sessions[sessionID]; ok {
		s.LastActive = now
		m.sessions[sessionID] = s
		return s, nil
	}
	s := models.Session{ID: sessionID, UserID: userID, LastActive: now, CreatedAt: now}
	m.sessions[sessionID] = s
	m.projects[sessionID] = models.ActiveProject{ID: uuid.NewString(), SessionID: sessionID}
	m.tags[sessionID] = make(map[string]models.TagUnit)
	return s, nil
}

func (m *MemoryStore) project(sessionID string) models.ActiveProject {
	p, ok := m.projects[sessionID]
	if !ok {
		p = models.ActiveProject{ID: uuid.NewString(), SessionID: sessionID}
	}
	return p
}

func (m *MemoryStore) SetProject(_ context.Context, sessionID, name, customer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.project(sessionID)
	if p.Name == "" && name != "" {
		p.Name = name
	}
	if customer != "" {
		p.Customer = customer
	}
	m.projects[sessionID] = p
	return nil
}

func (m *MemoryStore) LockMaterial(_ context.Context, sessionID, material string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.project(sessionID)
	if p.LockedMaterial == "" && material != "" {
		p.LockedMaterial = material
	}
	m.projects[sessionID] = p
	return nil
}

func (m *MemoryStore) SetDetectedFamily(_ context.Context, sessionID, family string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.project(sessionID)
	if family != "" {
		p.DetectedFamily = family
	}
	m.projects[sessionID] = p
	return nil
}

func (m *MemoryStore) SetPendingClarification(_ context.Context, sessionID, clarification string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.project(sessionID)
	p.PendingClarification = clarification
	m.projects[sessionID] = p
	return nil
}

func (m *MemoryStore) SetAccessories(_ context.Context, sessionID string, accessories []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.project(sessionID)
	if len(accessories) > 0 {
		p.Accessories = accessories
	}
	m.projects[sessionID] = p
	return nil
}

func (m *MemoryStore) SetAssemblyGroup(_ context.Context, sessionID, assemblyGroupJSON string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.project(sessionID)
	if assemblyGroupJSON != "" {
		p.AssemblyGroupJSON = assemblyGroupJSON
	}
	m.projects[sessionID] = p
	return nil
}

func (m *MemoryStore) SetResolvedParams(_ context.Context, sessionID, resolvedParamsJSON string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.project(sessionID)
	if resolvedParamsJSON != "" {
		p.ResolvedParamsJSON = resolvedParamsJSON
	}
	m.projects[sessionID] = p
	return nil
}

func (m *MemoryStore) SetVetoedFamilies(_ context.Context, sessionID string, families []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.project(sessionID)
	if len(families) > 0 {
		p.VetoedFamilies = families
	}
	m.projects[sessionID] = p
	return nil
}

func mergeInt(existing *int, incoming *int) *int {
	if incoming != nil {
		return incoming
	}
	return existing
}

func mergeFloat(existing *float64, incoming *float64) *float64 {
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

// UpsertTag merges fields into the TagUnit, per-session, sets
// IsComplete from whether housing width, height and length are all
// present, and syncs sharedProperties across the tag's assembly
// siblings. It does not derive housing dimensions or length from the
// filter dimensions: those are stored as supplied (internal/state
// derives them in process before persisting).
func (m *MemoryStore) UpsertTag(_ context.Context, sessionID, tagID string, fields TagFields, sharedProperties []string) (models.TagUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionTags, ok := m.tags[sessionID]
	if !ok {
		sessionTags = make(map[string]models.TagUnit)
		m.tags[sessionID] = sessionTags
	}

	tag, existed := sessionTags[tagID]
	if !existed {
		tag = models.TagUnit{ID: uuid.NewString(), TagID: tagID, SessionID: sessionID, Quantity: 1}
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

	tag.IsComplete = tag.HousingWidth != nil && tag.HousingHeight != nil && tag.HousingLength != nil
	sessionTags[tagID] = tag

	if tag.AssemblyGroupID != "" && len(sharedProperties) > 0 {
		m.syncAssemblySiblingsLocked(sessionID, tag.AssemblyGroupID, sharedProperties)
	}

	return sessionTags[tagID], nil
}

// DeleteTag removes a tag from its session — used when an assembly
// supersedes the base tag it was expanded from.
func (m *MemoryStore) DeleteTag(_ context.Context, sessionID, tagID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tags[sessionID], tagID)
	return nil
}

// syncAssemblySiblingsLocked copies the first non-null value of each
// shared property across every tag in the group into siblings missing
// it. Must be called with m.mu held.
func (m *MemoryStore) syncAssemblySiblingsLocked(sessionID, groupID string, sharedProperties []string) {
	sessionTags := m.tags[sessionID]
	var memberIDs []string
	for id, t := range sessionTags {
		if t.AssemblyGroupID == groupID {
			memberIDs = append(memberIDs, id)
		}
	}

	for _, prop := range sharedProperties {
		var winner interface{}
		for _, id := range memberIDs {
			if v := fieldValue(sessionTags[id], prop); v != nil {
				winner = v
				break
			}
		}
		if winner == nil {
			continue
		}
		for _, id := range memberIDs {
			t := sessionTags[id]
			if fieldValue(t, prop) == nil {
				setFieldValue(&t, prop, winner)
				sessionTags[id] = t
			}
		}
	}
}

func fieldValue(t models.TagUnit, prop string) interface{} {
	switch prop {
	case "filter_width":
		return intDeref(t.FilterWidth)
	case "filter_height":
		return intDeref(t.FilterHeight)
	case "filter_depth":
		return intDeref(t.FilterDepth)
	case "housing_width":
		return intDeref(t.HousingWidth)
	case "housing_height":
		return intDeref(t.HousingHeight)
	case "airflow_m3h":
		return floatDeref(t.AirflowM3h)
	}
	return nil
}

func setFieldValue(t *models.TagUnit, prop string, v interface{}) {
	switch prop {
	case "filter_width":
		iv := v.(int)
		t.FilterWidth = &iv
	case "filter_height":
		iv := v.(int)
		t.FilterHeight = &iv
	case "filter_depth":
		iv := v.(int)
		t.FilterDepth = &iv
	case "housing_width":
		iv := v.(int)
		t.HousingWidth = &iv
	case "housing_height":
		iv := v.(int)
		t.HousingHeight = &iv
	case "airflow_m3h":
		fv := v.(float64)
		t.AirflowM3h = &fv
	}
}

func intDeref(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func floatDeref(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func (m *MemoryStore) GetProjectState(_ context.Context, sessionID string) (ProjectState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.projects[sessionID]
	var tags []models.TagUnit
	for _, t := range m.tags[sessionID] {
		tags = append(tags, t)
	}
	return ProjectState{Project: p, Tags: tags, TagCount: len(tags)}, nil
}

const maxTurnMessageLen = 2000

func (m *MemoryStore) StoreTurn(_ context.Context, sessionID string, role models.TurnRole, message string, turnNumber int) (models.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(message) > maxTurnMessageLen {
		message = message[:maxTurnMessageLen]
	}
	contentKey := fmt.Sprintf("TURN_%s_%d_%s", sessionID, turnNumber, role)
	for _, t := range m.turns[sessionID] {
		if t.ID == contentKey {
			return t, nil
		}
	}
	turn := models.ConversationTurn{ID: contentKey, SessionID: sessionID, Role: role, Message: message, TurnNumber: turnNumber, CreatedAt: time.Now().UTC()}
	m.turns[sessionID] = append(m.turns[sessionID], turn)
	return turn, nil
}

func (m *MemoryStore) GetRecentTurns(_ context.Context, sessionID string, n int) ([]models.ConversationTurn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.turns[sessionID]
	if n <= 0 || n >= len(all) {
		out := make([]models.ConversationTurn, len(all))
		copy(out, all)
		return out, nil
	}
	start := len(all) - n
	out := make([]models.ConversationTurn, n)
	copy(out, all[start:])
	return out, nil
}

func (m *MemoryStore) ClearSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	delete(m.projects, sessionID)
	delete(m.tags, sessionID)
	delete(m.turns, sessionID)
	return nil
}

func (m *MemoryStore) CleanupStaleSessions(_ context.Context, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-ttl)
	removed := 0
	for id, s := range m.sessions {
		if s.LastActive.Before(cutoff) {
			delete(m.sessions, id)
			delete(m.projects, id)
			delete(m.tags, id)
			delete(m.turns, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) GetSessionGraphData(_ context.Context, sessionID string) (SessionGraphData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data := SessionGraphData{}
	if s, ok := m.sessions[sessionID]; ok {
		node, _ := toMap(s)
		data.Nodes = append(data.Nodes, node)
	}
	if p, ok := m.projects[sessionID]; ok {
		node, _ := toMap(p)
		data.Nodes = append(data.Nodes, node)
	}
	for _, t := range m.tags[sessionID] {
		node, _ := toMap(t)
		data.Nodes = append(data.Nodes, node)
		data.Edges = append(data.Edges, map[string]interface{}{"type": "HAS_UNIT", "session_id": sessionID, "tag_id": t.TagID})
	}
	return data, nil
}

func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ── small helpers ─────────────────────────────────────────────────

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}

func uniqueStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, i := range items {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

func containsAll(haystack []string, needles []string) bool {
	set := toSet(haystack)
	for _, n := range needles {
		if !set[n] {
			return false
		}
	}
	return true
}

var _ Store = (*MemoryStore)(nil)
