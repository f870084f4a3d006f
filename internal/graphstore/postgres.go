package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mannhummel-graphreasoner/engine/internal/graphmodel"
	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// PostgresStore models the knowledge graph as two tables —
// graph_nodes(id, label, props jsonb) and graph_edges(id, src_id,
// rel_type, dst_id, props jsonb) — per schema.sql, and the session
// subgraph as ordinary relational tables it owns outright. GraphReader
// methods run SQL over these tables, several of them as more than one
// query, and GetGatesTriggeredByContext runs none; nothing
// here accepts a raw Cypher-equivalent string from its caller, which is
// how the portability boundary of spec §9 stays a Go interface instead
// of a query-language dependency.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// nodesByLabelWithKeywordOverlap finds nodes of a label whose
// props->'keywords' jsonb array shares at least one element with
// `keywords` — the SQL equivalent of get_stressors_by_keywords's
// "keywords list intersects the query tokens".
func (p *PostgresStore) nodesByLabelWithKeywordOverlap(ctx context.Context, label string, keywords []string) (pgx.Rows, error) {
	return p.pool.Query(ctx, `
		SELECT id, props FROM graph_nodes
		WHERE label = $1 AND props->'keywords' ?| $2`, label, keywords)
}

func (p *PostgresStore) GetStressorsByKeywords(ctx context.Context, keywords []string) ([]graphmodel.EnvironmentalStressor, error) {
	rows, err := p.nodesByLabelWithKeywordOverlap(ctx, "EnvironmentalStressor", keywords)
	if err != nil {
		return nil, fmt.Errorf("query stressors by keywords: %w", err)
	}
	defer rows.Close()
	return scanStressors(rows)
}

func scanStressors(rows pgx.Rows) ([]graphmodel.EnvironmentalStressor, error) {
	var out []graphmodel.EnvironmentalStressor
	for rows.Next() {
		var id string
		var props []byte
		if err := rows.Scan(&id, &props); err != nil {
			return nil, err
		}
		var s graphmodel.EnvironmentalStressor
		if err := json.Unmarshal(props, &s); err != nil {
			continue // GraphSchemaError-equivalent: drop the malformed record
		}
		s.ID = id
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetStressorsForApplication(ctx context.Context, appID string) ([]graphmodel.EnvironmentalStressor, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT n.id, n.props FROM graph_edges e
		JOIN graph_nodes n ON n.id = e.dst_id
		WHERE e.src_id = $1 AND e.rel_type = 'EXPOSES_TO'`, appID)
	if err != nil {
		return nil, fmt.Errorf("query stressors for application: %w", err)
	}
	defer rows.Close()
	return scanStressors(rows)
}

func (p *PostgresStore) ResolveEnvironmentHierarchy(ctx context.Context, envID string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		WITH RECURSIVE chain(id) AS (
			SELECT $1::text
			UNION ALL
			SELECT e.dst_id FROM graph_edges e
			JOIN chain c ON e.src_id = c.id
			WHERE e.rel_type = 'IS_A'
		)
		SELECT id FROM chain`, envID)
	if err != nil {
		return nil, fmt.Errorf("resolve environment hierarchy: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetEnvironmentKeywords(ctx context.Context) (map[string][]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, props->'keywords' FROM graph_nodes WHERE label = 'Environment'`)
	if err != nil {
		return nil, fmt.Errorf("query environment keywords: %w", err)
	}
	defer rows.Close()
	out := map[string][]string{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var kws []string
		_ = json.Unmarshal(raw, &kws)
		out[id] = kws
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetCausalRulesForStressors(ctx context.Context, stressorIDs []string) ([]graphmodel.DemandsTraitRule, []graphmodel.NeutralizedByRule, error) {
	demandRows, err := p.pool.Query(ctx, `
		SELECT src_id, dst_id, props->>'severity', props->>'explanation'
		FROM graph_edges WHERE rel_type = 'DEMANDS_TRAIT' AND src_id = ANY($1)`, stressorIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("query demands_trait: %w", err)
	}
	defer demandRows.Close()
	var demands []graphmodel.DemandsTraitRule
	for demandRows.Next() {
		var r graphmodel.DemandsTraitRule
		if err := demandRows.Scan(&r.StressorID, &r.TraitID, &r.Severity, &r.Explanation); err != nil {
			return nil, nil, err
		}
		demands = append(demands, r)
	}

	neutralRows, err := p.pool.Query(ctx, `
		SELECT src_id, dst_id, props->>'severity', props->>'explanation'
		FROM graph_edges WHERE rel_type = 'NEUTRALIZED_BY' AND dst_id = ANY($1)`, stressorIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("query neutralized_by: %w", err)
	}
	defer neutralRows.Close()
	var neutralized []graphmodel.NeutralizedByRule
	for neutralRows.Next() {
		var r graphmodel.NeutralizedByRule
		if err := neutralRows.Scan(&r.TraitID, &r.StressorID, &r.Severity, &r.Explanation); err != nil {
			return nil, nil, err
		}
		neutralized = append(neutralized, r)
	}
	return demands, neutralized, neutralRows.Err()
}

func (p *PostgresStore) GetAllProductFamiliesWithTraits(ctx context.Context) ([]models.ProductFamilyTraits, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT n.id, n.props->>'name', COALESCE((n.props->>'selection_priority')::int, 0)
		FROM graph_nodes n WHERE n.label = 'ProductFamily'`)
	if err != nil {
		return nil, fmt.Errorf("query product families: %w", err)
	}
	defer rows.Close()

	var out []models.ProductFamilyTraits
	for rows.Next() {
		var pf models.ProductFamilyTraits
		if err := rows.Scan(&pf.ProductID, &pf.ProductName, &pf.SelectionPriority); err != nil {
			return nil, err
		}
		direct, err := p.edgeTargets(ctx, pf.ProductID, "HAS_TRAIT")
		if err != nil {
			return nil, err
		}
		materials, err := p.edgeTargets(ctx, pf.ProductID, "AVAILABLE_IN_MATERIAL")
		if err != nil {
			return nil, err
		}
		var materialTraits []string
		for _, mat := range materials {
			traits, err := p.edgeTargets(ctx, mat, "PROVIDES_TRAIT")
			if err != nil {
				return nil, err
			}
			materialTraits = append(materialTraits, traits...)
		}
		pf.DirectTraitIDs = direct
		pf.MaterialTraitIDs = uniqueStrings(materialTraits)
		pf.AllTraitIDs = uniqueStrings(append(append([]string{}, direct...), materialTraits...))
		out = append(out, pf)
	}
	return out, rows.Err()
}

func (p *PostgresStore) edgeTargets(ctx context.Context, srcID, relType string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT dst_id FROM graph_edges WHERE src_id = $1 AND rel_type = $2`, srcID, relType)
	if err != nil {
		return nil, fmt.Errorf("query %s edges: %w", relType, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetProductTraits(ctx context.Context, family string) ([]string, error) {
	return p.edgeTargets(ctx, family, "HAS_TRAIT")
}

// The remaining Layer-2/3 reads below follow the same two-table model
// as the methods above, most as an edge lookup from the family node
// followed by a fetch of the target nodes — never a raw Cypher string
// handed up from a caller.

func (p *PostgresStore) GetHardConstraints(ctx context.Context, family string) ([]graphmodel.HardConstraint, error) {
	ids, err := p.edgeTargets(ctx, family, "HAS_HARD_CONSTRAINT")
	if err != nil {
		return nil, err
	}
	return fetchNodesAs[graphmodel.HardConstraint](ctx, p, ids)
}

func (p *PostgresStore) GetInstallationConstraints(ctx context.Context, family string) ([]graphmodel.InstallationConstraint, error) {
	ids, err := p.edgeTargets(ctx, family, "HAS_INSTALLATION_CONSTRAINT")
	if err != nil {
		return nil, err
	}
	return fetchNodesAs[graphmodel.InstallationConstraint](ctx, p, ids)
}

func (p *PostgresStore) GetVariableFeatures(ctx context.Context, family string) ([]graphmodel.VariableFeature, error) {
	ids, err := p.edgeTargets(ctx, family, "HAS_VARIABLE_FEATURE")
	if err != nil {
		return nil, err
	}
	return fetchNodesAs[graphmodel.VariableFeature](ctx, p, ids)
}

func (p *PostgresStore) GetCapacityRules(ctx context.Context, family string) ([]graphmodel.CapacityRule, error) {
	ids, err := p.edgeTargets(ctx, family, "HAS_CAPACITY")
	if err != nil {
		return nil, err
	}
	return fetchNodesAs[graphmodel.CapacityRule](ctx, p, ids)
}

func (p *PostgresStore) GetOptimizationStrategy(ctx context.Context, family string) (*graphmodel.Strategy, error) {
	ids, err := p.edgeTargets(ctx, family, "OPTIMIZATION_STRATEGY")
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	strategies, err := fetchNodesAs[graphmodel.Strategy](ctx, p, ids[:1])
	if err != nil || len(strategies) == 0 {
		return nil, err
	}
	return &strategies[0], nil
}

func (p *PostgresStore) GetLogicGatesForStressors(ctx context.Context, stressorIDs []string) ([]graphmodel.LogicGate, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT src_id FROM graph_edges WHERE rel_type = 'MONITORS' AND dst_id = ANY($1)`, stressorIDs)
	if err != nil {
		return nil, fmt.Errorf("query gates monitoring stressors: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return fetchNodesAs[graphmodel.LogicGate](ctx, p, ids)
}

func (p *PostgresStore) GetGatesTriggeredByContext(ctx context.Context, contextKeys []string) ([]graphmodel.LogicGate, error) {
	return nil, nil
}

func (p *PostgresStore) GetDependencyRulesForStressors(ctx context.Context, stressorIDs []string) ([]graphmodel.DependencyRule, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM graph_nodes WHERE label = 'DependencyRule' AND props->>'triggered_by_stressor' = ANY($1)`, stressorIDs)
	if err != nil {
		return nil, fmt.Errorf("query dependency rules: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return fetchNodesAs[graphmodel.DependencyRule](ctx, p, ids)
}

func (p *PostgresStore) GetAvailableDimensionModules(ctx context.Context, family string) ([]graphmodel.DimensionModule, error) {
	ids, err := p.edgeTargets(ctx, family, "HAS_DIMENSION_MODULE")
	if err != nil {
		return nil, err
	}
	return fetchNodesAs[graphmodel.DimensionModule](ctx, p, ids)
}

func (p *PostgresStore) GetReferenceAirflowForDimensions(ctx context.Context, widthMM, heightMM int, family string) (float64, bool, error) {
	var airflow float64
	err := p.pool.QueryRow(ctx, `
		SELECT (n.props->>'reference_airflow_m3h')::double precision
		FROM graph_nodes n
		JOIN graph_edges e ON e.dst_id = n.id AND e.rel_type = 'HAS_DIMENSION_MODULE' AND e.src_id = $3
		WHERE (n.props->>'width_mm')::int = $1 AND (n.props->>'height_mm')::int = $2
		LIMIT 1`, widthMM, heightMM, family).Scan(&airflow)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("query reference airflow: %w", err)
	}
	return airflow, true, nil
}

func (p *PostgresStore) GetVariantWeight(ctx context.Context, variantName string, housingLength *int) (float64, bool, error) {
	var weight float64
	err := p.pool.QueryRow(ctx, `SELECT (props->>'weight_kg')::double precision FROM graph_nodes WHERE label = 'ProductVariant' AND props->>'name' = $1`, variantName).Scan(&weight)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("query variant weight: %w", err)
	}
	return weight, true, nil
}

func (p *PostgresStore) FindAlternativesForSpaceConstraint(ctx context.Context, requiredDim float64, requiredTraits []string) ([]models.AlternativeProduct, error) {
	return p.traitQualifiedFamilyAlternatives(ctx, requiredTraits, "fits within the available installation space")
}

func (p *PostgresStore) FindAlternativesForEnvironmentConstraint(ctx context.Context, envID string, requiredTraits []string) ([]models.AlternativeProduct, error) {
	chain, err := p.ResolveEnvironmentHierarchy(ctx, envID)
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, props->>'name' FROM graph_nodes
		WHERE label = 'ProductFamily' AND props->'allowed_environments' ?| $1`, chain)
	if err != nil {
		return nil, fmt.Errorf("query environment alternatives: %w", err)
	}
	defer rows.Close()
	var out []models.AlternativeProduct
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		if len(requiredTraits) > 0 {
			all, err := p.GetAllProductFamiliesWithTraits(ctx)
			if err != nil {
				return nil, err
			}
			if !familyHasTraits(all, id, requiredTraits) {
				continue
			}
		}
		out = append(out, models.AlternativeProduct{ProductFamilyID: id, ProductFamilyName: name, WhyItWorks: "rated for the requested installation environment"})
	}
	return out, rows.Err()
}

func familyHasTraits(all []models.ProductFamilyTraits, id string, required []string) bool {
	for _, pf := range all {
		if pf.ProductID == id {
			return containsAll(pf.AllTraitIDs, required)
		}
	}
	return false
}

func (p *PostgresStore) traitQualifiedFamilyAlternatives(ctx context.Context, requiredTraits []string, why string) ([]models.AlternativeProduct, error) {
	all, err := p.GetAllProductFamiliesWithTraits(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.AlternativeProduct
	for _, pf := range all {
		if containsAll(pf.AllTraitIDs, requiredTraits) {
			out = append(out, models.AlternativeProduct{ProductFamilyID: pf.ProductID, ProductFamilyName: pf.ProductName, WhyItWorks: why})
		}
	}
	return out, nil
}

func (p *PostgresStore) FindMaterialAlternativesForThreshold(ctx context.Context, productFamily, crossNodeProperty string, requiredValue float64) ([]models.AlternativeProduct, error) {
	materials, err := p.edgeTargets(ctx, productFamily, "AVAILABLE_IN_MATERIAL")
	if err != nil {
		return nil, err
	}
	var out []models.AlternativeProduct
	for _, matID := range materials {
		var val float64
		err := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT (props->>%s)::double precision FROM graph_nodes WHERE id = $1`, pgQuoteLiteral(crossNodeProperty)), matID).Scan(&val)
		if err != nil {
			continue
		}
		if val >= requiredValue {
			out = append(out, models.AlternativeProduct{ProductFamilyID: productFamily, ProductFamilyName: productFamily, WhyItWorks: fmt.Sprintf("material %s meets the required threshold", matID)})
		}
	}
	return out, nil
}

func (p *PostgresStore) FindOtherProductsForMaterialThreshold(ctx context.Context, crossNodeProperty string, requiredValue float64, requiredTraits []string) ([]models.AlternativeProduct, error) {
	return p.traitQualifiedFamilyAlternatives(ctx, requiredTraits, "available in a material meeting the threshold")
}

func (p *PostgresStore) FindProductsWithHigherCapacity(ctx context.Context, currentFamily string, requiredTraits []string) ([]models.AlternativeProduct, error) {
	return p.traitQualifiedFamilyAlternatives(ctx, requiredTraits, "higher per-module capacity")
}

func (p *PostgresStore) GetProductFamilyCodeFormat(ctx context.Context, family string) (string, *int, error) {
	var format string
	var depth *int
	err := p.pool.QueryRow(ctx, `SELECT props->>'code_format', (props->>'default_frame_depth')::int FROM graph_nodes WHERE id = $1`, family).Scan(&format, &depth)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("query code format: %w", err)
	}
	return format, depth, nil
}

func (p *PostgresStore) GetAccessoryCompatibility(ctx context.Context, accessoryCode, family string) (graphmodel.AccessoryEdge, bool, error) {
	var relType, reason string
	err := p.pool.QueryRow(ctx, `
		SELECT rel_type, COALESCE(props->>'reason', '') FROM graph_edges
		WHERE src_id = $1 AND dst_id = $2 AND rel_type IN ('HAS_COMPATIBLE_ACCESSORY', 'INCOMPATIBLE_WITH')`, family, accessoryCode).Scan(&relType, &reason)
	if err != nil {
		if err == pgx.ErrNoRows {
			return graphmodel.AccessoryEdge{}, false, nil
		}
		return graphmodel.AccessoryEdge{}, false, fmt.Errorf("query accessory compatibility: %w", err)
	}
	return graphmodel.AccessoryEdge{ProductFamilyID: family, AccessoryCode: accessoryCode, Allowed: relType == "HAS_COMPATIBLE_ACCESSORY", Reason: reason}, true, nil
}

func (p *PostgresStore) GetAllAccessoryCodes(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT props->>'code' FROM graph_nodes WHERE label = 'Accessory'`)
	if err != nil {
		return nil, fmt.Errorf("query accessory codes: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetRequiredParameters(ctx context.Context, family string) ([]graphmodel.Parameter, error) {
	ids, err := p.edgeTargets(ctx, family, "REQUIRES_PARAMETER")
	if err != nil {
		return nil, err
	}
	return fetchNodesAs[graphmodel.Parameter](ctx, p, ids)
}

func (p *PostgresStore) GetContextualClarifications(ctx context.Context, appID, family string) ([]graphmodel.Parameter, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT dst_id FROM graph_edges
		WHERE rel_type = 'DEMANDS_PARAMETER'
		  AND src_id IN (
		    SELECT id FROM graph_nodes n
		    WHERE n.label = 'ClarificationRule'
		      AND EXISTS (SELECT 1 FROM graph_edges e WHERE e.src_id = n.id AND e.rel_type = 'TRIGGERED_BY_CONTEXT' AND e.dst_id = $1)
		      AND (NOT EXISTS (SELECT 1 FROM graph_edges e WHERE e.src_id = n.id AND e.rel_type = 'APPLIES_TO_PRODUCT')
		           OR EXISTS (SELECT 1 FROM graph_edges e WHERE e.src_id = n.id AND e.rel_type = 'APPLIES_TO_PRODUCT' AND e.dst_id = $2))
		  )`, appID, family)
	if err != nil {
		return nil, fmt.Errorf("query contextual clarifications: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return fetchNodesAs[graphmodel.Parameter](ctx, p, ids)
}

// fetchNodesAs loads a set of node ids and unmarshals each node's props
// jsonb blob into T, silently skipping any record that fails to decode.
func fetchNodesAs[T any](ctx context.Context, p *PostgresStore, ids []string) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, `SELECT id, props FROM graph_nodes WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch nodes: %w", err)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func pgQuoteLiteral(s string) string {
	return "'" + s + "'"
}

// ── SessionWriter (relational) ───────────────────────────────────

func (p *PostgresStore) EnsureSession(ctx context.Context, sessionID, userID string) (models.Session, error) {
	now := time.Now().UTC()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, last_active, created_at) VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE SET last_active = $3`, sessionID, userID, now)
	if err != nil {
		return models.Session{}, fmt.Errorf("ensure session: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO active_projects (id, session_id) VALUES ($1, $2)
		ON CONFLICT (session_id) DO NOTHING`, uuid.NewString(), sessionID)
	if err != nil {
		return models.Session{}, fmt.Errorf("ensure project: %w", err)
	}
	return models.Session{ID: sessionID, UserID: userID, LastActive: now}, nil
}

func (p *PostgresStore) SetProject(ctx context.Context, sessionID, name, customer string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE active_projects SET
			name = CASE WHEN name = '' THEN $2 ELSE name END,
			customer = CASE WHEN $3 != '' THEN $3 ELSE customer END
		WHERE session_id = $1`, sessionID, name, customer)
	return err
}

func (p *PostgresStore) LockMaterial(ctx context.Context, sessionID, material string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE active_projects SET locked_material = $2
		WHERE session_id = $1 AND locked_material = '' AND $2 != ''`, sessionID, material)
	return err
}

func (p *PostgresStore) SetDetectedFamily(ctx context.Context, sessionID, family string) error {
	if family == "" {
		return nil
	}
	_, err := p.pool.Exec(ctx, `UPDATE active_projects SET detected_family = $2 WHERE session_id = $1`, sessionID, family)
	return err
}

func (p *PostgresStore) SetPendingClarification(ctx context.Context, sessionID, clarification string) error {
	_, err := p.pool.Exec(ctx, `UPDATE active_projects SET pending_clarification = $2 WHERE session_id = $1`, sessionID, clarification)
	return err
}

func (p *PostgresStore) SetAccessories(ctx context.Context, sessionID string, accessories []string) error {
	if len(accessories) == 0 {
		return nil
	}
	raw, _ := json.Marshal(accessories)
	_, err := p.pool.Exec(ctx, `UPDATE active_projects SET accessories = $2 WHERE session_id = $1`, sessionID, raw)
	return err
}

func (p *PostgresStore) SetAssemblyGroup(ctx context.Context, sessionID, assemblyGroupJSON string) error {
	if assemblyGroupJSON == "" {
		return nil
	}
	_, err := p.pool.Exec(ctx, `UPDATE active_projects SET assembly_group = $2::jsonb WHERE session_id = $1`, sessionID, assemblyGroupJSON)
	return err
}

func (p *PostgresStore) SetResolvedParams(ctx context.Context, sessionID, resolvedParamsJSON string) error {
	if resolvedParamsJSON == "" {
		return nil
	}
	_, err := p.pool.Exec(ctx, `UPDATE active_projects SET resolved_params = $2::jsonb WHERE session_id = $1`, sessionID, resolvedParamsJSON)
	return err
}

func (p *PostgresStore) SetVetoedFamilies(ctx context.Context, sessionID string, families []string) error {
	if len(families) == 0 {
		return nil
	}
	raw, _ := json.Marshal(families)
	_, err := p.pool.Exec(ctx, `UPDATE active_projects SET vetoed_families = $2 WHERE session_id = $1`, sessionID, raw)
	return err
}

func (p *PostgresStore) UpsertTag(ctx context.Context, sessionID, tagID string, fields TagFields, sharedProperties []string) (models.TagUnit, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return models.TagUnit{}, fmt.Errorf("begin upsert_tag tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var tag models.TagUnit
	err = tx.QueryRow(ctx, `SELECT id, tag_id, session_id, filter_width, filter_height, filter_depth,
			housing_width, housing_height, housing_length, airflow_m3h, product_family, product_code,
			weight_kg, quantity, assembly_group_id, assembly_role, material_override, is_complete
		FROM tag_units WHERE session_id = $1 AND tag_id = $2 FOR UPDATE`, sessionID, tagID).Scan(
		&tag.ID, &tag.TagID, &tag.SessionID, &tag.FilterWidth, &tag.FilterHeight, &tag.FilterDepth,
		&tag.HousingWidth, &tag.HousingHeight, &tag.HousingLength, &tag.AirflowM3h, &tag.ProductFamily,
		&tag.ProductCode, &tag.WeightKg, &tag.Quantity, &tag.AssemblyGroupID, &tag.AssemblyRole,
		&tag.MaterialOverride, &tag.IsComplete)
	if err != nil {
		if err != pgx.ErrNoRows {
			return models.TagUnit{}, fmt.Errorf("load tag: %w", err)
		}
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

	_, err = tx.Exec(ctx, `
		INSERT INTO tag_units (id, session_id, tag_id, filter_width, filter_height, filter_depth,
			housing_width, housing_height, housing_length, airflow_m3h, product_family, product_code,
			weight_kg, quantity, assembly_group_id, assembly_role, material_override, is_complete)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (session_id, tag_id) DO UPDATE SET
			filter_width=$4, filter_height=$5, filter_depth=$6, housing_width=$7, housing_height=$8,
			housing_length=$9, airflow_m3h=$10, product_family=$11, product_code=$12, weight_kg=$13,
			quantity=$14, assembly_group_id=$15, assembly_role=$16, material_override=$17, is_complete=$18`,
		tag.ID, sessionID, tagID, tag.FilterWidth, tag.FilterHeight, tag.FilterDepth, tag.HousingWidth,
		tag.HousingHeight, tag.HousingLength, tag.AirflowM3h, tag.ProductFamily, tag.ProductCode,
		tag.WeightKg, tag.Quantity, tag.AssemblyGroupID, tag.AssemblyRole, tag.MaterialOverride, tag.IsComplete)
	if err != nil {
		return models.TagUnit{}, fmt.Errorf("upsert tag: %w", err)
	}

	if tag.AssemblyGroupID != "" && len(sharedProperties) > 0 {
		if err := syncAssemblySiblingsSQL(ctx, tx, sessionID, tag.AssemblyGroupID, sharedProperties); err != nil {
			return models.TagUnit{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.TagUnit{}, fmt.Errorf("commit upsert_tag: %w", err)
	}
	return tag, nil
}

// DeleteTag removes a tag row — used when an assembly supersedes the
// base tag it was expanded from.
func (p *PostgresStore) DeleteTag(ctx context.Context, sessionID, tagID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM tag_units WHERE session_id = $1 AND tag_id = $2`, sessionID, tagID)
	return err
}

// syncAssemblySiblingsSQL is the same "first non-null wins" sync as
// MemoryStore.syncAssemblySiblingsLocked, expressed as a COALESCE
// update within the transaction so the graph enforces assembly
// consistency per spec §4.2.
func syncAssemblySiblingsSQL(ctx context.Context, tx pgx.Tx, sessionID, groupID string, sharedProperties []string) error {
	columnsByProp := map[string]string{
		"filter_width": "filter_width", "filter_height": "filter_height", "filter_depth": "filter_depth",
		"housing_width": "housing_width", "housing_height": "housing_height", "airflow_m3h": "airflow_m3h",
	}
	for _, prop := range sharedProperties {
		col, ok := columnsByProp[prop]
		if !ok {
			continue
		}
		stmt := fmt.Sprintf(`
			WITH winner AS (
				SELECT %[1]s AS v FROM tag_units
				WHERE session_id = $1 AND assembly_group_id = $2 AND %[1]s IS NOT NULL
				LIMIT 1
			)
			UPDATE tag_units SET %[1]s = (SELECT v FROM winner)
			WHERE session_id = $1 AND assembly_group_id = $2 AND %[1]s IS NULL
			  AND EXISTS (SELECT 1 FROM winner)`, col)
		if _, err := tx.Exec(ctx, stmt, sessionID, groupID); err != nil {
			return fmt.Errorf("sync assembly sibling %s: %w", prop, err)
		}
	}
	return nil
}

func (p *PostgresStore) GetProjectState(ctx context.Context, sessionID string) (ProjectState, error) {
	var ap models.ActiveProject
	var accessoriesRaw, vetoedRaw []byte
	err := p.pool.QueryRow(ctx, `
		SELECT id, session_id, name, customer, locked_material, detected_family, pending_clarification,
			accessories, resolved_params::text, assembly_group::text, vetoed_families
		FROM active_projects WHERE session_id = $1`, sessionID).Scan(
		&ap.ID, &ap.SessionID, &ap.Name, &ap.Customer, &ap.LockedMaterial, &ap.DetectedFamily,
		&ap.PendingClarification, &accessoriesRaw, &ap.ResolvedParamsJSON, &ap.AssemblyGroupJSON, &vetoedRaw)
	if err != nil && err != pgx.ErrNoRows {
		return ProjectState{}, fmt.Errorf("load project state: %w", err)
	}
	_ = json.Unmarshal(accessoriesRaw, &ap.Accessories)
	_ = json.Unmarshal(vetoedRaw, &ap.VetoedFamilies)

	rows, err := p.pool.Query(ctx, `SELECT tag_id, filter_width, filter_height, filter_depth, housing_width,
			housing_height, housing_length, airflow_m3h, product_family, product_code, weight_kg, quantity,
			assembly_group_id, assembly_role, material_override, is_complete
		FROM tag_units WHERE session_id = $1`, sessionID)
	if err != nil {
		return ProjectState{}, fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()
	var tags []models.TagUnit
	for rows.Next() {
		var t models.TagUnit
		t.SessionID = sessionID
		if err := rows.Scan(&t.TagID, &t.FilterWidth, &t.FilterHeight, &t.FilterDepth, &t.HousingWidth,
			&t.HousingHeight, &t.HousingLength, &t.AirflowM3h, &t.ProductFamily, &t.ProductCode, &t.WeightKg,
			&t.Quantity, &t.AssemblyGroupID, &t.AssemblyRole, &t.MaterialOverride, &t.IsComplete); err != nil {
			return ProjectState{}, err
		}
		tags = append(tags, t)
	}
	return ProjectState{Project: ap, Tags: tags, TagCount: len(tags)}, rows.Err()
}

func (p *PostgresStore) StoreTurn(ctx context.Context, sessionID string, role models.TurnRole, message string, turnNumber int) (models.ConversationTurn, error) {
	if len(message) > maxTurnMessageLen {
		message = message[:maxTurnMessageLen]
	}
	id := fmt.Sprintf("TURN_%s_%d_%s", sessionID, turnNumber, role)
	now := time.Now().UTC()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO conversation_turns (id, session_id, role, message, turn_number, created_at)
		VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING`, id, sessionID, string(role), message, turnNumber, now)
	if err != nil {
		return models.ConversationTurn{}, fmt.Errorf("store turn: %w", err)
	}
	return models.ConversationTurn{ID: id, SessionID: sessionID, Role: role, Message: message, TurnNumber: turnNumber, CreatedAt: now}, nil
}

func (p *PostgresStore) GetRecentTurns(ctx context.Context, sessionID string, n int) ([]models.ConversationTurn, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, role, message, turn_number, created_at FROM conversation_turns
		WHERE session_id = $1 ORDER BY turn_number DESC LIMIT $2`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()
	var out []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		var role string
		t.SessionID = sessionID
		if err := rows.Scan(&t.ID, &role, &t.Message, &t.TurnNumber, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Role = models.TurnRole(role)
		out = append(out, t)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (p *PostgresStore) ClearSession(ctx context.Context, sessionID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	return err
}

func (p *PostgresStore) CleanupStaleSessions(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE last_active < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup stale sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *PostgresStore) GetSessionGraphData(ctx context.Context, sessionID string) (SessionGraphData, error) {
	state, err := p.GetProjectState(ctx, sessionID)
	if err != nil {
		return SessionGraphData{}, err
	}
	data := SessionGraphData{}
	projectNode, _ := toMap(state.Project)
	data.Nodes = append(data.Nodes, projectNode)
	for _, t := range state.Tags {
		node, _ := toMap(t)
		data.Nodes = append(data.Nodes, node)
		data.Edges = append(data.Edges, map[string]interface{}{"type": "HAS_UNIT", "session_id": sessionID, "tag_id": t.TagID})
	}
	return data, nil
}

var _ Store = (*PostgresStore)(nil)
