package engine

import (
	"context"
	"strings"

	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// phase6AssemblyConstruction implements spec §4.3 Phase 6: when the
// veto arose from a trait the graph says is suppliable by a separate
// product (a MANDATES_PROTECTION dependency rule), build a
// PROTECTOR+TARGET assembly instead of pivoting away from the hinted
// product entirely.
func (e *Engine) phase6AssemblyConstruction(ctx context.Context, r *run) error {
	if !r.verdict.HasVeto || r.in.ProductHint == "" {
		return nil
	}

	deps, err := e.graph.GetDependencyRulesForStressors(ctx, r.activeStressorIDs)
	if err != nil {
		return err
	}

	var hintedVetoed *models.TraitMatch
	for i, m := range r.verdict.VetoedProducts {
		if matchesHint(m.ProductFamilyID, r.in.ProductHint) {
			hintedVetoed = &r.verdict.VetoedProducts[i]
			break
		}
	}
	if hintedVetoed == nil {
		return nil
	}

	for _, dep := range deps {
		if dep.DependencyType != "MANDATES_PROTECTION" {
			continue
		}
		if !containsString(hintedVetoed.TraitsMissing, dep.UpstreamRequiresTrait) {
			continue
		}

		protectorName := dep.ProtectorFamilyID
		for _, m := range r.verdict.RankedProducts {
			if m.ProductFamilyID == dep.ProtectorFamilyID {
				protectorName = m.ProductFamilyName
				break
			}
		}
		targetName := hintedVetoed.ProductFamilyName

		r.verdict.IsAssembly = true
		r.verdict.Assembly = []models.AssemblyStage{
			{Role: models.RoleProtector, ProductFamilyID: dep.ProtectorFamilyID, ProductFamilyName: protectorName,
				ProvidesTraitID: dep.UpstreamRequiresTrait, Reason: dep.Description},
			{Role: models.RoleTarget, ProductFamilyID: hintedVetoed.ProductFamilyID, ProductFamilyName: targetName,
				ProvidesTraitID: dep.DownstreamProvidesTrait},
		}
		r.verdict.AssemblyRationale = dep.Description

		// An assembly supersedes the pivot path entirely.
		r.verdict.AutoPivotTo = ""
		r.verdict.AutoPivotName = ""
		r.verdict.VetoReason = ""

		r.trace("assembly_construction", "built protector+target assembly: "+protectorName+" upstream of "+targetName, nil)
		return nil
	}

	return nil
}

func matchesHint(familyID, hint string) bool {
	return strings.HasSuffix(strings.ToLower(familyID), strings.ToLower(hint))
}

func containsString(items []string, target string) bool {
	for _, x := range items {
		if x == target {
			return true
		}
	}
	return false
}
