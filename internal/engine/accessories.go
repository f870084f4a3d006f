package engine

import (
	"context"
	"strconv"

	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// phase12AccessoryValidation implements spec §4.3 Phase 12: each
// requested accessory is resolved to ALLOWED / BLOCKED / NOT_ALLOWED /
// UNKNOWN against the recommended family's compatibility edges.
func (e *Engine) phase12AccessoryValidation(ctx context.Context, r *run) error {
	if r.verdict.RecommendedProduct == nil {
		return nil
	}
	family := r.verdict.RecommendedProduct.ProductFamilyID

	requested, _ := r.resolvedParams["accessories"].([]string)
	if len(requested) == 0 {
		return nil
	}

	allCodes, err := e.graph.GetAllAccessoryCodes(ctx)
	if err != nil {
		return err
	}
	known := toSet(allCodes)

	for _, code := range requested {
		if !known[code] {
			r.verdict.AccessoryValidations = append(r.verdict.AccessoryValidations, models.AccessoryValidation{
				ProductFamilyID: family, AccessoryCode: code, Status: models.AccessoryUnknown,
			})
			continue
		}

		edge, found, err := e.graph.GetAccessoryCompatibility(ctx, code, family)
		if err != nil {
			return err
		}
		if !found {
			alts, err := e.allowedAccessoriesFor(ctx, family)
			if err != nil {
				return err
			}
			r.verdict.AccessoryValidations = append(r.verdict.AccessoryValidations, models.AccessoryValidation{
				ProductFamilyID: family, AccessoryCode: code, Status: models.AccessoryNotAllowed,
				CompatibleAlternatives: alts,
			})
			continue
		}

		if edge.Allowed {
			r.verdict.AccessoryValidations = append(r.verdict.AccessoryValidations, models.AccessoryValidation{
				ProductFamilyID: family, AccessoryCode: code, IsCompatible: true, Status: models.AccessoryAllowed,
			})
		} else {
			r.verdict.AccessoryValidations = append(r.verdict.AccessoryValidations, models.AccessoryValidation{
				ProductFamilyID: family, AccessoryCode: code, Status: models.AccessoryBlocked, Reason: edge.Reason,
			})
		}
	}

	r.trace("accessory_validation", "validated "+strconv.Itoa(len(requested))+" accessory request(s) against "+family, nil)
	return nil
}

func (e *Engine) allowedAccessoriesFor(ctx context.Context, family string) ([]string, error) {
	allCodes, err := e.graph.GetAllAccessoryCodes(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, code := range allCodes {
		edge, found, err := e.graph.GetAccessoryCompatibility(ctx, code, family)
		if err != nil {
			return nil, err
		}
		if found && edge.Allowed {
			out = append(out, code)
		}
	}
	return out, nil
}
