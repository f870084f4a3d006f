package engine

import (
	"context"
	"math"

	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// phase10SizingArrangement implements spec §4.3 Phase 10: choose a
// horizontal×vertical grid of the family's base module that satisfies
// modules_needed while honoring any max_width_mm/max_height_mm
// constraints, preferring the arrangement that minimizes the primary
// axis and then the secondary axis.
func (e *Engine) phase10SizingArrangement(ctx context.Context, r *run) error {
	if r.verdict.RecommendedProduct == nil || r.verdict.CapacityCalculation == nil {
		return nil
	}
	family := r.verdict.RecommendedProduct.ProductFamilyID
	modulesNeeded := r.verdict.CapacityCalculation.ModulesNeeded

	modules, err := e.graph.GetAvailableDimensionModules(ctx, family)
	if err != nil {
		return err
	}
	if len(modules) == 0 {
		return nil
	}
	module := modules[0]

	strategy, err := e.graph.GetOptimizationStrategy(ctx, family)
	if err != nil {
		return err
	}
	primary := "horizontal"
	if strategy != nil && strategy.PrimaryAxis != "" {
		primary = strategy.PrimaryAxis
	}

	maxHorizontal := math.MaxInt32
	if maxWidth, ok := floatParam(r.resolvedParams, "max_width_mm"); ok && module.WidthMM > 0 {
		maxHorizontal = int(math.Floor(maxWidth / float64(module.WidthMM)))
	}
	maxVertical := math.MaxInt32
	if maxHeight, ok := floatParam(r.resolvedParams, "max_height_mm"); ok && module.HeightMM > 0 {
		maxVertical = int(math.Floor(maxHeight / float64(module.HeightMM)))
	}
	if maxHorizontal < 1 {
		maxHorizontal = 1
	}
	if maxVertical < 1 {
		maxVertical = 1
	}

	h, v, bound := bestGrid(modulesNeeded, maxHorizontal, maxVertical, primary)

	r.verdict.SizingArrangement = &models.SizingArrangement{
		SelectedModuleID: module.ID, SelectedModuleWidth: module.WidthMM, SelectedModuleHeight: module.HeightMM,
		SelectedModuleLabel: module.ID, ModulesNeeded: modulesNeeded,
		HorizontalCount: h, VerticalCount: v,
		EffectiveWidth: h * module.WidthMM, EffectiveHeight: v * module.HeightMM,
		BoundingConstraint: bound,
	}

	r.trace("sizing_arrangement", "arranged "+family+" modules into a grid satisfying capacity", nil)
	return nil
}

// bestGrid searches horizontal×vertical grids within the bounds,
// preferring the smallest value on the primary axis, then the smallest
// on the secondary axis, among grids whose product covers
// modulesNeeded.
func bestGrid(modulesNeeded, maxHorizontal, maxVertical int, primaryAxis string) (h, v int, bound string) {
	bestH, bestV := -1, -1
	for horiz := 1; horiz <= maxHorizontal; horiz++ {
		vert := int(math.Ceil(float64(modulesNeeded) / float64(horiz)))
		if vert > maxVertical {
			continue
		}
		if bestH < 0 || betterGrid(horiz, vert, bestH, bestV, primaryAxis) {
			bestH, bestV = horiz, vert
		}
	}
	if bestH < 0 {
		// Nothing fits within both bounds; fall back to the largest grid
		// both bounds allow (maxHorizontal x maxVertical), marked unresolved.
		bestH = maxHorizontal
		bestV = maxVertical
		bound = "unresolved — exceeds both axis constraints"
		return bestH, bestV, bound
	}
	switch {
	case bestH == maxHorizontal && maxHorizontal != math.MaxInt32:
		bound = "max_width_mm"
	case bestV == maxVertical && maxVertical != math.MaxInt32:
		bound = "max_height_mm"
	}
	return bestH, bestV, bound
}

func betterGrid(h, v, bestH, bestV int, primaryAxis string) bool {
	if primaryAxis == "vertical" {
		if v != bestV {
			return v < bestV
		}
		return h < bestH
	}
	if h != bestH {
		return h < bestH
	}
	return v < bestV
}
