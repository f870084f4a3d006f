package verdict

import (
	"fmt"
	"strings"

	"github.com/mannhummel-graphreasoner/engine/pkg/models"
)

// RenderPromptInjection serializes a GraphReasoningReport (plus the
// engine verdict it was adapted from, for the sections the report
// itself doesn't carry — capacity and sizing) into the fixed-order,
// labeled block format spec §4.6 requires for prompt injection. Every
// section is optional except the reasoning summary; omitted sections
// are simply absent, never emitted empty.
func RenderPromptInjection(report models.GraphReasoningReport, v models.EngineVerdict) string {
	var b strings.Builder

	writeSubstitutionBlock(&b, report)
	writeMultiStageBlock(&b, report)
	writeInstallationBlock(&b, report)
	writeLogicGateBlock(&b, report)
	writeConstraintOverrideBlock(&b, report)
	writeCapacityBlock(&b, v)
	writeVarianceCheckBlock(&b, report)
	writeAccessoryBlock(&b, report)
	writeReasoningSummaryBlock(&b, report)

	return b.String()
}

func writeSubstitutionBlock(b *strings.Builder, report models.GraphReasoningReport) {
	if report.ProductPivot == nil {
		return
	}
	p := report.ProductPivot
	fmt.Fprintf(b, "[SUBSTITUTION]\nfrom=%s to=%s (%s): %s\n\n", p.FromFamilyID, p.ToFamilyName, p.ToFamilyID, p.Reason)
}

func writeMultiStageBlock(b *strings.Builder, report models.GraphReasoningReport) {
	if len(report.Assembly) == 0 {
		return
	}
	b.WriteString("[MULTI_STAGE]\n")
	for _, stage := range report.Assembly {
		fmt.Fprintf(b, "- %s: %s (%s)", stage.Role, stage.ProductFamilyName, stage.ProductFamilyID)
		if stage.ProvidesTraitName != "" {
			fmt.Fprintf(b, " provides %s", stage.ProvidesTraitName)
		}
		if stage.Reason != "" {
			fmt.Fprintf(b, " — %s", stage.Reason)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeInstallationBlock(b *strings.Builder, report models.GraphReasoningReport) {
	warnings := filterRisk(report.RiskWarnings, models.RiskInstallationBlocked)
	if len(warnings) == 0 {
		return
	}
	b.WriteString("[INSTALLATION]\n")
	for _, w := range warnings {
		fmt.Fprintf(b, "- [%s] %s: %s", w.Severity, w.GraphPath, w.Message)
		if w.Mitigation != "" {
			fmt.Fprintf(b, " (%s)", w.Mitigation)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeLogicGateBlock(b *strings.Builder, report models.GraphReasoningReport) {
	warnings := filterRisk(report.RiskWarnings, models.RiskGateFired, models.RiskGateValidationRequired, models.RiskGateDeferred)
	if len(warnings) == 0 {
		return
	}
	b.WriteString("[LOGIC_GATE]\n")
	for _, w := range warnings {
		fmt.Fprintf(b, "- [%s][%s] %s: %s\n", w.Severity, w.RiskType, w.GraphPath, w.Message)
	}
	b.WriteString("\n")
}

func writeConstraintOverrideBlock(b *strings.Builder, report models.GraphReasoningReport) {
	warnings := filterRisk(report.RiskWarnings, models.RiskHardConstraintOverride)
	if len(warnings) == 0 {
		return
	}
	b.WriteString("[CONSTRAINT_OVERRIDE]\n")
	for _, w := range warnings {
		fmt.Fprintf(b, "- %s: %s (%s)\n", w.GraphPath, w.Message, w.Mitigation)
	}
	b.WriteString("\n")
}

func writeCapacityBlock(b *strings.Builder, v models.EngineVerdict) {
	if v.CapacityCalculation == nil && v.SizingArrangement == nil {
		return
	}
	b.WriteString("[CAPACITY]\n")
	if c := v.CapacityCalculation; c != nil {
		fmt.Fprintf(b, "- modules_needed=%d input=%.2f rating=%.2f\n", c.ModulesNeeded, c.InputValue, c.OutputRating)
	}
	for _, alt := range v.CapacityAlternatives {
		fmt.Fprintf(b, "- alternative: %s (%s)\n", alt.ProductFamilyName, alt.WhyItWorks)
	}
	if s := v.SizingArrangement; s != nil {
		fmt.Fprintf(b, "- arrangement: %dx%d modules (%s), effective %dx%d mm", s.HorizontalCount, s.VerticalCount, s.SelectedModuleLabel, s.EffectiveWidth, s.EffectiveHeight)
		if s.BoundingConstraint != "" {
			fmt.Fprintf(b, " bounded by %s", s.BoundingConstraint)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeVarianceCheckBlock(b *strings.Builder, report models.GraphReasoningReport) {
	if len(report.VariableFeatures) == 0 && len(report.ClarificationQuestions) == 0 {
		return
	}
	b.WriteString("[VARIANCE_CHECK]\n")
	for _, f := range report.VariableFeatures {
		fmt.Fprintf(b, "- %s (%s): %s\n", f.FeatureName, f.ParamName, f.Question)
	}
	for _, c := range report.ClarificationQuestions {
		fmt.Fprintf(b, "- %s (%s): %s\n", c.FeatureName, c.ParamName, c.Question)
	}
	b.WriteString("\n")
}

func writeAccessoryBlock(b *strings.Builder, report models.GraphReasoningReport) {
	warnings := filterRisk(report.RiskWarnings, models.RiskAccessoryBlocked)
	if len(warnings) == 0 {
		return
	}
	b.WriteString("[ACCESSORY]\n")
	for _, w := range warnings {
		fmt.Fprintf(b, "- %s: %s\n", w.GraphPath, w.Message)
	}
	b.WriteString("\n")
}

func writeReasoningSummaryBlock(b *strings.Builder, report models.GraphReasoningReport) {
	b.WriteString("[REASONING_SUMMARY]\n")
	for _, step := range report.ReasoningSummary {
		fmt.Fprintf(b, "- %s: %s\n", step.Stage, step.Summary)
	}
}

func filterRisk(warnings []models.RiskWarning, types ...models.RiskType) []models.RiskWarning {
	wanted := make(map[models.RiskType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	var out []models.RiskWarning
	for _, w := range warnings {
		if wanted[w.RiskType] {
			out = append(out, w)
		}
	}
	return out
}
