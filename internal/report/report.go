// Package report renders an AnalysisResult as the downloadable plain-text
// report.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/kdimtricp/copyscan/internal/assessment"
)

const (
	StaticFilename       = "copyright-report.txt"
	CrowdsourcedFilename = "copyright-analysis-report.txt"

	title = "Copyright Analysis Report"
)

// Filename is the download name for a variant's report.
func Filename(variant assessment.Variant) string {
	if variant == assessment.VariantCrowdsourced {
		return CrowdsourcedFilename
	}
	return StaticFilename
}

// Render builds the report text. Crowdsourced reports also carry the
// pattern count and one line per issue.
func Render(variant assessment.Variant, filename string, result *assessment.AnalysisResult) string {
	var b strings.Builder

	b.WriteString(title + "\n\n")
	fmt.Fprintf(&b, "File: %s\n", filename)
	fmt.Fprintf(&b, "Risk Level: %s\n", result.OverallRisk)
	fmt.Fprintf(&b, "Issues Found: %d\n", len(result.Issues))

	if variant == assessment.VariantCrowdsourced {
		if result.PatternsUsed != nil {
			fmt.Fprintf(&b, "Patterns Used: %d\n", *result.PatternsUsed)
		}
		if len(result.Issues) > 0 {
			b.WriteString("\nDetected Issues:\n")
			for _, issue := range result.Issues {
				fmt.Fprintf(&b, "- [%s] %s (confidence %d%%)\n",
					issue.Type, issue.Description, ConfidencePercent(issue.Confidence))
			}
		}
	}

	fmt.Fprintf(&b, "\nRecommendation: %s", result.Recommendation)
	return b.String()
}

func ConfidencePercent(confidence float64) int {
	return int(math.Round(confidence * 100))
}
