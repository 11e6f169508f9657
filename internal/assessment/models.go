package assessment

type IssueType string

const (
	IssueAudio    IssueType = "audio"
	IssueVisual   IssueType = "visual"
	IssueMetadata IssueType = "metadata"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Risk uses the same three levels as Severity.
type Risk = Severity

const (
	RiskLow    = SeverityLow
	RiskMedium = SeverityMedium
	RiskHigh   = SeverityHigh
)

// Variant selects which detector a session runs.
type Variant string

const (
	VariantStatic       Variant = "static"
	VariantCrowdsourced Variant = "crowdsourced"
)

func ParseVariant(s string) (Variant, bool) {
	switch Variant(s) {
	case VariantStatic, VariantCrowdsourced:
		return Variant(s), true
	case "":
		return VariantStatic, true
	}
	return "", false
}

const timestampNA = "N/A"

type Issue struct {
	Type        IssueType `json:"type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	Timestamp   string    `json:"timestamp"`
	LearnedFrom string    `json:"learned_from,omitempty"`
}

type AnalysisResult struct {
	OverallRisk    Risk    `json:"overall_risk"`
	Issues         []Issue `json:"issues"`
	Recommendation string  `json:"recommendation"`
	PatternsUsed   *int    `json:"patterns_used,omitempty"`
}

var recommendations = map[Risk]string{
	RiskLow:    "No copyright issues detected. Video appears safe to upload.",
	RiskMedium: "Potential issues detected. Review flagged content and consider fair use guidelines.",
	RiskHigh:   "High risk detected. Consider removing copyrighted content or obtaining proper licenses.",
}

func Recommendation(risk Risk) string {
	return recommendations[risk]
}

// OverallRisk is low with no issues, high when any issue is high and medium
// otherwise.
func OverallRisk(issues []Issue) Risk {
	if len(issues) == 0 {
		return RiskLow
	}
	for _, issue := range issues {
		if issue.Severity == SeverityHigh {
			return RiskHigh
		}
	}
	return RiskMedium
}

func newResult(issues []Issue) *AnalysisResult {
	if issues == nil {
		issues = []Issue{}
	}
	risk := OverallRisk(issues)
	return &AnalysisResult{
		OverallRisk:    risk,
		Issues:         issues,
		Recommendation: Recommendation(risk),
	}
}
