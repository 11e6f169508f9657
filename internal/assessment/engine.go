package assessment

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/kdimtricp/copyscan/internal/patterns"
)

// Source is a uniform random source. *rand.Rand satisfies it; tests inject
// scripted sources.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// Draw thresholds. A type is detected when a fresh draw exceeds its
// threshold, so the detection probability is 1 - threshold.
const (
	staticAudioThreshold    = 0.4
	staticVisualThreshold   = 0.6
	staticMetadataThreshold = 0.7

	crowdAudioThreshold  = 0.5
	crowdVisualThreshold = 0.6

	staticHighConfidence = 0.9
	staticMetadataConf   = 0.75

	crowdAudioMinConf   = 0.6
	crowdAudioMaxConf   = 0.9
	crowdVisualMinConf  = 0.65
	crowdVisualMaxConf  = 0.9
	crowdAudioHighDraw  = 0.7
	crowdVisualHighDraw = 0.8
)

// Keywords that escalate a crowdsourced metadata match to high severity.
var escalatingKeywords = []string{"official", "copyright"}

// Engine produces synthetic assessments. It is safe for concurrent use.
type Engine struct {
	mu  sync.Mutex
	rng Source
}

func NewEngine(rng Source) *Engine {
	return &Engine{rng: rng}
}

// NewSeededEngine returns an engine over a PCG source. A zero seed picks a
// random one.
func NewSeededEngine(seed uint64) *Engine {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return NewEngine(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Float64 exposes the engine's source so collaborators, like the reference
// keyword coin flip, share one seeded stream.
func (e *Engine) Float64() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

// AssessStatic runs the simulated-database detector. The filename plays no
// part in the outcome.
func (e *Engine) AssessStatic(_ string, catalog patterns.Catalog) *AnalysisResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	hasAudio := e.rng.Float64() > staticAudioThreshold
	hasVisual := e.rng.Float64() > staticVisualThreshold
	hasMetadata := e.rng.Float64() > staticMetadataThreshold

	var issues []Issue

	if hasAudio && len(catalog.Audio) > 0 {
		entry := catalog.Audio[e.rng.IntN(len(catalog.Audio))]
		issues = append(issues, Issue{
			Type:        IssueAudio,
			Severity:    staticSeverity(entry.Confidence),
			Description: fmt.Sprintf("Potential match: %q by %s", entry.Name, entry.Owner),
			Confidence:  entry.Confidence,
			Timestamp:   e.timestamp(),
		})
	}

	if hasVisual && len(catalog.Visual) > 0 {
		entry := catalog.Visual[e.rng.IntN(len(catalog.Visual))]
		issues = append(issues, Issue{
			Type:        IssueVisual,
			Severity:    staticSeverity(entry.Confidence),
			Description: fmt.Sprintf("Visual content detected: %q owned by %s", entry.Name, entry.Owner),
			Confidence:  entry.Confidence,
			Timestamp:   e.timestamp(),
		})
	}

	if hasMetadata && len(catalog.Metadata) > 0 {
		phrase := catalog.Metadata[e.rng.IntN(len(catalog.Metadata))]
		issues = append(issues, Issue{
			Type:        IssueMetadata,
			Severity:    SeverityLow,
			Description: fmt.Sprintf("Metadata contains: %q", phrase),
			Confidence:  staticMetadataConf,
			Timestamp:   timestampNA,
		})
	}

	return newResult(issues)
}

// AssessCrowdsourced scores filename against a learned store. The metadata
// finding depends only on filename and the store's keywords; audio and
// visual findings are drawn at random.
func (e *Engine) AssessCrowdsourced(filename string, store *patterns.Store, referenceCount int) *AnalysisResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	hasAudio := e.rng.Float64() > crowdAudioThreshold
	hasVisual := e.rng.Float64() > crowdVisualThreshold
	learnedFrom := fmt.Sprintf("crowdsourced database (%d reference videos)", referenceCount)

	var issues []Issue

	if hasAudio && len(store.AudioPatterns) > 0 {
		label := store.AudioPatterns[e.rng.IntN(len(store.AudioPatterns))]
		confidence := e.uniform(crowdAudioMinConf, crowdAudioMaxConf)
		severity := SeverityMedium
		if e.rng.Float64() > crowdAudioHighDraw {
			severity = SeverityHigh
		}
		issues = append(issues, Issue{
			Type:        IssueAudio,
			Severity:    severity,
			Description: fmt.Sprintf("Audio pattern match: %q", label),
			Confidence:  confidence,
			Timestamp:   e.timestamp(),
			LearnedFrom: learnedFrom,
		})
	}

	if hasVisual && len(store.VisualPatterns) > 0 {
		label := store.VisualPatterns[e.rng.IntN(len(store.VisualPatterns))]
		confidence := e.uniform(crowdVisualMinConf, crowdVisualMaxConf)
		severity := SeverityMedium
		if e.rng.Float64() > crowdVisualHighDraw {
			severity = SeverityHigh
		}
		issues = append(issues, Issue{
			Type:        IssueVisual,
			Severity:    severity,
			Description: fmt.Sprintf("Visual pattern match: %q", label),
			Confidence:  confidence,
			Timestamp:   e.timestamp(),
			LearnedFrom: learnedFrom,
		})
	}

	if issue, ok := MetadataIssue(filename, store.MetadataKeywords); ok {
		issue.LearnedFrom = learnedFrom
		issues = append(issues, issue)
	}

	result := newResult(issues)
	total := store.Total()
	result.PatternsUsed = &total
	return result
}

// MatchKeywords returns every keyword found in filename, case-insensitively,
// in keyword order.
func MatchKeywords(filename string, keywords []string) []string {
	name := strings.ToLower(filename)
	var matched []string
	for _, kw := range keywords {
		if kw != "" && strings.Contains(name, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// MetadataIssue builds the crowdsourced metadata finding. Confidence is
// 0.7 + 0.1 per match and exceeds 1.0 from four matches on.
func MetadataIssue(filename string, keywords []string) (Issue, bool) {
	matched := MatchKeywords(filename, keywords)
	if len(matched) == 0 {
		return Issue{}, false
	}

	severity := SeverityMedium
	for _, kw := range escalatingKeywords {
		if slices.Contains(matched, kw) {
			severity = SeverityHigh
			break
		}
	}

	return Issue{
		Type:        IssueMetadata,
		Severity:    severity,
		Description: "Metadata matches learned keywords: " + strings.Join(matched, ", "),
		Confidence:  MetadataConfidence(len(matched)),
		Timestamp:   timestampNA,
	}, true
}

func MetadataConfidence(matches int) float64 {
	return float64(7+matches) / 10
}

func staticSeverity(confidence float64) Severity {
	if confidence > staticHighConfidence {
		return SeverityHigh
	}
	return SeverityMedium
}

func (e *Engine) uniform(lo, hi float64) float64 {
	return lo + e.rng.Float64()*(hi-lo)
}

// timestamp renders a random M:SS offset within the first five minutes.
func (e *Engine) timestamp() string {
	minute := e.rng.IntN(5)
	second := e.rng.IntN(60)
	return fmt.Sprintf("%d:%02d", minute, second)
}
