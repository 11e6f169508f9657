// Package metrics exposes Prometheus collectors for sessions, uploads and
// assessments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssessmentsTotal counts completed assessments by variant and overall risk.
	AssessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "copyscan_assessments_total",
		Help: "Completed assessments by variant and overall risk",
	}, []string{"variant", "risk"})

	// IssuesTotal counts reported issues by type and severity.
	IssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "copyscan_issues_total",
		Help: "Reported issues by type and severity",
	}, []string{"type", "severity"})

	// AnalysisDuration tracks wall time from start to result, stages included.
	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "copyscan_analysis_duration_seconds",
		Help:    "Analysis wall time including progress stages",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 9), // 1ms to ~65s
	}, []string{"variant"})

	// AnalysesCancelled counts analyses stopped before a result.
	AnalysesCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "copyscan_analyses_cancelled_total",
		Help: "Analyses cancelled before producing a result",
	})

	// UploadsTotal counts uploads by kind (candidate, reference) and outcome.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "copyscan_uploads_total",
		Help: "Uploads by kind and outcome",
	}, []string{"kind", "outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "copyscan_active_sessions",
		Help: "Sessions currently held in memory",
	})

	// LearnedKeywords observes the metadata keyword count after each
	// reference upload.
	LearnedKeywords = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "copyscan_learned_keywords",
		Help:    "Metadata keyword count after a reference upload",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 1000},
	})
)

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"

	KindCandidate = "candidate"
	KindReference = "reference"
)
