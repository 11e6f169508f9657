package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestUploadsTotal(t *testing.T) {
	before := testutil.ToFloat64(UploadsTotal.WithLabelValues(KindReference, OutcomeRejected))
	UploadsTotal.WithLabelValues(KindReference, OutcomeRejected).Inc()
	after := testutil.ToFloat64(UploadsTotal.WithLabelValues(KindReference, OutcomeRejected))

	assert.Equal(t, before+1, after)
}

func TestActiveSessionsGauge(t *testing.T) {
	before := testutil.ToFloat64(ActiveSessions)
	ActiveSessions.Inc()
	ActiveSessions.Inc()
	ActiveSessions.Dec()

	assert.Equal(t, before+1, testutil.ToFloat64(ActiveSessions))
	ActiveSessions.Dec()
}

func TestAnalysisDurationObserves(t *testing.T) {
	AnalysisDuration.WithLabelValues("static").Observe(1.5)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(AnalysisDuration), 1)
}
