package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/prisvakt/compliance-service/internal/compliance"
)

var _ compliance.SkipRecorder = (*Recorder)(nil)

func TestRecordEvaluation(t *testing.T) {
	r := NewRecorder()
	before := testutil.ToFloat64(issuesFound.WithLabelValues("saleDuration", "violation"))
	nonCompliant := testutil.ToFloat64(variantsEvaluated.WithLabelValues("non_compliant"))

	r.RecordEvaluation(compliance.Evaluation{
		Issues: []compliance.Issue{{Rule: compliance.RuleSaleDuration, Severity: compliance.SeverityViolation}},
	})

	assert.Equal(t, before+1, testutil.ToFloat64(issuesFound.WithLabelValues("saleDuration", "violation")))
	assert.Equal(t, nonCompliant+1, testutil.ToFloat64(variantsEvaluated.WithLabelValues("non_compliant")))
}

func TestRecordScan(t *testing.T) {
	r := NewRecorder()
	before := testutil.ToFloat64(scansTotal.WithLabelValues("success"))

	r.RecordScan("success", 3*time.Second)
	r.RecordSkippedRule("priceIndication")
	r.RecordWidgetCache(true)
	r.RecordCommerceRetry("rate_limited")

	assert.Equal(t, before+1, testutil.ToFloat64(scansTotal.WithLabelValues("success")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(skippedRules.WithLabelValues("priceIndication")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(widgetCache.WithLabelValues("hit")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(commerceRetries.WithLabelValues("rate_limited")), 1.0)
}
