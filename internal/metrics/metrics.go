// Package metrics exposes Prometheus metrics for scans and evaluations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/prisvakt/compliance-service/internal/compliance"
)

var (
	// scansTotal counts finished shop scans by outcome.
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_scans_total",
		Help: "Total number of shop scans by status",
	}, []string{"status"}) // status: success, failed, skipped_locked

	// scanDuration tracks the wall time of a shop scan.
	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "compliance_scan_duration_seconds",
		Help:    "Time taken to scan a shop",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
	})

	variantsEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_variants_evaluated_total",
		Help: "Total number of variant evaluations by verdict",
	}, []string{"verdict"}) // verdict: compliant, non_compliant

	issuesFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_issues_total",
		Help: "Total number of issues found by rule and severity",
	}, []string{"rule", "severity"})

	evaluationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_evaluation_failures_total",
		Help: "Total number of variant evaluations that could not run",
	}, []string{"reason"}) // reason: invalid_input, store, commerce

	skippedRules = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_rules_skipped_total",
		Help: "Total number of rule definitions skipped as malformed",
	}, []string{"rule"})

	verdictChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "compliance_verdict_changes_total",
		Help: "Total number of variants whose verdict flipped",
	})

	commerceRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_commerce_api_retries_total",
		Help: "Total number of retried commerce API requests by reason",
	}, []string{"reason"}) // reason: network, rate_limited, server_error

	widgetCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_widget_cache_total",
		Help: "Widget cache lookups by result",
	}, []string{"result"}) // result: hit, miss
)

// Recorder records service metrics. The zero value is ready to use.
type Recorder struct{}

// NewRecorder creates a metrics recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordScan records a finished scan
func (r *Recorder) RecordScan(status string, duration time.Duration) {
	scansTotal.WithLabelValues(status).Inc()
	if status != "skipped_locked" {
		scanDuration.Observe(duration.Seconds())
	}
}

// RecordEvaluation records a verdict and its issues
func (r *Recorder) RecordEvaluation(eval compliance.Evaluation) {
	verdict := "compliant"
	if !eval.IsCompliant {
		verdict = "non_compliant"
	}
	variantsEvaluated.WithLabelValues(verdict).Inc()
	for _, issue := range eval.Issues {
		issuesFound.WithLabelValues(string(issue.Rule), string(issue.Severity)).Inc()
	}
}

// RecordEvaluationFailure records a variant that could not be evaluated
func (r *Recorder) RecordEvaluationFailure(reason string) {
	evaluationFailures.WithLabelValues(reason).Inc()
}

// RecordSkippedRule implements compliance.SkipRecorder
func (r *Recorder) RecordSkippedRule(rule string) {
	skippedRules.WithLabelValues(rule).Inc()
}

// RecordVerdictChange records a flipped verdict
func (r *Recorder) RecordVerdictChange() {
	verdictChanges.Inc()
}

// RecordCommerceRetry records a retried commerce API request
func (r *Recorder) RecordCommerceRetry(reason string) {
	commerceRetries.WithLabelValues(reason).Inc()
}

// RecordWidgetCache records a widget cache lookup
func (r *Recorder) RecordWidgetCache(hit bool) {
	if hit {
		widgetCache.WithLabelValues("hit").Inc()
		return
	}
	widgetCache.WithLabelValues("miss").Inc()
}
