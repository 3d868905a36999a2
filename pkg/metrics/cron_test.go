package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsSplitsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("hold-expiry", 250*time.Millisecond, nil)
	m.ObserveRun("hold-expiry", time.Second, errors.New("db down"))
	m.ObserveRun("outbox-retention", 10*time.Millisecond, nil)
	m.IncLockSkipped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "bookings_cron_job_runs_total")
	if runs == nil || len(runs.GetMetric()) != 3 {
		t.Fatalf("expected three job/result series, got %v", runs)
	}
	for _, metric := range runs.GetMetric() {
		if matchesLabel(metric.GetLabel(), "job", "hold-expiry") && matchesLabel(metric.GetLabel(), "result", CronResultFailure) {
			if metric.GetCounter().GetValue() != 1 {
				t.Fatalf("expected one failed hold-expiry run, got %f", metric.GetCounter().GetValue())
			}
		}
	}

	if got, err := fetchHistogramSum(mfs, "bookings_cron_job_duration_seconds", "job", "hold-expiry"); err != nil || got != 1.25 {
		t.Fatalf("expected hold-expiry duration sum 1.25, got %f err=%v", got, err)
	}

	skipped := findMetricFamily(mfs, "bookings_cron_cycles_lock_skipped_total")
	if skipped == nil || skipped.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one lock skip, got %v", skipped)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("hold-expiry", time.Second, nil)
	m.IncLockSkipped()
	NewCronJobMetrics(nil).ObserveRun("", time.Second, nil)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
