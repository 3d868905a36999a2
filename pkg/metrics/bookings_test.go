package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPaymentWebhookMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentWebhookMetrics(reg)
	m.Inc("stripe", "processed")
	m.Inc("stripe", "processed")
	m.Inc("square", "duplicate")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "payment_webhook_events_total", "outcome", "processed"); err != nil || got != 2 {
		t.Fatalf("expected 2 processed, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "payment_webhook_events_total", "provider", "square"); err != nil || got != 1 {
		t.Fatalf("expected 1 square event, got %f err=%v", got, err)
	}
}

func TestVoucherMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewVoucherMetrics(reg)
	m.Inc("issued")
	m.Inc("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "vouchers_issued_total", "result", "issued"); err != nil || got != 1 {
		t.Fatalf("expected 1 issued, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "vouchers_issued_total", "result", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected empty label to normalize, got %f err=%v", got, err)
	}
}

func TestHoldSweepMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHoldSweepMetrics(reg)
	m.Observe(5, 3)
	m.Observe(2, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	checked := findMetricFamily(mfs, "holds_sweep_checked_total")
	expired := findMetricFamily(mfs, "holds_sweep_expired_total")
	if checked == nil || expired == nil {
		t.Fatal("expected sweep counters to be registered")
	}
	if got := checked.GetMetric()[0].GetCounter().GetValue(); got != 7 {
		t.Fatalf("expected 7 checked, got %f", got)
	}
	if got := expired.GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Fatalf("expected 3 expired, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewPaymentWebhookMetrics(nil).Inc("stripe", "processed")
	NewVoucherMetrics(nil).Inc("issued")
	NewHoldSweepMetrics(nil).Observe(1, 1)
	var nilMetrics *PaymentWebhookMetrics
	nilMetrics.Inc("stripe", "processed")
}

func TestOutboxPublishMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxPublishMetrics(reg)
	m.Inc("voucher_requested", "published")
	m.Inc("voucher_requested", "retry")
	m.Inc("voucher_requested", "published")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_events_dispatched_total", "result", "published"); err != nil || got != 2 {
		t.Fatalf("expected 2 published, got %f err=%v", got, err)
	}

	var nilMetrics *OutboxPublishMetrics
	nilMetrics.Inc("voucher_requested", "published")
}
