package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentWebhookMetrics counts provider webhook outcomes.
type PaymentWebhookMetrics struct {
	events *prometheus.CounterVec
}

func NewPaymentWebhookMetrics(reg prometheus.Registerer) *PaymentWebhookMetrics {
	if reg == nil {
		return &PaymentWebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Payment provider webhook events by outcome.",
	}, []string{"provider", "outcome"})
	reg.MustRegister(events)
	return &PaymentWebhookMetrics{events: events}
}

func (m *PaymentWebhookMetrics) Inc(provider, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// VoucherMetrics counts voucher issuance results (issued, existing, not_eligible, error).
type VoucherMetrics struct {
	issued *prometheus.CounterVec
}

func NewVoucherMetrics(reg prometheus.Registerer) *VoucherMetrics {
	if reg == nil {
		return &VoucherMetrics{}
	}
	issued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchers_issued_total",
		Help: "Voucher issuance requests by result.",
	}, []string{"result"})
	reg.MustRegister(issued)
	return &VoucherMetrics{issued: issued}
}

func (m *VoucherMetrics) Inc(result string) {
	if m == nil || m.issued == nil {
		return
	}
	m.issued.WithLabelValues(normalizeLabel(result)).Inc()
}

// HoldSweepMetrics tracks how many holds each sweep inspected and expired.
type HoldSweepMetrics struct {
	checked prometheus.Counter
	expired prometheus.Counter
}

func NewHoldSweepMetrics(reg prometheus.Registerer) *HoldSweepMetrics {
	if reg == nil {
		return &HoldSweepMetrics{}
	}
	checked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holds_sweep_checked_total",
		Help: "Expired-hold candidates inspected by the sweeper.",
	})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holds_sweep_expired_total",
		Help: "Reservations moved to expired by the sweeper.",
	})
	reg.MustRegister(checked, expired)
	return &HoldSweepMetrics{checked: checked, expired: expired}
}

func (m *HoldSweepMetrics) Observe(checked, expired int) {
	if m == nil || m.checked == nil {
		return
	}
	m.checked.Add(float64(checked))
	m.expired.Add(float64(expired))
}
