package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReferralMetrics exposes counters/histograms for the Salesforce referral flows.
type ReferralMetrics struct {
	webhookTotal   *prometheus.CounterVec
	downloadsTotal *prometheus.CounterVec
	statusPush     *prometheus.CounterVec
	callsTotal     *prometheus.CounterVec
	webhookLatency prometheus.Histogram
}

func NewReferralMetrics(reg prometheus.Registerer) *ReferralMetrics {
	m := &ReferralMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patient_support",
			Subsystem: "referrals",
			Name:      "webhook_total",
			Help:      "Total Salesforce referral webhooks by outcome",
		}, []string{"outcome"}),
		downloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patient_support",
			Subsystem: "referrals",
			Name:      "document_downloads_total",
			Help:      "Referral attachment downloads by result",
		}, []string{"result"}),
		statusPush: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patient_support",
			Subsystem: "referrals",
			Name:      "status_push_total",
			Help:      "Status updates pushed to Salesforce by result",
		}, []string{"result"}),
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patient_support",
			Subsystem: "referrals",
			Name:      "outbound_calls_total",
			Help:      "Outbound call requests by result",
		}, []string{"result"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "patient_support",
			Subsystem: "referrals",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of Salesforce referral webhook processing",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.downloadsTotal, m.statusPush, m.callsTotal, m.webhookLatency)
	return m
}

// ObserveWebhook records one webhook outcome (complete, incomplete, rejected, invalid, error).
func (m *ReferralMetrics) ObserveWebhook(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(outcome).Inc()
	m.webhookLatency.Observe(seconds)
}

func (m *ReferralMetrics) ObserveDownload(result string) {
	if m == nil {
		return
	}
	m.downloadsTotal.WithLabelValues(result).Inc()
}

func (m *ReferralMetrics) ObserveStatusPush(result string) {
	if m == nil {
		return
	}
	m.statusPush.WithLabelValues(result).Inc()
}

func (m *ReferralMetrics) ObserveCall(result string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(result).Inc()
}
