package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics agrupa os coletores do CLI
// Os componentes recebem só callbacks (OnRequest, OnTick, ...), nunca o registry
type ClientMetrics struct {
	Requests  *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
	PollTicks *prometheus.CounterVec
	Decisions *prometheus.CounterVec
}

func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betref_client_requests_total",
			Help: "chamadas ao backend por endpoint e status",
		}, []string{"endpoint", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "betref_client_request_seconds",
			Help:    "latência das chamadas ao backend",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		PollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betref_client_poll_ticks_total",
			Help: "execuções de polling por tarefa e resultado",
		}, []string{"task", "result"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betref_admin_decisions_total",
			Help: "decisões administrativas por tipo e resultado",
		}, []string{"kind", "outcome"}),
	}
	reg.MustRegister(m.Requests, m.Latency, m.PollTicks, m.Decisions)
	return m
}

// ObserveRequest casa com a assinatura de api.Client.OnRequest.
// status 0 significa falha de rede.
func (m *ClientMetrics) ObserveRequest(endpoint string, status int, d time.Duration) {
	m.Requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.Latency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *ClientMetrics) PollTick(task string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PollTicks.WithLabelValues(task, result).Inc()
}

func (m *ClientMetrics) Decision(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Decisions.WithLabelValues(kind, outcome).Inc()
}
