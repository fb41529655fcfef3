// Package metrics exposes the simulator's Prometheus instruments. Every method is safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Plant is the subset of the live state exported as gauges
type Plant struct {
	SH5          float64
	SH5Target    float64
	O2           float64
	SteamFlow    float64
	Barycenter   float64
	Fouling      float64
	WasteDeposit float64
	EstimatedPCI float64
	Acceleration int
}

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	ticks             prometheus.Counter
	plant             *prometheus.GaugeVec
	riskScore         prometheus.Gauge
	alerts            prometheus.Counter
	mentorRequests    *prometheus.CounterVec
	commands          *prometheus.CounterVec
	wsClients         prometheus.Gauge
}

// New creates the instruments on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boilersim_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boilersim_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boilersim_ticks_total",
			Help: "Simulation ticks executed.",
		}),
		plant: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "boilersim_plant_value",
			Help: "Latest simulated plant values by signal.",
		}, []string{"signal"}),
		riskScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boilersim_explosion_risk_score",
			Help: "Explosion risk score (0-100).",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boilersim_risk_alerts_total",
			Help: "Risk alerts delivered.",
		}),
		mentorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boilersim_mentor_requests_total",
			Help: "Mentor answers by source (remote or fallback).",
		}, []string{"source"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boilersim_commands_total",
			Help: "Control commands applied by name and result.",
		}, []string{"name", "result"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boilersim_websocket_clients",
			Help: "Connected snapshot stream clients.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.ticks,
		m.plant,
		m.riskScore,
		m.alerts,
		m.mentorRequests,
		m.commands,
		m.wsClients,
	)
	return m
}

// Registry is exposed for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts and times requests to route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

func (m *Metrics) SetPlant(p Plant) {
	if m == nil {
		return
	}
	m.plant.WithLabelValues("sh5").Set(p.SH5)
	m.plant.WithLabelValues("sh5_target").Set(p.SH5Target)
	m.plant.WithLabelValues("o2").Set(p.O2)
	m.plant.WithLabelValues("steam_flow").Set(p.SteamFlow)
	m.plant.WithLabelValues("barycenter").Set(p.Barycenter)
	m.plant.WithLabelValues("fouling").Set(p.Fouling)
	m.plant.WithLabelValues("waste_deposit").Set(p.WasteDeposit)
	m.plant.WithLabelValues("estimated_pci").Set(p.EstimatedPCI)
	m.plant.WithLabelValues("acceleration").Set(float64(p.Acceleration))
}

func (m *Metrics) SetRiskScore(score float64) {
	if m == nil {
		return
	}
	m.riskScore.Set(score)
}

func (m *Metrics) AlertSent() {
	if m == nil {
		return
	}
	m.alerts.Inc()
}

func (m *Metrics) MentorAnswer(fallback bool) {
	if m == nil {
		return
	}
	source := "remote"
	if fallback {
		source = "fallback"
	}
	m.mentorRequests.WithLabelValues(source).Inc()
}

func (m *Metrics) Command(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(name, result).Inc()
}

func (m *Metrics) SetStreamClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}
