package stats

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "duochat"

// Metric names used by the chat server. Names ending in _total are
// counters and only go up; the rest are gauges.
const (
	NumActiveClients  = "active_clients"
	NumActiveRooms    = "active_rooms"
	MessagesSent      = "messages_sent_total"
	StatusTransitions = "status_transitions_total"
	AbsorbedAcks      = "absorbed_acks_total"
)

var help = map[string]string{
	NumActiveClients:  "Connected websocket clients.",
	NumActiveRooms:    "Conversation rooms currently loaded.",
	MessagesSent:      "Messages persisted.",
	StatusTransitions: "Message status changes applied.",
	AbsorbedAcks:      "Acknowledgements dropped because they no longer applied.",
}

func isCounter(name string) bool {
	return strings.HasSuffix(name, "_total")
}

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
}

type StatsUpdater struct {
	registry *prometheus.Registry

	mu       sync.RWMutex
	gauges   map[string]prometheus.Gauge
	counters map[string]prometheus.Counter
}

// NewStatsUpdater creates a stats updater backed by a private prometheus
// registry and serves it on GET /metrics.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]prometheus.Gauge),
		counters: make(map[string]prometheus.Counter),
	}
	su.initializeMetrics()

	mux.Handle("GET /metrics", promhttp.HandlerFor(su.registry, promhttp.HandlerOpts{}))

	return su
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.registry.MustRegister(
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_milliseconds",
			Help:      "Milliseconds since the server started.",
		}, func() float64 {
			return float64(time.Since(startTime).Milliseconds())
		}),
	)
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.mu.Lock()
	defer su.mu.Unlock()

	if _, ok := su.gauges[name]; ok {
		return
	}
	if _, ok := su.counters[name]; ok {
		return
	}

	desc := help[name]
	if desc == "" {
		desc = name
	}

	if isCounter(name) {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      desc,
		})
		su.registry.MustRegister(c)
		su.counters[name] = c
		return
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      desc,
	})
	su.registry.MustRegister(g)
	su.gauges[name] = g
}

func (su *StatsUpdater) Incr(name string) {
	su.mu.RLock()
	defer su.mu.RUnlock()

	if c, ok := su.counters[name]; ok {
		c.Inc()
		return
	}
	su.gauge(name).Inc()
}

// Decr panics for counters.
func (su *StatsUpdater) Decr(name string) {
	su.mu.RLock()
	defer su.mu.RUnlock()

	su.gauge(name).Dec()
}

// gauge must be called with su.mu held.
func (su *StatsUpdater) gauge(name string) prometheus.Gauge {
	g, ok := su.gauges[name]
	if !ok {
		panic("gauge not found: " + name)
	}
	return g
}
