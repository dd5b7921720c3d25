package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "sotamapper"

// Metrics holds the Prometheus instruments shared by the watcher, the map
// store and the feed. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ticks         prometheus.Counter
	tickFailures  prometheus.Counter
	sourceErrors  *prometheus.CounterVec
	candidates    *prometheus.CounterVec
	notifications prometheus.Counter
	mapsLoaded    prometheus.Gauge
	subscribers   prometheus.Gauge
}

// NewMetrics creates the instruments and registers them with reg.
//
// Precondition: reg must be non-nil and must not already hold these metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_ticks_total",
			Help:      "Poll ticks started by the player watcher.",
		}),
		tickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_tick_failures_total",
			Help:      "Poll ticks that panicked and were recovered.",
		}),
		sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_source_errors_total",
			Help:      "Source polls that returned an error.",
		}, []string{"source"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_candidates_total",
			Help:      "Candidate field updates by source, field and outcome.",
		}, []string{"source", "field", "outcome"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_notifications_total",
			Help:      "Player state change notifications delivered.",
		}),
		mapsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "maps_loaded",
			Help:      "Maps held by the map store.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_subscribers",
			Help:      "Active player feed subscribers.",
		}),
	}
	reg.MustRegister(m.ticks, m.tickFailures, m.sourceErrors, m.candidates,
		m.notifications, m.mapsLoaded, m.subscribers)
	return m
}

// TickStarted counts a poll tick.
func (m *Metrics) TickStarted() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

// TickFailed counts a recovered tick panic.
func (m *Metrics) TickFailed() {
	if m == nil {
		return
	}
	m.tickFailures.Inc()
}

// SourceFailed counts a source poll error.
func (m *Metrics) SourceFailed(source string) {
	if m == nil {
		return
	}
	m.sourceErrors.WithLabelValues(source).Inc()
}

// Candidate counts one candidate field update.
func (m *Metrics) Candidate(source, field string, applied bool) {
	if m == nil {
		return
	}
	outcome := "discarded"
	if applied {
		outcome = "applied"
	}
	m.candidates.WithLabelValues(source, field, outcome).Inc()
}

// Notified counts a delivered state change.
func (m *Metrics) Notified() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

// SetMapsLoaded records the map store size.
func (m *Metrics) SetMapsLoaded(n int) {
	if m == nil {
		return
	}
	m.mapsLoaded.Set(float64(n))
}

// AddSubscribers adjusts the feed subscriber gauge by delta.
func (m *Metrics) AddSubscribers(delta int) {
	if m == nil {
		return
	}
	m.subscribers.Add(float64(delta))
}

// MetricsServer serves /metrics for a registry.
type MetricsServer struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates a server exposing gatherer on addr.
//
// Precondition: gatherer and logger must be non-nil.
func NewMetricsServer(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &MetricsServer{
		srv:    &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Handler returns the /metrics mux.
func (s *MetricsServer) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until Stop is called.
func (s *MetricsServer) Start(_ context.Context) error {
	s.logger.Info("metrics listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting up to five seconds for requests.
func (s *MetricsServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("metrics shutdown", zap.Error(err))
	}
}
