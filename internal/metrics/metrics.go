package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the tick/bar pipeline.
type Metrics struct {
	TicksInserted *prometheus.CounterVec // labels: variant
	TicksRejected *prometheus.CounterVec // labels: variant

	MonthsFetched     prometheus.Counter
	MonthsUnavailable prometheus.Counter

	BarsWritten prometheus.Counter
	RegenDur    prometheus.Histogram
	UpdateDur   prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxdata_ticks_inserted_total",
			Help: "Tick rows applied to the store (by variant)",
		}, []string{"variant"}),
		TicksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxdata_ticks_rejected_total",
			Help: "Tick rows rejected by validation (by variant)",
		}, []string{"variant"}),
		MonthsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxdata_months_fetched_total",
			Help: "Month archives fetched and loaded",
		}),
		MonthsUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxdata_months_unavailable_total",
			Help: "Month archives the source had no data for",
		}),
		BarsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxdata_bars_written_total",
			Help: "Minute bars written by regeneration",
		}),
		RegenDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxdata_regen_duration_seconds",
			Help:    "Bar regeneration latency per run",
			Buckets: prometheus.DefBuckets,
		}),
		UpdateDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxdata_update_duration_seconds",
			Help:    "Full update run latency per instrument",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
	}

	prometheus.MustRegister(
		m.TicksInserted, m.TicksRejected,
		m.MonthsFetched, m.MonthsUnavailable,
		m.BarsWritten, m.RegenDur, m.UpdateDur,
	)
	return m
}

// Server serves /metrics and /healthz.
type Server struct {
	addr string
}

// NewServer creates a metrics server on the given address.
func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// Start runs the metrics HTTP server in the background.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("[metrics] serving on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}
