// Package metrics exposes job progress as prometheus metrics
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "profscout"

	jobLabel    = "job"
	statusLabel = "status"
)

// Metrics collects job metrics in its own registry
type Metrics struct {
	registry *prometheus.Registry
	items    *prometheus.CounterVec
	attempts *prometheus.HistogramVec
	records  *prometheus.GaugeVec
	saves    *prometheus.CounterVec
}

// New makes metrics registered in a fresh registry together with go and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "number of processed work items by job and status",
		}, []string{jobLabel, statusLabel}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_attempts",
			Help:      "attempts made per work item",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}, []string{jobLabel}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkpoint_records",
			Help:      "number of records in the last persisted checkpoint",
		}, []string{jobLabel}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_saves_total",
			Help:      "number of persisted checkpoints",
		}, []string{jobLabel}),
	}
	m.registry.MustRegister(m.items, m.attempts, m.records, m.saves,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// ItemDone counts a processed item
func (m *Metrics) ItemDone(job string, ok bool, attempts int) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.items.With(prometheus.Labels{jobLabel: job, statusLabel: status}).Inc()
	m.attempts.With(prometheus.Labels{jobLabel: job}).Observe(float64(attempts))
}

// StateSaved records the size of the persisted checkpoint
func (m *Metrics) StateSaved(job string, records int) {
	m.records.With(prometheus.Labels{jobLabel: job}).Set(float64(records))
	m.saves.With(prometheus.Labels{jobLabel: job}).Inc()
}

// Handler returns the http handler serving the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve runs a metrics listener until the context is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] metrics server shutdown: %v", err)
		}
	}()

	log.Printf("[INFO] metrics listener on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
