package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Fetch holds the Prometheus metrics for one fetch run. Each Fetch owns its
// registry so runs and tests never collide on registration. A nil *Fetch
// records nothing.
type Fetch struct {
	Pages        prometheus.Counter
	Activities   prometheus.Counter
	CacheHits    prometheus.Counter
	PageDuration prometheus.Histogram

	registry *prometheus.Registry
}

// New creates and registers the fetch metrics.
func New() *Fetch {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Fetch{
		Pages: factory.NewCounter(prometheus.CounterOpts{
			Name: "iati3w_pages_fetched_total",
			Help: "Total number of d-portal result pages fetched",
		}),
		Activities: factory.NewCounter(prometheus.CounterOpts{
			Name: "iati3w_activities_fetched_total",
			Help: "Total number of iati-activity elements received",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "iati3w_cache_hits_total",
			Help: "Pages served from the local response cache",
		}),
		PageDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "iati3w_page_fetch_duration_seconds",
			Help:    "Time to fetch and parse one result page",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		registry: reg,
	}
}

// ObservePage records one fetched page holding n activities.
func (m *Fetch) ObservePage(d time.Duration, n int, cached bool) {
	if m == nil {
		return
	}
	m.Pages.Inc()
	m.Activities.Add(float64(n))
	m.PageDuration.Observe(d.Seconds())
	if cached {
		m.CacheHits.Inc()
	}
}

// WriteText writes every metric in the Prometheus text exposition format.
func (m *Fetch) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}
