package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the search pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	SearchesTotal    *prometheus.CounterVec
	FetchDuration    *prometheus.HistogramVec
	ProductsTotal    prometheus.Counter
	DiscardedTotal   prometheus.Counter
	DiagnosticsTotal *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_searches_total",
			Help: "Searches processed, by outcome (results, blocked, transport_error, invalid).",
		}, []string{"outcome"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Duration of upstream page fetches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		ProductsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "scraper_products_extracted_total",
			Help: "Product records returned to callers.",
		}),
		DiscardedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "scraper_items_discarded_total",
			Help: "Result items dropped for a missing title or image.",
		}),
		DiagnosticsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_diagnostics_captures_total",
			Help: "Upstream error captures, by result (ok, failed).",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveSearch(outcome string) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFetch(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) ObserveExtraction(products, discarded int) {
	if m == nil {
		return
	}
	m.ProductsTotal.Add(float64(products))
	m.DiscardedTotal.Add(float64(discarded))
}

func (m *Metrics) ObserveDiagnostics(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.DiagnosticsTotal.WithLabelValues(result).Inc()
}
