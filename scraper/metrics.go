package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a crawl. All methods are safe on
// a nil receiver.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	CandidatesTotal   *prometheus.CounterVec
	DuplicatesTotal   prometheus.Counter
	ListingsResolved  *prometheus.CounterVec
	CacheLookupsTotal *prometheus.CounterVec
	SinkOutcomesTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_requests_total",
			Help: "HTTP requests issued, by page kind.",
		},
		[]string{"kind"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listings_request_duration_seconds",
			Help:    "HTTP request latency, by page kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_retries_total",
			Help: "Area fetch retries.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_errors_total",
			Help: "Fetch errors by type.",
		},
		[]string{"error_type"},
	)
	candidates := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_candidates_total",
			Help: "Valid candidates emitted, by extraction strategy.",
		},
		[]string{"strategy"},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_duplicates_total",
			Help: "Candidates dropped by natural-key deduplication.",
		},
	)
	resolved := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_resolved_total",
			Help: "Resolved listings, by image source.",
		},
		[]string{"image_source"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_page_cache_lookups_total",
			Help: "Page cache lookups, by result.",
		},
		[]string{"result"},
	)
	sinkOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_sink_outcomes_total",
			Help: "Persistence outcomes: saved, skipped or error.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, candidates,
		duplicates, resolved, cacheLookups, sinkOutcomes)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
		CandidatesTotal:   candidates,
		DuplicatesTotal:   duplicates,
		ListingsResolved:  resolved,
		CacheLookupsTotal: cacheLookups,
		SinkOutcomesTotal: sinkOutcomes,
	}
}

// IncRequest counts one request of the given kind.
func (m *Metrics) IncRequest(kind string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError counts an error for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) IncCandidate(strategy string) {
	if m == nil {
		return
	}
	m.CandidatesTotal.WithLabelValues(strategy).Inc()
}

func (m *Metrics) AddDuplicates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DuplicatesTotal.Add(float64(n))
}

func (m *Metrics) IncResolved(imageSource string) {
	if m == nil {
		return
	}
	m.ListingsResolved.WithLabelValues(imageSource).Inc()
}

func (m *Metrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncSinkOutcome(outcome string) {
	if m == nil {
		return
	}
	m.SinkOutcomesTotal.WithLabelValues(outcome).Inc()
}
