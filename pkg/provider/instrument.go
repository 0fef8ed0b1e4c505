package provider

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors updated by instrumented providers.
type Metrics struct {
	queries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the query metrics and registers them with reg when it
// is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cypher",
			Subsystem: "provider",
			Name:      "queries_total",
			Help:      "Queries run, by database and outcome",
		}, []string{"database", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cypher",
			Subsystem: "provider",
			Name:      "query_duration_seconds",
			Help:      "Time spent running queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.queries, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

type instrumented struct {
	next    Provider
	metrics *Metrics
}

// Instrument wraps p so every Run is counted and timed.
func Instrument(p Provider, m *Metrics) Provider {
	if m == nil {
		return p
	}
	return &instrumented{next: p, metrics: m}
}

func (i *instrumented) Run(ctx context.Context, database, query string) (*Result, error) {
	start := time.Now()
	res, err := i.next.Run(ctx, database, query)
	i.metrics.duration.WithLabelValues(database).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	i.metrics.queries.WithLabelValues(database, outcome).Inc()
	return res, err
}

func (i *instrumented) Close(ctx context.Context) error {
	return i.next.Close(ctx)
}
