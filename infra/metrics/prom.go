package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/grantvest/core/model"
	"github.com/kilianp07/grantvest/core/report"
)

// Collector records per-run distribution metrics on a Prometheus registry.
type Collector struct {
	records  *prometheus.CounterVec
	tokens   *prometheus.GaugeVec
	funding  *prometheus.GaugeVec
	duration *prometheus.GaugeVec
}

// NewCollector registers the run metrics on reg. A nil registerer defaults to
// the global Prometheus registerer. Metrics already registered are reused.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grantvest_records_processed_total",
		Help: "Number of funded records processed",
	}, []string{"policy"})
	tokens := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "grantvest_tokens_allocated",
		Help: "Tokens allocated in the last run per category",
	}, []string{"policy", "category"})
	funding := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "grantvest_funding_usd",
		Help: "Total requested funding of the last run in USD",
	}, []string{"policy"})
	duration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "grantvest_run_duration_seconds",
		Help: "Wall time of the last run",
	}, []string{"policy"})

	var err error
	if records, err = register(reg, records); err != nil {
		return nil, err
	}
	if tokens, err = register(reg, tokens); err != nil {
		return nil, err
	}
	if funding, err = register(reg, funding); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return &Collector{records: records, tokens: tokens, funding: funding, duration: duration}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveRun records the outcome of one run that took d.
func (c *Collector) ObserveRun(r report.Report, d time.Duration) {
	policy := string(r.Policy)
	s := r.Summary
	c.records.WithLabelValues(policy).Add(float64(s.TotalProjects))
	totals := model.CategorySplit{
		Project:     s.TotalProjectTokens,
		Participant: s.TotalParticipantTokens,
		Auditor:     s.TotalAuditorTokens,
	}
	for _, cat := range model.Categories {
		c.tokens.WithLabelValues(policy, cat.String()).Set(totals.Get(cat))
	}
	c.funding.WithLabelValues(policy).Set(s.TotalFundingUSD)
	c.duration.WithLabelValues(policy).Set(d.Seconds())
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, for the node exporter textfile collector. An empty path is a no-op.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return prometheus.WriteToTextfile(path, g)
}
