// Package metrics exposes Prometheus instrumentation for calendar queries and
// exception-list loads.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "tradeday_"

	ResultOpen      = "open"
	ResultClosed    = "closed"
	ResultFound     = "found"
	ResultExhausted = "exhausted"
	ResultBadInput  = "bad_input"
)

var (
	registerOnce sync.Once

	queriesTotal *prometheus.CounterVec
	searchSteps  *prometheus.HistogramVec
	exceptions   *prometheus.GaugeVec
	loadsTotal   *prometheus.CounterVec
)

// Init registers the collectors with reg, or with the default registerer
// when reg is nil. Calls after the first are no-ops.
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}

		queriesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "queries_total",
				Help: "Calendar queries by transport, operation and result",
			},
			[]string{"transport", "op", "result"},
		)
		searchSteps = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "search_steps",
				Help:    "Days stepped by nearest-open searches",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"direction"},
		)
		exceptions = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "exceptions",
				Help: "Exception dates loaded, by kind (closed, open, skipped, conflicts)",
			},
			[]string{"market", "kind"},
		)
		loadsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exception_loads_total",
				Help: "Exception list loads by source kind and result",
			},
			[]string{"source", "result"},
		)

		reg.MustRegister(queriesTotal, searchSteps, exceptions, loadsTotal)
	})
}

// ObserveQuery counts one calendar query.
func ObserveQuery(transport, op, result string) {
	if queriesTotal == nil {
		return
	}
	queriesTotal.WithLabelValues(transport, op, result).Inc()
}

// ObserveSearch records how many days a nearest-open search stepped.
func ObserveSearch(direction string, steps int) {
	if searchSteps == nil {
		return
	}
	searchSteps.WithLabelValues(direction).Observe(float64(steps))
}

// SetExceptions publishes the load summary of a market's calendar.
func SetExceptions(market string, closed, open, skipped, conflicts int) {
	if exceptions == nil {
		return
	}
	exceptions.WithLabelValues(market, "closed").Set(float64(closed))
	exceptions.WithLabelValues(market, "open").Set(float64(open))
	exceptions.WithLabelValues(market, "skipped").Set(float64(skipped))
	exceptions.WithLabelValues(market, "conflicts").Set(float64(conflicts))
}

// ObserveLoad counts one exception-list load.
func ObserveLoad(source string, err error) {
	if loadsTotal == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	loadsTotal.WithLabelValues(source, result).Inc()
}
