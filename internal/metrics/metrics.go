// Package metrics exposes Prometheus instruments for the mood engine.
// Every Observe/Inc helper is a no-op until Init has run.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "moodstage_"

var (
	registerOnce sync.Once

	ticksTotal   prometheus.Counter
	tickLatency  prometheus.Histogram
	transitions  *prometheus.CounterVec
	ruleMatches  *prometheus.CounterVec
	faultsTotal  *prometheus.CounterVec
	readingGauge *prometheus.GaugeVec
	exportsTotal *prometheus.CounterVec
)

// Init registers the instruments. subscribers, when non-nil, backs a gauge
// of live state subscriptions.
func Init(subscribers func() int) {
	registerOnce.Do(func() {
		ticksTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ticks_total",
				Help: "Total simulation ticks",
			},
		)
		tickLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "tick_latency_seconds",
				Help:    "Time spent in one simulation tick",
				Buckets: prometheus.DefBuckets,
			},
		)
		transitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mood_transitions_total",
				Help: "Mood activations by target mood and cause",
			},
			[]string{"mood", "cause"},
		)
		ruleMatches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rule_matches_total",
				Help: "Winning rule per evaluation",
			},
			[]string{"rule"},
		)
		faultsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "connection_events_total",
				Help: "Simulated output faults and recoveries",
			},
			[]string{"connection", "event"},
		)
		readingGauge = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "reading",
				Help: "Latest simulated environment reading by field",
			},
			[]string{"field"},
		)
		exportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "analytics_exports_total",
				Help: "Analytics exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ticksTotal,
			tickLatency,
			transitions,
			ruleMatches,
			faultsTotal,
			readingGauge,
			exportsTotal,
		)

		if subscribers != nil {
			prometheus.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: metricPrefix + "subscribers",
					Help: "Live state subscriptions",
				},
				func() float64 { return float64(subscribers()) },
			))
		}
	})
}

// ObserveTick records one simulation tick.
func ObserveTick(duration time.Duration) {
	if ticksTotal != nil {
		ticksTotal.Inc()
	}
	if tickLatency != nil {
		tickLatency.Observe(duration.Seconds())
	}
}

// IncTransition counts a mood activation.
func IncTransition(mood, cause string) {
	if cause == "" {
		cause = "unknown"
	}
	if transitions != nil {
		transitions.WithLabelValues(mood, cause).Inc()
	}
}

// IncRuleMatch counts the winning rule of an evaluation.
func IncRuleMatch(rule string) {
	if ruleMatches != nil {
		ruleMatches.WithLabelValues(rule).Inc()
	}
}

// IncConnectionEvent counts a fault or recovery on a named output.
func IncConnectionEvent(connection, event string) {
	if faultsTotal != nil {
		faultsTotal.WithLabelValues(connection, event).Inc()
	}
}

// SetReading publishes the latest reading fields.
func SetReading(occupancy int, movement, audio, light float64) {
	if readingGauge == nil {
		return
	}
	readingGauge.WithLabelValues("occupancy").Set(float64(occupancy))
	readingGauge.WithLabelValues("movement").Set(movement)
	readingGauge.WithLabelValues("audio").Set(audio)
	readingGauge.WithLabelValues("light").Set(light)
}

// IncExport counts an analytics export.
func IncExport(format string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	if exportsTotal != nil {
		exportsTotal.WithLabelValues(format, result).Inc()
	}
}
