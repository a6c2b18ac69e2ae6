package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"clusterwatch/pkg/adapters"
	"clusterwatch/pkg/agents/summary"
	"clusterwatch/pkg/core"
)

// Recorder is the Prometheus backed adapters.MetricsRecorder.
type Recorder struct {
	cycles         *prometheus.CounterVec
	published      *prometheus.CounterVec
	activeServices *prometheus.GaugeVec
	cycleDuration  *prometheus.HistogramVec
	triggers       *prometheus.CounterVec
	actionErrors   *prometheus.CounterVec
}

var _ adapters.MetricsRecorder = &Recorder{}

// Default returns a Recorder registered with the controller-runtime registry,
// which the manager serves on its metrics endpoint.
func Default() *Recorder { return NewRecorder(ctrlmetrics.Registry) }

// NewRecorder constructs a Recorder and registers the metrics with the provided registerer.
// If reg is nil the default Prometheus registerer is used. Registering twice
// returns the collectors already registered.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clusterwatch_discovery_cycles_total",
			Help: "Total number of discovery cycles grouped by sink and result.",
		}, []string{"sink", "result"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clusterwatch_services_published_total",
			Help: "Total number of service publishes grouped by sink and action.",
		}, []string{"sink", "action"}),
		activeServices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clusterwatch_active_services",
			Help: "Number of services seen in the last successful discovery cycle.",
		}, []string{"sink"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clusterwatch_discovery_cycle_seconds",
			Help:    "Histogram of discovery cycle duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"sink"}),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clusterwatch_trigger_evaluations_total",
			Help: "Total number of trigger evaluations grouped by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		actionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clusterwatch_action_errors_total",
			Help: "Total number of failed playbook actions.",
		}, []string{"action"}),
	}
	r.cycles = register(reg, r.cycles)
	r.published = register(reg, r.published)
	r.activeServices = register(reg, r.activeServices)
	r.cycleDuration = register(reg, r.cycleDuration)
	r.triggers = register(reg, r.triggers)
	r.actionErrors = register(reg, r.actionErrors)
	return r
}

// ObserveCycle records a discovery cycle. Failed cycles are labelled with
// their error category.
func (r *Recorder) ObserveCycle(sink string, sum *summary.Summary, cycleErr error, duration time.Duration) {
	if r == nil {
		return
	}
	result := "success"
	if cycleErr != nil {
		result = string(core.ClassifyError(cycleErr))
	}
	r.cycles.WithLabelValues(sink, result).Inc()
	r.cycleDuration.WithLabelValues(sink).Observe(duration.Seconds())
	if cycleErr != nil || sum == nil {
		return
	}
	r.activeServices.WithLabelValues(sink).Set(float64(sum.Active))
	for _, action := range []summary.ActionType{summary.ActionCreated, summary.ActionUpdated, summary.ActionDeleted} {
		if count := sum.Count(action); count > 0 {
			r.published.WithLabelValues(sink, string(action)).Add(float64(count))
		}
	}
}

func (r *Recorder) ObserveTrigger(trigger, outcome string) {
	if r == nil {
		return
	}
	r.triggers.WithLabelValues(trigger, outcome).Inc()
}

func (r *Recorder) IncActionError(action string) {
	if r == nil {
		return
	}
	r.actionErrors.WithLabelValues(action).Inc()
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
