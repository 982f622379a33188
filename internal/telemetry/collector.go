// Package telemetry exports run state as Prometheus metrics.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/novabind/internal/metrics"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/nova"
)

const namespace = "novasim"

// LiveCounter reports the native handles an engine still holds.
type LiveCounter interface {
	LiveCount() int
}

// Collector records the latest step of a run. It is a sim.Metric, so a
// Runner feeds it, and a prometheus.Collector, so a registry scrapes it.
type Collector struct {
	scene  string
	engine LiveCounter

	mu      sync.Mutex
	steps   int
	simTime float64
	bodies  int
	kinetic float64
	profile nova.Profiler

	stepSeconds prometheus.Histogram

	stepsDesc   *prometheus.Desc
	timeDesc    *prometheus.Desc
	bodiesDesc  *prometheus.Desc
	kineticDesc *prometheus.Desc
	phaseDesc   *prometheus.Desc
	liveDesc    *prometheus.Desc
}

// NewCollector labels every series with scene. engine may be nil.
func NewCollector(scene string, engine LiveCounter) *Collector {
	labels := prometheus.Labels{"scene": scene}
	return &Collector{
		scene:  scene,
		engine: engine,
		stepSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "step_duration_seconds",
			Help:        "Wall time of Space.Step",
			Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 10),
			ConstLabels: labels,
		}),
		stepsDesc: prometheus.NewDesc(namespace+"_steps_total",
			"Steps taken by the current run", nil, labels),
		timeDesc: prometheus.NewDesc(namespace+"_sim_time_seconds",
			"Simulated time of the current run", nil, labels),
		bodiesDesc: prometheus.NewDesc(namespace+"_bodies",
			"Dynamic bodies sampled in the last frame", nil, labels),
		kineticDesc: prometheus.NewDesc(namespace+"_kinetic_energy",
			"Total kinetic energy of the last frame", nil, labels),
		phaseDesc: prometheus.NewDesc(namespace+"_step_phase_seconds",
			"Duration of each step phase in the last step", []string{"phase"}, labels),
		liveDesc: prometheus.NewDesc(namespace+"_live_handles",
			"Native handles held by the engine", nil, labels),
	}
}

func (c *Collector) Name() string { return "steps_observed" }

func (c *Collector) Observe(f sim.Frame, p nova.Profiler, t float64) {
	c.mu.Lock()
	c.steps++
	c.simTime = t
	c.bodies = len(f)
	c.kinetic = metrics.Kinetic(f)
	c.profile = p
	c.mu.Unlock()
	c.stepSeconds.Observe(p.Step.Seconds())
}

func (c *Collector) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.steps)
}

func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps, c.simTime, c.bodies, c.kinetic = 0, 0, 0, 0
	c.profile = nova.Profiler{}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.stepsDesc
	ch <- c.timeDesc
	ch <- c.bodiesDesc
	ch <- c.kineticDesc
	ch <- c.phaseDesc
	ch <- c.liveDesc
	c.stepSeconds.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	steps, simTime, bodies, kinetic, prof := c.steps, c.simTime, c.bodies, c.kinetic, c.profile
	c.mu.Unlock()

	ch <- prometheus.MustNewConstMetric(c.stepsDesc, prometheus.CounterValue, float64(steps))
	ch <- prometheus.MustNewConstMetric(c.timeDesc, prometheus.GaugeValue, simTime)
	ch <- prometheus.MustNewConstMetric(c.bodiesDesc, prometheus.GaugeValue, float64(bodies))
	ch <- prometheus.MustNewConstMetric(c.kineticDesc, prometheus.GaugeValue, kinetic)
	for _, ph := range prof.Phases() {
		ch <- prometheus.MustNewConstMetric(c.phaseDesc, prometheus.GaugeValue, ph.Duration.Seconds(), ph.Name)
	}
	if c.engine != nil {
		ch <- prometheus.MustNewConstMetric(c.liveDesc, prometheus.GaugeValue, float64(c.engine.LiveCount()))
	}
	c.stepSeconds.Collect(ch)
}

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
