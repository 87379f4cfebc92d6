package fuzz

import (
	"sync"

	"github.com/VividCortex/ewma"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	iterations     prometheus.Counter
	skippedInputs  prometheus.Counter
	processedIxs   prometheus.Counter
	failedIxs      prometheus.Counter
	duplicateIxs   prometheus.Counter
	invocations    prometheus.Counter
	findings       prometheus.Counter
	iterationsRate prometheus.GaugeFunc

	rateMu sync.Mutex
	rate   ewma.MovingAverage
}

func newMetrics(target string, reg prometheus.Registerer) *metrics {
	labels := prometheus.Labels{"target": target}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "solfuzz",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &metrics{
		iterations:    counter("iterations_total", "Completed fuzz iterations."),
		skippedInputs: counter("skipped_inputs_total", "Inputs too short to build an instruction sequence."),
		processedIxs:  counter("instructions_processed_total", "Instructions submitted to the harness."),
		failedIxs:     counter("instructions_failed_total", "Submitted instructions that returned an error."),
		duplicateIxs:  counter("instructions_duplicate_total", "Instructions skipped as duplicates."),
		invocations:   counter("invocations_total", "Program invocations, nested ones included."),
		findings:      counter("findings_total", "Iterations that ended in a finding."),
		rate:          ewma.NewMovingAverage(),
	}
	m.iterationsRate = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "solfuzz",
		Name:        "iterations_per_second",
		Help:        "Moving average of iteration throughput.",
		ConstLabels: labels,
	}, m.Rate)

	if reg != nil {
		reg.MustRegister(m.iterations, m.skippedInputs, m.processedIxs, m.failedIxs,
			m.duplicateIxs, m.invocations, m.findings, m.iterationsRate)
	}
	return m
}

func (m *metrics) observe(stats RunStats) {
	m.iterations.Inc()
	m.processedIxs.Add(float64(stats.Processed))
	m.failedIxs.Add(float64(stats.Failed))
	m.duplicateIxs.Add(float64(stats.Skipped))
	m.invocations.Add(float64(stats.Invocations))
}

// sample feeds the number of iterations completed during the last tick.
func (m *metrics) sample(perSecond float64) {
	m.rateMu.Lock()
	m.rate.Add(perSecond)
	m.rateMu.Unlock()
}

func (m *metrics) Rate() float64 {
	m.rateMu.Lock()
	defer m.rateMu.Unlock()
	return m.rate.Value()
}
