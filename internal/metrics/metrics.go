// Package metrics exposes the worker fleet's internal state as Prometheus
// collectors: scheduler steps, progress messages exchanged, and frontier
// cardinality per tracked port. Grounded on SPEC_FULL.md's domain stack
// table, which assigns prometheus/client_golang to exactly this concern.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector a worker reports through, labeled by its
// own worker index so a single process shared by several local workers
// still exposes them distinctly.
type Registry struct {
	Steps            *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	DataflowsActive  *prometheus.GaugeVec
	FrontierSize     *prometheus.GaugeVec
}

// NewRegistry constructs a Registry and registers every collector against
// reg. Passing prometheus.NewRegistry() isolates the metrics for a single
// test or worker; passing prometheus.DefaultRegisterer wires them into the
// process-wide /metrics endpoint.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timely",
			Name:      "worker_steps_total",
			Help:      "Number of scheduler steps a worker has run.",
		}, []string{"worker"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timely",
			Name:      "messages_sent_total",
			Help:      "Number of operator progress updates broadcast by a worker.",
		}, []string{"worker", "channel"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timely",
			Name:      "messages_received_total",
			Help:      "Number of progress messages received by a worker.",
		}, []string{"worker", "channel"}),
		DataflowsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "timely",
			Name:      "dataflows_active",
			Help:      "Number of dataflows still hosted by a worker.",
		}, []string{"worker"}),
		FrontierSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "timely",
			Name:      "frontier_elements",
			Help:      "Number of incomparable timestamps in an output port's current frontier.",
		}, []string{"worker", "dataflow", "operator", "output"}),
	}

	reg.MustRegister(r.Steps, r.MessagesSent, r.MessagesReceived, r.DataflowsActive, r.FrontierSize)
	return r
}
