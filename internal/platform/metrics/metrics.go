// Package metrics keeps process-local counters for the key-derivation
// pipeline. Nothing is exported over the network; the shell reads a
// snapshot for `info` in debug mode.
package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

type Registry struct {
	reg *prometheus.Registry

	Hashes       prometheus.Counter
	MinerTrials  prometheus.Counter
	MinerGiveUps prometheus.Counter
	MinerHits    prometheus.Counter
	Ceremonies   *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Hashes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nv",
			Subsystem: "kdf",
			Name:      "hashes_total",
			Help:      "Memory-hard hashes computed.",
		}),
		MinerTrials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nv",
			Subsystem: "miner",
			Name:      "trials_total",
			Help:      "Candidate salts tested against the difficulty target.",
		}),
		MinerGiveUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nv",
			Subsystem: "miner",
			Name:      "giveups_total",
			Help:      "Seeds abandoned after reaching the round cap.",
		}),
		MinerHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nv",
			Subsystem: "miner",
			Name:      "solutions_total",
			Help:      "Salts found below the difficulty target.",
		}),
		Ceremonies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nv",
			Subsystem: "seed",
			Name:      "ceremonies_total",
			Help:      "Completed seed ceremonies by kind.",
		}, []string{"kind"}),
	}
	r.reg.MustRegister(r.Hashes, r.MinerTrials, r.MinerGiveUps, r.MinerHits, r.Ceremonies)
	return r
}

// Sample is one gathered counter value.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Snapshot gathers every counter, sorted by name.
func (r *Registry) Snapshot() ([]Sample, error) {
	if r == nil {
		return nil, nil
	}
	families, err := r.reg.Gather()
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			out = append(out, Sample{
				Name:   mf.GetName(),
				Labels: labels,
				Value:  m.GetCounter().GetValue(),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
