// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package metrics exposes atom registry activity as Prometheus metrics.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/open-policy-agent/atom/v1/atom"
)

const namespace = "atom_registry"

// Collector counts registry events. It implements atom.Observer and
// prometheus.Collector, so the same value is passed to atom.WithObserver
// and registered with a Prometheus registry.
type Collector struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	resurrections prometheus.Counter
	unregisters   *prometheus.CounterVec
	pruned        prometheus.Counter
	entries       *prometheus.Desc
	live          *prometheus.Desc

	registry atomic.Pointer[atom.Registry]
}

// New returns a collector. constLabels are attached to every metric, which
// allows several registries to be collected side by side.
func New(constLabels prometheus.Labels) *Collector {
	return &Collector{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "hits_total",
			Help:        "Registrations answered by an existing live atom.",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "misses_total",
			Help:        "Registrations that allocated a new atom.",
			ConstLabels: constLabels,
		}),
		resurrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "resurrections_total",
			Help:        "Misses that replaced a stale entry.",
			ConstLabels: constLabels,
		}),
		unregisters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "unregisters_total",
			Help:        "Unregister calls, by whether an entry was removed.",
			ConstLabels: constLabels,
		}, []string{"removed"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "pruned_total",
			Help:        "Stale entries removed by pruning or automatic cleanup.",
			ConstLabels: constLabels,
		}),
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "entries"),
			"Entries held by the registry, live or stale.",
			nil, constLabels,
		),
		live: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "live_entries"),
			"Entries whose atom is still reachable.",
			nil, constLabels,
		),
	}
}

// Track makes the collector report table size gauges for r.
func (c *Collector) Track(r *atom.Registry) {
	c.registry.Store(r)
}

// Hit implements atom.Observer.
func (c *Collector) Hit() {
	c.hits.Inc()
}

// Miss implements atom.Observer.
func (c *Collector) Miss(resurrected bool) {
	c.misses.Inc()
	if resurrected {
		c.resurrections.Inc()
	}
}

// Unregister implements atom.Observer.
func (c *Collector) Unregister(removed bool) {
	if removed {
		c.unregisters.WithLabelValues("true").Inc()
		return
	}
	c.unregisters.WithLabelValues("false").Inc()
}

// Prune implements atom.Observer.
func (c *Collector) Prune(n int) {
	c.pruned.Add(float64(n))
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.hits.Describe(ch)
	c.misses.Describe(ch)
	c.resurrections.Describe(ch)
	c.unregisters.Describe(ch)
	c.pruned.Describe(ch)
	ch <- c.entries
	ch <- c.live
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.hits.Collect(ch)
	c.misses.Collect(ch)
	c.resurrections.Collect(ch)
	c.unregisters.Collect(ch)
	c.pruned.Collect(ch)

	if r := c.registry.Load(); r != nil && !r.Poisoned() {
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(r.Len()))
		ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(r.Live()))
	}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Hits          uint64 `json:"hits" yaml:"hits"`
	Misses        uint64 `json:"misses" yaml:"misses"`
	Resurrections uint64 `json:"resurrections" yaml:"resurrections"`
	Unregistered  uint64 `json:"unregistered" yaml:"unregistered"`
	Pruned        uint64 `json:"pruned" yaml:"pruned"`
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Hits:          counterValue(c.hits),
		Misses:        counterValue(c.misses),
		Resurrections: counterValue(c.resurrections),
		Unregistered:  counterValue(c.unregisters.WithLabelValues("true")),
		Pruned:        counterValue(c.pruned),
	}
}

var _ atom.Observer = (*Collector)(nil)
var _ prometheus.Collector = (*Collector)(nil)
