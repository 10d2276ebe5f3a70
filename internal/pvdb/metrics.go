// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package pvdb

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the optional Prometheus instrumentation a server can
// attach to every Channel via Channel.SetMetrics. Channels work
// identically with it left nil.
type Metrics struct {
	writesTotal *prometheus.CounterVec
	readsTotal  *prometheus.CounterVec
}

// NewMetrics registers the PV database's counters on reg and returns a
// Metrics ready to hand to Channel.SetMetrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		writesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caproto",
			Subsystem: "pvdb",
			Name:      "writes_total",
			Help:      "Number of writes accepted per channel.",
		}, []string{"channel"}),
		readsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caproto",
			Subsystem: "pvdb",
			Name:      "reads_total",
			Help:      "Number of reads served per channel.",
		}, []string{"channel"}),
	}
	reg.MustRegister(m.writesTotal, m.readsTotal)
	return m
}
