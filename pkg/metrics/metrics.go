// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics provides the namespace and reflection helper bee's
// per-component metrics structs use to expose their prometheus collectors
// to a host-owned registry (process-wide metrics wiring is an external
// collaborator per spec §1/§6 — this package only prepares the collectors,
// it never registers them itself).
package metrics

import (
	"reflect"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is prefixed before every metric name.
const Namespace = "weavesync"

// PrometheusCollectorsFromFields walks the exported fields of i (expected to
// be a struct or pointer to struct of prometheus metric types) and returns
// every field implementing prometheus.Collector. Components embed a
// `metrics` struct of named counters/gauges and use this helper to implement
// their Metrics() []prometheus.Collector method, following
// pkg/pullsync/metrics.go's `m.PrometheusCollectorsFromFields(s.metrics)`.
func PrometheusCollectorsFromFields(i interface{}) (cs []prometheus.Collector) {
	v := reflect.Indirect(reflect.ValueOf(i))
	if v.Kind() != reflect.Struct {
		return nil
	}
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if !f.CanInterface() {
			continue
		}
		if c, ok := f.Interface().(prometheus.Collector); ok {
			cs = append(cs, c)
		}
	}
	return cs
}
