// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pqread

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the work done by the decode pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	batches        *prometheus.CounterVec
	levels         *prometheus.CounterVec
	values         *prometheus.CounterVec
	decodeDuration *prometheus.HistogramVec
	failures       *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colnest",
			Subsystem: "pqread",
			Name:      "batches_total",
			Help:      "Number of level batches read per column, one per ReadBatch call.",
		}, []string{"column"}),
		levels: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colnest",
			Subsystem: "pqread",
			Name:      "levels_total",
			Help:      "Number of repetition/definition level pairs read per column.",
		}, []string{"column"}),
		values: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colnest",
			Subsystem: "pqread",
			Name:      "values_total",
			Help:      "Number of non-null leaf values read per column.",
		}, []string{"column"}),
		decodeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "colnest",
			Subsystem: "pqread",
			Name:      "column_decode_duration_seconds",
			Help:      "Time spent decoding a whole column into an arrow array.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"column"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colnest",
			Subsystem: "pqread",
			Name:      "column_failures_total",
			Help:      "Number of columns whose decode failed.",
		}, []string{"column"}),
	}
}

func (m *Metrics) observeBatch(column string, levels, values int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(column).Inc()
	m.levels.WithLabelValues(column).Add(float64(levels))
	m.values.WithLabelValues(column).Add(float64(values))
}

func (m *Metrics) observeColumn(column string, start time.Time, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.failures.WithLabelValues(column).Inc()
		return
	}
	m.decodeDuration.WithLabelValues(column).Observe(time.Since(start).Seconds())
}
