// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package importer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsImport holds Prometheus metrics for the import subsystem.
type metricsImport struct {
	once sync.Once

	units     *prometheus.CounterVec
	rows      *prometheus.CounterVec
	rollbacks prometheus.Counter
	unknowns  prometheus.Counter

	unitDuration *prometheus.HistogramVec
	runDuration  *prometheus.HistogramVec
}

var impMetrics metricsImport

func (m *metricsImport) init() {
	m.once.Do(func() {
		m.units = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "factbase_import_units_total", Help: "Units processed by stage and outcome"}, []string{"stage", "outcome"})
		m.rows = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "factbase_import_rows_total", Help: "Rows inserted by table"}, []string{"table"})
		m.rollbacks = prometheus.NewCounter(prometheus.CounterOpts{Name: "factbase_import_rollbacks_total", Help: "Partial units rolled back before reimport"})
		m.unknowns = prometheus.NewCounter(prometheus.CounterOpts{Name: "factbase_import_unknowns_created_total", Help: "Unknown-entity placeholders created"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
		m.unitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "factbase_import_unit_seconds", Help: "Per-unit import duration", Buckets: buckets}, []string{"stage"})
		m.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "factbase_import_run_seconds", Help: "Importer run duration", Buckets: buckets}, []string{"stage"})

		prometheus.MustRegister(
			m.units, m.rows, m.rollbacks, m.unknowns,
			m.unitDuration, m.runDuration,
		)
	})
}

// record helpers - used by the importers for metrics tracking
func recordUnit(stage Stage, res UnitResult) {
	impMetrics.init()
	impMetrics.units.WithLabelValues(stage.String(), string(res.Outcome)).Inc()
	impMetrics.unitDuration.WithLabelValues(stage.String()).Observe(res.Duration.Seconds())
}

func recordRows(table string, n int) {
	if n <= 0 {
		return
	}
	impMetrics.init()
	impMetrics.rows.WithLabelValues(table).Add(float64(n))
}

func recordRollback() { impMetrics.init(); impMetrics.rollbacks.Inc() }

func recordUnknowns(n int) {
	if n <= 0 {
		return
	}
	impMetrics.init()
	impMetrics.unknowns.Add(float64(n))
}

func recordRun(r *Report) {
	impMetrics.init()
	impMetrics.runDuration.WithLabelValues(r.Stage).Observe(r.Duration().Seconds())
}
