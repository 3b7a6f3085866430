// Copyright 2024 Alexandre Mahdhaoui
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scenario

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the runner instrumentation. A nil *Metrics records nothing.
type Metrics struct {
	Results *prometheus.CounterVec
}

// NewMetrics creates the runner metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Results: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "bmnotify",
			Subsystem: "scenario",
			Name:      "results_total",
			Help:      "Scenario results by resource kind, action and status.",
		}, []string{"kind", "action", "status"}),
	}
}

func (m *Metrics) observe(r Result) {
	if m == nil {
		return
	}
	m.Results.WithLabelValues(string(r.Kind), string(r.Action), string(r.Status)).Inc()
}
