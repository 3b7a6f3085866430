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

package capture

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded for each processed message.
const (
	OutcomeMatched   = "matched"
	OutcomeIgnored   = "ignored"
	OutcomeMalformed = "malformed"
)

// Metrics holds the capture instrumentation. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Messages *prometheus.CounterVec
	Duration prometheus.Histogram
}

// NewMetrics creates the capture metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bmnotify",
			Subsystem: "capture",
			Name:      "messages_total",
			Help:      "Messages consumed by capture sessions, by outcome.",
		}, []string{"outcome"}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bmnotify",
			Subsystem: "capture",
			Name:      "duration_seconds",
			Help:      "Wall time of capture sessions, including the final idle poll.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.Duration.Observe(d.Seconds())
}
