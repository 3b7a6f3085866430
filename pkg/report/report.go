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

// Package report renders the results of a suite run as JSON or text.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/alexandremahdhaoui/bmnotify/pkg/scenario"
)

// Report is the outcome of one suite run.
type Report struct {
	TestID    string            `json:"testID"`
	Suite     SuiteInfo         `json:"suite"`
	StartTime time.Time         `json:"startTime"`
	EndTime   time.Time         `json:"endTime"`
	Duration  float64           `json:"duration"` // seconds
	Status    scenario.Status   `json:"status"`
	Stats     Stats             `json:"stats"`
	Results   []scenario.Result `json:"results"`
}

// SuiteInfo contains suite metadata.
type SuiteInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	File        string   `json:"file,omitempty"`
	Tags        []string `json:"tags,omitempty"` // tag filter of the run
}

// Stats aggregates scenario outcomes.
type Stats struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Errored  int     `json:"errored"`
	PassRate float64 `json:"passRate"`
}

// New builds the report of a run that started at start.
func New(info SuiteInfo, start time.Time, results []scenario.Result) *Report {
	end := time.Now()

	r := &Report{
		TestID:    uuid.NewString(),
		Suite:     info,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start).Seconds(),
		Results:   results,
	}
	if r.Results == nil {
		r.Results = []scenario.Result{}
	}

	for _, res := range results {
		r.Stats.Total++
		switch res.Status {
		case scenario.StatusPassed:
			r.Stats.Passed++
		case scenario.StatusFailed:
			r.Stats.Failed++
		default:
			r.Stats.Errored++
		}
	}
	if r.Stats.Total > 0 {
		r.Stats.PassRate = float64(r.Stats.Passed) / float64(r.Stats.Total)
	}

	switch {
	case r.Stats.Errored > 0:
		r.Status = scenario.StatusError
	case r.Stats.Failed > 0:
		r.Status = scenario.StatusFailed
	default:
		r.Status = scenario.StatusPassed
	}
	return r
}

// Passed reports whether every scenario passed.
func (r *Report) Passed() bool {
	return r.Status == scenario.StatusPassed
}
