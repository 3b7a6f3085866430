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
	"slices"
	"time"

	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Suite is a set of notification scenarios loaded from YAML.
type Suite struct {
	// Name is the human-readable suite name
	Name string `yaml:"name"`

	// Description explains what the suite covers
	Description string `yaml:"description,omitempty"`

	// Defaults apply to every scenario that does not override them
	Defaults Defaults `yaml:"defaults,omitempty"`

	// Scenarios are run sequentially in file order
	Scenarios []Scenario `yaml:"scenarios"`
}

// Defaults holds suite-wide settings.
type Defaults struct {
	// ReceiveTimeout is the idle window ending a capture
	ReceiveTimeout DurationString `yaml:"receiveTimeout,omitempty"`

	// ProvisionTimeout bounds each wait for a stable provision state
	ProvisionTimeout DurationString `yaml:"provisionTimeout,omitempty"`

	// PollInterval is the provision state poll period
	PollInterval DurationString `yaml:"pollInterval,omitempty"`

	// Driver is the hardware driver of fixture nodes
	Driver string `yaml:"driver,omitempty"`

	// WaitForProvisionState waits for provision transitions to settle
	WaitForProvisionState bool `yaml:"waitForProvisionState,omitempty"`
}

// Scenario is one action on one freshly created resource.
type Scenario struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Kind        Kind     `yaml:"kind"`
	Action      Action   `yaml:"action"`
	Tags        []string `yaml:"tags,omitempty"`

	// ProvisionStates overrides the transitions of a provision-state action
	ProvisionStates []string `yaml:"provisionStates,omitempty"`

	// Expected overrides the event types the action must publish
	Expected []string `yaml:"expected,omitempty"`

	ReceiveTimeout        DurationString `yaml:"receiveTimeout,omitempty"`
	WaitForProvisionState *bool          `yaml:"waitForProvisionState,omitempty"`
}

// HasAnyTag reports whether the scenario carries one of tags. Any scenario
// matches an empty tag list.
func (s Scenario) HasAnyTag(tags ...string) bool {
	if len(tags) == 0 {
		return true
	}
	return sets.New(s.Tags...).HasAny(tags...)
}

// TargetProvisionStates returns the configured provision transitions.
func (s Scenario) TargetProvisionStates() []nodes.TargetProvisionState {
	out := make([]nodes.TargetProvisionState, 0, len(s.ProvisionStates))
	for _, state := range s.ProvisionStates {
		out = append(out, nodes.TargetProvisionState(state))
	}
	return out
}

// Filter returns the scenarios carrying one of tags.
func (s *Suite) Filter(tags ...string) []Scenario {
	out := make([]Scenario, 0, len(s.Scenarios))
	for _, sc := range s.Scenarios {
		if sc.HasAnyTag(tags...) {
			out = append(out, sc)
		}
	}
	return slices.Clip(out)
}

// DurationString is a wrapper for time.Duration that supports YAML unmarshaling.
type DurationString string

// Duration parses the DurationString into a time.Duration.
func (d DurationString) Duration() (time.Duration, error) {
	if d == "" {
		return 0, nil
	}
	return time.ParseDuration(string(d))
}

// DurationOr returns the parsed duration, or fallback when unset or invalid.
func (d DurationString) DurationOr(fallback time.Duration) time.Duration {
	v, err := d.Duration()
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
