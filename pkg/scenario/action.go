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

// Package scenario maps administrative actions on bare-metal resources to the
// notifications they must produce, runs them against a live service and
// checks the outcome.
package scenario

import (
	"errors"
	"fmt"
	"slices"

	"github.com/alexandremahdhaoui/bmnotify/pkg/broker"
)

var (
	// ErrUnsupportedAction is returned for unknown action tags and for actions
	// a resource kind does not support.
	ErrUnsupportedAction = errors.New("unsupported action")
	// ErrUnknownKind is returned for unknown resource kinds.
	ErrUnknownKind = errors.New("unknown resource kind")
)

// Kind is a bare-metal resource kind.
type Kind string

const (
	KindNode    Kind = "node"
	KindChassis Kind = "chassis"
	KindPort    Kind = "port"
)

// Kinds lists every resource kind.
var Kinds = []Kind{KindNode, KindChassis, KindPort}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !slices.Contains(Kinds, k) {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Action is an administrative operation performed on a resource.
type Action string

const (
	ActionCreate         Action = "create"
	ActionPowerState     Action = "power-state"
	ActionProvisionState Action = "provision-state"
	ActionMaintenance    Action = "maintenance"
	ActionDelete         Action = "delete"
	ActionUpdate         Action = "update"
)

// Actions lists every action.
var Actions = []Action{
	ActionCreate,
	ActionPowerState,
	ActionProvisionState,
	ActionMaintenance,
	ActionDelete,
	ActionUpdate,
}

// ParseAction returns the Action tagged s.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !slices.Contains(Actions, a) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAction, s)
	}
	return a, nil
}

// Level returns the notification stream the action's events are published on.
// Field updates are only published on the debug stream.
func (a Action) Level() broker.Level {
	if a == ActionUpdate {
		return broker.LevelDebug
	}
	return broker.LevelInfo
}

var expectedEvents = map[Kind]map[Action][]string{
	KindNode: {
		ActionCreate:         {"baremetal.node.create.success"},
		ActionPowerState:     {"baremetal.node.power_set.start", "baremetal.node.power_set.end"},
		ActionProvisionState: {"baremetal.node.provision_set.start", "baremetal.node.provision_set.end"},
		ActionMaintenance:    {"baremetal.node.maintenance_set.success"},
		ActionDelete:         {"baremetal.node.delete.success"},
		ActionUpdate:         {"baremetal.node.update.success"},
	},
	KindChassis: {
		ActionCreate: {"baremetal.chassis.create.end"},
		ActionDelete: {"baremetal.chassis.delete.end"},
		ActionUpdate: {"baremetal.chassis.update.end"},
	},
	KindPort: {
		ActionCreate: {"baremetal.port.create.end"},
		ActionDelete: {"baremetal.port.delete.end"},
		ActionUpdate: {"baremetal.port.update.end"},
	},
}

// ExpectedEvents returns the event types performing action on a resource of
// the given kind must publish.
func ExpectedEvents(kind Kind, action Action) ([]string, error) {
	byAction, ok := expectedEvents[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	events, ok := byAction[action]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %s", ErrUnsupportedAction, action, kind)
	}
	return slices.Clone(events), nil
}

// Entry is one supported (kind, action) pair.
type Entry struct {
	Kind     Kind
	Action   Action
	Level    broker.Level
	Expected []string
}

// Matrix returns every supported (kind, action) pair in declaration order.
func Matrix() []Entry {
	var out []Entry
	for _, k := range Kinds {
		for _, a := range Actions {
			events, err := ExpectedEvents(k, a)
			if err != nil {
				continue
			}
			out = append(out, Entry{Kind: k, Action: a, Level: a.Level(), Expected: events})
		}
	}
	return out
}
