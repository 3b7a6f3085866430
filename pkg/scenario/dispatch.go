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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"

	"github.com/alexandremahdhaoui/bmnotify/internal/util/datagen"
	"github.com/alexandremahdhaoui/bmnotify/pkg/baremetal"
)

const (
	DefaultDriver           = "fake-hardware"
	DefaultPollInterval     = 2 * time.Second
	DefaultProvisionTimeout = 5 * time.Minute

	maintenanceReason = "bmnotify: maintenance notification check"
	portExtraPath     = "/extra/bmnotify"
)

// DefaultProvisionStates are the transitions of a provision-state action.
var DefaultProvisionStates = []nodes.TargetProvisionState{nodes.TargetActive, nodes.TargetDeleted}

// Target is the resource an action is performed on and whose notifications
// are captured.
type Target struct {
	Kind Kind
	ID   string
	// NodeID is the parent node of a port.
	NodeID string
}

// Cleanup undoes part of a scenario. Cleanups run in reverse registration order.
type Cleanup func(ctx context.Context) error

// DispatchOptions tunes how actions are performed.
type DispatchOptions struct {
	// ProvisionStates overrides DefaultProvisionStates.
	ProvisionStates []nodes.TargetProvisionState
	// WaitForProvisionState polls the node after each transition until it
	// leaves transitional states.
	WaitForProvisionState bool
	PollInterval          time.Duration
	ProvisionTimeout      time.Duration

	Logger logr.Logger
}

// Dispatcher performs actions through a management client.
type Dispatcher struct {
	client baremetal.Client
	opts   DispatchOptions
}

// NewDispatcher returns a Dispatcher using client.
func NewDispatcher(client baremetal.Client, opts DispatchOptions) *Dispatcher {
	if len(opts.ProvisionStates) == 0 {
		opts.ProvisionStates = DefaultProvisionStates
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ProvisionTimeout <= 0 {
		opts.ProvisionTimeout = DefaultProvisionTimeout
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	return &Dispatcher{client: client, opts: opts}
}

// Dispatch performs action on target and returns the cleanups it
// registered. Pairs without expected events are rejected before any call.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, target Target) ([]Cleanup, error) {
	if _, err := ExpectedEvents(target.Kind, action); err != nil {
		return nil, err
	}

	log := d.opts.Logger.WithValues("kind", target.Kind, "action", action, "target", target.ID)
	log.V(1).Info("dispatching action")

	var (
		cleanups []Cleanup
		err      error
	)
	switch action {
	case ActionCreate:
		// the fixture creation is the action.
	case ActionPowerState:
		err = d.client.SetPowerState(ctx, target.ID, nodes.PowerOff)
	case ActionProvisionState:
		err = d.provision(ctx, target.ID, log)
	case ActionMaintenance:
		cleanups, err = d.maintenance(ctx, target.ID)
	case ActionDelete:
		err = d.delete(ctx, target)
	case ActionUpdate:
		cleanups, err = d.update(ctx, target)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}
	if err != nil {
		return cleanups, fmt.Errorf("performing %s on %s %s: %w", action, target.Kind, target.ID, err)
	}
	return cleanups, nil
}

func (d *Dispatcher) provision(ctx context.Context, id string, log logr.Logger) error {
	for _, state := range d.opts.ProvisionStates {
		if err := d.client.SetProvisionState(ctx, id, state); err != nil {
			return err
		}
		if !d.opts.WaitForProvisionState {
			continue
		}

		reached, err := baremetal.WaitForStableProvisionState(ctx, d.client, id, d.opts.PollInterval, d.opts.ProvisionTimeout, log)
		if err != nil {
			return err
		}
		log.V(1).Info("provision state settled", "requested", state, "reached", reached)
	}
	return nil
}

func (d *Dispatcher) maintenance(ctx context.Context, id string) ([]Cleanup, error) {
	if err := d.client.SetMaintenance(ctx, id, maintenanceReason); err != nil {
		return nil, err
	}

	return []Cleanup{func(ctx context.Context) error {
		return ignoreNotFound(d.client.UnsetMaintenance(ctx, id))
	}}, nil
}

func (d *Dispatcher) delete(ctx context.Context, target Target) error {
	switch target.Kind {
	case KindNode:
		return d.client.DeleteNode(ctx, target.ID)
	case KindChassis:
		return d.client.DeleteChassis(ctx, target.ID)
	case KindPort:
		return d.client.DeletePort(ctx, target.ID)
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, target.Kind)
}

func (d *Dispatcher) update(ctx context.Context, target Target) ([]Cleanup, error) {
	var err error

	switch target.Kind {
	case KindNode:
		_, err = d.client.UpdateNode(ctx, target.ID, baremetal.Replace("/instance_uuid", datagen.RandUUID()))
		if err != nil {
			return nil, err
		}
		return []Cleanup{func(ctx context.Context) error {
			_, err := d.client.UpdateNode(ctx, target.ID, baremetal.Remove("/instance_uuid"))
			return ignoreNotFound(err)
		}}, nil
	case KindChassis:
		_, err = d.client.UpdateChassis(ctx, target.ID, baremetal.Replace("/description", datagen.RandName("bmnotify")))
	case KindPort:
		_, err = d.client.UpdatePort(ctx, target.ID, baremetal.Patch{
			Op:    baremetal.PatchAdd,
			Path:  portExtraPath,
			Value: datagen.RandName("bmnotify"),
		})
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownKind, target.Kind)
	}
	return nil, err
}

// CreateFixture creates a fresh resource of the given kind, with its parents,
// and returns the cleanups deleting them. Deleting an already deleted
// resource is not an error.
func CreateFixture(ctx context.Context, client baremetal.Client, kind Kind, driver string) (Target, []Cleanup, error) {
	if driver == "" {
		driver = DefaultDriver
	}

	switch kind {
	case KindChassis:
		chassis, err := client.CreateChassis(ctx, datagen.RandName("bmnotify"))
		if err != nil {
			return Target{}, nil, err
		}
		return Target{Kind: kind, ID: chassis.UUID}, []Cleanup{func(ctx context.Context) error {
			return ignoreNotFound(client.DeleteChassis(ctx, chassis.UUID))
		}}, nil

	case KindNode, KindPort:
		node, err := client.CreateNode(ctx, baremetal.NodeOpts{Name: datagen.RandName("bmnotify"), Driver: driver})
		if err != nil {
			return Target{}, nil, err
		}
		cleanups := []Cleanup{func(ctx context.Context) error {
			return deleteNode(ctx, client, node.UUID)
		}}
		if kind == KindNode {
			return Target{Kind: kind, ID: node.UUID}, cleanups, nil
		}

		port, err := client.CreatePort(ctx, node.UUID, datagen.RandMAC())
		if err != nil {
			return Target{}, cleanups, err
		}
		cleanups = append(cleanups, func(ctx context.Context) error {
			return ignoreNotFound(client.DeletePort(ctx, port.UUID))
		})
		return Target{Kind: kind, ID: port.UUID, NodeID: node.UUID}, cleanups, nil
	}

	return Target{}, nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// deleteNode deletes a fixture node. A node the service still works on is
// given time to settle once before retrying.
func deleteNode(ctx context.Context, client baremetal.Client, id string) error {
	err := client.DeleteNode(ctx, id)
	if !baremetal.IsConflict(err) {
		return ignoreNotFound(err)
	}

	if _, err := baremetal.WaitForStableProvisionState(
		ctx, client, id, DefaultPollInterval, DefaultProvisionTimeout, logr.Discard(),
	); err != nil {
		return ignoreNotFound(err)
	}
	return ignoreNotFound(client.DeleteNode(ctx, id))
}

// RunCleanups runs cleanups in reverse order and joins their errors.
func RunCleanups(ctx context.Context, cleanups []Cleanup) error {
	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func ignoreNotFound(err error) error {
	if err == nil || baremetal.IsNotFound(err) {
		return nil
	}
	return err
}
