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

package baremetal

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/ports"
	"k8s.io/utils/ptr"
)

// Chassis is the chassis representation returned by the management API.
type Chassis struct {
	UUID        string            `json:"uuid"`
	Description string            `json:"description"`
	Extra       map[string]string `json:"extra"`
}

type chassisCreateRequest struct {
	Description string `json:"description,omitempty"`
}

type patchOperation struct {
	Op    PatchOp `json:"op"`
	Path  string  `json:"path"`
	Value any     `json:"value,omitempty"`
}

func toPatchBody(ops []Patch) []patchOperation {
	body := make([]patchOperation, 0, len(ops))
	for _, op := range ops {
		body = append(body, patchOperation{Op: op.Op, Path: op.Path, Value: op.Value})
	}
	return body
}

func (c *GopherClient) CreateChassis(ctx context.Context, description string) (*Chassis, error) {
	var chassis Chassis
	_, err := c.sc.Post(ctx, c.sc.ServiceURL("chassis"), chassisCreateRequest{Description: description}, &chassis, &gophercloud.RequestOpts{
		OkCodes: []int{201},
	})
	if err != nil {
		return nil, fmt.Errorf("creating chassis: %w", err)
	}
	return &chassis, nil
}

func (c *GopherClient) DeleteChassis(ctx context.Context, id string) error {
	_, err := c.sc.Delete(ctx, c.sc.ServiceURL("chassis", id), &gophercloud.RequestOpts{
		OkCodes: []int{204},
	})
	if err != nil {
		return fmt.Errorf("deleting chassis %s: %w", id, err)
	}
	return nil
}

func (c *GopherClient) UpdateChassis(ctx context.Context, id string, ops ...Patch) (*Chassis, error) {
	var chassis Chassis
	_, err := c.sc.Patch(ctx, c.sc.ServiceURL("chassis", id), toPatchBody(ops), &chassis, &gophercloud.RequestOpts{
		OkCodes: []int{200},
	})
	if err != nil {
		return nil, fmt.Errorf("updating chassis %s: %w", id, err)
	}
	return &chassis, nil
}

func (c *GopherClient) CreatePort(ctx context.Context, nodeID, address string) (*Port, error) {
	port, err := ports.Create(ctx, c.sc, ports.CreateOpts{
		NodeUUID:   nodeID,
		Address:    address,
		PXEEnabled: ptr.To(true),
	}).Extract()
	if err != nil {
		return nil, fmt.Errorf("creating port %s on node %s: %w", address, nodeID, err)
	}
	return port, nil
}

func (c *GopherClient) DeletePort(ctx context.Context, id string) error {
	if err := ports.Delete(ctx, c.sc, id).ExtractErr(); err != nil {
		return fmt.Errorf("deleting port %s: %w", id, err)
	}
	return nil
}

func (c *GopherClient) UpdatePort(ctx context.Context, id string, ops ...Patch) (*Port, error) {
	opts := make(ports.UpdateOpts, 0, len(ops))
	for _, op := range ops {
		opts = append(opts, ports.UpdateOperation{
			Op:    ports.UpdateOp(op.Op),
			Path:  op.Path,
			Value: op.Value,
		})
	}

	port, err := ports.Update(ctx, c.sc, id, opts).Extract()
	if err != nil {
		return nil, fmt.Errorf("updating port %s: %w", id, err)
	}
	return port, nil
}
