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

// Package mockbaremetal provides a testify mock of baremetal.Client.
package mockbaremetal

import (
	"context"

	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"
	"github.com/stretchr/testify/mock"

	"github.com/alexandremahdhaoui/bmnotify/pkg/baremetal"
)

var _ baremetal.Client = &MockClient{}

// MockClient is a mock for baremetal.Client.
type MockClient struct {
	mock.Mock
}

// NewMockClient returns a MockClient whose expectations are asserted on test cleanup.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockClient {
	m := &MockClient{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockClient) CreateNode(ctx context.Context, opts baremetal.NodeOpts) (*baremetal.Node, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*baremetal.Node), args.Error(1)
}

func (m *MockClient) GetNode(ctx context.Context, id string) (*baremetal.Node, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*baremetal.Node), args.Error(1)
}

func (m *MockClient) DeleteNode(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockClient) SetPowerState(ctx context.Context, id string, target nodes.TargetPowerState) error {
	return m.Called(ctx, id, target).Error(0)
}

func (m *MockClient) SetProvisionState(ctx context.Context, id string, target nodes.TargetProvisionState) error {
	return m.Called(ctx, id, target).Error(0)
}

func (m *MockClient) SetMaintenance(ctx context.Context, id, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *MockClient) UnsetMaintenance(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockClient) UpdateNode(ctx context.Context, id string, ops ...baremetal.Patch) (*baremetal.Node, error) {
	args := m.Called(ctx, id, ops)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*baremetal.Node), args.Error(1)
}

func (m *MockClient) CreateChassis(ctx context.Context, description string) (*baremetal.Chassis, error) {
	args := m.Called(ctx, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*baremetal.Chassis), args.Error(1)
}

func (m *MockClient) DeleteChassis(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockClient) UpdateChassis(ctx context.Context, id string, ops ...baremetal.Patch) (*baremetal.Chassis, error) {
	args := m.Called(ctx, id, ops)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*baremetal.Chassis), args.Error(1)
}

func (m *MockClient) CreatePort(ctx context.Context, nodeID, address string) (*baremetal.Port, error) {
	args := m.Called(ctx, nodeID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*baremetal.Port), args.Error(1)
}

func (m *MockClient) DeletePort(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockClient) UpdatePort(ctx context.Context, id string, ops ...baremetal.Patch) (*baremetal.Port, error) {
	args := m.Called(ctx, id, ops)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*baremetal.Port), args.Error(1)
}
