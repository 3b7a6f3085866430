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

// Package baremetal wraps the bare-metal service's management API with the
// operations the notification scenarios perform.
package baremetal

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/httpbasic"
	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/noauth"
	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"
	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/ports"
)

// Authentication strategies.
const (
	AuthNone      = "noauth"
	AuthHTTPBasic = "http_basic"
	AuthKeystone  = "keystone"
)

// DefaultMicroversion is recent enough for chassis, port and maintenance
// operations and for the node fields used by the scenarios.
const DefaultMicroversion = "1.50"

// ErrUnsupportedAuth indicates an unknown authentication strategy.
var ErrUnsupportedAuth = errors.New("unsupported authentication strategy")

// Client is the subset of the management API used by the scenarios.
type Client interface {
	CreateNode(ctx context.Context, opts NodeOpts) (*Node, error)
	GetNode(ctx context.Context, id string) (*Node, error)
	DeleteNode(ctx context.Context, id string) error
	SetPowerState(ctx context.Context, id string, target nodes.TargetPowerState) error
	SetProvisionState(ctx context.Context, id string, target nodes.TargetProvisionState) error
	SetMaintenance(ctx context.Context, id, reason string) error
	UnsetMaintenance(ctx context.Context, id string) error
	UpdateNode(ctx context.Context, id string, ops ...Patch) (*Node, error)

	CreateChassis(ctx context.Context, description string) (*Chassis, error)
	DeleteChassis(ctx context.Context, id string) error
	UpdateChassis(ctx context.Context, id string, ops ...Patch) (*Chassis, error)

	CreatePort(ctx context.Context, nodeID, address string) (*Port, error)
	DeletePort(ctx context.Context, id string) error
	UpdatePort(ctx context.Context, id string, ops ...Patch) (*Port, error)
}

// Node is the node representation returned by the management API.
type Node = nodes.Node

// Port is the port representation returned by the management API.
type Port = ports.Port

// NodeOpts are the fields set when enrolling a node.
type NodeOpts struct {
	Name       string
	Driver     string
	DriverInfo map[string]any
}

// PatchOp is a JSON patch operation.
type PatchOp string

const (
	PatchAdd     PatchOp = "add"
	PatchReplace PatchOp = "replace"
	PatchRemove  PatchOp = "remove"
)

// Patch is a single JSON patch operation against a resource.
type Patch struct {
	Op    PatchOp
	Path  string
	Value any
}

// Replace returns a replace operation on path.
func Replace(path string, value any) Patch {
	return Patch{Op: PatchReplace, Path: path, Value: value}
}

// Remove returns a remove operation on path.
func Remove(path string) Patch {
	return Patch{Op: PatchRemove, Path: path}
}

// Config describes how to reach the management API.
type Config struct {
	Endpoint     string
	Auth         string
	User         string
	Password     string
	Microversion string

	// Keystone settings, used when Auth is AuthKeystone.
	AuthURL     string
	ProjectName string
	DomainName  string
	Region      string

	// TLS, when set, is used for every request, including authentication.
	TLS *tls.Config
}

// NewServiceClient builds a gophercloud service client for the bare-metal API.
func NewServiceClient(ctx context.Context, cfg Config) (*gophercloud.ServiceClient, error) {
	var (
		client *gophercloud.ServiceClient
		err    error
	)

	switch cfg.Auth {
	case AuthNone, "":
		client, err = noauth.NewBareMetalNoAuth(noauth.EndpointOpts{
			IronicEndpoint: cfg.Endpoint,
		})
	case AuthHTTPBasic:
		client, err = httpbasic.NewBareMetalHTTPBasic(httpbasic.EndpointOpts{
			IronicEndpoint:     cfg.Endpoint,
			IronicUser:         cfg.User,
			IronicUserPassword: cfg.Password,
		})
	case AuthKeystone:
		var provider *gophercloud.ProviderClient
		provider, err = openstack.NewClient(cfg.AuthURL)
		if err != nil {
			return nil, fmt.Errorf("creating identity client: %w", err)
		}
		if cfg.TLS != nil {
			provider.HTTPClient = newHTTPClient(cfg.TLS)
		}
		err = openstack.Authenticate(ctx, provider, gophercloud.AuthOptions{
			IdentityEndpoint: cfg.AuthURL,
			Username:         cfg.User,
			Password:         cfg.Password,
			TenantName:       cfg.ProjectName,
			DomainName:       cfg.DomainName,
		})
		if err != nil {
			return nil, fmt.Errorf("authenticating against %s: %w", cfg.AuthURL, err)
		}
		client, err = openstack.NewBareMetalV1(provider, gophercloud.EndpointOpts{Region: cfg.Region})
		if err == nil && cfg.Endpoint != "" {
			client.Endpoint = gophercloud.NormalizeURL(cfg.Endpoint)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAuth, cfg.Auth)
	}
	if err != nil {
		return nil, fmt.Errorf("creating bare metal client: %w", err)
	}

	if cfg.TLS != nil {
		client.ProviderClient.HTTPClient = newHTTPClient(cfg.TLS)
	}

	client.Microversion = cfg.Microversion
	if client.Microversion == "" {
		client.Microversion = DefaultMicroversion
	}
	return client, nil
}

func newHTTPClient(tlsConfig *tls.Config) http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return http.Client{Transport: transport}
}

// GopherClient implements Client on top of a gophercloud service client.
type GopherClient struct {
	sc *gophercloud.ServiceClient
}

// NewClient returns a Client for the configured endpoint.
func NewClient(ctx context.Context, cfg Config) (*GopherClient, error) {
	sc, err := NewServiceClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &GopherClient{sc: sc}, nil
}

// IsNotFound reports whether err is a 404 from the management API.
func IsNotFound(err error) bool {
	return gophercloud.ResponseCodeIs(err, http.StatusNotFound)
}

// IsConflict reports whether err is a 409 from the management API, e.g. when
// deleting a node that is still being cleaned.
func IsConflict(err error) bool {
	return gophercloud.ResponseCodeIs(err, http.StatusConflict)
}

func (c *GopherClient) CreateNode(ctx context.Context, opts NodeOpts) (*Node, error) {
	node, err := nodes.Create(ctx, c.sc, nodes.CreateOpts{
		Name:       opts.Name,
		Driver:     opts.Driver,
		DriverInfo: opts.DriverInfo,
	}).Extract()
	if err != nil {
		return nil, fmt.Errorf("creating node %q: %w", opts.Name, err)
	}
	return node, nil
}

func (c *GopherClient) GetNode(ctx context.Context, id string) (*Node, error) {
	node, err := nodes.Get(ctx, c.sc, id).Extract()
	if err != nil {
		return nil, fmt.Errorf("getting node %s: %w", id, err)
	}
	return node, nil
}

func (c *GopherClient) DeleteNode(ctx context.Context, id string) error {
	if err := nodes.Delete(ctx, c.sc, id).ExtractErr(); err != nil {
		return fmt.Errorf("deleting node %s: %w", id, err)
	}
	return nil
}

func (c *GopherClient) SetPowerState(ctx context.Context, id string, target nodes.TargetPowerState) error {
	err := nodes.ChangePowerState(ctx, c.sc, id, nodes.PowerStateOpts{Target: target}).ExtractErr()
	if err != nil {
		return fmt.Errorf("setting power state of node %s to %q: %w", id, target, err)
	}
	return nil
}

func (c *GopherClient) SetProvisionState(ctx context.Context, id string, target nodes.TargetProvisionState) error {
	err := nodes.ChangeProvisionState(ctx, c.sc, id, nodes.ProvisionStateOpts{Target: target}).ExtractErr()
	if err != nil {
		return fmt.Errorf("setting provision state of node %s to %q: %w", id, target, err)
	}
	return nil
}

func (c *GopherClient) SetMaintenance(ctx context.Context, id, reason string) error {
	err := nodes.SetMaintenance(ctx, c.sc, id, nodes.MaintenanceOpts{Reason: reason}).ExtractErr()
	if err != nil {
		return fmt.Errorf("setting maintenance on node %s: %w", id, err)
	}
	return nil
}

func (c *GopherClient) UnsetMaintenance(ctx context.Context, id string) error {
	if err := nodes.UnsetMaintenance(ctx, c.sc, id).ExtractErr(); err != nil {
		return fmt.Errorf("unsetting maintenance on node %s: %w", id, err)
	}
	return nil
}

func (c *GopherClient) UpdateNode(ctx context.Context, id string, ops ...Patch) (*Node, error) {
	opts := make(nodes.UpdateOpts, 0, len(ops))
	for _, op := range ops {
		opts = append(opts, nodes.UpdateOperation{
			Op:    nodes.UpdateOp(op.Op),
			Path:  op.Path,
			Value: op.Value,
		})
	}

	node, err := nodes.Update(ctx, c.sc, id, opts).Extract()
	if err != nil {
		return nil, fmt.Errorf("updating node %s: %w", id, err)
	}
	return node, nil
}
