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

package baremetal_test

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandremahdhaoui/bmnotify/internal/util/certutil"
	"github.com/alexandremahdhaoui/bmnotify/internal/util/fakes/ironicfake"
	"github.com/alexandremahdhaoui/bmnotify/pkg/baremetal"
)

func newClient(t *testing.T, fake *ironicfake.Fake) *baremetal.GopherClient {
	t.Helper()

	c, err := baremetal.NewClient(context.Background(), baremetal.Config{Endpoint: fake.Endpoint()})
	require.NoError(t, err)
	return c
}

func TestNewServiceClient(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name         string
		cfg          baremetal.Config
		microversion string
		expectErr    error
	}{
		{
			name:         "noauth by default",
			cfg:          baremetal.Config{Endpoint: "http://localhost:6385/v1/"},
			microversion: baremetal.DefaultMicroversion,
		},
		{
			name: "http basic with explicit microversion",
			cfg: baremetal.Config{
				Endpoint:     "http://localhost:6385/v1/",
				Auth:         baremetal.AuthHTTPBasic,
				User:         "admin",
				Password:     "secret",
				Microversion: "1.72",
			},
			microversion: "1.72",
		},
		{
			name:      "unsupported",
			cfg:       baremetal.Config{Endpoint: "http://localhost:6385/v1/", Auth: "kerberos"},
			expectErr: baremetal.ErrUnsupportedAuth,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sc, err := baremetal.NewServiceClient(ctx, tc.cfg)
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.microversion, sc.Microversion)
			assert.Equal(t, "http://localhost:6385/v1/nodes", sc.ServiceURL("nodes"))
		})
	}
}

func TestGopherClient_Nodes(t *testing.T) {
	ctx := context.Background()
	fake := ironicfake.New(t, nil)
	c := newClient(t, fake)

	node, err := c.CreateNode(ctx, baremetal.NodeOpts{Name: "node-0", Driver: "fake-hardware"})
	require.NoError(t, err)
	require.NotEmpty(t, node.UUID)
	assert.Equal(t, "node-0", node.Name)

	got, err := c.GetNode(ctx, node.UUID)
	require.NoError(t, err)
	assert.Equal(t, "enroll", got.ProvisionState)

	require.NoError(t, c.SetPowerState(ctx, node.UUID, nodes.PowerOff))
	assert.Equal(t, "power off", fake.Node(node.UUID)["power_state"])

	require.NoError(t, c.SetMaintenance(ctx, node.UUID, "testing"))
	assert.Equal(t, true, fake.Node(node.UUID)["maintenance"])
	require.NoError(t, c.UnsetMaintenance(ctx, node.UUID))
	assert.Equal(t, false, fake.Node(node.UUID)["maintenance"])

	updated, err := c.UpdateNode(ctx, node.UUID, baremetal.Replace("/instance_uuid", "4c1e2d6e-0000-4000-8000-000000000000"))
	require.NoError(t, err)
	assert.Equal(t, "4c1e2d6e-0000-4000-8000-000000000000", updated.InstanceUUID)

	_, err = c.UpdateNode(ctx, node.UUID, baremetal.Remove("/instance_uuid"))
	require.NoError(t, err)
	assert.NotContains(t, fake.Node(node.UUID), "instance_uuid")

	require.NoError(t, c.DeleteNode(ctx, node.UUID))
	assert.Nil(t, fake.Node(node.UUID))

	_, err = c.GetNode(ctx, node.UUID)
	assert.True(t, baremetal.IsNotFound(err))
}

func TestGopherClient_ChassisAndPorts(t *testing.T) {
	ctx := context.Background()
	fake := ironicfake.New(t, nil)
	c := newClient(t, fake)

	chassis, err := c.CreateChassis(ctx, "rack-1")
	require.NoError(t, err)
	require.NotEmpty(t, chassis.UUID)
	assert.Equal(t, "rack-1", chassis.Description)

	chassis, err = c.UpdateChassis(ctx, chassis.UUID, baremetal.Replace("/description", "rack-2"))
	require.NoError(t, err)
	assert.Equal(t, "rack-2", chassis.Description)

	node, err := c.CreateNode(ctx, baremetal.NodeOpts{Name: "node-0"})
	require.NoError(t, err)

	_, err = c.UpdateNode(ctx, node.UUID, baremetal.Replace("/chassis_uuid", chassis.UUID))
	require.NoError(t, err)
	assert.Equal(t, chassis.UUID, fake.Node(node.UUID)["chassis_uuid"])

	port, err := c.CreatePort(ctx, node.UUID, "02:00:00:00:00:01")
	require.NoError(t, err)
	assert.Equal(t, node.UUID, port.NodeUUID)
	assert.Equal(t, true, fake.Port(port.UUID)["pxe_enabled"])

	port, err = c.UpdatePort(ctx, port.UUID, baremetal.Patch{Op: baremetal.PatchAdd, Path: "/extra/bmnotify", Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", port.Extra["bmnotify"])

	require.NoError(t, c.DeletePort(ctx, port.UUID))
	require.NoError(t, c.DeleteNode(ctx, node.UUID))
	require.NoError(t, c.DeleteChassis(ctx, chassis.UUID))

	err = c.DeleteChassis(ctx, chassis.UUID)
	require.Error(t, err)
	assert.True(t, baremetal.IsNotFound(err))

	err = c.DeletePort(ctx, port.UUID)
	assert.True(t, baremetal.IsNotFound(err))
}

func TestGopherClient_TLS(t *testing.T) {
	ctx := context.Background()

	ca, err := certutil.NewCA()
	require.NoError(t, err)
	cert, err := ca.NewTLSCertificate("127.0.0.1")
	require.NoError(t, err)

	fake := ironicfake.NewTLS(t, nil, cert)

	trusted, err := baremetal.NewClient(ctx, baremetal.Config{
		Endpoint: fake.Endpoint(),
		TLS:      &tls.Config{RootCAs: ca.Pool(), MinVersion: tls.VersionTLS12},
	})
	require.NoError(t, err)

	_, err = trusted.CreateChassis(ctx, "rack-tls")
	require.NoError(t, err)

	untrusted, err := baremetal.NewClient(ctx, baremetal.Config{Endpoint: fake.Endpoint()})
	require.NoError(t, err)

	_, err = untrusted.CreateChassis(ctx, "rack-tls")
	assert.Error(t, err, "the system pool should not trust the test CA")
}

func TestGopherClient_HTTPBasic(t *testing.T) {
	ctx := context.Background()
	fake := ironicfake.NewWithBasicAuth(t, nil, "admin", "secret")

	good, err := baremetal.NewClient(ctx, baremetal.Config{
		Endpoint: fake.Endpoint(),
		Auth:     baremetal.AuthHTTPBasic,
		User:     "admin",
		Password: "secret",
	})
	require.NoError(t, err)

	_, err = good.CreateChassis(ctx, "rack")
	assert.NoError(t, err)

	bad, err := baremetal.NewClient(ctx, baremetal.Config{
		Endpoint: fake.Endpoint(),
		Auth:     baremetal.AuthHTTPBasic,
		User:     "admin",
		Password: "wrong",
	})
	require.NoError(t, err)

	_, err = bad.CreateChassis(ctx, "rack")
	assert.Error(t, err)
	assert.False(t, baremetal.IsNotFound(err))
}

func TestIsTransitional(t *testing.T) {
	for state, expected := range map[string]bool{
		"deploying":      true,
		"cleaning":       true,
		"wait call-back": true,
		"clean wait":     true,
		"active":         false,
		"available":      false,
		"deploy failed":  false,
		"enroll":         false,
	} {
		t.Run(state, func(t *testing.T) {
			assert.Equal(t, expected, baremetal.IsTransitional(state))
		})
	}
}

func TestWaitForStableProvisionState(t *testing.T) {
	ctx := context.Background()
	fake := ironicfake.New(t, nil)
	c := newClient(t, fake)

	node, err := c.CreateNode(ctx, baremetal.NodeOpts{Name: "node-0"})
	require.NoError(t, err)

	t.Run("settles", func(t *testing.T) {
		require.NoError(t, c.SetProvisionState(ctx, node.UUID, nodes.TargetActive))

		state, err := baremetal.WaitForStableProvisionState(ctx, c, node.UUID, 10*time.Millisecond, 5*time.Second, logr.Discard())
		require.NoError(t, err)
		assert.Equal(t, "active", state)
	})

	t.Run("unknown node", func(t *testing.T) {
		_, err := baremetal.WaitForStableProvisionState(ctx, c, "missing", 10*time.Millisecond, time.Second, logr.Discard())
		require.Error(t, err)
		assert.True(t, baremetal.IsNotFound(err))
	})
}

func TestResponseCodeHelpers(t *testing.T) {
	notFound := gophercloud.ErrUnexpectedResponseCode{Actual: http.StatusNotFound}
	conflict := gophercloud.ErrUnexpectedResponseCode{Actual: http.StatusConflict}

	assert.True(t, baremetal.IsNotFound(notFound))
	assert.True(t, baremetal.IsNotFound(fmt.Errorf("deleting: %w", notFound)))
	assert.False(t, baremetal.IsNotFound(conflict))
	assert.False(t, baremetal.IsNotFound(nil))

	assert.True(t, baremetal.IsConflict(conflict))
	assert.False(t, baremetal.IsConflict(notFound))
	assert.False(t, baremetal.IsConflict(assert.AnError))
}
