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

package scenario_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandremahdhaoui/bmnotify/internal/util/fakes/busfake"
	"github.com/alexandremahdhaoui/bmnotify/internal/util/fakes/ironicfake"
	"github.com/alexandremahdhaoui/bmnotify/pkg/baremetal"
	"github.com/alexandremahdhaoui/bmnotify/pkg/broker"
	"github.com/alexandremahdhaoui/bmnotify/pkg/capture"
	"github.com/alexandremahdhaoui/bmnotify/pkg/notification"
	"github.com/alexandremahdhaoui/bmnotify/pkg/scenario"
)

type env struct {
	bus    *busfake.Bus
	fake   *ironicfake.Fake
	runner *scenario.Runner
	queues []*busfake.Queue

	metrics        *scenario.Metrics
	captureMetrics *capture.Metrics
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{bus: busfake.New()}
	e.fake = ironicfake.New(t, e.bus.Publish)

	client, err := baremetal.NewClient(context.Background(), baremetal.Config{Endpoint: e.fake.Endpoint()})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	e.metrics = scenario.NewMetrics(reg)
	e.captureMetrics = capture.NewMetrics(reg)

	subscriber := scenario.SubscriberFunc(func(level broker.Level) (scenario.Subscription, error) {
		q := e.bus.Bind(level)
		e.queues = append(e.queues, q)
		return q, nil
	})

	e.runner = scenario.NewRunner(client, subscriber, scenario.Options{
		ReceiveTimeout: 10 * time.Millisecond,
		PollInterval:   time.Millisecond,
		Metrics:        e.metrics,
		CaptureMetrics: e.captureMetrics,
	})
	return e
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()

	for _, entry := range scenario.Matrix() {
		t.Run(string(entry.Kind)+"/"+string(entry.Action), func(t *testing.T) {
			e := newEnv(t)

			res := e.runner.Run(ctx, scenario.Scenario{
				Name:   "matrix",
				Kind:   entry.Kind,
				Action: entry.Action,
			}, scenario.Defaults{})

			require.NoError(t, res.Err)
			assert.Equal(t, scenario.StatusPassed, res.Status)
			assert.True(t, res.Passed())
			assert.Equal(t, entry.Expected, res.Expected)
			assert.Subset(t, res.Observed, entry.Expected)
			assert.Equal(t, entry.Level.String(), res.Level)
			assert.NotEmpty(t, res.Target)

			// Every delivered message was acknowledged.
			require.Len(t, e.queues, 1)
			assert.Equal(t, 0, e.queues[0].Unacked())

			// Fixtures are removed.
			assert.Nil(t, e.fake.Node(res.Target))
			assert.Nil(t, e.fake.Chassis(res.Target))
			assert.Nil(t, e.fake.Port(res.Target))

			assert.Equal(t, 1.0, testutil.ToFloat64(
				e.metrics.Results.WithLabelValues(string(entry.Kind), string(entry.Action), "passed")))
		})
	}
}

func TestRunner_Run_NoCrossResourceLeakage(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	// Notification about another node, queued on the bus during the capture.
	other := notification.NewVersioned("baremetal.node.power_set.start", "NodeSetPowerStatePayload",
		map[string]any{"uuid": "someone-else"})
	body, err := notification.Encode(other)
	require.NoError(t, err)

	subscriber := scenario.SubscriberFunc(func(level broker.Level) (scenario.Subscription, error) {
		q := e.bus.Bind(level)
		e.bus.Publish(level, body)
		e.queues = append(e.queues, q)
		return q, nil
	})
	client, err := baremetal.NewClient(ctx, baremetal.Config{Endpoint: e.fake.Endpoint()})
	require.NoError(t, err)

	res := scenario.NewRunner(client, subscriber, scenario.Options{ReceiveTimeout: 10 * time.Millisecond}).
		Run(ctx, scenario.Scenario{Name: "create", Kind: scenario.KindNode, Action: scenario.ActionCreate}, scenario.Defaults{})

	require.Equal(t, scenario.StatusPassed, res.Status)
	assert.Equal(t, []string{"baremetal.node.create.success"}, res.Observed)

	// The foreign message was drained and acknowledged.
	assert.Equal(t, 2, e.queues[0].Acked())
	assert.Equal(t, 0, e.queues[0].Unacked())
}

func TestRunner_Run_MissingEvents(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.fake.Drop("baremetal.node.power_set.start")

	res := e.runner.Run(ctx, scenario.Scenario{
		Name:   "power",
		Kind:   scenario.KindNode,
		Action: scenario.ActionPowerState,
	}, scenario.Defaults{})

	assert.Equal(t, scenario.StatusFailed, res.Status)
	assert.Equal(t, []string{"baremetal.node.power_set.start"}, res.Missing)
	assert.Contains(t, res.Observed, "baremetal.node.power_set.end")

	var missing *scenario.MissingEventsError
	assert.ErrorAs(t, res.Err, &missing)
}

func TestRunner_Run_ExpectedOverride(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	res := e.runner.Run(ctx, scenario.Scenario{
		Name:     "chassis-create",
		Kind:     scenario.KindChassis,
		Action:   scenario.ActionCreate,
		Expected: []string{"baremetal.chassis.create.start", "baremetal.chassis.create.end"},
	}, scenario.Defaults{})

	require.Equal(t, scenario.StatusPassed, res.Status, res.Error)
	assert.Equal(t, []string{"baremetal.chassis.create.start", "baremetal.chassis.create.end"}, res.Expected)
}

func TestRunner_Run_WaitForProvisionState(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	res := e.runner.Run(ctx, scenario.Scenario{
		Name:            "provision",
		Kind:            scenario.KindNode,
		Action:          scenario.ActionProvisionState,
		ProvisionStates: []string{"active"},
	}, scenario.Defaults{WaitForProvisionState: true, ProvisionTimeout: "5s"})

	require.Equal(t, scenario.StatusPassed, res.Status, res.Error)

	// Polling requires at least two reads of the node.
	gets := 0
	for _, r := range e.fake.Requests() {
		if r.Method == "GET" {
			gets++
		}
	}
	assert.GreaterOrEqual(t, gets, 2)
}

func TestRunner_Run_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported action", func(t *testing.T) {
		e := newEnv(t)

		res := e.runner.Run(ctx, scenario.Scenario{
			Name:   "bad",
			Kind:   scenario.KindPort,
			Action: scenario.ActionMaintenance,
		}, scenario.Defaults{})

		assert.Equal(t, scenario.StatusError, res.Status)
		assert.ErrorIs(t, res.Err, scenario.ErrUnsupportedAction)
		assert.Empty(t, e.queues, "no subscription for an unsupported action")
	})

	t.Run("subscription failure", func(t *testing.T) {
		boom := errors.New("broker unreachable")
		client, err := baremetal.NewClient(ctx, baremetal.Config{Endpoint: "http://127.0.0.1:1/v1/"})
		require.NoError(t, err)

		res := scenario.NewRunner(client, scenario.SubscriberFunc(func(broker.Level) (scenario.Subscription, error) {
			return nil, boom
		}), scenario.Options{}).Run(ctx, scenario.Scenario{
			Name:   "create",
			Kind:   scenario.KindNode,
			Action: scenario.ActionCreate,
		}, scenario.Defaults{})

		assert.Equal(t, scenario.StatusError, res.Status)
		assert.ErrorIs(t, res.Err, boom)
	})

	t.Run("transport failure", func(t *testing.T) {
		e := newEnv(t)
		client, err := baremetal.NewClient(ctx, baremetal.Config{Endpoint: e.fake.Endpoint()})
		require.NoError(t, err)

		subscriber := scenario.SubscriberFunc(func(level broker.Level) (scenario.Subscription, error) {
			q := e.bus.Bind(level)
			require.NoError(t, q.Close())
			return q, nil
		})

		res := scenario.NewRunner(client, subscriber, scenario.Options{}).Run(ctx, scenario.Scenario{
			Name:   "create",
			Kind:   scenario.KindNode,
			Action: scenario.ActionCreate,
		}, scenario.Defaults{})

		assert.Equal(t, scenario.StatusError, res.Status)
		assert.ErrorIs(t, res.Err, broker.ErrSubscriptionClosed)
		assert.Nil(t, e.fake.Node(res.Target), "fixture cleaned up")
	})
}

func TestRunner_RunSuite(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	suite := &scenario.Suite{
		Name: "suite",
		Scenarios: []scenario.Scenario{
			{Name: "node-create", Kind: scenario.KindNode, Action: scenario.ActionCreate, Tags: []string{"smoke"}},
			{Name: "node-delete", Kind: scenario.KindNode, Action: scenario.ActionDelete},
			{Name: "chassis-update", Kind: scenario.KindChassis, Action: scenario.ActionUpdate, Tags: []string{"smoke"}},
		},
	}

	results := e.runner.RunSuite(ctx, suite, "smoke")
	require.Len(t, results, 2)
	assert.Equal(t, "node-create", results[0].Name)
	assert.Equal(t, "chassis-update", results[1].Name)
	for _, r := range results {
		assert.Equal(t, scenario.StatusPassed, r.Status, r.Error)
	}

	t.Run("stops when the context is done", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		assert.Empty(t, e.runner.RunSuite(cctx, suite))
	})
}
