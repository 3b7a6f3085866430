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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandremahdhaoui/bmnotify/pkg/broker"
	"github.com/alexandremahdhaoui/bmnotify/pkg/scenario"
)

func TestParseAction(t *testing.T) {
	for _, a := range scenario.Actions {
		got, err := scenario.ParseAction(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	_, err := scenario.ParseAction("reboot")
	assert.ErrorIs(t, err, scenario.ErrUnsupportedAction)
}

func TestParseKind(t *testing.T) {
	got, err := scenario.ParseKind("port")
	require.NoError(t, err)
	assert.Equal(t, scenario.KindPort, got)

	_, err = scenario.ParseKind("rack")
	assert.ErrorIs(t, err, scenario.ErrUnknownKind)
}

func TestAction_Level(t *testing.T) {
	for _, a := range scenario.Actions {
		expected := broker.LevelInfo
		if a == scenario.ActionUpdate {
			expected = broker.LevelDebug
		}
		assert.Equal(t, expected, a.Level(), a)
	}
}

func TestExpectedEvents(t *testing.T) {
	for _, tc := range []struct {
		kind      scenario.Kind
		action    scenario.Action
		expected  []string
		expectErr error
	}{
		{kind: scenario.KindNode, action: scenario.ActionCreate, expected: []string{"baremetal.node.create.success"}},
		{
			kind:     scenario.KindNode,
			action:   scenario.ActionPowerState,
			expected: []string{"baremetal.node.power_set.start", "baremetal.node.power_set.end"},
		},
		{
			kind:     scenario.KindNode,
			action:   scenario.ActionProvisionState,
			expected: []string{"baremetal.node.provision_set.start", "baremetal.node.provision_set.end"},
		},
		{kind: scenario.KindNode, action: scenario.ActionMaintenance, expected: []string{"baremetal.node.maintenance_set.success"}},
		{kind: scenario.KindNode, action: scenario.ActionDelete, expected: []string{"baremetal.node.delete.success"}},
		{kind: scenario.KindNode, action: scenario.ActionUpdate, expected: []string{"baremetal.node.update.success"}},
		{kind: scenario.KindChassis, action: scenario.ActionCreate, expected: []string{"baremetal.chassis.create.end"}},
		{kind: scenario.KindChassis, action: scenario.ActionDelete, expected: []string{"baremetal.chassis.delete.end"}},
		{kind: scenario.KindChassis, action: scenario.ActionUpdate, expected: []string{"baremetal.chassis.update.end"}},
		{kind: scenario.KindPort, action: scenario.ActionCreate, expected: []string{"baremetal.port.create.end"}},
		{kind: scenario.KindPort, action: scenario.ActionDelete, expected: []string{"baremetal.port.delete.end"}},
		{kind: scenario.KindPort, action: scenario.ActionUpdate, expected: []string{"baremetal.port.update.end"}},
		{kind: scenario.KindChassis, action: scenario.ActionPowerState, expectErr: scenario.ErrUnsupportedAction},
		{kind: scenario.KindPort, action: scenario.ActionMaintenance, expectErr: scenario.ErrUnsupportedAction},
		{kind: scenario.KindNode, action: "reboot", expectErr: scenario.ErrUnsupportedAction},
		{kind: "rack", action: scenario.ActionCreate, expectErr: scenario.ErrUnknownKind},
	} {
		t.Run(string(tc.kind)+"/"+string(tc.action), func(t *testing.T) {
			got, err := scenario.ExpectedEvents(tc.kind, tc.action)
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	t.Run("returns a copy", func(t *testing.T) {
		got, err := scenario.ExpectedEvents(scenario.KindNode, scenario.ActionCreate)
		require.NoError(t, err)
		got[0] = "mutated"

		again, err := scenario.ExpectedEvents(scenario.KindNode, scenario.ActionCreate)
		require.NoError(t, err)
		assert.Equal(t, "baremetal.node.create.success", again[0])
	})
}

func TestMatrix(t *testing.T) {
	m := scenario.Matrix()
	require.Len(t, m, 12)

	assert.Equal(t, scenario.KindNode, m[0].Kind)
	assert.Equal(t, scenario.ActionCreate, m[0].Action)

	for _, e := range m {
		if e.Action == scenario.ActionUpdate {
			assert.Equal(t, broker.LevelDebug, e.Level)
		}
		assert.NotEmpty(t, e.Expected)
	}
}
