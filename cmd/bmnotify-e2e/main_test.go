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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandremahdhaoui/bmnotify/internal/util/fakes/busfake"
	"github.com/alexandremahdhaoui/bmnotify/internal/util/fakes/ironicfake"
	"github.com/alexandremahdhaoui/bmnotify/pkg/baremetal"
	"github.com/alexandremahdhaoui/bmnotify/pkg/broker"
	"github.com/alexandremahdhaoui/bmnotify/pkg/report"
	"github.com/alexandremahdhaoui/bmnotify/pkg/scenario"
)

const testSuite = `
name: cli
defaults:
  receiveTimeout: 10ms
scenarios:
  - name: node-power
    kind: node
    action: power-state
    tags: [smoke]
  - name: chassis-update
    kind: chassis
    action: update
`

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func executeCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestActionsCmd(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		out, _, err := executeCmd(t, "actions")
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, len(scenario.Matrix())+1)
		assert.Contains(t, lines[0], "KIND")
		assert.Contains(t, out, "baremetal.node.power_set.start,baremetal.node.power_set.end")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := executeCmd(t, "actions", "-o", "json")
		require.NoError(t, err)

		var rows []matrixRow
		require.NoError(t, json.Unmarshal([]byte(out), &rows))
		require.Len(t, rows, len(scenario.Matrix()))
		assert.Contains(t, rows, matrixRow{
			Kind:     "port",
			Action:   "update",
			Level:    "debug",
			Expected: []string{"baremetal.port.update.end"},
		})
	})

	t.Run("yaml", func(t *testing.T) {
		out, _, err := executeCmd(t, "actions", "--output", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "kind: chassis")
		assert.Contains(t, out, "- baremetal.chassis.delete.end")
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, _, err := executeCmd(t, "actions", "-o", "xml")
		assert.ErrorContains(t, err, `unsupported output format "xml"`)
	})
}

func TestValidateCmd(t *testing.T) {
	valid := writeFile(t, "valid.yaml", testSuite)
	invalid := writeFile(t, "invalid.yaml", `
name: broken
scenarios:
  - name: chassis-power
    kind: chassis
    action: power-state
`)

	out, _, err := executeCmd(t, "validate", valid)
	require.NoError(t, err)
	assert.Equal(t, "✓ cli: 2 scenario(s)\n", out)

	out, errOut, err := executeCmd(t, "validate", valid, invalid)
	require.Error(t, err)
	assert.Contains(t, out, "✓ cli")
	assert.Contains(t, errOut, "✗")
	assert.Contains(t, errOut, "invalid.yaml")

	_, _, err = executeCmd(t, "validate")
	assert.Error(t, err, "at least one suite is required")
}

func TestRunCmd_ConfigErrors(t *testing.T) {
	_, _, err := executeCmd(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	t.Setenv("BMNOTIFY_CONFIG_PATH", "")
	_, _, err = executeCmd(t, "run")
	assert.ErrorContains(t, err, "BMNOTIFY_CONFIG_PATH")
}

type harness struct {
	fake   *ironicfake.Fake
	runner *scenario.Runner
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	bus := busfake.New()
	fake := ironicfake.New(t, bus.Publish)

	client, err := baremetal.NewClient(context.Background(), baremetal.Config{Endpoint: fake.Endpoint()})
	require.NoError(t, err)

	subscriber := scenario.SubscriberFunc(func(level broker.Level) (scenario.Subscription, error) {
		return bus.Bind(level), nil
	})

	return &harness{
		fake:   fake,
		runner: scenario.NewRunner(client, subscriber, scenario.Options{PollInterval: time.Millisecond}),
	}
}

func loadTestSuite(t *testing.T) *scenario.Suite {
	t.Helper()

	suite, err := scenario.Parse([]byte(testSuite))
	require.NoError(t, err)
	return suite
}

func TestExecuteAndFinish(t *testing.T) {
	ctx := context.Background()

	t.Run("passing suite writes the report", func(t *testing.T) {
		h := newHarness(t)
		dir := t.TempDir()

		rep := execute(ctx, logr.Discard(), h.runner, loadTestSuite(t), report.SuiteInfo{Name: "cli"})
		require.Equal(t, 2, rep.Stats.Total)

		var out bytes.Buffer
		err := finish(ctx, &out, rep, report.FormatJSON, dir, nil)
		require.NoError(t, err)

		assert.Contains(t, out.String(), "Report written to")
		assert.Contains(t, out.String(), "2 total")
		assert.FileExists(t, filepath.Join(dir, rep.TestID, "report.json"))
	})

	t.Run("tag filter", func(t *testing.T) {
		h := newHarness(t)

		rep := execute(ctx, logr.Discard(), h.runner, loadTestSuite(t),
			report.SuiteInfo{Name: "cli", Tags: []string{"smoke"}})

		require.Len(t, rep.Results, 1)
		assert.Equal(t, "node-power", rep.Results[0].Name)
	})

	t.Run("missing events fail the command", func(t *testing.T) {
		h := newHarness(t)
		h.fake.Drop("baremetal.node.power_set.end")

		rep := execute(ctx, logr.Discard(), h.runner, loadTestSuite(t), report.SuiteInfo{Name: "cli"})

		var out bytes.Buffer
		err := finish(ctx, &out, rep, report.FormatText, "", nil)
		require.ErrorIs(t, err, errSuiteFailed)
		assert.Contains(t, err.Error(), "1 of 2 scenario(s) did not pass")
		assert.NotContains(t, out.String(), "Report written to")
	})

	t.Run("metrics server failure is reported", func(t *testing.T) {
		rep := report.New(report.SuiteInfo{Name: "cli"}, time.Now(), nil)

		serveErrs := make(chan error, 1)
		serveErrs <- assert.AnError

		err := finish(ctx, &bytes.Buffer{}, rep, report.FormatText, "", serveErrs)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("interrupted run", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		rep := report.New(report.SuiteInfo{Name: "cli"}, time.Now(), nil)
		err := finish(cancelled, &bytes.Buffer{}, rep, report.FormatText, "", nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMetricsServer(t *testing.T) {
	server := newMetricsServer(":0", "", newRegistry())

	rr := httptest.NewRecorder()
	server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")

	rr = httptest.NewRecorder()
	server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
