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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/alexandremahdhaoui/bmnotify/internal/config"
	"github.com/alexandremahdhaoui/bmnotify/internal/util/gracefulshutdown"
	"github.com/alexandremahdhaoui/bmnotify/internal/util/httputil"
	"github.com/alexandremahdhaoui/bmnotify/internal/util/logging"
	"github.com/alexandremahdhaoui/bmnotify/pkg/baremetal"
	"github.com/alexandremahdhaoui/bmnotify/pkg/broker"
	"github.com/alexandremahdhaoui/bmnotify/pkg/capture"
	"github.com/alexandremahdhaoui/bmnotify/pkg/report"
	"github.com/alexandremahdhaoui/bmnotify/pkg/scenario"
)

var errSuiteFailed = errors.New("suite failed")

type runOptions struct {
	suitePath    string
	tags         []string
	reportFormat string
	reportDir    string
	metricsAddr  string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a notification suite against a live deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return runSuite(cmd.OutOrStdout(), cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.suitePath, "suite", "", "suite file (defaults to scenarios.suitePath, then "+scenario.DefaultSuitePath()+")")
	f.StringSliceVar(&opts.tags, "tags", nil, "only run scenarios carrying one of these tags")
	f.StringVar(&opts.reportFormat, "report-format", string(report.FormatText), "report format: json or text")
	f.StringVar(&opts.reportDir, "report-dir", "", "directory the report is written to; no file is written when empty")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "address serving Prometheus metrics while the suite runs (overrides metricsServer.addr)")
	return cmd
}

// ------------------------------------------------- Run ------------------------------------------------------------ //

func runSuite(out io.Writer, cfg *config.Config, opts *runOptions) error {
	format, err := report.ParseFormat(opts.reportFormat)
	if err != nil {
		return err
	}

	log := logging.Setup(cfg.LoggingOptions()).WithName(Name)

	// --------------------------------------------- Graceful Shutdown ---------------------------------------------- //

	gs := gracefulshutdown.NewWithExit(Name, func(int) {})
	ctx := gs.Context()

	// --------------------------------------------- Metrics -------------------------------------------------------- //

	reg := newRegistry()
	runnerOpts := cfg.RunnerOptions()
	runnerOpts.Logger = log
	runnerOpts.CaptureMetrics = capture.NewMetrics(reg)
	runnerOpts.Metrics = scenario.NewMetrics(reg)

	var serveErrs <-chan error
	if addr := firstNonEmpty(opts.metricsAddr, cfg.MetricsServer.Addr); addr != "" {
		serveErrs = httputil.Serve(gs, map[string]*http.Server{
			"metrics": newMetricsServer(addr, cfg.MetricsServer.Path, reg),
		})
	}

	gs.Ready()
	defer gs.Shutdown(0)

	// --------------------------------------------- Clients -------------------------------------------------------- //

	brokerCfg, err := cfg.BrokerConfig()
	if err != nil {
		return err
	}

	conn, err := broker.Dial(ctx, brokerCfg, log.WithName("broker"))
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Warn("closing broker connection", "error", err.Error())
		}
	}()

	baremetalCfg, err := cfg.BaremetalConfig()
	if err != nil {
		return err
	}

	client, err := baremetal.NewClient(ctx, baremetalCfg)
	if err != nil {
		return err
	}

	// --------------------------------------------- Suite ---------------------------------------------------------- //

	suitePath := firstNonEmpty(opts.suitePath, cfg.Scenarios.SuitePath, scenario.DefaultSuitePath())
	suite, err := scenario.NewLoader("").Load(suitePath)
	if err != nil {
		return err
	}

	rep := execute(ctx, log, scenario.NewRunner(client, scenario.BrokerSubscriber(conn), runnerOpts), suite,
		report.SuiteInfo{
			Name:        suite.Name,
			Description: suite.Description,
			File:        suitePath,
			Tags:        opts.tags,
		})

	return finish(ctx, out, rep, format, opts.reportDir, serveErrs)
}

// execute runs the suite and builds its report.
func execute(
	ctx context.Context,
	log logr.Logger,
	runner *scenario.Runner,
	suite *scenario.Suite,
	info report.SuiteInfo,
) *report.Report {
	log.Info("running suite", "suite", suite.Name, "tags", info.Tags)

	start := time.Now()
	results := runner.RunSuite(ctx, suite, info.Tags...)

	return report.New(info, start, results)
}

// finish writes and prints the report, then turns the outcome into the
// command error.
func finish(
	ctx context.Context,
	out io.Writer,
	rep *report.Report,
	format report.Format,
	reportDir string,
	serveErrs <-chan error,
) error {
	reporter := report.NewReporter(reportDir, out)

	var errs []error
	if reportDir != "" {
		path, err := reporter.WriteReport(rep, format)
		if err != nil {
			errs = append(errs, err)
		} else {
			_, _ = fmt.Fprintf(out, "Report written to %s\n", path)
		}
	}

	if err := reporter.PrintSummary(rep); err != nil {
		errs = append(errs, err)
	}

	select {
	case err := <-serveErrs:
		errs = append(errs, err)
	default:
	}

	if err := ctx.Err(); err != nil {
		errs = append(errs, fmt.Errorf("run interrupted: %w", err))
	}

	if !rep.Passed() {
		errs = append(errs, fmt.Errorf("%w: %d of %d scenario(s) did not pass",
			errSuiteFailed, rep.Stats.Failed+rep.Stats.Errored, rep.Stats.Total))
	}

	return errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
