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

	"github.com/alexandremahdhaoui/bmnotify/pkg/baremetal"
	"github.com/alexandremahdhaoui/bmnotify/pkg/broker"
	"github.com/alexandremahdhaoui/bmnotify/pkg/capture"
)

// Status is the outcome of a scenario.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed" // expected events missing
	StatusError  Status = "error"  // the scenario could not be carried out
)

// cleanupTimeout leaves room for a fixture node to settle before deletion.
const cleanupTimeout = DefaultProvisionTimeout + time.Minute

// Result is the outcome of one scenario.
type Result struct {
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Action    Action    `json:"action"`
	Tags      []string  `json:"tags,omitempty"`
	Level     string    `json:"level"`
	Target    string    `json:"target,omitempty"`
	Status    Status    `json:"status"`
	Expected  []string  `json:"expected"`
	Observed  []string  `json:"observed"`
	Missing   []string  `json:"missing,omitempty"`
	StartTime time.Time `json:"startTime"`
	Duration  float64   `json:"duration"` // seconds
	Error     string    `json:"error,omitempty"`

	Err error `json:"-"`
}

// Passed reports whether the scenario passed.
func (r Result) Passed() bool {
	return r.Status == StatusPassed
}

// Subscription is a queue bound for the lifetime of one scenario.
type Subscription interface {
	capture.Source
	Close() error
}

// Subscriber binds a fresh queue to a notification stream.
type Subscriber interface {
	Subscribe(level broker.Level) (Subscription, error)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(level broker.Level) (Subscription, error)

// Subscribe implements Subscriber.
func (f SubscriberFunc) Subscribe(level broker.Level) (Subscription, error) {
	return f(level)
}

// BrokerSubscriber subscribes through an open broker connection.
func BrokerSubscriber(conn *broker.Conn) Subscriber {
	return SubscriberFunc(func(level broker.Level) (Subscription, error) {
		return conn.Subscribe(level)
	})
}

// Options tunes a Runner. Suite defaults take precedence where set.
type Options struct {
	ReceiveTimeout   time.Duration
	ProvisionTimeout time.Duration
	PollInterval     time.Duration
	Driver           string
	// IDField is the object data field identifying the target.
	IDField string

	Logger         logr.Logger
	CaptureMetrics *capture.Metrics
	Metrics        *Metrics
}

// Runner runs scenarios one at a time.
type Runner struct {
	client     baremetal.Client
	subscriber Subscriber
	opts       Options
	log        logr.Logger
}

// NewRunner returns a Runner performing actions through client and capturing
// notifications through subscriber.
func NewRunner(client baremetal.Client, subscriber Subscriber, opts Options) *Runner {
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = capture.DefaultReceiveTimeout
	}
	if opts.Driver == "" {
		opts.Driver = DefaultDriver
	}

	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	return &Runner{
		client:     client,
		subscriber: subscriber,
		opts:       opts,
		log:        log,
	}
}

// RunSuite runs the suite scenarios carrying one of tags, sequentially and in
// file order. It stops early only when ctx is done.
func (r *Runner) RunSuite(ctx context.Context, suite *Suite, tags ...string) []Result {
	scenarios := suite.Filter(tags...)
	results := make([]Result, 0, len(scenarios))

	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		results = append(results, r.Run(ctx, sc, suite.Defaults))
	}
	return results
}

// Run runs one scenario. Failures are reported in the Result, never panicked.
func (r *Runner) Run(ctx context.Context, sc Scenario, defaults Defaults) Result {
	start := time.Now()
	log := r.log.WithValues("scenario", sc.Name, "kind", sc.Kind, "action", sc.Action)

	res := Result{
		Name:      sc.Name,
		Kind:      sc.Kind,
		Action:    sc.Action,
		Tags:      sc.Tags,
		Level:     sc.Action.Level().String(),
		Observed:  []string{},
		StartTime: start,
	}

	err := r.run(ctx, sc, defaults, &res, log)

	res.Duration = time.Since(start).Seconds()
	res.Err = err

	var missing *MissingEventsError
	switch {
	case err == nil:
		res.Status = StatusPassed
	case errors.As(err, &missing):
		res.Status = StatusFailed
		res.Missing = missing.Missing
		res.Error = err.Error()
	default:
		res.Status = StatusError
		res.Error = err.Error()
	}

	r.opts.Metrics.observe(res)
	log.Info("scenario finished", "status", res.Status, "duration", res.Duration, "missing", res.Missing)
	return res
}

func (r *Runner) run(ctx context.Context, sc Scenario, defaults Defaults, res *Result, log logr.Logger) (err error) {
	expected, err := ExpectedEvents(sc.Kind, sc.Action)
	if err != nil {
		return err
	}
	if len(sc.Expected) > 0 {
		expected = sc.Expected
	}
	res.Expected = expected

	sub, err := r.subscriber.Subscribe(sc.Action.Level())
	if err != nil {
		return fmt.Errorf("subscribing to %s notifications: %w", sc.Action.Level(), err)
	}
	defer func() {
		if cerr := sub.Close(); cerr != nil {
			log.Error(cerr, "closing subscription")
		}
	}()

	var cleanups []Cleanup
	defer func() {
		// cleanups must run even when the scenario context was cancelled.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()

		if cerr := RunCleanups(cctx, cleanups); cerr != nil {
			log.Error(cerr, "cleaning up")
			if err == nil {
				err = fmt.Errorf("cleaning up: %w", cerr)
			}
		}
	}()

	target, fixtureCleanups, err := CreateFixture(ctx, r.client, sc.Kind, firstNonEmpty(defaults.Driver, r.opts.Driver))
	cleanups = append(cleanups, fixtureCleanups...)
	if err != nil {
		return fmt.Errorf("creating %s fixture: %w", sc.Kind, err)
	}
	res.Target = target.ID
	log = log.WithValues("target", target.ID)

	wait := defaults.WaitForProvisionState
	if sc.WaitForProvisionState != nil {
		wait = *sc.WaitForProvisionState
	}

	dispatcher := NewDispatcher(r.client, DispatchOptions{
		ProvisionStates:       sc.TargetProvisionStates(),
		WaitForProvisionState: wait,
		PollInterval:          defaults.PollInterval.DurationOr(r.opts.PollInterval),
		ProvisionTimeout:      defaults.ProvisionTimeout.DurationOr(r.opts.ProvisionTimeout),
		Logger:                log,
	})

	actionCleanups, err := dispatcher.Dispatch(ctx, sc.Action, target)
	cleanups = append(cleanups, actionCleanups...)
	if err != nil {
		return err
	}

	receiveTimeout := sc.ReceiveTimeout.DurationOr(defaults.ReceiveTimeout.DurationOr(r.opts.ReceiveTimeout))

	observed, err := capture.Capture(ctx, sub, target.ID, capture.Options{
		ReceiveTimeout: receiveTimeout,
		IDField:        r.opts.IDField,
		Logger:         log,
		Metrics:        r.opts.CaptureMetrics,
	})
	res.Observed = observed
	if err != nil {
		return err
	}

	return AssertEventsIn(expected, observed)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
