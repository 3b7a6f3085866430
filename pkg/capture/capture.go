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

// Package capture collects the lifecycle notifications published about a
// single bare-metal resource during a bounded receive window.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/alexandremahdhaoui/bmnotify/pkg/notification"
)

// DefaultReceiveTimeout is the per-poll wait used when none is configured.
const DefaultReceiveTimeout = time.Second

// ErrIdle is returned by a Source when no message arrived within the receive
// timeout. It ends a capture normally.
var ErrIdle = errors.New("no message delivered within receive timeout")

// Message is a single delivery that must be acknowledged once handled.
type Message interface {
	Body() []byte
	Ack() error
}

// Source delivers messages from a bound queue.
type Source interface {
	// Next blocks until a message is delivered, the timeout elapses or ctx
	// is done. An elapsed timeout is reported as ErrIdle.
	Next(ctx context.Context, timeout time.Duration) (Message, error)
}

// Options tunes a capture session.
type Options struct {
	// ReceiveTimeout bounds each poll. Zero means DefaultReceiveTimeout.
	ReceiveTimeout time.Duration

	// IDField is the object data field compared to the target identifier.
	// Empty means notification.DefaultIDField.
	IDField string

	// Events optionally restricts which event types are recorded.
	Events []string

	Logger  logr.Logger
	Metrics *Metrics
}

// Handler filters delivered messages by resource identifier and records the
// event types of the matching ones.
type Handler struct {
	target  string
	idField string
	events  sets.Set[string]

	log     logr.Logger
	metrics *Metrics

	observed []string
}

// NewHandler returns a Handler recording events about target.
func NewHandler(target string, opts Options) *Handler {
	idField := opts.IDField
	if idField == "" {
		idField = notification.DefaultIDField
	}

	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	return &Handler{
		target:   target,
		idField:  idField,
		events:   sets.New(opts.Events...),
		log:      log.WithValues("target", target),
		metrics:  opts.Metrics,
		observed: []string{},
	}
}

// Process handles one delivery. The message is acknowledged whether or not
// it concerns the target, so the broker never redelivers it. Undecodable
// bodies are acknowledged and skipped. The returned error is non-nil only
// when the acknowledgment itself fails.
func (h *Handler) Process(msg Message) error {
	outcome := h.record(msg.Body())
	h.metrics.observe(outcome)

	if err := msg.Ack(); err != nil {
		return fmt.Errorf("acknowledging message: %w", err)
	}
	return nil
}

func (h *Handler) record(body []byte) string {
	n, err := notification.Decode(body)
	if err != nil {
		h.log.V(1).Info("skipping undecodable message", "error", err.Error())
		return OutcomeMalformed
	}

	id, ok := n.ResourceID(h.idField)
	if !ok || id != h.target {
		h.log.V(1).Info("ignoring notification", "eventType", n.EventType, "resourceID", id)
		return OutcomeIgnored
	}

	if h.events.Len() > 0 && !h.events.Has(n.EventType) {
		h.log.V(1).Info("ignoring filtered event type", "eventType", n.EventType)
		return OutcomeIgnored
	}

	h.log.V(1).Info("recorded notification", "eventType", n.EventType)
	h.observed = append(h.observed, n.EventType)
	return OutcomeMatched
}

// Observed returns a copy of the recorded event types in arrival order.
func (h *Handler) Observed() []string {
	out := make([]string, len(h.observed))
	copy(out, h.observed)
	return out
}

// Clear forgets all recorded event types.
func (h *Handler) Clear() {
	h.observed = []string{}
}

// Capture drains src until one poll interval passes with nothing delivered,
// and returns the event types published about target in arrival order.
//
// Every message on the queue is consumed, including those about other
// resources. A transport failure other than an idle timeout is returned
// together with whatever was observed before it.
func Capture(ctx context.Context, src Source, target string, opts Options) ([]string, error) {
	timeout := opts.ReceiveTimeout
	if timeout <= 0 {
		timeout = DefaultReceiveTimeout
	}

	h := NewHandler(target, opts)
	start := time.Now()
	defer func() { h.metrics.observeDuration(time.Since(start)) }()

	for {
		msg, err := src.Next(ctx, timeout)
		if errors.Is(err, ErrIdle) {
			h.log.V(1).Info("capture window closed", "observed", len(h.observed))
			return h.Observed(), nil
		}
		if err != nil {
			return h.Observed(), fmt.Errorf("receiving notification: %w", err)
		}

		if err := h.Process(msg); err != nil {
			return h.Observed(), err
		}
	}
}
