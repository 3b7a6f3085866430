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

// Package gracefulshutdown ties a process lifetime to SIGINT and SIGTERM:
// the first signal cancels a shared context, tracked goroutines are awaited,
// then an exit function runs.
package gracefulshutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// GracefulShutdown owns the process context and the goroutines bound to it.
type GracefulShutdown struct {
	ctx    context.Context
	cancel context.CancelFunc
	name   string

	once      sync.Once
	readyOnce sync.Once
	wg        *sync.WaitGroup

	// ready is closed by Ready once every tracked goroutine was registered.
	ready chan struct{}
	// done is closed once Shutdown returned from waiting.
	done chan struct{}

	exitFunc func(int)
}

// NewWithExit returns a GracefulShutdown calling exitFunc once shut down.
// Tests and one-shot commands pass a no-op to keep control of the exit code.
func NewWithExit(name string, exitFunc func(int)) *GracefulShutdown {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)

	gs := &GracefulShutdown{
		ctx:      ctx,
		cancel:   cancel,
		name:     name,
		wg:       &sync.WaitGroup{},
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		exitFunc: exitFunc,
	}

	// Shut down at least once when the context ends, whoever ended it.
	go func() {
		select {
		case <-gs.ready:
			<-ctx.Done()
		case <-ctx.Done():
			slog.Warn("context cancelled before Ready was called", "name", name)
		}
		gs.Shutdown(0)
	}()

	return gs
}

// Shutdown cancels the context, waits for tracked goroutines and calls the
// exit function with exitCode. Only the first call has any effect; later
// calls block until the first one returned.
func (s *GracefulShutdown) Shutdown(exitCode int) {
	s.once.Do(func() {
		slog.InfoContext(s.ctx, "⌛ gracefully shutting down", "name", s.name)

		s.cancel()
		s.wg.Wait()
		close(s.done)

		s.exitFunc(exitCode)
	})
	<-s.done
}

// Go runs fn in a goroutine tracked by the wait group. fn must return once
// ctx is done.
func (s *GracefulShutdown) Go(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// Context returns the context cancelled on shutdown.
func (s *GracefulShutdown) Context() context.Context {
	return s.ctx
}

// CancelFunc returns the function cancelling the context, which triggers
// the shutdown.
func (s *GracefulShutdown) CancelFunc() context.CancelFunc {
	return s.cancel
}

// WaitGroup returns the wait group Shutdown waits on.
func (s *GracefulShutdown) WaitGroup() *sync.WaitGroup {
	return s.wg
}

// Done is closed once Shutdown finished waiting.
func (s *GracefulShutdown) Done() <-chan struct{} {
	return s.done
}

// Ready signals that every tracked goroutine was registered. It must be
// called after the last Go or WaitGroup().Add; calling it again is a no-op.
func (s *GracefulShutdown) Ready() {
	s.readyOnce.Do(func() {
		close(s.ready)
	})
}
