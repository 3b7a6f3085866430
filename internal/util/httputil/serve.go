/*
Copyright 2024 Alexandre Mahdhaoui

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package httputil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alexandremahdhaoui/bmnotify/internal/util/gracefulshutdown"
)

// ShutdownTimeout bounds how long a server may take to drain on shutdown.
const ShutdownTimeout = 30 * time.Second

type serverNameKey struct{}

// ServerName returns the name a request's server was registered under in
// Serve, or "" when the context does not come from such a server.
func ServerName(ctx context.Context) string {
	name, _ := ctx.Value(serverNameKey{}).(string)
	return name
}

// Serve starts the given servers in the background and returns immediately.
// Servers are shut down once the GracefulShutdown context is done, and
// GracefulShutdown waits for them. A server failing to listen cancels that
// context and its error is sent on the returned channel.
func Serve(gs *gracefulshutdown.GracefulShutdown, servers map[string]*http.Server) <-chan error {
	errs := make(chan error, len(servers))

	for name, server := range servers {
		baseCtx := context.WithValue(gs.Context(), serverNameKey{}, name)
		server.BaseContext = func(_ net.Listener) context.Context {
			return baseCtx
		}

		gs.Go(func(_ context.Context) {
			slog.InfoContext(baseCtx, "starting server", "name", name, "addr", server.Addr)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.ErrorContext(baseCtx, "❌ server stopped", "name", name, "error", err)
				errs <- fmt.Errorf("serving %s on %s: %w", name, server.Addr, err)
				gs.CancelFunc()()
			}
		})

		gs.Go(func(ctx context.Context) {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(
				context.WithValue(context.Background(), serverNameKey{}, name),
				ShutdownTimeout,
			)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.ErrorContext(shutdownCtx, "❌ error while shutting down server", "name", name, "error", err)
			}
		})
	}

	return errs
}
