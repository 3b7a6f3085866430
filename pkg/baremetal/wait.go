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

package baremetal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"
)

// IsTransitional reports whether a provision state is one the service moves
// out of on its own, e.g. "deploying" or "wait call-back".
func IsTransitional(state string) bool {
	return strings.HasSuffix(state, "ing") || strings.Contains(state, "wait")
}

// WaitForStableProvisionState polls node id every interval until its
// provision state is no longer transitional, and returns that state.
func WaitForStableProvisionState(
	ctx context.Context,
	c Client,
	id string,
	interval, timeout time.Duration,
	log logr.Logger,
) (string, error) {
	var state string

	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		node, err := c.GetNode(ctx, id)
		if err != nil {
			return false, err
		}
		state = node.ProvisionState
		log.V(1).Info("polled provision state", "node", id, "provisionState", state)
		return !IsTransitional(state), nil
	})
	if err != nil {
		return state, fmt.Errorf("waiting for node %s to leave provision state %q: %w", id, state, err)
	}
	return state, nil
}
