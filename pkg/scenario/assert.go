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
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// MissingEventsError reports expected event types absent from a capture.
type MissingEventsError struct {
	Missing  []string
	Observed []string
}

func (e *MissingEventsError) Error() string {
	return fmt.Sprintf("missing expected events [%s] (observed [%s])",
		strings.Join(e.Missing, ", "), strings.Join(e.Observed, ", "))
}

// AssertEventsIn checks that every expected event type occurs at least once in
// observed. Order, duplicates and extra observed events are irrelevant. The
// returned *MissingEventsError lists absent events in expected order.
func AssertEventsIn(expected, observed []string) error {
	seen := sets.New(observed...)
	reported := sets.New[string]()

	var missing []string
	for _, e := range expected {
		if seen.Has(e) || reported.Has(e) {
			continue
		}
		reported.Insert(e)
		missing = append(missing, e)
	}

	if len(missing) == 0 {
		return nil
	}
	return &MissingEventsError{Missing: missing, Observed: observed}
}
