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

package ironicfake

import (
	"encoding/json"
	"strings"
)

// applyPatch applies a single JSON-patch operation to obj. Intermediate
// objects are created for add and replace. Unknown operations are ignored.
func applyPatch(obj map[string]any, op, path string, value any) {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return
	}

	parent := obj
	for _, seg := range segments[:len(segments)-1] {
		child, ok := parent[seg].(map[string]any)
		if !ok {
			if op == "remove" {
				return
			}
			child = map[string]any{}
			parent[seg] = child
		}
		parent = child
	}

	last := segments[len(segments)-1]
	switch op {
	case "add", "replace":
		parent[last] = value
	case "remove":
		delete(parent, last)
	}
}

// clone returns a deep copy of obj through a JSON round trip.
func clone(obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return nil
	}

	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}
