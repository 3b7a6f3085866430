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
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader loads suites from YAML files.
type Loader struct {
	basePath string
}

// NewLoader creates a new suite loader.
// basePath is used to resolve relative suite file paths.
// If basePath is empty, the current working directory is used.
func NewLoader(basePath string) *Loader {
	if basePath == "" {
		basePath = "."
	}
	return &Loader{
		basePath: basePath,
	}
}

// Load loads and validates a suite from a YAML file.
// The path can be absolute or relative to the loader's basePath.
func (l *Loader) Load(path string) (*Suite, error) {
	resolvedPath, err := l.resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve suite path: %w", err)
	}

	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file %s: %w", resolvedPath, err)
	}

	suite, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", resolvedPath, err)
	}
	return suite, nil
}

// LoadMultiple loads multiple suites.
// Returns all successfully loaded suites and any errors encountered.
func (l *Loader) LoadMultiple(paths []string) ([]*Suite, []error) {
	suites := make([]*Suite, 0, len(paths))
	var errs []error

	for _, path := range paths {
		suite, err := l.Load(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to load %s: %w", path, err))
			continue
		}
		suites = append(suites, suite)
	}

	return suites, errs
}

// Parse decodes and validates a suite. Unknown fields are rejected.
func Parse(data []byte) (*Suite, error) {
	var suite Suite

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := Validate(&suite); err != nil {
		return nil, fmt.Errorf("suite validation failed: %w", err)
	}

	return &suite, nil
}

func (l *Loader) resolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}

	resolvedPath := filepath.Join(l.basePath, path)

	if _, err := os.Stat(resolvedPath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("suite file does not exist: %s", resolvedPath)
		}
		return "", fmt.Errorf("failed to stat suite file %s: %w", resolvedPath, err)
	}

	return resolvedPath, nil
}

// DefaultSuitePath returns the default suite file, relative to the project root.
func DefaultSuitePath() string {
	return "test/scenarios/default.yaml"
}
