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
	"errors"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

var provisionTargets = sets.New(
	"active", "deleted", "manage", "provide", "inspect", "abort",
	"clean", "adopt", "rescue", "unrescue", "rebuild",
)

// ValidationError represents a single validation error with field context.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates a Suite and returns detailed validation errors.
func Validate(suite *Suite) error {
	var errs ValidationErrors

	if suite.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "name is required"})
	}

	errs = append(errs, validateDefaults(suite.Defaults)...)

	if len(suite.Scenarios) == 0 {
		errs = append(errs, ValidationError{Field: "scenarios", Message: "at least one scenario is required"})
	}

	names := sets.New[string]()
	for i, sc := range suite.Scenarios {
		errs = append(errs, validateScenario(sc, i)...)

		if sc.Name == "" {
			continue
		}
		if names.Has(sc.Name) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("scenarios[%d].name", i),
				Message: fmt.Sprintf("duplicate scenario name '%s'", sc.Name),
			})
		}
		names.Insert(sc.Name)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateDefaults(d Defaults) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, validateDuration("defaults.receiveTimeout", d.ReceiveTimeout)...)
	errs = append(errs, validateDuration("defaults.provisionTimeout", d.ProvisionTimeout)...)
	errs = append(errs, validateDuration("defaults.pollInterval", d.PollInterval)...)

	return errs
}

// validateScenario validates a single scenario.
func validateScenario(sc Scenario, index int) ValidationErrors {
	var errs ValidationErrors
	prefix := fmt.Sprintf("scenarios[%d]", index)

	if sc.Name == "" {
		errs = append(errs, ValidationError{Field: prefix + ".name", Message: "scenario name is required"})
	}

	kindOK := true
	if _, err := ParseKind(string(sc.Kind)); err != nil {
		kindOK = false
		errs = append(errs, ValidationError{
			Field:   prefix + ".kind",
			Message: fmt.Sprintf("invalid kind '%s', must be one of: %s", sc.Kind, joinKinds()),
		})
	}

	actionOK := true
	if _, err := ParseAction(string(sc.Action)); err != nil {
		actionOK = false
		errs = append(errs, ValidationError{
			Field:   prefix + ".action",
			Message: fmt.Sprintf("invalid action '%s', must be one of: %s", sc.Action, joinActions()),
		})
	}

	if kindOK && actionOK {
		if _, err := ExpectedEvents(sc.Kind, sc.Action); errors.Is(err, ErrUnsupportedAction) {
			errs = append(errs, ValidationError{
				Field:   prefix + ".action",
				Message: fmt.Sprintf("action '%s' is not supported for kind '%s'", sc.Action, sc.Kind),
			})
		}
	}

	if len(sc.ProvisionStates) > 0 && sc.Action != ActionProvisionState {
		errs = append(errs, ValidationError{
			Field:   prefix + ".provisionStates",
			Message: fmt.Sprintf("provisionStates is only valid for action '%s'", ActionProvisionState),
		})
	}
	for i, state := range sc.ProvisionStates {
		if !provisionTargets.Has(state) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.provisionStates[%d]", prefix, i),
				Message: fmt.Sprintf("unknown provision state target '%s'", state),
			})
		}
	}

	for i, event := range sc.Expected {
		if strings.TrimSpace(event) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.expected[%d]", prefix, i),
				Message: "event type must not be empty",
			})
		}
	}

	errs = append(errs, validateDuration(prefix+".receiveTimeout", sc.ReceiveTimeout)...)

	return errs
}

func validateDuration(field string, d DurationString) ValidationErrors {
	if d == "" {
		return nil
	}

	v, err := d.Duration()
	if err != nil {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("invalid duration format: %v", err)}}
	}
	if v <= 0 {
		return ValidationErrors{{Field: field, Message: "duration must be positive"}}
	}
	return nil
}

func joinKinds() string {
	out := make([]string, 0, len(Kinds))
	for _, k := range Kinds {
		out = append(out, string(k))
	}
	return strings.Join(out, ", ")
}

func joinActions() string {
	out := make([]string, 0, len(Actions))
	for _, a := range Actions {
		out = append(out, string(a))
	}
	return strings.Join(out, ", ")
}
