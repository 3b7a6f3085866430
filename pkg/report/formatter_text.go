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

package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/alexandremahdhaoui/bmnotify/pkg/scenario"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// formatText generates a human-readable text report
func formatText(r *Report) (string, error) {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString("NOTIFICATION TEST REPORT\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n\n")

	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 7) + "\n")
	fmt.Fprintf(&sb, "Suite:     %s\n", r.Suite.Name)
	if r.Suite.File != "" {
		fmt.Fprintf(&sb, "File:      %s\n", r.Suite.File)
	}
	if len(r.Suite.Tags) > 0 {
		fmt.Fprintf(&sb, "Tags:      %s\n", strings.Join(r.Suite.Tags, ", "))
	}
	fmt.Fprintf(&sb, "Status:    %s\n", formatStatus(r.Status))
	fmt.Fprintf(&sb, "Duration:  %.2fs\n", r.Duration)
	fmt.Fprintf(&sb, "Started:   %s\n", r.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Completed: %s\n", r.EndTime.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Test ID:   %s\n\n", r.TestID)

	sb.WriteString("SCENARIOS\n")
	sb.WriteString(strings.Repeat("-", 9) + "\n")
	for i, res := range r.Results {
		fmt.Fprintf(&sb, "[%d/%d] %s %s (%s %s, %.2fs)\n",
			i+1, len(r.Results), formatStatus(res.Status), res.Name, res.Kind, res.Action, res.Duration)
		if res.Target != "" {
			fmt.Fprintf(&sb, "  Target:   %s\n", res.Target)
		}
		fmt.Fprintf(&sb, "  Stream:   %s\n", res.Level)
		fmt.Fprintf(&sb, "  Expected: %s\n", joinOrNone(res.Expected))
		fmt.Fprintf(&sb, "  Observed: %s\n", joinOrNone(res.Observed))
		if len(res.Missing) > 0 {
			fmt.Fprintf(&sb, "  Missing:  %s\n", red(strings.Join(res.Missing, ", ")))
		}
		if res.Status == scenario.StatusError && res.Error != "" {
			fmt.Fprintf(&sb, "  Error:    %s\n", wrapText(res.Error, 12))
		}
		if res.Status != scenario.StatusPassed {
			sb.WriteString(formatFailureGuidance(res))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("STATISTICS\n")
	sb.WriteString(strings.Repeat("-", 10) + "\n")
	fmt.Fprintf(&sb, "Total:   %d\n", r.Stats.Total)
	fmt.Fprintf(&sb, "Passed:  %d (%.1f%%)\n", r.Stats.Passed, r.Stats.PassRate*100)
	fmt.Fprintf(&sb, "Failed:  %d\n", r.Stats.Failed)
	fmt.Fprintf(&sb, "Errored: %d\n\n", r.Stats.Errored)

	sb.WriteString(strings.Repeat("=", 80) + "\n")
	fmt.Fprintf(&sb, "TEST RESULT: %s\n", formatStatus(r.Status))
	sb.WriteString(strings.Repeat("=", 80) + "\n")

	return sb.String(), nil
}

// formatStatus formats status with color
func formatStatus(status scenario.Status) string {
	switch status {
	case scenario.StatusPassed:
		return green("✓ PASSED")
	case scenario.StatusFailed:
		return red("✗ FAILED")
	case scenario.StatusError:
		return yellow("⚠ ERROR")
	default:
		return string(status)
	}
}

// formatFailureGuidance provides troubleshooting hints for a scenario that
// did not pass.
func formatFailureGuidance(res scenario.Result) string {
	var g strings.Builder

	g.WriteString(faint("  Possible Causes:") + "\n")
	switch {
	case res.Status == scenario.StatusFailed && len(res.Observed) == 0:
		g.WriteString("  - Notifications are disabled in the service configuration\n")
		g.WriteString("  - The service publishes on another exchange or topic\n")
		fmt.Fprintf(&g, "  - The notification level is above %q\n", res.Level)
	case res.Status == scenario.StatusFailed:
		g.WriteString("  - The receive timeout ended the capture before the event was published\n")
		g.WriteString("  - The service version emits a different event type for this action\n")
	default:
		g.WriteString("  - The management API or the broker is unreachable\n")
		g.WriteString("  - The action is not allowed in the resource's current state\n")
	}
	return g.String()
}

// wrapText wraps text at word boundaries with indentation
func wrapText(text string, indent int) string {
	if len(text) <= 64 {
		return text
	}

	var result strings.Builder
	words := strings.Fields(text)
	lineLen := 0
	indentStr := strings.Repeat(" ", indent)

	for i, word := range words {
		if i > 0 && lineLen+len(word)+1 > 64 {
			result.WriteString("\n" + indentStr)
			lineLen = 0
		} else if i > 0 {
			result.WriteString(" ")
			lineLen++
		}
		result.WriteString(word)
		lineLen += len(word)
	}

	return result.String()
}

func joinOrNone(events []string) string {
	if len(events) == 0 {
		return faint("(none)")
	}
	return strings.Join(events, ", ")
}

// formatSummary formats a concise summary for stdout
func formatSummary(r *Report) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	sb.WriteString(bold("TEST SUMMARY") + "\n")
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&sb, "Suite:     %s\n", r.Suite.Name)
	fmt.Fprintf(&sb, "Status:    %s\n", formatStatus(r.Status))
	fmt.Fprintf(&sb, "Duration:  %.2fs\n", r.Duration)
	fmt.Fprintf(&sb, "Scenarios: %d total, %d passed, %d failed, %d errored (%.1f%% pass rate)\n",
		r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Stats.Errored, r.Stats.PassRate*100)

	if r.Stats.Failed+r.Stats.Errored > 0 {
		sb.WriteString("\n")
		sb.WriteString(red("Quick Failure Summary:") + "\n")
		n := 1
		for _, res := range r.Results {
			if res.Passed() {
				continue
			}
			detail := res.Error
			if len(res.Missing) > 0 {
				detail = "missing " + strings.Join(res.Missing, ", ")
			}
			fmt.Fprintf(&sb, "  %d. %s (%s %s): %s\n", n, res.Name, res.Kind, res.Action, detail)
			n++
		}
	}

	sb.WriteString(strings.Repeat("=", 60) + "\n")
	return sb.String()
}
