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
	"io"
	"os"
	"path/filepath"
)

// Format is the output format of a report.
type Format string

const (
	// FormatJSON produces JSON-formatted reports
	FormatJSON Format = "json"
	// FormatText produces human-readable text reports
	FormatText Format = "text"
)

// ParseFormat returns the Format named s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// Reporter generates suite reports in various formats.
type Reporter struct {
	artifactDir string
	out         io.Writer
}

// NewReporter creates a reporter writing files under artifactDir and
// summaries to out. A nil out means stdout.
func NewReporter(artifactDir string, out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{
		artifactDir: artifactDir,
		out:         out,
	}
}

// GenerateReport renders r in the given format.
func (rp *Reporter) GenerateReport(r *Report, format Format) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(r)
	case FormatText:
		return formatText(r)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteReport renders r and writes it to <artifactDir>/<testID>/report.<ext>.
// It returns the written path.
func (rp *Reporter) WriteReport(r *Report, format Format) (string, error) {
	content, err := rp.GenerateReport(r, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	reportDir := filepath.Join(rp.artifactDir, r.TestID)
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	var filename string
	switch format {
	case FormatJSON:
		filename = "report.json"
	case FormatText:
		filename = "report.txt"
	}

	reportPath := filepath.Join(reportDir, filename)
	if err := os.WriteFile(reportPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return reportPath, nil
}

// PrintSummary prints a concise summary of r.
func (rp *Reporter) PrintSummary(r *Report) error {
	if _, err := fmt.Fprint(rp.out, formatSummary(r)); err != nil {
		return fmt.Errorf("failed to print summary: %w", err)
	}
	return nil
}
