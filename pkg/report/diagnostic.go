// Package report renders build diagnostics and module plans for humans and
// for CI systems.
package report

import (
	"sort"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one finding tied to a source position. Line and Column are
// 1-based; zero means unknown.
type Diagnostic struct {
	Rule     string   `json:"rule" yaml:"rule" toml:"rule"`
	Severity Severity `json:"severity" yaml:"severity" toml:"severity"`
	File     string   `json:"file" yaml:"file" toml:"file"`
	Line     int      `json:"line,omitempty" yaml:"line,omitempty" toml:"line,omitempty"`
	Column   int      `json:"column,omitempty" yaml:"column,omitempty" toml:"column,omitempty"`
	Message  string   `json:"message" yaml:"message" toml:"message"`
}

// SortDiagnostics orders by file, then position, keeping the original order
// for ties.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}
