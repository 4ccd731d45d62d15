package sanitize

import (
	"fmt"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/ast"
)

// Warning is a non-fatal finding. It never changes the exit status.
type Warning struct {
	Rule    string
	File    string
	Pos     ast.Pos
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s:%s: [%s] %s", w.File, w.Pos, w.Rule, w.Message)
}

// Report collects the outcome of sanitizing one module.
type Report struct {
	File     string
	Warnings []Warning
	// Removed and Rewritten count applied edits by rule name.
	Removed   map[string]int
	Rewritten map[string]int
	// Fatal is set when the module must not be emitted.
	Fatal error
}

func newReport(file string) *Report {
	return &Report{
		File:      file,
		Removed:   make(map[string]int),
		Rewritten: make(map[string]int),
	}
}

func (r *Report) warn(rule string, pos ast.Pos, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{
		Rule:    rule,
		File:    r.File,
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	})
}
