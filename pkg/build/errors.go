package build

import (
	"errors"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/graph"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/parse"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/report"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/sanitize"
)

// FailureDiagnostics turns a fatal pipeline error into error diagnostics so
// it can be reported next to the warnings. Joined errors yield one
// diagnostic each.
func FailureDiagnostics(err error) []report.Diagnostic {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []report.Diagnostic
		for _, e := range joined.Unwrap() {
			out = append(out, FailureDiagnostics(e)...)
		}
		return out
	}

	d := report.Diagnostic{Severity: report.SeverityError, Message: err.Error()}
	var (
		parseErr      *parse.Error
		gotoErr       *sanitize.GotoError
		strictErr     *sanitize.StrictModeViolationError
		unresolvedErr *graph.UnresolvedDependencyError
		cycleErr      *graph.CycleError
	)
	switch {
	case errors.As(err, &parseErr):
		d.Rule, d.File, d.Line, d.Column = "syntax", parseErr.File, parseErr.Pos.Line, parseErr.Pos.Column
		d.Message = parseErr.Msg
	case errors.As(err, &gotoErr):
		d.Rule, d.File, d.Line, d.Column = sanitize.RuleGoto, gotoErr.File, gotoErr.Pos.Line, gotoErr.Pos.Column
	case errors.As(err, &strictErr):
		d.Rule, d.File, d.Line, d.Column = sanitize.RuleStrictLibrary, strictErr.File, strictErr.Pos.Line, strictErr.Pos.Column
	case errors.As(err, &unresolvedErr):
		d.Rule, d.File, d.Line, d.Column = "unresolved-require", unresolvedErr.File, unresolvedErr.Pos.Line, unresolvedErr.Pos.Column
	case errors.As(err, &cycleErr):
		d.Rule = "cycle"
	}
	return []report.Diagnostic{d}
}
