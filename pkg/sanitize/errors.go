package sanitize

import (
	"fmt"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/ast"
)

type (
	// GotoError is raised for any goto statement. The host runtime rejects
	// goto, so it is fatal whether or not strict mode is on.
	GotoError struct {
		File  string
		Pos   ast.Pos
		Label string
		Line  string // the offending source line, trimmed
	}

	// StrictModeViolationError is a reference to a library the host strips
	// from the mission environment (os, io, lfs).
	StrictModeViolationError struct {
		File string
		Pos  ast.Pos
		Ref  string // e.g. "os.time" or "io() call"
		Line string
	}
)

func (e *GotoError) Error() string {
	return fmt.Sprintf("disallowed 'goto' statement found in %s on line %d: %s", e.File, e.Pos.Line, e.Line)
}

func (e *StrictModeViolationError) Error() string {
	return fmt.Sprintf("disallowed DCS API usage (%s) found in %s on line %d: %s", e.Ref, e.File, e.Pos.Line, e.Line)
}
