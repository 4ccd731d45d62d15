package parse

import (
	"fmt"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/ast"
)

// Error is a syntax error with its source location.
type Error struct {
	File string
	Pos  ast.Pos
	Msg  string
}

func newError(file string, pos ast.Pos, format string, args ...any) *Error {
	return &Error{File: file, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Pos.Line, e.Pos.Column, e.Msg)
}
