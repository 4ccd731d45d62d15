package graph

import (
	"fmt"
	"strings"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/ast"
)

type (
	// CycleError indicates that the require graph has no valid order.
	CycleError struct {
		// Cycle holds every module that could not be ordered, sorted. That is
		// the members of each cycle plus anything downstream of one.
		Cycle []string
	}

	// UnresolvedDependencyError is a require whose target is neither a known
	// module, a sentinel satisfied before the requiring module, nor an
	// ignored host module.
	UnresolvedDependencyError struct {
		Module string // identity of the requiring module
		File   string
		Target string
		Pos    ast.Pos
		Reason string
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among modules: %s", strings.Join(e.Cycle, ", "))
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("%s:%s: module %q requires %q: %s", e.File, e.Pos, e.Module, e.Target, e.Reason)
}
