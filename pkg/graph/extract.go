package graph

import (
	"fmt"
	"strings"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/ast"
)

type (
	// Require is one statically resolvable `require "target"` call.
	Require struct {
		Target string // normalised module identity
		Raw    string // the literal as written in source
		Pos    ast.Pos
	}

	// DynamicRequireWarning reports a require whose target cannot be known
	// without running the script. Such calls add no edge.
	DynamicRequireWarning struct {
		File   string
		Pos    ast.Pos
		Reason string
	}

	// Extraction is the result of scanning one module.
	Extraction struct {
		Requires []Require
		Dynamic  []DynamicRequireWarning
	}
)

func (w DynamicRequireWarning) String() string {
	return fmt.Sprintf("%s:%s: dynamic require ignored: %s", w.File, w.Pos, w.Reason)
}

// Extract collects every require call in chunk, including those nested in
// function bodies, in source order.
func Extract(chunk *ast.Chunk) Extraction {
	var out Extraction
	ast.Inspect(chunk, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || !IsRequireCall(call) {
			return true
		}
		pos := call.Span().Start
		switch {
		case len(call.Args) != 1:
			out.Dynamic = append(out.Dynamic, DynamicRequireWarning{
				File:   chunk.Name,
				Pos:    pos,
				Reason: fmt.Sprintf("expected exactly one argument, got %d", len(call.Args)),
			})
		default:
			lit, ok := call.Args[0].(*ast.StringExpr)
			if !ok {
				out.Dynamic = append(out.Dynamic, DynamicRequireWarning{
					File:   chunk.Name,
					Pos:    pos,
					Reason: "argument is not a string literal",
				})
				break
			}
			out.Requires = append(out.Requires, Require{
				Target: NormalizeTarget(lit.Value),
				Raw:    lit.Raw,
				Pos:    pos,
			})
		}
		return true
	})
	return out
}

// IsRequireCall reports whether call invokes the global `require`.
func IsRequireCall(call *ast.CallExpr) bool {
	name, ok := ast.NameOf(call.Func)
	return ok && name == "require"
}

// NormalizeTarget maps a require argument onto the module identity scheme
// used by discovery: path separators become dots and a `.lua` suffix is
// dropped.
func NormalizeTarget(target string) string {
	t := strings.TrimSpace(target)
	t = strings.TrimSuffix(t, ".lua")
	t = strings.NewReplacer("/", ".", "\\", ".").Replace(t)
	return strings.Trim(t, ".")
}
