package sanitize

import (
	"fmt"
	"strings"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/graph"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/ast"
)

// Scope says where a rule is evaluated.
type Scope int

const (
	// ScopeTree rules see every node in the module, function bodies
	// included, before anything is edited. A match is fatal.
	ScopeTree Scope = iota
	// ScopeStatement rules see the expressions a statement owns directly.
	// A match removes the statement.
	ScopeStatement
	// ScopeCall rules see call expressions. A match replaces the callee.
	ScopeCall
)

// Rule names, also used in warnings and reports.
const (
	RuleGoto          = "goto"
	RuleStrictLibrary = "strict-library"
	RuleRequire       = "require"
	RulePackage       = "package"
	RuleLoadlib       = "loadlib"
	RuleLogOther      = "log-other"
	RulePrint         = "print"
	RuleLogInfo       = "log-info"
	RuleLogWarning    = "log-warning"
	RuleLogError      = "log-error"
)

// Rule is one row of the sanitization table. Rules of the same scope are
// tried in table order and the first match wins.
type Rule struct {
	Name  string
	Scope Scope
	// StrictOnly rules are skipped unless Options.Strict is set.
	StrictOnly bool
	// Match inspects a single node. detail feeds diagnostics.
	Match func(n ast.Node) (matched bool, detail string)
	// Warn makes a statement removal also emit a warning with detail.
	Warn bool
	// Callee is the replacement text for call rules.
	Callee string
}

var restrictedLibraries = map[string]bool{"os": true, "io": true, "lfs": true}

var keptLogLevels = map[string]bool{"info": true, "warning": true, "error": true}

// DefaultRules is the rule table applied by Sanitize. The loadlib rule runs
// before the package rule so package.loadlib still warns.
var DefaultRules = []Rule{
	{
		Name:  RuleGoto,
		Scope: ScopeTree,
		Match: func(n ast.Node) (bool, string) {
			if g, ok := n.(*ast.GotoStmt); ok {
				return true, g.Label
			}
			return false, ""
		},
	},
	{
		Name:       RuleStrictLibrary,
		Scope:      ScopeTree,
		StrictOnly: true,
		Match:      matchRestrictedLibrary,
	},
	{
		Name:  RuleRequire,
		Scope: ScopeStatement,
		Match: func(n ast.Node) (bool, string) {
			call, ok := n.(*ast.CallExpr)
			return ok && graph.IsRequireCall(call), ""
		},
	},
	{
		Name:  RuleLoadlib,
		Scope: ScopeStatement,
		Warn:  true,
		Match: func(n ast.Node) (bool, string) {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return false, ""
			}
			callee, ok := ast.DottedName(call.Func)
			if !ok || (callee != "loadlib" && !strings.HasSuffix(callee, ".loadlib")) {
				return false, ""
			}
			return true, fmt.Sprintf("disallowed '%s' call was removed", callee)
		},
	},
	{
		Name:  RulePackage,
		Scope: ScopeStatement,
		Match: func(n ast.Node) (bool, string) {
			name, ok := ast.NameOf(asExpr(n))
			return ok && name == "package", ""
		},
	},
	{
		Name:  RuleLogOther,
		Scope: ScopeStatement,
		Match: func(n ast.Node) (bool, string) {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return false, ""
			}
			callee, ok := ast.DottedName(call.Func)
			if !ok {
				return false, ""
			}
			level, found := strings.CutPrefix(callee, "log.")
			return found && !strings.Contains(level, ".") && !keptLogLevels[level], ""
		},
	},
	callRule(RulePrint, "print", "env.info"),
	callRule(RuleLogInfo, "log.info", "env.info"),
	callRule(RuleLogWarning, "log.warning", "env.warning"),
	callRule(RuleLogError, "log.error", "env.error"),
}

func callRule(name, from, to string) Rule {
	return Rule{
		Name:   name,
		Scope:  ScopeCall,
		Callee: to,
		Match: func(n ast.Node) (bool, string) {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return false, ""
			}
			callee, ok := ast.DottedName(call.Func)
			return ok && callee == from, ""
		},
	}
}

func matchRestrictedLibrary(n ast.Node) (bool, string) {
	switch x := n.(type) {
	case *ast.IndexExpr:
		if lib, ok := globalLibrary(x); ok {
			return true, "_G." + lib
		}
		lib, ok := restrictedLibrary(x.Obj)
		if !ok {
			return false, ""
		}
		if key, ok := x.Key.(*ast.StringExpr); ok {
			return true, lib + "." + key.Value
		}
		return true, lib + "[...]"
	case *ast.MethodCallExpr:
		if lib, ok := restrictedLibrary(x.Obj); ok {
			return true, lib + ":" + x.Method.Value
		}
	case *ast.CallExpr:
		if lib, ok := restrictedLibrary(x.Func); ok {
			return true, lib + "() call"
		}
	}
	return false, ""
}

// restrictedLibrary reports whether e names os, io or lfs, either directly
// or through _G.
func restrictedLibrary(e ast.Expr) (string, bool) {
	if lib, ok := ast.NameOf(e); ok && restrictedLibraries[lib] {
		return lib, true
	}
	if idx, ok := e.(*ast.IndexExpr); ok {
		return globalLibrary(idx)
	}
	return "", false
}

// globalLibrary matches _G.os and _G["os"].
func globalLibrary(x *ast.IndexExpr) (string, bool) {
	if name, ok := ast.NameOf(x.Obj); !ok || name != "_G" {
		return "", false
	}
	key, ok := x.Key.(*ast.StringExpr)
	if !ok || !restrictedLibraries[key.Value] {
		return "", false
	}
	return key.Value, true
}

func asExpr(n ast.Node) ast.Expr {
	e, _ := n.(ast.Expr)
	return e
}
