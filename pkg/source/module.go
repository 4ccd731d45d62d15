// Package source discovers the Lua files of a project and assigns each one a
// role and a module identity.
package source

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/ast"
)

// Role is the part a file plays in the composed output.
type Role string

const (
	RoleCore       Role = "core"
	RoleNamespace  Role = "namespace"
	RoleEntrypoint Role = "entrypoint"
	RoleHeader     Role = "header"
	RoleFooter     Role = "footer"
)

// Module is one discovered file.
type Module struct {
	// ID is the dotted module path, e.g. "lib.util" for lib/util.lua.
	ID string
	// Path is absolute.
	Path string
	// RelPath is slash separated and relative to the source root.
	RelPath string
	// Dir is the slash separated containing directory, "" at the root.
	Dir    string
	Role   Role
	Source string
	// Chunk and Requires are filled in by the build once the file is parsed.
	Chunk    *ast.Chunk
	Requires []string
}

// ModuleID maps a relative path to its dotted identity.
func ModuleID(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, ".lua")
	return strings.ReplaceAll(rel, "/", ".")
}

// DirKey returns the directory part of a relative path, "" at the root.
func DirKey(rel string) string {
	d := path.Dir(filepath.ToSlash(rel))
	if d == "." {
		return ""
	}
	return d
}
