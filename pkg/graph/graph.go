// Package graph infers module dependencies from require calls and orders
// core modules so each one is emitted after everything it requires.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type (
	// Node is one core module in the ordering problem. Dir is the directory
	// key used for affinity tie-breaking ("" for the source root).
	Node struct {
		ID  string
		Dir string
	}

	// Unit is a module together with what it requires.
	Unit struct {
		ID       string
		Dir      string
		File     string // project-relative path, for diagnostics
		Requires []Require
	}

	// BuildInput describes the whole project. Namespace, header and external
	// dependencies are emitted before any core module; entrypoint and footer
	// after all of them.
	BuildInput struct {
		Core       []Unit
		Namespace  Unit
		Entrypoint Unit
		HeaderID   string // "" when there is no header
		FooterID   string // "" when there is no footer
		External   []string
		// IgnoreRequires are doublestar globs over identities, with dots
		// acting as path separators, naming modules the host provides.
		IgnoreRequires []string
	}

	// Graph holds core modules and the require edges between them.
	Graph struct {
		nodes    []Node
		nodeSet  map[string]bool
		requires map[string][]string
		// Dropped lists requires satisfied by sentinels or the host.
		Dropped []DroppedRequire
	}

	// DroppedRequire is a require that produced no edge, and why.
	DroppedRequire struct {
		Module string
		Target string
		Reason string
	}
)

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodeSet:  make(map[string]bool),
		requires: make(map[string][]string),
	}
}

// AddNode adds a module. Adding an existing ID is a no-op.
func (g *Graph) AddNode(id, dir string) {
	if g.nodeSet[id] {
		return
	}
	g.nodeSet[id] = true
	g.nodes = append(g.nodes, Node{ID: id, Dir: dir})
}

// AddRequire records that module from requires module to.
func (g *Graph) AddRequire(from, to string) {
	if slices.Contains(g.requires[from], to) {
		return
	}
	g.requires[from] = append(g.requires[from], to)
}

// Nodes returns the modules in insertion order.
func (g *Graph) Nodes() []Node {
	return slices.Clone(g.nodes)
}

// Requires returns the sorted identities module id requires.
func (g *Graph) Requires(id string) []string {
	out := slices.Clone(g.requires[id])
	slices.Sort(out)
	return out
}

// Dependents returns the sorted identities of modules that require id.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for from, tos := range g.requires {
		if slices.Contains(tos, id) {
			out = append(out, from)
		}
	}
	slices.Sort(out)
	return out
}

// Sort orders the graph's modules; see the package-level Sort.
func (g *Graph) Sort() ([]string, error) {
	return Sort(g.nodes, g.requires)
}

type role int

const (
	roleUnknown role = iota
	roleCore
	roleBefore // satisfied before every core module
	roleEntrypoint
	roleFooter
	roleNamespace
)

// Build resolves every require in the project into graph edges. Requires
// that cannot be satisfied produce UnresolvedDependencyErrors, all of which
// are returned joined.
func Build(in BuildInput) (*Graph, error) {
	for _, p := range in.IgnoreRequires {
		if !doublestar.ValidatePattern(globForm(p)) {
			return nil, fmt.Errorf("invalid ignore_requires pattern %q", p)
		}
	}

	g := New()
	roles := make(map[string]role)
	for _, id := range in.External {
		roles[id] = roleBefore
	}
	if in.HeaderID != "" {
		roles[in.HeaderID] = roleBefore
	}
	if in.FooterID != "" {
		roles[in.FooterID] = roleFooter
	}
	roles[in.Namespace.ID] = roleNamespace
	roles[in.Entrypoint.ID] = roleEntrypoint
	for _, u := range in.Core {
		if g.nodeSet[u.ID] {
			return nil, fmt.Errorf("two source files map to module %q", u.ID)
		}
		if _, taken := roles[u.ID]; taken {
			return nil, fmt.Errorf("module %q (%s) collides with a reserved identity", u.ID, u.File)
		}
		g.AddNode(u.ID, u.Dir)
		roles[u.ID] = roleCore
	}

	var errs []error
	unresolved := func(u Unit, r Require, reason string) {
		errs = append(errs, &UnresolvedDependencyError{
			Module: u.ID, File: u.File, Target: r.Target, Pos: r.Pos, Reason: reason,
		})
	}
	drop := func(u Unit, r Require, reason string) {
		g.Dropped = append(g.Dropped, DroppedRequire{Module: u.ID, Target: r.Target, Reason: reason})
	}
	host := func(target string) bool {
		return matchAny(in.IgnoreRequires, target)
	}

	for _, u := range in.Core {
		for _, r := range u.Requires {
			switch roles[r.Target] {
			case roleCore:
				g.AddRequire(u.ID, r.Target)
			case roleBefore:
				drop(u, r, "loaded before core modules")
			case roleNamespace:
				drop(u, r, "namespace is loaded before core modules")
			case roleEntrypoint:
				unresolved(u, r, "the entrypoint is emitted after every core module")
			case roleFooter:
				unresolved(u, r, "the footer is emitted after every core module")
			default:
				if host(r.Target) {
					drop(u, r, "provided by the host")
					continue
				}
				unresolved(u, r, "no module with this identity")
			}
		}
	}

	for _, r := range in.Namespace.Requires {
		switch roles[r.Target] {
		case roleBefore, roleNamespace:
			drop(in.Namespace, r, "loaded before the namespace")
		case roleCore:
			unresolved(in.Namespace, r, "core modules are emitted after the namespace")
		case roleEntrypoint, roleFooter:
			unresolved(in.Namespace, r, "emitted after the namespace")
		default:
			if host(r.Target) {
				drop(in.Namespace, r, "provided by the host")
				continue
			}
			unresolved(in.Namespace, r, "no module with this identity")
		}
	}

	for _, r := range in.Entrypoint.Requires {
		switch roles[r.Target] {
		case roleFooter:
			unresolved(in.Entrypoint, r, "the footer is emitted after the entrypoint")
		case roleUnknown:
			if host(r.Target) {
				drop(in.Entrypoint, r, "provided by the host")
				continue
			}
			unresolved(in.Entrypoint, r, "no module with this identity")
		default:
			drop(in.Entrypoint, r, "loaded before the entrypoint")
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return g, nil
}

func globForm(s string) string {
	return strings.ReplaceAll(s, ".", "/")
}

func matchAny(patterns []string, id string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(globForm(p), globForm(id)); ok {
			return true
		}
	}
	return false
}
