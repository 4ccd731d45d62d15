// Package compose assembles already-sanitized sections into the final
// script text.
//
// Section order is fixed: header, banner, external dependencies, namespace,
// core modules, entrypoint, footer. In local scope everything between the
// banner and the footer is wrapped in a single do ... end block.
package compose

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external"
)

// Scope selects whether the body is wrapped in a block.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeLocal  Scope = "local"
)

// ParseScope validates a scope name. The empty string means global.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeGlobal:
		return ScopeGlobal, nil
	case ScopeLocal:
		return ScopeLocal, nil
	}
	return "", fmt.Errorf("invalid scope %q: must be 'global' or 'local'", s)
}

// ErrMissingRole is returned when the namespace or entrypoint is absent.
var ErrMissingRole = errors.New("missing required role")

// File is a single role file. Path is relative to the source root.
type File struct {
	Path string
	Text string
}

// Module is a sanitized core module.
type Module struct {
	ID   string
	Path string
	Text string
}

// Input is everything a plan is built from. Core must already be in
// emission order.
type Input struct {
	Header       *File
	Dependencies []external.Block
	Namespace    *File
	Core         []Module
	Entrypoint   *File
	Footer       *File
	Scope        Scope
	// Now overrides the banner clock.
	Now func() time.Time
}

// SectionKind names a part of the output.
type SectionKind string

const (
	SectionHeader     SectionKind = "header"
	SectionBanner     SectionKind = "banner"
	SectionScopeOpen  SectionKind = "scope-open"
	SectionDependency SectionKind = "dependency"
	SectionNamespace  SectionKind = "namespace"
	SectionCore       SectionKind = "core"
	SectionEntrypoint SectionKind = "entrypoint"
	SectionScopeClose SectionKind = "scope-close"
	SectionFooter     SectionKind = "footer"
)

// Section is one emitted chunk of text.
type Section struct {
	Kind SectionKind
	Name string
	Text string
}

// Plan is the ordered section list for one output file.
type Plan struct {
	scope    Scope
	sections []Section
}

// NewPlan validates in and lays out its sections.
func NewPlan(in Input) (*Plan, error) {
	if in.Namespace == nil {
		return nil, fmt.Errorf("%w: namespace", ErrMissingRole)
	}
	if in.Entrypoint == nil {
		return nil, fmt.Errorf("%w: entrypoint", ErrMissingRole)
	}
	scope, err := ParseScope(string(in.Scope))
	if err != nil {
		return nil, err
	}
	in.Scope = scope

	now := time.Now
	if in.Now != nil {
		now = in.Now
	}
	banner, err := renderBanner(in, now())
	if err != nil {
		return nil, fmt.Errorf("failed to render banner: %w", err)
	}

	p := &Plan{scope: scope}
	if in.Header != nil {
		p.add(SectionHeader, in.Header.Path, in.Header.Text+"\n")
	}
	p.add(SectionBanner, "", banner+"\n")
	if scope == ScopeLocal {
		p.add(SectionScopeOpen, "", "-- Beginning of local scope\ndo\n\n")
	}
	for _, b := range in.Dependencies {
		p.add(SectionDependency, b.Name, b.Text+"\n")
	}
	p.add(SectionNamespace, in.Namespace.Path,
		"-- Namespace Content from: "+in.Namespace.Path+"\n"+in.Namespace.Text+"\n")
	for _, m := range in.Core {
		p.add(SectionCore, m.ID,
			"\n-- Core Module Content from: "+m.Path+"\n-- Module Name: "+m.ID+"\n"+m.Text+"\n")
	}
	p.add(SectionEntrypoint, in.Entrypoint.Path,
		"\n-- Entrypoint Content from: "+in.Entrypoint.Path+"\n"+in.Entrypoint.Text+"\n")
	if scope == ScopeLocal {
		p.add(SectionScopeClose, "", "\n-- End of local scope\nend\n")
	}
	if in.Footer != nil {
		p.add(SectionFooter, in.Footer.Path,
			"\n-- Footer Content from: "+in.Footer.Path+"\n"+in.Footer.Text+"\n")
	}
	return p, nil
}

func (p *Plan) add(kind SectionKind, name, text string) {
	p.sections = append(p.sections, Section{Kind: kind, Name: name, Text: text})
}

// Scope returns the plan's scope mode.
func (p *Plan) Scope() Scope { return p.scope }

// Sections returns a copy of the ordered sections.
func (p *Plan) Sections() []Section {
	return append([]Section(nil), p.sections...)
}

// Emit concatenates the sections.
func (p *Plan) Emit() string {
	var b strings.Builder
	for _, s := range p.sections {
		b.WriteString(s.Text)
	}
	return b.String()
}
