// Package build runs the composition pipeline: discover source files, parse
// them, order core modules by their requires, sanitize, fetch external
// dependencies, assemble the output and write it.
//
// Nothing is written unless every step succeeds.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/compose"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external/policy"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/finalizer"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/graph"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/logger"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/parse"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/report"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/safeio"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/sanitize"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/source"
)

// Diagnostic rule names produced by the pipeline itself. Sanitizer warnings
// keep the sanitizer's rule names.
const (
	RuleDynamicRequire = "dynamic-require"
	RuleDependency     = "dependency"
)

// Options configures a build. Paths are as the user gave them; role files
// are relative to SourceDir.
type Options struct {
	SourceDir      string
	OutputFile     string
	HeaderFile     string
	NamespaceFile  string
	EntrypointFile string
	FooterFile     string

	Strict bool
	Scope  compose.Scope

	Dependencies   []external.Dependency
	Exclude        []string
	IgnoreRequires []string
	NoIgnore       bool

	// Parallel bounds concurrent parsing and sanitization.
	Parallel   int
	LineEnding finalizer.LineEnding

	// Policy, when set, must allow every dependency before any is fetched.
	Policy *policy.Engine
	// Fetcher retrieves dependencies. Required when Dependencies is non-empty.
	Fetcher *external.Fetcher

	// Now overrides the banner clock.
	Now func() time.Time
}

// Result is what a build produced.
type Result struct {
	// Output is the finalized script text. Empty for a plan.
	Output string
	// Order lists core module identities in emission order.
	Order       []string
	Plan        report.Plan
	Diagnostics []report.Diagnostic
	// Written is true once Output has been stored at OutputFile.
	Written bool
}

// Builder runs the pipeline.
type Builder struct {
	opts Options
}

// New creates a Builder.
func New(opts Options) *Builder {
	if opts.Parallel <= 0 {
		opts.Parallel = 1
	}
	if opts.Scope == "" {
		opts.Scope = compose.ScopeGlobal
	}
	if opts.LineEnding == "" {
		opts.LineEnding = finalizer.LF
	}
	return &Builder{opts: opts}
}

// analysis is the state shared by Plan and Build.
type analysis struct {
	bundle *source.Bundle
	graph  *graph.Graph
	core   []*source.Module // emission order
	diags  []report.Diagnostic
}

// Plan resolves the module order without fetching, sanitizing or writing.
func (b *Builder) Plan(ctx context.Context) (*Result, error) {
	a, err := b.analyze(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.checkPolicy(ctx); err != nil {
		return nil, err
	}
	res := &Result{Order: a.order(), Diagnostics: a.diags}
	res.Plan = b.describe(a)
	return res, nil
}

// Build runs the full pipeline and writes OutputFile.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	res, err := b.Compose(ctx)
	if err != nil {
		return nil, err
	}
	if b.opts.OutputFile == "" {
		return nil, errors.New("no output file configured")
	}
	out, err := safeio.CleanUserPath(b.opts.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("invalid output path: %w", err)
	}
	if err := safeio.WriteFileAtomic(out, []byte(res.Output)); err != nil {
		return nil, fmt.Errorf("failed to write output file %s: %w", out, err)
	}
	res.Written = true
	logger.Info("Composed script written",
		logger.String("output", out),
		logger.Int("core_modules", len(res.Order)),
		logger.Int("dependencies", len(b.opts.Dependencies)),
		logger.Int("warnings", len(res.Diagnostics)),
		logger.Duration("elapsed", time.Since(start)))
	return res, nil
}

// Compose runs the pipeline and returns the output text without writing it.
func (b *Builder) Compose(ctx context.Context) (*Result, error) {
	a, err := b.analyze(ctx)
	if err != nil {
		return nil, err
	}

	blocks, depDiags, err := b.fetchDependencies(ctx)
	if err != nil {
		return nil, err
	}

	sanitized, err := b.sanitizeAll(ctx, a)
	if err != nil {
		return nil, err
	}

	in := compose.Input{
		Dependencies: blocks,
		Namespace:    &compose.File{Path: a.bundle.Namespace.RelPath, Text: sanitized.namespace},
		Entrypoint:   &compose.File{Path: a.bundle.Entrypoint.RelPath, Text: sanitized.entrypoint},
		Scope:        b.opts.Scope,
		Now:          b.opts.Now,
	}
	if h := a.bundle.Header; h != nil {
		in.Header = &compose.File{Path: h.RelPath, Text: h.Source}
	}
	if f := a.bundle.Footer; f != nil {
		in.Footer = &compose.File{Path: f.RelPath, Text: f.Source}
	}
	for i, m := range a.core {
		in.Core = append(in.Core, compose.Module{ID: m.ID, Path: m.RelPath, Text: sanitized.core[i]})
	}
	plan, err := compose.NewPlan(in)
	if err != nil {
		return nil, err
	}
	output, _ := finalizer.Finalize(plan.Emit(), b.opts.LineEnding)

	diags := mergeDiagnostics(a.diags, depDiags, sanitized.diags)

	res := &Result{Output: output, Order: a.order(), Diagnostics: diags}
	res.Plan = b.describe(a)
	res.Plan.Warnings = diags
	return res, nil
}

func (b *Builder) analyze(ctx context.Context) (*analysis, error) {
	bundle, err := source.Discover(source.Options{
		Root:       b.opts.SourceDir,
		Header:     b.opts.HeaderFile,
		Namespace:  b.opts.NamespaceFile,
		Entrypoint: b.opts.EntrypointFile,
		Footer:     b.opts.FooterFile,
		Exclude:    b.excludes(),
		NoIgnore:   b.opts.NoIgnore,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered source files",
		logger.String("root", bundle.Root),
		logger.Int("core_modules", len(bundle.Core)))

	modules := bundle.Modules()
	extractions := make([]graph.Extraction, len(modules))
	err = runOrdered(ctx, len(modules), b.opts.Parallel, func(i int) error {
		m := modules[i]
		chunk, err := parse.Parse(m.RelPath, m.Source)
		if err != nil {
			return err
		}
		m.Chunk = chunk
		extractions[i] = graph.Extract(chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}

	a := &analysis{bundle: bundle}
	units := make(map[*source.Module]graph.Unit, len(modules))
	for i, m := range modules {
		ext := extractions[i]
		for _, r := range ext.Requires {
			m.Requires = append(m.Requires, r.Target)
		}
		for _, w := range ext.Dynamic {
			a.diags = append(a.diags, report.Diagnostic{
				Rule:     RuleDynamicRequire,
				Severity: report.SeverityWarning,
				File:     m.RelPath,
				Line:     w.Pos.Line,
				Column:   w.Pos.Column,
				Message:  "dynamic require ignored: " + w.Reason,
			})
		}
		units[m] = graph.Unit{ID: m.ID, Dir: m.Dir, File: m.RelPath, Requires: ext.Requires}
	}

	in := graph.BuildInput{
		Namespace:      units[bundle.Namespace],
		Entrypoint:     units[bundle.Entrypoint],
		External:       external.Names(b.opts.Dependencies),
		IgnoreRequires: b.opts.IgnoreRequires,
	}
	if bundle.Header != nil {
		in.HeaderID = bundle.Header.ID
	}
	if bundle.Footer != nil {
		in.FooterID = bundle.Footer.ID
	}
	for _, m := range bundle.Core {
		in.Core = append(in.Core, units[m])
	}
	g, err := graph.Build(in)
	if err != nil {
		return nil, err
	}
	order, err := g.Sort()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*source.Module, len(bundle.Core))
	for _, m := range bundle.Core {
		byID[m.ID] = m
	}
	for _, id := range order {
		a.core = append(a.core, byID[id])
	}
	a.graph = g
	for _, d := range g.Dropped {
		logger.Debug("Require satisfied without an ordering edge",
			logger.String("module", d.Module),
			logger.String("target", d.Target),
			logger.String("reason", d.Reason))
	}
	return a, nil
}

// excludes adds the output file to the configured excludes when it lies
// inside the source directory, so a previous build is never read back in.
func (b *Builder) excludes() []string {
	patterns := slices.Clone(b.opts.Exclude)
	if b.opts.OutputFile == "" {
		return patterns
	}
	root, err := filepath.Abs(b.opts.SourceDir)
	if err != nil {
		return patterns
	}
	out, err := filepath.Abs(b.opts.OutputFile)
	if err != nil {
		return patterns
	}
	rel, err := filepath.Rel(root, out)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return patterns
	}
	return append(patterns, globMeta.Replace(filepath.ToSlash(rel)))
}

var globMeta = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "{", `\{`)

func (a *analysis) order() []string {
	ids := make([]string, len(a.core))
	for i, m := range a.core {
		ids[i] = m.ID
	}
	return ids
}

func (b *Builder) checkPolicy(ctx context.Context) error {
	if b.opts.Policy == nil || len(b.opts.Dependencies) == 0 {
		return nil
	}
	return b.opts.Policy.Check(ctx, b.opts.Dependencies)
}

func (b *Builder) fetchDependencies(ctx context.Context) ([]external.Block, []report.Diagnostic, error) {
	deps := b.opts.Dependencies
	if len(deps) == 0 {
		return nil, nil, nil
	}
	if err := b.checkPolicy(ctx); err != nil {
		return nil, nil, err
	}
	if b.opts.Fetcher == nil {
		return nil, nil, errors.New("dependencies declared but no fetcher configured")
	}
	payloads, err := b.opts.Fetcher.FetchAll(ctx, deps)
	if err != nil {
		return nil, nil, err
	}
	var diags []report.Diagnostic
	for _, p := range payloads {
		for _, w := range p.Warnings {
			diags = append(diags, report.Diagnostic{
				Rule:     RuleDependency,
				Severity: report.SeverityWarning,
				Message:  w,
			})
		}
	}
	return external.Sequence(external.Pair(deps, payloads)), diags, nil
}

type sanitizedSet struct {
	namespace  string
	entrypoint string
	core       []string
	diags      []report.Diagnostic
}

// sanitizeAll runs the sanitizer over namespace, core modules and entrypoint.
// Header and footer are emitted verbatim.
func (b *Builder) sanitizeAll(ctx context.Context, a *analysis) (*sanitizedSet, error) {
	modules := make([]*source.Module, 0, len(a.core)+2)
	modules = append(modules, a.bundle.Namespace)
	modules = append(modules, a.core...)
	modules = append(modules, a.bundle.Entrypoint)

	texts := make([]string, len(modules))
	reports := make([]*sanitize.Report, len(modules))
	opts := sanitize.Options{Strict: b.opts.Strict}
	err := runOrdered(ctx, len(modules), b.opts.Parallel, func(i int) error {
		m := modules[i]
		text, rep := sanitize.Sanitize(m.RelPath, m.Source, m.Chunk, opts)
		if rep.Fatal != nil {
			return rep.Fatal
		}
		texts[i], reports[i] = text, rep
		return nil
	})
	if err != nil {
		return nil, err
	}

	set := &sanitizedSet{
		namespace:  texts[0],
		core:       texts[1 : len(texts)-1],
		entrypoint: texts[len(texts)-1],
	}
	for i, rep := range reports {
		for _, w := range rep.Warnings {
			set.diags = append(set.diags, report.Diagnostic{
				Rule:     w.Rule,
				Severity: report.SeverityWarning,
				File:     w.File,
				Line:     w.Pos.Line,
				Column:   w.Pos.Column,
				Message:  w.Message,
			})
		}
		if n := len(rep.Removed) + len(rep.Rewritten); n > 0 {
			logger.Trace("Sanitized module",
				logger.String("module", modules[i].RelPath),
				logger.Int("removed", sum(rep.Removed)),
				logger.Int("rewritten", sum(rep.Rewritten)))
		}
	}
	return set, nil
}

func (b *Builder) describe(a *analysis) report.Plan {
	p := report.Plan{
		SourceDirectory: a.bundle.Root,
		Scope:           string(b.opts.Scope),
		Strict:          b.opts.Strict,
		Warnings:        a.diags,
	}
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, a.bundle.Root); err == nil {
			p.SourceDirectory = filepath.ToSlash(rel)
		}
	}
	if a.bundle.Header != nil {
		p.Header = a.bundle.Header.RelPath
	}
	if a.bundle.Footer != nil {
		p.Footer = a.bundle.Footer.RelPath
	}
	for _, d := range b.opts.Dependencies {
		p.Dependencies = append(p.Dependencies, report.PlanDependency{
			Name: d.Name, Type: string(d.Type), Source: d.Source, File: d.File,
		})
	}
	add := func(m *source.Module, requires []string) {
		p.Modules = append(p.Modules, report.PlanModule{
			Order:    len(p.Modules) + 1,
			ID:       m.ID,
			File:     m.RelPath,
			Role:     string(m.Role),
			Requires: requires,
		})
	}
	add(a.bundle.Namespace, a.bundle.Namespace.Requires)
	for _, m := range a.core {
		add(m, a.graph.Requires(m.ID))
	}
	add(a.bundle.Entrypoint, a.bundle.Entrypoint.Requires)
	for _, d := range a.graph.Dropped {
		p.Dropped = append(p.Dropped, report.PlanDropped{Module: d.Module, Target: d.Target, Reason: d.Reason})
	}
	return p
}

// runOrdered calls fn for 0..n-1 with at most limit calls in flight. Every
// call runs to completion; the error of the lowest index is returned.
func runOrdered(ctx context.Context, n, limit int, fn func(i int) error) error {
	errs := make([]error, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = fn(i)
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// mergeDiagnostics returns the parts in report order. The inputs are left
// untouched.
func mergeDiagnostics(parts ...[]report.Diagnostic) []report.Diagnostic {
	diags := slices.Concat(parts...)
	report.SortDiagnostics(diags)
	return diags
}

func sum(m map[string]int) int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}
