// Package sanitize rewrites a parsed Lua module so it runs inside the DCS
// mission scripting environment.
//
// Every decision is made on the syntax tree, so formatting, comments and
// string contents can never trigger or hide a rule. The output is produced
// by splicing byte ranges of the original source, which keeps everything the
// rules do not touch exactly as written. Running Sanitize on its own output
// changes nothing.
package sanitize

import (
	"cmp"
	"slices"
	"strings"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/ast"
)

// Options controls optional rules.
type Options struct {
	// Strict enables the checks for os, io and lfs.
	Strict bool
	// Rules overrides DefaultRules when non-nil.
	Rules []Rule
}

type edit struct {
	start, end int
	text       string
}

type sanitizer struct {
	src    string
	opts   Options
	rules  []Rule
	report *Report
	edits  []edit
}

// Sanitize applies the rule table to chunk, which must have been parsed from
// src. On a fatal finding the returned text is empty and report.Fatal is set.
func Sanitize(file, src string, chunk *ast.Chunk, opts Options) (string, *Report) {
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules
	}
	s := &sanitizer{src: src, opts: opts, rules: rules, report: newReport(file)}

	if err := s.checkFatal(chunk); err != nil {
		s.report.Fatal = err
		return "", s.report
	}
	s.walkBlock(chunk.Block)
	return s.apply(), s.report
}

func (s *sanitizer) active(scope Scope) []Rule {
	var out []Rule
	for _, r := range s.rules {
		if r.Scope != scope || (r.StrictOnly && !s.opts.Strict) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// checkFatal reports the earliest match of the highest priority tree rule.
func (s *sanitizer) checkFatal(chunk *ast.Chunk) error {
	for _, r := range s.active(ScopeTree) {
		var (
			hit    ast.Node
			detail string
		)
		ast.Inspect(chunk, func(n ast.Node) bool {
			if ok, d := r.Match(n); ok {
				if hit == nil || n.Span().Start.Offset < hit.Span().Start.Offset {
					hit, detail = n, d
				}
			}
			return true
		})
		if hit == nil {
			continue
		}
		pos := hit.Span().Start
		line := sourceLine(s.src, pos.Offset)
		if r.Name == RuleGoto {
			return &GotoError{File: s.report.File, Pos: pos, Label: detail, Line: line}
		}
		return &StrictModeViolationError{File: s.report.File, Pos: pos, Ref: detail, Line: line}
	}
	return nil
}

func (s *sanitizer) walkBlock(block []ast.Stmt) {
	for _, stmt := range block {
		s.walkStmt(stmt)
	}
}

func (s *sanitizer) walkStmt(stmt ast.Stmt) {
	exprs, blocks := ast.StmtParts(stmt)

	for _, r := range s.active(ScopeStatement) {
		matched, detail := false, ""
		for _, e := range exprs {
			ast.InspectExprs(e, func(x ast.Expr) bool {
				if matched {
					return false
				}
				matched, detail = r.Match(x)
				return !matched
			})
			if matched {
				break
			}
		}
		if !matched {
			continue
		}
		start, end := expandToLines(s.src, stmt.Span().Start.Offset, stmt.Span().End.Offset)
		s.edits = append(s.edits, edit{start: start, end: end})
		s.report.Removed[r.Name]++
		if r.Warn {
			s.report.warn(r.Name, stmt.Span().Start, "%s", detail)
		}
		return
	}

	callRules := s.active(ScopeCall)
	for _, e := range exprs {
		ast.InspectExprs(e, func(x ast.Expr) bool {
			switch x := x.(type) {
			case *ast.FunctionExpr:
				s.walkBlock(x.Body)
			case *ast.CallExpr:
				for _, r := range callRules {
					if ok, _ := r.Match(x); ok {
						sp := x.Func.Span()
						s.edits = append(s.edits, edit{start: sp.Start.Offset, end: sp.End.Offset, text: r.Callee})
						s.report.Rewritten[r.Name]++
						break
					}
				}
			}
			return true
		})
	}
	for _, b := range blocks {
		s.walkBlock(b)
	}
}

// apply splices the edits into the source. Edits never overlap: a removed
// statement is not descended into, and callee spans are disjoint.
func (s *sanitizer) apply() string {
	if len(s.edits) == 0 {
		return s.src
	}
	slices.SortFunc(s.edits, func(a, b edit) int { return cmp.Compare(a.start, b.start) })
	var b strings.Builder
	b.Grow(len(s.src))
	last := 0
	for _, e := range s.edits {
		if e.start < last {
			continue
		}
		b.WriteString(s.src[last:e.start])
		b.WriteString(e.text)
		last = e.end
	}
	b.WriteString(s.src[last:])
	return b.String()
}

// expandToLines widens a removal to whole lines when the statement is the
// only code on them: leading indentation, trailing blanks, a trailing line
// comment and the line break all go with it.
func expandToLines(src string, start, end int) (int, int) {
	lineStart := start
	for lineStart > 0 && (src[lineStart-1] == ' ' || src[lineStart-1] == '\t') {
		lineStart--
	}
	if lineStart > 0 && src[lineStart-1] != '\n' {
		return start, end
	}

	i := end
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if strings.HasPrefix(src[i:], "--") && !isLongBracket(src[i+2:]) {
		for i < len(src) && src[i] != '\n' && src[i] != '\r' {
			i++
		}
	}
	switch {
	case i == len(src):
		return lineStart, i
	case strings.HasPrefix(src[i:], "\r\n"):
		return lineStart, i + 2
	case src[i] == '\n':
		return lineStart, i + 1
	}
	return start, end
}

func isLongBracket(s string) bool {
	if !strings.HasPrefix(s, "[") {
		return false
	}
	rest := strings.TrimLeft(s[1:], "=")
	return strings.HasPrefix(rest, "[")
}

func sourceLine(src string, offset int) string {
	start := strings.LastIndexByte(src[:offset], '\n') + 1
	end := strings.IndexByte(src[offset:], '\n')
	if end < 0 {
		end = len(src)
	} else {
		end += offset
	}
	return strings.TrimSpace(src[start:end])
}
