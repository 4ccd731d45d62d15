// Package parse turns Lua source into an ast.Chunk.
//
// The grammar is Lua 5.1 plus the 5.2/5.3 additions DCS scripts run into in
// the wild: goto and labels, integer division and the bitwise operators, and
// local attributes. Every node carries byte offsets into the original text so
// callers can edit the source in place.
package parse

import (
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/ast"
)

// Parse parses src. file is used only for error messages.
func Parse(file, src string) (*ast.Chunk, error) {
	p := &parser{lx: newLexer(file, src), file: file}
	if err := p.advance(); err != nil {
		return nil, err
	}
	block, err := p.block()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.unexpected("'<eof>' expected")
	}
	return &ast.Chunk{
		Name:  file,
		Block: block,
		Loc:   ast.Span{Start: ast.Pos{Line: 1, Column: 1}, End: p.tok.end},
	}, nil
}

type parser struct {
	lx   *lexer
	file string
	tok  token
	// end of the last consumed token
	prevEnd ast.Pos
}

func (p *parser) advance() error {
	p.prevEnd = p.tok.end
	tok, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) unexpected(what string) error {
	return newError(p.file, p.tok.pos, "%s near %s", what, p.tok)
}

func (p *parser) isOp(text string) bool      { return p.tok.is(tokOp, text) }
func (p *parser) isKeyword(text string) bool { return p.tok.is(tokKeyword, text) }

// accept consumes the current token when it is the given operator or keyword.
func (p *parser) accept(text string) (bool, error) {
	if (p.tok.kind == tokOp || p.tok.kind == tokKeyword) && p.tok.text == text {
		return true, p.advance()
	}
	return false, nil
}

func (p *parser) expect(text string) error {
	ok, err := p.accept(text)
	if err != nil {
		return err
	}
	if !ok {
		return p.unexpected("'" + text + "' expected")
	}
	return nil
}

// expectMatch reports the opening token's line when the closer is missing.
func (p *parser) expectMatch(closer, opener string, at ast.Pos) error {
	ok, err := p.accept(closer)
	if err != nil {
		return err
	}
	if !ok {
		if at.Line == p.tok.pos.Line {
			return p.unexpected("'" + closer + "' expected")
		}
		return newError(p.file, p.tok.pos, "'%s' expected (to close '%s' at line %d) near %s", closer, opener, at.Line, p.tok)
	}
	return nil
}

func (p *parser) name() (*ast.Name, error) {
	if p.tok.kind != tokName {
		return nil, p.unexpected("<name> expected")
	}
	n := &ast.Name{Value: p.tok.text, Loc: ast.Span{Start: p.tok.pos, End: p.tok.end}}
	return n, p.advance()
}

func (p *parser) span(start ast.Pos) ast.Span {
	return ast.Span{Start: start, End: p.prevEnd}
}

func (p *parser) blockFollows(withUntil bool) bool {
	switch {
	case p.tok.kind == tokEOF:
		return true
	case p.tok.kind != tokKeyword:
		return false
	}
	switch p.tok.text {
	case "else", "elseif", "end":
		return true
	case "until":
		return withUntil
	}
	return false
}

func (p *parser) block() ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for !p.blockFollows(true) {
		if p.isKeyword("return") {
			s, err := p.returnStmt()
			if err != nil {
				return nil, err
			}
			return append(stmts, s), nil
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

// finish consumes an optional `;` so it becomes part of the statement span,
// then returns the statement's span.
func (p *parser) finish(start ast.Pos) (ast.Span, error) {
	if p.isOp(";") {
		if err := p.advance(); err != nil {
			return ast.Span{}, err
		}
	}
	return p.span(start), nil
}

func (p *parser) statement() (ast.Stmt, error) {
	start := p.tok.pos
	if p.tok.kind == tokOp {
		switch p.tok.text {
		case ";":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &ast.EmptyStmt{Loc: p.span(start)}, nil
		case "::":
			return p.labelStmt(start)
		}
	}
	if p.tok.kind == tokKeyword {
		switch p.tok.text {
		case "if":
			return p.ifStmt(start)
		case "while":
			return p.whileStmt(start)
		case "do":
			return p.doStmt(start)
		case "for":
			return p.forStmt(start)
		case "repeat":
			return p.repeatStmt(start)
		case "function":
			return p.functionStmt(start)
		case "local":
			return p.localStmt(start)
		case "goto":
			return p.gotoStmt(start)
		case "break":
			if err := p.advance(); err != nil {
				return nil, err
			}
			loc, err := p.finish(start)
			return &ast.BreakStmt{Loc: loc}, err
		}
	}
	return p.exprStmt(start)
}

func (p *parser) labelStmt(start ast.Pos) (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	n, err := p.name()
	if err != nil {
		return nil, err
	}
	if err := p.expect("::"); err != nil {
		return nil, err
	}
	loc, err := p.finish(start)
	return &ast.LabelStmt{Label: n.Value, Loc: loc}, err
}

func (p *parser) gotoStmt(start ast.Pos) (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	n, err := p.name()
	if err != nil {
		return nil, err
	}
	loc, err := p.finish(start)
	return &ast.GotoStmt{Label: n.Value, Loc: loc}, err
}

func (p *parser) ifStmt(start ast.Pos) (ast.Stmt, error) {
	s := &ast.IfStmt{}
	for {
		// "if" or "elseif"
		if err := p.advance(); err != nil {
			return nil, err
		}
		cond, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect("then"); err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		s.Clauses = append(s.Clauses, &ast.IfClause{Cond: cond, Body: body})
		if !p.isKeyword("elseif") {
			break
		}
	}
	if ok, err := p.accept("else"); err != nil {
		return nil, err
	} else if ok {
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		if body == nil {
			body = []ast.Stmt{}
		}
		s.Else = body
	}
	if err := p.expectMatch("end", "if", start); err != nil {
		return nil, err
	}
	loc, err := p.finish(start)
	s.Loc = loc
	return s, err
}

func (p *parser) whileStmt(start ast.Pos) (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.expect("do"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.expectMatch("end", "while", start); err != nil {
		return nil, err
	}
	loc, err := p.finish(start)
	return &ast.WhileStmt{Cond: cond, Body: body, Loc: loc}, err
}

func (p *parser) doStmt(start ast.Pos) (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.expectMatch("end", "do", start); err != nil {
		return nil, err
	}
	loc, err := p.finish(start)
	return &ast.DoStmt{Body: body, Loc: loc}, err
}

func (p *parser) repeatStmt(start ast.Pos) (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.expectMatch("until", "repeat", start); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	loc, err := p.finish(start)
	return &ast.RepeatStmt{Body: body, Cond: cond, Loc: loc}, err
}

func (p *parser) forStmt(start ast.Pos) (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	first, err := p.name()
	if err != nil {
		return nil, err
	}
	if p.isOp("=") {
		return p.numericFor(start, first)
	}
	if p.isOp(",") || p.isKeyword("in") {
		return p.genericFor(start, first)
	}
	return nil, p.unexpected("'=' or 'in' expected")
}

func (p *parser) numericFor(start ast.Pos, v *ast.Name) (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	s := &ast.NumericForStmt{Var: v}
	var err error
	if s.Start, err = p.expr(); err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	if s.Stop, err = p.expr(); err != nil {
		return nil, err
	}
	if ok, err := p.accept(","); err != nil {
		return nil, err
	} else if ok {
		if s.Step, err = p.expr(); err != nil {
			return nil, err
		}
	}
	if s.Body, err = p.loopBody(start); err != nil {
		return nil, err
	}
	s.Loc, err = p.finish(start)
	return s, err
}

func (p *parser) genericFor(start ast.Pos, first *ast.Name) (ast.Stmt, error) {
	s := &ast.GenericForStmt{Names: []*ast.Name{first}}
	for p.isOp(",") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.name()
		if err != nil {
			return nil, err
		}
		s.Names = append(s.Names, n)
	}
	if err := p.expect("in"); err != nil {
		return nil, err
	}
	var err error
	if s.Exprs, err = p.exprList(); err != nil {
		return nil, err
	}
	if s.Body, err = p.loopBody(start); err != nil {
		return nil, err
	}
	s.Loc, err = p.finish(start)
	return s, err
}

func (p *parser) loopBody(start ast.Pos) ([]ast.Stmt, error) {
	if err := p.expect("do"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.expectMatch("end", "for", start); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *parser) functionStmt(start ast.Pos) (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	n, err := p.name()
	if err != nil {
		return nil, err
	}
	var target ast.Expr = n
	for p.isOp(".") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		key, err := p.keyName()
		if err != nil {
			return nil, err
		}
		target = &ast.IndexExpr{Obj: target, Key: key, Dot: true, Loc: ast.Span{Start: n.Loc.Start, End: key.Loc.End}}
	}
	s := &ast.FunctionStmt{Target: target}
	isMethod := false
	if p.isOp(":") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		m, err := p.name()
		if err != nil {
			return nil, err
		}
		s.Method = m.Value
		isMethod = true
	}
	if s.Func, err = p.funcBody(start, isMethod); err != nil {
		return nil, err
	}
	s.Loc, err = p.finish(start)
	return s, err
}

func (p *parser) localStmt(start ast.Pos) (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if ok, err := p.accept("function"); err != nil {
		return nil, err
	} else if ok {
		n, err := p.name()
		if err != nil {
			return nil, err
		}
		fn, err := p.funcBody(start, false)
		if err != nil {
			return nil, err
		}
		loc, err := p.finish(start)
		return &ast.LocalFunctionStmt{Name: n, Func: fn, Loc: loc}, err
	}

	s := &ast.LocalStmt{}
	for {
		n, err := p.name()
		if err != nil {
			return nil, err
		}
		attr := ""
		if p.isOp("<") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			a, err := p.name()
			if err != nil {
				return nil, err
			}
			if err := p.expect(">"); err != nil {
				return nil, err
			}
			attr = a.Value
		}
		s.Names = append(s.Names, n)
		s.Attrs = append(s.Attrs, attr)
		if !p.isOp(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if ok, err := p.accept("="); err != nil {
		return nil, err
	} else if ok {
		if s.Values, err = p.exprList(); err != nil {
			return nil, err
		}
	}
	var err error
	s.Loc, err = p.finish(start)
	return s, err
}

func (p *parser) returnStmt() (ast.Stmt, error) {
	start := p.tok.pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	s := &ast.ReturnStmt{}
	if !p.blockFollows(true) && !p.isOp(";") {
		var err error
		if s.Values, err = p.exprList(); err != nil {
			return nil, err
		}
	}
	var err error
	if s.Loc, err = p.finish(start); err != nil {
		return nil, err
	}
	if !p.blockFollows(true) {
		return nil, p.unexpected("'<eof>' expected")
	}
	return s, nil
}

func (p *parser) exprStmt(start ast.Pos) (ast.Stmt, error) {
	e, err := p.suffixedExpr()
	if err != nil {
		return nil, err
	}
	if p.isOp("=") || p.isOp(",") {
		targets := []ast.Expr{e}
		for p.isOp(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			t, err := p.suffixedExpr()
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
		}
		for _, t := range targets {
			switch t.(type) {
			case *ast.Name, *ast.IndexExpr:
			default:
				return nil, newError(p.file, t.Span().Start, "syntax error: cannot assign to expression")
			}
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		values, err := p.exprList()
		if err != nil {
			return nil, err
		}
		loc, err := p.finish(start)
		return &ast.AssignStmt{Targets: targets, Values: values, Loc: loc}, err
	}
	switch e.(type) {
	case *ast.CallExpr, *ast.MethodCallExpr:
	default:
		return nil, newError(p.file, start, "syntax error near %s", p.tok)
	}
	loc, err := p.finish(start)
	return &ast.CallStmt{Call: e, Loc: loc}, err
}

// ---------------------------------------------------------------------------
// Expressions

func (p *parser) exprList() ([]ast.Expr, error) {
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	list := []ast.Expr{e}
	for p.isOp(",") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if e, err = p.expr(); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, nil
}

func (p *parser) expr() (ast.Expr, error) {
	return p.subExpr(0)
}

func (p *parser) isUnaryOp() bool {
	switch p.tok.kind {
	case tokKeyword:
		return p.tok.text == "not"
	case tokOp:
		switch p.tok.text {
		case "-", "#", "~":
			return true
		}
	}
	return false
}

func (p *parser) binaryOp() (string, [2]int, bool) {
	if p.tok.kind != tokOp && p.tok.kind != tokKeyword {
		return "", [2]int{}, false
	}
	prio, ok := binaryPriority[p.tok.text]
	return p.tok.text, prio, ok
}

// subExpr parses a chain of binary operators whose left priority exceeds
// limit, the same way Lua's own parser does.
func (p *parser) subExpr(limit int) (ast.Expr, error) {
	start := p.tok.pos
	var left ast.Expr
	if p.isUnaryOp() {
		op := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.subExpr(unaryPriority)
		if err != nil {
			return nil, err
		}
		left = &ast.UnaryExpr{Op: op, Operand: operand, Loc: p.span(start)}
	} else {
		var err error
		if left, err = p.simpleExpr(); err != nil {
			return nil, err
		}
	}
	for {
		op, prio, ok := p.binaryOp()
		if !ok || prio[0] <= limit {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.subExpr(prio[1])
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Loc: p.span(start)}
	}
}

func (p *parser) simpleExpr() (ast.Expr, error) {
	start := p.tok.pos
	tok := p.tok
	switch {
	case tok.kind == tokNumber:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.NumberExpr{Raw: tok.text, Loc: p.span(start)}, nil
	case tok.kind == tokString:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return stringExpr(tok), nil
	case tok.is(tokKeyword, "nil"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.NilExpr{Loc: p.span(start)}, nil
	case tok.is(tokKeyword, "true"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.TrueExpr{Loc: p.span(start)}, nil
	case tok.is(tokKeyword, "false"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.FalseExpr{Loc: p.span(start)}, nil
	case tok.is(tokOp, "..."):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.VarargExpr{Loc: p.span(start)}, nil
	case tok.is(tokOp, "{"):
		return p.table()
	case tok.is(tokKeyword, "function"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.funcBody(start, false)
	}
	return p.suffixedExpr()
}

func stringExpr(tok token) *ast.StringExpr {
	return &ast.StringExpr{
		Value: tok.value,
		Raw:   tok.text,
		Long:  tok.long,
		Loc:   ast.Span{Start: tok.pos, End: tok.end},
	}
}

func (p *parser) primaryExpr() (ast.Expr, error) {
	start := p.tok.pos
	switch {
	case p.tok.kind == tokName:
		return p.name()
	case p.isOp("("):
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expectMatch(")", "(", start); err != nil {
			return nil, err
		}
		return &ast.ParenExpr{Inner: inner, Loc: p.span(start)}, nil
	}
	return nil, p.unexpected("unexpected symbol")
}

func (p *parser) suffixedExpr() (ast.Expr, error) {
	start := p.tok.pos
	e, err := p.primaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("."):
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.keyName()
			if err != nil {
				return nil, err
			}
			e = &ast.IndexExpr{Obj: e, Key: key, Dot: true, Loc: p.span(start)}
		case p.isOp("["):
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			e = &ast.IndexExpr{Obj: e, Key: key, Loc: p.span(start)}
		case p.isOp(":"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			m, err := p.name()
			if err != nil {
				return nil, err
			}
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			e = &ast.MethodCallExpr{Obj: e, Method: m, Args: args, Loc: p.span(start)}
		case p.isOp("("), p.isOp("{"), p.tok.kind == tokString:
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			e = &ast.CallExpr{Func: e, Args: args, Loc: p.span(start)}
		default:
			return e, nil
		}
	}
}

// keyName reads the name after `.` as a string key.
func (p *parser) keyName() (*ast.StringExpr, error) {
	n, err := p.name()
	if err != nil {
		return nil, err
	}
	return &ast.StringExpr{Value: n.Value, Raw: n.Value, Loc: n.Loc}, nil
}

func (p *parser) callArgs() ([]ast.Expr, error) {
	switch {
	case p.tok.kind == tokString:
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		return []ast.Expr{stringExpr(tok)}, nil
	case p.isOp("{"):
		t, err := p.table()
		if err != nil {
			return nil, err
		}
		return []ast.Expr{t}, nil
	case p.isOp("("):
		open := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		if ok, err := p.accept(")"); err != nil {
			return nil, err
		} else if ok {
			return nil, nil
		}
		args, err := p.exprList()
		if err != nil {
			return nil, err
		}
		if err := p.expectMatch(")", "(", open); err != nil {
			return nil, err
		}
		return args, nil
	}
	return nil, p.unexpected("function arguments expected")
}

func (p *parser) table() (ast.Expr, error) {
	start := p.tok.pos
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	t := &ast.TableExpr{}
	for !p.isOp("}") {
		f, err := p.field()
		if err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, f)
		if p.isOp(",") || p.isOp(";") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expectMatch("}", "{", start); err != nil {
		return nil, err
	}
	t.Loc = p.span(start)
	return t, nil
}

func (p *parser) field() (*ast.Field, error) {
	if p.isOp("[") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		key, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		value, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &ast.Field{Key: key, Value: value}, nil
	}
	if p.tok.kind == tokName {
		// `name = value` needs one token of lookahead past the name
		saved, savedLexer, savedPrev := p.tok, *p.lx, p.prevEnd
		n, err := p.keyName()
		if err != nil {
			return nil, err
		}
		if p.isOp("=") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			value, err := p.expr()
			if err != nil {
				return nil, err
			}
			return &ast.Field{Key: n, Value: value, Named: true}, nil
		}
		p.tok, *p.lx, p.prevEnd = saved, savedLexer, savedPrev
	}
	value, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &ast.Field{Value: value}, nil
}

// funcBody parses `(params) block end`. The `function` keyword, and the
// name for statements, have already been consumed. Methods get an implicit
// `self` parameter.
func (p *parser) funcBody(start ast.Pos, isMethod bool) (*ast.FunctionExpr, error) {
	fn := &ast.FunctionExpr{}
	if isMethod {
		fn.Params = append(fn.Params, &ast.Name{Value: "self", Loc: ast.Span{Start: p.tok.pos, End: p.tok.pos}})
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	if !p.isOp(")") {
		for {
			if p.isOp("...") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				fn.Variadic = true
				break
			}
			n, err := p.name()
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, n)
			if !p.isOp(",") {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.expectMatch("end", "function", start); err != nil {
		return nil, err
	}
	fn.Body = body
	fn.Loc = p.span(start)
	return fn, nil
}
