// Package ast defines the syntax tree produced by the Lua parser.
//
// The node set is closed: every statement implements Stmt and every
// expression implements Expr through unexported marker methods, so only this
// package can introduce new kinds. Inspect is the one traversal every pass
// builds on; it panics on a node type it does not know.
package ast

import "fmt"

// Pos is a location in source text.
type Pos struct {
	Offset int // byte offset, 0-based
	Line   int // 1-based
	Column int // 1-based, in bytes
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span covers the half-open byte range [Start.Offset, End.Offset).
type Span struct {
	Start Pos
	End   Pos
}

// Node is implemented by every statement and expression.
type Node interface {
	Span() Span
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Chunk is a parsed source file.
type Chunk struct {
	Name  string
	Block []Stmt
	Loc   Span
}

func (c *Chunk) Span() Span { return c.Loc }

// ---------------------------------------------------------------------------
// Statements

type (
	// LocalStmt is `local a, b <attrib> = exprs`.
	LocalStmt struct {
		Names  []*Name
		Attrs  []string // per name, "" when absent
		Values []Expr
		Loc    Span
	}

	// LocalFunctionStmt is `local function name(...) ... end`.
	LocalFunctionStmt struct {
		Name *Name
		Func *FunctionExpr
		Loc  Span
	}

	// FunctionStmt is `function a.b.c:m(...) ... end`. Target holds the
	// assignable expression the function is bound to.
	FunctionStmt struct {
		Target Expr
		Method string // non-empty for the `:name` form
		Func   *FunctionExpr
		Loc    Span
	}

	// AssignStmt is `targets = values`.
	AssignStmt struct {
		Targets []Expr
		Values  []Expr
		Loc     Span
	}

	// CallStmt is a function or method call used as a statement.
	CallStmt struct {
		Call Expr // *CallExpr or *MethodCallExpr
		Loc  Span
	}

	// DoStmt is `do ... end`.
	DoStmt struct {
		Body []Stmt
		Loc  Span
	}

	// WhileStmt is `while cond do ... end`.
	WhileStmt struct {
		Cond Expr
		Body []Stmt
		Loc  Span
	}

	// RepeatStmt is `repeat ... until cond`.
	RepeatStmt struct {
		Body []Stmt
		Cond Expr
		Loc  Span
	}

	// IfStmt is `if c then ... elseif c then ... else ... end`.
	IfStmt struct {
		Clauses []*IfClause
		Else    []Stmt // nil when there is no else branch
		Loc     Span
	}

	// NumericForStmt is `for v = start, stop, step do ... end`.
	NumericForStmt struct {
		Var   *Name
		Start Expr
		Stop  Expr
		Step  Expr // may be nil
		Body  []Stmt
		Loc   Span
	}

	// GenericForStmt is `for a, b in exprs do ... end`.
	GenericForStmt struct {
		Names []*Name
		Exprs []Expr
		Body  []Stmt
		Loc   Span
	}

	// ReturnStmt is `return exprs`.
	ReturnStmt struct {
		Values []Expr
		Loc    Span
	}

	// BreakStmt is `break`.
	BreakStmt struct {
		Loc Span
	}

	// GotoStmt is `goto label`.
	GotoStmt struct {
		Label string
		Loc   Span
	}

	// LabelStmt is `::label::`.
	LabelStmt struct {
		Label string
		Loc   Span
	}

	// EmptyStmt is a stray `;`.
	EmptyStmt struct {
		Loc Span
	}
)

// IfClause is one `if`/`elseif` condition and its block.
type IfClause struct {
	Cond Expr
	Body []Stmt
}

func (s *LocalStmt) Span() Span         { return s.Loc }
func (s *LocalFunctionStmt) Span() Span { return s.Loc }
func (s *FunctionStmt) Span() Span      { return s.Loc }
func (s *AssignStmt) Span() Span        { return s.Loc }
func (s *CallStmt) Span() Span          { return s.Loc }
func (s *DoStmt) Span() Span            { return s.Loc }
func (s *WhileStmt) Span() Span         { return s.Loc }
func (s *RepeatStmt) Span() Span        { return s.Loc }
func (s *IfStmt) Span() Span            { return s.Loc }
func (s *NumericForStmt) Span() Span    { return s.Loc }
func (s *GenericForStmt) Span() Span    { return s.Loc }
func (s *ReturnStmt) Span() Span        { return s.Loc }
func (s *BreakStmt) Span() Span         { return s.Loc }
func (s *GotoStmt) Span() Span          { return s.Loc }
func (s *LabelStmt) Span() Span         { return s.Loc }
func (s *EmptyStmt) Span() Span         { return s.Loc }

func (*LocalStmt) stmtNode()         {}
func (*LocalFunctionStmt) stmtNode() {}
func (*FunctionStmt) stmtNode()      {}
func (*AssignStmt) stmtNode()        {}
func (*CallStmt) stmtNode()          {}
func (*DoStmt) stmtNode()            {}
func (*WhileStmt) stmtNode()         {}
func (*RepeatStmt) stmtNode()        {}
func (*IfStmt) stmtNode()            {}
func (*NumericForStmt) stmtNode()    {}
func (*GenericForStmt) stmtNode()    {}
func (*ReturnStmt) stmtNode()        {}
func (*BreakStmt) stmtNode()         {}
func (*GotoStmt) stmtNode()          {}
func (*LabelStmt) stmtNode()         {}
func (*EmptyStmt) stmtNode()         {}

// ---------------------------------------------------------------------------
// Expressions

type (
	NilExpr   struct{ Loc Span }
	TrueExpr  struct{ Loc Span }
	FalseExpr struct{ Loc Span }

	// VarargExpr is `...`.
	VarargExpr struct{ Loc Span }

	// NumberExpr keeps the literal as written.
	NumberExpr struct {
		Raw string
		Loc Span
	}

	// StringExpr holds the decoded value and the literal as written.
	StringExpr struct {
		Value string
		Raw   string
		Long  bool // [[...]] form
		Loc   Span
	}

	// Name is an identifier reference.
	Name struct {
		Value string
		Loc   Span
	}

	// IndexExpr is `obj.key` (Dot set, Key is a *StringExpr) or `obj[key]`.
	IndexExpr struct {
		Obj Expr
		Key Expr
		Dot bool
		Loc Span
	}

	// CallExpr is `fn(args)`, `fn"str"` or `fn{table}`.
	CallExpr struct {
		Func Expr
		Args []Expr
		Loc  Span
	}

	// MethodCallExpr is `obj:method(args)`.
	MethodCallExpr struct {
		Obj    Expr
		Method *Name
		Args   []Expr
		Loc    Span
	}

	// FunctionExpr is a function body, anonymous or bound by a statement.
	FunctionExpr struct {
		Params   []*Name
		Variadic bool
		Body     []Stmt
		Loc      Span
	}

	// BinaryExpr is `left op right`.
	BinaryExpr struct {
		Op    string
		Left  Expr
		Right Expr
		Loc   Span
	}

	// UnaryExpr is `op operand`.
	UnaryExpr struct {
		Op      string
		Operand Expr
		Loc     Span
	}

	// ParenExpr is `(inner)`; it truncates multiple results to one.
	ParenExpr struct {
		Inner Expr
		Loc   Span
	}

	// TableExpr is `{ fields }`.
	TableExpr struct {
		Fields []*Field
		Loc    Span
	}
)

// Field is one table constructor entry. Key is nil for positional entries;
// for `name = v` entries Key is a *StringExpr and Named is set.
type Field struct {
	Key   Expr
	Value Expr
	Named bool
}

func (e *NilExpr) Span() Span        { return e.Loc }
func (e *TrueExpr) Span() Span       { return e.Loc }
func (e *FalseExpr) Span() Span      { return e.Loc }
func (e *VarargExpr) Span() Span     { return e.Loc }
func (e *NumberExpr) Span() Span     { return e.Loc }
func (e *StringExpr) Span() Span     { return e.Loc }
func (e *Name) Span() Span           { return e.Loc }
func (e *IndexExpr) Span() Span      { return e.Loc }
func (e *CallExpr) Span() Span       { return e.Loc }
func (e *MethodCallExpr) Span() Span { return e.Loc }
func (e *FunctionExpr) Span() Span   { return e.Loc }
func (e *BinaryExpr) Span() Span     { return e.Loc }
func (e *UnaryExpr) Span() Span      { return e.Loc }
func (e *ParenExpr) Span() Span      { return e.Loc }
func (e *TableExpr) Span() Span      { return e.Loc }

func (*NilExpr) exprNode()        {}
func (*TrueExpr) exprNode()       {}
func (*FalseExpr) exprNode()      {}
func (*VarargExpr) exprNode()     {}
func (*NumberExpr) exprNode()     {}
func (*StringExpr) exprNode()     {}
func (*Name) exprNode()           {}
func (*IndexExpr) exprNode()      {}
func (*CallExpr) exprNode()       {}
func (*MethodCallExpr) exprNode() {}
func (*FunctionExpr) exprNode()   {}
func (*BinaryExpr) exprNode()     {}
func (*UnaryExpr) exprNode()      {}
func (*ParenExpr) exprNode()      {}
func (*TableExpr) exprNode()      {}

// NameOf returns the identifier when e is a bare name.
func NameOf(e Expr) (string, bool) {
	if n, ok := e.(*Name); ok {
		return n.Value, true
	}
	return "", false
}

// DottedName renders chains like `a.b.c` made of names and dot indexes.
// It reports false for anything else (calls, brackets, literals).
func DottedName(e Expr) (string, bool) {
	switch x := e.(type) {
	case *Name:
		return x.Value, true
	case *IndexExpr:
		if !x.Dot {
			return "", false
		}
		base, ok := DottedName(x.Obj)
		if !ok {
			return "", false
		}
		key, ok := x.Key.(*StringExpr)
		if !ok {
			return "", false
		}
		return base + "." + key.Value, true
	default:
		return "", false
	}
}
