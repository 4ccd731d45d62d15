package ast

import "fmt"

// Inspect traverses the tree rooted at n in depth-first order, calling f for
// each node. If f returns false the children of that node are skipped.
// Function bodies are entered.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch x := n.(type) {
	case *Chunk:
		inspectBlock(x.Block, f)
	default:
		exprs, blocks := children(n)
		for _, e := range exprs {
			Inspect(e, f)
		}
		for _, b := range blocks {
			inspectBlock(b, f)
		}
	}
}

func inspectBlock(block []Stmt, f func(Node) bool) {
	for _, s := range block {
		Inspect(s, f)
	}
}

// StmtParts splits a statement into the expressions it owns directly and the
// nested statement blocks it contains, both in source order.
func StmtParts(s Stmt) (exprs []Expr, blocks [][]Stmt) {
	return children(s)
}

// InspectExprs visits e and its sub-expressions without entering function
// bodies; f still sees the *FunctionExpr itself so callers can handle the
// body as a block of its own.
func InspectExprs(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	if _, ok := e.(*FunctionExpr); ok {
		return
	}
	exprs, _ := children(e)
	for _, c := range exprs {
		InspectExprs(c, f)
	}
}

// children is the single exhaustive switch over node kinds.
func children(n Node) (exprs []Expr, blocks [][]Stmt) {
	switch x := n.(type) {
	// statements
	case *LocalStmt:
		for _, name := range x.Names {
			exprs = append(exprs, name)
		}
		exprs = append(exprs, x.Values...)
	case *LocalFunctionStmt:
		exprs = append(exprs, x.Name, x.Func)
	case *FunctionStmt:
		exprs = append(exprs, x.Target, x.Func)
	case *AssignStmt:
		exprs = append(exprs, x.Targets...)
		exprs = append(exprs, x.Values...)
	case *CallStmt:
		exprs = append(exprs, x.Call)
	case *DoStmt:
		blocks = append(blocks, x.Body)
	case *WhileStmt:
		exprs = append(exprs, x.Cond)
		blocks = append(blocks, x.Body)
	case *RepeatStmt:
		// the condition is evaluated after the body, but both belong here
		exprs = append(exprs, x.Cond)
		blocks = append(blocks, x.Body)
	case *IfStmt:
		for _, c := range x.Clauses {
			exprs = append(exprs, c.Cond)
		}
		for _, c := range x.Clauses {
			blocks = append(blocks, c.Body)
		}
		if x.Else != nil {
			blocks = append(blocks, x.Else)
		}
	case *NumericForStmt:
		exprs = append(exprs, x.Var, x.Start, x.Stop)
		if x.Step != nil {
			exprs = append(exprs, x.Step)
		}
		blocks = append(blocks, x.Body)
	case *GenericForStmt:
		for _, name := range x.Names {
			exprs = append(exprs, name)
		}
		exprs = append(exprs, x.Exprs...)
		blocks = append(blocks, x.Body)
	case *ReturnStmt:
		exprs = append(exprs, x.Values...)
	case *BreakStmt, *GotoStmt, *LabelStmt, *EmptyStmt:

	// expressions
	case *NilExpr, *TrueExpr, *FalseExpr, *VarargExpr, *NumberExpr, *StringExpr, *Name:
	case *IndexExpr:
		exprs = append(exprs, x.Obj, x.Key)
	case *CallExpr:
		exprs = append(exprs, x.Func)
		exprs = append(exprs, x.Args...)
	case *MethodCallExpr:
		// the method name is a field key, not a variable reference
		exprs = append(exprs, x.Obj)
		exprs = append(exprs, x.Args...)
	case *FunctionExpr:
		for _, p := range x.Params {
			exprs = append(exprs, p)
		}
		blocks = append(blocks, x.Body)
	case *BinaryExpr:
		exprs = append(exprs, x.Left, x.Right)
	case *UnaryExpr:
		exprs = append(exprs, x.Operand)
	case *ParenExpr:
		exprs = append(exprs, x.Inner)
	case *TableExpr:
		for _, fld := range x.Fields {
			if fld.Key != nil {
				exprs = append(exprs, fld.Key)
			}
			exprs = append(exprs, fld.Value)
		}
	default:
		panic(fmt.Sprintf("ast: unhandled node type %T", n))
	}
	return exprs, blocks
}
