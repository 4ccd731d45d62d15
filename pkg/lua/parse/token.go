package parse

import (
	"fmt"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/ast"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokString
	tokNumber
	tokKeyword
	tokOp
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "<eof>"
	case tokName:
		return "name"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokKeyword:
		return "keyword"
	case tokOp:
		return "operator"
	default:
		return "unknown"
	}
}

type token struct {
	kind  tokenKind
	text  string // raw source text; keyword/operator spelling
	value string // decoded value for strings
	long  bool   // long-bracket string
	pos   ast.Pos
	end   ast.Pos
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "<eof>"
	}
	return fmt.Sprintf("'%s'", t.text)
}

var keywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "goto": true,
	"if": true, "in": true, "local": true, "nil": true, "not": true,
	"or": true, "repeat": true, "return": true, "then": true, "true": true,
	"until": true, "while": true,
}

// binaryPriority holds {left, right} binding power; right < left makes an
// operator right associative.
var binaryPriority = map[string][2]int{
	"or":  {1, 1},
	"and": {2, 2},
	"<":   {3, 3},
	">":   {3, 3},
	"<=":  {3, 3},
	">=":  {3, 3},
	"~=":  {3, 3},
	"==":  {3, 3},
	"|":   {4, 4},
	"~":   {5, 5},
	"&":   {6, 6},
	"<<":  {7, 7},
	">>":  {7, 7},
	"..":  {9, 8},
	"+":   {10, 10},
	"-":   {10, 10},
	"*":   {11, 11},
	"/":   {11, 11},
	"//":  {11, 11},
	"%":   {11, 11},
	"^":   {14, 13},
}

const unaryPriority = 12
