package parse

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/ast"
)

// threeCharOps and twoCharOps are tried before single characters.
var (
	threeCharOps = []string{"..."}
	twoCharOps   = []string{"==", "~=", "<=", ">=", "//", "::", "<<", ">>", ".."}
	oneCharOps   = "+-*/%^#&~|<>=(){}[];:,."
)

type lexer struct {
	file string
	src  string
	off  int
	line int
	col  int
}

func newLexer(file, src string) *lexer {
	lx := &lexer{file: file, src: src, line: 1, col: 1}
	// a leading shebang line is not Lua
	if strings.HasPrefix(src, "#") {
		for lx.off < len(src) && src[lx.off] != '\n' {
			lx.advance()
		}
	}
	return lx
}

func (lx *lexer) pos() ast.Pos {
	return ast.Pos{Offset: lx.off, Line: lx.line, Column: lx.col}
}

func (lx *lexer) peekByte(ahead int) byte {
	if lx.off+ahead < len(lx.src) {
		return lx.src[lx.off+ahead]
	}
	return 0
}

func (lx *lexer) advance() {
	if lx.off >= len(lx.src) {
		return
	}
	if lx.src[lx.off] == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	lx.off++
}

func (lx *lexer) errorf(at ast.Pos, format string, args ...any) *Error {
	return newError(lx.file, at, format, args...)
}

// next scans one token, skipping whitespace and comments.
func (lx *lexer) next() (token, error) {
	if err := lx.skipTrivia(); err != nil {
		return token{}, err
	}
	start := lx.pos()
	if lx.off >= len(lx.src) {
		return token{kind: tokEOF, pos: start, end: start}, nil
	}

	c := lx.src[lx.off]
	switch {
	case isNameStart(c):
		for lx.off < len(lx.src) && isNameChar(lx.src[lx.off]) {
			lx.advance()
		}
		text := lx.src[start.Offset:lx.off]
		kind := tokName
		if keywords[text] {
			kind = tokKeyword
		}
		return token{kind: kind, text: text, pos: start, end: lx.pos()}, nil

	case isDigit(c) || (c == '.' && isDigit(lx.peekByte(1))):
		return lx.number(start)

	case c == '"' || c == '\'':
		return lx.shortString(start, c)

	case c == '[' && (lx.peekByte(1) == '[' || lx.peekByte(1) == '='):
		if level, ok := lx.longBracketLevel(); ok {
			value, err := lx.longBracket(start, level)
			if err != nil {
				return token{}, err
			}
			return token{kind: tokString, text: lx.src[start.Offset:lx.off], value: value, long: true, pos: start, end: lx.pos()}, nil
		}
	}

	for _, op := range threeCharOps {
		if strings.HasPrefix(lx.src[lx.off:], op) {
			return lx.op(start, len(op)), nil
		}
	}
	for _, op := range twoCharOps {
		if strings.HasPrefix(lx.src[lx.off:], op) {
			return lx.op(start, len(op)), nil
		}
	}
	if strings.IndexByte(oneCharOps, c) >= 0 {
		return lx.op(start, 1), nil
	}

	r, _ := utf8.DecodeRuneInString(lx.src[lx.off:])
	return token{}, lx.errorf(start, "unexpected symbol %q", r)
}

func (lx *lexer) op(start ast.Pos, n int) token {
	for i := 0; i < n; i++ {
		lx.advance()
	}
	return token{kind: tokOp, text: lx.src[start.Offset:lx.off], pos: start, end: lx.pos()}
}

func (lx *lexer) skipTrivia() error {
	for lx.off < len(lx.src) {
		c := lx.src[lx.off]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\v' || c == '\f':
			lx.advance()
		case c == '-' && lx.peekByte(1) == '-':
			start := lx.pos()
			lx.advance()
			lx.advance()
			if lx.peekByte(0) == '[' {
				if level, ok := lx.longBracketLevel(); ok {
					if _, err := lx.longBracket(start, level); err != nil {
						return lx.errorf(start, "unfinished long comment")
					}
					continue
				}
			}
			for lx.off < len(lx.src) && lx.src[lx.off] != '\n' {
				lx.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

// longBracketLevel inspects `[==[` at the cursor without consuming it.
func (lx *lexer) longBracketLevel() (int, bool) {
	if lx.peekByte(0) != '[' {
		return 0, false
	}
	level := 0
	for lx.peekByte(1+level) == '=' {
		level++
	}
	if lx.peekByte(1+level) != '[' {
		return 0, false
	}
	return level, true
}

// longBracket consumes a long bracket of the given level and returns its
// content. A newline directly after the opening bracket is dropped.
func (lx *lexer) longBracket(start ast.Pos, level int) (string, error) {
	for i := 0; i < level+2; i++ {
		lx.advance()
	}
	if lx.peekByte(0) == '\r' {
		lx.advance()
		if lx.peekByte(0) == '\n' {
			lx.advance()
		}
	} else if lx.peekByte(0) == '\n' {
		lx.advance()
		if lx.peekByte(0) == '\r' {
			lx.advance()
		}
	}
	closing := "]" + strings.Repeat("=", level) + "]"
	contentStart := lx.off
	idx := strings.Index(lx.src[lx.off:], closing)
	if idx < 0 {
		for lx.off < len(lx.src) {
			lx.advance()
		}
		return "", lx.errorf(start, "unfinished long string")
	}
	for lx.off < contentStart+idx+len(closing) {
		lx.advance()
	}
	return lx.src[contentStart : contentStart+idx], nil
}

func (lx *lexer) shortString(start ast.Pos, quote byte) (token, error) {
	lx.advance()
	var b strings.Builder
	for {
		if lx.off >= len(lx.src) {
			return token{}, lx.errorf(start, "unfinished string")
		}
		c := lx.src[lx.off]
		switch c {
		case quote:
			lx.advance()
			return token{kind: tokString, text: lx.src[start.Offset:lx.off], value: b.String(), pos: start, end: lx.pos()}, nil
		case '\n', '\r':
			return token{}, lx.errorf(start, "unfinished string")
		case '\\':
			if err := lx.escape(&b); err != nil {
				return token{}, err
			}
		default:
			b.WriteByte(c)
			lx.advance()
		}
	}
}

func (lx *lexer) escape(b *strings.Builder) error {
	at := lx.pos()
	lx.advance() // backslash
	if lx.off >= len(lx.src) {
		return lx.errorf(at, "unfinished string")
	}
	c := lx.src[lx.off]
	simple := map[byte]byte{'a': '\a', 'b': '\b', 'f': '\f', 'n': '\n', 'r': '\r', 't': '\t', 'v': '\v', '\\': '\\', '"': '"', '\'': '\''}
	if r, ok := simple[c]; ok {
		b.WriteByte(r)
		lx.advance()
		return nil
	}
	switch {
	case c == '\n' || c == '\r':
		b.WriteByte('\n')
		lx.advance()
		if n := lx.peekByte(0); (n == '\n' || n == '\r') && n != c {
			lx.advance()
		}
	case c == 'z':
		lx.advance()
		for lx.off < len(lx.src) && isSpace(lx.src[lx.off]) {
			lx.advance()
		}
	case c == 'x':
		lx.advance()
		if !isHex(lx.peekByte(0)) || !isHex(lx.peekByte(1)) {
			return lx.errorf(at, "hexadecimal digit expected")
		}
		v, _ := strconv.ParseUint(lx.src[lx.off:lx.off+2], 16, 8)
		b.WriteByte(byte(v))
		lx.advance()
		lx.advance()
	case c == 'u':
		lx.advance()
		if lx.peekByte(0) != '{' {
			return lx.errorf(at, "missing '{' in \\u{xxxx}")
		}
		lx.advance()
		digitsStart := lx.off
		for isHex(lx.peekByte(0)) {
			lx.advance()
		}
		if lx.peekByte(0) != '}' || lx.off == digitsStart {
			return lx.errorf(at, "malformed \\u{xxxx} escape")
		}
		v, err := strconv.ParseUint(lx.src[digitsStart:lx.off], 16, 32)
		if err != nil {
			return lx.errorf(at, "UTF-8 value too large")
		}
		lx.advance()
		b.WriteRune(rune(v))
	case isDigit(c):
		digitsStart := lx.off
		for i := 0; i < 3 && isDigit(lx.peekByte(0)); i++ {
			lx.advance()
		}
		v, _ := strconv.Atoi(lx.src[digitsStart:lx.off])
		if v > 255 {
			return lx.errorf(at, "decimal escape too large")
		}
		b.WriteByte(byte(v))
	default:
		return lx.errorf(at, "invalid escape sequence '\\%c'", c)
	}
	return nil
}

// number follows Lua's read_numeral: consume the longest run of numeral
// characters, allowing a sign right after an exponent marker.
func (lx *lexer) number(start ast.Pos) (token, error) {
	expMarkers := "Ee"
	if lx.peekByte(0) == '0' && (lx.peekByte(1) == 'x' || lx.peekByte(1) == 'X') {
		expMarkers = "Pp"
		lx.advance()
		lx.advance()
	}
	for lx.off < len(lx.src) {
		c := lx.src[lx.off]
		if strings.IndexByte(expMarkers, c) >= 0 && (lx.peekByte(1) == '+' || lx.peekByte(1) == '-') {
			lx.advance()
			lx.advance()
			continue
		}
		if isHex(c) || c == '.' || isNameChar(c) {
			lx.advance()
			continue
		}
		break
	}
	text := lx.src[start.Offset:lx.off]
	if !validNumber(text) {
		return token{}, lx.errorf(start, "malformed number near '%s'", text)
	}
	return token{kind: tokNumber, text: text, pos: start, end: lx.pos()}, nil
}

func validNumber(text string) bool {
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "0x") {
		body := lower[2:]
		mant, exp, hasExp := strings.Cut(body, "p")
		if hasExp {
			exp = strings.TrimLeft(exp, "+-")
			if exp == "" || strings.Trim(exp, "0123456789") != "" {
				return false
			}
		}
		intPart, frac, _ := strings.Cut(mant, ".")
		if intPart == "" && frac == "" {
			return false
		}
		return strings.Trim(intPart+frac, "0123456789abcdef") == ""
	}
	_, err := strconv.ParseFloat(text, 64)
	return err == nil
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool { return isNameStart(c) || isDigit(c) }
func isDigit(c byte) bool    { return c >= '0' && c <= '9' }
func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\v' || c == '\f'
}
