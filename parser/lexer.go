package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// lexer splits SQL text into tokens
type lexer struct {
	src    string
	pos    int
	tokens []Token
}

func lex(src string) ([]Token, *ParseError) {
	l := &lexer{src: src}
	for {
		l.skipSpaceAndComments()
		if l.pos >= len(l.src) {
			l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos, End: l.pos})
			return l.tokens, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		switch {
		case unicode.IsSpace(r):
			l.pos += size
		case strings.HasPrefix(l.src[l.pos:], "--"):
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				l.pos = len(l.src)
				return
			}
			l.pos += end + 4
		default:
			return
		}
	}
}

func (l *lexer) next() *ParseError {
	start := l.pos
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])

	switch {
	case unicode.IsLetter(r) || r == '_':
		l.pos += size
		for l.pos < len(l.src) {
			r, size = utf8.DecodeRuneInString(l.src[l.pos:])
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
				break
			}
			l.pos += size
		}
		l.emit(TokenIdent, l.src[start:l.pos], start, false)
		return nil

	case unicode.IsDigit(r) || (r == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.number()

	case r == '\'' || r == '"':
		text, err := l.quoted(byte(r))
		if err != nil {
			return err
		}
		l.emit(TokenString, text, start, true)
		return nil

	case r == '`':
		text, err := l.quoted('`')
		if err != nil {
			return err
		}
		if text == "" {
			return newParseError(l.src, start, "empty quoted identifier")
		}
		l.emit(TokenIdent, text, start, true)
		return nil
	}

	for _, op := range []string{"<=", ">=", "<>", "!=", "||"} {
		if strings.HasPrefix(l.src[l.pos:], op) {
			l.pos += 2
			l.emit(TokenOperator, op, start, false)
			return nil
		}
	}
	if strings.ContainsRune("(),.*=<>+-/%;", r) {
		l.pos += size
		l.emit(TokenOperator, string(r), start, false)
		return nil
	}
	return newParseError(l.src, start, "unexpected character "+string(r))
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (l *lexer) number() *ParseError {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		exp := l.pos + 1
		if exp < len(l.src) && (l.src[exp] == '+' || l.src[exp] == '-') {
			exp++
		}
		if exp < len(l.src) && isDigit(l.src[exp]) {
			l.pos = exp
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
	}
	if l.pos < len(l.src) {
		if r, _ := utf8.DecodeRuneInString(l.src[l.pos:]); unicode.IsLetter(r) || r == '_' {
			return newParseError(l.src, start, "malformed number")
		}
	}
	l.emit(TokenNumber, l.src[start:l.pos], start, false)
	return nil
}

// quoted reads a literal delimited by q. A doubled delimiter stands for
// itself; in string literals a backslash escapes the next character.
func (l *lexer) quoted(q byte) (string, *ParseError) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == q && l.pos+1 < len(l.src) && l.src[l.pos+1] == q:
			b.WriteByte(q)
			l.pos += 2
		case c == q:
			l.pos++
			return b.String(), nil
		case c == '\\' && q != '`' && l.pos+1 < len(l.src):
			b.WriteByte(unescape(l.src[l.pos+1]))
			l.pos += 2
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return "", newParseError(l.src, start, "unterminated quoted text")
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return c
	}
}

func (l *lexer) emit(t TokenType, text string, start int, quoted bool) {
	l.tokens = append(l.tokens, Token{Type: t, Text: text, Pos: start, End: l.pos, Quoted: quoted})
}
