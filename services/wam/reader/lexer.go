// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reader

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AleutianAI/wamlink/services/wam/term"
)

type tokenKind int

const (
	tkEOF tokenKind = iota
	tkAtom
	tkQuotedAtom
	tkVar
	tkInt
	tkFloat
	tkString
	tkPunct
	tkEnd
)

type token struct {
	kind tokenKind
	text string
	ival int64
	fval float64

	// layout is true when whitespace or a comment precedes the token.
	layout bool
	line   int
	col    int
}

type lexer struct {
	src  []byte
	pos  int
	line int
	col  int
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) peekRune(off int) rune {
	p := l.pos
	for i := 0; ; i++ {
		if p >= len(l.src) {
			return -1
		}
		r, size := utf8.DecodeRune(l.src[p:])
		if i == off {
			return r
		}
		p += size
	}
}

func (l *lexer) advance() rune {
	if l.pos >= len(l.src) {
		return -1
	}
	r, size := utf8.DecodeRune(l.src[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) errorf(line, col int, msg string, args ...any) *SyntaxError {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &SyntaxError{Line: line, Col: col, Msg: msg}
}

// skipLayout consumes whitespace and comments and reports whether any was
// found.
func (l *lexer) skipLayout() (bool, error) {
	skipped := false
	for {
		r := l.peekRune(0)
		switch {
		case r == -1:
			return skipped, nil
		case unicode.IsSpace(r):
			l.advance()
			skipped = true
		case r == '%':
			for r != '\n' && r != -1 {
				r = l.advance()
			}
			skipped = true
		case r == '/' && l.peekRune(1) == '*':
			line, col := l.line, l.col
			l.advance()
			l.advance()
			for {
				c := l.advance()
				if c == -1 {
					return skipped, &SyntaxError{Line: line, Col: col, Msg: "unterminated block comment", Err: ErrIncomplete}
				}
				if c == '*' && l.peekRune(0) == '/' {
					l.advance()
					break
				}
			}
			skipped = true
		default:
			return skipped, nil
		}
	}
}

func isSymbolChar(r rune) bool {
	return r >= 0 && strings.ContainsRune(term.SymbolChars, r)
}

func isAlnum(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *lexer) next() (token, error) {
	layout, err := l.skipLayout()
	if err != nil {
		return token{}, err
	}
	tok := token{layout: layout, line: l.line, col: l.col}
	r := l.peekRune(0)
	start := l.pos

	switch {
	case r == -1:
		tok.kind = tkEOF
		return tok, nil

	case unicode.IsDigit(r):
		return l.number(tok)

	case r == '_' || unicode.IsUpper(r):
		for isAlnum(l.peekRune(0)) {
			l.advance()
		}
		tok.kind = tkVar
		tok.text = string(l.src[start:l.pos])
		return tok, nil

	case unicode.IsLetter(r):
		for isAlnum(l.peekRune(0)) {
			l.advance()
		}
		tok.kind = tkAtom
		tok.text = string(l.src[start:l.pos])
		return tok, nil

	case r == '\'':
		s, err := l.quoted('\'')
		if err != nil {
			return token{}, err
		}
		tok.kind = tkQuotedAtom
		tok.text = s
		return tok, nil

	case r == '"':
		s, err := l.quoted('"')
		if err != nil {
			return token{}, err
		}
		tok.kind = tkString
		tok.text = s
		return tok, nil

	case r == '(' || r == ')' || r == '[' || r == ']' || r == '{' || r == '}' || r == ',' || r == '|':
		l.advance()
		if r == '|' && l.peekRune(0) == '|' {
			l.advance()
			tok.kind = tkAtom
			tok.text = "||"
			return tok, nil
		}
		tok.kind = tkPunct
		tok.text = string(r)
		return tok, nil

	case r == '!' || r == ';':
		l.advance()
		tok.kind = tkAtom
		tok.text = string(r)
		return tok, nil

	case isSymbolChar(r):
		if r == '.' {
			n := l.peekRune(1)
			if n == -1 || unicode.IsSpace(n) || n == '%' {
				l.advance()
				tok.kind = tkEnd
				return tok, nil
			}
		}
		for isSymbolChar(l.peekRune(0)) {
			l.advance()
		}
		tok.kind = tkAtom
		tok.text = string(l.src[start:l.pos])
		return tok, nil
	}

	return token{}, l.errorf(tok.line, tok.col, "unexpected character %q", r)
}

func (l *lexer) number(tok token) (token, error) {
	start := l.pos
	if l.peekRune(0) == '0' {
		switch l.peekRune(1) {
		case '\'':
			l.advance()
			l.advance()
			c := l.advance()
			if c == -1 {
				return token{}, &SyntaxError{Line: tok.line, Col: tok.col, Msg: "unterminated character code", Err: ErrIncomplete}
			}
			if c == '\\' {
				e, err := l.escape(tok)
				if err != nil {
					return token{}, err
				}
				c = e
			} else if c == '\'' && l.peekRune(0) == '\'' {
				l.advance()
			}
			tok.kind = tkInt
			tok.ival = int64(c)
			return tok, nil
		case 'x', 'o', 'b':
			base := map[rune]int{'x': 16, 'o': 8, 'b': 2}[l.peekRune(1)]
			l.advance()
			l.advance()
			digits := l.pos
			for isAlnum(l.peekRune(0)) {
				l.advance()
			}
			v, err := strconv.ParseInt(string(l.src[digits:l.pos]), base, 64)
			if err != nil {
				return token{}, l.errorf(tok.line, tok.col, "invalid number %q", l.src[start:l.pos])
			}
			tok.kind = tkInt
			tok.ival = v
			return tok, nil
		}
	}

	for unicode.IsDigit(l.peekRune(0)) || l.peekRune(0) == '_' {
		l.advance()
	}
	isFloat := false
	if l.peekRune(0) == '.' && unicode.IsDigit(l.peekRune(1)) {
		isFloat = true
		l.advance()
		for unicode.IsDigit(l.peekRune(0)) {
			l.advance()
		}
	}
	if e := l.peekRune(0); isFloat && (e == 'e' || e == 'E') {
		s := l.peekRune(1)
		if unicode.IsDigit(s) || ((s == '+' || s == '-') && unicode.IsDigit(l.peekRune(2))) {
			l.advance()
			l.advance()
			for unicode.IsDigit(l.peekRune(0)) {
				l.advance()
			}
		}
	}

	text := strings.ReplaceAll(string(l.src[start:l.pos]), "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, l.errorf(tok.line, tok.col, "invalid float %q", text)
		}
		tok.kind = tkFloat
		tok.fval = f
		return tok, nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token{}, l.errorf(tok.line, tok.col, "integer %s out of range", text)
	}
	tok.kind = tkInt
	tok.ival = v
	return tok, nil
}

func (l *lexer) quoted(q rune) (string, error) {
	line, col := l.line, l.col
	l.advance()
	var b strings.Builder
	for {
		r := l.advance()
		switch {
		case r == -1:
			return "", &SyntaxError{Line: line, Col: col, Msg: "unterminated quoted text", Err: ErrIncomplete}
		case r == q:
			if l.peekRune(0) == q {
				l.advance()
				b.WriteRune(q)
				continue
			}
			return b.String(), nil
		case r == '\\':
			if l.peekRune(0) == '\n' {
				l.advance()
				continue
			}
			e, err := l.escape(token{line: line, col: col})
			if err != nil {
				return "", err
			}
			b.WriteRune(e)
		default:
			b.WriteRune(r)
		}
	}
}

func (l *lexer) escape(at token) (rune, error) {
	r := l.advance()
	switch r {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case 'a':
		return '\a', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'v':
		return '\v', nil
	case '0':
		return 0, nil
	case '\\', '\'', '"', '`':
		return r, nil
	case -1:
		return 0, &SyntaxError{Line: at.line, Col: at.col, Msg: "unterminated escape", Err: ErrIncomplete}
	}
	return 0, l.errorf(at.line, at.col, "unknown escape \\%c", r)
}
