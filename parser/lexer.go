// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package parser

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/bufbuild/wgslcompile/ast"
	"github.com/bufbuild/wgslcompile/reporter"
)

type runeReader struct {
	data []byte
	pos  int
	err  error
	mark int
}

func (rr *runeReader) readRune() (r rune, size int, err error) {
	if rr.err != nil {
		return 0, 0, rr.err
	}
	if rr.pos == len(rr.data) {
		rr.err = io.EOF
		return 0, 0, rr.err
	}
	r, sz := utf8.DecodeRune(rr.data[rr.pos:])
	if r == utf8.RuneError {
		rr.err = fmt.Errorf("invalid UTF8 at offset %d: %x", rr.pos, rr.data[rr.pos])
		return 0, 0, rr.err
	}
	rr.pos += sz
	return r, sz, nil
}

func (rr *runeReader) offset() int {
	return rr.pos
}

func (rr *runeReader) unreadRune(sz int) {
	newPos := rr.pos - sz
	if newPos < rr.mark {
		panic("unread past mark")
	}
	rr.pos = newPos
	// EOF is not sticky once we step back; a lookahead that ran off the end
	// must not swallow the rune being unread
	if rr.err == io.EOF {
		rr.err = nil
	}
}

func (rr *runeReader) setMark() {
	rr.mark = rr.pos
}

func (rr *runeReader) getMark() string {
	return string(rr.data[rr.mark:rr.pos])
}

// fragmentLexer scans embedded WGSL fragment source into span-tagged tokens.
// It only needs to agree with WGSL tokenization, not understand the grammar:
// the external checker sees the fully stitched text, not these tokens.
type fragmentLexer struct {
	input   *runeReader
	info    *ast.FileInfo
	handler *reporter.Handler
	tokens  []ast.Token
	prevEnd int
}

func newLexer(contents []byte, filename string, handler *reporter.Handler) *fragmentLexer {
	return &fragmentLexer{
		input:   &runeReader{data: contents},
		info:    ast.NewFileInfo(filename, contents),
		handler: handler,
		prevEnd: -1,
	}
}

// operators that are longer than one character, longest first so that
// maximal-munch matching falls out of the iteration order
var multiCharOps = []string{
	"<<=", ">>=",
	"<<", ">>", "<=", ">=", "==", "!=", "&&", "||", "->",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "++", "--",
}

func (l *fragmentLexer) lex() ([]ast.Token, error) {
	for {
		c, sz, err := l.input.readRune()
		if err == io.EOF {
			return l.tokens, nil
		} else if err != nil {
			return nil, l.handler.HandleErrorf(l.info.SourcePos(l.input.offset()), "%v", err)
		}

		switch {
		case c == '\n':
			l.info.AddLine(l.input.offset())
		case c == ' ' || c == '\t' || c == '\r':
			// skip
		case c == '/':
			if !l.maybeComment() {
				l.input.unreadRune(sz) // it really was a '/'
				l.input.setMark()
				l.input.readRune()
				l.readOperator(c)
				l.punct()
			}
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			l.input.unreadRune(sz)
			l.input.setMark()
			l.readIdentifier()
			l.addToken(ast.TokenIdent)
		case c >= '0' && c <= '9':
			l.input.unreadRune(sz)
			l.input.setMark()
			l.readNumber()
			l.addToken(ast.TokenLiteral)
		case c == '.':
			// a leading-dot float like .5 is a single literal token; a member
			// access dot is punctuation
			if n, nsz, err := l.input.readRune(); err == nil {
				l.input.unreadRune(nsz)
				if n >= '0' && n <= '9' {
					l.input.unreadRune(sz)
					l.input.setMark()
					l.readNumber()
					l.addToken(ast.TokenLiteral)
					continue
				}
			}
			l.input.unreadRune(sz)
			l.input.setMark()
			l.input.readRune()
			l.punct()
		case strings.ContainsRune("()[]{},.;:@=<>+-*/%&|^!~#?", c):
			l.input.unreadRune(sz)
			l.input.setMark()
			l.input.readRune()
			l.readOperator(c)
			l.punct()
		default:
			pos := l.info.SourcePos(l.input.offset() - sz)
			if err := l.handler.HandleErrorf(pos, "invalid character %q in WGSL fragment", c); err != nil {
				return nil, err
			}
		}
	}
}

// maybeComment consumes a line or block comment if the '/' just read starts
// one; the '/' itself has already been consumed.
func (l *fragmentLexer) maybeComment() bool {
	c, sz, err := l.input.readRune()
	if err != nil {
		return false
	}
	switch c {
	case '/':
		for {
			c, _, err := l.input.readRune()
			if err != nil {
				return true
			}
			if c == '\n' {
				l.info.AddLine(l.input.offset())
				return true
			}
		}
	case '*':
		// WGSL block comments nest
		depth := 1
		var prev rune
		for depth > 0 {
			c, _, err := l.input.readRune()
			if err != nil {
				return true // unterminated; EOF ends the fragment anyway
			}
			if c == '\n' {
				l.info.AddLine(l.input.offset())
			}
			if prev == '/' && c == '*' {
				depth++
				c = 0
			} else if prev == '*' && c == '/' {
				depth--
				c = 0
			}
			prev = c
		}
		return true
	default:
		l.input.unreadRune(sz)
		return false
	}
}

func (l *fragmentLexer) readIdentifier() {
	for {
		c, sz, err := l.input.readRune()
		if err != nil {
			return
		}
		if c != '_' && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			l.input.unreadRune(sz)
			return
		}
	}
}

// readNumber consumes a WGSL numeric literal: decimal or hex, with optional
// fraction, exponent ('e' for decimal, 'p' for hex, each with optional sign),
// and an optional f/h/i/u suffix. The literal must be one token so that the
// renderer never splits 1.0 into `1 . 0`.
func (l *fragmentLexer) readNumber() {
	allowExpSign := false
	hex := false
	first := true
	for {
		c, sz, err := l.input.readRune()
		if err != nil {
			return
		}
		if (c == '-' || c == '+') && !allowExpSign {
			l.input.unreadRune(sz)
			return
		}
		allowExpSign = false
		switch {
		case c >= '0' && c <= '9', c == '.', c == '-', c == '+':
		case (c == 'x' || c == 'X') && !first:
			hex = true
		case !hex && (c == 'e' || c == 'E'), hex && (c == 'p' || c == 'P'):
			allowExpSign = true
		case hex && ((c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')):
		case c == 'f' || c == 'h' || c == 'i' || c == 'u':
			// type suffix ends the literal
			return
		default:
			l.input.unreadRune(sz)
			return
		}
		first = false
	}
}

// readOperator extends the single punctuation character already consumed into
// the longest operator that starts with it.
func (l *fragmentLexer) readOperator(first rune) {
	for _, op := range multiCharOps {
		if rune(op[0]) != first {
			continue
		}
		rest := op[1:]
		matched := 0
		for _, want := range rest {
			c, sz, err := l.input.readRune()
			if err != nil || c != want {
				if err == nil {
					l.input.unreadRune(sz)
				}
				for range matched {
					l.input.unreadRune(1)
				}
				matched = -1
				break
			}
			matched++
		}
		if matched >= 0 {
			return
		}
	}
}

func (l *fragmentLexer) punct() {
	l.addToken(ast.TokenPunct)
}

func (l *fragmentLexer) addToken(kind ast.TokenKind) {
	text := l.input.getMark()
	start := l.input.offset() - len(text)
	l.tokens = append(l.tokens, ast.Token{
		Kind:   kind,
		Text:   text,
		Origin: ast.OriginAt(l.info.SourcePos(start)),
		Joined: start == l.prevEnd,
	})
	l.prevEnd = l.input.offset()
}
