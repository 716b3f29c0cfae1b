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

package ast

// TokenKind classifies lexed fragment tokens. The renderer uses the kind to
// decide what separating whitespace, if any, must follow a token to keep the
// WGSL tokenization of the rendered text identical to the lexed one.
type TokenKind int

const (
	// TokenIdent is an identifier or keyword.
	TokenIdent TokenKind = iota
	// TokenLiteral is a numeric literal.
	TokenLiteral
	// TokenPunct is an operator or other punctuation, including the `#`
	// import marker.
	TokenPunct
)

// Token is a single lexed token of embedded WGSL source. Tokens are immutable
// once produced by the lexer.
type Token struct {
	Kind TokenKind
	Text string
	// Origin is where this token's text was written. For tokens inlined from
	// an exported fragment this already points at the exporting definition,
	// not the import marker that pulled it in.
	Origin Origin
	// Joined indicates there was no whitespace between this token and the one
	// before it. The reference scanner uses this to tell an import marker
	// `#name` apart from a lone `#` followed by an unrelated identifier.
	Joined bool
}

// Origin identifies the true source location a token was produced from,
// surviving across import boundaries.
type Origin struct {
	pos SourcePos
	// The location of the import marker this token was inlined through, when
	// it came from an exported fragment. Diagnostics never surface this;
	// errors in an imported fragment are reported where the fragment was
	// defined, not where it was imported.
	importedAt *SourcePos
}

// OriginAt returns a direct origin for a token lexed at pos.
func OriginAt(pos SourcePos) Origin {
	return Origin{pos: pos}
}

// Pos is the position surfaced to users: always the definition site.
func (o Origin) Pos() SourcePos {
	return o.pos
}

// ImportedAt reports the import marker location this origin was inlined
// through, if any.
func (o Origin) ImportedAt() (SourcePos, bool) {
	if o.importedAt == nil {
		return SourcePos{}, false
	}
	return *o.importedAt, true
}

// ThroughImport marks the origin as inherited through the import marker at
// callSite. The surfaced position is unchanged.
func (o Origin) ThroughImport(callSite SourcePos) Origin {
	return Origin{pos: o.pos, importedAt: &callSite}
}

// Fragment is one block of embedded WGSL tokens, optionally named for export.
type Fragment struct {
	name   string
	tokens []Token
}

// NewFragment creates a fragment from an ordered token sequence. The name may
// be empty for an anonymous fragment; a named fragment is eligible for
// registration as an export.
func NewFragment(name string, tokens []Token) *Fragment {
	return &Fragment{name: name, tokens: tokens}
}

// Name returns the export name, or "" for an anonymous fragment.
func (f *Fragment) Name() string {
	return f.name
}

// Tokens returns the fragment's token sequence. Callers must not mutate it.
func (f *Fragment) Tokens() []Token {
	return f.tokens
}

// Start returns the position of the fragment's first token.
func (f *Fragment) Start() SourcePos {
	if len(f.tokens) == 0 {
		return UnknownPos("")
	}
	return f.tokens[0].Origin.Pos()
}

// ImportReference is one occurrence of the `#name` or `#name(args)` marker
// syntax inside a fragment.
type ImportReference struct {
	// The referenced export name.
	Name string
	// The location of the marker.
	CallSite SourcePos
	// Whether the marker was immediately followed by a parenthesized argument
	// list, in which case the reference also emits a call to name at that
	// position, in addition to making the definition available.
	HasArgs bool
}
