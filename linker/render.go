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

package linker

import (
	"github.com/bufbuild/wgslcompile/ast"
	"github.com/bufbuild/wgslcompile/internal/interval"
)

// OriginTable maps byte ranges of rendered text back to the origin of the
// token that produced them. The recorded ranges are a total, non-overlapping
// partition of the rendered text, so every checker diagnostic offset resolves
// to exactly one origin.
type OriginTable struct {
	ranges interval.Map[int, ast.Origin]
}

// Find returns the origin of the token whose rendered range contains the
// given byte offset.
func (t *OriginTable) Find(offset int) (ast.Origin, bool) {
	entry := t.ranges.Get(offset)
	if entry.Value == nil {
		return ast.Origin{}, false
	}
	return *entry.Value, true
}

// Len returns the number of ranges in the table, one per rendered token.
func (t *OriginTable) Len() int {
	return t.ranges.Len()
}

// Range is one entry of an OriginTable. End is inclusive.
type Range struct {
	Start, End int
	Origin     ast.Origin
}

// Ranges returns the table's entries in ascending byte order.
func (t *OriginTable) Ranges() []Range {
	ranges := make([]Range, 0, t.ranges.Len())
	for entry := range t.ranges.Intervals() {
		ranges = append(ranges, Range{Start: entry.Start, End: entry.End, Origin: *entry.Value})
	}
	return ranges
}

// Render flattens a stitched module to WGSL text, inserting the separating
// whitespace needed to keep the WGSL tokenization of the text identical to
// the token stream, and records which origin produced every byte of it.
//
// The separator rules follow the embedded tokens, not a formatter:
// identifier-like tokens get a trailing space, `;` and braces start new lines
// so checker line numbers stay meaningful, grouping punctuation binds tightly,
// and a `#` starts its own line for the benefit of downstream preprocessors.
func Render(m *Module) (string, *OriginTable) {
	var buf []byte
	starts := make([]int, 0, 64)
	origins := make([]ast.Origin, 0, 64)

	for _, seg := range m.Segments() {
		for _, tok := range seg.Tokens {
			if tok.Kind == ast.TokenPunct && tok.Text == ":" {
				// bind to the preceding identifier: `a:f32`, not `a : f32`
				if n := len(buf); n > 0 && buf[n-1] == ' ' {
					buf = buf[:n-1]
				}
			}
			starts = append(starts, len(buf))
			origins = append(origins, tok.Origin)
			buf = appendToken(buf, tok)
		}
	}

	table := &OriginTable{}
	for i, start := range starts {
		end := len(buf) - 1
		if i+1 < len(starts) {
			end = starts[i+1] - 1
		}
		table.ranges.Insert(start, end, origins[i])
	}
	return string(buf), table
}

func appendToken(buf []byte, tok ast.Token) []byte {
	if tok.Kind != ast.TokenPunct {
		return append(append(buf, tok.Text...), ' ')
	}
	switch tok.Text {
	case ";":
		return append(buf, ";\n"...)
	case "{":
		return append(buf, "{\n"...)
	case "}":
		return append(buf, "}\n"...)
	case "#":
		// directives are line-oriented
		return append(buf, "\n#"...)
	case "(", ")", "[", "]", ":", "@":
		return append(buf, tok.Text...)
	default:
		return append(append(buf, tok.Text...), ' ')
	}
}
