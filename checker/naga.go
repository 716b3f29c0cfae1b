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

package checker

import (
	"errors"

	"github.com/gogpu/naga/wgsl"
)

// Naga is a Checker backed by the naga WGSL front end. It tokenizes and
// parses the text and, when that succeeds, lowers it to IR so that semantic
// errors (bad types, unknown identifiers, missing returns) are caught at
// build time too, not just syntax.
type Naga struct {
	// SyntaxOnly skips the lowering step, checking grammar but not semantics.
	SyntaxOnly bool
}

var _ Checker = Naga{}

func (n Naga) Check(text string) []Diagnostic {
	lines := lineOffsets(text)

	tokens, err := wgsl.NewLexer(text).Tokenize()
	if err != nil {
		return nagaDiagnostics(err, lines, SeverityError)
	}
	module, err := wgsl.NewParser(tokens).Parse()
	if err != nil {
		return nagaDiagnostics(err, lines, SeverityError)
	}
	if n.SyntaxOnly {
		return nil
	}

	result, err := wgsl.LowerWithWarnings(module, text)
	if err != nil {
		return nagaDiagnostics(err, lines, SeverityError)
	}

	var diags []Diagnostic
	for _, w := range result.Warnings {
		start := offsetAt(lines, w.Span.Start.Line, w.Span.Start.Column, w.Span.Start.Offset)
		diags = append(diags, Diagnostic{
			Start:    start,
			End:      start + 1,
			Message:  w.Message,
			Severity: SeverityWarning,
		})
	}
	return diags
}

// nagaDiagnostics converts the error shapes the naga front end produces into
// byte-ranged diagnostics against the checked text.
func nagaDiagnostics(err error, lines []int, sev Severity) []Diagnostic {
	var list *wgsl.SourceErrors
	if errors.As(err, &list) {
		diags := make([]Diagnostic, 0, len(*list))
		for _, e := range *list {
			diags = append(diags, sourceErrorDiagnostic(e, lines, sev))
		}
		return diags
	}

	var srcErr *wgsl.SourceError
	if errors.As(err, &srcErr) {
		return []Diagnostic{sourceErrorDiagnostic(srcErr, lines, sev)}
	}

	var parseErr wgsl.ParseError
	if errors.As(err, &parseErr) {
		start := offsetAt(lines, parseErr.Token.Line, parseErr.Token.Column, 0)
		return []Diagnostic{{
			Start:    start,
			End:      start + len(parseErr.Token.Lexeme),
			Message:  parseErr.Message,
			Severity: sev,
		}}
	}

	return []Diagnostic{{Message: err.Error(), Severity: sev}}
}

func sourceErrorDiagnostic(e *wgsl.SourceError, lines []int, sev Severity) Diagnostic {
	start := offsetAt(lines, e.Span.Start.Line, e.Span.Start.Column, e.Span.Start.Offset)
	end := offsetAt(lines, e.Span.End.Line, e.Span.End.Column, e.Span.End.Offset)
	if end <= start {
		end = start + 1
	}
	return Diagnostic{Start: start, End: end, Message: e.Message, Severity: sev}
}

// lineOffsets returns the byte offset of the start of each 1-based line.
func lineOffsets(text string) []int {
	lines := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return lines
}

// offsetAt converts a 1-based line/column position to a byte offset, using an
// explicit offset when the checker provided one.
func offsetAt(lines []int, line, col, offset int) int {
	if offset > 0 {
		return offset
	}
	if line < 1 || line > len(lines) {
		return 0
	}
	off := lines[line-1] + col - 1
	if off < 0 {
		return 0
	}
	return off
}
