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

// Package checker feeds stitched WGSL text through an external grammar and
// semantic checker and maps the resulting diagnostics back to the original
// source locations that produced the text.
package checker

import (
	"github.com/bufbuild/wgslcompile/ast"
	"github.com/bufbuild/wgslcompile/linker"
	"github.com/bufbuild/wgslcompile/reporter"
)

// Severity indicates how a diagnostic affects the compile operation.
type Severity int

const (
	// SeverityError diagnostics fail the compile.
	SeverityError Severity = iota
	// SeverityWarning diagnostics are surfaced without aborting.
	SeverityWarning
)

// Diagnostic is one finding of the external checker, located by a byte range
// into the checked text.
type Diagnostic struct {
	// Start and End delimit the offending bytes; End is exclusive. Only Start
	// is used for origin mapping.
	Start, End int
	Message    string
	Severity   Severity
}

// Checker is the external WGSL validator: text in, ordered diagnostics out.
// Implementations must be pure functions of their input text; the compiler
// never retries a checker invocation.
type Checker interface {
	Check(text string) []Diagnostic
}

// Validate invokes the checker once on text and reports every diagnostic
// through handler at the origin that produced the diagnosed bytes. For bytes
// that were inlined from an imported fragment, that origin is the exporting
// definition site, which may live in a different module than the one being
// compiled.
//
// A nil return means the text was accepted (no error-severity diagnostics).
func Validate(text string, table *linker.OriginTable, c Checker, handler *reporter.Handler) error {
	invalid := false
	for _, d := range c.Check(text) {
		pos := ast.UnknownPos("")
		if origin, ok := table.Find(d.Start); ok {
			pos = origin.Pos()
		}
		switch d.Severity {
		case SeverityWarning:
			handler.HandleWarningf(pos, "%s", d.Message)
		default:
			invalid = true
			if err := handler.HandleErrorf(pos, "%s", d.Message); err != nil {
				return err
			}
		}
	}
	if invalid {
		return handler.Error()
	}
	return nil
}
