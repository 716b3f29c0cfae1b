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

// Package parser turns embedded WGSL fragment source into span-tagged token
// streams and recognizes the `#name` cross-module reference markers inside
// them. It does not parse the WGSL grammar; that is the external checker's
// job, performed on the fully stitched text.
package parser

import (
	"io"

	"github.com/bufbuild/wgslcompile/ast"
	"github.com/bufbuild/wgslcompile/reporter"
)

// Parse lexes the given fragment source into an anonymous fragment whose
// tokens carry their positions in filename. All errors encountered are
// reported to the given handler.
func Parse(filename string, r io.Reader, handler *reporter.Handler) (*ast.Fragment, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytes(filename, contents, handler)
}

// ParseBytes is like Parse but takes the source contents directly.
func ParseBytes(filename string, contents []byte, handler *reporter.Handler) (*ast.Fragment, error) {
	lx := newLexer(contents, filename, handler)
	tokens, err := lx.lex()
	if err != nil {
		return nil, err
	}
	if err := handler.Error(); err != nil {
		return nil, err
	}
	return ast.NewFragment("", tokens), nil
}
