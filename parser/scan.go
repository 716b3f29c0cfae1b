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
	"github.com/bufbuild/wgslcompile/ast"
)

// Mode indicates whether a fragment's stitched output may be fed to the
// external grammar checker.
type Mode int

const (
	// ModeChecked fragments are validated after stitching.
	ModeChecked Mode = iota
	// ModeUnchecked fragments contain preprocessor directive syntax that is
	// not valid WGSL grammar, so checker invocation is suppressed for their
	// stitched output. Import resolution still runs.
	ModeUnchecked
)

// reservedDirectives are the preprocessor directive names of the naga_oil
// dialect. A `#name` occurrence of one of these is not an import reference;
// it is passed through verbatim for a downstream textual preprocessor, and
// its presence puts the fragment in ModeUnchecked.
var reservedDirectives = map[string]bool{
	"define_import_path": true,
	"import":             true,
	"if":                 true,
	"ifdef":              true,
	"ifndef":             true,
	"else":               true,
	"endif":              true,
}

// Result is the outcome of scanning one fragment's token stream for import
// reference markers.
type Result struct {
	// Fragment is the scanned fragment.
	Fragment *ast.Fragment
	// References are the import references found, in order of occurrence.
	// A name referenced more than once appears once per occurrence; the
	// stitcher deduplicates.
	References []ast.ImportReference
	// Residual is the token stream with the markers rewritten: a bare `#name`
	// is elided entirely, while `#name(args)` leaves `name(args)` behind so
	// the imported item is also invoked at that position. Reserved directive
	// markers stay verbatim.
	Residual []ast.Token
	// Mode is ModeUnchecked if any reserved directive occurs in the stream.
	Mode Mode
}

// Scan walks a fragment's token stream and classifies every `#name` marker as
// either an import reference or, for the reserved directive names, an inert
// directive token.
func Scan(frag *ast.Fragment) Result {
	res := Result{Fragment: frag}
	tokens := frag.Tokens()
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Kind != ast.TokenPunct || tok.Text != "#" ||
			i+1 >= len(tokens) || tokens[i+1].Kind != ast.TokenIdent || !tokens[i+1].Joined {
			res.Residual = append(res.Residual, tok)
			continue
		}
		name := tokens[i+1]
		if reservedDirectives[name.Text] {
			res.Mode = ModeUnchecked
			res.Residual = append(res.Residual, tok, name)
			i++
			continue
		}
		// the argument list must be glued to the name, same as the name to the
		// marker; `#f (x)` is a pure import followed by ordinary parens
		hasArgs := i+2 < len(tokens) &&
			tokens[i+2].Kind == ast.TokenPunct && tokens[i+2].Text == "(" && tokens[i+2].Joined
		res.References = append(res.References, ast.ImportReference{
			Name:     name.Text,
			CallSite: tok.Origin.Pos(),
			HasArgs:  hasArgs,
		})
		if hasArgs {
			// keep the call expression; only the marker itself is removed
			res.Residual = append(res.Residual, name)
		}
		i++
	}
	return res
}
