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
	"strings"

	"github.com/bufbuild/wgslcompile/ast"
	"github.com/bufbuild/wgslcompile/parser"
	"github.com/bufbuild/wgslcompile/reporter"
)

// Module is a stitched module: the transitive closure of imported
// definitions, each appearing exactly once in first-reference depth-first
// order, followed by the root fragment's own tokens. It is built fresh per
// top-level compile and discarded after rendering and validation.
type Module struct {
	root      *ast.Fragment
	segments  []Segment
	unchecked bool
}

// Segment is one constituent of a stitched module: the flattened residual
// tokens of a single fragment. The root fragment's segment has an empty name
// and is always last.
type Segment struct {
	Name   string
	Tokens []ast.Token
}

// Root returns the fragment stitching started from.
func (m *Module) Root() *ast.Fragment {
	return m.root
}

// Segments returns the module's constituents in resolution order, the root
// segment last.
func (m *Module) Segments() []Segment {
	return m.segments
}

// Unchecked reports whether any constituent fragment contained reserved
// preprocessor directive syntax, in which case the rendered text is not valid
// WGSL grammar and must not be fed to the checker.
func (m *Module) Unchecked() bool {
	return m.unchecked
}

// Stitch resolves all of root's import references against the given registry,
// transitively and exactly once per distinct name, and produces the stitched
// module. Resolution order is first-encountered depth-first order over the
// token streams, so identical inputs always stitch to identical output.
//
// Unresolved references and import cycles are reported through handler at the
// reference that caused them.
func Stitch(root *ast.Fragment, registry *Registry, handler *reporter.Handler) (*Module, error) {
	s := &stitcher{
		registry:   registry,
		handler:    handler,
		resolved:   map[string]bool{},
		inProgress: map[string]bool{},
	}

	res := parser.Scan(root)
	m := &Module{root: root, unchecked: res.Mode == parser.ModeUnchecked}

	// A named root can be referenced from fragments it imports; that is a
	// cycle, not a reason to inline the root twice.
	chain := []string{rootLabel(root)}
	if root.Name() != "" {
		s.inProgress[root.Name()] = true
	}

	for _, ref := range res.References {
		if err := s.expand(ref.Name, ref.CallSite, chain, m); err != nil {
			return nil, err
		}
	}
	m.segments = append(m.segments, Segment{Tokens: res.Residual})
	return m, nil
}

type stitcher struct {
	registry *Registry
	handler  *reporter.Handler

	// names already flattened into the output
	resolved map[string]bool
	// names currently being expanded, for cycle detection
	inProgress map[string]bool
}

func (s *stitcher) expand(name string, callSite ast.SourcePos, chain []string, m *Module) error {
	if s.inProgress[name] {
		return s.handler.HandleErrorf(callSite, "import cycle: %s", strings.Join(append(chain, name), " -> "))
	}
	if s.resolved[name] {
		// already included; a repeated reference is a no-op import
		return nil
	}

	frag, ok := s.registry.Lookup(name)
	if !ok {
		return s.handler.HandleErrorf(callSite, "unresolved export %q: no fragment with that name was exported by this unit or its dependencies", name)
	}

	s.inProgress[name] = true
	res := parser.Scan(frag)
	if res.Mode == parser.ModeUnchecked {
		m.unchecked = true
	}
	for _, ref := range res.References {
		if err := s.expand(ref.Name, ref.CallSite, append(chain, name), m); err != nil {
			return err
		}
	}
	delete(s.inProgress, name)
	s.resolved[name] = true

	// Inlined tokens keep their definition-site origins; the import marker's
	// location is retained only as supporting detail.
	tokens := make([]ast.Token, len(res.Residual))
	for i, tok := range res.Residual {
		tok.Origin = tok.Origin.ThroughImport(callSite)
		tokens[i] = tok
	}
	m.segments = append(m.segments, Segment{Name: name, Tokens: tokens})
	return nil
}

func rootLabel(root *ast.Fragment) string {
	if root.Name() != "" {
		return root.Name()
	}
	return "<root>"
}
