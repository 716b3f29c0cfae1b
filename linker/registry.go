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
	"fmt"
	"sync"

	"github.com/tidwall/btree"

	"github.com/bufbuild/wgslcompile/ast"
	"github.com/bufbuild/wgslcompile/reporter"
)

// Registry is the build-wide table of exported fragments, mapping each export
// name to its defining token stream. It is append-only and write-once per
// name: entries are never removed or replaced for the lifetime of a build.
//
// Export names are unique across the whole build graph. Visibility in
// dependency order (an export is only observable by units compiled after the
// exporting unit) is the orchestration layer's responsibility; the registry
// itself enforces only uniqueness. It is never a hidden singleton: every
// stitching operation receives the registry it consults, so tests and
// independent builds can each construct their own.
//
// This type is thread-safe.
type Registry struct {
	mu      sync.Mutex
	exports btree.Map[string, exportEntry]
}

type exportEntry struct {
	fragment *ast.Fragment
	pos      ast.SourcePos
}

// Register installs frag under its export name. A second registration under
// an already-used name is reported through handler as an error at the second
// definition, naming the first.
func (r *Registry) Register(frag *ast.Fragment, handler *reporter.Handler) error {
	name := frag.Name()
	if name == "" {
		return fmt.Errorf("cannot register anonymous fragment as an export")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.exports.Get(name); ok {
		return handler.HandleErrorf(frag.Start(), "export %q already defined at %v", name, existing.pos)
	}
	r.exports.Set(name, exportEntry{fragment: frag, pos: frag.Start()})
	return nil
}

// Lookup returns the fragment registered under name, if any.
func (r *Registry) Lookup(name string) (*ast.Fragment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.exports.Get(name)
	if !ok {
		return nil, false
	}
	return entry.fragment, true
}

// Definition returns a self-contained copy of the defining token stream for
// name, suitable for re-emitting the export from generated code in another
// compilation unit.
func (r *Registry) Definition(name string) ([]ast.Token, bool) {
	frag, ok := r.Lookup(name)
	if !ok {
		return nil, false
	}
	tokens := make([]ast.Token, len(frag.Tokens()))
	copy(tokens, frag.Tokens())
	return tokens, true
}

// Exports returns all registered export names in lexical order.
func (r *Registry) Exports() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, r.exports.Len())
	r.exports.Scan(func(name string, _ exportEntry) bool {
		names = append(names, name)
		return true
	})
	return names
}
