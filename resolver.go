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

package wgslcompile

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bufbuild/wgslcompile/ast"
)

// ErrExportNotFound is returned by resolvers when no fragment source exists
// for a requested export name. A reference to such a name surfaces as an
// unresolved-export error at the reference, not as a resolver failure.
var ErrExportNotFound = errors.New("export not found")

// Resolver locates the defining source for an export name. This is how the
// compiler loads the fragments named on the command line as well as the
// definitions of every `#name` reference they transitively contain.
type Resolver interface {
	FindFragmentByName(name string) (SearchResult, error)
}

// SearchResult is the result of resolving an export name. Only one of the
// fields need be set; if both are, the compiler prefers the fragment and
// ignores the source.
type SearchResult struct {
	// Source is fragment source code, to be lexed by the compiler.
	Source io.Reader
	// Fragment is an already-lexed token stream, for hosts that perform
	// their own lexing of the surrounding syntax.
	Fragment *ast.Fragment
}

// ResolverFunc is a simple function type that implements the Resolver
// interface.
type ResolverFunc func(string) (SearchResult, error)

var _ Resolver = ResolverFunc(nil)

func (f ResolverFunc) FindFragmentByName(name string) (SearchResult, error) {
	return f(name)
}

// CompositeResolver is a slice of resolvers, which are consulted in order
// until one can answer a request. If none can, the error returned by the
// first resolver is reported.
type CompositeResolver []Resolver

var _ Resolver = CompositeResolver(nil)

func (f CompositeResolver) FindFragmentByName(name string) (SearchResult, error) {
	if len(f) == 0 {
		return SearchResult{}, ErrExportNotFound
	}
	var firstErr error
	for _, res := range f {
		r, err := res.FindFragmentByName(name)
		if err == nil {
			return r, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return SearchResult{}, firstErr
}

// SourceResolver can resolve export names into source contents by looking for
// a file named "<name>.wgsl" under the configured import paths.
type SourceResolver struct {
	// ImportPaths is the paths used to search for fragment files. If empty,
	// the name is resolved against the current directory.
	ImportPaths []string
	// Accessor is an optional override for how files are opened. If nil,
	// the local file system is consulted.
	Accessor func(path string) (io.ReadCloser, error)
}

var _ Resolver = (*SourceResolver)(nil)

func (r *SourceResolver) FindFragmentByName(name string) (SearchResult, error) {
	accessor := r.Accessor
	if accessor == nil {
		accessor = func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		}
	}

	paths := r.ImportPaths
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, importPath := range paths {
		reader, err := accessor(filepath.Join(importPath, name+".wgsl"))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return SearchResult{}, err
		}
		return SearchResult{Source: reader}, nil
	}
	return SearchResult{}, ErrExportNotFound
}
