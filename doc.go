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

// Package wgslcompile provides the entry point for a build-time compiler for
// WGSL fragments embedded in host source. "Compile" in this case means:
// lexing a fragment into span-tagged tokens, resolving its `#name` references
// against an export registry, stitching the transitive closure of referenced
// definitions into one module, and validating the result with a WGSL
// front end, all before the program runs. Diagnostics point at the original
// source location that produced them, even when that location lives in
// another module entirely.
//
// The various sub-packages represent the compile phases and contain models
// for the intermediate results. Those phases follow:
//  1. Lex a fragment into a token stream.
//     Also see: parser.Parse
//  2. Scan the stream for import references and preprocessor directives.
//     Also see: parser.Scan
//  3. Stitch the reference closure into a single module.
//     Also see: linker.Stitch
//  4. Render the module to text plus a byte-range origin table.
//     Also see: linker.Render
//  5. Check the text and map diagnostics back to origins.
//     Also see: checker.Validate
//
// This package provides an easy-to-use interface that does all of the phases,
// based on the inputs given. It is also capable of taking advantage of
// multiple CPU cores, compiling independent fragment units in parallel while
// preserving registration-before-lookup ordering between dependent ones.
//
// # Resolvers
//
// A Resolver is how the compiler locates fragment definitions. It loads the
// fragments named in the call to Compile and also the definition of every
// export those fragments transitively reference. A Resolver can answer a
// query with raw source (which the compiler lexes) or with an already-lexed
// token stream, for hosts that do their own lexing of the surrounding syntax.
//
// # Compiler
//
// A Compiler accepts a list of export names and produces stitched, validated
// WGSL text for each. Only the Resolver field is required. A minimal
// Compiler, resolving "<name>.wgsl" files relative to the current working
// directory, can be had with the following simple snippet:
//
//	compiler := wgslcompile.Compiler{
//	    Resolver: &wgslcompile.SourceResolver{},
//	}
//
// Fragments reference each other with marker syntax: `#blur` makes the
// definition exported under "blur" available to the fragment, and
// `#blur(x, r)` additionally leaves the call `blur(x, r)` in place. The
// stitched output contains each referenced definition exactly once, before
// any code that uses it, no matter how many references exist or how they are
// nested.
package wgslcompile
