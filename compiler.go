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
	"context"
	"errors"
	"io"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/bufbuild/wgslcompile/ast"
	"github.com/bufbuild/wgslcompile/checker"
	"github.com/bufbuild/wgslcompile/linker"
	"github.com/bufbuild/wgslcompile/parser"
	"github.com/bufbuild/wgslcompile/reporter"
)

// Compiler handles compilation tasks, to turn embedded WGSL fragments into
// validated, fully stitched shader text.
//
// The compilation process involves five steps for each fragment unit:
//  1. Lexing the fragment source into a span-tagged token stream.
//  2. Scanning the stream for `#name` import references.
//  3. Stitching: resolving every reference against the export registry,
//     transitively and exactly once per distinct name, compiling the
//     defining units first.
//  4. Rendering the stitched module to text along with a byte-range origin
//     table.
//  5. Validating the text with the external checker and mapping any
//     diagnostics back through the table to original source locations.
type Compiler struct {
	// Resolves export names into fragment sources. This is how the compiler
	// loads the fragments to be compiled as well as all definitions they
	// reference. This field is the only required field.
	Resolver Resolver
	// The maximum parallelism to use when compiling. If unspecified or set to
	// a non-positive value, then min(runtime.NumCPU(), runtime.GOMAXPROCS(-1))
	// will be used.
	MaxParallelism int
	// A custom error and warning reporter. If unspecified a default reporter
	// is used. A default reporter fails the compilation after encountering
	// any errors and ignores all warnings.
	Reporter reporter.Reporter
	// The external WGSL validator to run on stitched text. If nil, the naga
	// front end is used. Fragments containing reserved preprocessor
	// directives bypass the checker entirely.
	Checker checker.Checker
	// The export registry to resolve references against and install exports
	// into. If nil, each compile operation gets its own empty registry.
	// Supplying one allows separately-invoked compile operations to see each
	// other's exports, with the caller responsible for invoking them in
	// dependency order.
	Registry *linker.Registry
}

// Compiled is the result of compiling one fragment unit.
type Compiled struct {
	// The unit's export name, or "" for an anonymous fragment.
	Name string
	// The final stitched (and, unless Unchecked, validated) WGSL text.
	Text string
	// The root fragment the unit was compiled from.
	Fragment *ast.Fragment
	// The stitched module the text was rendered from.
	Module *linker.Module
	// Table maps byte ranges of Text back to source origins.
	Table *linker.OriginTable
	// Unchecked reports that checker invocation was suppressed because the
	// stitched module contains preprocessor directive syntax.
	Unchecked bool
}

// Compile compiles the named fragment units into validated shader text. The
// compiler's resolver is used to locate fragment sources for the given names
// and for every export name they transitively reference. Each compiled unit
// is registered in the export registry before its references are resolved,
// so mutually-referencing units fail with an import cycle error rather than
// hanging.
func (c *Compiler) Compile(ctx context.Context, names ...string) ([]Compiled, error) {
	if len(names) == 0 {
		return nil, nil
	}

	e, ctx, cancel := c.newExecutor(ctx)
	defer cancel()

	results := make([]*result, len(names))
	for i, name := range names {
		results[i] = e.compile(ctx, name)
	}

	compiled := make([]Compiled, len(names))
	for i, r := range results {
		select {
		case <-r.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if r.err != nil {
			return nil, r.err
		}
		compiled[i] = r.res
	}

	return compiled, nil
}

// CompileFragment compiles a single, possibly anonymous, fragment that the
// host has already lexed. References inside it are resolved the same way
// Compile resolves them; a named fragment is also registered as an export.
func (c *Compiler) CompileFragment(ctx context.Context, frag *ast.Fragment) (Compiled, error) {
	e, ctx, cancel := c.newExecutor(ctx)
	defer cancel()

	r := &result{name: rootName(frag), ready: make(chan struct{})}
	go func() {
		t := task{e: e, r: r}
		if err := e.s.Acquire(ctx, 1); err != nil {
			r.fail(err)
			return
		}
		defer t.release()
		res, err := t.compileFragment(ctx, frag)
		if err != nil {
			r.fail(err)
			return
		}
		r.complete(res)
	}()

	select {
	case <-r.ready:
	case <-ctx.Done():
		return Compiled{}, ctx.Err()
	}
	if r.err != nil {
		return Compiled{}, r.err
	}
	return r.res, nil
}

func (c *Compiler) newExecutor(ctx context.Context) (*executor, context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	par := c.MaxParallelism
	if par <= 0 {
		par = runtime.GOMAXPROCS(-1)
		cpus := runtime.NumCPU()
		if par > cpus {
			par = cpus
		}
	}

	reg := c.Registry
	if reg == nil {
		reg = &linker.Registry{}
	}
	chk := c.Checker
	if chk == nil {
		chk = checker.Naga{}
	}

	e := &executor{
		c:       c,
		h:       reporter.NewHandler(c.Reporter),
		s:       semaphore.NewWeighted(int64(par)),
		cancel:  cancel,
		reg:     reg,
		chk:     chk,
		results: map[string]*result{},
	}
	return e, ctx, cancel
}

type result struct {
	name  string
	ready chan struct{}
	res   Compiled
	err   error

	mu sync.Mutex
	// names of units this result's task is waiting on, for detecting cycles
	// across concurrently-compiled units
	blockedOn []string
}

func (r *result) fail(err error) {
	r.err = err
	close(r.ready)
}

func (r *result) complete(res Compiled) {
	r.res = res
	close(r.ready)
}

func (r *result) setBlockedOn(deps []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blockedOn = deps
}

func (r *result) getBlockedOn() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blockedOn
}

type executor struct {
	c      *Compiler
	h      *reporter.Handler
	s      *semaphore.Weighted
	cancel context.CancelFunc
	reg    *linker.Registry
	chk    checker.Checker

	mu      sync.Mutex
	results map[string]*result
}

func (e *executor) compile(ctx context.Context, name string) *result {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.results[name]
	if r != nil {
		return r
	}

	r = &result{name: name, ready: make(chan struct{})}
	e.results[name] = r
	go func() {
		e.doCompile(ctx, name, r)
	}()
	return r
}

func (e *executor) doCompile(ctx context.Context, name string, r *result) {
	t := task{e: e, r: r}
	if err := e.s.Acquire(ctx, 1); err != nil {
		r.fail(err)
		return
	}
	defer t.release()

	sr, err := e.c.Resolver.FindFragmentByName(name)
	if err != nil {
		r.fail(err)
		return
	}

	defer func() {
		if sr.Source == nil {
			return
		}
		if c, ok := sr.Source.(io.Closer); ok {
			_ = c.Close()
		}
	}()

	frag, err := t.asFragment(name, sr)
	if err != nil {
		r.fail(err)
		return
	}

	res, err := t.compileFragment(ctx, frag)
	if err != nil {
		r.fail(err)
		return
	}
	r.complete(res)
}

// A compilation task. The executor has a semaphore that limits the number of
// concurrent, running tasks.
type task struct {
	e *executor
	r *result
	// If true, this task needs to acquire a semaphore permit before running.
	// If false, this task needs to release its semaphore permit on completion.
	released bool
}

func (t *task) release() {
	if !t.released {
		t.e.s.Release(1)
		t.released = true
	}
}

func (t *task) asFragment(name string, sr SearchResult) (*ast.Fragment, error) {
	if sr.Fragment != nil {
		return ast.NewFragment(name, sr.Fragment.Tokens()), nil
	}
	frag, err := parser.Parse(name+".wgsl", sr.Source, t.e.h)
	if err != nil {
		return nil, err
	}
	return ast.NewFragment(name, frag.Tokens()), nil
}

func (t *task) compileFragment(ctx context.Context, frag *ast.Fragment) (Compiled, error) {
	// Exports become visible before references are resolved, both so that
	// dependent units can observe them and so that reference resolution can
	// tell a cycle apart from a missing export.
	if frag.Name() != "" {
		if err := t.e.reg.Register(frag, t.e.h); err != nil {
			return Compiled{}, err
		}
	}

	scanned := parser.Scan(frag)
	if err := t.compileDependencies(ctx, frag, scanned.References); err != nil {
		return Compiled{}, err
	}

	module, err := linker.Stitch(frag, t.e.reg, t.e.h)
	if err != nil {
		return Compiled{}, err
	}
	text, table := linker.Render(module)

	unchecked := module.Unchecked()
	if !unchecked {
		if err := checker.Validate(text, table, t.e.chk, t.e.h); err != nil {
			return Compiled{}, err
		}
	}
	// the reporter may have swallowed individual errors to keep going; the
	// unit still must not produce a result if any were reported
	if err := t.e.h.Error(); err != nil {
		return Compiled{}, err
	}

	return Compiled{
		Name:      frag.Name(),
		Text:      text,
		Fragment:  frag,
		Module:    module,
		Table:     table,
		Unchecked: unchecked,
	}, nil
}

// compileDependencies compiles the units defining every referenced name that
// is not yet present in the registry, waiting for them to finish (and thus to
// have installed their exports) before the caller stitches. Names the
// resolver knows nothing about are left for the stitcher to report at the
// reference that needs them.
func (t *task) compileDependencies(ctx context.Context, frag *ast.Fragment, refs []ast.ImportReference) error {
	var depNames []string
	callSites := map[string]ast.SourcePos{}
	for _, ref := range refs {
		if _, ok := t.e.reg.Lookup(ref.Name); ok {
			continue
		}
		if ref.Name == frag.Name() {
			// self-reference; the stitcher reports the cycle
			continue
		}
		if _, ok := callSites[ref.Name]; ok {
			continue
		}
		callSites[ref.Name] = ref.CallSite
		depNames = append(depNames, ref.Name)
	}
	if len(depNames) == 0 {
		return nil
	}

	results := make([]*result, len(depNames))
	for i, dep := range depNames {
		results[i] = t.e.compile(ctx, dep)
	}

	// publish what we're waiting on so concurrent tasks that end up waiting
	// on us can be failed as cycles instead of deadlocking
	t.r.setBlockedOn(depNames)
	defer t.r.setBlockedOn(nil)
	if err := t.e.checkForDependencyCycle(t.r, []string{t.r.name}, callSites); err != nil {
		return err
	}

	// release our semaphore so dependencies can be processed w/out risk of
	// deadlock
	t.e.s.Release(1)
	t.released = true

	for _, res := range results {
		select {
		case <-res.ready:
			if res.err != nil && !errors.Is(res.err, ErrExportNotFound) {
				return res.err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// all deps resolved; reacquire semaphore so we can proceed
	if err := t.e.s.Acquire(ctx, 1); err != nil {
		return err
	}
	t.released = false
	return nil
}

// checkForDependencyCycle walks the waits-on graph published by in-flight
// tasks looking for res's own name, which would mean two units transitively
// import each other.
func (e *executor) checkForDependencyCycle(res *result, sequence []string, callSites map[string]ast.SourcePos) error {
	for _, dep := range res.getBlockedOn() {
		if idx := slices.Index(sequence, dep); idx >= 0 {
			chain := append(slices.Clone(sequence[idx:]), dep)
			pos := ast.UnknownPos("")
			if p, ok := callSites[dep]; ok {
				pos = p
			}
			return e.h.HandleErrorf(pos, "import cycle: %s", strings.Join(chain, " -> "))
		}
		e.mu.Lock()
		depRes := e.results[dep]
		e.mu.Unlock()
		if depRes == nil {
			continue
		}
		if err := e.checkForDependencyCycle(depRes, append(sequence, dep), callSites); err != nil {
			return err
		}
	}
	return nil
}

func rootName(frag *ast.Fragment) string {
	if frag.Name() != "" {
		return frag.Name()
	}
	return "<fragment>"
}
