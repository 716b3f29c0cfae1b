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

package wgslcompile_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bufbuild/wgslcompile"
	"github.com/bufbuild/wgslcompile/checker"
	"github.com/bufbuild/wgslcompile/linker"
	"github.com/bufbuild/wgslcompile/parser"
	"github.com/bufbuild/wgslcompile/reporter"
)

func mapResolver(sources map[string]string) wgslcompile.ResolverFunc {
	return func(name string) (wgslcompile.SearchResult, error) {
		src, ok := sources[name]
		if !ok {
			return wgslcompile.SearchResult{}, wgslcompile.ErrExportNotFound
		}
		return wgslcompile.SearchResult{Source: strings.NewReader(src)}, nil
	}
}

// countingChecker records every text it is asked to check.
type countingChecker struct {
	mu    sync.Mutex
	texts []string
}

func (c *countingChecker) Check(text string) []checker.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *countingChecker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.texts)
}

func TestCompileNoReferences(t *testing.T) {
	t.Parallel()

	c := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"f": "fn f() -> f32 { return 1.0; }",
		}),
	}
	compiled, err := c.Compile(context.Background(), "f")
	require.NoError(t, err)
	require.Len(t, compiled, 1)
	assert.Equal(t, "f", compiled[0].Name)
	assert.Equal(t, "fn f ()-> f32 {\nreturn 1.0 ;\n}\n", compiled[0].Text)
	assert.False(t, compiled[0].Unchecked)
	require.Len(t, compiled[0].Module.Segments(), 1)
}

func TestCompileSingleImport(t *testing.T) {
	t.Parallel()

	c := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"f":      "fn f() -> f32 { return 1.0; }",
			"shader": "fn g() -> f32 { return #f() * 2.0; }",
		}),
	}
	compiled, err := c.Compile(context.Background(), "shader")
	require.NoError(t, err)
	require.Len(t, compiled, 1)

	// f's definition precedes g's body, and the call site renders as f()
	assert.Equal(t,
		"fn f ()-> f32 {\nreturn 1.0 ;\n}\nfn g ()-> f32 {\nreturn f ()* 2.0 ;\n}\n",
		compiled[0].Text)

	segments := compiled[0].Module.Segments()
	require.Len(t, segments, 2)
	assert.Equal(t, "f", segments[0].Name)
	assert.Equal(t, "", segments[1].Name)
}

func TestCompileSharedDependencyAppearsOnce(t *testing.T) {
	t.Parallel()

	c := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"c":    "fn c() -> f32 { return 3.0; }",
			"a":    "#c\nfn a() -> f32 { return c(); }",
			"b":    "#c\nfn b() -> f32 { return c(); }",
			"root": "#a\n#b\nfn root_fn() -> f32 { return a() + b(); }",
		}),
	}
	compiled, err := c.Compile(context.Background(), "root")
	require.NoError(t, err)
	require.Len(t, compiled, 1)
	text := compiled[0].Text

	assert.Equal(t, 1, strings.Count(text, "fn c ("))

	// every definition precedes its first use
	order := []string{"fn c (", "fn a (", "fn b (", "fn root_fn ("}
	last := -1
	for _, marker := range order {
		idx := strings.Index(text, marker)
		require.GreaterOrEqual(t, idx, 0, "missing %q", marker)
		assert.Greater(t, idx, last, "%q out of order", marker)
		last = idx
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	t.Parallel()

	sources := map[string]string{
		"c":    "fn c() -> f32 { return 3.0; }",
		"a":    "#c\nfn a() -> f32 { return c(); }",
		"b":    "#c\nfn b() -> f32 { return c(); }",
		"root": "#b\n#a\nfn root_fn() -> f32 { return a() + b(); }",
	}
	compileOnce := func() string {
		c := &wgslcompile.Compiler{Resolver: mapResolver(sources)}
		compiled, err := c.Compile(context.Background(), "root")
		require.NoError(t, err)
		return compiled[0].Text
	}

	first := compileOnce()
	for range 20 {
		got := compileOnce()
		if got != first {
			diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
				A:        difflib.SplitLines(first),
				B:        difflib.SplitLines(got),
				FromFile: "first",
				ToFile:   "repeat",
				Context:  3,
			})
			t.Fatalf("stitched output differs between runs:\n%s", diff)
		}
	}
}

func TestCompileUnresolvedExport(t *testing.T) {
	t.Parallel()

	c := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"root": "fn m() -> f32 { return #unknown() * 2.0; }",
		}),
	}
	_, err := c.Compile(context.Background(), "root")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unresolved export "unknown"`)

	// the error is reported at the reference, not at some resolver location
	var errWithPos reporter.ErrorWithPos
	require.ErrorAs(t, err, &errWithPos)
	assert.Equal(t, "root.wgsl", errWithPos.GetPosition().Filename)
}

func TestCompileImportCycle(t *testing.T) {
	t.Parallel()

	sources := map[string]string{
		"x": "#y\nfn x() {}",
		"y": "#x\nfn y() {}",
	}

	c := &wgslcompile.Compiler{Resolver: mapResolver(sources)}
	_, err := c.Compile(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import cycle:")

	// compiling both roots at once must fail the same way, not deadlock
	c = &wgslcompile.Compiler{Resolver: mapResolver(sources)}
	_, err = c.Compile(context.Background(), "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import cycle:")
}

func TestCompileSelfImport(t *testing.T) {
	t.Parallel()

	c := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"r": "#r\nfn r() {}",
		}),
	}
	_, err := c.Compile(context.Background(), "r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import cycle: r -> r")
}

func TestCompileDirectivesSkipChecker(t *testing.T) {
	t.Parallel()

	spy := &countingChecker{}
	c := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"shadowed": "#ifdef SHADOWS\nfn s() {}\n#endif",
		}),
		Checker: spy,
	}
	compiled, err := c.Compile(context.Background(), "shadowed")
	require.NoError(t, err)
	require.Len(t, compiled, 1)
	assert.True(t, compiled[0].Unchecked)
	assert.Contains(t, compiled[0].Text, "#ifdef")
	assert.Equal(t, 0, spy.count())
}

func TestCompileDirectiveInDependencySkipsChecker(t *testing.T) {
	t.Parallel()

	spy := &countingChecker{}
	c := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"lib":  "#ifdef X\nfn l() {}\n#endif",
			"root": "#lib\nfn m() {}",
		}),
		Checker: spy,
	}
	compiled, err := c.Compile(context.Background(), "root")
	require.NoError(t, err)
	require.Len(t, compiled, 1)

	// the directive syntax pulled in from lib infects the root's stitched
	// output, and lib's own unit is unchecked as well
	assert.True(t, compiled[0].Unchecked)
	assert.Equal(t, 0, spy.count())
}

func TestCompileCheckerFailure(t *testing.T) {
	t.Parallel()

	var reported []reporter.ErrorWithPos
	var mu sync.Mutex
	c := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"dist": "fn dist(a: vec2<f32>, b: vec2<f32>) -> f32 { return abs(a.x - b.x) + abs(a.y - b.y); }",
			"root": "fn m() -> f32 { return #dist(vec2<f32>(0.0, 0.0), vec2<f32>(1.0, 1.0)) + missing; }",
		}),
		Reporter: reporter.NewReporter(
			func(errWithPos reporter.ErrorWithPos) error {
				mu.Lock()
				defer mu.Unlock()
				reported = append(reported, errWithPos)
				return nil
			},
			nil,
		),
	}
	_, err := c.Compile(context.Background(), "root")
	require.ErrorIs(t, err, reporter.ErrInvalidFragment)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, reported)
	found := false
	for _, errWithPos := range reported {
		if strings.Contains(errWithPos.Error(), "missing") {
			found = true
			// the offending code is the root's own, so the mapped origin lands
			// in the root fragment's source
			assert.Equal(t, "root.wgsl", errWithPos.GetPosition().Filename)
		}
	}
	assert.True(t, found, "no diagnostic mentioned the unresolved name: %v", reported)
}

func TestCompileFragment(t *testing.T) {
	t.Parallel()

	handler := reporter.NewHandler(nil)
	frag, err := parser.Parse("host.go", strings.NewReader("fn m() -> f32 { return #f() + 1.0; }"), handler)
	require.NoError(t, err)

	reg := &linker.Registry{}
	c := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"f": "fn f() -> f32 { return 1.0; }",
		}),
		Registry: reg,
	}
	compiled, err := c.CompileFragment(context.Background(), frag)
	require.NoError(t, err)
	assert.Equal(t, "", compiled.Name)
	assert.Contains(t, compiled.Text, "fn f (")
	assert.Contains(t, compiled.Text, "fn m (")

	// the dependency was registered; the anonymous root was not
	assert.Equal(t, []string{"f"}, reg.Exports())
}

func TestCompileSharedRegistry(t *testing.T) {
	t.Parallel()

	reg := &linker.Registry{}
	lib := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"f": "fn f() -> f32 { return 1.0; }",
		}),
		Registry: reg,
	}
	_, err := lib.Compile(context.Background(), "f")
	require.NoError(t, err)

	// the second operation's resolver knows nothing about f; the shared
	// registry supplies it
	app := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"root": "fn m() -> f32 { return #f() * 2.0; }",
		}),
		Registry: reg,
	}
	compiled, err := app.Compile(context.Background(), "root")
	require.NoError(t, err)
	assert.Contains(t, compiled[0].Text, "fn f (")
}

func TestCompileDuplicateExport(t *testing.T) {
	t.Parallel()

	reg := &linker.Registry{}
	newCompiler := func() *wgslcompile.Compiler {
		return &wgslcompile.Compiler{
			Resolver: mapResolver(map[string]string{
				"f": "fn f() -> f32 { return 1.0; }",
			}),
			Registry: reg,
		}
	}
	_, err := newCompiler().Compile(context.Background(), "f")
	require.NoError(t, err)

	_, err = newCompiler().Compile(context.Background(), "f")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `export "f" already defined at f.wgsl:1:1`)
}

func TestCompileStandardExports(t *testing.T) {
	t.Parallel()

	c := &wgslcompile.Compiler{
		Resolver: wgslcompile.WithStandardExports(mapResolver(map[string]string{
			"circ": "#tau\nfn circumference(r: f32) -> f32 { return tau * r; }",
			"lum":  "fn brightness(c: vec3<f32>) -> f32 { return #luminance(c); }",
		})),
	}
	compiled, err := c.Compile(context.Background(), "circ", "lum")
	require.NoError(t, err)
	require.Len(t, compiled, 2)
	assert.Contains(t, compiled[0].Text, "const tau")
	assert.Contains(t, compiled[1].Text, "fn luminance (")
}

func TestCompileNothing(t *testing.T) {
	t.Parallel()

	c := &wgslcompile.Compiler{Resolver: mapResolver(nil)}
	compiled, err := c.Compile(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, compiled)
}

func TestCompileCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"f": "fn f() -> f32 { return 1.0; }",
		}),
	}
	_, err := c.Compile(ctx, "f")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompileMaxParallelism(t *testing.T) {
	t.Parallel()

	// a single permit forces sequential execution; correctness must not
	// depend on there being enough permits for all in-flight units
	c := &wgslcompile.Compiler{
		Resolver: mapResolver(map[string]string{
			"c":    "fn c() -> f32 { return 3.0; }",
			"a":    "#c\nfn a() -> f32 { return c(); }",
			"b":    "#c\nfn b() -> f32 { return c(); }",
			"root": "#a\n#b\nfn root_fn() -> f32 { return a() + b(); }",
		}),
		MaxParallelism: 1,
	}
	compiled, err := c.Compile(context.Background(), "root", "a", "b", "c")
	require.NoError(t, err)
	require.Len(t, compiled, 4)
	assert.Equal(t, 1, strings.Count(compiled[0].Text, "fn c ("))
}
