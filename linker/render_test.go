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

package linker_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bufbuild/wgslcompile/linker"
	"github.com/bufbuild/wgslcompile/reporter"
)

func stitchOne(t *testing.T, exportSource, rootSource string) (string, *linker.OriginTable) {
	t.Helper()
	reg := &linker.Registry{}
	handler := reporter.NewHandler(nil)
	if exportSource != "" {
		require.NoError(t, reg.Register(parseExport(t, "f", "f.wgsl", exportSource), handler))
	}
	root := parseExport(t, "", "root.wgsl", rootSource)
	m, err := linker.Stitch(root, reg, handler)
	require.NoError(t, err)
	return linker.Render(m)
}

func TestRenderSeparators(t *testing.T) {
	t.Parallel()

	text, _ := stitchOne(t, "", "fn f(v: f32) -> vec2<f32> { return vec2<f32>(v, v); }")
	assert.Equal(t, "fn f (v:f32 )-> vec2 < f32 > {\nreturn vec2 < f32 > (v , v );\n}\n", text)

	// attributes glue to what follows; '#' directives start their own line
	text, _ = stitchOne(t, "", "@group(0) var x: f32;\n#ifdef A\n#endif")
	assert.Equal(t, "@group (0 )var x:f32 ;\n\n#ifdef A \n#endif ", text)
}

func TestRenderPartitionIsTotal(t *testing.T) {
	t.Parallel()

	text, table := stitchOne(t,
		"fn f() -> f32 { return 1.0; }",
		"fn main() -> f32 { return #f() * 2.0; }")

	ranges := table.Ranges()
	require.NotEmpty(t, ranges)

	// every byte of the rendered text belongs to exactly one range
	assert.Equal(t, 0, ranges[0].Start)
	assert.Equal(t, len(text)-1, ranges[len(ranges)-1].End)
	for i := 1; i < len(ranges); i++ {
		assert.Equal(t, ranges[i-1].End+1, ranges[i].Start, "gap before range %d", i)
	}
	assert.Equal(t, len(ranges), table.Len())
}

func TestRenderOriginMapping(t *testing.T) {
	t.Parallel()

	text, table := stitchOne(t,
		"fn f() -> f32 { return 1.0; }",
		"fn main() -> f32 { return #f() * 2.0; }")

	// a byte inside the inlined definition maps to where it was written, and
	// remembers the import marker it came through
	origin, ok := table.Find(strings.Index(text, "1.0"))
	require.True(t, ok)
	assert.Equal(t, "f.wgsl", origin.Pos().Filename)
	importedAt, imported := origin.ImportedAt()
	require.True(t, imported)
	assert.Equal(t, "root.wgsl", importedAt.Filename)

	// a byte from the root fragment maps straight to the root source
	origin, ok = table.Find(strings.Index(text, "2.0"))
	require.True(t, ok)
	assert.Equal(t, "root.wgsl", origin.Pos().Filename)
	_, imported = origin.ImportedAt()
	assert.False(t, imported)

	_, ok = table.Find(len(text))
	assert.False(t, ok)
	_, ok = table.Find(-1)
	assert.False(t, ok)
}

func TestRenderRangeLayout(t *testing.T) {
	t.Parallel()

	text, table := stitchOne(t, "", "fn f() { return 1.0; }")
	require.Equal(t, "fn f (){\nreturn 1.0 ;\n}\n", text)

	type span struct{ Start, End int }
	var got []span
	for _, r := range table.Ranges() {
		got = append(got, span{r.Start, r.End})
	}
	want := []span{
		{0, 2},   // "fn "
		{3, 4},   // "f "
		{5, 5},   // "("
		{6, 6},   // ")"
		{7, 8},   // "{\n"
		{9, 15},  // "return "
		{16, 19}, // "1.0 "
		{20, 21}, // ";\n"
		{22, 23}, // "}\n"
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected range layout (-want +got):\n%s", diff)
	}
}
