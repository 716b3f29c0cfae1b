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
	"strings"
)

// standardExports are small WGSL utilities available to every build without
// the caller supplying a definition, following the convention that an export
// name matches the name of the item it defines.
var standardExports = map[string]string{
	"tau": `const tau: f32 = 6.283185307179586;`,

	"luminance": `fn luminance(c: vec3<f32>) -> f32 {
		return dot(c, vec3<f32>(0.2126, 0.7152, 0.0722));
	}`,

	"inverse_lerp": `fn inverse_lerp(a: f32, b: f32, v: f32) -> f32 {
		return (v - a) / (b - a);
	}`,
}

// WithStandardExports returns a new resolver that falls back to definitions
// of the standard utility exports when the given resolver cannot find a
// name.
func WithStandardExports(r Resolver) Resolver {
	return CompositeResolver{r, ResolverFunc(func(name string) (SearchResult, error) {
		src, ok := standardExports[name]
		if !ok {
			return SearchResult{}, ErrExportNotFound
		}
		return SearchResult{Source: strings.NewReader(src)}, nil
	})}
}
