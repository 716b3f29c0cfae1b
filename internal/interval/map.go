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

// Package interval provides a map from non-overlapping closed intervals to
// values, with logarithmic containment lookup.
package interval

import (
	"cmp"
	"fmt"
	"iter"

	"github.com/tidwall/btree"
)

// Map is an interval map, which maps non-overlapping closed intervals with
// endpoints in K to values of type V.
//
// A zero value is ready to use.
type Map[K cmp.Ordered, V any] struct {
	// Keys in this map are the ends of intervals in the map.
	tree btree.Map[K, *entry[K, V]]
}

// Interval is an entry returned by [Map.Get].
type Interval[K cmp.Ordered, V any] struct {
	// The range for this interval. Both endpoints are inclusive.
	Start, End K

	// The value associated with it.
	Value *V
}

type entry[K cmp.Ordered, V any] struct {
	start K
	value V
}

// Get looks up the interval which contains key, if one exists.
//
// If no such interval exists, the Value of the returned [Interval] will be
// nil.
func (m *Map[K, V]) Get(key K) Interval[K, V] {
	iter := m.tree.Iter()
	found := iter.Seek(key)

	if !found || key < iter.Value().start {
		// The least interval whose end is >= key starts after key, so no
		// interval contains it.
		return Interval[K, V]{}
	}

	return Interval[K, V]{
		Start: iter.Value().start,
		End:   iter.Key(),
		Value: &iter.Value().value,
	}
}

// Insert inserts a new interval into this map, with the given associated
// value. Both endpoints are inclusive.
//
// The map only holds disjoint intervals; inserting an interval that overlaps
// one already present panics, since the callers in this module construct
// partitions and an overlap means a bookkeeping bug, not recoverable input.
func (m *Map[K, V]) Insert(start, end K, value V) {
	if start > end {
		panic(fmt.Sprintf("interval: start (%#v) > end (%#v)", start, end))
	}

	iter := m.tree.Iter()
	if iter.Seek(start) && iter.Value().start <= end {
		panic(fmt.Sprintf("interval: [%#v, %#v] overlaps [%#v, %#v]",
			start, end, iter.Value().start, iter.Key()))
	}

	m.tree.Set(end, &entry[K, V]{start: start, value: value})
}

// Len returns the number of intervals in the map.
func (m *Map[K, V]) Len() int {
	return m.tree.Len()
}

// Intervals returns an iterator over the intervals in this map, in ascending
// order.
func (m *Map[K, V]) Intervals() iter.Seq[Interval[K, V]] {
	return func(yield func(Interval[K, V]) bool) {
		iter := m.tree.Iter()
		more := iter.First()
		for more {
			if !yield(Interval[K, V]{
				Start: iter.Value().start,
				End:   iter.Key(),
				Value: &iter.Value().value,
			}) {
				return
			}
			more = iter.Next()
		}
	}
}
