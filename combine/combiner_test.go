// Copyright (C) 2024 kvreduce authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package combine

import (
	"testing"

	"github.com/kvreduce/kvreduce/script"
)

func TestCombineGroupsDuplicateKeysInOneBucket(t *testing.T) {
	c := New(4)
	c.Combine([]script.MapResult{
		{Key: "the", Value: "1"},
		{Key: "the", Value: "1"},
		{Key: "quick", Value: "1"},
	})

	var total int
	var theValues []string
	for _, b := range c.Buckets() {
		for k, cont := range b.Drain() {
			total += len(cont.Values)
			if k == "the" {
				theValues = cont.Values
			}
		}
	}
	if total != 3 {
		t.Fatalf("expected 3 values total, got %d", total)
	}
	if len(theValues) != 2 {
		t.Fatalf("expected both \"the\" values in the same container, got %v", theValues)
	}
}

func TestCombineIsDeterministicWithinARun(t *testing.T) {
	c1 := New(8)
	c2 := New(8)
	results := []script.MapResult{{Key: "alpha", Value: "1"}, {Key: "beta", Value: "1"}}
	c1.Combine(results)
	c2.Combine(results)

	for i := range c1.Buckets() {
		if c1.Buckets()[i].Empty() != c2.Buckets()[i].Empty() {
			t.Fatalf("bucket %d emptiness differs between identical runs", i)
		}
	}
}

func TestBucketDrainEmptiesBucket(t *testing.T) {
	b := newBucket()
	b.add("k", "v")
	if b.Empty() {
		t.Fatal("expected non-empty bucket after add")
	}
	drained := b.Drain()
	if len(drained) != 1 {
		t.Fatalf("expected 1 container drained, got %d", len(drained))
	}
	if !b.Empty() {
		t.Fatal("expected bucket to be empty after drain")
	}
}
