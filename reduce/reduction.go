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

// Package reduce implements the consumer that turns a finalized Index
// into a structured reduction stream, and the reducer that drives that
// stream through the three-level hierarchical reduce (line -> part ->
// key) described by the design, writing final results into the
// ResultTable.
package reduce

// Kind discriminates the four message shapes the consumer emits.
type Kind int

const (
	KindKeyInit Kind = iota
	KindFilePartInit
	KindFileLineInit
	KindFileLine
)

// Source tells the reducer whether a FileLine's Values came from a
// part file line (already-decoded JSON array) or from a container's
// still-in-memory values.
type Source int

const (
	FromFile Source = iota
	FromIndex
)

// Reduction is one message in the consumer -> reducer stream. Not
// every field is meaningful for every Kind:
//
//	KindKeyInit      Key, TotalParts
//	KindFilePartInit Key
//	KindFileLineInit Key, Part, Lines
//	KindFileLine     Key, Part, Source, Values
type Reduction struct {
	Kind       Kind
	Key        string
	TotalParts int
	Part       int
	Lines      int
	Source     Source
	Values     []string
}
