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

// Package container implements the per-key accumulator (MapContainer in
// the design) and its on-disk part files: the values emitted for one key
// during mapping, held in memory until a flush spills them to an
// append-only part file on disk.
package container

import (
	"encoding/base64"
	"fmt"

	"github.com/kvreduce/kvreduce/kverrors"
)

// State is the derived lifecycle state of a Container.
type State int

const (
	NoData State = iota
	IndexOnly
	FileOnly
	IndexAndFile
)

func (s State) String() string {
	switch s {
	case NoData:
		return "NoData"
	case IndexOnly:
		return "IndexOnly"
	case FileOnly:
		return "FileOnly"
	case IndexAndFile:
		return "IndexAndFile"
	default:
		return "Unknown"
	}
}

// Container is the per-key accumulator described by the design: values
// currently buffered in memory, plus the bookkeeping needed to find and
// read back whatever has already been spilled to part files.
type Container struct {
	EncodedKey string

	Values       []string
	BufferedSize int

	LastPartSequence int
	LastPartSize     int
	LinesPerPart     []int
	TotalParts       int
}

// New returns an empty container for key, with EncodedKey set to the
// filename-safe base64 form of key's raw bytes.
func New(key []byte) *Container {
	return &Container{EncodedKey: EncodeKey(key)}
}

// EncodeKey returns the filename-safe base64 encoding of a raw key.
func EncodeKey(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
}

// AddValue appends v to the in-memory values and grows BufferedSize.
func (c *Container) AddValue(v string) {
	c.Values = append(c.Values, v)
	c.BufferedSize += len(v)
}

// State reports the container's derived lifecycle state.
func (c *Container) State() State {
	hasMem := len(c.Values) > 0
	hasFile := c.TotalParts > 0
	switch {
	case hasMem && hasFile:
		return IndexAndFile
	case hasMem:
		return IndexOnly
	case hasFile:
		return FileOnly
	default:
		return NoData
	}
}

// TransferData adopts other's part-file bookkeeping (the persisted
// metadata wins) and then appends other's in-memory values after the
// receiver's own. This is used when merging a freshly-combined
// in-memory container (the receiver, seeded with new values) with the
// previously-persisted one (other): the file metadata on disk is
// authoritative, but the new values still need to be retained.
func (c *Container) TransferData(other *Container) {
	c.LastPartSequence = other.LastPartSequence
	c.LastPartSize = other.LastPartSize
	c.LinesPerPart = append([]int(nil), other.LinesPerPart...)
	c.TotalParts = other.TotalParts
	c.Values = append(c.Values, other.Values...)
	c.BufferedSize += other.BufferedSize
}

// Parts returns the ascending sequence of existing part indices.
func (c *Container) Parts() []int {
	out := make([]int, c.TotalParts)
	for i := range out {
		out[i] = i
	}
	return out
}

// PartLineCount returns the number of serialized lines in part p.
func (c *Container) PartLineCount(p int) (int, error) {
	if p >= c.TotalParts {
		return 0, fmt.Errorf("%w: part %d >= total parts %d", kverrors.ErrIO, p, c.TotalParts)
	}
	return c.LinesPerPart[p], nil
}

// PartFilePath returns the path of part p under root.
func (c *Container) PartFilePath(root string, p int) (string, error) {
	if p > c.LastPartSequence {
		return "", fmt.Errorf("%w: part %d > last part sequence %d", kverrors.ErrIO, p, c.LastPartSequence)
	}
	return partFilePath(root, c.EncodedKey, p), nil
}

func partFilePath(root, encodedKey string, part int) string {
	return fmt.Sprintf("%s/%s.map.%d.jsonl", root, encodedKey, part)
}
