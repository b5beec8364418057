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

package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kvreduce/kvreduce/kverrors"
)

// Encode produces the self-describing binary form of c that Index
// stores against the key. The format is a flat sequence of
// length-prefixed fields in declaration order; it carries no external
// schema, so Decode can reconstruct a Container from the bytes alone.
func (c *Container) Encode() []byte {
	var buf bytes.Buffer
	putString(&buf, c.EncodedKey)
	putUvarint(&buf, uint64(len(c.Values)))
	for _, v := range c.Values {
		putString(&buf, v)
	}
	putUvarint(&buf, uint64(c.BufferedSize))
	putUvarint(&buf, uint64(c.LastPartSequence))
	putUvarint(&buf, uint64(c.LastPartSize))
	putUvarint(&buf, uint64(len(c.LinesPerPart)))
	for _, n := range c.LinesPerPart {
		putUvarint(&buf, uint64(n))
	}
	putUvarint(&buf, uint64(c.TotalParts))
	return buf.Bytes()
}

// Decode reconstructs a Container from bytes produced by Encode. It is
// the round-trip inverse of Encode: Decode(c.Encode()) yields a
// Container equal to c in every field.
func Decode(data []byte) (*Container, error) {
	r := bytes.NewReader(data)
	c := &Container{}

	key, err := getString(r)
	if err != nil {
		return nil, wrapDecode("encoded key", err)
	}
	c.EncodedKey = key

	nvalues, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, wrapDecode("value count", err)
	}
	c.Values = make([]string, nvalues)
	for i := range c.Values {
		v, err := getString(r)
		if err != nil {
			return nil, wrapDecode("value", err)
		}
		c.Values[i] = v
	}

	bufSize, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, wrapDecode("buffered size", err)
	}
	c.BufferedSize = int(bufSize)

	lastSeq, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, wrapDecode("last part sequence", err)
	}
	c.LastPartSequence = int(lastSeq)

	lastSize, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, wrapDecode("last part size", err)
	}
	c.LastPartSize = int(lastSize)

	nLines, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, wrapDecode("lines-per-part count", err)
	}
	c.LinesPerPart = make([]int, nLines)
	for i := range c.LinesPerPart {
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, wrapDecode("lines-per-part entry", err)
		}
		c.LinesPerPart[i] = int(n)
	}

	totalParts, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, wrapDecode("total parts", err)
	}
	c.TotalParts = int(totalParts)

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after container", kverrors.ErrSerialization, r.Len())
	}
	return c, nil
}

func wrapDecode(field string, err error) error {
	return fmt.Errorf("%w: decoding %s: %s", kverrors.ErrSerialization, field, err)
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func putString(buf *bytes.Buffer, s string) {
	putUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func getString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", err
	}
	return string(out), nil
}
