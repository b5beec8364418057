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
	"encoding/json"
	"fmt"
	"os"

	"github.com/kvreduce/kvreduce/kverrors"
)

// FlushToFilePart serializes the current in-memory Values as exactly one
// textual line (a JSON array of strings) and appends it to the key's
// part file under root, rolling over to a new part whenever appending
// the line would bring the current part to maxPartSize or beyond. The
// first part is always created, whatever the line's size. The write is
// fsync'd before this returns. After a successful flush, Values and
// BufferedSize are reset to empty.
func (c *Container) FlushToFilePart(root string, maxPartSize int) error {
	if len(c.Values) == 0 {
		return nil
	}
	line, err := json.Marshal(c.Values)
	if err != nil {
		return fmt.Errorf("%w: encoding batch for key %q: %s", kverrors.ErrSerialization, c.EncodedKey, err)
	}
	line = append(line, '\n')

	path := partFilePath(root, c.EncodedKey, c.LastPartSequence)
	_, statErr := os.Stat(path)
	noPartYet := c.TotalParts == 0 && os.IsNotExist(statErr)

	switch {
	case noPartYet:
		if err := appendLine(path, line, os.O_CREATE|os.O_WRONLY|os.O_TRUNC); err != nil {
			return err
		}
		c.LinesPerPart = []int{1}
		c.TotalParts = 1
	case len(line)+c.LastPartSize >= maxPartSize:
		c.LastPartSequence++
		c.LastPartSize = 0
		path = partFilePath(root, c.EncodedKey, c.LastPartSequence)
		if err := appendLine(path, line, os.O_CREATE|os.O_WRONLY|os.O_TRUNC); err != nil {
			return err
		}
		c.LinesPerPart = append(c.LinesPerPart, 1)
		c.TotalParts++
	default:
		if err := appendLine(path, line, os.O_CREATE|os.O_WRONLY|os.O_APPEND); err != nil {
			return err
		}
		c.LinesPerPart[c.LastPartSequence]++
	}

	c.LastPartSize += len(line)
	c.Values = nil
	c.BufferedSize = 0
	return nil
}

func appendLine(path string, line []byte, flag int) error {
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return fmt.Errorf("%w: opening part file %s: %s", kverrors.ErrIO, path, err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("%w: writing part file %s: %s", kverrors.ErrIO, path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: fsyncing part file %s: %s", kverrors.ErrIO, path, err)
	}
	return nil
}

// ReadPartLines reads part file `part` of the key encoded as encodedKey
// under root and decodes every line of it, returning one batch per
// line in file order.
func ReadPartLines(root, encodedKey string, part int) ([][]string, error) {
	path := partFilePath(root, encodedKey, part)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading part file %s: %s", kverrors.ErrIO, path, err)
	}
	return decodeLines(data)
}

func decodeLines(data []byte) ([][]string, error) {
	var out [][]string
	start := 0
	for i, b := range data {
		if b != '\n' {
			continue
		}
		if i > start {
			var batch []string
			if err := json.Unmarshal(data[start:i], &batch); err != nil {
				return nil, fmt.Errorf("%w: decoding part line: %s", kverrors.ErrSerialization, err)
			}
			out = append(out, batch)
		}
		start = i + 1
	}
	return out, nil
}
