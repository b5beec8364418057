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

package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/kvreduce/kvreduce/kverrors"
	"github.com/kvreduce/kvreduce/store"
)

// writeResults walks rt in order and writes "key\tvalue\n" records to
// w. Deliberately trivial, as specified: no framing beyond tabs and
// newlines.
func writeResults(w io.Writer, rt *store.ResultTable, order store.Order) error {
	bw := bufio.NewWriter(w)
	err := rt.Iter(order, func(key []byte, value string) error {
		if _, err := bw.Write(key); err != nil {
			return err
		}
		if err := bw.WriteByte('\t'); err != nil {
			return err
		}
		if _, err := bw.WriteString(value); err != nil {
			return err
		}
		return bw.WriteByte('\n')
	})
	if err != nil {
		return fmt.Errorf("%w: writing output: %s", kverrors.ErrIO, err)
	}
	return bw.Flush()
}
