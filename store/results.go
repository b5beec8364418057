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

package store

import "path/filepath"

// ResultTable is the persistent ordered key -> reduced-value store
// rooted at {root}/results.
type ResultTable struct {
	db *DB
}

// OpenResultTable opens (creating if absent) the result table under
// root.
func OpenResultTable(root string) (*ResultTable, error) {
	db, err := Open(filepath.Join(root, "results"))
	if err != nil {
		return nil, err
	}
	return &ResultTable{db: db}, nil
}

// Close releases the result table's underlying store.
func (rt *ResultTable) Close() error {
	return rt.db.Close()
}

// Add stores result against key, overwriting any existing entry.
func (rt *ResultTable) Add(key []byte, result string) error {
	return rt.db.set(key, []byte(result))
}

// Iter walks every (key, result) pair in the requested order.
func (rt *ResultTable) Iter(order Order, fn func(key []byte, value string) error) error {
	return rt.db.iterate(order, func(key, value []byte) error {
		return fn(key, string(value))
	})
}
