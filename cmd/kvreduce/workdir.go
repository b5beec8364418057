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
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kvreduce/kvreduce/kverrors"
)

// workDirPath computes a fresh, uniquely named subdirectory path under
// parent; it does not touch the filesystem. The directory itself comes
// into existence only once engine.Run reaches store.OpenIndex, so a
// validation failure before that point leaves nothing behind.
func workDirPath(parent string) string {
	return filepath.Join(parent, "kvreduce-"+uuid.New().String())
}

// removeWorkDir deletes dir and everything under it, on successful
// completion only; callers leave a failed run's directory in place
// for debugging.
func removeWorkDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: removing working directory %s: %s", kverrors.ErrIO, dir, err)
	}
	return nil
}
