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

// Package kverrors defines the sentinel error families shared by every
// pipeline stage, so that the first fatal error from any stage can be
// told apart from the others without string matching.
package kverrors

import "errors"

// Sentinel errors identifying the kind of failure, per the error
// taxonomy: input-validation, user-code, I/O, and serialization.
var (
	ErrValidation    = errors.New("validation error")
	ErrUserCode      = errors.New("user code error")
	ErrIO            = errors.New("I/O error")
	ErrSerialization = errors.New("serialization error")
)

// Stage wraps err with the name of the pipeline stage that produced it,
// so the CLI can report "the first failing stage" as required.
func Stage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &stageError{stage: stage, err: err}
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string {
	return e.stage + ": " + e.err.Error()
}

func (e *stageError) Unwrap() error {
	return e.err
}
