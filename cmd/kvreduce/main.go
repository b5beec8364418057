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

// Command kvreduce runs the out-of-core map/reduce engine against
// standard input, writing the sorted key/value result table to
// standard output.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kvreduce/kvreduce/engine"
	"github.com/kvreduce/kvreduce/kverrors"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "kvreduce: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.Code == "" {
		return fmt.Errorf("%w: -code is required", kverrors.ErrValidation)
	}
	order, err := opts.order()
	if err != nil {
		return err
	}

	workDir := workDirPath(opts.TempDir)
	logf := func(format string, a ...interface{}) { fmt.Fprintf(stderr, format+"\n", a...) }

	cfg := engine.Config{
		Code:            opts.Code,
		Root:            workDir,
		ReadBufferSize:  opts.ReadBufferSize * 1024,
		KeyFlushSize:    opts.KeyFlushSize * 1024,
		MaxFilePartSize: opts.MaxFilePartSize * 1024,
		IndexEvery:      opts.IndexEvery,
		Workers:         opts.Workers,
		Order:           order,
		Logf:            logf,
	}

	rt, runErr := engine.Run(stdin, cfg)
	if runErr != nil {
		if _, statErr := os.Stat(workDir); statErr == nil {
			fmt.Fprintf(stderr, "kvreduce: working directory retained at %s\n", workDir)
		}
		return runErr
	}
	writeErr := writeResults(stdout, rt, order)
	rt.Close()
	if writeErr != nil {
		return writeErr
	}
	return removeWorkDir(workDir)
}
