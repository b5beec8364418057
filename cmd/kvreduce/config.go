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
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/kvreduce/kvreduce/kverrors"
	"github.com/kvreduce/kvreduce/store"
)

// fileDefaults is the shape of an optional -defaults YAML document:
// any option it sets is used as that flag's default, still overridden
// by an explicit command-line flag.
type fileDefaults struct {
	ReadBufferSize  *int    `json:"read-buffer-size,omitempty"`
	KeyFlushSize    *int    `json:"key-flush-size,omitempty"`
	MaxFilePartSize *int    `json:"max-file-part-size,omitempty"`
	IndexEvery      *int    `json:"index-every,omitempty"`
	Workers         *int    `json:"workers,omitempty"`
	Order           *string `json:"order,omitempty"`
	TempDir         *string `json:"temp-dir,omitempty"`
}

func loadDefaults(path string) (fileDefaults, error) {
	var d fileDefaults
	if path == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("%w: reading -defaults file %s: %s", kverrors.ErrValidation, path, err)
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("%w: parsing -defaults file %s: %s", kverrors.ErrValidation, path, err)
	}
	return d, nil
}

// scanDefaultsFlag looks for -defaults/--defaults ahead of the main
// flag.Parse pass, since the defaults file itself supplies the
// defaults that pass needs before it can run.
func scanDefaultsFlag(args []string) string {
	for i, a := range args {
		switch {
		case a == "-defaults" || a == "--defaults":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "-defaults="):
			return strings.TrimPrefix(a, "-defaults=")
		case strings.HasPrefix(a, "--defaults="):
			return strings.TrimPrefix(a, "--defaults=")
		}
	}
	return ""
}

// cliOptions is the raw, unscaled form of every CLI option in §6.
type cliOptions struct {
	Code            string
	ReadBufferSize  int
	KeyFlushSize    int
	MaxFilePartSize int
	IndexEvery      int
	Workers         int
	Order           string
	TempDir         string
}

func parseArgs(args []string) (cliOptions, error) {
	fd, err := loadDefaults(scanDefaultsFlag(args))
	if err != nil {
		return cliOptions{}, err
	}

	def := cliOptions{
		ReadBufferSize:  512,
		KeyFlushSize:    64,
		MaxFilePartSize: 2048,
		IndexEvery:      100,
		Workers:         runtime.NumCPU(),
		Order:           "asc",
		TempDir:         os.TempDir(),
	}
	if fd.ReadBufferSize != nil {
		def.ReadBufferSize = *fd.ReadBufferSize
	}
	if fd.KeyFlushSize != nil {
		def.KeyFlushSize = *fd.KeyFlushSize
	}
	if fd.MaxFilePartSize != nil {
		def.MaxFilePartSize = *fd.MaxFilePartSize
	}
	if fd.IndexEvery != nil {
		def.IndexEvery = *fd.IndexEvery
	}
	if fd.Workers != nil {
		def.Workers = *fd.Workers
	}
	if fd.Order != nil {
		def.Order = *fd.Order
	}
	if fd.TempDir != nil {
		def.TempDir = *fd.TempDir
	}

	fs := flag.NewFlagSet("kvreduce", flag.ContinueOnError)
	opts := cliOptions{}
	fs.StringVar(&opts.Code, "code", "", "path to the user map/reduce code file (required)")
	fs.IntVar(&opts.ReadBufferSize, "read-buffer-size", def.ReadBufferSize, "mapper chunk size in KiB")
	fs.IntVar(&opts.KeyFlushSize, "key-flush-size", def.KeyFlushSize, "per-key flush threshold in KiB")
	fs.IntVar(&opts.MaxFilePartSize, "max-file-part-size", def.MaxFilePartSize, "part-file rollover threshold in KiB")
	fs.IntVar(&opts.IndexEvery, "index-every", def.IndexEvery, "map batches per indexing cycle")
	fs.IntVar(&opts.Workers, "workers", def.Workers, "worker pool size")
	fs.StringVar(&opts.Order, "order", def.Order, "output order: asc or desc")
	fs.StringVar(&opts.TempDir, "temp-dir", def.TempDir, "parent directory for the working directory")
	fs.String("defaults", "", "path to a YAML file of option defaults")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("%w: %s", kverrors.ErrValidation, err)
	}
	return opts, nil
}

func (o cliOptions) order() (store.Order, error) {
	switch o.Order {
	case "asc":
		return store.Asc, nil
	case "desc":
		return store.Desc, nil
	default:
		return 0, fmt.Errorf("%w: order must be asc or desc, got %q", kverrors.ErrValidation, o.Order)
	}
}
