// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/synchrotron-i07/xrrreduce/internal/orchestrate"
	"github.com/synchrotron-i07/xrrreduce/internal/recipe"
	"github.com/synchrotron-i07/xrrreduce/internal/service"
	"github.com/synchrotron-i07/xrrreduce/internal/xrrerrors"
)

var (
	recipePath = flag.String("recipe", "", "path to the recipe YAML file")
	runIDs     = flag.String("runs", "", "comma-separated run IDs to reduce")
	directory  = flag.String("dir", ".", "experiment directory to search for raw data files")
	out        = flag.String("out", "", "output `file`; when blank, derives XRR_<run>_<recipe><timestamp>.dat under <dir>/processing")
	logPath    = flag.String("log", "", "save log output to `file` in addition to stdout")
	serve      = flag.Bool("serve", false, "run the HTTP job-submission service instead of a one-shot reduction")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `xrrreduce - X-ray reflectivity reduction

Usage: %s -recipe recipe.yaml -runs run1,run2 -dir /path/to/experiment [-out file.dat]
       %s -serve

Flags:
`, os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	os.Exit(run(os.Stdout, os.Stderr))
}

func run(stdout, stderr io.Writer) int {
	if *serve {
		s := &service.Server{}
		if err := s.Serve(); err != nil {
			fmt.Fprintf(stderr, "serve: %s\n", err)
			return 1
		}
		return 0
	}

	var logWriter io.Writer = stdout
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			fmt.Fprintf(stderr, "cannot open log file %s: %s\n", *logPath, err)
			return 1
		}
		defer f.Close()
		logWriter = io.MultiWriter(stdout, f)
	}

	if *recipePath == "" || *runIDs == "" {
		flag.Usage()
		return 1
	}

	r, err := recipe.ParseFile(*recipePath)
	if err != nil {
		return fail(stderr, err)
	}

	parser, ok := orchestrate.LookupParser(r.Instrument)
	if !ok {
		return fail(stderr, xrrerrors.New(xrrerrors.ParseFailure, "no instrument parser registered for %q", r.Instrument))
	}

	ids := strings.Split(*runIDs, ",")
	for i := range ids {
		ids[i] = strings.TrimSpace(ids[i])
	}

	outputPath := *out
	if outputPath == "" {
		recipeName := strings.TrimSuffix(filepath.Base(*recipePath), filepath.Ext(*recipePath))
		outputPath = orchestrate.DefaultOutputPath(*directory, ids[0], recipeName, time.Now())
	}

	_, err = orchestrate.Reduce(orchestrate.Config{
		RunIDs:     ids,
		Recipe:     r,
		Directory:  *directory,
		OutputPath: outputPath,
		Parser:     parser,
		Log:        logWriter,
	})
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(logWriter, "wrote %s\n", outputPath)
	return 0
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "error: %s\n", err)
	return xrrerrors.ExitCode(err)
}
