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

package orchestrate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/synchrotron-i07/xrrreduce/internal/profile"
	"github.com/synchrotron-i07/xrrreduce/internal/rebin"
	"github.com/synchrotron-i07/xrrreduce/internal/recipe"
	"github.com/synchrotron-i07/xrrreduce/internal/xrrerrors"
)

// newGridDefault builds the rebin target grid: the recipe's requested point
// count over the full observed q range, linearly spaced (the original
// defaults to a linear grid unless a log axis was explicitly requested, and
// spec.md's recipe table has no key for grid kind).
func newGridDefault(q []float64, n int) ([]float64, error) {
	if n <= 0 {
		n = rebin.DefaultNumQVectors
	}
	return rebin.NewGrid(q, rebin.GridLinear, n)
}

// DefaultOutputPath builds the spec.md §6 default output filename
// (XRR_<first_run>_<recipe_name><timestamp>.dat) under
// <experimentDir>/processing/.
func DefaultOutputPath(experimentDir, firstRun, recipeName string, at time.Time) string {
	return filepath.Join(experimentDir, "processing", stampedFilename(firstRun, recipeName, at))
}

// WriteOutput writes p's concatenated curve to path as a text data file: a
// block of '#'-prefixed header lines describing the recipe and resolved
// metadata, a column-name header line, then one data row per point.
func WriteOutput(path string, r *recipe.Recipe, p *profile.Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return xrrerrors.Wrap(xrrerrors.FileNotFound, err, "output: cannot create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return xrrerrors.Wrap(xrrerrors.FileNotFound, err, "output: cannot create %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	writeHeader(w, r, p)

	cols := r.OutputColumnsOrDefault()
	if cols == 4 {
		fmt.Fprintln(w, "# Q(1/A) R R_error dq")
	} else {
		fmt.Fprintln(w, "# Q(1/A) R R_error")
	}

	q := p.Data.Q()
	var refl, reflE []float64
	if r.MaxNormOrDefault() {
		refl = p.Data.Reflectivity()
		reflE = p.Data.ReflectivityE()
	} else {
		refl = p.Data.Intensity
		reflE = p.Data.IntensityE
	}
	dq := resolutionColumn(p, cols == 4)

	for i := range q {
		if cols == 4 {
			fmt.Fprintf(w, "%.10g %.10g %.10g %.10g\n", q[i], refl[i], reflE[i], dq[i])
		} else {
			fmt.Fprintf(w, "%.10g %.10g %.10g\n", q[i], refl[i], reflE[i])
		}
	}
	return w.Flush()
}

func writeHeader(w *bufio.Writer, r *recipe.Recipe, p *profile.Profile) {
	fmt.Fprintf(w, "# instrument: %s\n", r.Instrument)
	fmt.Fprintf(w, "# visit id: %s\n", r.Visit.ID)
	if r.Visit.Date != "" {
		fmt.Fprintf(w, "# date: %s\n", r.Visit.Date)
	}
	if r.Visit.User != "" {
		fmt.Fprintf(w, "# user: %s\n", r.Visit.User)
	}
	if r.Visit.LocalContact != "" {
		fmt.Fprintf(w, "# local contact: %s\n", r.Visit.LocalContact)
	}
	fmt.Fprintf(w, "# sample size: %g\n", r.Setup.SampleSize)
	fmt.Fprintf(w, "# beam width: %g\n", r.Setup.BeamWidth)
	if r.Setup.DCDNormalisation != "" {
		fmt.Fprintf(w, "# dcd normalisation: %s\n", r.Setup.DCDNormalisation)
	}
	fmt.Fprintf(w, "# energy(keV): %g\n", p.Data.Energy)
	fmt.Fprintf(w, "# num scans: %d\n", len(p.Scans))
	for i, s := range p.Scans {
		fmt.Fprintf(w, "# scan %d: %s\n", i, s.Metadata.SrcPath())
	}
}

// resolutionColumn returns the per-point dq estimate used by the optional
// fourth output column, replicated per scan in concatenation order; it
// returns a zero-filled slice (never read) when the caller doesn't need it.
func resolutionColumn(p *profile.Profile, needed bool) []float64 {
	if !needed {
		return make([]float64, p.Data.Len())
	}
	out := make([]float64, 0, p.Data.Len())
	for _, s := range p.Scans {
		dq := s.ResolutionQ(defaultPixelSizeM)
		for range s.Data.Intensity {
			out = append(out, dq)
		}
	}
	if len(out) != p.Data.Len() {
		// Rebinning collapses points across scans, so per-scan replication no
		// longer lines up one-to-one; fall back to a single shared estimate.
		shared := 0.0
		if len(p.Scans) > 0 {
			shared = p.Scans[0].ResolutionQ(defaultPixelSizeM)
		}
		out = make([]float64, p.Data.Len())
		for i := range out {
			out[i] = shared
		}
	}
	return out
}

// defaultPixelSizeM is the detector pixel pitch used by ResolutionQ when the
// recipe does not carry one (spec.md's recipe key table has no pixel-size
// key; this matches the Pilatus-class detectors islatu targets).
const defaultPixelSizeM = 172e-6
