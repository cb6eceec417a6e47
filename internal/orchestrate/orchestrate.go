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

// Package orchestrate composes region, pixel, scan, profile, correction,
// and rebin into the canonical recipe-driven reduction described by
// spec.md's orchestrator, and writes the resulting curve to a text file.
package orchestrate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/synchrotron-i07/xrrreduce/internal/correction"
	"github.com/synchrotron-i07/xrrreduce/internal/profile"
	"github.com/synchrotron-i07/xrrreduce/internal/recipe"
	"github.com/synchrotron-i07/xrrreduce/internal/region"
	"github.com/synchrotron-i07/xrrreduce/internal/scan"
	"github.com/synchrotron-i07/xrrreduce/internal/xrrerrors"
)

// Parser builds a Scan from a resolved raw data file path. Instrument
// parsers are out of scope for this module (spec.md §1); callers inject
// one (or a stub/fixture implementation in tests).
type Parser func(path string) (*scan.Scan, error)

// NormalisationParser reads a qDCD monitor-flux file and returns the
// tabulated (q, intensity) pairs used to fit the qDCD spline.
type NormalisationParser func(path string) (q, intensity []float64, err error)

// Config bundles everything Reduce needs beyond the recipe document
// itself: how to resolve run IDs into paths, and the injected parsers.
type Config struct {
	RunIDs              []string
	Recipe              *recipe.Recipe
	Directory           string
	OutputPath          string
	Parser              Parser
	NormalisationParser NormalisationParser
	Log                 io.Writer
}

// Reduce runs the canonical reduction order over the scans built from
// Config.RunIDs and writes the resulting curve to Config.OutputPath. It is
// a pure function of its Config plus whatever the injected parsers return
// for a given path: it performs no caching and holds no package-level
// state across calls.
func Reduce(cfg Config) (*profile.Profile, error) {
	if cfg.Parser == nil {
		return nil, xrrerrors.New(xrrerrors.InvariantViolation, "reduce: no parser configured")
	}
	if len(cfg.RunIDs) == 0 {
		return nil, xrrerrors.New(xrrerrors.ParseFailure, "reduce: no run IDs supplied")
	}

	scans := make([]*scan.Scan, 0, len(cfg.RunIDs))
	for _, runID := range cfg.RunIDs {
		path, err := resolveRunPath(cfg.Directory, runID, cfg.Recipe, cfg.Log)
		if err != nil {
			return nil, err
		}
		s, err := cfg.Parser(path)
		if err != nil {
			return nil, err
		}
		scans = append(scans, s)
		logf(cfg.Log, "parsed run %s -> %d images", runID, len(s.Images))
	}

	p, err := profile.New(scans)
	if err != nil {
		return nil, err
	}

	if err := applyCrop(p, cfg.Recipe); err != nil {
		return nil, err
	}
	logf(cfg.Log, "crop complete")

	if err := applyBkgSub(p, cfg.Recipe); err != nil {
		return nil, err
	}
	logf(cfg.Log, "background subtraction complete")

	if cfg.Recipe.Setup.DCDNormalisation != "" {
		if err := applyQdcd(p, cfg.Recipe, cfg.NormalisationParser); err != nil {
			return nil, err
		}
		logf(cfg.Log, "qDCD normalisation complete")
	}

	p.FootprintCorrection(func(thetaDeg float64) float64 {
		return correction.FootprintFactor(cfg.Recipe.Setup.BeamWidth, cfg.Recipe.Setup.SampleSize, thetaDeg)
	})
	logf(cfg.Log, "footprint correction complete")

	if err := applyTransmission(p, cfg.Recipe); err != nil {
		return nil, err
	}
	logf(cfg.Log, "transmission normalisation complete")

	// concatenate: every delegating operation above already re-concatenates.

	if cfg.Recipe.Rebin.NumQVectors > 0 {
		grid, err := rebinGrid(p, cfg.Recipe)
		if err != nil {
			return nil, err
		}
		if err := p.Rebin(grid); err != nil {
			return nil, err
		}
		logf(cfg.Log, "rebin complete: %d points", p.Data.Len())
	}

	if cfg.OutputPath != "" {
		if err := WriteOutput(cfg.OutputPath, cfg.Recipe, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func logf(w io.Writer, format string, args ...interface{}) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, format+"\n", args...)
}

func resolveRunPath(directory, runID string, r *recipe.Recipe, w io.Writer) (string, error) {
	candidate := filepath.Join(directory, runID)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return recipe.ResolveDataFile(candidate, candidate, w)
}

func applyCrop(p *profile.Profile, r *recipe.Recipe) error {
	if r.Crop.Method == "" {
		// No explicit crop configured: use each scan's signal regions as-is
		// (no-op crop), matching "if absent, signal region from metadata is
		// used" — the regions are already what bkg_sub/sum operate over.
		return nil
	}
	kw := r.Crop.Kwargs
	if kw == nil {
		return xrrerrors.New(xrrerrors.SchemaViolation, "crop.method set but crop.kwargs missing")
	}
	reg, err := regionFromKwargs(kw)
	if err != nil {
		return err
	}
	return p.Crop(reg)
}

func regionFromKwargs(kw *recipe.CropKwargs) (region.Region, error) {
	if kw.XStart != nil && kw.XEnd != nil && kw.YStart != nil && kw.YEnd != nil {
		return region.New(*kw.XStart, *kw.XEnd, *kw.YStart, *kw.YEnd), nil
	}
	if kw.X != nil && kw.Width != nil && kw.Y != nil && kw.Height != nil {
		return region.NewFromOrigin(*kw.X, *kw.Width, *kw.Y, *kw.Height), nil
	}
	return region.Region{}, xrrerrors.New(xrrerrors.SchemaViolation, "crop.kwargs must supply either x_start/x_end/y_start/y_end or x/width/y/height")
}

func applyBkgSub(p *profile.Profile, r *recipe.Recipe) error {
	method := r.Background.Method
	if method == "" {
		method = "roi_subtraction"
	}
	if method == "none" {
		return nil
	}
	params := scan.BackgroundParams{Strategy: scan.BackgroundROI}
	if r.Background.Kwargs != nil {
		reg, err := regionFromKwargs(r.Background.Kwargs)
		if err != nil {
			return err
		}
		params.Regions = []region.Region{reg}
	}
	_, err := p.BkgSub(params)
	return err
}

func applyQdcd(p *profile.Profile, r *recipe.Recipe, parse NormalisationParser) error {
	if parse == nil {
		return xrrerrors.New(xrrerrors.InvariantViolation, "qdcd normalisation configured but no normalisation parser supplied")
	}
	q, intensity, err := parse(r.Setup.DCDNormalisation)
	if err != nil {
		return err
	}
	spline, err := correction.NewSpline(q, intensity)
	if err != nil {
		return err
	}
	return p.QdcdNormalisation(spline)
}

// applyTransmission divides by each scan's metadata-reported transmission.
// When recipe.Transmission.Values is set to a [t_low, t_high] pair, it
// overrides the metadata-reported value instead: t_low for the first scan
// (typically acquired at higher attenuation) and t_high for every scan after
// it, the usual two-regime attenuation pattern across a stitched profile.
func applyTransmission(p *profile.Profile, r *recipe.Recipe) error {
	if r.Transmission.Values != nil {
		tLow, tHigh := r.Transmission.Values[0], r.Transmission.Values[1]
		for i, s := range p.Scans {
			if i == 0 {
				s.TransmissionOverride = &tLow
			} else {
				s.TransmissionOverride = &tHigh
			}
		}
	}
	return p.TransmissionNormalisation()
}

func rebinGrid(p *profile.Profile, r *recipe.Recipe) ([]float64, error) {
	q := p.Data.Q()
	n := r.Rebin.NumQVectors
	return newGridDefault(q, n)
}

// stampedFilename builds the default output filename per spec.md §6:
// XRR_<first_run>_<recipe_name><timestamp>.dat
func stampedFilename(firstRun, recipeName string, at time.Time) string {
	return fmt.Sprintf("XRR_%s_%s%s.dat", firstRun, recipeName, at.Format("20060102T150405"))
}
