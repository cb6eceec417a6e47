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

// Package recipe parses and validates the YAML recipe document that drives
// internal/orchestrate, and resolves raw data file paths via the
// search-path fallback described alongside it.
package recipe

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/synchrotron-i07/xrrreduce/internal/xrrerrors"
)

// Visit carries metadata for the output header; only ID is mandatory.
type Visit struct {
	ID              string `yaml:"visit id" validate:"required"`
	Date            string `yaml:"date"`
	User            string `yaml:"user"`
	UserAffiliation string `yaml:"user affiliation"`
	LocalContact    string `yaml:"local contact"`
}

// CropKwargs describes a crop region either by explicit bounds or by
// origin+extent. Parse does not check that one complete shape is present;
// internal/orchestrate checks it when it builds the region, and uses the
// explicit bounds when both shapes are complete.
type CropKwargs struct {
	XStart *int32 `yaml:"x_start"`
	XEnd   *int32 `yaml:"x_end"`
	YStart *int32 `yaml:"y_start"`
	YEnd   *int32 `yaml:"y_end"`
	X      *int32 `yaml:"x"`
	Width  *int32 `yaml:"width"`
	Y      *int32 `yaml:"y"`
	Height *int32 `yaml:"height"`
}

// Crop selects the crop method and its region.
type Crop struct {
	Method string      `yaml:"method" validate:"omitempty,oneof=crop"`
	Kwargs *CropKwargs `yaml:"kwargs"`
}

// Background selects the background subtraction method and its region.
type Background struct {
	Method string      `yaml:"method" validate:"omitempty,oneof=roi_subtraction none"`
	Kwargs *CropKwargs `yaml:"kwargs"`
}

// Setup carries the physical parameters footprint correction needs.
type Setup struct {
	SampleSize       float64 `yaml:"sample size" validate:"required,gt=0"`
	BeamWidth        float64 `yaml:"beam width" validate:"required,gt=0"`
	DCDNormalisation string  `yaml:"dcd normalisation"`
}

// Normalisation selects whether the final curve is divided by its max.
type Normalisation struct {
	MaxNorm *bool `yaml:"maxnorm"`
}

// Transmission allows overriding the per-scan transmission metadata.
type Transmission struct {
	Values *[2]float64 `yaml:"values"`
}

// Rebin configures the final-curve rebinning stage.
type Rebin struct {
	NumQVectors int `yaml:"n qvectors" validate:"omitempty,gt=0"`
}

// Recipe is the top-level recipe document.
type Recipe struct {
	Instrument    string        `yaml:"instrument" validate:"required,oneof=i07"`
	Visit         Visit         `yaml:"visit" validate:"required"`
	Setup         Setup         `yaml:"setup" validate:"required"`
	Crop          Crop          `yaml:"crop"`
	Background    Background    `yaml:"background"`
	Normalisation Normalisation `yaml:"normalisation"`
	Transmission  Transmission  `yaml:"transmission"`
	Rebin         Rebin         `yaml:"rebin"`
	OutputColumns int           `yaml:"output_columns" validate:"omitempty,oneof=3 4"`
}

// MaxNormOrDefault reports whether the final curve should be divided by its
// max, defaulting to true when unset (spec default).
func (r *Recipe) MaxNormOrDefault() bool {
	if r.Normalisation.MaxNorm == nil {
		return true
	}
	return *r.Normalisation.MaxNorm
}

// OutputColumnsOrDefault returns the configured column count, defaulting to
// 3 (q, R, R_error) when unset.
func (r *Recipe) OutputColumnsOrDefault() int {
	if r.OutputColumns == 0 {
		return 3
	}
	return r.OutputColumns
}

var validate = validator.New()

// Parse unmarshals and validates a recipe document, returning
// xrrerrors.SchemaViolation on any validation failure.
func Parse(raw []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, xrrerrors.Wrap(xrrerrors.SchemaViolation, err, "recipe: invalid YAML")
	}
	if err := validate.Struct(&r); err != nil {
		return nil, xrrerrors.Wrap(xrrerrors.SchemaViolation, err, "recipe: schema validation failed")
	}
	return &r, nil
}

// ParseFile reads and parses a recipe file from path.
func ParseFile(path string) (*Recipe, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, xrrerrors.Wrap(xrrerrors.FileNotFound, err, "recipe: cannot read %s", path)
	}
	return Parse(raw)
}
