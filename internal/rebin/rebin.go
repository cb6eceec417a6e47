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

// Package rebin implements cross-scan concatenation and inverse-variance
// weighted rebinning onto a linear or logarithmic q-grid.
package rebin

import (
	"math"

	"github.com/synchrotron-i07/xrrreduce/internal/xrrerrors"
)

// gridEpsilon nudges the upper bound of a generated grid so it encloses the
// last data point, matching the original's np.linspace/np.logspace padding.
const gridEpsilon = 0.001

// DefaultNumQVectors is the default grid resolution used when the caller
// does not supply an explicit new-q grid.
const DefaultNumQVectors = 5000

// GridKind selects how a new q-grid is generated when one isn't supplied
// explicitly.
type GridKind int

const (
	GridLinear GridKind = iota
	GridLog
)

// Concatenate appends q, intensity, and intensity_e in order across scans,
// each given as a (q, intensity, intensityE) triple.
func Concatenate(qs, intensities, intensityEs [][]float64) (q, intensity, intensityE []float64) {
	n := 0
	for _, qi := range qs {
		n += len(qi)
	}
	q = make([]float64, 0, n)
	intensity = make([]float64, 0, n)
	intensityE = make([]float64, 0, n)
	for i := range qs {
		q = append(q, qs[i]...)
		intensity = append(intensity, intensities[i]...)
		intensityE = append(intensityE, intensityEs[i]...)
	}
	return q, intensity, intensityE
}

// NewGrid builds a new-q grid of n points spanning [min(q), max(q)+epsilon]
// either linearly or logarithmically.
func NewGrid(q []float64, kind GridKind, n int) ([]float64, error) {
	if len(q) == 0 {
		return nil, xrrerrors.New(xrrerrors.InvariantViolation, "rebin: cannot build a grid from an empty q vector")
	}
	qMin, qMax := minMax(q)

	switch kind {
	case GridLinear:
		return linspace(qMin, qMax+gridEpsilon, n), nil
	case GridLog:
		if qMin <= 0 {
			return nil, xrrerrors.New(xrrerrors.InvariantViolation, "rebin: log grid requires strictly positive q, got min=%v", qMin)
		}
		return logspace(math.Log10(qMin), math.Log10(qMax+gridEpsilon), n), nil
	default:
		return nil, xrrerrors.New(xrrerrors.InvariantViolation, "rebin: unknown grid kind %d", kind)
	}
}

func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func logspace(startExp, stopExp float64, n int) []float64 {
	lin := linspace(startExp, stopExp, n)
	out := make([]float64, n)
	for i, v := range lin {
		out[i] = math.Pow(10, v)
	}
	return out
}

func minMax(xs []float64) (min, max float64) {
	min, max = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max
}

// Rebin bins (q, R, R_e) onto newQ using inverse-variance weighting within
// each [newQ[i], newQ[i+1]) interval, then drops every output bin that
// received no input points (R==0 after binning is used as the drop
// sentinel, matching the original implementation).
func Rebin(q, r, rE []float64, newQ []float64) (binnedQ, binnedR, binnedRE []float64, err error) {
	if len(q) != len(r) || len(q) != len(rE) {
		return nil, nil, nil, xrrerrors.New(xrrerrors.InvariantViolation, "rebin: q/R/R_e length mismatch (%d/%d/%d)", len(q), len(r), len(rE))
	}
	if len(newQ) < 2 {
		return nil, nil, nil, xrrerrors.New(xrrerrors.InvariantViolation, "rebin: new_q grid needs at least 2 points")
	}

	n := len(newQ) - 1
	rawQ := make([]float64, n)
	rawR := make([]float64, n)
	rawRE := make([]float64, n)

	for i := 0; i < n; i++ {
		var sumInvVar, sumRWeighted, sumQWeighted float64
		count := 0
		for j := range q {
			if newQ[i] <= q[j] && q[j] < newQ[i+1] {
				w := 1.0 / (rE[j] * rE[j])
				sumInvVar += w
				sumRWeighted += r[j] * w
				sumQWeighted += q[j] * w
				count++
			}
		}
		if count == 0 {
			continue
		}
		rawR[i] = sumRWeighted / sumInvVar
		rawQ[i] = sumQWeighted / sumInvVar
		rawRE[i] = math.Sqrt(1 / sumInvVar)
	}

	for i := 0; i < n; i++ {
		if rawR[i] == 0 {
			continue
		}
		binnedQ = append(binnedQ, rawQ[i])
		binnedR = append(binnedR, rawR[i])
		binnedRE = append(binnedRE, rawRE[i])
	}
	return binnedQ, binnedR, binnedRE, nil
}
