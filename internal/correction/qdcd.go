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

package correction

import (
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/synchrotron-i07/xrrreduce/internal/xrrerrors"
)

// Spline wraps a fitted cubic not-a-knot spline of a DCD monitor-flux
// reference curve, evaluated at arbitrary q to normalise scan intensity.
type Spline struct {
	fit interp.NotAKnot
}

// NewSpline fits a cubic spline through (q, intensity) knots taken from a
// normalisation file. q must be strictly increasing; NewSpline sorts the
// input pairs by q first so callers need not pre-sort.
func NewSpline(q, intensity []float64) (*Spline, error) {
	if len(q) != len(intensity) {
		return nil, xrrerrors.New(xrrerrors.InvariantViolation, "qdcd spline: q and intensity length mismatch (%d vs %d)", len(q), len(intensity))
	}
	if len(q) < 4 {
		return nil, xrrerrors.New(xrrerrors.FitFailure, "qdcd spline: need at least 4 knots, got %d", len(q))
	}

	qs, is := sortedCopy(q, intensity)

	s := &Spline{}
	if err := s.fit.Fit(qs, is); err != nil {
		return nil, xrrerrors.Wrap(xrrerrors.FitFailure, err, "qdcd spline fit failed")
	}
	return s, nil
}

// Eval evaluates the fitted spline at q, satisfying scan.Spline.
func (s *Spline) Eval(q float64) float64 {
	return s.fit.Predict(q)
}

func sortedCopy(x, y []float64) ([]float64, []float64) {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	xs := make([]float64, len(x))
	ys := make([]float64, len(y))
	for i, j := range idx {
		xs[i] = x[j]
		ys[i] = y[j]
	}
	return xs, ys
}
