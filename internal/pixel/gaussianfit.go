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

package pixel

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"

	"github.com/synchrotron-i07/xrrreduce/internal/xrrerrors"
)

// gaussianParams are the four parameters of offset + A*N(x; mu, sigma).
type gaussianParams struct {
	Mu, Sigma, Offset, Scale float64
}

func (p gaussianParams) vec() []float64 { return []float64{p.Mu, p.Sigma, p.Offset, p.Scale} }

func gaussianParamsFromVec(x []float64) gaussianParams {
	return gaussianParams{Mu: x[0], Sigma: x[1], Offset: x[2], Scale: x[3]}
}

func univariateNormal(x float64, p gaussianParams) float64 {
	z := (x - p.Mu) / p.Sigma
	return p.Offset + p.Scale*math.Exp(-0.5*z*z)/(p.Sigma*math.Sqrt(2*math.Pi))
}

// fitGaussian1D fits offset + A*N(x; mu, sigma) to profile, weighted by
// profileE, via Nelder-Mead minimisation of the weighted chi-square. The
// initial guess and bounds follow: mu <- argmax(profile), sigma <- 1,
// offset <- median(profile), scale <- max(profile); mu in [0,L], sigma in
// [0,L], offset in [0,scale0], scale in [0,10*scale0].
func fitGaussian1D(profile, profileE []float64) (params, paramsE gaussianParams, err error) {
	n := len(profile)
	if n == 0 {
		return gaussianParams{}, gaussianParams{}, xrrerrors.New(xrrerrors.FitFailure, "gaussian fit: empty profile")
	}

	mu0 := float64(argmax(profile))
	sigma0 := 1.0
	offset0 := median(profile)
	scale0 := maxOf(profile)

	lower := gaussianParams{Mu: 0, Sigma: 0, Offset: 0, Scale: 0}
	upper := gaussianParams{Mu: float64(n), Sigma: float64(n), Offset: scale0, Scale: scale0 * 10}

	clampToBounds := func(x []float64) []float64 {
		lv, uv := lower.vec(), upper.vec()
		out := make([]float64, len(x))
		for i, v := range x {
			if v < lv[i] {
				v = lv[i]
			}
			if v > uv[i] {
				v = uv[i]
			}
			out[i] = v
		}
		return out
	}

	chiSquare := func(x []float64) float64 {
		x = clampToBounds(x)
		p := gaussianParamsFromVec(x)
		if p.Sigma <= 0 {
			return math.Inf(1)
		}
		sum := 0.0
		for i, y := range profile {
			model := univariateNormal(float64(i), p)
			sigma := profileE[i]
			if sigma == 0 {
				sigma = 1
			}
			d := (y - model) / sigma
			sum += d * d
		}
		return sum
	}

	x0 := []float64{mu0, sigma0, offset0, scale0}
	problem := optimize.Problem{Func: chiSquare}
	result, optErr := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if optErr != nil {
		return gaussianParams{}, gaussianParams{}, xrrerrors.Wrap(xrrerrors.FitFailure, optErr, "gaussian background fit did not converge")
	}

	best := clampToBounds(result.X)
	params = gaussianParamsFromVec(best)

	sigmas := paramUncertainties(chiSquare, best)
	paramsE = gaussianParamsFromVec(sigmas)
	return params, paramsE, nil
}

// paramUncertainties estimates the 1-sigma uncertainty of each parameter at
// a chi-square minimum via a central-difference second derivative: for a
// well-behaved minimum, chi2(x+-d) ~ chi2_min + 0.5 * d2chi2/dx2 * d^2, and
// the parameter variance (where chi2 rises by 1) is 2 / (d2chi2/dx2).
func paramUncertainties(chiSquare func([]float64) float64, x []float64) []float64 {
	out := make([]float64, len(x))
	f0 := chiSquare(x)
	for i := range x {
		h := stepSize(x[i])
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[i] += h
		xm[i] -= h
		d2 := (chiSquare(xp) - 2*f0 + chiSquare(xm)) / (h * h)
		if d2 <= 0 {
			out[i] = 0
			continue
		}
		out[i] = math.Sqrt(2 / d2)
	}
	return out
}

func stepSize(x float64) float64 {
	h := 1e-4 * math.Max(math.Abs(x), 1)
	return h
}

func argmax(xs []float64) int {
	best, bestV := 0, math.Inf(-1)
	for i, v := range xs {
		if v > bestV {
			best, bestV = i, v
		}
	}
	return best
}

func maxOf(xs []float64) float64 {
	m := math.Inf(-1)
	for _, v := range xs {
		if v > m {
			m = v
		}
	}
	return m
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
