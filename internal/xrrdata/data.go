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

// Package xrrdata holds the Data mixin shared by Scan and Profile: the
// intensity/sigma vectors, the stored independent variable (theta or q),
// and the energy-dependent conversion between them.
package xrrdata

import "math"

// hcKeVAng is Planck's constant times the speed of light, expressed in
// keV*Angstrom, matching Data.Energy's keV unit (CODATA h=4.135667696e-15
// eV*s, c=2.99792458e18 Angstrom/s).
const hcKeVAng = 12.398419843320025

// Data carries intensity, its uncertainty, energy, and exactly one of
// Theta/Q as the storage form; the other is derived on demand. Scan and
// Profile each embed a Data by composition (never by inheritance, per the
// capability-interface design favoured over the original's ABC hierarchy).
type Data struct {
	Intensity  []float64
	IntensityE []float64
	Energy     float64 // keV

	theta []float64 // storage form when non-nil
	q     []float64 // storage form when non-nil
}

// New constructs a Data from an independent-variable vector expressed either
// as Theta (degrees) or Q (inverse Angstrom); exactly one must be supplied.
func New(intensity, intensityE []float64, energy float64, theta, q []float64) *Data {
	return &Data{
		Intensity:  intensity,
		IntensityE: intensityE,
		Energy:     energy,
		theta:      theta,
		q:          q,
	}
}

// NewFromTheta constructs a Data whose storage form is theta (degrees).
func NewFromTheta(intensity, intensityE []float64, energy float64, theta []float64) *Data {
	return New(intensity, intensityE, energy, theta, nil)
}

// NewFromQ constructs a Data whose storage form is q (inverse Angstrom).
func NewFromQ(intensity, intensityE []float64, energy float64, q []float64) *Data {
	return New(intensity, intensityE, energy, nil, q)
}

// Len returns the number of data points, the shared length of every vector
// (invariant D1).
func (d *Data) Len() int { return len(d.Intensity) }

// Theta returns the angle of incidence in degrees at each point, converting
// from Q if Q is the storage form.
func (d *Data) Theta() []float64 {
	if d.theta != nil {
		return d.theta
	}
	out := make([]float64, len(d.q))
	for i, qv := range d.q {
		out[i] = QToTheta(qv, d.Energy)
	}
	return out
}

// Q returns the scattering vector magnitude in inverse Angstrom at each
// point, converting from Theta if Theta is the storage form.
func (d *Data) Q() []float64 {
	if d.q != nil {
		return d.q
	}
	out := make([]float64, len(d.theta))
	for i, th := range d.theta {
		out[i] = ThetaToQ(th, d.Energy)
	}
	return out
}

// SetQ overwrites the storage form with q, discarding any stored theta.
func (d *Data) SetQ(q []float64) {
	d.q = q
	d.theta = nil
}

// SetTheta overwrites the storage form with theta, discarding any stored q.
func (d *Data) SetTheta(theta []float64) {
	d.theta = theta
	d.q = nil
}

// IsThetaStorage reports whether theta (rather than q) is the storage form.
func (d *Data) IsThetaStorage() bool { return d.theta != nil }

// Reflectivity returns intensity normalised so its maximum value is 1
// (invariant D3).
func (d *Data) Reflectivity() []float64 {
	m := maxOf(d.Intensity)
	out := make([]float64, len(d.Intensity))
	for i, v := range d.Intensity {
		out[i] = v / m
	}
	return out
}

// ReflectivityE returns intensity_e scaled by the same maximum used by
// Reflectivity (invariant D3).
func (d *Data) ReflectivityE() []float64 {
	m := maxOf(d.Intensity)
	out := make([]float64, len(d.IntensityE))
	for i, v := range d.IntensityE {
		out[i] = v / m
	}
	return out
}

func maxOf(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

// RemoveIndices deletes data points at the given indices (assumed sorted
// ascending) from every aligned vector, preserving invariant D1. It mutates
// d in place.
func (d *Data) RemoveIndices(indices []int) {
	d.Intensity = deleteAt(d.Intensity, indices)
	d.IntensityE = deleteAt(d.IntensityE, indices)
	if d.theta != nil {
		d.theta = deleteAt(d.theta, indices)
	}
	if d.q != nil {
		d.q = deleteAt(d.q, indices)
	}
}

func deleteAt(xs []float64, indices []int) []float64 {
	if len(indices) == 0 {
		return xs
	}
	skip := make(map[int]bool, len(indices))
	for _, i := range indices {
		skip[i] = true
	}
	out := make([]float64, 0, len(xs)-len(indices))
	for i, x := range xs {
		if !skip[i] {
			out = append(out, x)
		}
	}
	return out
}

// ThetaToQ converts an incidence angle in degrees to a scattering vector
// magnitude in inverse Angstrom at the given energy in keV.
func ThetaToQ(thetaDeg, energyKeV float64) float64 {
	thetaRad := thetaDeg * math.Pi / 180
	return 4 * math.Pi * energyKeV * math.Sin(thetaRad) / hcKeVAng
}

// QToTheta converts a scattering vector magnitude in inverse Angstrom to an
// incidence angle in degrees at the given energy in keV.
func QToTheta(q, energyKeV float64) float64 {
	arg := q * hcKeVAng / (4 * math.Pi * energyKeV)
	return math.Asin(arg) * 180 / math.Pi
}
