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

// Package metadata defines the capability interface instrument parsers must
// satisfy to feed the reduction core, plus an in-memory reference
// implementation used by tests and the job-submission service.
package metadata

import "github.com/synchrotron-i07/xrrreduce/internal/region"

// AxisKind enumerates the default axis's physical meaning.
type AxisKind string

const (
	AxisQ   AxisKind = "q"
	AxisTh  AxisKind = "th"
	AxisTth AxisKind = "tth"
)

// Metadata is the read-only, opaque view of scan-level values the core
// requires. Instrument-specific parsers (out of scope for this module)
// construct implementations of it; the core never constructs one itself,
// except for the reference implementation below.
type Metadata interface {
	// ProbeEnergy returns the incident beam energy in keV.
	ProbeEnergy() float64
	// Transmission returns the attenuator transmission fraction.
	Transmission() float64
	// DetectorDistance returns the sample-to-detector distance in metres.
	DetectorDistance() float64
	// DefaultAxis returns the scan's recorded independent-variable values.
	DefaultAxis() []float64
	// DefaultAxisName returns the name the axis was recorded under in the
	// source data file.
	DefaultAxisName() string
	// DefaultAxisKind reports whether DefaultAxis holds q, th, or tth values.
	DefaultAxisKind() AxisKind
	// SignalRegions returns the ordered list of regions summed for signal.
	SignalRegions() []region.Region
	// BackgroundRegions returns the ordered list of regions used for ROI
	// background estimation; may be empty when the Gaussian-fit strategy is
	// used instead.
	BackgroundRegions() []region.Region
	// SrcPath returns an identifier (typically a file path) used for
	// targeted subsampling by Profile.SubsampleQ.
	SrcPath() string
}

// Reference is an in-memory Metadata implementation, used by tests and by
// internal/service where no file-backed instrument parser is in play.
type Reference struct {
	Energy            float64
	TransmissionValue float64
	DistanceM         float64
	Axis              []float64
	AxisName          string
	AxisKind          AxisKind
	Signal            []region.Region
	Background        []region.Region
	Path              string
}

func (r *Reference) ProbeEnergy() float64 { return r.Energy }
func (r *Reference) Transmission() float64 { return r.TransmissionValue }
func (r *Reference) DetectorDistance() float64 { return r.DistanceM }
func (r *Reference) DefaultAxis() []float64 { return r.Axis }
func (r *Reference) DefaultAxisName() string { return r.AxisName }
func (r *Reference) DefaultAxisKind() AxisKind { return r.AxisKind }
func (r *Reference) SignalRegions() []region.Region { return r.Signal }
func (r *Reference) BackgroundRegions() []region.Region { return r.Background }
func (r *Reference) SrcPath() string { return r.Path }
