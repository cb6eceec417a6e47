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

// Package profile implements Profile, the ordered collection of Scans
// concatenated into a single (q, I, sigma_I) curve, and the profile-level
// corrections that delegate to every scan before re-concatenating.
package profile

import (
	"strings"

	"github.com/synchrotron-i07/xrrreduce/internal/rebin"
	"github.com/synchrotron-i07/xrrreduce/internal/region"
	"github.com/synchrotron-i07/xrrreduce/internal/scan"
	"github.com/synchrotron-i07/xrrreduce/internal/xrrdata"
	"github.com/synchrotron-i07/xrrreduce/internal/xrrerrors"
)

// Profile owns an ordered list of Scans plus the concatenated Data view
// produced by Concatenate.
type Profile struct {
	Data  *xrrdata.Data
	Scans []*scan.Scan
}

// New builds a Profile from an ordered scan list, verifying every scan
// shares a single energy (invariant P2) and concatenating their data.
func New(scans []*scan.Scan) (*Profile, error) {
	if len(scans) == 0 {
		return nil, xrrerrors.New(xrrerrors.ParseFailure, "profile: no scans supplied")
	}
	energy := scans[0].Metadata.ProbeEnergy()
	for i, s := range scans {
		if s.Metadata.ProbeEnergy() != energy {
			return nil, xrrerrors.New(xrrerrors.InconsistentProfile, "profile: scan %d energy %v differs from scan 0 energy %v", i, s.Metadata.ProbeEnergy(), energy)
		}
	}
	p := &Profile{Scans: scans}
	p.Concatenate()
	return p, nil
}

// Concatenate rebuilds Data as the in-order concatenation of every scan's
// (q, intensity, intensity_e) (invariant P1).
func (p *Profile) Concatenate() {
	qs := make([][]float64, len(p.Scans))
	intensities := make([][]float64, len(p.Scans))
	intensityEs := make([][]float64, len(p.Scans))
	for i, s := range p.Scans {
		qs[i] = s.Data.Q()
		intensities[i] = s.Data.Intensity
		intensityEs[i] = s.Data.IntensityE
	}
	q, intensity, intensityE := rebin.Concatenate(qs, intensities, intensityEs)
	p.Data = xrrdata.NewFromQ(intensity, intensityE, p.Scans[0].Metadata.ProbeEnergy(), q)
}

// Crop applies r to every scan's image stack, then re-concatenates.
func (p *Profile) Crop(r region.Region) error {
	for _, s := range p.Scans {
		if err := s.Crop(r); err != nil {
			return err
		}
	}
	p.Concatenate()
	return nil
}

// BkgSub applies the given background strategy to every scan's image
// stack, then re-concatenates. It returns each scan's per-image BkgInfo
// list, in scan order.
func (p *Profile) BkgSub(params scan.BackgroundParams) ([]interface{}, error) {
	infos := make([]interface{}, len(p.Scans))
	for i, s := range p.Scans {
		info, err := s.BkgSub(params)
		if err != nil {
			return nil, err
		}
		infos[i] = info
	}
	p.Concatenate()
	return infos, nil
}

// SubsampleQ subsamples every scan whose metadata.SrcPath() contains
// identifier as a substring, then re-concatenates.
func (p *Profile) SubsampleQ(identifier string, qMin, qMax float64) error {
	for _, s := range p.Scans {
		if !strings.Contains(s.Metadata.SrcPath(), identifier) {
			continue
		}
		if err := s.SubsampleQ(qMin, qMax); err != nil {
			return err
		}
	}
	p.Concatenate()
	return nil
}

// FootprintCorrection delegates to every scan, then re-concatenates.
func (p *Profile) FootprintCorrection(factor func(thetaDeg float64) float64) {
	for _, s := range p.Scans {
		s.FootprintCorrection(factor)
	}
	p.Concatenate()
}

// TransmissionNormalisation delegates to every scan, then re-concatenates.
func (p *Profile) TransmissionNormalisation() error {
	for _, s := range p.Scans {
		if err := s.TransmissionNormalisation(); err != nil {
			return err
		}
	}
	p.Concatenate()
	return nil
}

// QdcdNormalisation delegates to every scan, then re-concatenates.
func (p *Profile) QdcdNormalisation(spline scan.Spline) error {
	for _, s := range p.Scans {
		if err := s.QdcdNormalisation(spline); err != nil {
			return err
		}
	}
	p.Concatenate()
	return nil
}

// Rebin bins the current concatenated Data onto newQ with inverse-variance
// weighting, replacing Data's storage form with the binned q/intensity/
// intensity_e vectors.
func (p *Profile) Rebin(newQ []float64) error {
	q := p.Data.Q()
	bq, br, be, err := rebin.Rebin(q, p.Data.Intensity, p.Data.IntensityE, newQ)
	if err != nil {
		return err
	}
	p.Data = xrrdata.NewFromQ(br, be, p.Data.Energy, bq)
	return nil
}
