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

// Package scan implements Scan, the per-angle/q image stack aligned with a
// 1-D independent variable, and lifts Image-level operations to the whole
// stack.
package scan

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/pbnjay/memory"

	"github.com/synchrotron-i07/xrrreduce/internal/metadata"
	"github.com/synchrotron-i07/xrrreduce/internal/pixel"
	"github.com/synchrotron-i07/xrrreduce/internal/region"
	"github.com/synchrotron-i07/xrrreduce/internal/xrrdata"
	"github.com/synchrotron-i07/xrrreduce/internal/xrrerrors"
)

// estimatedImageBytes approximates the resident memory of one in-flight
// Image (Array + ArrayE + ArrayOriginal, float64) for a typical detector
// frame.
const estimatedImageBytes = 3 * 4 * 1024 * 1024

// memoryBoundedConcurrency derives a default fan-out bound from system
// memory when a Scan doesn't set MaxConcurrency explicitly, bounding how
// many images may be in flight at once the way a stacking memory budget
// does: reserve a quarter of total memory and divide by the per-image
// footprint.
func memoryBoundedConcurrency(n int) int {
	total := memory.TotalMemory()
	if total == 0 {
		return n
	}
	bound := int(total / 4 / estimatedImageBytes)
	if bound < 1 {
		bound = 1
	}
	if bound > n {
		bound = n
	}
	return bound
}

// BackgroundStrategy selects which of Image's two background subtraction
// strategies a Scan applies across its stack.
type BackgroundStrategy int

const (
	BackgroundROI BackgroundStrategy = iota
	BackgroundGaussian
)

// BackgroundParams carries the strategy-specific inputs to BkgSub.
type BackgroundParams struct {
	Strategy BackgroundStrategy
	// GaussianAxis selects the averaging axis for BackgroundGaussian; unused
	// for BackgroundROI.
	GaussianAxis int
	// Regions overrides Metadata.BackgroundRegions() for BackgroundROI when
	// non-nil (recipe key background.kwargs).
	Regions []region.Region
}

// Scan owns a Data view and a stack of Images of matching length, plus the
// Metadata describing the instrument state during acquisition.
type Scan struct {
	Data     *xrrdata.Data
	Metadata metadata.Metadata
	Images   []*pixel.Image

	// MaxConcurrency bounds how many images are processed in flight by
	// per-image operators. Zero derives a bound from system memory via
	// memoryBoundedConcurrency instead of leaving the stack unbounded.
	MaxConcurrency int

	// TransmissionOverride, when non-nil, replaces Metadata.Transmission()
	// for TransmissionNormalisation (recipe key transmission.values).
	TransmissionOverride *float64
}

// New builds a Scan from a Data, Metadata, and image stack, validating
// invariant S1 and that the metadata carries the fields the core needs.
func New(data *xrrdata.Data, md metadata.Metadata, images []*pixel.Image) (*Scan, error) {
	if md.ProbeEnergy() <= 0 {
		return nil, xrrerrors.New(xrrerrors.ParseFailure, "scan: metadata missing probe energy")
	}
	if len(md.SignalRegions()) == 0 {
		return nil, xrrerrors.New(xrrerrors.ParseFailure, "scan: metadata has no signal regions")
	}
	if len(images) != data.Len() {
		return nil, xrrerrors.New(xrrerrors.ParseFailure, "scan: image stack length %d disagrees with data length %d", len(images), data.Len())
	}
	s := &Scan{Data: data, Metadata: md, Images: images}
	if err := s.checkInvariant(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scan) checkInvariant() error {
	n := s.Data.Len()
	if len(s.Images) != n {
		return xrrerrors.New(xrrerrors.InvariantViolation, "scan: images=%d data=%d", len(s.Images), n)
	}
	return nil
}

// forEachImage applies fn to every image, bounded by MaxConcurrency. fn
// receives each image's index so callers can record per-image results
// without needing identity lookups.
func (s *Scan) forEachImage(fn func(i int, img *pixel.Image) error) error {
	n := len(s.Images)
	limit := s.MaxConcurrency
	if limit <= 0 {
		limit = memoryBoundedConcurrency(n)
	}
	if limit > n {
		limit = n
	}
	if limit == 0 {
		return nil
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, img := range s.Images {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, img *pixel.Image) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = fn(i, img)
		}(i, img)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Scan) refreshSums() {
	for i, img := range s.Images {
		v, e := img.Sum()
		s.Data.Intensity[i] = v
		s.Data.IntensityE[i] = e
	}
}

// Crop applies Image.Crop(r) to every image, then recomputes intensity from
// the cropped sums.
func (s *Scan) Crop(r region.Region) error {
	if err := s.forEachImage(func(_ int, img *pixel.Image) error {
		img.Crop(r)
		return nil
	}); err != nil {
		return err
	}
	s.refreshSums()
	return s.checkInvariant()
}

// BkgSub applies Image.background_subtraction to every image per params,
// then recomputes intensity from the new sums. It returns the per-image
// BkgInfo for diagnostics.
func (s *Scan) BkgSub(params BackgroundParams) ([]pixel.BkgInfo, error) {
	infos := make([]pixel.BkgInfo, len(s.Images))
	err := s.forEachImage(func(i int, img *pixel.Image) error {
		var info pixel.BkgInfo
		var err error
		switch params.Strategy {
		case BackgroundROI:
			rois := params.Regions
			if rois == nil {
				rois = s.Metadata.BackgroundRegions()
			}
			info, err = img.BackgroundSubtractionROI(rois)
		case BackgroundGaussian:
			info, err = img.BackgroundSubtractionGaussian(params.GaussianAxis)
		default:
			err = xrrerrors.New(xrrerrors.InvariantViolation, "bkg_sub: unknown strategy %d", params.Strategy)
		}
		if err != nil {
			return err
		}
		infos[i] = info
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.refreshSums()
	if err := s.checkInvariant(); err != nil {
		return nil, err
	}
	return infos, nil
}

// TransmissionNormalisation divides intensity and intensity_e by
// metadata.transmission, or by TransmissionOverride when set.
func (s *Scan) TransmissionNormalisation() error {
	t := s.Metadata.Transmission()
	if s.TransmissionOverride != nil {
		t = *s.TransmissionOverride
	}
	if t == 0 {
		return xrrerrors.New(xrrerrors.InvariantViolation, "transmission_normalisation: transmission is zero")
	}
	for i := range s.Data.Intensity {
		s.Data.Intensity[i] /= t
		s.Data.IntensityE[i] /= t
	}
	return nil
}

// Spline is the minimal interface qdcd_normalisation needs from a fitted
// monitor-flux curve (see internal/correction.Spline).
type Spline interface {
	Eval(q float64) float64
}

// QdcdNormalisation divides intensity[i] and intensity_e[i] by
// spline.Eval(q[i]) for every point.
func (s *Scan) QdcdNormalisation(spline Spline) error {
	q := s.Data.Q()
	for i := range s.Data.Intensity {
		v := spline.Eval(q[i])
		if v == 0 {
			return xrrerrors.New(xrrerrors.InvariantViolation, "qdcd_normalisation: spline evaluates to zero at q=%v", q[i])
		}
		s.Data.Intensity[i] /= v
		s.Data.IntensityE[i] /= v
	}
	return nil
}

// FootprintCorrection evaluates factor at each point's theta (in degrees;
// see internal/correction.FootprintFactor) and divides
// intensity/intensity_e by it elementwise.
func (s *Scan) FootprintCorrection(factor func(thetaDeg float64) float64) {
	theta := s.Data.Theta()
	for i := range s.Data.Intensity {
		f := factor(theta[i])
		s.Data.Intensity[i] /= f
		s.Data.IntensityE[i] /= f
	}
}

// SubsampleQ deletes every data point with q<=qMin or q>=qMax, removing the
// corresponding Image in lock-step (invariant S2).
func (s *Scan) SubsampleQ(qMin, qMax float64) error {
	q := s.Data.Q()
	var toRemove []int
	for i, qv := range q {
		if qv <= qMin || qv >= qMax {
			toRemove = append(toRemove, i)
		}
	}
	if len(toRemove) == 0 {
		return nil
	}
	s.Data.RemoveIndices(toRemove)
	skip := make(map[int]bool, len(toRemove))
	for _, i := range toRemove {
		skip[i] = true
	}
	remaining := make([]*pixel.Image, 0, len(s.Images)-len(toRemove))
	for i, img := range s.Images {
		if !skip[i] {
			remaining = append(remaining, img)
		}
	}
	s.Images = remaining
	return s.checkInvariant()
}

// ResolutionQ estimates the q-resolution implied by the detector's angular
// subtense, given the pixel size in metres. It is a supplemented,
// read-only diagnostic: it does not mutate the scan.
//
// The half-subtense is taken as 1.96 standard deviations (95% coverage)
// across half the detector width in the qz dimension.
func (s *Scan) ResolutionQ(pixelSizeM float64) float64 {
	if len(s.Images) == 0 {
		return 0
	}
	nPixels := len(s.Images[0].Array)
	distance := s.Metadata.DetectorDistance()
	energy := s.Metadata.ProbeEnergy()

	offset := math.Atan(pixelSizeM * 1.96 * float64(nPixels) * 0.5 / distance)
	return xrrdata.ThetaToQ(offset*180/math.Pi, energy)
}

// LogProgress writes a one-line progress message to w; it never influences
// numerics and is a no-op when w is nil.
func LogProgress(w io.Writer, format string, args ...interface{}) {
	if w == nil {
		return
	}
	_, _ = io.WriteString(w, fmt.Sprintf(format, args...)+"\n")
}
