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

// Package pixel implements Image, the per-exposure pixel array with its
// propagated uncertainty, hot-pixel repair, cropping, and background
// subtraction.
package pixel

import (
	"math"

	"github.com/synchrotron-i07/xrrreduce/internal/region"
	"github.com/synchrotron-i07/xrrreduce/internal/xrrerrors"
)

// DefaultHotPixelThreshold is the raw count value H at or above which a
// pixel is a hot-pixel repair candidate.
const DefaultHotPixelThreshold = 2e5

// DefaultPixelMin is the floor every repaired pixel is clipped to.
const DefaultPixelMin = 0.0

// Image holds one exposure's pixel array in row-major [y][x] order, its
// propagated uncertainty, the post-repair snapshot used by ROI background
// subtraction, and the currently recorded background level.
type Image struct {
	Array         [][]float64
	ArrayE        [][]float64
	ArrayOriginal [][]float64
	Bkg           float64
	BkgE          float64
}

// NewImage builds an Image from a 2-D array of raw integer counts, applying
// hot-pixel repair and pixel_min clipping before snapshotting
// ArrayOriginal and deriving ArrayE.
//
// raw is addressed raw[y][x]; transpose swaps axes before any other
// processing, matching the flag accepted by file parsers upstream.
func NewImage(raw [][]float64, transpose bool, hotPixelThreshold, pixelMin float64) *Image {
	if transpose {
		raw = transposeArray(raw)
	}
	arr := cloneArray(raw)
	repairHotPixels(arr, hotPixelThreshold)
	clipBelow(arr, pixelMin)

	img := &Image{
		Array:         arr,
		ArrayOriginal: cloneArray(arr),
	}
	img.ArrayE = initialStdDevs(img.ArrayOriginal)
	return img
}

// NewImageDefault builds an Image using DefaultHotPixelThreshold and
// DefaultPixelMin.
func NewImageDefault(raw [][]float64, transpose bool) *Image {
	return NewImage(raw, transpose, DefaultHotPixelThreshold, DefaultPixelMin)
}

func transposeArray(a [][]float64) [][]float64 {
	if len(a) == 0 {
		return a
	}
	rows, cols := len(a), len(a[0])
	out := make([][]float64, cols)
	for x := 0; x < cols; x++ {
		out[x] = make([]float64, rows)
		for y := 0; y < rows; y++ {
			out[x][y] = a[y][x]
		}
	}
	return out
}

func cloneArray(a [][]float64) [][]float64 {
	out := make([][]float64, len(a))
	for i, row := range a {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// repairHotPixels replaces every pixel at or above threshold with its
// 3x3 excluding-self neighbourhood mean (edge-clamped) when that mean is
// less than 1/100th of the pixel's own value; it mutates arr in place.
func repairHotPixels(arr [][]float64, threshold float64) {
	rows := len(arr)
	if rows == 0 {
		return
	}
	cols := len(arr[0])

	// Operate on a read snapshot so repairs don't feed into neighbouring
	// pixels' neighbourhood means within the same pass.
	snapshot := cloneArray(arr)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := snapshot[y][x]
			if v < threshold {
				continue
			}
			sum, n := 0.0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dy == 0 && dx == 0 {
						continue
					}
					ny := clampIndex(y+dy, rows)
					nx := clampIndex(x+dx, cols)
					sum += snapshot[ny][nx]
					n++
				}
			}
			mean := sum / float64(n)
			if mean < v/100 {
				arr[y][x] = math.Floor(mean)
			}
		}
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func clipBelow(arr [][]float64, floor float64) {
	for _, row := range arr {
		for x, v := range row {
			if v < floor {
				row[x] = floor
			}
		}
	}
}

func initialStdDevs(arr [][]float64) [][]float64 {
	out := make([][]float64, len(arr))
	for y, row := range arr {
		out[y] = make([]float64, len(row))
		for x, v := range row {
			if v == 0 {
				out[y][x] = 1
			} else {
				out[y][x] = math.Sqrt(v)
			}
		}
	}
	return out
}

// Crop restricts Array, ArrayE, and ArrayOriginal to the sub-rectangle
// described by r, preserving the shape invariant across all three arrays.
func (img *Image) Crop(r region.Region) {
	img.Array = cropArray(img.Array, r)
	img.ArrayE = cropArray(img.ArrayE, r)
	img.ArrayOriginal = cropArray(img.ArrayOriginal, r)
}

func cropArray(a [][]float64, r region.Region) [][]float64 {
	out := make([][]float64, 0, r.YLength())
	for y := r.YStart; y < r.YEnd; y++ {
		row := a[y][r.XStart:r.XEnd]
		out = append(out, append([]float64(nil), row...))
	}
	return out
}

// Sum returns the summed intensity and its propagated Poisson uncertainty
// across the current Array and ArrayE.
func (img *Image) Sum() (intensity, intensityE float64) {
	sumSqE := 0.0
	for y, row := range img.Array {
		for x, v := range row {
			intensity += v
			sumSqE += img.ArrayE[y][x] * img.ArrayE[y][x]
		}
	}
	return intensity, math.Sqrt(sumSqE)
}

// BkgInfo records the outcome of a single background_subtraction call, kept
// for diagnostics by the orchestrator.
type BkgInfo struct {
	Bkg  float64
	BkgE float64
}

// BackgroundSubtractionROI performs ROI background subtraction: it sums
// ArrayOriginal over every region in rois, divides by the total pixel
// count, and subtracts the resulting per-pixel background from Array,
// propagating its Poisson uncertainty into ArrayE. It must be called at
// most once per Image.
func (img *Image) BackgroundSubtractionROI(rois []region.Region) (BkgInfo, error) {
	if len(rois) == 0 {
		return BkgInfo{}, xrrerrors.New(xrrerrors.InvariantViolation, "background_subtraction: no ROIs supplied")
	}
	var sum float64
	var n int64
	for _, r := range rois {
		for y := r.YStart; y < r.YEnd; y++ {
			for x := r.XStart; x < r.XEnd; x++ {
				sum += img.ArrayOriginal[y][x]
			}
		}
		n += int64(r.NumPixels())
	}
	if n == 0 {
		return BkgInfo{}, xrrerrors.New(xrrerrors.InvariantViolation, "background_subtraction: ROIs contain no pixels")
	}

	bkg := sum / float64(n)
	var bkgE float64
	if sum == 0 {
		bkgE = 1 / float64(n)
	} else {
		bkgE = math.Sqrt(sum) / float64(n)
	}

	img.subtract(bkg, bkgE)
	return BkgInfo{Bkg: bkg, BkgE: bkgE}, nil
}

// BackgroundSubtractionGaussian fits a 1-D Gaussian-plus-offset to the
// current Array averaged along axis (0 = average over rows producing a
// column profile, 1 = average over columns producing a row profile), then
// treats the fitted offset as the background level. See fitGaussian1D for
// the fitting procedure.
func (img *Image) BackgroundSubtractionGaussian(axis int) (BkgInfo, error) {
	profile, profileE := averageAlong(img.Array, img.ArrayE, axis)
	params, paramsE, err := fitGaussian1D(profile, profileE)
	if err != nil {
		return BkgInfo{}, err
	}

	bkg := params.Offset
	bkgE := paramsE.Offset
	img.subtract(bkg, bkgE)
	return BkgInfo{Bkg: bkg, BkgE: bkgE}, nil
}

func (img *Image) subtract(bkg, bkgE float64) {
	img.Bkg, img.BkgE = bkg, bkgE
	for y, row := range img.Array {
		for x, v := range row {
			img.Array[y][x] = v - bkg
			e := img.ArrayE[y][x]
			img.ArrayE[y][x] = math.Sqrt(e*e + bkgE*bkgE)
		}
	}
}

func averageAlong(arr, arrE [][]float64, axis int) (profile, profileE []float64) {
	rows := len(arr)
	if rows == 0 {
		return nil, nil
	}
	cols := len(arr[0])

	if axis == 0 {
		// Average over rows: one value per column.
		profile = make([]float64, cols)
		profileE = make([]float64, cols)
		for x := 0; x < cols; x++ {
			var sum, sumSqE float64
			for y := 0; y < rows; y++ {
				sum += arr[y][x]
				sumSqE += arrE[y][x] * arrE[y][x]
			}
			profile[x] = sum / float64(rows)
			profileE[x] = math.Sqrt(sumSqE / float64(rows))
		}
		return profile, profileE
	}

	// Average over columns: one value per row.
	profile = make([]float64, rows)
	profileE = make([]float64, rows)
	for y := 0; y < rows; y++ {
		var sum, sumSqE float64
		for x := 0; x < cols; x++ {
			sum += arr[y][x]
			sumSqE += arrE[y][x] * arrE[y][x]
		}
		profile[y] = sum / float64(cols)
		profileE[y] = math.Sqrt(sumSqE / float64(cols))
	}
	return profile, profileE
}
