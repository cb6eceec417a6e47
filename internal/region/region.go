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

// Package region defines Region, a rectangular sub-area of a detector image.
package region

// Region is a half-open rectangle [XStart,XEnd) x [YStart,YEnd) in pixel
// coordinates. It is a value type: construction canonicalises ordering, and
// callers pass it by copy.
type Region struct {
	XStart, XEnd int32
	YStart, YEnd int32
}

// New constructs a Region from explicit start/end coordinates, swapping them
// if given in reverse order so that XStart<=XEnd and YStart<=YEnd always hold.
func New(xStart, xEnd, yStart, yEnd int32) Region {
	if xStart > xEnd {
		xStart, xEnd = xEnd, xStart
	}
	if yStart > yEnd {
		yStart, yEnd = yEnd, yStart
	}
	return Region{XStart: xStart, XEnd: xEnd, YStart: yStart, YEnd: yEnd}
}

// NewFromOrigin constructs a Region from an origin plus width/height.
func NewFromOrigin(x, width, y, height int32) Region {
	return New(x, x+width, y, y+height)
}

// XLength returns the region's extent along x.
func (r Region) XLength() int32 { return r.XEnd - r.XStart }

// YLength returns the region's extent along y.
func (r Region) YLength() int32 { return r.YEnd - r.YStart }

// NumPixels returns the number of pixels contained in the region.
func (r Region) NumPixels() int32 { return r.XLength() * r.YLength() }
