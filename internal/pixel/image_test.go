package pixel

import (
	"math"
	"testing"

	"github.com/valyala/fastrand"

	"github.com/synchrotron-i07/xrrreduce/internal/region"
)

// randomCounts fabricates a synthetic Poisson-ish pixel stack, spreading
// counts around mean using a zero-value fastrand.RNG.
func randomCounts(rows, cols int, mean float64) [][]float64 {
	rng := fastrand.RNG{}
	spread := uint32(mean*2 + 1)
	out := make([][]float64, rows)
	for y := range out {
		out[y] = make([]float64, cols)
		for x := range out[y] {
			out[y][x] = mean + float64(rng.Uint32n(spread)) - mean
		}
	}
	return out
}

func makeFlat(rows, cols int, v float64) [][]float64 {
	out := make([][]float64, rows)
	for y := range out {
		out[y] = make([]float64, cols)
		for x := range out[y] {
			out[y][x] = v
		}
	}
	return out
}

func TestHotPixelRepair(t *testing.T) {
	raw := makeFlat(5, 5, 10)
	raw[2][2] = 3e5 // hot: neighbourhood mean (10) << 3e5/100 (3000)
	img := NewImageDefault(raw, false)
	if img.Array[2][2] != 10 {
		t.Fatalf("hot pixel not repaired: got %v", img.Array[2][2])
	}
}

func TestHotPixelNotRepairedWhenNeighboursAlsoHigh(t *testing.T) {
	raw := makeFlat(5, 5, 3e5)
	img := NewImageDefault(raw, false)
	if img.Array[2][2] != 3e5 {
		t.Fatalf("pixel should not be repaired when neighbourhood is comparably hot: got %v", img.Array[2][2])
	}
}

func TestPixelMinClip(t *testing.T) {
	raw := [][]float64{{-5, 2}, {3, -1}}
	img := NewImage(raw, false, DefaultHotPixelThreshold, 0)
	want := [][]float64{{0, 2}, {3, 0}}
	for y := range want {
		for x := range want[y] {
			if img.Array[y][x] != want[y][x] {
				t.Fatalf("clip mismatch at %d,%d: got %v want %v", y, x, img.Array[y][x], want[y][x])
			}
		}
	}
}

func TestInitialStdDevsZeroPixelHasSigmaOne(t *testing.T) {
	raw := [][]float64{{0, 4}}
	img := NewImage(raw, false, DefaultHotPixelThreshold, -1) // pixelMin<0 so the 0 stays 0
	if img.ArrayE[0][0] != 1 {
		t.Fatalf("sigma at 0 count = %v, want 1", img.ArrayE[0][0])
	}
	if img.ArrayE[0][1] != 2 {
		t.Fatalf("sigma at 4 counts = %v, want 2", img.ArrayE[0][1])
	}
}

func TestCropPreservesShape(t *testing.T) {
	raw := makeFlat(10, 10, 5)
	img := NewImageDefault(raw, false)
	img.Crop(region.NewFromOrigin(2, 3, 1, 4))
	if len(img.Array) != 4 || len(img.Array[0]) != 3 {
		t.Fatalf("unexpected crop shape: %dx%d", len(img.Array), len(img.Array[0]))
	}
	if len(img.ArrayE) != 4 || len(img.ArrayOriginal) != 4 {
		t.Fatalf("array_e/array_original shape mismatch after crop")
	}
}

func TestSum(t *testing.T) {
	raw := makeFlat(2, 2, 4)
	img := NewImageDefault(raw, false)
	s, sE := img.Sum()
	if s != 16 {
		t.Fatalf("sum=%v, want 16", s)
	}
	if math.Abs(sE-4) > 1e-9 { // sqrt(4 * 2^2) = sqrt(16) = 4
		t.Fatalf("sum_e=%v, want 4", sE)
	}
}

func TestBackgroundSubtractionROI(t *testing.T) {
	raw := makeFlat(10, 10, 100)
	img := NewImageDefault(raw, false)
	roi := region.NewFromOrigin(0, 2, 0, 2) // 4 pixels at value 100
	info, err := img.BackgroundSubtractionROI([]region.Region{roi})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Bkg != 100 {
		t.Fatalf("bkg=%v, want 100", info.Bkg)
	}
	if math.Abs(info.BkgE-5) > 1e-9 { // sqrt(400)/4 = 5
		t.Fatalf("bkg_e=%v, want 5", info.BkgE)
	}
	if img.Array[5][5] != 0 {
		t.Fatalf("subtracted array value = %v, want 0", img.Array[5][5])
	}
}

func TestBackgroundSubtractionROIRejectsEmpty(t *testing.T) {
	img := NewImageDefault(makeFlat(4, 4, 1), false)
	if _, err := img.BackgroundSubtractionROI(nil); err == nil {
		t.Fatalf("expected error for empty ROI list")
	}
}

func TestRandomizedStackPreservesShapeAndSigmaInvariants(t *testing.T) {
	raw := randomCounts(20, 15, 80)
	img := NewImageDefault(raw, false)

	if len(img.Array) != len(img.ArrayE) || len(img.Array) != len(img.ArrayOriginal) {
		t.Fatalf("row count mismatch: array=%d array_e=%d array_original=%d", len(img.Array), len(img.ArrayE), len(img.ArrayOriginal))
	}
	for y := range img.Array {
		if len(img.Array[y]) != len(img.ArrayE[y]) || len(img.Array[y]) != len(img.ArrayOriginal[y]) {
			t.Fatalf("row %d shape mismatch", y)
		}
		for x, e := range img.ArrayE[y] {
			if e < 0 {
				t.Fatalf("negative sigma at %d,%d: %v", y, x, e)
			}
		}
	}

	snapshot := make([][]float64, len(img.ArrayOriginal))
	for y, row := range img.ArrayOriginal {
		snapshot[y] = append([]float64(nil), row...)
	}
	img.Crop(region.NewFromOrigin(1, 10, 1, 10))
	if _, err := img.BackgroundSubtractionROI([]region.Region{region.NewFromOrigin(0, 2, 0, 2)}); err != nil {
		t.Fatalf("bkg sub: %v", err)
	}
	for y, row := range img.ArrayOriginal {
		for x, v := range row {
			if v != snapshot[y+1][x+1] {
				t.Fatalf("array_original mutated at %d,%d: got %v want %v", y, x, v, snapshot[y+1][x+1])
			}
		}
	}
}

func TestBackgroundSubtractionGaussianRecoversOffset(t *testing.T) {
	const rows, cols = 3, 40
	raw := make([][]float64, rows)
	for y := 0; y < rows; y++ {
		raw[y] = make([]float64, cols)
		for x := 0; x < cols; x++ {
			dx := float64(x - 20)
			raw[y][x] = 50 + 2000*math.Exp(-0.5*dx*dx/(4*4))
		}
	}
	img := NewImageDefault(raw, false)
	info, err := img.BackgroundSubtractionGaussian(0)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if math.Abs(info.Bkg-50) > 5 {
		t.Fatalf("recovered background=%v, want near 50", info.Bkg)
	}
}
