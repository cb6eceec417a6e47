package orchestrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/synchrotron-i07/xrrreduce/internal/metadata"
	"github.com/synchrotron-i07/xrrreduce/internal/pixel"
	"github.com/synchrotron-i07/xrrreduce/internal/profile"
	"github.com/synchrotron-i07/xrrreduce/internal/recipe"
	"github.com/synchrotron-i07/xrrreduce/internal/region"
	"github.com/synchrotron-i07/xrrreduce/internal/scan"
	"github.com/synchrotron-i07/xrrreduce/internal/xrrdata"
)

const testRecipeYAML = `
instrument: i07
visit:
  visit id: "cm1-1"
setup:
  sample size: 0.01
  beam width: 0.0003
crop:
  method: crop
  kwargs:
    x_start: 0
    x_end: 4
    y_start: 0
    y_end: 4
background:
  method: roi_subtraction
output_columns: 3
`

func fakeImage(val float64) *pixel.Image {
	raw := make([][]float64, 8)
	for i := range raw {
		raw[i] = make([]float64, 8)
		for j := range raw[i] {
			raw[i][j] = val
		}
	}
	return pixel.NewImageDefault(raw, false)
}

func fakeScan(t *testing.T, path string, nPoints int) *scan.Scan {
	t.Helper()
	theta := make([]float64, nPoints)
	intensity := make([]float64, nPoints)
	intensityE := make([]float64, nPoints)
	images := make([]*pixel.Image, nPoints)
	for i := 0; i < nPoints; i++ {
		theta[i] = 0.1 + float64(i)*0.05
		intensity[i] = 100
		intensityE[i] = 10
		images[i] = fakeImage(100.0 / 64.0)
	}
	d := xrrdata.NewFromTheta(intensity, intensityE, 12.5, theta)
	md := &metadata.Reference{
		Energy:            12.5,
		TransmissionValue: 1.0,
		DistanceM:         0.5,
		Axis:              theta,
		AxisName:          "theta",
		AxisKind:          metadata.AxisTh,
		Signal:            []region.Region{region.New(0, 8, 0, 8)},
		Background:        []region.Region{region.New(0, 8, 0, 8)},
		Path:              path,
	}
	s, err := scan.New(d, md, images)
	if err != nil {
		t.Fatalf("scan.New: %v", err)
	}
	return s
}

func TestReduceRunsCanonicalOrderAndWritesOutput(t *testing.T) {
	dir := t.TempDir()
	recipePath := filepath.Join(dir, "recipe.yaml")
	if err := os.WriteFile(recipePath, []byte(testRecipeYAML), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	r, err := recipe.Parse([]byte(testRecipeYAML))
	if err != nil {
		t.Fatalf("recipe.Parse: %v", err)
	}

	dataPath := filepath.Join(dir, "run1.dat")
	if err := os.WriteFile(dataPath, []byte("x"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	parser := func(path string) (*scan.Scan, error) {
		return fakeScan(t, path, 6), nil
	}

	outPath := filepath.Join(dir, "out.dat")
	cfg := Config{
		RunIDs:     []string{"run1.dat"},
		Recipe:     r,
		Directory:  dir,
		OutputPath: outPath,
		Parser:     parser,
	}
	p, err := Reduce(cfg)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if p.Data.Len() == 0 {
		t.Fatalf("expected non-empty reduced profile")
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	contents, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(contents) == 0 {
		t.Fatalf("expected non-empty output file")
	}
}

func TestReduceRejectsMissingParser(t *testing.T) {
	r, err := recipe.Parse([]byte(testRecipeYAML))
	if err != nil {
		t.Fatalf("recipe.Parse: %v", err)
	}
	_, err = Reduce(Config{RunIDs: []string{"run1.dat"}, Recipe: r, Directory: t.TempDir()})
	if err == nil {
		t.Fatalf("expected error for missing parser")
	}
}

func TestReduceRejectsNoRunIDs(t *testing.T) {
	r, err := recipe.Parse([]byte(testRecipeYAML))
	if err != nil {
		t.Fatalf("recipe.Parse: %v", err)
	}
	_, err = Reduce(Config{Recipe: r, Directory: t.TempDir(), Parser: func(string) (*scan.Scan, error) { return nil, nil }})
	if err == nil {
		t.Fatalf("expected error for empty run id list")
	}
}

func TestApplyTransmissionOverridesPerScan(t *testing.T) {
	r, err := recipe.Parse([]byte(testRecipeYAML))
	if err != nil {
		t.Fatalf("recipe.Parse: %v", err)
	}
	tLow, tHigh := 0.1, 0.5
	r.Transmission.Values = &[2]float64{tLow, tHigh}

	s0 := fakeScan(t, "run0.dat", 3)
	s1 := fakeScan(t, "run1.dat", 3)
	p, err := profile.New([]*scan.Scan{s0, s1})
	if err != nil {
		t.Fatalf("profile.New: %v", err)
	}

	if err := applyTransmission(p, r); err != nil {
		t.Fatalf("applyTransmission: %v", err)
	}

	if got, want := s0.Data.Intensity[0], 100.0/tLow; got != want {
		t.Errorf("first scan intensity[0] = %v, want %v (divided by t_low)", got, want)
	}
	if got, want := s1.Data.Intensity[0], 100.0/tHigh; got != want {
		t.Errorf("second scan intensity[0] = %v, want %v (divided by t_high)", got, want)
	}
}

func TestApplyTransmissionDefaultsToMetadata(t *testing.T) {
	r, err := recipe.Parse([]byte(testRecipeYAML))
	if err != nil {
		t.Fatalf("recipe.Parse: %v", err)
	}
	s := fakeScan(t, "run0.dat", 3)
	s.Metadata.(*metadata.Reference).TransmissionValue = 0.25
	p, err := profile.New([]*scan.Scan{s})
	if err != nil {
		t.Fatalf("profile.New: %v", err)
	}

	if err := applyTransmission(p, r); err != nil {
		t.Fatalf("applyTransmission: %v", err)
	}
	if got, want := s.Data.Intensity[0], 100.0/0.25; got != want {
		t.Errorf("intensity[0] = %v, want %v (divided by metadata transmission)", got, want)
	}
}

func TestWriteOutputHonorsMaxNormFalse(t *testing.T) {
	r, err := recipe.Parse([]byte(testRecipeYAML))
	if err != nil {
		t.Fatalf("recipe.Parse: %v", err)
	}
	noMaxNorm := false
	r.Normalisation.MaxNorm = &noMaxNorm

	s := fakeScan(t, "run0.dat", 3)
	p, err := profile.New([]*scan.Scan{s})
	if err != nil {
		t.Fatalf("profile.New: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.dat")
	if err := WriteOutput(path, r, p); err != nil {
		t.Fatalf("WriteOutput: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	wantVal := fmt.Sprintf("%.10g", s.Data.Intensity[0])
	if !strings.Contains(string(contents), wantVal) {
		t.Errorf("expected raw intensity value %s in output with maxnorm=false, got:\n%s", wantVal, contents)
	}
}
