package xrrdata

import (
	"math"
	"testing"
)

func TestThetaQRoundTrip(t *testing.T) {
	energy := 12.5
	for _, thetaDeg := range []float64{0.001, 0.1, 1.0, 5.0, 15.0, 30.0} {
		q := ThetaToQ(thetaDeg, energy)
		back := QToTheta(q, energy)
		if math.Abs(back-thetaDeg) > 1e-9 {
			t.Fatalf("theta=%v: round trip got %v (q=%v)", thetaDeg, back, q)
		}
	}
}

func TestThetaToQKnownValue(t *testing.T) {
	q := ThetaToQ(0.2, 12.5)
	if math.Abs(q-0.04425) > 1e-4 {
		t.Fatalf("q=%v, want approx 0.04425", q)
	}
}

func TestReflectivityNormalisesToUnitMax(t *testing.T) {
	d := NewFromTheta([]float64{1, 2, 4, 3}, []float64{0.1, 0.2, 0.4, 0.3}, 12.5, []float64{0.1, 0.2, 0.3, 0.4})
	r := d.Reflectivity()
	want := []float64{0.25, 0.5, 1.0, 0.75}
	for i := range r {
		if math.Abs(r[i]-want[i]) > 1e-12 {
			t.Fatalf("index %d: got %v want %v", i, r[i], want[i])
		}
	}
	re := d.ReflectivityE()
	if math.Abs(re[2]-0.1) > 1e-12 {
		t.Fatalf("reflectivity_e[2]=%v want 0.1", re[2])
	}
}

func TestQStorageDerivesTheta(t *testing.T) {
	energy := 12.5
	q := []float64{ThetaToQ(1.0, energy), ThetaToQ(2.0, energy)}
	d := NewFromQ([]float64{1, 2}, []float64{0.1, 0.1}, energy, q)
	if d.IsThetaStorage() {
		t.Fatalf("expected q storage form")
	}
	th := d.Theta()
	if math.Abs(th[0]-1.0) > 1e-9 || math.Abs(th[1]-2.0) > 1e-9 {
		t.Fatalf("theta=%v, want [1,2]", th)
	}
}

func TestRemoveIndices(t *testing.T) {
	d := NewFromTheta(
		[]float64{1, 2, 3, 4},
		[]float64{0.1, 0.2, 0.3, 0.4},
		12.5,
		[]float64{0.1, 0.2, 0.3, 0.4},
	)
	d.RemoveIndices([]int{1, 3})
	if d.Len() != 2 {
		t.Fatalf("len=%d, want 2", d.Len())
	}
	if d.Intensity[0] != 1 || d.Intensity[1] != 3 {
		t.Fatalf("intensity=%v, want [1,3]", d.Intensity)
	}
	if d.Theta()[0] != 0.1 || d.Theta()[1] != 0.3 {
		t.Fatalf("theta=%v, want [0.1,0.3]", d.Theta())
	}
}
