package correction

import (
	"math"
	"testing"
)

func TestFootprintFactorBoundedUnitInterval(t *testing.T) {
	for _, theta := range []float64{0, 0.01, 0.1, 1, 5, 20} {
		f := FootprintFactor(0.3e-3, 10e-3, theta)
		if f <= 0 || f > 1 {
			t.Fatalf("theta=%v: factor=%v out of (0,1]", theta, f)
		}
	}
}

func TestFootprintFactorIncreasesWithAngle(t *testing.T) {
	f1 := FootprintFactor(0.3e-3, 10e-3, 0.05)
	f2 := FootprintFactor(0.3e-3, 10e-3, 2.0)
	if f2 <= f1 {
		t.Fatalf("expected footprint factor to grow with angle: f(0.05)=%v f(2.0)=%v", f1, f2)
	}
}

func TestFootprintFactorsMatchesScalar(t *testing.T) {
	thetas := []float64{0.1, 0.5, 1.0}
	factors := FootprintFactors(0.3e-3, 10e-3, thetas)
	for i, th := range thetas {
		want := FootprintFactor(0.3e-3, 10e-3, th)
		if math.Abs(factors[i]-want) > 1e-12 {
			t.Fatalf("index %d mismatch: %v vs %v", i, factors[i], want)
		}
	}
}
