package terrain

import (
	"math"
	"testing"
)

func TestHeightAtOriginIsZero(t *testing.T) {
	if got := Height(0, 0); got != 0 {
		t.Fatalf("Height(0, 0) = %v, want 0", got)
	}
}

func TestHeightReferenceValues(t *testing.T) {
	// Values produced by the landscape shader's elevation function.
	cases := []struct {
		x, z float64
		want float64
	}{
		{0, -30, 8.669638781095177},
		{8, -65, 21.302499213974897},
		{-3, -370, 59.62791190335505},
		{123.4, -56.7, 32.12224287072551},
		{-1000, 2500, 33.716931443963716},
	}
	for _, tc := range cases {
		got := Height(tc.x, tc.z)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("Height(%v, %v) = %.15f, want %.15f", tc.x, tc.z, got, tc.want)
		}
	}
}

func TestHashReferenceValues(t *testing.T) {
	cases := map[float64]float64{
		0:   0,
		1:   0.41094955550543943,
		57:  0.8932342549702526,
		58:  0.5035572960130139,
		-57: 0.523956161310764,
	}
	for n, want := range cases {
		if got := hash(n); math.Abs(got-want) > 1e-12 {
			t.Fatalf("hash(%v) = %.17f, want %.17f", n, got, want)
		}
	}
}

func TestValueNoiseInterpolatesCorners(t *testing.T) {
	// At an integer lattice point the smoothed fraction is zero, so the
	// noise equals the hash of the cell seed.
	if got, want := valueNoise(1, 0), hash(1); got != want {
		t.Fatalf("valueNoise(1, 0) = %v, want hash(1) = %v", got, want)
	}
	if got, want := valueNoise(0, 1), hash(57); got != want {
		t.Fatalf("valueNoise(0, 1) = %v, want hash(57) = %v", got, want)
	}
	if got := valueNoise(0.5, 0.5); math.Abs(got-0.4519352766221765) > 1e-12 {
		t.Fatalf("valueNoise(0.5, 0.5) = %v", got)
	}
}

func TestHeightIsPureAndBounded(t *testing.T) {
	// Octave weights sum to 50 * (1 + 0.62 + 0.62^2).
	maxHeight := 50 * (1 + 0.62 + 0.62*0.62)
	for x := -2000.0; x <= 2000; x += 137.5 {
		for z := -2000.0; z <= 2000; z += 91.25 {
			a := Height(x, z)
			b := Height(x, z)
			if a != b {
				t.Fatalf("Height(%v, %v) not deterministic: %v vs %v", x, z, a, b)
			}
			if a < 0 || a > maxHeight {
				t.Fatalf("Height(%v, %v) = %v outside [0, %v]", x, z, a, maxHeight)
			}
		}
	}
}

func TestFieldMatchesHeight(t *testing.T) {
	var f HeightField = Field{}
	if f.Height(12.5, -99) != Height(12.5, -99) {
		t.Fatalf("Field.Height disagrees with Height")
	}
}
