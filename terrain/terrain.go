// Package terrain provides the analytic ground elevation shared by the
// flight physics and the background landscape renderer.
package terrain

import "math"

const (
	inputScale  = 0.003
	baseWeight  = 50.0
	weightDecay = 0.62
	octaveScale = 2.5
	octaves     = 3

	cellStride = 57.0

	hashModX   = 3.07965
	hashModY   = 7.4235
	hashOffset = 19.19
)

// HeightField maps a horizontal position to a ground elevation.
type HeightField interface {
	Height(x, z float64) float64
}

// Field is the analytic HeightField backed by Height.
type Field struct{}

// Height implements HeightField.
func (Field) Height(x, z float64) float64 { return Height(x, z) }

// Height returns the ground elevation at (x, z) as a three octave value-noise
// sum. It must stay bit-for-bit identical to the landscape shader, so every
// multiply-add below is split with an explicit conversion to stop the
// compiler from fusing it.
func Height(x, z float64) float64 {
	px, py := x*inputScale, z*inputScale
	w := baseWeight
	f := 0.0
	for i := 0; i < octaves; i++ {
		f += float64(valueNoise(px, py) * w)
		w *= weightDecay
		px *= octaveScale
		py *= octaveScale
	}
	return f
}

func valueNoise(x, y float64) float64 {
	cx, cy := math.Floor(x), math.Floor(y)
	fx, fy := x-cx, y-cy

	fx = fx * fx * (3 - float64(2*fx))
	fy = fy * fy * (3 - float64(2*fy))

	n := cx + float64(cy*cellStride)

	h1 := hash(n)
	h2 := hash(n + 1)
	h3 := hash(n + cellStride)
	h4 := hash(n + cellStride + 1)

	a := h1 + float64(fx*(h2-h1))
	b := h3 + float64(fx*(h4-h3))
	return a + float64(fy*(b-a))
}

// hash maps a scalar cell seed to [0, 1).
func hash(n float64) float64 {
	px := fract(n / hashModX)
	py := fract(n / hashModY)

	d := float64(py*(px+hashOffset)) + float64(px*(py+hashOffset))
	px += d
	py += d

	return fract(px * py)
}

func fract(v float64) float64 {
	return v - math.Floor(v)
}
