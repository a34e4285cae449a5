package amp

// mapRange linearly maps value from [inMin, inMax] to [outMin, outMax].
// Callers apply nonlinear pre-transforms (squares, sines) before calling to
// compensate for the logarithmic perception of frequency and loudness.
func mapRange(value, inMin, inMax, outMin, outMax float64) float64 {
	return outMin + (outMax-outMin)*(value-inMin)/(inMax-inMin)
}

func addInto(dst, src []float64) {
	for i, v := range src {
		dst[i] += v
	}
}

func toFloat32(in []float64, out []float32) {
	for i, v := range in {
		out[i] = float32(v)
	}
}

func toFloat64(in []float32, out []float64) {
	for i, v := range in {
		out[i] = float64(v)
	}
}
