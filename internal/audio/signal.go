package audio

import "math"

// Downmix combines channels into mono. With two or more channels it returns
// the energy-preserving average of the first two, sqrt(2) * (c0 + c1) / 2;
// channels beyond the second are ignored. A single channel is returned as is.
func Downmix(channels [][]float32) []float32 {
	switch len(channels) {
	case 0:
		return nil
	case 1:
		return channels[0]
	}
	left, right := channels[0], channels[1]
	n := min(len(left), len(right))
	mono := make([]float32, n)
	for i := 0; i < n; i++ {
		mono[i] = float32(math.Sqrt2 * (float64(left[i]) + float64(right[i])) / 2)
	}
	return mono
}

// Average combines the first two channels with a plain mean, the rule used by
// ffmpeg's -ac 1 for stereo input.
func Average(left, right []float32) []float32 {
	n := min(len(left), len(right))
	mono := make([]float32, n)
	for i := 0; i < n; i++ {
		mono[i] = (left[i] + right[i]) / 2
	}
	return mono
}

// Resample converts samples from srcRate to dstRate with linear
// interpolation. Equal rates return the input slice.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 || srcRate <= 0 || dstRate <= 0 {
		return samples
	}
	outLen := int(math.Round(float64(len(samples)) * float64(dstRate) / float64(srcRate)))
	if outLen < 1 {
		outLen = 1
	}
	out := make([]float32, outLen)
	ratio := float64(srcRate) / float64(dstRate)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}
