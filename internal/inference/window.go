package inference

// NumWindows returns how many model windows cover n samples.
func NumWindows(n int) int {
	padded := n + OverlapLen/2
	return max(1, (padded+HopSize-1)/HopSize)
}

// Windows slices audio into overlapping model windows.
//
// OverlapLen/2 zeros are prepended, then a window of AudioNSamples starts
// every HopSize samples. The last window is zero-padded. The result is the
// row-major [windows, AudioNSamples] buffer and the window count.
func Windows(samples []float32) ([]float32, int) {
	n := NumWindows(len(samples))
	out := make([]float32, n*AudioNSamples)
	lead := OverlapLen / 2

	for w := 0; w < n; w++ {
		dst := out[w*AudioNSamples : (w+1)*AudioNSamples]
		// Window start in padded coordinates; map back to samples.
		start := w*HopSize - lead
		for i := range dst {
			src := start + i
			if src >= 0 && src < len(samples) {
				dst[i] = samples[src]
			}
		}
	}
	return out, n
}
