package syncer

// Align returns a copy of the reference track shifted by lag samples
// (delayed for positive lag, advanced for negative) and cut or
// zero-padded to the given length.
func Align(reference []float32, lag int, length int) []float32 {
	result := make([]float32, length)
	if lag >= 0 {
		if lag < length {
			copy(result[lag:], reference)
		}
		return result
	}
	if -lag < len(reference) {
		copy(result, reference[-lag:])
	}
	return result
}
