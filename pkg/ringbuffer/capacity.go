package ringbuffer

import (
	"fmt"
)

// CapacityFor returns the smallest capacity that is an exact multiple of
// both the quantum size and the frame size, so that the cursors
// advancing by quanta and by frames hit the end of the storage exactly.
func CapacityFor(quantumSize, frameSize uint) (uint, error) {
	if quantumSize == 0 || frameSize == 0 {
		return 0, fmt.Errorf("quantum size (%d) and frame size (%d) must be positive", quantumSize, frameSize)
	}
	return quantumSize / gcd(quantumSize, frameSize) * frameSize, nil
}

func gcd(a, b uint) uint {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
