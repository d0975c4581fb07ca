package syncer

import (
	"context"
	"io"
)

type LagResult struct {
	// Lag is the amount of samples the reference needs to be delayed by
	// to line up with the primary track (negative means advanced).
	Lag int

	// Confidence score (0..1).
	Confidence float64
}

type Syncer interface {
	io.Closer

	// CalculateLag estimates for each reference track how much it is
	// behind or ahead of the primary track.
	CalculateLag(
		ctx context.Context,
		primaryTrack []float32,
		referenceTracks ...[]float32,
	) ([]LagResult, error)
}
