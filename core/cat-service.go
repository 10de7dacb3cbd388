package core

import "context"

// BreedNamer produces a short cat-breed description from the completion
// backend.
type BreedNamer interface {
	BreedDescription(ctx context.Context) (string, error)
}

// ImageGenerator renders a cat image for a breed description and returns the
// raw image bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, breed string) ([]byte, error)
	Available() bool
}
