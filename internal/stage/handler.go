package stage

import (
	"context"

	"tubecraft/internal/episode"
)

// Handler describes the contract the scheduler needs from each generation stage.
type Handler interface {
	// Status is the generating status this handler owns.
	Status() episode.Status
	// Prepare validates inputs before Execute runs. Validation failures are
	// classified as invalid input and fail the episode without retries.
	Prepare(context.Context, *episode.Episode) error
	// Execute performs the stage work, mutating the episode with its outputs.
	Execute(context.Context, *episode.Episode) error
	// HealthCheck reports whether the stage's external dependency is usable.
	HealthCheck(context.Context) Health
}
