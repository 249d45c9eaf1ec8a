package vectorDB

import (
	"fmt"

	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
)

func dimensionError(what string, got int, want int) error {
	return fmt.Errorf("%w: %s has %d values, index expects %d", ragErrors.ErrDimensionMismatch, what, got, want)
}
