package image

import (
	"context"

	"mockupstudio/internal/domain"
)

// Generator is the contract for producing mockups and repairing designs.
// Every non-nil error is a *domain.Failure.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.Image, error)
	EditRemovePeople(ctx context.Context, src domain.SourceImage) (domain.Image, error)
}
