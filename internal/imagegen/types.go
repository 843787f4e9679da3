package imagegen

import (
	"context"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/notify"
)

// Generator produces mockups and people-free edits of a design.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.Image, error)
	EditRemovePeople(ctx context.Context, src domain.SourceImage) (domain.Image, error)
}

// Notifier receives transient status messages for the user.
type Notifier interface {
	Notify(ctx context.Context, kind notify.Kind, message string)
}

// SourceHolder owns the current source image of a session. ReplaceSource must
// swap the image atomically.
type SourceHolder interface {
	Source() domain.SourceImage
	ReplaceSource(domain.SourceImage)
}
