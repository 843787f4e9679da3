package image

import (
	"context"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/providers/genai"
)

// renderer is implemented by *genai.Client.
type renderer interface {
	Render(ctx context.Context, req genai.RenderRequest) (domain.Image, error)
}

type GeminiGenerator struct {
	client renderer
}

func NewGeminiGenerator(client renderer) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

// Generate renders a mockup of req.Source. Invalid requests never reach the model.
func (g *GeminiGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.Image, error) {
	if err := req.Validate(); err != nil {
		return domain.Image{}, &domain.Failure{Kind: domain.FailureUnknown, Message: err.Error(), Err: err}
	}
	return g.client.Render(ctx, genai.RenderRequest{
		Data:     req.Source.Data,
		MIMEType: req.Source.MIMEType,
		Prompt:   BuildMockupPrompt(req.Design, req.Layout, req.Style),
		Purpose:  genai.PurposeMockup,
	})
}

// EditRemovePeople asks the model to strip people from src. The returned image
// keeps src's MIME type when the model does not report one.
func (g *GeminiGenerator) EditRemovePeople(ctx context.Context, src domain.SourceImage) (domain.Image, error) {
	if src.Empty() {
		return domain.Image{}, &domain.Failure{Kind: domain.FailureUnknown, Message: "Please upload an image first.", Err: domain.ErrInvalidRequest}
	}
	img, err := g.client.Render(ctx, genai.RenderRequest{
		Data:     src.Data,
		MIMEType: src.MIMEType,
		Prompt:   BuildRepairPrompt(),
		Purpose:  genai.PurposeRepair,
	})
	if err != nil {
		return domain.Image{}, err
	}
	if img.MIMEType == "" {
		img.MIMEType = src.MIMEType
	}
	return img, nil
}

var _ Generator = (*GeminiGenerator)(nil)
