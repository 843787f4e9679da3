package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	sdk "google.golang.org/genai"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/infra"
)

// DefaultModel is the image-capable Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash-image"

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// contentGenerator is the slice of the SDK's Models service the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*sdk.Content, config *sdk.GenerateContentConfig) (*sdk.GenerateContentResponse, error)
}

// Client sends single-turn image+text requests to Gemini and classifies the
// replies into images or *domain.Failure values.
type Client struct {
	models contentGenerator
	model  string
	logger *infra.Logger
}

// RenderRequest is one model call: the image to condition on and the instruction.
type RenderRequest struct {
	Data     []byte
	MIMEType string
	Prompt   string
	Purpose  Purpose
}

// NewClient constructs a Gemini client. The API key must come from runtime
// configuration; a nil HTTP client is replaced with one that has a timeout.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("genai: api key is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	cfg := &sdk.ClientConfig{
		APIKey:     apiKey,
		Backend:    sdk.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.HTTPOptions = sdk.HTTPOptions{BaseURL: base}
	}

	sc, err := sdk.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	return newClient(sc.Models, opts.Model, opts.Logger), nil
}

func newClient(models contentGenerator, model string, logger *infra.Logger) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{models: models, model: model, logger: logger}
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Render performs one generateContent call with the image part first and the
// prompt second, asking for image output only. Transport errors are returned
// as FailureUnknown and are not retried.
func (c *Client) Render(ctx context.Context, req RenderRequest) (domain.Image, error) {
	if len(req.Data) == 0 {
		return domain.Image{}, fmt.Errorf("%w: no image data to send", domain.ErrInvalidRequest)
	}

	parts := []*sdk.Part{
		sdk.NewPartFromBytes(req.Data, req.MIMEType),
		sdk.NewPartFromText(req.Prompt),
	}
	contents := []*sdk.Content{sdk.NewContentFromParts(parts, sdk.RoleUser)}
	config := &sdk.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("model", c.model).
			Str("purpose", string(req.Purpose)).
			Dur("elapsed", time.Since(start)).
			Msg("genai: generate content failed")
		return domain.Image{}, transportFailure(req.Purpose, err)
	}

	img, err := Classify(resp, req.Purpose)
	if err != nil {
		c.logFailure(resp, req.Purpose, err)
		return domain.Image{}, err
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("purpose", string(req.Purpose)).
		Str("mime", img.MIMEType).
		Int("bytes", len(img.Data)).
		Dur("elapsed", time.Since(start)).
		Msg("genai: image received")
	return img, nil
}

// logFailure records the complete raw response for diagnosis.
func (c *Client) logFailure(resp *sdk.GenerateContentResponse, purpose Purpose, err error) {
	var f *domain.Failure
	errors.As(err, &f)

	ev := c.logger.Error().
		Str("model", c.model).
		Str("purpose", string(purpose)).
		Str("kind", string(domain.KindOf(err)))
	if f != nil && f.Reason != "" {
		ev = ev.Str("reason", f.Reason)
	}
	if raw, mErr := json.Marshal(resp); mErr == nil {
		ev = ev.RawJSON("response", raw)
	} else {
		ev = ev.AnErr("marshal_error", mErr)
	}
	ev.Msg("genai: response contained no image")
}
