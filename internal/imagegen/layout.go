package imagegen

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"

	"mockupstudio/internal/domain"
)

// UndecodableMessage is shown when an upload cannot be read as an image.
const UndecodableMessage = "Could not determine image type."

// ErrUndecodable marks uploads whose pixels could not be read.
var ErrUndecodable = fmt.Errorf("%w: undecodable image", domain.ErrUnsupportedMedia)

// DetectMIME prefers the sniffed content type and falls back to the declared one.
func DetectMIME(data []byte, declared string) string {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared == "" || declared == "application/octet-stream" {
		return sniffed
	}
	return declared
}

// LoadSource validates an upload and resolves its layout from the pixel
// dimensions. The returned SourceImage always has a layout.
func LoadSource(data []byte, declaredMIME string) (domain.SourceImage, error) {
	if len(data) == 0 {
		return domain.SourceImage{}, fmt.Errorf("%w: empty upload", domain.ErrInvalidRequest)
	}

	mime := DetectMIME(data, declaredMIME)
	if !domain.IsAcceptedMIME(mime) {
		return domain.SourceImage{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, mime)
	}

	width, height, err := decodeDimensions(data, mime)
	if err != nil {
		return domain.SourceImage{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	layout, err := domain.LayoutForDimensions(width, height)
	if err != nil {
		return domain.SourceImage{}, err
	}

	return domain.SourceImage{
		Data:     data,
		MIMEType: mime,
		Layout:   layout,
		Width:    width,
		Height:   height,
	}, nil
}

// InferLayout returns only the layout of an encoded image.
func InferLayout(data []byte, mime string) (domain.LayoutType, error) {
	src, err := LoadSource(data, mime)
	if err != nil {
		return "", err
	}
	return src.Layout, nil
}

func decodeDimensions(data []byte, mime string) (int, int, error) {
	if mime == domain.MIMEWebP {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return 0, 0, fmt.Errorf("decode webp: %w", err)
		}
		b := img.Bounds()
		return b.Dx(), b.Dy(), nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
