package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DesignType is the kind of printed product the uploaded design represents.
type DesignType string

const (
	DesignBook     DesignType = "book"
	DesignBrochure DesignType = "brochure"
)

// DesignTypes lists the selectable design types in display order.
func DesignTypes() []DesignType {
	return []DesignType{DesignBook, DesignBrochure}
}

// ParseDesignType normalises user input into a DesignType.
func ParseDesignType(s string) (DesignType, error) {
	switch DesignType(strings.ToLower(strings.TrimSpace(s))) {
	case DesignBook:
		return DesignBook, nil
	case DesignBrochure:
		return DesignBrochure, nil
	}
	return "", fmt.Errorf("%w: unknown design type %q", ErrInvalidRequest, s)
}

func (d DesignType) Valid() bool {
	return d == DesignBook || d == DesignBrochure
}

// Label is the display form, e.g. "Brochure".
func (d DesignType) Label() string {
	return cases.Title(language.English).String(string(d))
}

// LayoutType says whether the design is a single face or an open two-page spread.
type LayoutType string

const (
	LayoutCover  LayoutType = "cover"
	LayoutSpread LayoutType = "spread"
)

// SpreadAspectThreshold is the width/height ratio above which an image is a spread.
const SpreadAspectThreshold = 1.2

// LayoutForDimensions classifies pixel dimensions. A ratio of exactly
// SpreadAspectThreshold is still a cover.
func LayoutForDimensions(width, height int) (LayoutType, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("%w: invalid dimensions %dx%d", ErrInvalidRequest, width, height)
	}
	if float64(width)/float64(height) > SpreadAspectThreshold {
		return LayoutSpread, nil
	}
	return LayoutCover, nil
}

func (l LayoutType) Valid() bool {
	return l == LayoutCover || l == LayoutSpread
}

// MockupStyle is the aesthetic applied to the generated scene.
type MockupStyle string

const (
	StyleModern     MockupStyle = "modern"
	StyleMinimalist MockupStyle = "minimalist"
	StyleVintage    MockupStyle = "vintage"
	StyleCorporate  MockupStyle = "corporate"
	StyleArtistic   MockupStyle = "artistic"
)

// DefaultStyle is preselected for new sessions.
const DefaultStyle = StyleModern

// StyleInfo carries the display label and the phrase inserted into prompts.
type StyleInfo struct {
	ID         MockupStyle `json:"id"`
	Label      string      `json:"label"`
	Descriptor string      `json:"descriptor"`
}

var styleCatalog = []StyleInfo{
	{ID: StyleModern, Label: "Modern", Descriptor: "modern and clean"},
	{ID: StyleMinimalist, Label: "Minimalist", Descriptor: "minimalist with neutral tones"},
	{ID: StyleVintage, Label: "Vintage", Descriptor: "vintage and rustic"},
	{ID: StyleCorporate, Label: "Corporate", Descriptor: "professional and corporate"},
	{ID: StyleArtistic, Label: "Artistic", Descriptor: "artistic and creative"},
}

// Styles returns a copy of the style catalog in display order.
func Styles() []StyleInfo {
	out := make([]StyleInfo, len(styleCatalog))
	copy(out, styleCatalog)
	return out
}

func lookupStyle(s MockupStyle) (StyleInfo, bool) {
	for _, info := range styleCatalog {
		if info.ID == s {
			return info, true
		}
	}
	return StyleInfo{}, false
}

// ParseStyle normalises user input into a MockupStyle. Empty input selects DefaultStyle.
func ParseStyle(s string) (MockupStyle, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultStyle, nil
	}
	if info, ok := lookupStyle(MockupStyle(s)); ok {
		return info.ID, nil
	}
	return "", fmt.Errorf("%w: unknown style %q", ErrInvalidRequest, s)
}

func (s MockupStyle) Valid() bool {
	_, ok := lookupStyle(s)
	return ok
}

func (s MockupStyle) Label() string {
	info, _ := lookupStyle(s)
	return info.Label
}

func (s MockupStyle) Descriptor() string {
	info, _ := lookupStyle(s)
	return info.Descriptor
}

// Accepted upload MIME types.
const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEWebP = "image/webp"
)

// AcceptedMIMETypes lists the image formats a design can be uploaded in.
func AcceptedMIMETypes() []string {
	return []string{MIMEPNG, MIMEJPEG, MIMEWebP}
}

func IsAcceptedMIME(mime string) bool {
	for _, m := range AcceptedMIMETypes() {
		if strings.EqualFold(m, mime) {
			return true
		}
	}
	return false
}

// SourceImage is the user's design as it will be sent to the model.
type SourceImage struct {
	Data     []byte
	MIMEType string
	Layout   LayoutType
	Width    int
	Height   int
}

func (s SourceImage) Empty() bool {
	return len(s.Data) == 0
}

// GenerationRequest bundles everything needed for one mockup call.
type GenerationRequest struct {
	Source SourceImage
	Design DesignType
	Layout LayoutType
	Style  MockupStyle
}

// Validate refuses requests that must never reach the model.
func (r GenerationRequest) Validate() error {
	switch {
	case r.Source.Empty():
		return fmt.Errorf("%w: source image is empty", ErrInvalidRequest)
	case r.Source.MIMEType == "":
		return fmt.Errorf("%w: source image has no MIME type", ErrInvalidRequest)
	case !r.Design.Valid():
		return fmt.Errorf("%w: design type %q", ErrInvalidRequest, r.Design)
	case !r.Layout.Valid():
		return fmt.Errorf("%w: layout %q is not resolved", ErrInvalidRequest, r.Layout)
	case !r.Style.Valid():
		return fmt.Errorf("%w: style %q", ErrInvalidRequest, r.Style)
	}
	return nil
}

// Subject is the phrase naming the product, e.g. "book cover".
func (r GenerationRequest) Subject() string {
	return string(r.Design) + " " + string(r.Layout)
}

// SubjectLabel is Subject for display, e.g. "Book Cover".
func (r GenerationRequest) SubjectLabel() string {
	return cases.Title(language.English).String(r.Subject())
}

// Image is a rendered or edited picture returned by the model.
type Image struct {
	Data     []byte
	MIMEType string
}
