package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/imagegen"
	"mockupstudio/internal/middleware"
	"mockupstudio/internal/session"
	"mockupstudio/pkg/zip"
)

type sessionView struct {
	ID              string       `json:"id"`
	Layout          string       `json:"layout"`
	Width           int          `json:"width"`
	Height          int          `json:"height"`
	MIMEType        string       `json:"mime_type"`
	DesignType      string       `json:"design_type,omitempty"`
	Style           string       `json:"style"`
	Subject         string       `json:"subject,omitempty"`
	SourceURL       string       `json:"source_url"`
	Outcome         *outcomeView `json:"outcome,omitempty"`
	RepairAvailable bool         `json:"repair_available"`
	CreatedAt       time.Time    `json:"created_at"`
}

func newSessionView(sess *session.Session) sessionView {
	src := sess.Source()
	design := sess.Design()
	view := sessionView{
		ID:              sess.ID,
		Layout:          string(src.Layout),
		Width:           src.Width,
		Height:          src.Height,
		MIMEType:        src.MIMEType,
		DesignType:      string(design),
		Style:           string(sess.Style()),
		SourceURL:       fmt.Sprintf("/v1/sessions/%s/source", sess.ID),
		RepairAvailable: sess.RepairAvailable(),
		CreatedAt:       sess.CreatedAt,
	}
	if design.Valid() {
		view.Subject = domain.GenerationRequest{Design: design, Layout: src.Layout}.SubjectLabel()
	}
	out := sess.Outcome()
	if out.Image != nil || out.Err != nil {
		ov := newOutcomeView(out.Image, out.Err, out.Repairable, nil)
		view.Outcome = &ov
	}
	return view
}

// readUpload pulls the "image" part out of a multipart request and resolves its layout.
func (a *App) readUpload(w http.ResponseWriter, r *http.Request) (domain.SourceImage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(a.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.SourceImage{}, err
		}
		return domain.SourceImage{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return domain.SourceImage{}, session.ErrNoImage
	}
	defer file.Close()

	if header.Size > a.maxUpload {
		return domain.SourceImage{}, &http.MaxBytesError{Limit: a.maxUpload}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return domain.SourceImage{}, fmt.Errorf("read upload: %w", err)
	}
	return imagegen.LoadSource(data, header.Header.Get("Content-Type"))
}

// CreateSession starts a session from an uploaded design. Optional form
// fields design_type and style preselect options.
func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	src, err := a.readUpload(w, r)
	if err != nil {
		a.fail(w, err)
		return
	}

	var design domain.DesignType
	if v := r.FormValue("design_type"); v != "" {
		if design, err = domain.ParseDesignType(v); err != nil {
			a.fail(w, err)
			return
		}
	}
	style, err := domain.ParseStyle(r.FormValue("style"))
	if err != nil {
		a.fail(w, err)
		return
	}

	sess := a.sessions.Create(src)
	if design != "" {
		sess.SetDesign(design)
	}
	sess.SetStyle(style)

	a.logger.Info().
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("session_id", sess.ID).
		Str("layout", string(src.Layout)).
		Str("mime", src.MIMEType).
		Int("bytes", len(src.Data)).
		Msg("session created")

	a.json(w, http.StatusCreated, newSessionView(sess))
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, newSessionView(sess))
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	a.sessions.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceImage swaps the uploaded design. The previous outcome and any repair
// offer are discarded.
func (a *App) ReplaceImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	release, err := sess.TryBegin()
	if err != nil {
		a.fail(w, err)
		return
	}
	defer release()

	src, err := a.readUpload(w, r)
	if err != nil {
		a.fail(w, err)
		return
	}
	sess.SetUpload(src)
	a.json(w, http.StatusOK, newSessionView(sess))
}

type selectionsRequest struct {
	DesignType *string `json:"design_type"`
	Style      *string `json:"style"`
}

// UpdateSelections changes the design type and/or style.
func (a *App) UpdateSelections(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	var req selectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	var (
		design domain.DesignType
		style  domain.MockupStyle
		err    error
	)
	if req.DesignType != nil {
		if design, err = domain.ParseDesignType(*req.DesignType); err != nil {
			a.fail(w, err)
			return
		}
	}
	if req.Style != nil {
		if style, err = domain.ParseStyle(*req.Style); err != nil {
			a.fail(w, err)
			return
		}
	}
	if design != "" {
		sess.SetDesign(design)
	}
	if style != "" {
		sess.SetStyle(style)
	}
	a.json(w, http.StatusOK, newSessionView(sess))
}

// SourceImage serves the current source bytes, which reflect a successful repair.
func (a *App) SourceImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	src := sess.Source()
	if src.Empty() {
		a.fail(w, session.ErrNoImage)
		return
	}
	writeBlob(w, src.Data, src.MIMEType)
}

// ResultImage serves the last rendered mockup for download.
func (a *App) ResultImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	out := sess.Outcome()
	if out.Image == nil {
		a.error(w, http.StatusNotFound, "not_found", "no mockup has been generated yet")
		return
	}
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="mockup`+extensionFor(out.Image.MIMEType)+`"`)
	}
	writeBlob(w, out.Image.Data, out.Image.MIMEType)
}

// Bundle serves the current design and the last mockup as one zip download.
func (a *App) Bundle(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	out := sess.Outcome()
	if out.Image == nil {
		a.error(w, http.StatusNotFound, "not_found", "no mockup has been generated yet")
		return
	}
	src := sess.Source()
	data, err := zip.Archive([]zip.Entry{
		{Filename: "design" + extensionFor(src.MIMEType), Data: src.Data},
		{Filename: "mockup" + extensionFor(out.Image.MIMEType), Data: out.Image.Data},
	}, out.CompletedAt)
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="mockup-`+sess.ID+`.zip"`)
	writeBlob(w, data, "application/zip")
}

func writeBlob(w http.ResponseWriter, data []byte, mime string) {
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func extensionFor(mime string) string {
	switch mime {
	case domain.MIMEJPEG:
		return ".jpg"
	case domain.MIMEWebP:
		return ".webp"
	default:
		return ".png"
	}
}
