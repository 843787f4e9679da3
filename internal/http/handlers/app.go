package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/imagegen"
	"mockupstudio/internal/infra"
	"mockupstudio/internal/notify"
	"mockupstudio/internal/session"
)

// Options wires the collaborators the handlers depend on.
type Options struct {
	Sessions       *session.Store
	Generator      imagegen.Generator
	Hub            *notify.Hub
	Logger         *infra.Logger
	MaxUploadBytes int64
	NoticeDismiss  time.Duration
}

type App struct {
	sessions  *session.Store
	generator imagegen.Generator
	hub       *notify.Hub
	logger    *infra.Logger
	maxUpload int64
	dismiss   time.Duration
	usage     *usage
}

func NewApp(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	hub := opts.Hub
	if hub == nil {
		hub = notify.NewHub(opts.NoticeDismiss, nil, logger)
	}
	return &App{
		sessions:  opts.Sessions,
		generator: opts.Generator,
		hub:       hub,
		logger:    logger,
		maxUpload: maxUpload,
		dismiss:   opts.NoticeDismiss,
		usage:     newUsage(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	a.json(w, status, body)
}

// fail maps err onto a status code and a message the UI can display.
func (a *App) fail(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", "The image is too large.")
	case errors.Is(err, session.ErrNoImage):
		a.error(w, http.StatusBadRequest, "no_image", "Please upload an image first.")
	case errors.Is(err, session.ErrNoDesign):
		a.error(w, http.StatusBadRequest, "no_design_type", "Please choose whether the design is a book or a brochure.")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, domain.ErrBusy):
		a.error(w, http.StatusConflict, "busy", "Another operation is already running for this session.")
	case errors.Is(err, domain.ErrRepairNotOffered), errors.Is(err, imagegen.ErrNotEligible), errors.Is(err, imagegen.ErrFlowFinished):
		a.error(w, http.StatusConflict, "repair_unavailable", "Repair is only available after a safety block.")
	case errors.Is(err, imagegen.ErrUndecodable):
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_media", imagegen.UndecodableMessage)
	case errors.Is(err, domain.ErrUnsupportedMedia):
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_media", "Please upload a PNG, JPEG or WebP image.")
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.logger.Error().Err(err).Msg("handlers: unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := a.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return nil, false
	}
	return sess, true
}
