package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/http/handlers"
	"mockupstudio/internal/imagegen"
	"mockupstudio/internal/infra"
	"mockupstudio/internal/session"
)

type scriptedGenerator struct {
	mu         sync.Mutex
	genResults []genResult
	editImg    domain.Image
	editErr    error
	genCalls   int
	editCalls  int
	lastReq    domain.GenerationRequest
	block      chan struct{}
	started    chan struct{}
}

type genResult struct {
	img domain.Image
	err error
}

func (g *scriptedGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.Image, error) {
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return domain.Image{}, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastReq = req
	idx := g.genCalls
	g.genCalls++
	if idx >= len(g.genResults) {
		idx = len(g.genResults) - 1
	}
	return g.genResults[idx].img, g.genResults[idx].err
}

func (g *scriptedGenerator) EditRemovePeople(_ context.Context, _ domain.SourceImage) (domain.Image, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.editCalls++
	return g.editImg, g.editErr
}

func (g *scriptedGenerator) calls() (gen, edit int, last domain.GenerationRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.genCalls, g.editCalls, g.lastReq
}

var _ imagegen.Generator = (*scriptedGenerator)(nil)

type sessionBody struct {
	ID              string `json:"id"`
	Layout          string `json:"layout"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	MIMEType        string `json:"mime_type"`
	DesignType      string `json:"design_type"`
	Style           string `json:"style"`
	Subject         string `json:"subject"`
	RepairAvailable bool   `json:"repair_available"`
}

type noticeBody struct {
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	DismissAfterMS int64  `json:"dismiss_after_ms"`
}

type outcomeBody struct {
	Status  string `json:"status"`
	Image   string `json:"image"`
	Failure *struct {
		Kind    string `json:"kind"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"failure"`
	RepairAvailable bool         `json:"repair_available"`
	Notices         []noticeBody `json:"notices"`
	State           string       `json:"state"`
	History         []string     `json:"history"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestServer(t *testing.T, gen imagegen.Generator) *httptest.Server {
	t.Helper()
	cfg := &infra.Config{RateLimitPerMin: 0, MaxUploadBytes: 1 << 20, NoticeDismiss: 5 * time.Second}
	app := handlers.NewApp(handlers.Options{
		Sessions:       session.NewStore(time.Hour, nil),
		Generator:      gen,
		MaxUploadBytes: cfg.MaxUploadBytes,
		NoticeDismiss:  cfg.NoticeDismiss,
	})
	srv := httptest.NewServer(NewRouter(app, cfg, infra.NewLogger("test", "disabled")))
	t.Cleanup(srv.Close)
	return srv
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func upload(t *testing.T, url string, method string, data []byte, fields map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("image", "design.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(method, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	return resp
}

func createSession(t *testing.T, srv *httptest.Server, w, h int, fields map[string]string) sessionBody {
	t.Helper()
	resp := upload(t, srv.URL+"/v1/sessions", http.MethodPost, pngBytes(t, w, h), fields)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[sessionBody](t, resp)
}

var safetyBlock = &domain.Failure{
	Kind:    domain.FailureSafetyBlocked,
	Reason:  "SAFETY",
	Message: "Image generation was blocked for safety reasons.",
}

func TestHealthAndCatalog(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{})

	resp, err := http.Get(srv.URL + "/v1/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/catalog")
	require.NoError(t, err)
	catalog := decode[struct {
		Styles       []domain.StyleInfo `json:"styles"`
		DefaultStyle string             `json:"default_style"`
		DesignTypes  []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"design_types"`
		AcceptedTypes []string `json:"accepted_types"`
	}](t, resp)
	assert.Len(t, catalog.Styles, 5)
	assert.Equal(t, "modern", catalog.DefaultStyle)
	require.Len(t, catalog.DesignTypes, 2)
	assert.Equal(t, "Book", catalog.DesignTypes[0].Label)
	assert.ElementsMatch(t, []string{"image/png", "image/jpeg", "image/webp"}, catalog.AcceptedTypes)

	resp, err = http.Get(srv.URL + "/v1/openapi.json")
	require.NoError(t, err)
	doc := decode[map[string]any](t, resp)
	assert.Equal(t, "3.0.3", doc["openapi"])
}

func TestCreateSessionInfersLayout(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{})

	sess := createSession(t, srv, 300, 100, map[string]string{"design_type": "brochure", "style": "vintage"})
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "spread", sess.Layout)
	assert.Equal(t, 300, sess.Width)
	assert.Equal(t, "image/png", sess.MIMEType)
	assert.Equal(t, "brochure", sess.DesignType)
	assert.Equal(t, "vintage", sess.Style)
	assert.Equal(t, "Brochure Spread", sess.Subject)

	cover := createSession(t, srv, 100, 140, nil)
	assert.Equal(t, "cover", cover.Layout)
	assert.Equal(t, "modern", cover.Style)
	assert.Empty(t, cover.DesignType)
}

func TestCreateSessionRejectsNonImage(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{})

	resp := upload(t, srv.URL+"/v1/sessions", http.MethodPost, []byte("just some text, not a picture"), nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "unsupported_media", body.Error.Code)
}

func TestGenerateRequiresDesignType(t *testing.T) {
	gen := &scriptedGenerator{genResults: []genResult{{img: domain.Image{Data: []byte("x")}}}}
	srv := newTestServer(t, gen)
	sess := createSession(t, srv, 100, 100, nil)

	resp := post(t, srv.URL+"/v1/sessions/"+sess.ID+"/generate")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "no_design_type", body.Error.Code)
	genCalls, _, _ := gen.calls()
	assert.Zero(t, genCalls)
}

func TestGenerateUnknownSession(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{})
	resp := post(t, srv.URL+"/v1/sessions/missing/generate")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerateSuccess(t *testing.T) {
	gen := &scriptedGenerator{genResults: []genResult{{img: domain.Image{Data: []byte("mockup"), MIMEType: "image/png"}}}}
	srv := newTestServer(t, gen)
	sess := createSession(t, srv, 100, 100, map[string]string{"design_type": "book"})

	resp := post(t, srv.URL+"/v1/sessions/"+sess.ID+"/generate")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[outcomeBody](t, resp)
	assert.Equal(t, "done", out.Status)
	assert.Equal(t, "data:image/png;base64,bW9ja3Vw", out.Image)
	assert.False(t, out.RepairAvailable)
	_, _, last := gen.calls()
	assert.Equal(t, domain.LayoutCover, last.Layout)
	assert.Equal(t, domain.DesignBook, last.Design)
	assert.Equal(t, domain.StyleModern, last.Style)

	resp, err := http.Get(srv.URL + "/v1/sessions/" + sess.ID + "/result?download=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "mockup.png")

	resp, err = http.Get(srv.URL + "/v1/sessions/" + sess.ID + "/bundle")
	require.NoError(t, err)
	var bundle bytes.Buffer
	_, _ = bundle.ReadFrom(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	zr, err := zip.NewReader(bytes.NewReader(bundle.Bytes()), int64(bundle.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "design.png", zr.File[0].Name)
	assert.Equal(t, "mockup.png", zr.File[1].Name)

	resp, err = http.Get(srv.URL + "/v1/stats")
	require.NoError(t, err)
	stats := decode[struct {
		MockupGenerated int64 `json:"mockup_generated"`
		RequestFail     int64 `json:"request_fail"`
		ActiveSessions  int   `json:"active_sessions"`
	}](t, resp)
	assert.Equal(t, int64(1), stats.MockupGenerated)
	assert.Zero(t, stats.RequestFail)
	assert.Equal(t, 1, stats.ActiveSessions)
}

func TestSafetyBlockThenRepair(t *testing.T) {
	gen := &scriptedGenerator{
		genResults: []genResult{
			{err: safetyBlock},
			{img: domain.Image{Data: []byte("final"), MIMEType: "image/png"}},
		},
		editImg: domain.Image{Data: []byte("no-people"), MIMEType: "image/png"},
	}
	srv := newTestServer(t, gen)
	sess := createSession(t, srv, 300, 100, map[string]string{"design_type": "brochure"})

	resp := post(t, srv.URL+"/v1/sessions/"+sess.ID+"/generate")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[outcomeBody](t, resp)
	assert.Equal(t, "failed", out.Status)
	require.NotNil(t, out.Failure)
	assert.Equal(t, "safety_blocked", out.Failure.Kind)
	assert.Equal(t, "SAFETY", out.Failure.Reason)
	assert.True(t, out.RepairAvailable)
	require.Len(t, out.Notices, 1)
	assert.Equal(t, "error", out.Notices[0].Kind)
	assert.Equal(t, safetyBlock.Message, out.Notices[0].Message)
	assert.Equal(t, int64(5000), out.Notices[0].DismissAfterMS)

	resp = post(t, srv.URL+"/v1/sessions/"+sess.ID+"/repair")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out = decode[outcomeBody](t, resp)
	assert.Equal(t, "done", out.Status)
	assert.Equal(t, "done", out.State)
	assert.Equal(t, "done", out.History[len(out.History)-1])
	require.Len(t, out.Notices, 2)
	assert.Equal(t, imagegen.RepairStartedMessage, out.Notices[0].Message)
	assert.Equal(t, imagegen.RepairSucceededMessage, out.Notices[1].Message)
	genCalls, editCalls, last := gen.calls()
	assert.Equal(t, 1, editCalls)
	assert.Equal(t, 2, genCalls)
	assert.Equal(t, domain.LayoutSpread, last.Layout)
	assert.Equal(t, "no-people", string(last.Source.Data))

	resp, err := http.Get(srv.URL + "/v1/sessions/" + sess.ID + "/source")
	require.NoError(t, err)
	var src bytes.Buffer
	_, _ = src.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "no-people", src.String())

	resp = post(t, srv.URL+"/v1/sessions/"+sess.ID+"/repair")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "repair_unavailable", body.Error.Code)

	resp, err = http.Get(srv.URL + "/v1/stats")
	require.NoError(t, err)
	stats := decode[struct {
		RequestFail      int64            `json:"request_fail"`
		RepairsSucceeded int64            `json:"repairs_succeeded"`
		FailuresByKind   map[string]int64 `json:"failures_by_kind"`
	}](t, resp)
	assert.Equal(t, int64(1), stats.RequestFail)
	assert.Equal(t, int64(1), stats.RepairsSucceeded)
	assert.Equal(t, int64(1), stats.FailuresByKind["safety_blocked"])
}

func TestRepairNotOfferedForOtherFailures(t *testing.T) {
	gen := &scriptedGenerator{genResults: []genResult{{err: &domain.Failure{
		Kind:    domain.FailureNoImageProduced,
		Reason:  "IMAGE_OTHER",
		Message: "The model could not produce an image.",
	}}}}
	srv := newTestServer(t, gen)
	sess := createSession(t, srv, 100, 100, map[string]string{"design_type": "book"})

	resp := post(t, srv.URL+"/v1/sessions/"+sess.ID+"/generate")
	out := decode[outcomeBody](t, resp)
	assert.Equal(t, "failed", out.Status)
	assert.False(t, out.RepairAvailable)

	resp = post(t, srv.URL+"/v1/sessions/"+sess.ID+"/repair")
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_, editCalls, _ := gen.calls()
	assert.Zero(t, editCalls)
}

func TestFailedRetryDoesNotOfferRepairAgain(t *testing.T) {
	gen := &scriptedGenerator{
		genResults: []genResult{{err: safetyBlock}},
		editImg:    domain.Image{Data: []byte("no-people")},
	}
	srv := newTestServer(t, gen)
	sess := createSession(t, srv, 100, 100, map[string]string{"design_type": "book"})

	post(t, srv.URL+"/v1/sessions/"+sess.ID+"/generate").Body.Close()

	resp := post(t, srv.URL+"/v1/sessions/"+sess.ID+"/repair")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[outcomeBody](t, resp)
	assert.Equal(t, "failed", out.Status)
	assert.Equal(t, "failed", out.State)
	assert.False(t, out.RepairAvailable)

	resp, err := http.Get(srv.URL + "/v1/sessions/" + sess.ID)
	require.NoError(t, err)
	got := decode[sessionBody](t, resp)
	assert.False(t, got.RepairAvailable)
}

func TestSecondOperationWhileBusyIsRejected(t *testing.T) {
	gen := &scriptedGenerator{
		genResults: []genResult{{img: domain.Image{Data: []byte("x"), MIMEType: "image/png"}}},
		block:      make(chan struct{}),
		started:    make(chan struct{}, 1),
	}
	srv := newTestServer(t, gen)
	sess := createSession(t, srv, 100, 100, map[string]string{"design_type": "book"})

	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/v1/sessions/"+sess.ID+"/generate", "application/json", nil)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	select {
	case <-gen.started:
	case <-time.After(2 * time.Second):
		t.Fatal("generation did not start")
	}

	resp := post(t, srv.URL+"/v1/sessions/"+sess.ID+"/generate")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "busy", body.Error.Code)

	resp = upload(t, srv.URL+"/v1/sessions/"+sess.ID+"/image", http.MethodPut, pngBytes(t, 10, 10), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(gen.block)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestUpdateSelectionsAndDelete(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{})
	sess := createSession(t, srv, 100, 100, nil)

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/v1/sessions/"+sess.ID, bytes.NewBufferString(`{"design_type":"Book","style":"corporate"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[sessionBody](t, resp)
	assert.Equal(t, "book", got.DesignType)
	assert.Equal(t, "corporate", got.Style)
	assert.Equal(t, "Book Cover", got.Subject)

	req, err = http.NewRequest(http.MethodPatch, srv.URL+"/v1/sessions/"+sess.ID, bytes.NewBufferString(`{"style":"baroque"}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err = http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions/"+sess.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/sessions/" + sess.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
