package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/imagegen"
	"mockupstudio/internal/middleware"
	"mockupstudio/internal/notify"
)

const (
	statusDone   = "done"
	statusFailed = "failed"
)

type failureView struct {
	Kind    domain.FailureKind `json:"kind"`
	Reason  string             `json:"reason,omitempty"`
	Message string             `json:"message"`
}

type outcomeView struct {
	Status          string          `json:"status"`
	Image           string          `json:"image,omitempty"`
	MIMEType        string          `json:"mime_type,omitempty"`
	Failure         *failureView    `json:"failure,omitempty"`
	RepairAvailable bool            `json:"repair_available"`
	Notices         []notify.Notice `json:"notices,omitempty"`
}

func newOutcomeView(img *domain.Image, err error, repairable bool, notices []notify.Notice) outcomeView {
	if err != nil {
		fv := &failureView{Kind: domain.KindOf(err), Message: domain.UserMessage(err)}
		var f *domain.Failure
		if errors.As(err, &f) {
			fv.Reason = f.Reason
		}
		return outcomeView{Status: statusFailed, Failure: fv, RepairAvailable: repairable, Notices: notices}
	}
	ov := outcomeView{Status: statusDone, Notices: notices}
	if img != nil {
		ov.Image = dataURL(*img)
		ov.MIMEType = img.MIMEType
	}
	return ov
}

func dataURL(img domain.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = domain.MIMEPNG
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Generate renders a mockup from the session's current image and selections.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
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

	req, err := sess.Request()
	if err != nil {
		a.fail(w, err)
		return
	}

	ctx := r.Context()
	rec := notify.NewRecorder(a.dismiss)
	notifier := notify.Multi{rec, a.hub.For(sess.ID)}
	log := a.logger.With().
		Str("request_id", middleware.RequestIDFromContext(ctx)).
		Str("session_id", sess.ID).
		Str("subject", req.Subject()).
		Str("style", string(req.Style)).
		Logger()

	start := time.Now()
	img, err := a.generator.Generate(ctx, req)
	if err != nil {
		sess.RecordFailure(err, true)
		a.usage.failure(err)
		notifier.Notify(ctx, notify.KindError, domain.UserMessage(err))
		log.Warn().Err(err).Str("kind", string(domain.KindOf(err))).Dur("elapsed", time.Since(start)).Msg("mockup generation failed")
		a.json(w, http.StatusOK, newOutcomeView(nil, err, sess.RepairAvailable(), rec.Notices()))
		return
	}

	sess.RecordSuccess(img)
	a.usage.success()
	log.Info().Int("bytes", len(img.Data)).Dur("elapsed", time.Since(start)).Msg("mockup generated")
	a.json(w, http.StatusOK, newOutcomeView(&img, nil, false, rec.Notices()))
}

type repairResponse struct {
	outcomeView
	State   imagegen.State   `json:"state"`
	History []imagegen.State `json:"history"`
}

// Repair removes people from a safety-blocked design and retries the mockup once.
func (a *App) Repair(w http.ResponseWriter, r *http.Request) {
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

	if !sess.RepairAvailable() {
		a.fail(w, domain.ErrRepairNotOffered)
		return
	}
	req, err := sess.Request()
	if err != nil {
		a.fail(w, err)
		return
	}

	ctx := r.Context()
	rec := notify.NewRecorder(a.dismiss)
	notifier := notify.Multi{rec, a.hub.For(sess.ID)}
	log := a.logger.With().
		Str("request_id", middleware.RequestIDFromContext(ctx)).
		Str("session_id", sess.ID).
		Logger()

	flow := imagegen.NewRepairFlow(a.generator, sess, notifier, &log)
	res, err := flow.Run(ctx, req, sess.Outcome().Err)
	if err != nil {
		a.fail(w, err)
		return
	}

	var out outcomeView
	if res.Err != nil {
		sess.RecordFailure(res.Err, false)
		a.usage.failure(res.Err)
		a.usage.repair(false)
		notifier.Notify(ctx, notify.KindError, domain.UserMessage(res.Err))
		out = newOutcomeView(nil, res.Err, false, rec.Notices())
	} else {
		sess.RecordSuccess(res.Image)
		a.usage.success()
		a.usage.repair(true)
		out = newOutcomeView(&res.Image, nil, false, rec.Notices())
	}
	log.Info().Str("state", string(res.State)).Msg("repair finished")

	a.json(w, http.StatusOK, repairResponse{outcomeView: out, State: res.State, History: res.History})
}

// Events streams the session's notices over a WebSocket.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	a.hub.ServeWS(w, r, sess.ID)
}
