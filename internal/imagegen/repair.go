package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/infra"
	"mockupstudio/internal/notify"
)

// State is a step of the repair-and-retry flow.
type State string

const (
	StateIdle      State = "idle"
	StateRepairing State = "repairing"
	StateRetrying  State = "retrying"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

var allowedTransitions = map[State][]State{
	StateIdle:      {StateRepairing},
	StateRepairing: {StateRetrying, StateFailed},
	StateRetrying:  {StateDone, StateFailed},
}

var (
	ErrNotEligible       = errors.New("repair is only offered after a safety-blocked failure")
	ErrFlowFinished      = errors.New("repair flow already ran")
	ErrIllegalTransition = errors.New("illegal repair state transition")
)

const (
	RepairStartedMessage   = "Attempting to repair the image with AI..."
	RepairSucceededMessage = "Image repaired! Retrying mockup generation..."
)

// RepairResult is the terminal outcome of a flow. Err holds the edit or retry
// failure when State is StateFailed.
type RepairResult struct {
	State   State
	Image   domain.Image
	Err     error
	History []State
}

// RepairFlow removes people from a safety-blocked design and retries the
// mockup exactly once. A flow is single use.
type RepairFlow struct {
	gen      Generator
	holder   SourceHolder
	notifier Notifier
	logger   *infra.Logger

	mu      sync.Mutex
	state   State
	history []State
}

func NewRepairFlow(gen Generator, holder SourceHolder, notifier Notifier, logger *infra.Logger) *RepairFlow {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &RepairFlow{
		gen:      gen,
		holder:   holder,
		notifier: notifier,
		logger:   logger,
		state:    StateIdle,
		history:  []State{StateIdle},
	}
}

// State returns the current step.
func (f *RepairFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// History returns every state visited so far, starting with StateIdle.
func (f *RepairFlow) History() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]State, len(f.history))
	copy(out, f.history)
	return out
}

func (f *RepairFlow) transition(to State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, next := range allowedTransitions[f.state] {
		if next == to {
			f.state = to
			f.history = append(f.history, to)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, f.state, to)
}

// Run executes the flow for req, which failed with cause. The returned error
// is non-nil only when the flow could not start; model failures are reported
// through RepairResult.Err.
func (f *RepairFlow) Run(ctx context.Context, req domain.GenerationRequest, cause error) (RepairResult, error) {
	if !domain.IsSafetyBlocked(cause) {
		return RepairResult{}, ErrNotEligible
	}
	if err := f.transition(StateRepairing); err != nil {
		return RepairResult{}, ErrFlowFinished
	}

	f.notifier.Notify(ctx, notify.KindSuccess, RepairStartedMessage)

	original := f.holder.Source()
	edited, err := f.gen.EditRemovePeople(ctx, original)
	if err != nil {
		f.logger.Warn().Err(err).Str("kind", string(domain.KindOf(err))).Msg("repair: edit failed")
		return f.finish(StateFailed, domain.Image{}, err)
	}

	mime := edited.MIMEType
	if mime == "" {
		mime = original.MIMEType
	}
	repaired := domain.SourceImage{
		Data:     edited.Data,
		MIMEType: mime,
		Layout:   original.Layout,
		Width:    original.Width,
		Height:   original.Height,
	}
	f.holder.ReplaceSource(repaired)
	f.notifier.Notify(ctx, notify.KindSuccess, RepairSucceededMessage)

	if err := f.transition(StateRetrying); err != nil {
		return RepairResult{}, err
	}

	retry := req
	retry.Source = repaired
	img, err := f.gen.Generate(ctx, retry)
	if err != nil {
		f.logger.Warn().Err(err).Str("kind", string(domain.KindOf(err))).Msg("repair: retry failed")
		return f.finish(StateFailed, domain.Image{}, err)
	}

	f.logger.Info().Int("bytes", len(img.Data)).Msg("repair: mockup generated after repair")
	return f.finish(StateDone, img, nil)
}

func (f *RepairFlow) finish(to State, img domain.Image, err error) (RepairResult, error) {
	if tErr := f.transition(to); tErr != nil {
		return RepairResult{}, tErr
	}
	return RepairResult{
		State:   to,
		Image:   img,
		Err:     err,
		History: f.History(),
	}, nil
}
