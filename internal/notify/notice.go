package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the visual category of a notice.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// DefaultDismissAfter is how long the UI shows a notice before hiding it.
const DefaultDismissAfter = 5 * time.Second

// Notice is a transient message for the user.
type Notice struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Message      string    `json:"message"`
	DismissAfter int64     `json:"dismiss_after_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// New builds a notice with a fresh id.
func New(kind Kind, message string, dismissAfter time.Duration) Notice {
	if dismissAfter <= 0 {
		dismissAfter = DefaultDismissAfter
	}
	return Notice{
		ID:           uuid.NewString(),
		Kind:         kind,
		Message:      message,
		DismissAfter: dismissAfter.Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
}

// Notifier delivers notices. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, message string)
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Notify(context.Context, Kind, string) {}

// Recorder keeps the notices emitted during one request so they can be
// returned in the response body.
type Recorder struct {
	dismissAfter time.Duration

	mu      sync.Mutex
	notices []Notice
}

func NewRecorder(dismissAfter time.Duration) *Recorder {
	return &Recorder{dismissAfter: dismissAfter}
}

func (r *Recorder) Notify(_ context.Context, kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, New(kind, message, r.dismissAfter))
}

// Notices returns the recorded notices in emission order.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Multi fans a notice out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, kind Kind, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, kind, message)
		}
	}
}
