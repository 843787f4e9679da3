package handlers

import (
	"net/http"
	"sync"

	"mockupstudio/internal/domain"
)

// usage counts generation outcomes since the process started.
type usage struct {
	mu               sync.Mutex
	mockupGenerated  int64
	requestSuccess   int64
	requestFail      int64
	repairsAttempted int64
	repairsSucceeded int64
	failuresByKind   map[domain.FailureKind]int64
}

func newUsage() *usage {
	return &usage{failuresByKind: make(map[domain.FailureKind]int64)}
}

func (u *usage) success() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.mockupGenerated++
	u.requestSuccess++
}

func (u *usage) failure(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.requestFail++
	u.failuresByKind[domain.KindOf(err)]++
}

func (u *usage) repair(succeeded bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.repairsAttempted++
	if succeeded {
		u.repairsSucceeded++
	}
}

type statsResponse struct {
	MockupGenerated  int64                        `json:"mockup_generated"`
	RequestSuccess   int64                        `json:"request_success"`
	RequestFail      int64                        `json:"request_fail"`
	RepairsAttempted int64                        `json:"repairs_attempted"`
	RepairsSucceeded int64                        `json:"repairs_succeeded"`
	FailuresByKind   map[domain.FailureKind]int64 `json:"failures_by_kind"`
	ActiveSessions   int                          `json:"active_sessions"`
}

func (u *usage) snapshot() statsResponse {
	u.mu.Lock()
	defer u.mu.Unlock()
	kinds := make(map[domain.FailureKind]int64, len(u.failuresByKind))
	for k, v := range u.failuresByKind {
		kinds[k] = v
	}
	return statsResponse{
		MockupGenerated:  u.mockupGenerated,
		RequestSuccess:   u.requestSuccess,
		RequestFail:      u.requestFail,
		RepairsAttempted: u.repairsAttempted,
		RepairsSucceeded: u.repairsSucceeded,
		FailuresByKind:   kinds,
	}
}

func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	resp := a.usage.snapshot()
	resp.ActiveSessions = a.sessions.Len()
	a.json(w, http.StatusOK, resp)
}
