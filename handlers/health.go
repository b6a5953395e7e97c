package handlers

import "net/http"

type HealthHandler struct {
	LookupAvailable bool
	// optional gauges; nil funcs are reported as zero
	PendingJobs func() int
	Sessions    func() int
	Listeners   func() int
}

type HealthResponse struct {
	Status          string `json:"status"`
	LookupAvailable bool   `json:"lookup_available"`
	PendingJobs     int    `json:"pending_jobs"`
	Sessions        int    `json:"sessions"`
	Listeners       int    `json:"listeners"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		LookupAvailable: h.LookupAvailable,
		PendingJobs:     gauge(h.PendingJobs),
		Sessions:        gauge(h.Sessions),
		Listeners:       gauge(h.Listeners),
	})
}

func gauge(f func() int) int {
	if f == nil {
		return 0
	}
	return f()
}
