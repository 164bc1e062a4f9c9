package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/core/service"
	"github.com/rl1809/invsnap/internal/port"
)

type HTTPHandler struct {
	snapshotService *service.SnapshotService
	repo            port.SnapshotRepository
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewHTTPHandler builds the HTTP API. repo may be nil when persistence is off.
func NewHTTPHandler(snapshotService *service.SnapshotService, repo port.SnapshotRepository) *HTTPHandler {
	return &HTTPHandler{snapshotService: snapshotService, repo: repo}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck)
	r.Post("/api/snapshot/{marketplace}", h.FetchFullState)
	r.Get("/api/snapshot/{marketplace}/latest", h.LatestSnapshot)
	r.Get("/api/summary/{marketplace}", h.LastSummary)
	return r
}

func marketplaceParam(w http.ResponseWriter, r *http.Request) (domain.Marketplace, bool) {
	mp, err := domain.ParseMarketplace(chi.URLParam(r, "marketplace"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return "", false
	}
	return mp, true
}

func withItems(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("items"))
	return v
}

func (h *HTTPHandler) FetchFullState(w http.ResponseWriter, r *http.Request) {
	mp, ok := marketplaceParam(w, r)
	if !ok {
		return
	}

	snap, err := h.snapshotService.FetchFullState(r.Context(), mp)
	if err != nil {
		status, _, message := mapError(err)
		if status >= http.StatusInternalServerError {
			log.Printf("snapshot %s failed: %v", mp, err)
		}
		writeJSON(w, status, ErrorResponse{Message: message})
		return
	}

	writeJSON(w, http.StatusOK, NewSnapshotView(snap, withItems(r)))
}

func (h *HTTPHandler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	mp, ok := marketplaceParam(w, r)
	if !ok {
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Message: "persistence disabled"})
		return
	}

	snap, err := h.repo.GetLatestSnapshot(r.Context(), mp)
	if err != nil {
		log.Printf("load latest %s snapshot: %v", mp, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Message: "no snapshot yet"})
		return
	}

	writeJSON(w, http.StatusOK, NewSnapshotView(snap, withItems(r)))
}

func (h *HTTPHandler) LastSummary(w http.ResponseWriter, r *http.Request) {
	mp, ok := marketplaceParam(w, r)
	if !ok {
		return
	}

	summary, err := h.snapshotService.LastSummary(r.Context(), mp)
	if err != nil {
		status, _, message := mapError(err)
		writeJSON(w, status, ErrorResponse{Message: message})
		return
	}
	if summary == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Message: "no certified snapshot yet"})
		return
	}

	writeJSON(w, http.StatusOK, summaryView(*summary))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
