package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stockhunter/stockhunter/internal/watchlist"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// WatchlistHandler manages the watchlist file through the API
type WatchlistHandler struct {
	watch  *watchlist.Store
	logger *logger.Logger
}

// NewWatchlistHandler creates a new watchlist handler
func NewWatchlistHandler(watch *watchlist.Store, log *logger.Logger) *WatchlistHandler {
	return &WatchlistHandler{watch: watch, logger: log}
}

// List returns the watchlisted codes
// GET /api/watchlist
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	codes, err := h.watch.Load()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load watchlist")
		respondError(w, http.StatusInternalServerError, "Failed to load watchlist")
		return
	}
	if codes == nil {
		codes = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"codes": codes,
		"count": len(codes),
	})
}

// AddRequest represents a watchlist addition
type AddRequest struct {
	Code string `json:"code"`
}

// Add appends a code to the watchlist
// POST /api/watchlist
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	added, err := h.watch.Add(req.Code)
	if err != nil {
		h.logger.WithError(err).WithField("code", req.Code).Error("Failed to add to watchlist")
		respondError(w, http.StatusInternalServerError, "Failed to update watchlist")
		return
	}

	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	respondJSON(w, status, map[string]interface{}{
		"code":  req.Code,
		"added": added,
	})
}

// Remove deletes a code from the watchlist
// DELETE /api/watchlist/{code}
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	removed, err := h.watch.Remove(code)
	if err != nil {
		h.logger.WithError(err).WithField("code", code).Error("Failed to remove from watchlist")
		respondError(w, http.StatusInternalServerError, "Failed to update watchlist")
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "Code not on watchlist")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"code":    code,
		"removed": true,
	})
}
