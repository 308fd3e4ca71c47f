package handlers

import (
	"net/http"

	"github.com/stockhunter/stockhunter/internal/store"
	"github.com/stockhunter/stockhunter/internal/watchlist"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// StatusHandler reports the state of the local series store
type StatusHandler struct {
	store  *store.Store
	watch  *watchlist.Store
	logger *logger.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(st *store.Store, watch *watchlist.Store, log *logger.Logger) *StatusHandler {
	return &StatusHandler{store: st, watch: watch, logger: log}
}

// Get returns series counts and data freshness
// GET /api/status
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.List()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list series")
		respondError(w, http.StatusInternalServerError, "Failed to inspect data dir")
		return
	}

	// Tail reads only, so the scan stays cheap even for a full market.
	latest := ""
	for _, sym := range symbols {
		d, err := h.store.LastDate(sym)
		if err != nil {
			continue
		}
		if d > latest {
			latest = d
		}
	}

	codes, err := h.watch.Load()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load watchlist")
		respondError(w, http.StatusInternalServerError, "Failed to load watchlist")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data_dir":    h.store.Dir(),
		"symbols":     len(symbols),
		"latest_date": latest,
		"watchlist":   len(codes),
	})
}
