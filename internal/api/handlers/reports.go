package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stockhunter/stockhunter/internal/report"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// ReportHandler serves stored analysis and backtest reports
type ReportHandler struct {
	reports *report.Store
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports *report.Store, log *logger.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: log}
}

// List returns the available reports, newest first
// GET /api/reports
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	metas, err := h.reports.List()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list reports")
		respondError(w, http.StatusInternalServerError, "Failed to list reports")
		return
	}
	if metas == nil {
		metas = []report.Meta{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reports": metas,
		"count":   len(metas),
	})
}

// Get returns one report's rows
// GET /api/reports/{name}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	header, rows, err := h.reports.Read(name)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Report not found")
			return
		}
		h.logger.WithError(err).WithField("name", name).Error("Failed to read report")
		respondError(w, http.StatusInternalServerError, "Failed to read report")
		return
	}
	if rows == nil {
		rows = [][]string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    name,
		"columns": header,
		"rows":    rows,
		"count":   len(rows),
	})
}
