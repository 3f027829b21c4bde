package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/export"
	"github.com/wonny/leadscore/internal/storage"
	"github.com/wonny/leadscore/pkg/logger"
)

// FeatureHandler serves the latest persisted feature table
// ⭐ SSOT: 피처 테이블 조회 API는 이 구조체에서만
type FeatureHandler struct {
	store   contracts.FeatureStore
	maxRows int
	logger  *logger.Logger
}

// NewFeatureHandler creates a new feature handler
func NewFeatureHandler(store contracts.FeatureStore, maxRows int, log *logger.Logger) *FeatureHandler {
	return &FeatureHandler{
		store:   store,
		maxRows: maxRows,
		logger:  log,
	}
}

// FeaturesResponse is one page of feature rows
type FeaturesResponse struct {
	FirmographicColumns []string                `json:"firmographic_columns"`
	EmployeeMidpoint    bool                    `json:"employee_midpoint"`
	Schema              contracts.FeatureSchema `json:"schema"`
	Total               int                     `json:"total"`
	Offset              int                     `json:"offset"`
	Rows                []contracts.FeatureRow  `json:"rows"`
}

// GetLatestRun returns the report of the latest run
// GET /api/runs/latest
func (h *FeatureHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.LatestRun(r.Context())
	if err != nil {
		storeError(w, h.logger, err, "Failed to retrieve latest run")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// ListFeatures returns a page of the latest table.
// Query: offset, limit (capped at maxRows), format=json|csv
// GET /api/features
func (h *FeatureHandler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		respondError(w, http.StatusBadRequest, "Invalid 'offset' (expected non-negative integer)")
		return
	}
	limit, err := intParam(q.Get("limit"), h.maxRows)
	if err != nil || limit <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid 'limit' (expected positive integer)")
		return
	}
	if limit > h.maxRows {
		limit = h.maxRows
	}

	format := strings.ToLower(q.Get("format"))
	if format != "" && format != "json" && format != "csv" {
		respondError(w, http.StatusBadRequest, "Invalid 'format' (expected json or csv)")
		return
	}

	table, err := h.store.LatestTable(r.Context())
	if err != nil {
		storeError(w, h.logger, err, "Failed to retrieve feature table")
		return
	}

	page := slice(table, offset, limit)

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("X-Total-Count", strconv.Itoa(table.Count()))
		w.WriteHeader(http.StatusOK)
		if err := export.WriteTable(w, page); err != nil {
			h.logger.WithError(err).Error("Failed to stream feature csv")
		}
		return
	}

	respondJSON(w, http.StatusOK, FeaturesResponse{
		FirmographicColumns: page.FirmographicColumns,
		EmployeeMidpoint:    page.EmployeeMidpoint,
		Schema:              page.Schema,
		Total:               table.Count(),
		Offset:              offset,
		Rows:                page.Rows,
	})
}

// GetEntityFeatures returns every row of one entity in date order
// GET /api/features/{entity}
func (h *FeatureHandler) GetEntityFeatures(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entity"]

	table, err := h.store.LatestTable(r.Context())
	if err != nil {
		storeError(w, h.logger, err, "Failed to retrieve feature table")
		return
	}

	rows := table.ByEntity(entityID)
	if len(rows) == 0 {
		respondError(w, http.StatusNotFound, "No feature rows for entity")
		return
	}

	respondJSON(w, http.StatusOK, FeaturesResponse{
		FirmographicColumns: table.FirmographicColumns,
		EmployeeMidpoint:    table.EmployeeMidpoint,
		Schema:              table.Schema,
		Total:               len(rows),
		Rows:                rows,
	})
}

func storeError(w http.ResponseWriter, log *logger.Logger, err error, message string) {
	if errors.Is(err, storage.ErrNoRun) {
		respondError(w, http.StatusNotFound, "No feature run has been built yet")
		return
	}
	log.WithError(err).Error(message)
	respondError(w, http.StatusInternalServerError, message)
}

// slice returns a view of the table restricted to [offset, offset+limit)
func slice(table *contracts.FeatureTable, offset, limit int) *contracts.FeatureTable {
	page := *table
	if offset >= len(table.Rows) {
		page.Rows = []contracts.FeatureRow{}
		return &page
	}
	end := offset + limit
	if end > len(table.Rows) {
		end = len(table.Rows)
	}
	page.Rows = table.Rows[offset:end]
	return &page
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
