package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/handoff"
	"github.com/wonny/leadscore/pkg/logger"
)

// HandoffHandler is the boundary to the scoring and segmentation
// collaborators. It only reads the feature table.
type HandoffHandler struct {
	store    contracts.FeatureStore
	taxonomy *handoff.Taxonomy
	maxRows  int
	logger   *logger.Logger
}

// NewHandoffHandler creates a new handoff handler
func NewHandoffHandler(store contracts.FeatureStore, taxonomy *handoff.Taxonomy, maxRows int, log *logger.Logger) *HandoffHandler {
	return &HandoffHandler{
		store:    store,
		taxonomy: taxonomy,
		maxRows:  maxRows,
		logger:   log,
	}
}

// ScoreInput is one externally computed score
type ScoreInput struct {
	EntityID     string  `json:"entity_id"`
	SnapshotDate string  `json:"snapshot_date"` // YYYY-MM-DD
	Score        float64 `json:"score"`
}

// TopRequest carries scores for rows of the latest table
type TopRequest struct {
	K      int          `json:"k"`
	Scores []ScoreInput `json:"scores"`
}

// TopResponse lists the ranked rows
type TopResponse struct {
	Schema contracts.FeatureSchema `json:"schema"`
	Ranked []handoff.Ranked        `json:"ranked"`
}

// Top ranks the latest table by collaborator scores
// POST /api/handoff/top
func (h *HandoffHandler) Top(w http.ResponseWriter, r *http.Request) {
	var req TopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Scores) == 0 {
		respondError(w, http.StatusBadRequest, "'scores' is required")
		return
	}
	if req.K <= 0 || req.K > h.maxRows {
		req.K = h.maxRows
	}

	scores := make([]handoff.Score, len(req.Scores))
	for i, s := range req.Scores {
		date, err := contracts.ParseDate(s.SnapshotDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'snapshot_date' format (expected YYYY-MM-DD)")
			return
		}
		scores[i] = handoff.Score{EntityID: s.EntityID, SnapshotDate: date, Score: s.Score}
	}

	table, err := h.store.LatestTable(r.Context())
	if err != nil {
		storeError(w, h.logger, err, "Failed to retrieve feature table")
		return
	}

	ranked, err := handoff.TopK(table, scores, req.K)
	if err != nil {
		var (
			unknown *handoff.UnknownRowError
			invalid *handoff.InvalidScoreError
		)
		if errors.As(err, &unknown) || errors.As(err, &invalid) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to rank feature rows")
		respondError(w, http.StatusInternalServerError, "Failed to rank feature rows")
		return
	}

	respondJSON(w, http.StatusOK, TopResponse{Schema: table.Schema, Ranked: ranked})
}

// AnnotateRequest carries raw collaborator output
type AnnotateRequest struct {
	Text string `json:"text"`
}

// Annotate validates collaborator output against the taxonomy
// POST /api/handoff/annotate
func (h *HandoffHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	var req AnnotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	respondJSON(w, http.StatusOK, handoff.ParseAnnotation(req.Text, h.taxonomy))
}
