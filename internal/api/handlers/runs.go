package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/pipeline"
	"github.com/wonny/leadscore/pkg/logger"
)

// RunTrigger starts a full pipeline run
type RunTrigger interface {
	Run(ctx context.Context) (*contracts.RunReport, error)
}

// RunHandler exposes manual rebuilds
type RunHandler struct {
	runner RunTrigger
	logger *logger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runner RunTrigger, log *logger.Logger) *RunHandler {
	return &RunHandler{runner: runner, logger: log}
}

// Trigger runs the pipeline synchronously and returns its report
// POST /api/runs
func (h *RunHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.Run(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.WithError(err).Error("Manual pipeline run failed")
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  err.Error(),
			"report": report,
		})
		return
	}

	respondJSON(w, http.StatusCreated, report)
}
