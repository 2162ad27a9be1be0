package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-results/internal/model"
	"github.com/stemsi/exstem-results/internal/response"
	"github.com/stemsi/exstem-results/internal/service"
	"github.com/stemsi/exstem-results/internal/validator"
)

// EvaluationAPI is the part of the evaluation service the HTTP layer uses.
type EvaluationAPI interface {
	EvaluateByID(ctx context.Context, submissionID uuid.UUID) (service.ScoreBreakdown, error)
	SaveManualMarks(ctx context.Context, submissionID uuid.UUID, req model.ManualMarksRequest) (service.ScoreBreakdown, error)
}

// EvaluationHandler handles grading endpoints for a single submission.
type EvaluationHandler struct {
	eval EvaluationAPI
	log  zerolog.Logger
}

// NewEvaluationHandler creates a new EvaluationHandler.
func NewEvaluationHandler(eval EvaluationAPI, log zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		eval: eval,
		log:  log.With().Str("component", "evaluation_handler").Logger(),
	}
}

// EvaluateSubmission godoc
// POST /api/v1/admin/submissions/:submission_id/evaluate
func (h *EvaluationHandler) EvaluateSubmission(c *gin.Context) {
	id, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}

	breakdown, err := h.eval.EvaluateByID(c.Request.Context(), id)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"breakdown": breakdown})
}

// SaveManualMarks godoc
// PUT /api/v1/admin/submissions/:submission_id/manual-marks
// Stores grader marks for long-form questions and re-evaluates the submission.
func (h *EvaluationHandler) SaveManualMarks(c *gin.Context) {
	id, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}

	var req model.ManualMarksRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	breakdown, err := h.eval.SaveManualMarks(c.Request.Context(), id, req)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"breakdown": breakdown})
}
