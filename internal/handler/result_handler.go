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
)

// ReleaseAPI is the part of the release service the HTTP layer uses.
type ReleaseAPI interface {
	FinalizeAndRelease(ctx context.Context, examID uuid.UUID) (service.ReleaseReport, error)
	ListResults(ctx context.Context, examID uuid.UUID) ([]model.Result, error)
	CheckStudentSubmission(ctx context.Context, examID uuid.UUID, studentID int) (model.Submission, error)
	StudentResult(ctx context.Context, examID uuid.UUID, studentID int) (model.Result, error)
}

// ExamQueue schedules asynchronous re-evaluation of an exam's submissions.
type ExamQueue interface {
	EnqueueExam(ctx context.Context, examID uuid.UUID) (int, error)
}

// ResultHandler handles the admin result and release endpoints.
type ResultHandler struct {
	release ReleaseAPI
	queue   ExamQueue
	log     zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(release ReleaseAPI, queue ExamQueue, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		release: release,
		queue:   queue,
		log:     log.With().Str("component", "result_handler").Logger(),
	}
}

// ReleaseResults godoc
// POST /api/v1/admin/exams/:exam_id/release
// Closes every open submission, publishes ranked results and notifies students.
func (h *ResultHandler) ReleaseResults(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	report, err := h.release.FinalizeAndRelease(c.Request.Context(), examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": report})
}

// ListResults godoc
// GET /api/v1/admin/exams/:exam_id/results
func (h *ResultHandler) ListResults(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	results, err := h.release.ListResults(c.Request.Context(), examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results, "total": len(results)})
}

// ReevaluateExam godoc
// POST /api/v1/admin/exams/:exam_id/reevaluate
// Queues every submitted submission of the exam for re-evaluation.
func (h *ResultHandler) ReevaluateExam(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	n, err := h.queue.EnqueueExam(c.Request.Context(), examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"queued": n})
}
