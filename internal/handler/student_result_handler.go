package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-results/internal/middleware"
	"github.com/stemsi/exstem-results/internal/response"
)

// StudentResultHandler serves a student's own submission state and result.
type StudentResultHandler struct {
	release ReleaseAPI
	log     zerolog.Logger
}

// NewStudentResultHandler creates a new StudentResultHandler.
func NewStudentResultHandler(release ReleaseAPI, log zerolog.Logger) *StudentResultHandler {
	return &StudentResultHandler{
		release: release,
		log:     log.With().Str("component", "student_result_handler").Logger(),
	}
}

// GetSubmission godoc
// GET /api/v1/student/exams/:exam_id/submission
// Returns the submission after applying any due section auto-submission.
func (h *StudentResultHandler) GetSubmission(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	sub, err := h.release.CheckStudentSubmission(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// GetResult godoc
// GET /api/v1/student/exams/:exam_id/result
// Returns the student's published result. May release an objective-only exam.
func (h *StudentResultHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	result, err := h.release.StudentResult(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}
