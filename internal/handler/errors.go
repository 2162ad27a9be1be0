package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-results/internal/response"
	"github.com/stemsi/exstem-results/internal/service"
)

// failFromError maps service sentinels onto the response envelope. Anything
// unrecognised is logged and reported as an internal error.
func failFromError(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSubmissionNotFound)
	case errors.Is(err, service.ErrResultNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrResultNotFound)
	case errors.Is(err, service.ErrResultNotPublished):
		response.Fail(c, http.StatusForbidden, response.ErrResultNotPublished)
	case errors.Is(err, service.ErrNoQuestionSet):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestionSet)
	case errors.Is(err, service.ErrUnknownQuestion):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrUnknownQuestion,
			map[string]string{"detail": err.Error()})
	case errors.Is(err, service.ErrNotLongForm):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrQuestionNotLongForm,
			map[string]string{"detail": err.Error()})
	default:
		log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", response.RequestID(c)).
			Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// uuidParam parses a UUID path parameter, answering 400 when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
