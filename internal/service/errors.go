package service

import "errors"

// Domain Errors
var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrNoQuestionSet      = errors.New("no question set can be resolved for submission")
	ErrResultNotFound     = errors.New("result not found")
	ErrResultNotPublished = errors.New("result has not been published")
	ErrUnknownQuestion    = errors.New("question is not part of the submission's question set")
	ErrNotLongForm        = errors.New("manual marks can only be given to long-form questions")
)
