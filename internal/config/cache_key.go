package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamQuestionSetsKey returns the cache key for all question sets of an exam
func (r *CacheKeyStruct) ExamQuestionSetsKey(examID string) string {
	return fmt.Sprintf("exam:%s:question_sets", examID)
}

// StudentAssignedSetKey returns the cache key for a student's explicit question-set assignment
func (r *CacheKeyStruct) StudentAssignedSetKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:assigned_set", studentID, examID)
}

// ExamReleaseLockKey returns the key guarding a single in-flight auto-release per exam
func (r *CacheKeyStruct) ExamReleaseLockKey(examID string) string {
	return fmt.Sprintf("exam:%s:release_lock", examID)
}

var CacheKey = NewCacheKeyStruct()
