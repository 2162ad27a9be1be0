package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-results/internal/config"
	"github.com/stemsi/exstem-results/internal/model"
)

// storedSet is a question set as kept in PostgreSQL and in the cache: the
// questions document stays raw until it is parsed.
type storedSet struct {
	ID        uuid.UUID       `json:"id"`
	ExamID    uuid.UUID       `json:"exam_id"`
	Name      string          `json:"name"`
	Questions json.RawMessage `json:"questions"`
}

// QuestionSetRepository handles question set and set assignment data access.
type QuestionSetRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewQuestionSetRepository creates a new QuestionSetRepository.
func NewQuestionSetRepository(pool *pgxpool.Pool, log zerolog.Logger) *QuestionSetRepository {
	return &QuestionSetRepository{
		pool: pool,
		log:  log.With().Str("component", "question_set_repository").Logger(),
	}
}

// ListByExam retrieves every question set of an exam with its questions parsed.
func (r *QuestionSetRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.QuestionSet, error) {
	raw, err := r.listStored(ctx, examID)
	if err != nil {
		return nil, err
	}
	return decodeSets(raw, r.log), nil
}

func (r *QuestionSetRepository) listStored(ctx context.Context, examID uuid.UUID) ([]storedSet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, name, questions
		 FROM question_sets WHERE exam_id = $1
		 ORDER BY created_at, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []storedSet
	for rows.Next() {
		var s storedSet
		var doc []byte
		if err := rows.Scan(&s.ID, &s.ExamID, &s.Name, &doc); err != nil {
			return nil, err
		}
		s.Questions = doc
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

// AssignedSetID returns the set explicitly assigned to the student, or nil.
func (r *QuestionSetRepository) AssignedSetID(ctx context.Context, examID uuid.UUID, studentID int) (*uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT question_set_id FROM question_set_assignments
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

// decodeSets parses each stored document. Questions that cannot be decoded are
// logged and left out of their set.
func decodeSets(raw []storedSet, log zerolog.Logger) []model.QuestionSet {
	sets := make([]model.QuestionSet, 0, len(raw))
	for _, s := range raw {
		questions, issues := model.ParseQuestions(s.Questions)
		for _, issue := range issues {
			log.Warn().Err(issue).
				Str("exam_id", s.ExamID.String()).
				Str("question_set_id", s.ID.String()).
				Msg("Skipping unreadable question")
		}
		sets = append(sets, model.QuestionSet{
			ID:        s.ID,
			ExamID:    s.ExamID,
			Name:      s.Name,
			Questions: questions,
		})
	}
	return sets
}

// ----------------------------------------------------------------
// Cached variant
// ----------------------------------------------------------------

// noAssignment marks a cached lookup that found no explicit assignment.
const noAssignment = "-"

// CachedQuestionSetRepository serves question sets and assignments from Redis,
// falling back to PostgreSQL on a miss. Cache failures are logged, never returned.
type CachedQuestionSetRepository struct {
	repo *QuestionSetRepository
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewCachedQuestionSetRepository creates a new CachedQuestionSetRepository.
func NewCachedQuestionSetRepository(repo *QuestionSetRepository, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedQuestionSetRepository {
	return &CachedQuestionSetRepository{
		repo: repo,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "question_set_cache").Logger(),
	}
}

// ListByExam returns the exam's question sets, warming the cache on a miss.
func (c *CachedQuestionSetRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.QuestionSet, error) {
	key := config.CacheKey.ExamQuestionSetsKey(examID.String())

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var raw []storedSet
		if err := json.Unmarshal(data, &raw); err == nil {
			return decodeSets(raw, c.repo.log), nil
		}
		c.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Dropping corrupt question set cache entry")
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Question set cache read failed")
	}

	raw, err := c.repo.listStored(ctx, examID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(raw); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Question set cache write failed")
		} else {
			c.log.Debug().Str("exam_id", examID.String()).Int("sets", len(raw)).Msg("Cache warmed")
		}
	}
	return decodeSets(raw, c.repo.log), nil
}

// AssignedSetID returns the student's assigned set, caching negative lookups too.
func (c *CachedQuestionSetRepository) AssignedSetID(ctx context.Context, examID uuid.UUID, studentID int) (*uuid.UUID, error) {
	key := config.CacheKey.StudentAssignedSetKey(examID.String(), studentID)

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if val == noAssignment {
			return nil, nil
		}
		if id, perr := uuid.Parse(val); perr == nil {
			return &id, nil
		}
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Int("student_id", studentID).Msg("Assignment cache read failed")
	}

	id, err := c.repo.AssignedSetID(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	val = noAssignment
	if id != nil {
		val = id.String()
	}
	if err := c.rdb.Set(ctx, key, val, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Int("student_id", studentID).Msg("Assignment cache write failed")
	}
	return id, nil
}

// Invalidate drops the cached question sets of an exam.
func (c *CachedQuestionSetRepository) Invalidate(ctx context.Context, examID uuid.UUID) error {
	if err := c.rdb.Del(ctx, config.CacheKey.ExamQuestionSetsKey(examID.String())).Err(); err != nil {
		return fmt.Errorf("invalidate question sets: %w", err)
	}
	return nil
}
