package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-results/internal/model"
)

// ContactRepository resolves notification addresses of students with a result.
type ContactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

// ListByExam returns one contact per student holding a result for the exam.
// Students without an email come back with an empty Email.
func (r *ContactRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Contact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.name, COALESCE(s.email, '')
		 FROM results r
		 JOIN students s ON s.id = r.student_id
		 WHERE r.exam_id = $1
		 ORDER BY s.id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.StudentID, &c.Name, &c.Email); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
