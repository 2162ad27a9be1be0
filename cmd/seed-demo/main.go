package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stemsi/exstem-results/internal/config"
	"github.com/stemsi/exstem-results/internal/database"
	"github.com/stemsi/exstem-results/internal/logger"
)

// demoQuestions is an objective-only set, so the sweeper releases the exam on
// its own once the submissions are evaluated.
var demoQuestions = []map[string]interface{}{
	{"id": "q1", "type": "MCQ", "marks": 2, "text": "2 + 2 = ?",
		"options": []map[string]interface{}{{"text": "3"}, {"text": "4", "isCorrect": true}, {"text": "5"}}},
	{"id": "q2", "type": "MC", "marks": 4, "text": "Bilangan prima",
		"options": []map[string]interface{}{{"text": "2", "isCorrect": true}, {"text": "4"}, {"text": "7", "isCorrect": true}}},
	{"id": "q3", "type": "INT", "marks": 3, "text": "12 x 12 = ?", "correctAnswer": 144},
	{"id": "q4", "type": "AR", "marks": 3, "assertion": "Air mendidih pada 100 C", "reason": "Tekanan 1 atm", "correctOption": 1},
}

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
	"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questions, _ := json.Marshal(demoQuestions)
	now := time.Now()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var examID, setID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO exams (title, total_marks, negative_marking_percent, partial_marking,
		                    objective_time_minutes, starts_at, ends_at, expected_candidates)
		 VALUES ($1, 12, 25, TRUE, 60, $2, $3, $4) RETURNING id`,
		"Demo Ujian "+now.Format("2006-01-02 15:04"), now.Add(-2*time.Hour), now.Add(-time.Hour), len(names),
	).Scan(&examID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}
	if err := tx.QueryRow(ctx,
		`INSERT INTO question_sets (exam_id, name, questions) VALUES ($1, 'A', $2) RETURNING id`,
		examID, questions,
	).Scan(&setID); err != nil {
		log.Fatal().Err(err).Msg("Failed to create question set")
	}

	fmt.Printf("=== Seeding %d students into exam %s ===\n", len(names), examID)

	rng := rand.New(rand.NewSource(now.UnixNano()))
	batch := &pgx.Batch{}
	for i, name := range names {
		answers, _ := json.Marshal(randomAnswers(rng))
		started := now.Add(-2 * time.Hour)
		submitted := started.Add(time.Duration(20+rng.Intn(40)) * time.Minute)
		batch.Queue(
			`WITH s AS (
			     INSERT INTO students (name, email) VALUES ($1, $2) RETURNING id
			 )
			 INSERT INTO submissions (exam_id, student_id, question_set_id, answers,
			                          objective_status, objective_started_at, objective_submitted_at,
			                          long_form_status, status, started_at, submitted_at)
			 SELECT $3, s.id, $4, $5, 'SUBMITTED', $6, $7, 'NOT_STARTED', 'SUBMITTED', $6, $7 FROM s`,
			name, fmt.Sprintf("user%d@example.com", i+1), examID, setID, answers, started, submitted,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range names {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			log.Fatal().Err(err).Str("student", names[i]).Msg("Failed to seed submission")
		}
	}
	if err := br.Close(); err != nil {
		log.Fatal().Err(err).Msg("Failed to close batch")
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to commit seed")
	}

	fmt.Printf("\nSeed completed! Run `resultctl reevaluate %s` to queue evaluation.\n", examID)
}

// randomAnswers leaves some questions unanswered and gets others wrong.
func randomAnswers(rng *rand.Rand) map[string]interface{} {
	answers := map[string]interface{}{}
	if rng.Intn(5) > 0 {
		answers["q1"] = []string{"3", "4", "4", "4", "5"}[rng.Intn(5)]
	}
	if rng.Intn(5) > 0 {
		answers["q2"] = [][]int{{0, 2}, {0}, {0, 1}, {2}}[rng.Intn(4)]
	}
	if rng.Intn(4) > 0 {
		answers["q3"] = []int{144, 144, 124, 142}[rng.Intn(4)]
	}
	if rng.Intn(3) > 0 {
		answers["q4"] = 1 + rng.Intn(4)
	}
	return answers
}
