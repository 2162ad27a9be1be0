package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-results/internal/clock"
	"github.com/stemsi/exstem-results/internal/config"
	"github.com/stemsi/exstem-results/internal/database"
	"github.com/stemsi/exstem-results/internal/notify"
	"github.com/stemsi/exstem-results/internal/repository"
	"github.com/stemsi/exstem-results/internal/scoring"
	"github.com/stemsi/exstem-results/internal/service"
	"github.com/stemsi/exstem-results/internal/worker"
)

// App holds the connected infrastructure and the services built on it.
// The server and the CLI share it.
type App struct {
	Pool *pgxpool.Pool
	RDB  *redis.Client

	Exams        *repository.ExamRepository
	QuestionSets *repository.CachedQuestionSetRepository
	Submissions  *repository.SubmissionRepository

	Evaluation *service.EvaluationService
	Release    *service.ReleaseService
	Queue      *worker.ExamQueue
}

// New connects to PostgreSQL and Redis and wires every service.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	grades, err := loadGradeTable(cfg.GradeTable)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := database.MigrateUp(cfg.MigrationsDir, cfg.DatabaseURL); err != nil {
			return nil, err
		}
		log.Info().Str("dir", cfg.MigrationsDir).Msg("Migrations applied")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	sender, err := notify.New(cfg.NotificationSink, rdb, log)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, err
	}

	// ─── Repositories ──────────────────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	setRepo := repository.NewCachedQuestionSetRepository(
		repository.NewQuestionSetRepository(pool, log), rdb, cfg.QuestionSetTTL, log)
	submissionRepo := repository.NewSubmissionRepository(pool, log)
	resultRepo := repository.NewResultRepository(pool)
	reviewRepo := repository.NewReviewRequestRepository(pool)
	contactRepo := repository.NewContactRepository(pool)
	releaseLock := repository.NewRedisReleaseLock(rdb, cfg.ReleaseLockTimeout)

	// ─── Services ──────────────────────────────────────────────────────
	clk := clock.System{}
	evaluation := service.NewEvaluationService(examRepo, setRepo, submissionRepo, resultRepo, grades, clk, log)
	release := service.NewReleaseService(service.ReleaseDeps{
		Submissions:       submissionRepo,
		Results:           resultRepo,
		Reviews:           reviewRepo,
		Contacts:          contactRepo,
		Sender:            sender,
		Evaluation:        evaluation,
		Guard:             releaseLock,
		Clock:             clk,
		Grace:             cfg.SubmissionGrace,
		NotifyConcurrency: cfg.NotifyConcurrency,
	}, log)

	return &App{
		Pool:         pool,
		RDB:          rdb,
		Exams:        examRepo,
		QuestionSets: setRepo,
		Submissions:  submissionRepo,
		Evaluation:   evaluation,
		Release:      release,
		Queue:        worker.NewExamQueue(rdb, submissionRepo),
	}, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	_ = a.RDB.Close()
	a.Pool.Close()
}

func loadGradeTable(raw string) (*scoring.GradeTable, error) {
	bands, err := config.ParseGradeTable(raw)
	if err != nil {
		return nil, fmt.Errorf("parse GRADE_TABLE: %w", err)
	}
	grades, err := scoring.NewGradeTable(bands)
	if err != nil {
		return nil, fmt.Errorf("build grade table: %w", err)
	}
	return grades, nil
}
