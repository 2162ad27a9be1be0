package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-results/internal/clock"
)

// EndedExamLister lists exams that have ended without a published result.
type EndedExamLister interface {
	ListEndedUnpublished(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// ReleaseSweeper periodically offers every ended, unpublished exam to the
// auto-release check. Exams with long-form questions are declined there.
type ReleaseSweeper struct {
	exams    EndedExamLister
	releaser AutoReleaser
	clock    clock.Clock
	interval time.Duration
	log      zerolog.Logger
}

// NewReleaseSweeper creates a new ReleaseSweeper.
func NewReleaseSweeper(exams EndedExamLister, releaser AutoReleaser, clk clock.Clock, interval time.Duration, log zerolog.Logger) *ReleaseSweeper {
	return &ReleaseSweeper{
		exams:    exams,
		releaser: releaser,
		clock:    clk,
		interval: interval,
		log:      log.With().Str("component", "release_sweeper").Logger(),
	}
}

func (s *ReleaseSweeper) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("ReleaseSweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("ReleaseSweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("Release sweep failed")
			}
		}
	}
}

// Sweep runs one pass and returns the exams it released.
func (s *ReleaseSweeper) Sweep(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.exams.ListEndedUnpublished(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}

	var released []uuid.UUID
	for _, id := range ids {
		ok, err := s.releaser.AutoReleaseIfDue(ctx, id)
		if err != nil {
			s.log.Error().Err(err).Str("exam_id", id.String()).Msg("Auto-release failed")
			continue
		}
		if ok {
			released = append(released, id)
		}
	}

	if len(released) > 0 {
		s.log.Info().Int("released", len(released)).Int("candidates", len(ids)).Msg("Release sweep complete")
	}
	return released, nil
}
