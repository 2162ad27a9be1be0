// Package notify delivers result notifications. Rendering and mail delivery
// happen downstream; senders only hand the request off.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-results/internal/config"
)

// ResultNotification is the template data of one result email.
type ResultNotification struct {
	StudentID   int       `json:"student_id"`
	StudentName string    `json:"student_name"`
	ExamID      uuid.UUID `json:"exam_id"`
	ExamTitle   string    `json:"exam_title"`
	Total       float64   `json:"total"`
	TotalMarks  float64   `json:"total_marks"`
	Percentage  float64   `json:"percentage"`
	Grade       string    `json:"grade"`
	Rank        int       `json:"rank"`
	PublishedAt time.Time `json:"published_at"`
}

// Sender dispatches one notification to address.
type Sender interface {
	Send(ctx context.Context, address string, n ResultNotification) error
}

type queuedNotification struct {
	Address string             `json:"address"`
	Data    ResultNotification `json:"data"`
	QueueAt time.Time          `json:"queued_at"`
}

// QueueSender pushes notifications onto a Redis list drained by the mailer.
type QueueSender struct {
	rdb   *redis.Client
	queue string
}

// NewQueueSender creates a QueueSender on the result notifications queue.
func NewQueueSender(rdb *redis.Client) *QueueSender {
	return &QueueSender{rdb: rdb, queue: config.WorkerKey.ResultNotificationsQueue}
}

func (s *QueueSender) Send(ctx context.Context, address string, n ResultNotification) error {
	raw, err := json.Marshal(queuedNotification{Address: address, Data: n, QueueAt: time.Now()})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := s.rdb.RPush(ctx, s.queue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// LogSender only logs notifications. Used when no mailer is attached.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "log_sender").Logger()}
}

func (s *LogSender) Send(_ context.Context, address string, n ResultNotification) error {
	s.log.Info().
		Str("address", address).
		Int("student_id", n.StudentID).
		Str("exam_id", n.ExamID.String()).
		Float64("total", n.Total).
		Str("grade", n.Grade).
		Int("rank", n.Rank).
		Msg("Result notification")
	return nil
}

// New picks a sender by NOTIFICATION_SINK.
func New(sink string, rdb *redis.Client, log zerolog.Logger) (Sender, error) {
	switch sink {
	case "", "queue":
		if rdb == nil {
			return nil, fmt.Errorf("queue notification sink requires redis")
		}
		return NewQueueSender(rdb), nil
	case "log":
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("unknown notification sink %q", sink)
	}
}
