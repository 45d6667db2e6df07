package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore writes and reads audit_logs.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a new PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Record persists the event.
func (s *PGStore) Record(ctx context.Context, event Event) error {
	if s == nil || s.pool == nil {
		return errors.New("audit: store not initialised")
	}
	if event.Type == "" || event.Outcome == "" {
		return errors.New("audit: event requires type and outcome")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO audit_logs (event_type, user_id, email, outcome, reason, face_score, voice_ok, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		event.Type, optionalText(event.UserID), event.Email, event.Outcome, optionalText(event.Reason),
		event.FaceScore, event.VoiceOK, toPgTime(event.At))
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

const timelineWindowSQL = `SELECT event_type, COALESCE(user_id, ''), email, outcome, COALESCE(reason, ''), face_score, voice_ok, occurred_at
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR user_id = $3)
  AND ($4::text IS NULL OR event_type = $4)
ORDER BY occurred_at DESC, id DESC
OFFSET $5 LIMIT $6`

// TimelineWindow returns one page of events, newest first.
func (s *PGStore) TimelineWindow(ctx context.Context, arg WindowParams) ([]Event, error) {
	rows, err := s.pool.Query(ctx, timelineWindowSQL,
		toPgTime(arg.From), toPgTime(arg.To), optionalText(arg.UserID), optionalText(arg.Type),
		arg.OffsetRows, arg.LimitRows)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var (
			event Event
			at    pgtype.Timestamptz
		)
		if err := row.Scan(&event.Type, &event.UserID, &event.Email, &event.Outcome, &event.Reason,
			&event.FaceScore, &event.VoiceOK, &at); err != nil {
			return Event{}, err
		}
		if at.Valid {
			event.At = at.Time
		}
		return event, nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: scan timeline: %w", err)
	}
	return events, nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

var (
	_ Recorder   = (*PGStore)(nil)
	_ Repository = (*PGStore)(nil)
)

// Prune deletes events that occurred before cutoff and reports how many were removed.
func (s *PGStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("audit: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}
