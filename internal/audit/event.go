// Package audit records authentication decisions and enrollment results.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event types.
const (
	TypeRegister    = "register"
	TypeLogin       = "login"
	TypeEnrollFace  = "enroll_face"
	TypeEnrollVoice = "enroll_voice"
)

// Outcomes.
const (
	OutcomeAccept = "accept"
	OutcomeReject = "reject"
	OutcomeError  = "error"
)

// Event is one audit record. Samples and secrets are never part of it.
type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"email"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	FaceScore float64   `json:"faceScore"`
	VoiceOK   bool      `json:"voiceOk"`
	At        time.Time `json:"at"`
}

// Recorder receives audit events.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// LogRecorder writes events to a structured logger.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder constructs a LogRecorder.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

// Record logs the event at info level.
func (r *LogRecorder) Record(ctx context.Context, event Event) error {
	r.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("type", event.Type),
		slog.String("user_id", event.UserID),
		slog.String("email", event.Email),
		slog.String("outcome", event.Outcome),
		slog.String("reason", event.Reason),
		slog.Float64("face_score", event.FaceScore),
		slog.Bool("voice_ok", event.VoiceOK),
		slog.Time("at", event.At),
	)
	return nil
}

// Emit stamps and records event, logging instead of failing when the recorder errors.
// A nil recorder discards the event.
func Emit(ctx context.Context, recorder Recorder, logger *slog.Logger, event Event) {
	if recorder == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if err := recorder.Record(ctx, event); err != nil && logger != nil {
		logger.Warn("audit record", slog.String("type", event.Type), slog.Any("error", err))
	}
}
