package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-mfa/internal/audit"
	jobmetrics "github.com/odyssey-erp/odyssey-mfa/internal/jobs"
)

// AuditRecordJob writes queued audit events to durable storage.
type AuditRecordJob struct {
	Store   audit.Recorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditRecordJob initialises the audit:record handler.
func NewAuditRecordJob(store audit.Recorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRecordJob {
	return &AuditRecordJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle persists the event carried by t. Malformed payloads are not retried.
func (j *AuditRecordJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("audit record: handler not configured")
	}
	tracker := j.Metrics.Track(TaskAuditRecord)
	var event audit.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return tracker.End(fmt.Errorf("audit record: decode: %v: %w", err, asynq.SkipRetry))
	}
	err := j.Store.Record(ctx, event)
	if err != nil && j.Logger != nil {
		j.Logger.Error("persist audit event", slog.String("type", event.Type), slog.Any("error", err))
	}
	return tracker.End(err)
}

// Pruner deletes audit events older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// AuditPruneJob enforces audit retention.
type AuditPruneJob struct {
	Pruner  Pruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuditPruneJob initialises the audit:prune handler.
func NewAuditPruneJob(pruner Pruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditPruneJob {
	return &AuditPruneJob{
		Pruner:  pruner,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle deletes events older than the payload's retention window.
func (j *AuditPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pruner == nil {
		return errors.New("audit prune: handler not configured")
	}
	tracker := j.Metrics.Track(TaskAuditPrune)
	var payload AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("audit prune: decode: %v: %w", err, asynq.SkipRetry))
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = 90
	}
	cutoff := j.clock().AddDate(0, 0, -payload.RetentionDays)
	deleted, err := j.Pruner.Prune(ctx, cutoff)
	if j.Logger != nil {
		if err != nil {
			j.Logger.Error("prune audit events", slog.Any("error", err))
		} else {
			j.Logger.Info("pruned audit events", slog.Int64("deleted", deleted), slog.Time("before", cutoff))
		}
	}
	return tracker.End(err)
}
