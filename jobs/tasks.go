package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-mfa/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord persists one audit event.
	TaskAuditRecord = "audit:record"
	// TaskAuditPrune deletes audit events past their retention.
	TaskAuditPrune = "audit:prune"
)

// AuditPrunePayload configures one prune run.
type AuditPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewAuditRecordTask constructs an audit:record task.
func NewAuditRecordTask(event audit.Event) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode audit event: %w", err)
	}
	return asynq.NewTask(TaskAuditRecord, data), nil
}

// NewAuditPruneTask constructs an audit:prune task.
func NewAuditPruneTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPrunePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}
