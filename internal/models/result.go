package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies a delivery mechanism.
type Channel string

// Channel constants define the supported delivery channels.
const (
	ChannelMail Channel = "MAIL"
	ChannelChat Channel = "CHAT"
)

// Outcome is the terminal state of one (tenant, channel) dispatch attempt.
type Outcome string

// Outcome constants define the possible dispatch outcomes.
const (
	OutcomeSent    Outcome = "SENT"
	OutcomeSkipped Outcome = "SKIPPED"
	OutcomeFailed  Outcome = "FAILED"
)

// DispatchResult records what happened for one tenant/channel pair in a run.
// Never mutated after creation.
type DispatchResult struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	RunID      uuid.UUID `json:"run_id" gorm:"type:uuid;index"`
	TenantID   uuid.UUID `json:"tenant_id" gorm:"type:uuid;index"`
	TenantName string    `json:"tenant_name"`
	Channel    Channel   `json:"channel"`
	Outcome    Outcome   `json:"outcome"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName maps DispatchResult to its table.
func (DispatchResult) TableName() string { return "dispatch_results" }

// NotificationRun is one batch execution of the dispatcher.
type NotificationRun struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	RunDate    time.Time `json:"run_date"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Sent       int       `json:"sent"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

// TableName maps NotificationRun to its table.
func (NotificationRun) TableName() string { return "notification_runs" }

// Count tallies results by outcome into the run counters.
func (r *NotificationRun) Count(results []DispatchResult) {
	for _, res := range results {
		switch res.Outcome {
		case OutcomeSent:
			r.Sent++
		case OutcomeSkipped:
			r.Skipped++
		case OutcomeFailed:
			r.Failed++
		}
	}
}
