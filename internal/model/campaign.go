// internal/model/campaign.go
package model

import "time"

const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignSending   = "sending"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
	CampaignFailed    = "failed"
)

type Campaign struct {
	ID              int        `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	TemplateID      int        `db:"template_id" json:"template_id"`
	Status          string     `db:"status" json:"status"`
	TotalRecipients int        `db:"total_recipients" json:"total_recipients"`
	SentCount       int        `db:"sent_count" json:"sent_count"`
	FailedCount     int        `db:"failed_count" json:"failed_count"`
	OpenedCount     int        `db:"opened_count" json:"opened_count"`
	ClickedCount    int        `db:"clicked_count" json:"clicked_count"`
	ScheduledAt     *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt       *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// IsTerminal reports whether no further dispatch may mutate the campaign.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignFailed
}
