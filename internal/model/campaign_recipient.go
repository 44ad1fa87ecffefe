// internal/model/campaign_recipient.go
package model

import "time"

const (
	RecipientPending = "pending"
	RecipientSending = "sending" // in-progress claim marker, requeued if a batch dies
	RecipientSent    = "sent"
	RecipientFailed  = "failed"
	RecipientOpened  = "opened"
	RecipientClicked = "clicked"
	RecipientBounced = "bounced"
)

// CampaignRecipient is the join row between a campaign and a contact,
// created in bulk when the campaign's audience snapshot is frozen.
type CampaignRecipient struct {
	ID           int        `db:"id" json:"id"`
	CampaignID   int        `db:"campaign_id" json:"campaign_id"`
	ContactID    int        `db:"contact_id" json:"contact_id"`
	Status       string     `db:"status" json:"status"`
	SentAt       *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	OpenedAt     *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt    *time.Time `db:"clicked_at" json:"clicked_at,omitempty"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`

	// Contact is populated by queries that join the contacts table.
	Contact *Contact `db:"-" json:"contact,omitempty"`
}
