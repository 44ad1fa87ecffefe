// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrTemplateNotFound struct {
	TemplateID int
}

func (e *ErrTemplateNotFound) Error() string {
	return fmt.Sprintf("template with ID %d not found", e.TemplateID)
}

func NewTemplateNotFound(id int) error {
	return &ErrTemplateNotFound{TemplateID: id}
}

// ErrDispatchBusy means another dispatch invocation already holds the
// per-campaign lock. Safe to retry after the running batch finishes.
type ErrDispatchBusy struct {
	CampaignID int
}

func (e *ErrDispatchBusy) Error() string {
	return fmt.Sprintf("dispatch already running for campaign %d", e.CampaignID)
}

func NewDispatchBusy(id int) error {
	return &ErrDispatchBusy{CampaignID: id}
}

// ErrSetup marks an unrecoverable setup problem discovered before any
// message was attempted (missing SMTP settings, empty credentials, ...).
// The campaign is transitioned to failed when this is returned.
type ErrSetup struct {
	Reason string
}

func (e *ErrSetup) Error() string {
	return "setup error: " + e.Reason
}

func NewSetup(reason string) error {
	return &ErrSetup{Reason: reason}
}

// ErrTransport marks a batch-level transport failure (could not open the
// SMTP session). No recipient rows were consumed; the campaign stays in
// sending and the batch is safe to retry.
type ErrTransport struct {
	Err error
}

func (e *ErrTransport) Error() string {
	return "smtp transport error: " + e.Err.Error()
}

func (e *ErrTransport) Unwrap() error { return e.Err }

func NewTransport(err error) error {
	return &ErrTransport{Err: err}
}

// ErrInvalidTransition is returned when a campaign status change is not
// allowed by the state machine.
type ErrInvalidTransition struct {
	From, To string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid campaign transition %s -> %s", e.From, e.To)
}

func NewInvalidTransition(from, to string) error {
	return &ErrInvalidTransition{From: from, To: to}
}
