// internal/service/dispatch_service.go
package service

import (
	"errors"
	"log"
	"time"

	appErrors "github.com/mailblast/mailblast-backend/internal/errors"
	"github.com/mailblast/mailblast-backend/internal/mailer"
	"github.com/mailblast/mailblast-backend/internal/model"
	"github.com/mailblast/mailblast-backend/internal/repository"
)

const (
	DefaultBatchSize   = 50
	DefaultPacingDelay = 100 * time.Millisecond
)

// DispatchResult reports one batch. Remaining > 0 tells the caller to
// invoke dispatch again.
type DispatchResult struct {
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Dispatcher is the batch dispatch engine. Each Dispatch call claims one
// bounded batch of pending recipients, drives them through a single SMTP
// session, and records per-recipient outcome so that re-invocation only
// ever sees genuinely unprocessed rows.
type Dispatcher struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	TemplateRepo  repository.TemplateRepositoryInterface
	SettingsRepo  repository.SMTPSettingsRepositoryInterface
	Dialer        mailer.Dialer

	BatchSize   int
	PacingDelay time.Duration
}

func NewDispatcher(
	campaignRepo repository.CampaignRepositoryInterface,
	recipientRepo repository.RecipientRepositoryInterface,
	templateRepo repository.TemplateRepositoryInterface,
	settingsRepo repository.SMTPSettingsRepositoryInterface,
	dialer mailer.Dialer,
) *Dispatcher {
	return &Dispatcher{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		TemplateRepo:  templateRepo,
		SettingsRepo:  settingsRepo,
		Dialer:        dialer,
		BatchSize:     DefaultBatchSize,
		PacingDelay:   DefaultPacingDelay,
	}
}

// Dispatch processes one batch for the campaign. Safe to call repeatedly:
// a completed or failed campaign is a no-op, a paused campaign claims
// nothing, and recipients already marked sent or failed are never touched
// again.
func (d *Dispatcher) Dispatch(campaignID int, smtpPassword string) (*DispatchResult, error) {
	campaign, err := d.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	// Terminal campaigns: nothing to do, not an error.
	if campaign.IsTerminal() {
		return &DispatchResult{}, nil
	}

	// Pause is observed at invocation start; a paused campaign is never
	// moved back to sending from here.
	if campaign.Status == model.CampaignPaused {
		remaining, err := d.RecipientRepo.CountPending(campaignID)
		if err != nil {
			return nil, err
		}
		return &DispatchResult{Remaining: remaining}, nil
	}

	template, settings, err := d.resolveSetup(campaign, smtpPassword)
	if err != nil {
		d.failCampaign(campaignID, err)
		return nil, err
	}

	release, ok, err := d.CampaignRepo.AcquireDispatchLock(campaignID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.NewDispatchBusy(campaignID)
	}
	defer release()

	// Rows left in the claim marker by a dead batch are safe to requeue now
	// that the lock guarantees no other sender is in flight.
	if n, err := d.RecipientRepo.Unclaim(campaignID); err != nil {
		return nil, err
	} else if n > 0 {
		log.Printf("requeued %d stale claims for campaign %d", n, campaignID)
	}

	if _, err := d.CampaignRepo.TransitionStatus(campaignID, dispatchableFrom, model.CampaignSending); err != nil {
		return nil, err
	}

	batch, err := d.RecipientRepo.ClaimPending(campaignID, d.batchSize())
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return d.finish(campaignID, 0, 0)
	}

	// One authenticated session for the whole batch.
	session, err := d.Dialer.Dial(settings, smtpPassword)
	if err != nil {
		// Nothing was sent; the claimed rows go straight back to pending
		// and the campaign stays in sending for the next invocation.
		if _, uerr := d.RecipientRepo.Unclaim(campaignID); uerr != nil {
			log.Println("⚠️ failed to unclaim batch after dial error:", uerr)
		}
		return nil, appErrors.NewTransport(err)
	}
	defer session.Close()

	sent, failed := 0, 0
	sessionDead := false
	for i, recipient := range batch {
		subject := RenderTemplate(template.Subject, recipient.Contact)
		body := RenderTemplate(template.HTMLContent, recipient.Contact)

		if err := session.Send(settings.FromName, settings.FromEmail, recipient.Contact.Email, subject, body); err != nil {
			// Per-recipient failure: recorded, not retried, batch continues.
			if merr := d.RecipientRepo.MarkFailed(recipient.ID, err.Error()); merr != nil {
				log.Println("⚠️ failed to mark recipient failed:", merr)
			}
			failed++
			// A dead session cannot carry the rest of the batch: stop here
			// and put the unprocessed claims back for a fresh session.
			if errors.Is(err, mailer.ErrSessionDead) {
				sessionDead = true
				break
			}
		} else {
			if merr := d.RecipientRepo.MarkSent(recipient.ID); merr != nil {
				log.Println("⚠️ failed to mark recipient sent:", merr)
			}
			sent++
		}

		// Inter-message pacing to respect provider rate limits.
		if i < len(batch)-1 && d.PacingDelay > 0 {
			time.Sleep(d.PacingDelay)
		}
	}

	if sessionDead {
		if n, uerr := d.RecipientRepo.Unclaim(campaignID); uerr != nil {
			log.Println("⚠️ failed to unclaim batch after session death:", uerr)
		} else if n > 0 {
			log.Printf("requeued %d unprocessed claims for campaign %d after session death", n, campaignID)
		}
	}

	if err := d.CampaignRepo.IncrementCounters(campaignID, sent, failed); err != nil {
		// Rows are already non-pending, so reporting this as an error is
		// safe: a retry re-attempts only the counter path, never a resend.
		return &DispatchResult{Sent: sent, Failed: failed}, err
	}

	return d.finish(campaignID, sent, failed)
}

// resolveSetup loads the template and SMTP settings and validates the
// credentials. Any failure here is a setup error: the campaign is marked
// failed and no recipient row is touched.
func (d *Dispatcher) resolveSetup(campaign *model.Campaign, smtpPassword string) (*model.Template, *model.SMTPSettings, error) {
	template, err := d.TemplateRepo.GetByID(campaign.TemplateID)
	if err != nil {
		return nil, nil, err
	}

	settings, err := d.SettingsRepo.Get()
	if err != nil {
		return nil, nil, err
	}
	if settings == nil {
		return nil, nil, appErrors.NewSetup("SMTP settings not configured")
	}
	if smtpPassword == "" || settings.Username == "" || settings.Host == "" {
		return nil, nil, appErrors.NewSetup("SMTP credentials are missing")
	}

	return template, settings, nil
}

func (d *Dispatcher) failCampaign(campaignID int, cause error) {
	log.Printf("❌ campaign %d setup failed: %v", campaignID, cause)
	if _, err := d.CampaignRepo.TransitionStatus(campaignID, failableFrom, model.CampaignFailed); err != nil {
		log.Println("⚠️ failed to mark campaign failed:", err)
	}
}

// finish recomputes the remaining-pending count and completes the campaign
// when it hits zero. Counters are reconciled from the recipient rows on
// completion so the terminal numbers are exact.
func (d *Dispatcher) finish(campaignID, sent, failed int) (*DispatchResult, error) {
	remaining, err := d.RecipientRepo.CountPending(campaignID)
	if err != nil {
		return &DispatchResult{Sent: sent, Failed: failed}, err
	}

	if remaining == 0 {
		if err := d.CampaignRepo.ReconcileCounters(campaignID); err != nil {
			return &DispatchResult{Sent: sent, Failed: failed}, err
		}
		moved, err := d.CampaignRepo.TransitionStatus(campaignID, []string{model.CampaignSending}, model.CampaignCompleted)
		if err != nil {
			return &DispatchResult{Sent: sent, Failed: failed}, err
		}
		if moved {
			log.Printf("✅ campaign %d completed", campaignID)
		}
	}

	return &DispatchResult{Sent: sent, Failed: failed, Remaining: remaining}, nil
}

func (d *Dispatcher) batchSize() int {
	if d.BatchSize > 0 {
		return d.BatchSize
	}
	return DefaultBatchSize
}
