// internal/service/campaign_service.go
package service

import (
	"fmt"
	"time"

	appErrors "github.com/mailblast/mailblast-backend/internal/errors"
	"github.com/mailblast/mailblast-backend/internal/model"
	"github.com/mailblast/mailblast-backend/internal/queue"
	"github.com/mailblast/mailblast-backend/internal/repository"
)

type CampaignService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	ContactRepo   repository.ContactRepositoryInterface
	TemplateRepo  repository.TemplateRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	SettingsRepo  repository.SMTPSettingsRepositoryInterface
	Queue         queue.Queue
}

type CampaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

// CreateCampaign creates the campaign together with its frozen recipient
// snapshot. When allActive is set, the snapshot is every active contact;
// otherwise only the active contacts among the given ids. The audience is
// frozen here: later contact list changes never affect this campaign.
func (s *CampaignService) CreateCampaign(name string, templateID int, contactIDs []int, allActive bool, scheduledAt *string) (*model.Campaign, error) {
	if name == "" {
		return nil, fmt.Errorf("campaign name cannot be empty")
	}
	if _, err := s.TemplateRepo.GetByID(templateID); err != nil {
		return nil, err
	}

	var ids []int
	var err error
	if allActive {
		ids, err = s.ContactRepo.ListActiveIDs()
	} else {
		ids, err = s.ContactRepo.FilterActiveIDs(contactIDs)
	}
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("campaign has no active recipients")
	}

	c := &model.Campaign{
		Name:       name,
		TemplateID: templateID,
		Status:     model.CampaignDraft,
	}

	if scheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *scheduledAt)
		if err != nil {
			return nil, err
		}
		c.ScheduledAt = &t
		c.Status = model.CampaignScheduled
	}

	if err := s.CampaignRepo.CreateWithRecipients(c, ids); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCampaign edits name/template/schedule. Only draft and scheduled
// campaigns are editable; the recipient snapshot is never touched.
func (s *CampaignService) UpdateCampaign(id int, name string, templateID int, scheduledAt *string) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignDraft && c.Status != model.CampaignScheduled {
		return nil, fmt.Errorf("campaign cannot be edited in status: %s", c.Status)
	}

	if name != "" {
		c.Name = name
	}
	if templateID != 0 {
		if _, err := s.TemplateRepo.GetByID(templateID); err != nil {
			return nil, err
		}
		c.TemplateID = templateID
	}
	if scheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *scheduledAt)
		if err != nil {
			return nil, err
		}
		c.ScheduledAt = &t
	}

	if err := s.CampaignRepo.Update(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	stats, err := s.CampaignRepo.GetRecipientStats(campaignID)
	if err != nil {
		return nil, err
	}

	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}

func (s *CampaignService) ListRecipients(campaignID int, status string, page, pageSize int) ([]*model.CampaignRecipient, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}
	offset := (page - 1) * pageSize

	recipients, total, err := s.RecipientRepo.ListByCampaign(campaignID, status, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}

	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
	return recipients, pagination, nil
}

// Preview renders the campaign's subject and body for one contact, with the
// same merge-tag fallbacks the send path uses, so the operator previews
// exactly what the recipient would get.
func (s *CampaignService) Preview(campaignID, contactID int) (subject, body string, err error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return "", "", err
	}

	template, err := s.TemplateRepo.GetByID(campaign.TemplateID)
	if err != nil {
		return "", "", err
	}

	contact, err := s.ContactRepo.GetByID(contactID)
	if err != nil {
		return "", "", err
	}
	if contact == nil {
		return "", "", fmt.Errorf("contact not found")
	}

	return RenderTemplate(template.Subject, contact), RenderTemplate(template.HTMLContent, contact), nil
}

// StartSend runs the deliverability pre-check and, when it passes, enqueues
// a dispatch job for the worker. The issue list is returned either way so
// warnings reach the operator.
func (s *CampaignService) StartSend(campaignID int, hasCredentials bool) ([]Issue, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.IsTerminal() {
		return nil, fmt.Errorf("campaign cannot be sent in status: %s", campaign.Status)
	}
	if campaign.Status == model.CampaignPaused {
		return nil, fmt.Errorf("campaign is paused, resume it to continue sending")
	}

	template, err := s.TemplateRepo.GetByID(campaign.TemplateID)
	if err != nil {
		return nil, err
	}

	pending, err := s.RecipientRepo.CountPending(campaignID)
	if err != nil {
		return nil, err
	}

	if settings, err := s.SettingsRepo.Get(); err != nil {
		return nil, err
	} else if settings == nil {
		hasCredentials = false
	}

	issues := CheckDeliverability(template, pending, hasCredentials)
	if HasErrors(issues) {
		return issues, fmt.Errorf("deliverability check failed")
	}

	if err := s.Queue.Publish(queue.TopicDispatch, campaignID); err != nil {
		return issues, err
	}
	return issues, nil
}

// Pause stops dispatch between batches. The batch already in flight runs to
// completion; the next invocation sees paused and claims nothing.
func (s *CampaignService) Pause(campaignID int) error {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if !CanTransition(c.Status, model.CampaignPaused) {
		return appErrors.NewInvalidTransition(c.Status, model.CampaignPaused)
	}
	moved, err := s.CampaignRepo.TransitionStatus(campaignID, []string{model.CampaignSending}, model.CampaignPaused)
	if err != nil {
		return err
	}
	if !moved {
		return appErrors.NewInvalidTransition(c.Status, model.CampaignPaused)
	}
	return nil
}

// Resume is the only path from paused back to sending. It re-enqueues a
// dispatch job so the worker picks the campaign up again.
func (s *CampaignService) Resume(campaignID int) error {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if c.Status != model.CampaignPaused {
		return appErrors.NewInvalidTransition(c.Status, model.CampaignSending)
	}
	moved, err := s.CampaignRepo.TransitionStatus(campaignID, []string{model.CampaignPaused}, model.CampaignSending)
	if err != nil {
		return err
	}
	if !moved {
		return appErrors.NewInvalidTransition(c.Status, model.CampaignSending)
	}
	return s.Queue.Publish(queue.TopicDispatch, campaignID)
}
