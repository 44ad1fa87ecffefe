package service_test

import (
	"fmt"
	"sync"
	"time"

	appErrors "github.com/mailblast/mailblast-backend/internal/errors"
	"github.com/mailblast/mailblast-backend/internal/mailer"
	"github.com/mailblast/mailblast-backend/internal/model"
)

// memStore is a shared in-memory stand-in for the Postgres store. The
// mutex makes claim/mark/transition operations atomic the same way the
// SQL conditional updates are.
type memStore struct {
	mu         sync.Mutex
	campaigns  map[int]*model.Campaign
	templates  map[int]*model.Template
	settings   *model.SMTPSettings
	contacts   map[int]*model.Contact
	recipients []*model.CampaignRecipient
	locks      map[int]bool
	nextID     int
}

func newMemStore() *memStore {
	return &memStore{
		campaigns: map[int]*model.Campaign{},
		templates: map[int]*model.Template{},
		contacts:  map[int]*model.Contact{},
		locks:     map[int]bool{},
		nextID:    1,
	}
}

func (s *memStore) addTemplate(t *model.Template) *model.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.nextID
		s.nextID++
	}
	s.templates[t.ID] = t
	return t
}

func (s *memStore) addContact(c *model.Contact) *model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID
		s.nextID++
	}
	if c.Status == "" {
		c.Status = model.ContactActive
	}
	s.contacts[c.ID] = c
	return c
}

func (s *memStore) addCampaign(c *model.Campaign) *model.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID
		s.nextID++
	}
	s.campaigns[c.ID] = c
	return c
}

func (s *memStore) addRecipients(campaignID int, contactIDs ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, contactID := range contactIDs {
		s.recipients = append(s.recipients, &model.CampaignRecipient{
			ID:         s.nextID,
			CampaignID: campaignID,
			ContactID:  contactID,
			Status:     model.RecipientPending,
			CreatedAt:  time.Now(),
		})
		s.nextID++
	}
}

func (s *memStore) recipientByContact(campaignID, contactID int) *model.CampaignRecipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cr := range s.recipients {
		if cr.CampaignID == campaignID && cr.ContactID == contactID {
			return cr
		}
	}
	return nil
}

func (s *memStore) statusCounts(campaignID int) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, cr := range s.recipients {
		if cr.CampaignID == campaignID {
			counts[cr.Status]++
		}
	}
	return counts
}

// ---- CampaignRepositoryInterface ----

type fakeCampaignRepo struct{ s *memStore }

func (r *fakeCampaignRepo) CreateWithRecipients(c *model.Campaign, contactIDs []int) error {
	c.TotalRecipients = len(contactIDs)
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	c.CreatedAt = time.Now()
	r.s.addCampaign(c)
	r.s.addRecipients(c.ID, contactIDs...)
	return nil
}

func (r *fakeCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCampaignRepo) Update(c *model.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.campaigns[c.ID]
	if !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	stored.Name = c.Name
	stored.TemplateID = c.TemplateID
	stored.ScheduledAt = c.ScheduledAt
	return nil
}

func (r *fakeCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	filtered := []*model.Campaign{}
	for _, c := range r.s.campaigns {
		if status != "" && c.Status != status {
			continue
		}
		filtered = append(filtered, c)
	}
	total := len(filtered)
	if offset > total {
		return []*model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return filtered[offset:end], total, nil
}

func (r *fakeCampaignRepo) ListDueScheduled(now time.Time) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := []int{}
	for _, c := range r.s.campaigns {
		if c.Status == model.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (r *fakeCampaignRepo) TransitionStatus(campaignID int, from []string, to string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[campaignID]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, f := range from {
		if c.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	c.Status = to
	now := time.Now()
	if to == model.CampaignSending && c.StartedAt == nil {
		c.StartedAt = &now
	}
	if to == model.CampaignCompleted && c.CompletedAt == nil {
		c.CompletedAt = &now
	}
	return true, nil
}

func (r *fakeCampaignRepo) IncrementCounters(campaignID, sentDelta, failedDelta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.SentCount += sentDelta
	c.FailedCount += failedDelta
	return nil
}

func (r *fakeCampaignRepo) ReconcileCounters(campaignID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	sent, failed := 0, 0
	for _, cr := range r.s.recipients {
		if cr.CampaignID != campaignID {
			continue
		}
		switch cr.Status {
		case model.RecipientSent, model.RecipientOpened, model.RecipientClicked:
			sent++
		case model.RecipientFailed, model.RecipientBounced:
			failed++
		}
	}
	c.SentCount = sent
	c.FailedCount = failed
	return nil
}

func (r *fakeCampaignRepo) GetRecipientStats(campaignID int) (map[string]int, error) {
	stats := r.s.statusCounts(campaignID)
	total := 0
	for _, n := range stats {
		total += n
	}
	stats["total"] = total
	return stats, nil
}

func (r *fakeCampaignRepo) AcquireDispatchLock(campaignID int) (func(), bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.locks[campaignID] {
		return nil, false, nil
	}
	r.s.locks[campaignID] = true
	release := func() {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		r.s.locks[campaignID] = false
	}
	return release, true, nil
}

// ---- RecipientRepositoryInterface ----

type fakeRecipientRepo struct{ s *memStore }

func (r *fakeRecipientRepo) ClaimPending(campaignID, limit int) ([]*model.CampaignRecipient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	claimed := []*model.CampaignRecipient{}
	for _, cr := range r.s.recipients {
		if len(claimed) == limit {
			break
		}
		if cr.CampaignID == campaignID && cr.Status == model.RecipientPending {
			cr.Status = model.RecipientSending
			copied := *cr
			copied.Contact = r.s.contacts[cr.ContactID]
			claimed = append(claimed, &copied)
		}
	}
	return claimed, nil
}

func (r *fakeRecipientRepo) Unclaim(campaignID int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, cr := range r.s.recipients {
		if cr.CampaignID == campaignID && cr.Status == model.RecipientSending {
			cr.Status = model.RecipientPending
			n++
		}
	}
	return n, nil
}

func (r *fakeRecipientRepo) MarkSent(id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cr := range r.s.recipients {
		if cr.ID == id {
			if cr.Status != model.RecipientSending {
				return fmt.Errorf("recipient %d marked sent twice", id)
			}
			now := time.Now()
			cr.Status = model.RecipientSent
			cr.SentAt = &now
			return nil
		}
	}
	return fmt.Errorf("recipient %d not found", id)
}

func (r *fakeRecipientRepo) MarkFailed(id int, errMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cr := range r.s.recipients {
		if cr.ID == id {
			if cr.Status != model.RecipientSending {
				return fmt.Errorf("recipient %d marked failed twice", id)
			}
			cr.Status = model.RecipientFailed
			cr.ErrorMessage = errMsg
			return nil
		}
	}
	return fmt.Errorf("recipient %d not found", id)
}

func (r *fakeRecipientRepo) MarkEngagement(id int, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cr := range r.s.recipients {
		if cr.ID == id {
			cr.Status = status
			return nil
		}
	}
	return fmt.Errorf("recipient %d not found", id)
}

func (r *fakeRecipientRepo) CountPending(campaignID int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, cr := range r.s.recipients {
		if cr.CampaignID == campaignID && cr.Status == model.RecipientPending {
			count++
		}
	}
	return count, nil
}

func (r *fakeRecipientRepo) ListByCampaign(campaignID int, status string, offset, limit int) ([]*model.CampaignRecipient, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	matched := []*model.CampaignRecipient{}
	for _, cr := range r.s.recipients {
		if cr.CampaignID != campaignID {
			continue
		}
		if status != "" && cr.Status != status {
			continue
		}
		matched = append(matched, cr)
	}
	total := len(matched)
	if offset > total {
		return []*model.CampaignRecipient{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// ---- TemplateRepositoryInterface ----

type fakeTemplateRepo struct{ s *memStore }

func (r *fakeTemplateRepo) GetByID(id int) (*model.Template, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok {
		return nil, appErrors.NewTemplateNotFound(id)
	}
	return t, nil
}

func (r *fakeTemplateRepo) Create(t *model.Template) error {
	r.s.addTemplate(t)
	return nil
}

func (r *fakeTemplateRepo) List(offset, limit int) ([]*model.Template, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	templates := []*model.Template{}
	for _, t := range r.s.templates {
		templates = append(templates, t)
	}
	return templates, len(templates), nil
}

// ---- SMTPSettingsRepositoryInterface ----

type fakeSettingsRepo struct{ s *memStore }

func (r *fakeSettingsRepo) Get() (*model.SMTPSettings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.settings, nil
}

func (r *fakeSettingsRepo) Save(st *model.SMTPSettings) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.settings = st
	return nil
}

// ---- ContactRepositoryInterface ----

type fakeContactRepo struct{ s *memStore }

func (r *fakeContactRepo) GetByID(id int) (*model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.contacts[id], nil
}

func (r *fakeContactRepo) Create(c *model.Contact) error {
	r.s.addContact(c)
	return nil
}

func (r *fakeContactRepo) List(offset, limit int, status string) ([]*model.Contact, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	contacts := []*model.Contact{}
	for _, c := range r.s.contacts {
		if status != "" && c.Status != status {
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts, len(contacts), nil
}

func (r *fakeContactRepo) ListActiveIDs() ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := []int{}
	for id, c := range r.s.contacts {
		if c.Status == model.ContactActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeContactRepo) FilterActiveIDs(ids []int) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	filtered := []int{}
	for _, id := range ids {
		if c, ok := r.s.contacts[id]; ok && c.Status == model.ContactActive {
			filtered = append(filtered, id)
		}
	}
	return filtered, nil
}

// ---- mailer fakes ----

// fakeMailer is both the dialer and the session. Send records every
// delivered address; rejectEmails simulates per-recipient transport
// rejections, dialErr simulates a session that never opens.
type fakeMailer struct {
	mu           sync.Mutex
	dialErr      error
	rejectEmails map[string]error
	sentTo       []string
	dials        int
	closes       int
}

func (m *fakeMailer) Dial(settings *model.SMTPSettings, password string) (mailer.SendCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dialErr != nil {
		return nil, m.dialErr
	}
	m.dials++
	return m, nil
}

func (m *fakeMailer) Send(fromName, fromEmail, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, bad := m.rejectEmails[to]; bad {
		return err
	}
	m.sentTo = append(m.sentTo, to)
	return nil
}

func (m *fakeMailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

func (m *fakeMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sentTo)
}
