package controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mailblast/mailblast-backend/internal/controller"
	appErrors "github.com/mailblast/mailblast-backend/internal/errors"
	"github.com/mailblast/mailblast-backend/internal/model"
	"github.com/mailblast/mailblast-backend/internal/service"
)

// --- Stub repositories ---

type stubCampaignRepo struct{ campaign *model.Campaign }

func (m *stubCampaignRepo) CreateWithRecipients(c *model.Campaign, contactIDs []int) error {
	c.ID = 1
	c.TotalRecipients = len(contactIDs)
	return nil
}

func (m *stubCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	if m.campaign == nil {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	copied := *m.campaign
	return &copied, nil
}

func (m *stubCampaignRepo) Update(c *model.Campaign) error { return nil }
func (m *stubCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	return []*model.Campaign{m.campaign}, 1, nil
}
func (m *stubCampaignRepo) ListDueScheduled(now time.Time) ([]int, error) { return nil, nil }
func (m *stubCampaignRepo) TransitionStatus(campaignID int, from []string, to string) (bool, error) {
	for _, f := range from {
		if m.campaign.Status == f {
			m.campaign.Status = to
			return true, nil
		}
	}
	return false, nil
}
func (m *stubCampaignRepo) IncrementCounters(campaignID, sentDelta, failedDelta int) error {
	return nil
}
func (m *stubCampaignRepo) ReconcileCounters(campaignID int) error { return nil }
func (m *stubCampaignRepo) GetRecipientStats(campaignID int) (map[string]int, error) {
	return map[string]int{"total": 0, "pending": 0, "sending": 0, "sent": 0, "failed": 0}, nil
}
func (m *stubCampaignRepo) AcquireDispatchLock(campaignID int) (func(), bool, error) {
	return func() {}, true, nil
}

type stubRecipientRepo struct{}

func (m *stubRecipientRepo) ClaimPending(campaignID, limit int) ([]*model.CampaignRecipient, error) {
	return []*model.CampaignRecipient{}, nil
}
func (m *stubRecipientRepo) Unclaim(campaignID int) (int, error)         { return 0, nil }
func (m *stubRecipientRepo) MarkSent(id int) error                       { return nil }
func (m *stubRecipientRepo) MarkFailed(id int, errMsg string) error      { return nil }
func (m *stubRecipientRepo) MarkEngagement(id int, status string) error  { return nil }
func (m *stubRecipientRepo) CountPending(campaignID int) (int, error)    { return 0, nil }
func (m *stubRecipientRepo) ListByCampaign(campaignID int, status string, offset, limit int) ([]*model.CampaignRecipient, int, error) {
	return []*model.CampaignRecipient{}, 0, nil
}

type stubTemplateRepo struct{ tpl *model.Template }

func (m *stubTemplateRepo) GetByID(id int) (*model.Template, error) {
	if m.tpl == nil {
		return nil, appErrors.NewTemplateNotFound(id)
	}
	return m.tpl, nil
}
func (m *stubTemplateRepo) Create(t *model.Template) error { return nil }
func (m *stubTemplateRepo) List(offset, limit int) ([]*model.Template, int, error) {
	return []*model.Template{m.tpl}, 1, nil
}

type stubContactRepo struct{ contact *model.Contact }

func (m *stubContactRepo) GetByID(id int) (*model.Contact, error) { return m.contact, nil }
func (m *stubContactRepo) Create(c *model.Contact) error          { return nil }
func (m *stubContactRepo) List(offset, limit int, status string) ([]*model.Contact, int, error) {
	return []*model.Contact{m.contact}, 1, nil
}
func (m *stubContactRepo) ListActiveIDs() ([]int, error) { return []int{1}, nil }
func (m *stubContactRepo) FilterActiveIDs(ids []int) ([]int, error) {
	return ids, nil
}

type stubSettingsRepo struct{ settings *model.SMTPSettings }

func (m *stubSettingsRepo) Get() (*model.SMTPSettings, error) { return m.settings, nil }
func (m *stubSettingsRepo) Save(s *model.SMTPSettings) error  { return nil }

// --- Tests ---

func newTestRouter(ctrl *controller.CampaignController) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/campaigns/{id}/preview", ctrl.Preview)
	r.Post("/campaigns/{id}/dispatch", ctrl.Dispatch)
	return r
}

func TestPreviewHandler(t *testing.T) {
	svc := &service.CampaignService{
		CampaignRepo: &stubCampaignRepo{campaign: &model.Campaign{ID: 1, TemplateID: 1, Status: model.CampaignDraft}},
		TemplateRepo: &stubTemplateRepo{tpl: &model.Template{
			ID:          1,
			Subject:     "Hi {{first_name}}",
			HTMLContent: "<p>Hello {{full_name}} from {{company}}</p>",
		}},
		ContactRepo: &stubContactRepo{contact: &model.Contact{
			ID: 1, FirstName: "Alice", LastName: "Smith", Company: "Acme", Email: "alice@example.com",
		}},
	}

	ctrl := &controller.CampaignController{CampaignService: svc}
	r := newTestRouter(ctrl)

	b, _ := json.Marshal(map[string]interface{}{"contact_id": 1})
	req := httptest.NewRequest("POST", "/campaigns/1/preview", bytes.NewReader(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, w.Body.String())
	}

	var res map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	subject, _ := res["subject"].(string)
	if subject != "Hi Alice" {
		t.Errorf("expected rendered subject, got %q", subject)
	}
	html, _ := res["html"].(string)
	if !strings.Contains(html, "Alice Smith") {
		t.Errorf("expected full name in body, got %q", html)
	}
}

func TestDispatchHandlerTerminalCampaign(t *testing.T) {
	dispatcher := &service.Dispatcher{
		CampaignRepo:  &stubCampaignRepo{campaign: &model.Campaign{ID: 1, Status: model.CampaignCompleted}},
		RecipientRepo: &stubRecipientRepo{},
		TemplateRepo:  &stubTemplateRepo{},
		SettingsRepo:  &stubSettingsRepo{},
	}
	ctrl := &controller.CampaignController{Dispatcher: dispatcher}
	r := newTestRouter(ctrl)

	b, _ := json.Marshal(map[string]string{"smtp_password": "secret"})
	req := httptest.NewRequest("POST", "/campaigns/1/dispatch", bytes.NewReader(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res service.DispatchResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.Sent != 0 || res.Failed != 0 || res.Remaining != 0 {
		t.Errorf("expected nothing-to-do result, got %+v", res)
	}
}

func TestDispatchHandlerCampaignNotFound(t *testing.T) {
	dispatcher := &service.Dispatcher{
		CampaignRepo:  &stubCampaignRepo{},
		RecipientRepo: &stubRecipientRepo{},
		TemplateRepo:  &stubTemplateRepo{},
		SettingsRepo:  &stubSettingsRepo{},
	}
	ctrl := &controller.CampaignController{Dispatcher: dispatcher}
	r := newTestRouter(ctrl)

	b, _ := json.Marshal(map[string]string{"smtp_password": "secret"})
	req := httptest.NewRequest("POST", "/campaigns/42/dispatch", bytes.NewReader(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}

	var res map[string]string
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res["error"] == "" {
		t.Error("expected structured error in response")
	}
}

func TestDispatchHandlerInvalidID(t *testing.T) {
	ctrl := &controller.CampaignController{}
	r := newTestRouter(ctrl)

	req := httptest.NewRequest("POST", "/campaigns/abc/dispatch", bytes.NewReader([]byte("{}")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCheckDeliverabilityHandler(t *testing.T) {
	ctrl := &controller.DeliveryController{
		TemplateRepo: &stubTemplateRepo{tpl: &model.Template{
			ID:          1,
			Subject:     "FREE offer, act now!!",
			HTMLContent: "<p>no opt out link</p>",
		}},
		SettingsRepo: &stubSettingsRepo{},
	}

	r := chi.NewRouter()
	r.Post("/deliverability/check", ctrl.CheckDeliverability)

	b, _ := json.Marshal(map[string]interface{}{
		"template_id":     1,
		"recipient_count": 10,
		"has_credentials": true,
	})
	req := httptest.NewRequest("POST", "/deliverability/check", bytes.NewReader(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res struct {
		Issues []service.Issue `json:"issues"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	warnings, errs := 0, 0
	for _, issue := range res.Issues {
		switch issue.Type {
		case service.IssueWarning:
			warnings++
		case service.IssueError:
			errs++
		}
	}
	if warnings < 2 {
		t.Errorf("expected at least two warnings, got %v", res.Issues)
	}
	if errs != 0 {
		t.Errorf("expected zero errors with credentials present, got %v", res.Issues)
	}
}
