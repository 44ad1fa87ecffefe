package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/mailblast/mailblast-backend/internal/errors"
	"github.com/mailblast/mailblast-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Dispatcher      *service.Dispatcher
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string  `json:"name"`
		TemplateID  int     `json:"template_id"`
		ContactIDs  []int   `json:"contact_ids"`
		AllActive   bool    `json:"all_active"`
		ScheduledAt *string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(body.Name, body.TemplateID, body.ContactIDs, body.AllActive, body.ScheduledAt)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Name        string  `json:"name"`
		TemplateID  int     `json:"template_id"`
		ScheduledAt *string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(id, body.Name, body.TemplateID, body.ScheduledAt)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := c.CampaignService.GetCampaignDetailsWithStats(id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	json.NewEncoder(w).Encode(details)
}

func (c *CampaignController) ListRecipients(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	recipients, pagination, err := c.CampaignService.ListRecipients(id, status, page, pageSize)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       recipients,
		"pagination": pagination,
	})
}

func (c *CampaignController) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		ContactID int `json:"contact_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	subject, html, err := c.CampaignService.Preview(id, body.ContactID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"subject":    subject,
		"html":       html,
		"contact_id": body.ContactID,
	})
}

// Dispatch runs exactly one batch for the campaign and reports
// sent/failed/remaining. Idempotent-safe: a scheduler calls it until
// remaining is zero.
func (c *CampaignController) Dispatch(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		SMTPPassword string `json:"smtp_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	result, err := c.Dispatcher.Dispatch(id, body.SMTPPassword)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusFor(err))
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	json.NewEncoder(w).Encode(result)
}

// Send runs the deliverability pre-check and enqueues the campaign for the
// background dispatch loop.
func (c *CampaignController) Send(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		HasCredentials bool `json:"has_credentials"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	issues, err := c.CampaignService.StartSend(id, body.HasCredentials)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusFor(err))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":  err.Error(),
			"issues": issues,
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign_id": id,
		"queued":      true,
		"issues":      issues,
	})
}

func (c *CampaignController) Pause(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.Pause(id); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"campaign_id": id, "status": "paused"})
}

func (c *CampaignController) Resume(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.Resume(id); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"campaign_id": id, "status": "sending"})
}

func campaignID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

// statusFor maps the service error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	var notFound *appErrors.ErrCampaignNotFound
	var tplNotFound *appErrors.ErrTemplateNotFound
	var busy *appErrors.ErrDispatchBusy
	var setup *appErrors.ErrSetup
	var transport *appErrors.ErrTransport
	var transition *appErrors.ErrInvalidTransition

	switch {
	case errors.As(err, &notFound), errors.As(err, &tplNotFound):
		return http.StatusNotFound
	case errors.As(err, &busy):
		return http.StatusConflict
	case errors.As(err, &setup), errors.As(err, &transition):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
