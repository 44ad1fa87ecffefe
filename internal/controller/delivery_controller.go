package controller

import (
	"encoding/json"
	"net/http"

	"github.com/mailblast/mailblast-backend/internal/mailer"
	"github.com/mailblast/mailblast-backend/internal/model"
	"github.com/mailblast/mailblast-backend/internal/repository"
	"github.com/mailblast/mailblast-backend/internal/service"
)

// DeliveryController exposes the deliverability pre-check, the SMTP
// settings, and the real test-connection handshake.
type DeliveryController struct {
	TemplateRepo repository.TemplateRepositoryInterface
	SettingsRepo repository.SMTPSettingsRepositoryInterface
	Dialer       mailer.Dialer
}

func (c *DeliveryController) CheckDeliverability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TemplateID     int  `json:"template_id"`
		RecipientCount int  `json:"recipient_count"`
		HasCredentials bool `json:"has_credentials"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	template, err := c.TemplateRepo.GetByID(body.TemplateID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	issues := service.CheckDeliverability(template, body.RecipientCount, body.HasCredentials)
	json.NewEncoder(w).Encode(map[string]interface{}{"issues": issues})
}

// TestSMTP opens a real short-lived session: dial, authenticate, deliver one
// test message to the given address. No simulated check.
func (c *DeliveryController) TestSMTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SMTPPassword string `json:"smtp_password"`
		To           string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.To == "" {
		http.Error(w, "to address is required", http.StatusBadRequest)
		return
	}

	settings, err := c.SettingsRepo.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if settings == nil {
		http.Error(w, "SMTP settings not configured", http.StatusUnprocessableEntity)
		return
	}

	if err := mailer.TestConnection(c.Dialer, settings, body.SMTPPassword, body.To); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
}

func (c *DeliveryController) GetSMTPSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := c.SettingsRepo.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if settings == nil {
		http.Error(w, "SMTP settings not configured", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(settings)
}

func (c *DeliveryController) SaveSMTPSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Host      string `json:"host"`
		Port      int    `json:"port"`
		Username  string `json:"username"`
		FromName  string `json:"from_name"`
		FromEmail string `json:"from_email"`
		UseTLS    bool   `json:"use_tls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Host == "" || body.Port == 0 || body.FromEmail == "" {
		http.Error(w, "host, port and from_email are required", http.StatusBadRequest)
		return
	}

	settings := &model.SMTPSettings{
		Host:      body.Host,
		Port:      body.Port,
		Username:  body.Username,
		FromName:  body.FromName,
		FromEmail: body.FromEmail,
		UseTLS:    body.UseTLS,
	}
	if err := c.SettingsRepo.Save(settings); err != nil {
		http.Error(w, "failed to save settings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(settings)
}
