// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/mailblast/mailblast-backend/internal/controller"
	"github.com/mailblast/mailblast-backend/internal/db"
	"github.com/mailblast/mailblast-backend/internal/mailer"
	"github.com/mailblast/mailblast-backend/internal/queue"
	"github.com/mailblast/mailblast-backend/internal/repository"
	"github.com/mailblast/mailblast-backend/internal/service"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	// Init DB
	db.Init()

	contactRepo := &repository.ContactRepository{DB: db.DB}
	campaignRepo := &repository.CampaignRepository{DB: db.DB}
	templateRepo := &repository.TemplateRepository{DB: db.DB}
	recipientRepo := &repository.RecipientRepository{DB: db.DB}
	settingsRepo := &repository.SMTPSettingsRepository{DB: db.DB}

	dialer := mailer.NewSMTPDialer()

	dispatcher := service.NewDispatcher(campaignRepo, recipientRepo, templateRepo, settingsRepo, dialer)
	dispatcher.BatchSize = envInt("DISPATCH_BATCH_SIZE", service.DefaultBatchSize)
	dispatcher.PacingDelay = time.Duration(envInt("DISPATCH_PACING_MS", 100)) * time.Millisecond

	// In-process dispatch loop; the standalone worker consumes the same
	// topic over AMQP when it runs instead.
	q := queue.NewInMemoryQueue()
	queue.StartDispatchSubscriber(q, func(campaignID int) (int, error) {
		result, err := dispatcher.Dispatch(campaignID, os.Getenv("SMTP_PASSWORD"))
		if err != nil {
			return 0, err
		}
		return result.Remaining, nil
	})

	campaignService := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		ContactRepo:   contactRepo,
		TemplateRepo:  templateRepo,
		RecipientRepo: recipientRepo,
		SettingsRepo:  settingsRepo,
		Queue:         q,
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Dispatcher:      dispatcher,
	}
	contactController := &controller.ContactController{ContactRepo: contactRepo}
	templateController := &controller.TemplateController{TemplateRepo: templateRepo}
	deliveryController := &controller.DeliveryController{
		TemplateRepo: templateRepo,
		SettingsRepo: settingsRepo,
		Dialer:       dialer,
	}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaignDetails)
	r.Put("/campaigns/{id}", campaignController.UpdateCampaign)
	r.Get("/campaigns/{id}/recipients", campaignController.ListRecipients)
	r.Post("/campaigns/{id}/preview", campaignController.Preview)
	r.Post("/campaigns/{id}/send", campaignController.Send)
	r.Post("/campaigns/{id}/dispatch", campaignController.Dispatch)
	r.Post("/campaigns/{id}/pause", campaignController.Pause)
	r.Post("/campaigns/{id}/resume", campaignController.Resume)

	// Contact routes
	r.Post("/contacts", contactController.CreateContact)
	r.Get("/contacts", contactController.ListContacts)
	r.Get("/contacts/{id}", contactController.GetContact)

	// Template routes
	r.Post("/templates", templateController.CreateTemplate)
	r.Get("/templates", templateController.ListTemplates)
	r.Get("/templates/{id}", templateController.GetTemplate)

	// Deliverability + SMTP
	r.Post("/deliverability/check", deliveryController.CheckDeliverability)
	r.Post("/smtp/test", deliveryController.TestSMTP)
	r.Get("/settings/smtp", deliveryController.GetSMTPSettings)
	r.Put("/settings/smtp", deliveryController.SaveSMTPSettings)

	addr := ":" + envStr("PORT", "8080")
	log.Println("🚀 Server running on", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
