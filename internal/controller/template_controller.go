package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mailblast/mailblast-backend/internal/model"
	"github.com/mailblast/mailblast-backend/internal/repository"
)

type TemplateController struct {
	TemplateRepo repository.TemplateRepositoryInterface
}

func (c *TemplateController) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Subject     string `json:"subject"`
		HTMLContent string `json:"html_content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Subject == "" {
		http.Error(w, "name and subject are required", http.StatusBadRequest)
		return
	}

	template := &model.Template{
		Name:        body.Name,
		Subject:     body.Subject,
		HTMLContent: body.HTMLContent,
	}
	if err := c.TemplateRepo.Create(template); err != nil {
		http.Error(w, "failed to create template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(template)
}

func (c *TemplateController) ListTemplates(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	templates, total, err := c.TemplateRepo.List((page-1)*pageSize, pageSize)
	if err != nil {
		http.Error(w, "failed to fetch templates: "+err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": templates,
		"pagination": map[string]int{
			"page":        page,
			"page_size":   pageSize,
			"total_count": total,
			"total_pages": (total + pageSize - 1) / pageSize,
		},
	})
}

func (c *TemplateController) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid template id", http.StatusBadRequest)
		return
	}

	template, err := c.TemplateRepo.GetByID(id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	json.NewEncoder(w).Encode(template)
}
