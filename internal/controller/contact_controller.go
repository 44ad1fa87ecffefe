package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mailblast/mailblast-backend/internal/model"
	"github.com/mailblast/mailblast-backend/internal/repository"
)

// ContactController is thin CRUD over the contact store; segmentation and
// import parsing live outside this service.
type ContactController struct {
	ContactRepo repository.ContactRepositoryInterface
}

func (c *ContactController) CreateContact(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email     string   `json:"email"`
		FirstName string   `json:"first_name"`
		LastName  string   `json:"last_name"`
		Company   string   `json:"company"`
		Phone     string   `json:"phone"`
		Tags      []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	contact := &model.Contact{
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Company:   body.Company,
		Phone:     body.Phone,
		Tags:      body.Tags,
		Status:    model.ContactActive,
	}
	if err := c.ContactRepo.Create(contact); err != nil {
		http.Error(w, "failed to create contact: "+err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(contact)
}

func (c *ContactController) ListContacts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	contacts, total, err := c.ContactRepo.List((page-1)*pageSize, pageSize, status)
	if err != nil {
		http.Error(w, "failed to fetch contacts: "+err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": contacts,
		"pagination": map[string]int{
			"page":        page,
			"page_size":   pageSize,
			"total_count": total,
			"total_pages": (total + pageSize - 1) / pageSize,
		},
	})
}

func (c *ContactController) GetContact(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid contact id", http.StatusBadRequest)
		return
	}

	contact, err := c.ContactRepo.GetByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if contact == nil {
		http.Error(w, "contact not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(contact)
}
