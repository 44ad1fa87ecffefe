package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/mailblast/mailblast-backend/internal/errors"
	"github.com/mailblast/mailblast-backend/internal/model"
)

type TemplateRepositoryInterface interface {
	GetByID(id int) (*model.Template, error)
	Create(t *model.Template) error
	List(offset, limit int) ([]*model.Template, int, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

func (r *TemplateRepository) GetByID(id int) (*model.Template, error) {
	query := `SELECT id, name, subject, html_content, created_at FROM templates WHERE id=$1`
	var t model.Template
	err := r.DB.QueryRow(query, id).Scan(&t.ID, &t.Name, &t.Subject, &t.HTMLContent, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewTemplateNotFound(id)
		}
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) Create(t *model.Template) error {
	t.CreatedAt = time.Now()
	query := `
        INSERT INTO templates (name, subject, html_content, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	return r.DB.QueryRow(query, t.Name, t.Subject, t.HTMLContent, t.CreatedAt).Scan(&t.ID)
}

func (r *TemplateRepository) List(offset, limit int) ([]*model.Template, int, error) {
	rows, err := r.DB.Query(
		`SELECT id, name, subject, html_content, created_at FROM templates ORDER BY id DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	templates := []*model.Template{}
	for rows.Next() {
		t := &model.Template{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Subject, &t.HTMLContent, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		templates = append(templates, t)
	}

	var total int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM templates`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return templates, total, nil
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
