package repository

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/mailblast/mailblast-backend/internal/model"
)

// ContactRepositoryInterface defines methods used by services
type ContactRepositoryInterface interface {
	GetByID(id int) (*model.Contact, error)
	Create(c *model.Contact) error
	List(offset, limit int, status string) ([]*model.Contact, int, error)
	ListActiveIDs() ([]int, error)
	FilterActiveIDs(ids []int) ([]int, error)
}

// ContactRepository is the concrete implementation
type ContactRepository struct {
	DB *sql.DB
}

// GetByID fetches a contact by ID
func (r *ContactRepository) GetByID(id int) (*model.Contact, error) {
	query := `
        SELECT id, email, first_name, last_name, company, phone, tags, status
        FROM contacts
        WHERE id = $1
    `
	row := r.DB.QueryRow(query, id)

	var c model.Contact
	var tags pq.StringArray
	if err := row.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Company, &c.Phone, &tags, &c.Status); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	c.Tags = tags
	return &c, nil
}

func (r *ContactRepository) Create(c *model.Contact) error {
	if c.Status == "" {
		c.Status = model.ContactActive
	}
	query := `
        INSERT INTO contacts (email, first_name, last_name, company, phone, tags, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.Email, c.FirstName, c.LastName, c.Company, c.Phone, pq.Array(c.Tags), c.Status).Scan(&c.ID)
}

func (r *ContactRepository) List(offset, limit int, status string) ([]*model.Contact, int, error) {
	query := `SELECT id, email, first_name, last_name, company, phone, tags, status FROM contacts WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	contacts := []*model.Contact{}
	for rows.Next() {
		c := &model.Contact{}
		var tags pq.StringArray
		if err := rows.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Company, &c.Phone, &tags, &c.Status); err != nil {
			return nil, 0, err
		}
		c.Tags = tags
		contacts = append(contacts, c)
	}

	countQuery := `SELECT COUNT(*) FROM contacts WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}
	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return contacts, total, nil
}

// ListActiveIDs returns ids of all active contacts, in id order. Used when a
// campaign snapshot targets the whole active list.
func (r *ContactRepository) ListActiveIDs() ([]int, error) {
	rows, err := r.DB.Query(`SELECT id FROM contacts WHERE status='active' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FilterActiveIDs keeps only the ids that belong to active contacts, so
// unsubscribed and bounced contacts never enter a campaign snapshot.
func (r *ContactRepository) FilterActiveIDs(ids []int) ([]int, error) {
	rows, err := r.DB.Query(`SELECT id FROM contacts WHERE status='active' AND id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	filtered := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		filtered = append(filtered, id)
	}
	return filtered, rows.Err()
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
