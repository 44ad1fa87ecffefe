package repository

import (
	"database/sql"

	"github.com/mailblast/mailblast-backend/internal/model"
)

type SMTPSettingsRepositoryInterface interface {
	Get() (*model.SMTPSettings, error)
	Save(s *model.SMTPSettings) error
}

// SMTPSettingsRepository stores the single SMTP account used for sending.
// The password column does not exist: the password is supplied fresh on
// every dispatch call and is never persisted.
type SMTPSettingsRepository struct {
	DB *sql.DB
}

// Get returns the most recently saved settings, or nil if none exist yet.
func (r *SMTPSettingsRepository) Get() (*model.SMTPSettings, error) {
	query := `SELECT id, host, port, username, from_name, from_email, use_tls FROM smtp_settings ORDER BY id DESC LIMIT 1`
	var s model.SMTPSettings
	err := r.DB.QueryRow(query).Scan(&s.ID, &s.Host, &s.Port, &s.Username, &s.FromName, &s.FromEmail, &s.UseTLS)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SMTPSettingsRepository) Save(s *model.SMTPSettings) error {
	query := `
        INSERT INTO smtp_settings (host, port, username, from_name, from_email, use_tls)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	return r.DB.QueryRow(query, s.Host, s.Port, s.Username, s.FromName, s.FromEmail, s.UseTLS).Scan(&s.ID)
}

var _ SMTPSettingsRepositoryInterface = (*SMTPSettingsRepository)(nil)
