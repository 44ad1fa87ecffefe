// internal/model/smtp_settings.go
package model

// SMTPSettings holds the stored part of the SMTP account. The password is
// never persisted; it is supplied fresh on every dispatch call.
type SMTPSettings struct {
	ID        int    `db:"id" json:"id"`
	Host      string `db:"host" json:"host"`
	Port      int    `db:"port" json:"port"`
	Username  string `db:"username" json:"username"`
	FromName  string `db:"from_name" json:"from_name"`
	FromEmail string `db:"from_email" json:"from_email"`
	UseTLS    bool   `db:"use_tls" json:"use_tls"`
}
