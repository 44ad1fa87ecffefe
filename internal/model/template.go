// internal/model/template.go
package model

import "time"

type Template struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Subject     string    `db:"subject" json:"subject"`
	HTMLContent string    `db:"html_content" json:"html_content"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
