// internal/model/contact.go
package model

const (
	ContactActive       = "active"
	ContactUnsubscribed = "unsubscribed"
	ContactBounced      = "bounced"
)

type Contact struct {
	ID        int      `db:"id" json:"id"`
	Email     string   `db:"email" json:"email"`
	FirstName string   `db:"first_name" json:"first_name"`
	LastName  string   `db:"last_name" json:"last_name"`
	Company   string   `db:"company" json:"company"`
	Phone     string   `db:"phone" json:"phone"`
	Tags      []string `db:"tags" json:"tags"`
	Status    string   `db:"status" json:"status"` // active, unsubscribed, bounced
}
