package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mailblast/mailblast-backend/internal/model"
)

type RecipientRepositoryInterface interface {
	ClaimPending(campaignID, limit int) ([]*model.CampaignRecipient, error)
	Unclaim(campaignID int) (int, error)
	MarkSent(id int) error
	MarkFailed(id int, errMsg string) error
	MarkEngagement(id int, status string) error
	CountPending(campaignID int) (int, error)
	ListByCampaign(campaignID int, status string, offset, limit int) ([]*model.CampaignRecipient, int, error)
}

type RecipientRepository struct {
	DB *sql.DB
}

// ClaimPending atomically flips up to limit pending rows to the sending
// marker, in id (creation) order, and returns them joined with their
// contacts. The single conditional UPDATE is what makes the claim safe under
// concurrent invocations: a row claimed here can never be re-selected by
// another run.
func (r *RecipientRepository) ClaimPending(campaignID, limit int) ([]*model.CampaignRecipient, error) {
	claim := `
        UPDATE campaign_recipients SET status='sending'
        WHERE id IN (
            SELECT id FROM campaign_recipients
            WHERE campaign_id=$1 AND status='pending'
            ORDER BY id
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id
    `
	rows, err := r.DB.Query(claim, campaignID, limit)
	if err != nil {
		return nil, err
	}
	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.CampaignRecipient{}, nil
	}

	query := `
        SELECT cr.id, cr.campaign_id, cr.contact_id, cr.status, cr.created_at,
               c.id, c.email, c.first_name, c.last_name, c.company, c.phone, c.status
        FROM campaign_recipients cr
        JOIN contacts c ON c.id = cr.contact_id
        WHERE cr.id = ANY($1)
        ORDER BY cr.id
    `
	joined, err := r.DB.Query(query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer joined.Close()

	recipients := []*model.CampaignRecipient{}
	for joined.Next() {
		cr := &model.CampaignRecipient{Contact: &model.Contact{}}
		if err := joined.Scan(
			&cr.ID, &cr.CampaignID, &cr.ContactID, &cr.Status, &cr.CreatedAt,
			&cr.Contact.ID, &cr.Contact.Email, &cr.Contact.FirstName, &cr.Contact.LastName,
			&cr.Contact.Company, &cr.Contact.Phone, &cr.Contact.Status,
		); err != nil {
			return nil, err
		}
		recipients = append(recipients, cr)
	}
	return recipients, joined.Err()
}

// Unclaim returns rows stuck in the sending marker to pending. Only called
// while the campaign's dispatch lock is held (stale claims from a dead
// batch, or a batch whose SMTP session never opened), so no in-flight sender
// can exist for these rows.
func (r *RecipientRepository) Unclaim(campaignID int) (int, error) {
	res, err := r.DB.Exec(
		`UPDATE campaign_recipients SET status='pending' WHERE campaign_id=$1 AND status='sending'`,
		campaignID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *RecipientRepository) MarkSent(id int) error {
	query := `UPDATE campaign_recipients SET status='sent', sent_at=NOW(), error_message='' WHERE id=$1 AND status='sending'`
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *RecipientRepository) MarkFailed(id int, errMsg string) error {
	query := `UPDATE campaign_recipients SET status='failed', error_message=$1 WHERE id=$2 AND status='sending'`
	_, err := r.DB.Exec(query, errMsg, id)
	return err
}

// MarkEngagement flips a delivered row to opened or clicked. Owned by the
// tracking collaborator, never called from dispatch.
func (r *RecipientRepository) MarkEngagement(id int, status string) error {
	switch status {
	case model.RecipientOpened:
		_, err := r.DB.Exec(
			`UPDATE campaign_recipients SET status='opened', opened_at=COALESCE(opened_at, NOW()) WHERE id=$1 AND status='sent'`, id)
		return err
	case model.RecipientClicked:
		_, err := r.DB.Exec(
			`UPDATE campaign_recipients SET status='clicked', clicked_at=COALESCE(clicked_at, NOW()), opened_at=COALESCE(opened_at, NOW()) WHERE id=$1 AND status IN ('sent','opened')`, id)
		return err
	}
	return fmt.Errorf("unsupported engagement status: %s", status)
}

func (r *RecipientRepository) CountPending(campaignID int) (int, error) {
	var count int
	err := r.DB.QueryRow(
		`SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id=$1 AND status='pending'`,
		campaignID,
	).Scan(&count)
	return count, err
}

func (r *RecipientRepository) ListByCampaign(campaignID int, status string, offset, limit int) ([]*model.CampaignRecipient, int, error) {
	query := `
        SELECT cr.id, cr.campaign_id, cr.contact_id, cr.status, cr.sent_at, cr.opened_at, cr.clicked_at,
               COALESCE(cr.error_message, ''), cr.created_at,
               c.id, c.email, c.first_name, c.last_name, c.company, c.phone, c.status
        FROM campaign_recipients cr
        JOIN contacts c ON c.id = cr.contact_id
        WHERE cr.campaign_id=$1
    `
	args := []interface{}{campaignID}
	argPos := 2
	if status != "" {
		query += fmt.Sprintf(" AND cr.status=$%d", argPos)
		args = append(args, status)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY cr.id LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	recipients := []*model.CampaignRecipient{}
	for rows.Next() {
		cr := &model.CampaignRecipient{Contact: &model.Contact{}}
		var sentAt, openedAt, clickedAt sql.NullTime
		if err := rows.Scan(
			&cr.ID, &cr.CampaignID, &cr.ContactID, &cr.Status, &sentAt, &openedAt, &clickedAt,
			&cr.ErrorMessage, &cr.CreatedAt,
			&cr.Contact.ID, &cr.Contact.Email, &cr.Contact.FirstName, &cr.Contact.LastName,
			&cr.Contact.Company, &cr.Contact.Phone, &cr.Contact.Status,
		); err != nil {
			return nil, 0, err
		}
		cr.SentAt = nullTimePtr(sentAt)
		cr.OpenedAt = nullTimePtr(openedAt)
		cr.ClickedAt = nullTimePtr(clickedAt)
		recipients = append(recipients, cr)
	}

	countQuery := `SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id=$1`
	argsCount := []interface{}{campaignID}
	if status != "" {
		countQuery += " AND status=$2"
		argsCount = append(argsCount, status)
	}
	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return recipients, total, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
