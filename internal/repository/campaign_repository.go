package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/mailblast/mailblast-backend/internal/errors"
	"github.com/mailblast/mailblast-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	CreateWithRecipients(c *model.Campaign, contactIDs []int) error
	GetByID(id int) (*model.Campaign, error)
	Update(c *model.Campaign) error
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)
	ListDueScheduled(now time.Time) ([]int, error)

	// Dispatch support
	TransitionStatus(campaignID int, from []string, to string) (bool, error)
	IncrementCounters(campaignID, sentDelta, failedDelta int) error
	ReconcileCounters(campaignID int) error
	GetRecipientStats(campaignID int) (map[string]int, error)
	AcquireDispatchLock(campaignID int) (release func(), ok bool, err error)
}

type CampaignRepository struct {
	DB *sql.DB
}

// Advisory lock namespace for dispatch; the second key is the campaign id.
const dispatchLockClass = 7340

// ====================== Campaign CRUD ======================

// CreateWithRecipients inserts the campaign together with its frozen
// recipient snapshot in one transaction. total_recipients is fixed here and
// never re-derived from the contact list afterwards.
func (r *CampaignRepository) CreateWithRecipients(c *model.Campaign, contactIDs []int) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	c.TotalRecipients = len(contactIDs)

	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO campaigns (name, template_id, status, total_recipients, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	err = tx.QueryRow(query, c.Name, c.TemplateID, c.Status, c.TotalRecipients, c.ScheduledAt, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return err
	}

	snapshot := `
        INSERT INTO campaign_recipients (campaign_id, contact_id, status, created_at)
        SELECT $1, unnest($2::int[]), 'pending', NOW()
        ON CONFLICT (campaign_id, contact_id) DO NOTHING
    `
	if _, err := tx.Exec(snapshot, c.ID, pq.Array(contactIDs)); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, template_id=$2, scheduled_at=$3, updated_at=NOW()
        WHERE id=$4
    `
	_, err := r.DB.Exec(query, c.Name, c.TemplateID, c.ScheduledAt, c.ID)
	return err
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, name, template_id, status, total_recipients, sent_count, failed_count,
               opened_count, clicked_count, scheduled_at, started_at, completed_at, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.Name, &c.TemplateID, &c.Status, &c.TotalRecipients, &c.SentCount, &c.FailedCount,
		&c.OpenedCount, &c.ClickedCount, &c.ScheduledAt, &c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `
        SELECT id, name, template_id, status, total_recipients, sent_count, failed_count,
               opened_count, clicked_count, scheduled_at, started_at, completed_at, created_at, updated_at
        FROM campaigns WHERE 1=1
    `
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(
			&c.ID, &c.Name, &c.TemplateID, &c.Status, &c.TotalRecipients, &c.SentCount, &c.FailedCount,
			&c.OpenedCount, &c.ClickedCount, &c.ScheduledAt, &c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// ListDueScheduled returns ids of scheduled campaigns whose scheduled_at has
// passed. The worker's cron poller enqueues a dispatch job for each.
func (r *CampaignRepository) ListDueScheduled(now time.Time) ([]int, error) {
	query := `SELECT id FROM campaigns WHERE status='scheduled' AND scheduled_at IS NOT NULL AND scheduled_at <= $1 ORDER BY id`
	rows, err := r.DB.Query(query, now)
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

// ====================== Dispatch support ======================

// TransitionStatus moves the campaign to the given status only if its
// current status is in the from list, so state machine guards hold under
// concurrent invocations. started_at is stamped on the first entry into
// sending, completed_at on the entry into completed, never overwritten.
func (r *CampaignRepository) TransitionStatus(campaignID int, from []string, to string) (bool, error) {
	query := `
        UPDATE campaigns
        SET status=$1,
            started_at = CASE WHEN $1 = 'sending' THEN COALESCE(started_at, NOW()) ELSE started_at END,
            completed_at = CASE WHEN $1 = 'completed' THEN COALESCE(completed_at, NOW()) ELSE completed_at END,
            updated_at = NOW()
        WHERE id=$2 AND status = ANY($3)
    `
	res, err := r.DB.Exec(query, to, campaignID, pq.Array(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncrementCounters applies the batch deltas as a single atomic add, never
// a read-then-overwrite.
func (r *CampaignRepository) IncrementCounters(campaignID, sentDelta, failedDelta int) error {
	query := `
        UPDATE campaigns
        SET sent_count = sent_count + $1, failed_count = failed_count + $2, updated_at = NOW()
        WHERE id=$3
    `
	_, err := r.DB.Exec(query, sentDelta, failedDelta, campaignID)
	return err
}

// ReconcileCounters recomputes sent_count/failed_count from the recipient
// rows themselves. Run on the transition to completed so a lost increment
// cannot survive to the terminal state.
func (r *CampaignRepository) ReconcileCounters(campaignID int) error {
	query := `
        UPDATE campaigns SET
            sent_count = (SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id=$1 AND status IN ('sent','opened','clicked')),
            failed_count = (SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id=$1 AND status IN ('failed','bounced')),
            updated_at = NOW()
        WHERE id=$1
    `
	_, err := r.DB.Exec(query, campaignID)
	return err
}

func (r *CampaignRepository) GetRecipientStats(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_recipients WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		"total":   0,
		"pending": 0,
		"sending": 0,
		"sent":    0,
		"failed":  0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
		stats["total"] += count
	}
	return stats, rows.Err()
}

// AcquireDispatchLock takes the per-campaign advisory lock that keeps at
// most one dispatch invocation in flight per campaign. The lock lives on a
// dedicated connection; release unlocks and returns the connection to the
// pool. ok=false means another invocation holds it.
func (r *CampaignRepository) AcquireDispatchLock(campaignID int) (func(), bool, error) {
	ctx := context.Background()
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return nil, false, err
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1, $2)`, dispatchLockClass, campaignID).Scan(&ok); err != nil {
		conn.Close()
		return nil, false, err
	}
	if !ok {
		conn.Close()
		return nil, false, nil
	}

	release := func() {
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1, $2)`, dispatchLockClass, campaignID); err != nil {
			log.Println("⚠️ failed to release dispatch lock:", err)
		}
		conn.Close()
	}
	return release, true, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
