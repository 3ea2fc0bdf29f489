package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	List(ctx context.Context, ownerID string, offset, limit int, status string) ([]*model.Campaign, int, error)
	Update(ctx context.Context, c *model.Campaign) error
	UpdateStatus(ctx context.Context, id string, status model.CampaignStatus) error

	// TransitionStatus moves the campaign from one status to another in a
	// single statement. It reports false when the campaign was not in from.
	TransitionStatus(ctx context.Context, id string, from, to model.CampaignStatus) (bool, error)
	Delete(ctx context.Context, id string) error

	// CompleteIfDelivered moves SENDING campaigns among ids to COMPLETED when
	// none of their logs is PENDING and returns how many rows changed.
	CompleteIfDelivered(ctx context.Context, ids []string) (int64, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, message, status, segment_id, owner_id, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	if err := row.Scan(&c.ID, &c.Name, &c.Message, &c.Status, &c.SegmentID, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	return insertCampaign(ctx, r.DB, c)
}

func insertCampaign(ctx context.Context, ex execer, c *model.Campaign) error {
	c.CreatedAt = time.Now().UTC()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
		INSERT INTO campaigns (id, name, message, status, segment_id, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := ex.ExecContext(ctx, query, c.ID, c.Name, c.Message, c.Status, c.SegmentID, c.OwnerID, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepository) List(ctx context.Context, ownerID string, offset, limit int, status string) ([]*model.Campaign, int, error) {
	where := ` WHERE owner_id = $1`
	args := []any{ownerID}
	argPos := 2

	if status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, status)
		argPos++
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)

	rows, err := r.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	now := time.Now().UTC()
	query := `
		UPDATE campaigns
		SET name = $1, message = $2, segment_id = $3, updated_at = $4
		WHERE id = $5
	`
	res, err := r.DB.ExecContext(ctx, query, c.Name, c.Message, c.SegmentID, now, c.ID)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if err := expectAffected(res, appErrors.NewCampaignNotFound(c.ID)); err != nil {
		return err
	}
	c.UpdatedAt = &now
	return nil
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3`
	res, err := r.DB.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	return expectAffected(res, appErrors.NewCampaignNotFound(id))
}

func (r *CampaignRepository) TransitionStatus(ctx context.Context, id string, from, to model.CampaignStatus) (bool, error) {
	query := `UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.DB.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("transition campaign status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return expectAffected(res, appErrors.NewCampaignNotFound(id))
}

func (r *CampaignRepository) CompleteIfDelivered(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE campaigns c
		SET status = 'COMPLETED', updated_at = NOW()
		WHERE c.id = ANY($1) AND c.status = 'SENDING'
		  AND NOT EXISTS (
			SELECT 1 FROM communication_logs l
			WHERE l.campaign_id = c.id AND l.status = 'PENDING'
		  )
	`
	res, err := r.DB.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("complete campaigns: %w", err)
	}
	return res.RowsAffected()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// expectAffected returns notFound when the statement touched no rows.
func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
