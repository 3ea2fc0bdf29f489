package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/unclebandit/crm-backend/internal/db"
	"github.com/unclebandit/crm-backend/internal/model"
)

type CommunicationLogRepositoryInterface interface {
	// CreatePending inserts one PENDING log per customer, all or nothing, and
	// returns them in customerIDs order.
	CreatePending(ctx context.Context, campaignID string, customerIDs []string) ([]model.CommunicationLog, error)

	// ApplyReceipts folds a batch of receipts into the matching logs inside a
	// single transaction.
	ApplyReceipts(ctx context.Context, receipts []model.DeliveryReceipt) error

	StatusCounts(ctx context.Context, campaignID string) (map[model.LogStatus]int, error)
}

type CommunicationLogRepository struct {
	DB *sql.DB

	// Now stamps created_at and sent_at; defaults to time.Now.
	Now func() time.Time
}

func (r *CommunicationLogRepository) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *CommunicationLogRepository) CreatePending(ctx context.Context, campaignID string, customerIDs []string) ([]model.CommunicationLog, error) {
	if len(customerIDs) == 0 {
		return []model.CommunicationLog{}, nil
	}

	createdAt := r.now()
	logs := make([]model.CommunicationLog, len(customerIDs))
	ids := make([]string, len(customerIDs))
	for i, customerID := range customerIDs {
		ids[i] = uuid.NewString()
		logs[i] = model.CommunicationLog{
			ID:         ids[i],
			CampaignID: campaignID,
			CustomerID: customerID,
			Status:     model.LogPending,
			CreatedAt:  createdAt,
		}
	}

	query := `
		INSERT INTO communication_logs (id, campaign_id, customer_id, status, created_at)
		SELECT log_id, $2::text, customer_id, 'PENDING', $4::timestamptz
		FROM UNNEST($1::text[], $3::text[]) AS t(log_id, customer_id)
	`
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, pq.Array(ids), campaignID, pq.Array(customerIDs), createdAt)
		if err != nil {
			return fmt.Errorf("insert pending logs: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if int(n) != len(ids) {
			return fmt.Errorf("insert pending logs: expected %d rows, inserted %d", len(ids), n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *CommunicationLogRepository) ApplyReceipts(ctx context.Context, receipts []model.DeliveryReceipt) error {
	if len(receipts) == 0 {
		return nil
	}

	query := `
		UPDATE communication_logs
		SET status = $1,
		    sent_at = CASE WHEN $1 = 'SENT' THEN $2::timestamptz ELSE sent_at END,
		    error = CASE WHEN $1 = 'FAILED' THEN $3 ELSE error END
		WHERE campaign_id = $4 AND customer_id = $5
	`
	sentAt := r.now()

	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare receipt update: %w", err)
		}
		defer stmt.Close()

		for _, rc := range receipts {
			if _, err := stmt.ExecContext(ctx, string(rc.Status), sentAt, rc.Error, rc.CampaignID, rc.CustomerID); err != nil {
				return fmt.Errorf("apply receipt campaign=%s customer=%s: %w", rc.CampaignID, rc.CustomerID, err)
			}
		}
		return nil
	})
}

func (r *CommunicationLogRepository) StatusCounts(ctx context.Context, campaignID string) (map[model.LogStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM communication_logs WHERE campaign_id = $1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign stats: %w", err)
	}
	defer rows.Close()

	stats := map[model.LogStatus]int{model.LogPending: 0, model.LogSent: 0, model.LogFailed: 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[model.LogStatus(status)] = count
	}
	return stats, rows.Err()
}

var _ CommunicationLogRepositoryInterface = (*CommunicationLogRepository)(nil)
