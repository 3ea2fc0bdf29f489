package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/unclebandit/crm-backend/internal/db"
	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

type SegmentRepositoryInterface interface {
	Create(ctx context.Context, s *model.Segment) error

	// CreateWithCampaign stores the segment and a campaign targeting it in one
	// transaction; neither is kept when either insert fails.
	CreateWithCampaign(ctx context.Context, s *model.Segment, c *model.Campaign) error
	GetByID(ctx context.Context, id string) (*model.Segment, error)
	List(ctx context.Context, ownerID string) ([]*model.Segment, error)
	Update(ctx context.Context, s *model.Segment) error
	Delete(ctx context.Context, id string) error
}

type SegmentRepository struct {
	DB *sql.DB
}

const segmentColumns = `id, name, rules, audience_size, owner_id, created_at, updated_at`

func scanSegment(row interface{ Scan(...any) error }) (*model.Segment, error) {
	var (
		s     model.Segment
		rules []byte
	)
	if err := row.Scan(&s.ID, &s.Name, &rules, &s.AudienceSize, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rules, &s.Rules); err != nil {
		return nil, fmt.Errorf("decode rules of segment %s: %w", s.ID, err)
	}
	return &s, nil
}

func (r *SegmentRepository) Create(ctx context.Context, s *model.Segment) error {
	return insertSegment(ctx, r.DB, s)
}

func (r *SegmentRepository) CreateWithCampaign(ctx context.Context, s *model.Segment, c *model.Campaign) error {
	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := insertSegment(ctx, tx, s); err != nil {
			return err
		}
		return insertCampaign(ctx, tx, c)
	})
}

func insertSegment(ctx context.Context, ex execer, s *model.Segment) error {
	rules, err := json.Marshal(s.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	s.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO segments (id, name, rules, audience_size, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := ex.ExecContext(ctx, query, s.ID, s.Name, rules, s.AudienceSize, s.OwnerID, s.CreatedAt); err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

func (r *SegmentRepository) GetByID(ctx context.Context, id string) (*model.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments WHERE id = $1`
	s, err := scanSegment(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("segment", id)
		}
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return s, nil
}

func (r *SegmentRepository) List(ctx context.Context, ownerID string) ([]*model.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	segments := []*model.Segment{}
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

func (r *SegmentRepository) Update(ctx context.Context, s *model.Segment) error {
	rules, err := json.Marshal(s.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	now := time.Now().UTC()

	query := `
		UPDATE segments
		SET name = $1, rules = $2, audience_size = $3, updated_at = $4
		WHERE id = $5
	`
	res, err := r.DB.ExecContext(ctx, query, s.Name, rules, s.AudienceSize, now, s.ID)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	if err := expectAffected(res, appErrors.NewNotFound("segment", s.ID)); err != nil {
		return err
	}
	s.UpdatedAt = &now
	return nil
}

func (r *SegmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	return expectAffected(res, appErrors.NewNotFound("segment", id))
}

var _ SegmentRepositoryInterface = (*SegmentRepository)(nil)
