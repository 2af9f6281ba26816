// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/model"
)

// OverworkRepository 加班申请仓储，实现 overwork.Store
type OverworkRepository struct {
	db DB
}

// NewOverworkRepository 创建加班申请仓储
func NewOverworkRepository(db DB) *OverworkRepository {
	return &OverworkRepository{db: db}
}

const overworkColumns = `id, staff_id, extra_shifts, extra_hours, kind, expires_at,
	reason, urgency, status, approved_at, decided_by, decided_at, created_at, updated_at`

// Create 创建加班申请
func (r *OverworkRepository) Create(ctx context.Context, req *model.OverworkRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	now := time.Now()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now

	query := `
		INSERT INTO overwork_requests (
			id, staff_id, extra_shifts, extra_hours, kind, expires_at,
			reason, urgency, status, approved_at, decided_by, decided_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.StaffID, req.ExtraShifts, req.ExtraHours, req.Kind, req.ExpiresAt,
		req.Reason, req.Urgency, req.Status, req.ApprovedAt, req.DecidedBy, req.DecidedAt,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建加班申请失败: %w", err)
	}
	return nil
}

// GetByID 根据ID获取加班申请
func (r *OverworkRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.OverworkRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM overwork_requests WHERE id = $1`, overworkColumns)
	req, err := scanOverwork(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询加班申请失败: %w", err)
	}
	return req, nil
}

// Update 更新加班申请状态
func (r *OverworkRepository) Update(ctx context.Context, req *model.OverworkRequest) error {
	req.UpdatedAt = time.Now()

	query := `
		UPDATE overwork_requests SET
			status = $2, approved_at = $3, decided_by = $4, decided_at = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		req.ID, req.Status, req.ApprovedAt, req.DecidedBy, req.DecidedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("更新加班申请失败: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("overwork_request", req.ID.String())
	}
	return nil
}

// ListByStaff 列出员工的全部加班申请，最新在前
func (r *OverworkRepository) ListByStaff(ctx context.Context, staffID uuid.UUID) ([]*model.OverworkRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM overwork_requests
		WHERE staff_id = $1
		ORDER BY created_at DESC
	`, overworkColumns)

	rows, err := r.db.QueryContext(ctx, query, staffID)
	if err != nil {
		return nil, fmt.Errorf("查询加班申请列表失败: %w", err)
	}
	defer rows.Close()

	var requests []*model.OverworkRequest
	for rows.Next() {
		req, err := scanOverwork(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描加班申请失败: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// scanOverwork 扫描单行加班申请
func scanOverwork(row Scanner) (*model.OverworkRequest, error) {
	req := &model.OverworkRequest{}
	err := row.Scan(
		&req.ID, &req.StaffID, &req.ExtraShifts, &req.ExtraHours, &req.Kind, &req.ExpiresAt,
		&req.Reason, &req.Urgency, &req.Status, &req.ApprovedAt, &req.DecidedBy, &req.DecidedAt,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}
