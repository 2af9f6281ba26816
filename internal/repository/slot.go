// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/model"
)

// SlotRepositoryInterface 槽位仓储接口
type SlotRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ShiftSlot, error)
	ListRange(ctx context.Context, locationID uuid.UUID, dr model.DateRange) ([]*model.ShiftSlot, error)
	ReplaceRange(ctx context.Context, locationID uuid.UUID, dr model.DateRange, slots []*model.ShiftSlot) error
	Update(ctx context.Context, slot *model.ShiftSlot) error
	DeleteRange(ctx context.Context, locationID uuid.UUID, dr model.DateRange) (int, error)
}

// Transactor 在一个数据库事务内执行一批仓储操作
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// SlotRepository 槽位仓储实现
type SlotRepository struct {
	db DB
	tx Transactor
}

// NewSlotRepository 创建槽位仓储
func NewSlotRepository(db DB, tx Transactor) *SlotRepository {
	return &SlotRepository{db: db, tx: tx}
}

const slotColumns = `id, location_id, date, config_name, shift_name, start_time, end_time,
	headcount, required, assigned, version, created_at, updated_at`

// GetByID 根据ID获取槽位；不存在时返回 nil
func (r *SlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ShiftSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM shift_slots WHERE id = $1`, slotColumns)
	slot, err := scanSlot(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询槽位失败: %w", err)
	}
	return slot, nil
}

// ListRange 列出科室在日期范围内的槽位，按日期和开始时间排序
func (r *SlotRepository) ListRange(ctx context.Context, locationID uuid.UUID, dr model.DateRange) ([]*model.ShiftSlot, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM shift_slots
		WHERE location_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date, start_time, shift_name
	`, slotColumns)

	rows, err := r.db.QueryContext(ctx, query, locationID, dr.StartDate, dr.EndDate)
	if err != nil {
		return nil, fmt.Errorf("查询槽位列表失败: %w", err)
	}
	defer rows.Close()

	var slots []*model.ShiftSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描槽位失败: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// ReplaceRange 单事务内整体替换日期范围内的槽位
func (r *SlotRepository) ReplaceRange(ctx context.Context, locationID uuid.UUID, dr model.DateRange, slots []*model.ShiftSlot) error {
	return r.tx.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM shift_slots WHERE location_id = $1 AND date >= $2 AND date <= $3`,
			locationID, dr.StartDate, dr.EndDate)
		if err != nil {
			return fmt.Errorf("删除旧槽位失败: %w", err)
		}

		for _, slot := range slots {
			if err := insertSlot(ctx, tx, slot); err != nil {
				return err
			}
		}
		return nil
	})
}

// insertSlot 插入单个槽位
func insertSlot(ctx context.Context, db DB, slot *model.ShiftSlot) error {
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	now := time.Now()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now
	if slot.Version == 0 {
		slot.Version = 1
	}

	headcountJSON, _ := json.Marshal(slot.Definition.Headcount)
	requiredJSON, _ := json.Marshal(slot.Required)
	assignedJSON, _ := json.Marshal(slot.Assigned)

	query := `
		INSERT INTO shift_slots (
			id, location_id, date, config_name, shift_name, start_time, end_time,
			headcount, required, assigned, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := db.ExecContext(ctx, query,
		slot.ID, slot.LocationID, slot.Date, slot.ConfigName,
		slot.Definition.Name, slot.Definition.StartTime, slot.Definition.EndTime,
		headcountJSON, requiredJSON, assignedJSON,
		slot.Version, slot.CreatedAt, slot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("插入槽位失败: %w", err)
	}
	return nil
}

// Update 乐观锁更新槽位分配；版本不匹配返回 STALE_STATE_CONFLICT
func (r *SlotRepository) Update(ctx context.Context, slot *model.ShiftSlot) error {
	assignedJSON, _ := json.Marshal(slot.Assigned)
	requiredJSON, _ := json.Marshal(slot.Required)
	now := time.Now()

	query := `
		UPDATE shift_slots SET
			required = $3, assigned = $4, version = version + 1, updated_at = $5
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.ExecContext(ctx, query, slot.ID, slot.Version, requiredJSON, assignedJSON, now)
	if err != nil {
		return errors.PersistenceFailure(err, "更新槽位")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.PersistenceFailure(err, "更新槽位")
	}
	if affected == 0 {
		return errors.StaleState("slot", slot.ID.String())
	}

	slot.Version++
	slot.UpdatedAt = now
	return nil
}

// DeleteRange 删除日期范围内的槽位，返回删除数量
func (r *SlotRepository) DeleteRange(ctx context.Context, locationID uuid.UUID, dr model.DateRange) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM shift_slots WHERE location_id = $1 AND date >= $2 AND date <= $3`,
		locationID, dr.StartDate, dr.EndDate)
	if err != nil {
		return 0, fmt.Errorf("删除槽位失败: %w", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// scanSlot 扫描单行槽位
func scanSlot(row Scanner) (*model.ShiftSlot, error) {
	slot := &model.ShiftSlot{}
	var headcountJSON, requiredJSON, assignedJSON []byte

	err := row.Scan(
		&slot.ID, &slot.LocationID, &slot.Date, &slot.ConfigName,
		&slot.Definition.Name, &slot.Definition.StartTime, &slot.Definition.EndTime,
		&headcountJSON, &requiredJSON, &assignedJSON,
		&slot.Version, &slot.CreatedAt, &slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(headcountJSON) > 0 {
		json.Unmarshal(headcountJSON, &slot.Definition.Headcount)
	}
	if len(requiredJSON) > 0 {
		json.Unmarshal(requiredJSON, &slot.Required)
	}
	if len(assignedJSON) > 0 {
		json.Unmarshal(assignedJSON, &slot.Assigned)
	}
	return slot, nil
}
