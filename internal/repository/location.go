// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/yipai/yipai/pkg/model"
)

// LocationRepositoryInterface 科室仓储接口
type LocationRepositoryInterface interface {
	Create(ctx context.Context, location *model.Location) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Location, error)
	List(ctx context.Context, filter ListFilter) ([]*model.Location, int, error)
	SaveConfig(ctx context.Context, cfg *model.ShiftTypeConfig) error
	DeleteConfig(ctx context.Context, id uuid.UUID) error
}

// LocationRepository 科室仓储实现
type LocationRepository struct {
	db DB
}

// NewLocationRepository 创建科室仓储
func NewLocationRepository(db DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// Create 创建科室
func (r *LocationRepository) Create(ctx context.Context, location *model.Location) error {
	if location.ID == uuid.Nil {
		location.ID = uuid.New()
	}
	now := time.Now()
	location.CreatedAt = now
	location.UpdatedAt = now

	query := `
		INSERT INTO locations (id, name, code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		location.ID, location.Name, location.Code, location.CreatedAt, location.UpdatedAt)
	if err != nil {
		return fmt.Errorf("创建科室失败: %w", err)
	}

	for _, cfg := range location.Configs {
		cfg.LocationID = location.ID
		if err := r.SaveConfig(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}

// GetByID 根据ID获取科室（含班型配置）；不存在时返回 nil
func (r *LocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Location, error) {
	location := &model.Location{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, code, created_at, updated_at FROM locations WHERE id = $1`, id,
	).Scan(&location.ID, &location.Name, &location.Code, &location.CreatedAt, &location.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询科室失败: %w", err)
	}

	configs, err := r.listConfigs(ctx, id)
	if err != nil {
		return nil, err
	}
	location.Configs = configs
	return location, nil
}

// List 列出科室
func (r *LocationRepository) List(ctx context.Context, filter ListFilter) ([]*model.Location, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("统计科室数量失败: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, name, code, created_at, updated_at FROM locations
		ORDER BY %s %s
		LIMIT $1 OFFSET $2
	`, filter.OrderBy, filter.OrderDir)

	rows, err := r.db.QueryContext(ctx, query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("查询科室列表失败: %w", err)
	}
	defer rows.Close()

	var locations []*model.Location
	for rows.Next() {
		l := &model.Location{}
		if err := rows.Scan(&l.ID, &l.Name, &l.Code, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("扫描科室失败: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, total, rows.Err()
}

// SaveConfig 保存班型配置（upsert）
func (r *LocationRepository) SaveConfig(ctx context.Context, cfg *model.ShiftTypeConfig) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	now := time.Now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	weekdays := make([]int64, len(cfg.Weekdays))
	for i, wd := range cfg.Weekdays {
		weekdays[i] = int64(wd)
	}
	definitionsJSON, _ := json.Marshal(cfg.Definitions)

	query := `
		INSERT INTO shift_type_configs (id, location_id, name, weekdays, definitions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, weekdays = EXCLUDED.weekdays,
			definitions = EXCLUDED.definitions, updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		cfg.ID, cfg.LocationID, cfg.Name, pq.Array(weekdays), definitionsJSON, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("保存班型配置失败: %w", err)
	}
	return nil
}

// DeleteConfig 删除班型配置
func (r *LocationRepository) DeleteConfig(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM shift_type_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("删除班型配置失败: %w", err)
	}
	return nil
}

// listConfigs 加载科室的班型配置
func (r *LocationRepository) listConfigs(ctx context.Context, locationID uuid.UUID) ([]*model.ShiftTypeConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, location_id, name, weekdays, definitions, created_at, updated_at
		FROM shift_type_configs
		WHERE location_id = $1
		ORDER BY name
	`, locationID)
	if err != nil {
		return nil, fmt.Errorf("查询班型配置失败: %w", err)
	}
	defer rows.Close()

	var configs []*model.ShiftTypeConfig
	for rows.Next() {
		cfg := &model.ShiftTypeConfig{}
		var weekdays pq.Int64Array
		var definitionsJSON []byte

		if err := rows.Scan(&cfg.ID, &cfg.LocationID, &cfg.Name, &weekdays, &definitionsJSON,
			&cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("扫描班型配置失败: %w", err)
		}

		for _, wd := range weekdays {
			cfg.Weekdays = append(cfg.Weekdays, time.Weekday(wd))
		}
		if len(definitionsJSON) > 0 {
			json.Unmarshal(definitionsJSON, &cfg.Definitions)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}
