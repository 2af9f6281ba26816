// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/yipai/yipai/pkg/model"
)

// StaffRepositoryInterface 员工仓储接口
type StaffRepositoryInterface interface {
	Create(ctx context.Context, staff *model.StaffProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.StaffProfile, error)
	Update(ctx context.Context, staff *model.StaffProfile) error
	ListActive(ctx context.Context, locationID uuid.UUID) ([]*model.StaffProfile, error)
	List(ctx context.Context, filter ListFilter) ([]*model.StaffProfile, int, error)
}

// StaffRepository 员工仓储实现
type StaffRepository struct {
	db DB
}

// NewStaffRepository 创建员工仓储
func NewStaffRepository(db DB) *StaffRepository {
	return &StaffRepository{db: db}
}

const staffColumns = `id, name, code, role, location_ids, status, hire_date, leave_date, created_at, updated_at`

// Create 创建员工
func (r *StaffRepository) Create(ctx context.Context, staff *model.StaffProfile) error {
	if staff.ID == uuid.Nil {
		staff.ID = uuid.New()
	}
	now := time.Now()
	staff.CreatedAt = now
	staff.UpdatedAt = now

	query := `
		INSERT INTO staff_profiles (
			id, name, code, role, location_ids, status, hire_date, leave_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		staff.ID, staff.Name, staff.Code, staff.Role, pq.Array(locationIDStrings(staff.LocationIDs)),
		staff.Status, staff.HireDate, nullString(staff.LeaveDate), staff.CreatedAt, staff.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建员工失败: %w", err)
	}
	return nil
}

// GetByID 根据ID获取员工；不存在时返回 nil
func (r *StaffRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.StaffProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff_profiles WHERE id = $1`, staffColumns)
	staff, err := scanStaff(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询员工失败: %w", err)
	}
	return staff, nil
}

// Update 更新员工
func (r *StaffRepository) Update(ctx context.Context, staff *model.StaffProfile) error {
	staff.UpdatedAt = time.Now()

	query := `
		UPDATE staff_profiles SET
			name = $2, code = $3, role = $4, location_ids = $5,
			status = $6, hire_date = $7, leave_date = $8, updated_at = $9
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		staff.ID, staff.Name, staff.Code, staff.Role, pq.Array(locationIDStrings(staff.LocationIDs)),
		staff.Status, staff.HireDate, nullString(staff.LeaveDate), staff.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新员工失败: %w", err)
	}
	return nil
}

// ListActive 列出某科室的在职员工；空科室ID的员工视为全科室可用
func (r *StaffRepository) ListActive(ctx context.Context, locationID uuid.UUID) ([]*model.StaffProfile, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM staff_profiles
		WHERE status = 'active'
			AND (cardinality(location_ids) = 0 OR $1 = ANY(location_ids))
		ORDER BY name
	`, staffColumns)

	rows, err := r.db.QueryContext(ctx, query, locationID.String())
	if err != nil {
		return nil, fmt.Errorf("查询在职员工失败: %w", err)
	}
	defer rows.Close()

	return collectStaff(rows)
}

// List 列出员工
func (r *StaffRepository) List(ctx context.Context, filter ListFilter) ([]*model.StaffProfile, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, filter.Status)
		argNum++
	}
	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argNum))
		args = append(args, filter.Role)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM staff_profiles %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("统计员工数量失败: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM staff_profiles %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, staffColumns, whereClause, filter.OrderBy, filter.OrderDir, argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询员工列表失败: %w", err)
	}
	defer rows.Close()

	staff, err := collectStaff(rows)
	if err != nil {
		return nil, 0, err
	}
	return staff, total, nil
}

// collectStaff 收集多行员工
func collectStaff(rows *sql.Rows) ([]*model.StaffProfile, error) {
	var staff []*model.StaffProfile
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描员工失败: %w", err)
		}
		staff = append(staff, s)
	}
	return staff, rows.Err()
}

// scanStaff 扫描单行员工
func scanStaff(row Scanner) (*model.StaffProfile, error) {
	staff := &model.StaffProfile{}
	var locationIDs pq.StringArray
	var leaveDate sql.NullString

	err := row.Scan(
		&staff.ID, &staff.Name, &staff.Code, &staff.Role, &locationIDs,
		&staff.Status, &staff.HireDate, &leaveDate, &staff.CreatedAt, &staff.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, s := range locationIDs {
		if id, err := uuid.Parse(s); err == nil {
			staff.LocationIDs = append(staff.LocationIDs, id)
		}
	}
	staff.LeaveDate = leaveDate.String
	return staff, nil
}

func locationIDStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
