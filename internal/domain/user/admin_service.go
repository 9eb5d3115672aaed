// internal/domain/user/admin_service.go
package user

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/auth"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AdminService handles admin user management operations
type AdminService struct {
	db     *gorm.DB
	logger *logrus.Entry
	now    func() time.Time
}

// NewAdminService creates a new admin user service
func NewAdminService(db *gorm.DB, logger *logrus.Entry) *AdminService {
	return &AdminService{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UserListRequest represents user list query parameters
type UserListRequest struct {
	Page          int    `form:"page,default=1"`
	Limit         int    `form:"limit,default=20"`
	Search        string `form:"search"`
	Status        string `form:"status"` // active, inactive, all
	Role          string `form:"role"`   // customer, vendor, admin, all
	TenantID      *uint  `form:"tenant_id"`
	SortBy        string `form:"sort_by,default=created_at"`
	SortOrder     string `form:"sort_order,default=desc"`
	DateFrom      string `form:"date_from"`
	DateTo        string `form:"date_to"`
	EmailVerified *bool  `form:"email_verified"`
}

// UserListResponse represents user list with pagination
type UserListResponse struct {
	Users      []UserWithStats `json:"users"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// UserWithStats represents user with additional statistics
type UserWithStats struct {
	User
	OrderCount  int64      `json:"order_count"`
	TotalSpent  int64      `json:"total_spent"` // In cents
	LastOrderAt *time.Time `json:"last_order_at"`
}

// UserStatusUpdateRequest represents user status update data
type UserStatusUpdateRequest struct {
	IsActive *bool  `json:"is_active" binding:"required"`
	Reason   string `json:"reason,omitempty"`
}

// UserRoleUpdateRequest assigns a role; vendors must name their tenant
type UserRoleUpdateRequest struct {
	Role     string `json:"role" binding:"required,oneof=customer vendor admin"`
	TenantID *uint  `json:"tenant_id"`
}

// UserExportRequest represents user export parameters
type UserExportRequest struct {
	Format        string `form:"format,default=csv"` // csv, json
	Status        string `form:"status"`
	Role          string `form:"role"`
	DateFrom      string `form:"date_from"`
	DateTo        string `form:"date_to"`
	EmailVerified *bool  `form:"email_verified"`
	IncludeStats  bool   `form:"include_stats,default=false"`
}

var userSortColumns = map[string]string{
	"created_at":    "created_at",
	"email":         "email",
	"first_name":    "first_name",
	"last_name":     "last_name",
	"last_login_at": "last_login_at",
}

// GetUsers retrieves users with filtering and pagination
func (s *AdminService) GetUsers(ctx context.Context, req *UserListRequest) (*UserListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	query, err := s.filtered(ctx, req.Status, req.Role, req.DateFrom, req.DateTo, req.EmailVerified)
	if err != nil {
		return nil, err
	}
	if req.Search != "" {
		searchTerm := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR phone LIKE ?",
			searchTerm, searchTerm, searchTerm, "%"+req.Search+"%",
		)
	}
	if req.TenantID != nil {
		query = query.Where("tenant_id = ?", *req.TenantID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	column, ok := userSortColumns[req.SortBy]
	if !ok {
		column = "created_at"
	}
	if strings.EqualFold(req.SortOrder, "asc") {
		column += " ASC"
	} else {
		column += " DESC"
	}

	var users []User
	offset := (req.Page - 1) * req.Limit
	if err := query.Order(column).Offset(offset).Limit(req.Limit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve users: %w", err)
	}

	stats, err := s.orderStats(ctx, userIDs(users))
	if err != nil {
		return nil, err
	}

	usersWithStats := make([]UserWithStats, 0, len(users))
	for _, u := range users {
		row := stats[u.ID]
		row.User = u
		usersWithStats = append(usersWithStats, row)
	}

	return &UserListResponse{
		Users:      usersWithStats,
		Total:      total,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: int((total + int64(req.Limit) - 1) / int64(req.Limit)),
	}, nil
}

// GetUser retrieves a single user by ID with stats
func (s *AdminService) GetUser(ctx context.Context, userID uint) (*UserWithStats, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		return nil, apperrors.FromGorm(err, "user")
	}

	stats, err := s.orderStats(ctx, []uint{userID})
	if err != nil {
		return nil, err
	}
	row := stats[userID]
	row.User = u
	return &row, nil
}

// UpdateUserStatus activates or deactivates an account
func (s *AdminService) UpdateUserStatus(ctx context.Context, userID uint, req *UserStatusUpdateRequest, adminID uint) error {
	if req.IsActive == nil {
		return apperrors.New(apperrors.CodeValidation, "is_active is required")
	}

	var u User
	if err := s.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		return apperrors.FromGorm(err, "user")
	}

	// Prevent admin from deactivating themselves
	if userID == adminID && !*req.IsActive {
		return apperrors.New(apperrors.CodeUnprocessable, "cannot deactivate your own account")
	}

	if err := s.db.WithContext(ctx).Model(&u).Update("is_active", *req.IsActive).Error; err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"admin_id":  adminID,
		"is_active": *req.IsActive,
		"reason":    req.Reason,
	}).Info("user status updated")
	return nil
}

// UpdateUserRole changes a user's role, keeping at least one admin
func (s *AdminService) UpdateUserRole(ctx context.Context, userID uint, req *UserRoleUpdateRequest, adminID uint) error {
	if !ValidRole(req.Role) {
		return apperrors.Newf(apperrors.CodeValidation, "unknown role %q", req.Role)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u User
		if err := tx.First(&u, userID).Error; err != nil {
			return apperrors.FromGorm(err, "user")
		}

		if u.Role == auth.RoleAdmin && req.Role != auth.RoleAdmin {
			if userID == adminID {
				return apperrors.New(apperrors.CodeUnprocessable, "cannot remove your own admin privileges")
			}
			var adminCount int64
			if err := tx.Model(&User{}).Where("role = ? AND id <> ?", auth.RoleAdmin, userID).Count(&adminCount).Error; err != nil {
				return fmt.Errorf("failed to count admins: %w", err)
			}
			if adminCount == 0 {
				return apperrors.New(apperrors.CodeUnprocessable, "at least one admin must remain")
			}
		}

		updates := map[string]interface{}{"role": req.Role, "tenant_id": nil}
		if req.Role == auth.RoleVendor {
			if req.TenantID == nil {
				return apperrors.New(apperrors.CodeValidation, "tenant_id is required for vendors")
			}
			var exists int64
			if err := tx.Table("tenants").Where("id = ? AND deleted_at IS NULL", *req.TenantID).Count(&exists).Error; err != nil {
				return fmt.Errorf("failed to check tenant: %w", err)
			}
			if exists == 0 {
				return apperrors.NotFound("tenant")
			}
			updates["tenant_id"] = *req.TenantID
		}

		if err := tx.Model(&u).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update user role: %w", err)
		}

		s.logger.WithFields(logrus.Fields{"user_id": userID, "admin_id": adminID, "role": req.Role}).Info("user role updated")
		return nil
	})
}

// ExportUsers renders the filtered users as CSV or JSON
func (s *AdminService) ExportUsers(ctx context.Context, req *UserExportRequest) ([]byte, string, error) {
	if req.Format != "csv" && req.Format != "json" {
		return nil, "", apperrors.Newf(apperrors.CodeValidation, "unsupported export format: %s", req.Format)
	}

	query, err := s.filtered(ctx, req.Status, req.Role, req.DateFrom, req.DateTo, req.EmailVerified)
	if err != nil {
		return nil, "", err
	}

	var users []User
	if err := query.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, "", fmt.Errorf("failed to retrieve users for export: %w", err)
	}

	stats := map[uint]UserWithStats{}
	if req.IncludeStats {
		if stats, err = s.orderStats(ctx, userIDs(users)); err != nil {
			return nil, "", err
		}
	}

	if req.Format == "json" {
		return s.generateJSONExport(users, stats, req.IncludeStats)
	}
	return s.generateCSVExport(users, stats, req.IncludeStats)
}

func (s *AdminService) filtered(ctx context.Context, status, role, dateFrom, dateTo string, verified *bool) (*gorm.DB, error) {
	query := s.db.WithContext(ctx).Model(&User{})

	switch status {
	case "active":
		query = query.Where("is_active = ?", true)
	case "inactive":
		query = query.Where("is_active = ?", false)
	}

	if role != "" && role != "all" {
		if !ValidRole(role) {
			return nil, apperrors.Newf(apperrors.CodeValidation, "unknown role %q", role)
		}
		query = query.Where("role = ?", role)
	}

	if verified != nil {
		query = query.Where("email_verified = ?", *verified)
	}

	// Date range filter
	if dateFrom != "" {
		from, err := time.Parse("2006-01-02", dateFrom)
		if err != nil {
			return nil, apperrors.New(apperrors.CodeValidation, "date_from must be formatted YYYY-MM-DD")
		}
		query = query.Where("created_at >= ?", from)
	}
	if dateTo != "" {
		to, err := time.Parse("2006-01-02", dateTo)
		if err != nil {
			return nil, apperrors.New(apperrors.CodeValidation, "date_to must be formatted YYYY-MM-DD")
		}
		query = query.Where("created_at < ?", to.AddDate(0, 0, 1))
	}
	return query, nil
}

// orderStats aggregates non-cancelled orders per user
func (s *AdminService) orderStats(ctx context.Context, ids []uint) (map[uint]UserWithStats, error) {
	out := make(map[uint]UserWithStats, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []struct {
		UserID     uint
		OrderCount int64
		TotalSpent int64
	}
	err := s.db.WithContext(ctx).Table("orders").
		Select("user_id, COUNT(*) AS order_count, COALESCE(SUM(total_amount), 0) AS total_spent").
		Where("user_id IN ? AND status <> ? AND deleted_at IS NULL", ids, "cancelled").
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load order stats: %w", err)
	}
	for _, r := range rows {
		out[r.UserID] = UserWithStats{OrderCount: r.OrderCount, TotalSpent: r.TotalSpent}
	}

	// Latest order per user, selected as a plain column so drivers return a timestamp
	var latest []struct {
		UserID    uint
		CreatedAt time.Time
	}
	err = s.db.WithContext(ctx).Table("orders AS o").
		Select("o.user_id, o.created_at").
		Where("o.user_id IN ? AND o.status <> ? AND o.deleted_at IS NULL", ids, "cancelled").
		Where("NOT EXISTS (SELECT 1 FROM orders n WHERE n.user_id = o.user_id AND n.status <> ? AND n.deleted_at IS NULL AND n.created_at > o.created_at)", "cancelled").
		Scan(&latest).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load last orders: %w", err)
	}
	for _, l := range latest {
		row := out[l.UserID]
		if row.LastOrderAt == nil {
			at := l.CreatedAt
			row.LastOrderAt = &at
			out[l.UserID] = row
		}
	}
	return out, nil
}

// generateCSVExport generates CSV export
func (s *AdminService) generateCSVExport(users []User, stats map[uint]UserWithStats, includeStats bool) ([]byte, string, error) {
	headers := []string{
		"ID", "Email", "First Name", "Last Name", "Phone",
		"Role", "Tenant ID", "Is Active", "Email Verified", "Created At", "Last Login",
	}
	if includeStats {
		headers = append(headers, "Order Count", "Total Spent", "Last Order")
	}

	var csvData strings.Builder
	writer := csv.NewWriter(&csvData)
	if err := writer.Write(headers); err != nil {
		return nil, "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, u := range users {
		tenantID := ""
		if u.TenantID != nil {
			tenantID = strconv.FormatUint(uint64(*u.TenantID), 10)
		}
		record := []string{
			strconv.FormatUint(uint64(u.ID), 10),
			u.Email,
			u.FirstName,
			u.LastName,
			u.Phone,
			u.Role,
			tenantID,
			strconv.FormatBool(u.IsActive),
			strconv.FormatBool(u.EmailVerified),
			u.CreatedAt.Format("2006-01-02 15:04:05"),
			formatOptionalTime(u.LastLoginAt),
		}

		if includeStats {
			st := stats[u.ID]
			record = append(record,
				strconv.FormatInt(st.OrderCount, 10),
				fmt.Sprintf("%.2f", float64(st.TotalSpent)/100),
				formatOptionalTime(st.LastOrderAt),
			)
		}

		if err := writer.Write(record); err != nil {
			return nil, "", fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", fmt.Errorf("failed to write CSV: %w", err)
	}

	filename := fmt.Sprintf("users_export_%s.csv", s.now().Format("2006-01-02_15-04-05"))
	return []byte(csvData.String()), filename, nil
}

// generateJSONExport generates JSON export
func (s *AdminService) generateJSONExport(users []User, stats map[uint]UserWithStats, includeStats bool) ([]byte, string, error) {
	exportData := make([]map[string]interface{}, 0, len(users))

	for _, u := range users {
		userData := map[string]interface{}{
			"id":             u.ID,
			"email":          u.Email,
			"first_name":     u.FirstName,
			"last_name":      u.LastName,
			"phone":          u.Phone,
			"role":           u.Role,
			"tenant_id":      u.TenantID,
			"is_active":      u.IsActive,
			"email_verified": u.EmailVerified,
			"created_at":     u.CreatedAt,
			"last_login_at":  u.LastLoginAt,
		}

		if includeStats {
			st := stats[u.ID]
			userData["order_count"] = st.OrderCount
			userData["total_spent"] = float64(st.TotalSpent) / 100
			userData["last_order_at"] = st.LastOrderAt
		}

		exportData = append(exportData, userData)
	}

	jsonData, err := json.MarshalIndent(map[string]interface{}{
		"exported_at": s.now(),
		"total_users": len(users),
		"users":       exportData,
	}, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate JSON: %w", err)
	}

	filename := fmt.Sprintf("users_export_%s.json", s.now().Format("2006-01-02_15-04-05"))
	return jsonData, filename, nil
}

func userIDs(users []User) []uint {
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return t.Format("2006-01-02 15:04:05")
}
