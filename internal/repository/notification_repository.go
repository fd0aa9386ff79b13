package repository

import (
	"context"
	"errors"

	"round-lottery/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateUserNotification stores a notification for one account
func (r *Repository) CreateUserNotification(ctx context.Context, n *models.UserNotification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ListUserNotifications returns an account's notifications, newest first
func (r *Repository) ListUserNotifications(ctx context.Context, accountID uint, unreadOnly bool, limit int) ([]models.UserNotification, error) {
	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.UserNotification
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&notifications).Error
	return notifications, err
}

// MarkUserNotificationRead flags one of the account's notifications as read
func (r *Repository) MarkUserNotificationRead(ctx context.Context, accountID, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.UserNotification{}).
		Where("id = ? AND account_id = ?", id, accountID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAdminNotification stores a message for the administrators
func (r *Repository) CreateAdminNotification(ctx context.Context, n *models.AdminNotification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ListAdminNotifications returns administrator messages, newest first
func (r *Repository) ListAdminNotifications(ctx context.Context, unreadOnly bool, limit int) ([]models.AdminNotification, error) {
	query := r.db.WithContext(ctx).Model(&models.AdminNotification{})
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.AdminNotification
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&notifications).Error
	return notifications, err
}

// MarkAdminNotificationRead flags an administrator message as read
func (r *Repository) MarkAdminNotificationRead(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.AdminNotification{}).
		Where("id = ?", id).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAdminLog appends to the audit trail
func (r *Repository) CreateAdminLog(ctx context.Context, entry *models.AdminLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListAdminLogs returns audit entries, newest first
func (r *Repository) ListAdminLogs(ctx context.Context, limit, offset int) ([]models.AdminLog, error) {
	var logs []models.AdminLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	return logs, err
}

// GetSetting returns a runtime setting and whether it exists
func (r *Repository) GetSetting(ctx context.Context, name string) (string, bool, error) {
	var setting models.SystemSetting
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return setting.Value, true, nil
}

// SetSetting creates or replaces a runtime setting
func (r *Repository) SetSetting(ctx context.Context, name, value string) error {
	setting := models.SystemSetting{Name: name, Value: value}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
}
