package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cmorg789/vox/pkg/models"
)

// ============================================================================
// Ban Operations
// ============================================================================

// CreateBan records a ban and removes the user's sessions so they are
// disconnected on the next request.
func (s *GORMStore) CreateBan(ctx context.Context, ban *models.Ban) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ban).Error; err != nil {
			if isUniqueConstraintError(err) {
				// Already banned; keep the original row.
				return nil
			}
			return err
		}
		return tx.Where("user_id = ?", ban.UserID).Delete(&models.Session{}).Error
	})
}

// GetBan retrieves the ban for a user, if any.
func (s *GORMStore) GetBan(ctx context.Context, userID int64) (*models.Ban, error) {
	return getByField[models.Ban](ctx, s.db, "user_id", userID, models.ErrBanNotFound)
}

// RemoveBan lifts a user's ban.
func (s *GORMStore) RemoveBan(ctx context.Context, userID int64) error {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Ban{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrBanNotFound
	}
	return nil
}

// ListBans retrieves all bans, newest first.
func (s *GORMStore) ListBans(ctx context.Context) ([]*models.Ban, error) {
	return listAll[models.Ban](ctx, s.db, "created_at DESC")
}

// ============================================================================
// Invite Operations
// ============================================================================

// CreateInvite inserts a new invite code.
func (s *GORMStore) CreateInvite(ctx context.Context, invite *models.Invite) error {
	return createRecord(ctx, s.db, invite, models.ErrInviteNotFound)
}

// GetInvite retrieves an invite by code.
func (s *GORMStore) GetInvite(ctx context.Context, code string) (*models.Invite, error) {
	return getByField[models.Invite](ctx, s.db, "code", code, models.ErrInviteNotFound)
}

// ListInvites retrieves all invites, newest first.
func (s *GORMStore) ListInvites(ctx context.Context) ([]*models.Invite, error) {
	return listAll[models.Invite](ctx, s.db, "created_at DESC")
}

// DeleteInvite removes an invite code.
func (s *GORMStore) DeleteInvite(ctx context.Context, code string) error {
	result := s.db.WithContext(ctx).Where("code = ?", code).Delete(&models.Invite{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrInviteNotFound
	}
	return nil
}

// UseInvite redeems an invite, checking expiry and the use cap inside one
// transaction so concurrent joins cannot overshoot MaxUses.
func (s *GORMStore) UseInvite(ctx context.Context, code string) (*models.Invite, error) {
	var invite models.Invite
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ?", code).First(&invite).Error; err != nil {
			return convertNotFoundError(err, models.ErrInviteNotFound)
		}
		if err := invite.Usable(time.Now()); err != nil {
			return err
		}
		invite.Uses++
		return tx.Model(&invite).Update("uses", invite.Uses).Error
	})
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// ============================================================================
// Report Operations
// ============================================================================

// CreateReport files a moderation report.
func (s *GORMStore) CreateReport(ctx context.Context, report *models.Report) error {
	return s.db.WithContext(ctx).Create(report).Error
}

// GetReport retrieves a report by ID.
func (s *GORMStore) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	return getByField[models.Report](ctx, s.db, "id", id, models.ErrReportNotFound)
}

// ListReports retrieves reports, optionally filtered by status, newest
// first.
func (s *GORMStore) ListReports(ctx context.Context, status string) ([]*models.Report, error) {
	query := s.db.WithContext(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var reports []*models.Report
	if err := query.Order("id DESC").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// ResolveReport closes a report with the action taken.
func (s *GORMStore) ResolveReport(ctx context.Context, id int64, status, action string) error {
	result := s.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "action": action})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrReportNotFound
	}
	return nil
}

// ============================================================================
// Audit Log Operations
// ============================================================================

// AppendAuditLog records an administrative action. The caller assigns the
// snowflake ID.
func (s *GORMStore) AppendAuditLog(ctx context.Context, entry *models.AuditLogEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// ListAuditLog retrieves audit entries newest first, paged by snowflake ID
// and optionally filtered by event type or actor.
func (s *GORMStore) ListAuditLog(ctx context.Context, before int64, limit int, eventType string, actorID int64) ([]*models.AuditLogEntry, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLogEntry{})
	if before > 0 {
		query = query.Where("id < ?", before)
	}
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	if actorID > 0 {
		query = query.Where("actor_id = ?", actorID)
	}
	if limit <= 0 {
		limit = 50
	}

	var entries []*models.AuditLogEntry
	if err := query.Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
