package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/cmorg789/vox/pkg/models"
)

// ============================================================================
// Push Subscription Operations
// ============================================================================

// UpsertPushSubscription stores a Web Push subscription, refreshing the keys
// when the browser re-subscribes at the same endpoint.
func (s *GORMStore) UpsertPushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
		}).
		Create(sub).Error
}

// DeletePushSubscription removes a subscription by endpoint. Also called
// when a push delivery reports the endpoint gone.
func (s *GORMStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	return deleteByField[models.PushSubscription](ctx, s.db, "endpoint", endpoint)
}

// ListUserPushSubscriptions retrieves a user's active subscriptions.
func (s *GORMStore) ListUserPushSubscriptions(ctx context.Context, userID int64) ([]*models.PushSubscription, error) {
	return listByField[models.PushSubscription](ctx, s.db, "user_id", userID, "id ASC")
}
