package store

import (
	"context"
	"strings"
	"time"

	"github.com/cmorg789/vox/pkg/models"
)

// ============================================================================
// Federation List Operations
// ============================================================================

// AddFederationEntry appends a block or allow entry. Adding an existing
// entry is not an error.
func (s *GORMStore) AddFederationEntry(ctx context.Context, entry *models.FederationEntry) error {
	err := s.db.WithContext(ctx).Create(entry).Error
	if err != nil && isUniqueConstraintError(err) {
		return nil
	}
	return err
}

// RemoveFederationEntry removes a block or allow entry by its full text.
func (s *GORMStore) RemoveFederationEntry(ctx context.Context, entry string) error {
	result := s.db.WithContext(ctx).Where("entry = ?", entry).Delete(&models.FederationEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrFederationEntryGone
	}
	return nil
}

// ListFederationEntries retrieves the full block/allow list.
func (s *GORMStore) ListFederationEntries(ctx context.Context) ([]*models.FederationEntry, error) {
	return listAll[models.FederationEntry](ctx, s.db, "entry ASC")
}

// IsFederationBlocked reports whether a domain or user address appears on
// the blocklist. A blocked domain also blocks every user on it.
func (s *GORMStore) IsFederationBlocked(ctx context.Context, target string) (bool, error) {
	candidates := []string{target}
	if _, domain, ok := strings.Cut(target, "@"); ok {
		candidates = append(candidates, domain)
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.FederationEntry{}).
		Where("entry IN ?", candidates).
		Count(&count).Error
	return count > 0, err
}

// IsFederationAllowed reports whether a domain appears on the allowlist.
// Only consulted when the federation policy is allowlist.
func (s *GORMStore) IsFederationAllowed(ctx context.Context, domain string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.FederationEntry{}).
		Where("entry = ?", models.FederationEntryText(models.FederationEntryAllow, domain)).
		Count(&count).Error
	return count > 0, err
}

// ============================================================================
// Nonce Operations
// ============================================================================

// ClaimNonce records a request nonce. The primary key insert is the claim:
// ErrNonceReplayed means another request already used it.
func (s *GORMStore) ClaimNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	row := models.FederationNonce{
		Nonce:     nonce,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrNonceReplayed
		}
		return err
	}
	return nil
}

// DeleteExpiredNonces removes nonces past their retention window. Expired
// nonces are safe to forget because the timestamp skew check already
// rejects requests old enough to reuse them.
func (s *GORMStore) DeleteExpiredNonces(ctx context.Context) (int64, error) {
	return deleteWhere[models.FederationNonce](ctx, s.db, "expires_at < ?", time.Now())
}

// ============================================================================
// Presence Subscription Operations
// ============================================================================

// UpsertPresenceSub records a remote server's interest in a local user's
// presence. Idempotent.
func (s *GORMStore) UpsertPresenceSub(ctx context.Context, domain, userAddress string) error {
	return upsertIgnore(ctx, s.db, &models.FederationPresenceSub{
		Domain:      domain,
		UserAddress: userAddress,
	})
}

// RemovePresenceSub drops a remote server's presence subscription.
func (s *GORMStore) RemovePresenceSub(ctx context.Context, domain, userAddress string) error {
	return s.db.WithContext(ctx).
		Where("domain = ? AND user_address = ?", domain, userAddress).
		Delete(&models.FederationPresenceSub{}).Error
}

// ListPresenceSubDomains returns the remote domains subscribed to a local
// user's presence.
func (s *GORMStore) ListPresenceSubDomains(ctx context.Context, userAddress string) ([]string, error) {
	var domains []string
	err := s.db.WithContext(ctx).Model(&models.FederationPresenceSub{}).
		Where("user_address = ?", userAddress).
		Pluck("domain", &domains).Error
	return domains, err
}

// RemoveDomainPresenceSubs drops every subscription a remote domain holds.
// Called when a domain is blocked.
func (s *GORMStore) RemoveDomainPresenceSubs(ctx context.Context, domain string) error {
	return deleteByField[models.FederationPresenceSub](ctx, s.db, "domain", domain)
}
