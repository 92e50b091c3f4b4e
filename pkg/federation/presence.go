package federation

import (
	"context"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/store"
)

// PresenceNotifier pushes local presence changes to remote servers
// holding a subscription. Subscriptions are durable (domain,
// user_address) rows, so notifications survive restarts on both ends.
type PresenceNotifier struct {
	store  store.Store
	client *Client
	domain string
}

// NewPresenceNotifier creates a presence notifier identified as the
// local domain.
func NewPresenceNotifier(st store.Store, client *Client, domain string) *PresenceNotifier {
	return &PresenceNotifier{store: st, client: client, domain: domain}
}

// Subscribe records origin's interest in a local user's presence.
func (p *PresenceNotifier) Subscribe(ctx context.Context, origin, userAddress string) error {
	return p.store.UpsertPresenceSub(ctx, origin, userAddress)
}

// Unsubscribe drops one subscription. Removing a never-registered pair
// is not an error.
func (p *PresenceNotifier) Unsubscribe(ctx context.Context, origin, userAddress string) error {
	return p.store.RemovePresenceSub(ctx, origin, userAddress)
}

// PresenceChanged fans a local user's new status out to every
// subscribed domain. Delivery failures are logged per domain and do
// not stop the rest.
func (p *PresenceNotifier) PresenceChanged(ctx context.Context, username, status string) {
	addr := username + "@" + p.domain
	domains, err := p.store.ListPresenceSubDomains(ctx, addr)
	if err != nil {
		logger.Warn("presence sub lookup failed", logger.UserAddress(addr), logger.Err(err))
		return
	}
	for _, domain := range domains {
		payload := map[string]string{"user_address": addr, "status": status}
		if err := p.client.NotifyPresence(ctx, domain, payload); err != nil {
			logger.Debug("presence notify failed", logger.Domain(domain), logger.Err(err))
		}
	}
}
