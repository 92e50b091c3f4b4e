package federation

import (
	"context"
	"fmt"

	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/store"
)

// PolicyChecker decides whether traffic with a remote domain is
// admitted. Blocklist entries always win; then the configured policy
// applies: closed rejects everything, allowlist requires an explicit
// allow row, open admits the rest.
type PolicyChecker struct {
	store    store.Store
	resolver Resolver
	policy   string
}

// NewPolicyChecker creates a policy checker with the local inbound
// policy.
func NewPolicyChecker(st store.Store, resolver Resolver, policy string) *PolicyChecker {
	if policy == "" {
		policy = models.FederationPolicyOpen
	}
	return &PolicyChecker{store: st, resolver: resolver, policy: policy}
}

// CheckInbound decides whether a verified request from origin may
// proceed.
func (p *PolicyChecker) CheckInbound(ctx context.Context, origin string) error {
	blocked, err := p.store.IsFederationBlocked(ctx, origin)
	if err != nil {
		return fmt.Errorf("failed to check blocklist: %w", err)
	}
	if blocked {
		return fmt.Errorf("%s: %w", origin, ErrBlocked)
	}

	switch p.policy {
	case models.FederationPolicyClosed:
		return fmt.Errorf("%s: %w", origin, ErrPolicyDenied)
	case models.FederationPolicyAllowlist:
		allowed, err := p.store.IsFederationAllowed(ctx, origin)
		if err != nil {
			return fmt.Errorf("failed to check allowlist: %w", err)
		}
		if !allowed {
			return fmt.Errorf("%s: %w", origin, ErrPolicyDenied)
		}
	}
	return nil
}

// CheckOutbound decides whether we may send to target: our own
// blocklist applies first, then the remote's published policy. A
// remote allowlist is optimistically attempted since we cannot see its
// contents; closed remotes are skipped outright.
func (p *PolicyChecker) CheckOutbound(ctx context.Context, target string) error {
	blocked, err := p.store.IsFederationBlocked(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to check blocklist: %w", err)
	}
	if blocked {
		return fmt.Errorf("%s: %w", target, ErrBlocked)
	}

	remote, err := p.resolver.Policy(ctx, target)
	if err != nil {
		return nil
	}
	if remote == models.FederationPolicyClosed {
		return fmt.Errorf("%s is closed to federation: %w", target, ErrPolicyDenied)
	}
	return nil
}
