package federation

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cmorg789/vox/pkg/metrics"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/store"
)

// VoucherTTL is the lifetime of an issued join voucher.
const VoucherTTL = 300 * time.Second

// Voucher verification failures.
var (
	ErrVoucherMalformed = errors.New("voucher is malformed")
	ErrVoucherExpired   = errors.New("voucher has expired")
	ErrVoucherTarget    = errors.New("voucher was issued for a different server")
	ErrVoucherReplayed  = errors.New("voucher nonce already used")
)

// VoucherPayload is the signed body of a join voucher: the home server
// vouches that user_address may join target_domain until expires_at.
type VoucherPayload struct {
	UserAddress  string `json:"user_address"`
	TargetDomain string `json:"target_domain"`
	IssuedAt     int64  `json:"issued_at"`
	ExpiresAt    int64  `json:"expires_at"`
	Nonce        string `json:"nonce"`
}

// VoucherService issues vouchers for local users and verifies vouchers
// presented by remote ones.
type VoucherService struct {
	keys     *KeyManager
	resolver Resolver
	store    store.Store
	metrics  metrics.FederationMetrics
	now      func() time.Time
}

// NewVoucherService creates a voucher service. Pass nil metrics to
// disable instrumentation.
func NewVoucherService(keys *KeyManager, resolver Resolver, st store.Store, m metrics.FederationMetrics) *VoucherService {
	return &VoucherService{keys: keys, resolver: resolver, store: st, metrics: m, now: time.Now}
}

// Issue signs a voucher allowing userAddress to join targetDomain.
func (s *VoucherService) Issue(ctx context.Context, userAddress, targetDomain string) (string, error) {
	_, priv, err := s.keys.Keys(ctx)
	if err != nil {
		return "", err
	}

	now := s.now()
	payload, err := json.Marshal(VoucherPayload{
		UserAddress:  userAddress,
		TargetDomain: targetDomain,
		IssuedAt:     now.Unix(),
		ExpiresAt:    now.Add(VoucherTTL).Unix(),
		Nonce:        uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode voucher: %w", err)
	}

	sig := ed25519.Sign(priv, payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify validates a presented voucher: shape, target, expiry, the
// home domain's signature, and finally the nonce claim. The nonce
// insert is the atomic replay gate; the payload is returned only when
// every check passes.
func (s *VoucherService) Verify(ctx context.Context, voucher, localDomain string) (*VoucherPayload, error) {
	payload, err := s.verify(ctx, voucher, localDomain)
	if s.metrics != nil {
		switch {
		case err == nil:
			s.metrics.RecordVoucherVerify("ok")
		case errors.Is(err, ErrVoucherExpired):
			s.metrics.RecordVoucherVerify("expired")
		case errors.Is(err, ErrVoucherReplayed):
			s.metrics.RecordVoucherVerify("replayed")
		default:
			s.metrics.RecordVoucherVerify("invalid")
		}
	}
	return payload, err
}

func (s *VoucherService) verify(ctx context.Context, voucher, localDomain string) (*VoucherPayload, error) {
	payloadB64, sigB64, ok := strings.Cut(voucher, ".")
	if !ok {
		return nil, ErrVoucherMalformed
	}
	payloadBytes, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, ErrVoucherMalformed
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, ErrVoucherMalformed
	}

	var payload VoucherPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, ErrVoucherMalformed
	}

	if payload.TargetDomain != localDomain {
		return nil, fmt.Errorf("%w: issued for %s", ErrVoucherTarget, payload.TargetDomain)
	}
	if s.now().Unix() > payload.ExpiresAt {
		return nil, ErrVoucherExpired
	}

	_, homeDomain := SplitAddress(payload.UserAddress)
	if homeDomain == "" {
		return nil, ErrVoucherMalformed
	}
	if err := VerifySigned(ctx, s.resolver, homeDomain, payloadBytes, sig); err != nil {
		return nil, err
	}

	if err := s.store.ClaimNonce(ctx, payload.Nonce, NonceTTL); err != nil {
		if errors.Is(err, models.ErrNonceReplayed) {
			return nil, ErrVoucherReplayed
		}
		return nil, fmt.Errorf("failed to claim nonce: %w", err)
	}
	return &payload, nil
}
