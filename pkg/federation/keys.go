package federation

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/store"
)

// Setting keys under which the keypair is persisted.
const (
	settingPrivateKey = "federation.private_key"
	settingPublicKey  = "federation.public_key"
)

// KeyManager owns the server's Ed25519 signing identity. The keypair
// is loaded from the store on first use and generated if absent, so a
// fresh database becomes federation-capable without an admin step.
type KeyManager struct {
	store store.Store

	mu   sync.Mutex
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewKeyManager creates a key manager backed by the given store.
func NewKeyManager(st store.Store) *KeyManager {
	return &KeyManager{store: st}
}

// Keys returns the signing keypair, generating and persisting one on
// first call.
func (k *KeyManager) Keys(ctx context.Context) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.priv != nil {
		return k.pub, k.priv, nil
	}

	raw, err := k.store.GetSetting(ctx, settingPrivateKey)
	switch {
	case err == nil:
		seed, decodeErr := base64.StdEncoding.DecodeString(raw)
		if decodeErr != nil || len(seed) != ed25519.SeedSize {
			return nil, nil, fmt.Errorf("stored federation key is corrupt: %w", decodeErr)
		}
		k.priv = ed25519.NewKeyFromSeed(seed)
		k.pub = k.priv.Public().(ed25519.PublicKey)
		return k.pub, k.priv, nil

	case errors.Is(err, models.ErrSettingNotFound):
		pub, priv, genErr := ed25519.GenerateKey(rand.Reader)
		if genErr != nil {
			return nil, nil, fmt.Errorf("failed to generate federation keypair: %w", genErr)
		}
		if err := k.store.SetSetting(ctx, settingPrivateKey, base64.StdEncoding.EncodeToString(priv.Seed())); err != nil {
			return nil, nil, fmt.Errorf("failed to persist federation key: %w", err)
		}
		if err := k.store.SetSetting(ctx, settingPublicKey, base64.RawStdEncoding.EncodeToString(pub)); err != nil {
			return nil, nil, fmt.Errorf("failed to persist federation public key: %w", err)
		}
		logger.Info("generated federation signing keypair")
		k.priv, k.pub = priv, pub
		return k.pub, k.priv, nil

	default:
		return nil, nil, fmt.Errorf("failed to load federation key: %w", err)
	}
}

// PublicKeyRecord returns the DNS TXT value to publish at
// _voxkey.<domain>, i.e. "p=<base64raw public key>".
func (k *KeyManager) PublicKeyRecord(ctx context.Context) (string, error) {
	pub, _, err := k.Keys(ctx)
	if err != nil {
		return "", err
	}
	return "p=" + base64.RawStdEncoding.EncodeToString(pub), nil
}
