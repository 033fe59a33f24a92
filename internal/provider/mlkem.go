package provider

import (
	"fmt"
	"time"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/schemes"

	"github.com/kenneth/pq-encryption-service/internal/crypto"
)

const (
	// MinExpiryMonths and MaxExpiryMonths bound the key expiry policy.
	MinExpiryMonths = 1
	MaxExpiryMonths = 12

	// DefaultExpiryMonths is used when the config leaves expiry unset.
	DefaultExpiryMonths = 6
)

// mlkemProvider implements Provider for the ML-KEM parameter sets. The
// preset selects the circl scheme; all sizes come from the canonical
// preset table.
type mlkemProvider struct {
	preset       string
	params       crypto.PresetParams
	scheme       kem.Scheme
	expiryMonths int
	now          func() time.Time
}

func newMLKEMProvider(preset string, expiryMonths int) (*mlkemProvider, error) {
	params, err := crypto.ParamsFor(preset)
	if err != nil {
		return nil, err
	}

	if expiryMonths == 0 {
		expiryMonths = DefaultExpiryMonths
	}
	if expiryMonths < MinExpiryMonths || expiryMonths > MaxExpiryMonths {
		return nil, crypto.Errorf(crypto.KindConfig, "provider.New", "expiryMonths must be between %d and %d, got %d", MinExpiryMonths, MaxExpiryMonths, expiryMonths)
	}

	scheme := schemes.ByName(params.KEMName)
	if scheme == nil {
		return nil, crypto.Errorf(crypto.KindAsymmetric, "provider.New", "KEM scheme %s is not available", params.KEMName)
	}

	return &mlkemProvider{
		preset:       preset,
		params:       params,
		scheme:       scheme,
		expiryMonths: expiryMonths,
		now:          time.Now,
	}, nil
}

func (p *mlkemProvider) Preset() string {
	return p.preset
}

// GenerateKeyPair produces a fresh ML-KEM key pair for the provider's preset.
func (p *mlkemProvider) GenerateKeyPair(overrides *MetadataOverrides) (*KeyPair, error) {
	const op = "provider.GenerateKeyPair"

	pk, sk, err := p.scheme.GenerateKeyPair()
	if err != nil {
		return nil, crypto.WrapError(crypto.KindAsymmetric, op, "key generation failed", err)
	}

	publicKey, err := pk.MarshalBinary()
	if err != nil {
		return nil, crypto.WrapError(crypto.KindAsymmetric, op, "failed to marshal public key", err)
	}

	secretKey, err := sk.MarshalBinary()
	if err != nil {
		return nil, crypto.WrapError(crypto.KindAsymmetric, op, "failed to marshal secret key", err)
	}

	now := p.now()
	metadata := KeyMetadata{
		Preset:    p.preset,
		Version:   1,
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, p.expiryMonths, 0),
	}
	if overrides != nil {
		if overrides.Version > 0 {
			metadata.Version = overrides.Version
		}
		if !overrides.CreatedAt.IsZero() {
			metadata.CreatedAt = overrides.CreatedAt
		}
		if !overrides.ExpiresAt.IsZero() {
			metadata.ExpiresAt = overrides.ExpiresAt
		}
	}

	return &KeyPair{
		PublicKey: publicKey,
		SecretKey: secretKey,
		Metadata:  metadata,
	}, nil
}

// ValidateKeyPair accumulates every defect rather than stopping at the
// first, so callers can report all problems at once.
func (p *mlkemProvider) ValidateKeyPair(kp *KeyPair) ValidationResult {
	var errs []string

	if kp == nil {
		return ValidationResult{OK: false, Errors: []string{"key pair is nil"}}
	}

	if !crypto.IsValidPreset(kp.Metadata.Preset) {
		errs = append(errs, fmt.Sprintf("unrecognized preset: %q", kp.Metadata.Preset))
		// Sizes cannot be checked against an unknown preset; fall back to
		// this provider's own preset so length defects still surface.
	}
	params := p.params
	if kp.Metadata.Preset != "" && kp.Metadata.Preset != p.preset {
		if other, err := crypto.ParamsFor(kp.Metadata.Preset); err == nil {
			params = other
		}
	}

	if kp.PublicKey == nil {
		errs = append(errs, "public key is missing")
	} else if len(kp.PublicKey) != params.PublicKeySize {
		errs = append(errs, fmt.Sprintf("public key size mismatch: expected %d bytes, got %d", params.PublicKeySize, len(kp.PublicKey)))
	}

	if kp.SecretKey == nil {
		errs = append(errs, "secret key is missing")
	} else if len(kp.SecretKey) != params.SecretKeySize {
		errs = append(errs, fmt.Sprintf("secret key size mismatch: expected %d bytes, got %d", params.SecretKeySize, len(kp.SecretKey)))
	}

	if kp.Metadata.CreatedAt.IsZero() {
		errs = append(errs, "createdAt is not set")
	}
	if kp.Metadata.ExpiresAt.IsZero() {
		errs = append(errs, "expiresAt is not set")
	}
	if !kp.Metadata.CreatedAt.IsZero() && !kp.Metadata.ExpiresAt.IsZero() && !kp.Metadata.CreatedAt.Before(kp.Metadata.ExpiresAt) {
		errs = append(errs, "createdAt must be before expiresAt")
	}

	if kp.Metadata.Version < 1 {
		errs = append(errs, fmt.Sprintf("version must be a positive integer, got %d", kp.Metadata.Version))
	}

	return ValidationResult{OK: len(errs) == 0, Errors: errs}
}

// ValidateConfig accumulates configuration violations.
func (p *mlkemProvider) ValidateConfig(cfg GenerationConfig) []string {
	var errs []string

	if cfg.Preset == "" {
		errs = append(errs, "preset is required")
	} else if !crypto.IsValidPreset(cfg.Preset) {
		errs = append(errs, fmt.Sprintf("unrecognized preset: %q", cfg.Preset))
	}

	if cfg.ExpiryMonths < MinExpiryMonths || cfg.ExpiryMonths > MaxExpiryMonths {
		errs = append(errs, fmt.Sprintf("expiryMonths must be between %d and %d, got %d", MinExpiryMonths, MaxExpiryMonths, cfg.ExpiryMonths))
	}

	return errs
}
