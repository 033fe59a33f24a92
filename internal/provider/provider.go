package provider

import (
	"time"

	"github.com/kenneth/pq-encryption-service/internal/crypto"
)

// KeyMetadata describes a generated key pair.
type KeyMetadata struct {
	Preset    string    `json:"preset"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// KeyPair holds raw key material plus metadata. Secret key bytes are
// sensitive: callers must zero them via Zero before dropping the last
// reference.
type KeyPair struct {
	PublicKey []byte
	SecretKey []byte
	Metadata  KeyMetadata
}

// Zero overwrites both keys with zero bytes. Safe to call more than once.
func (kp *KeyPair) Zero() {
	if kp == nil {
		return
	}
	crypto.ZeroBytes(kp.SecretKey)
	crypto.ZeroBytes(kp.PublicKey)
}

// Expired reports whether the pair's expiry has passed at the given time.
func (kp *KeyPair) Expired(now time.Time) bool {
	return !kp.Metadata.ExpiresAt.IsZero() && now.After(kp.Metadata.ExpiresAt)
}

// MetadataOverrides optionally adjusts metadata stamped onto a freshly
// generated pair. Zero values mean "use the default".
type MetadataOverrides struct {
	Version   int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// GenerationConfig configures key generation for a provider.
type GenerationConfig struct {
	Preset       string
	ExpiryMonths int
}

// ValidationResult accumulates every defect found in a key pair. A pair
// with five defects reports five errors; validation never short-circuits.
type ValidationResult struct {
	OK     bool
	Errors []string
}

// Provider generates, validates and serializes key pairs for one KEM
// algorithm. Implementations are stateless apart from configuration, so
// adding a KEM means adding an implementation, not touching the manager
// or the engine.
type Provider interface {
	// Preset returns the preset this provider serves.
	Preset() string

	// GenerateKeyPair produces a fresh key pair sized per the preset,
	// stamped createdAt=now and expiresAt=now+expiryMonths, with version
	// defaulted to 1 unless overridden.
	GenerateKeyPair(overrides *MetadataOverrides) (*KeyPair, error)

	// ValidateKeyPair checks key lengths, preset, dates and version,
	// accumulating all violations instead of stopping at the first.
	ValidateKeyPair(kp *KeyPair) ValidationResult

	// SerializeKeyPair converts a pair to its base64/ISO-8601 form. It is
	// the one validation-adjacent call that returns a hard error on
	// non-binary input, since that indicates a programming defect rather
	// than untrusted input.
	SerializeKeyPair(kp *KeyPair) (*SerializedKeyPair, error)

	// DeserializeKeyPair is the inverse of SerializeKeyPair.
	DeserializeKeyPair(s *SerializedKeyPair) (*KeyPair, error)

	// ValidateConfig checks a generation config, accumulating violations.
	ValidateConfig(cfg GenerationConfig) []string
}

// ForPreset returns the provider implementation for a preset. Dispatch is
// closed: unknown presets fail rather than falling back.
func ForPreset(preset string, expiryMonths int) (Provider, error) {
	if !crypto.IsValidPreset(preset) {
		return nil, crypto.Errorf(crypto.KindValidation, "provider.ForPreset", "unknown preset: %s", preset)
	}
	return newMLKEMProvider(preset, expiryMonths)
}
