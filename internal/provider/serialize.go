package provider

import (
	"time"

	"github.com/kenneth/pq-encryption-service/internal/crypto"
)

// SerializedKeyPair is the portable form of a key pair: base64 keys plus
// ISO-8601 metadata.
type SerializedKeyPair struct {
	PublicKey string             `json:"publicKey"`
	SecretKey string             `json:"secretKey"`
	Metadata  SerializedMetadata `json:"metadata"`
}

// SerializedMetadata mirrors KeyMetadata with RFC 3339 timestamps.
type SerializedMetadata struct {
	Preset    string `json:"preset"`
	Version   int    `json:"version"`
	CreatedAt string `json:"createdAt"`
	ExpiresAt string `json:"expiresAt"`
}

// SerializeKeyPair converts a pair to its portable form. Missing key bytes
// are a hard error: they indicate a programming defect, not untrusted input.
func (p *mlkemProvider) SerializeKeyPair(kp *KeyPair) (*SerializedKeyPair, error) {
	const op = "provider.SerializeKeyPair"

	if kp == nil {
		return nil, crypto.NewError(crypto.KindValidation, op, "key pair is nil")
	}
	if kp.PublicKey == nil || kp.SecretKey == nil {
		return nil, crypto.NewError(crypto.KindValidation, op, "key pair does not carry raw key bytes")
	}

	return &SerializedKeyPair{
		PublicKey: crypto.EncodeBase64(kp.PublicKey),
		SecretKey: crypto.EncodeBase64(kp.SecretKey),
		Metadata: SerializedMetadata{
			Preset:    kp.Metadata.Preset,
			Version:   kp.Metadata.Version,
			CreatedAt: kp.Metadata.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt: kp.Metadata.ExpiresAt.UTC().Format(time.RFC3339),
		},
	}, nil
}

// DeserializeKeyPair is the inverse of SerializeKeyPair.
func (p *mlkemProvider) DeserializeKeyPair(s *SerializedKeyPair) (*KeyPair, error) {
	const op = "provider.DeserializeKeyPair"

	if s == nil {
		return nil, crypto.NewError(crypto.KindFormat, op, "serialized key pair is nil")
	}

	publicKey, err := crypto.DecodeBase64(s.PublicKey)
	if err != nil {
		return nil, crypto.WrapError(crypto.KindFormat, op, "invalid public key encoding", err)
	}

	secretKey, err := crypto.DecodeBase64(s.SecretKey)
	if err != nil {
		return nil, crypto.WrapError(crypto.KindFormat, op, "invalid secret key encoding", err)
	}

	createdAt, err := time.Parse(time.RFC3339, s.Metadata.CreatedAt)
	if err != nil {
		return nil, crypto.WrapError(crypto.KindFormat, op, "invalid createdAt timestamp", err)
	}

	expiresAt, err := time.Parse(time.RFC3339, s.Metadata.ExpiresAt)
	if err != nil {
		return nil, crypto.WrapError(crypto.KindFormat, op, "invalid expiresAt timestamp", err)
	}

	return &KeyPair{
		PublicKey: publicKey,
		SecretKey: secretKey,
		Metadata: KeyMetadata{
			Preset:    s.Metadata.Preset,
			Version:   s.Metadata.Version,
			CreatedAt: createdAt,
			ExpiresAt: expiresAt,
		},
	}, nil
}
