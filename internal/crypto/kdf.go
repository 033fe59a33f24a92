package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// kdfInfoPrefix is the domain-separation label mixed into every key
// derivation. The preset name is appended so keys derived for one preset
// can never collide with another.
const kdfInfoPrefix = "pq-encryption-service:hybrid:v1:"

// deriveSymmetricKey derives the AEAD key from a KEM shared secret using
// HKDF-SHA-256.
func deriveSymmetricKey(sharedSecret []byte, preset string) ([]byte, error) {
	params, err := ParamsFor(preset)
	if err != nil {
		return nil, err
	}

	if len(sharedSecret) != params.SharedSecretSize {
		return nil, Errorf(KindKDF, "deriveSymmetricKey", "invalid shared secret size: expected %d bytes, got %d", params.SharedSecretSize, len(sharedSecret))
	}

	reader := hkdf.New(sha256.New, sharedSecret, nil, []byte(kdfInfoPrefix+preset))
	key := make([]byte, params.SymmetricKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, WrapError(KindKDF, "deriveSymmetricKey", "failed to derive key", err)
	}

	return key, nil
}
