package crypto

import (
	"crypto/rand"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/schemes"
)

// Engine performs hybrid encryption: ML-KEM encapsulation, HKDF key
// derivation and AEAD sealing. It holds no mutable state, so concurrent
// calls need no coordination. Key material is handed in per call and
// never retained beyond the call.
type Engine struct {
	preset string
	params PresetParams
	scheme kem.Scheme
}

// NewEngine creates an engine for the given preset.
func NewEngine(preset string) (*Engine, error) {
	params, err := ParamsFor(preset)
	if err != nil {
		return nil, err
	}

	scheme := schemes.ByName(params.KEMName)
	if scheme == nil {
		return nil, Errorf(KindAsymmetric, "NewEngine", "KEM scheme %s is not available", params.KEMName)
	}

	return &Engine{
		preset: preset,
		params: params,
		scheme: scheme,
	}, nil
}

// Preset returns the preset this engine was configured for.
func (e *Engine) Preset() string {
	return e.preset
}

// Encrypt canonical-serializes data, encapsulates a fresh shared secret
// against the recipient's public key, derives an AEAD key and seals the
// plaintext. Every invocation uses freshly encapsulated key material and
// a fresh random nonce, so two encryptions of identical plaintext under
// the identical public key never produce identical output.
func (e *Engine) Encrypt(data interface{}, recipientPublicKey []byte) (*EncryptedData, error) {
	const op = "Engine.Encrypt"

	plaintext, err := CanonicalSerialize(data)
	if err != nil {
		return nil, err
	}

	if len(recipientPublicKey) != e.params.PublicKeySize {
		return nil, Errorf(KindAsymmetric, op, "invalid public key size for preset %s: expected %d bytes, got %d", e.preset, e.params.PublicKeySize, len(recipientPublicKey))
	}

	pk, err := e.scheme.UnmarshalBinaryPublicKey(recipientPublicKey)
	if err != nil {
		return nil, WrapError(KindAsymmetric, op, "failed to parse public key", err)
	}

	cipherText, sharedSecret, err := e.scheme.Encapsulate(pk)
	if err != nil {
		return nil, WrapError(KindAsymmetric, op, "encapsulation failed", err)
	}
	defer ZeroBytes(sharedSecret)

	key, err := deriveSymmetricKey(sharedSecret, e.preset)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(key)

	aead, err := newAEADCipher(e.params.Algorithm, key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, e.params.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, WrapError(KindSymmetric, op, "failed to generate nonce", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, []byte(e.preset))

	return &EncryptedData{
		Preset:           e.preset,
		EncryptedContent: EncodeBase64(sealed),
		CipherText:       EncodeBase64(cipherText),
		Nonce:            EncodeBase64(nonce),
	}, nil
}

// Decrypt validates the record shape, decapsulates the shared secret with
// the given secret key and opens the AEAD ciphertext. An authentication
// failure is surfaced as a symmetric-algorithm error, never as corrupted
// plaintext.
func (e *Engine) Decrypt(encryptedData *EncryptedData, secretKey []byte) (interface{}, error) {
	const op = "Engine.Decrypt"

	dec, err := encryptedData.validateAndDecode()
	if err != nil {
		return nil, err
	}

	// A preset mismatch is a decryption failure, never silently coerced.
	if encryptedData.Preset != e.preset {
		return nil, Errorf(KindValidation, op, "preset mismatch: data is %s, engine is %s", encryptedData.Preset, e.preset)
	}

	if len(secretKey) != e.params.SecretKeySize {
		return nil, Errorf(KindAsymmetric, op, "invalid secret key size for preset %s: expected %d bytes, got %d", e.preset, e.params.SecretKeySize, len(secretKey))
	}

	sk, err := e.scheme.UnmarshalBinaryPrivateKey(secretKey)
	if err != nil {
		return nil, WrapError(KindAsymmetric, op, "failed to parse secret key", err)
	}

	sharedSecret, err := e.scheme.Decapsulate(sk, dec.cipherText)
	if err != nil {
		return nil, WrapError(KindAsymmetric, op, "decapsulation failed", err)
	}
	defer ZeroBytes(sharedSecret)

	key, err := deriveSymmetricKey(sharedSecret, e.preset)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(key)

	aead, err := newAEADCipher(dec.params.Algorithm, key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, dec.nonce, dec.encryptedContent, []byte(e.preset))
	if err != nil {
		return nil, NewError(KindSymmetric, op, "authentication failed")
	}

	return CanonicalDeserialize(plaintext)
}

// DecryptWithGracePeriod attempts Decrypt with each candidate secret key
// in order and returns the first success. The key order matters: callers
// pass the current key first, the previous key second. The aggregate
// failure names only the number of keys attempted, never which keys.
func (e *Engine) DecryptWithGracePeriod(encryptedData *EncryptedData, secretKeys [][]byte) (interface{}, error) {
	const op = "Engine.DecryptWithGracePeriod"

	if len(secretKeys) == 0 {
		return nil, NewError(KindValidation, op, "no decryption keys provided")
	}

	// Malformed input fails once, up front, without burning key attempts.
	if err := encryptedData.Validate(); err != nil {
		return nil, err
	}

	for _, secretKey := range secretKeys {
		data, err := e.Decrypt(encryptedData, secretKey)
		if err == nil {
			return data, nil
		}
	}

	return nil, Errorf(KindOperation, op, "decryption failed with all %d candidate keys", len(secretKeys))
}
