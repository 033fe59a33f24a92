package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// AlgorithmAES256GCM is the AEAD used by the NORMAL preset.
	AlgorithmAES256GCM = "AES256-GCM"
	// AlgorithmChaCha20Poly1305 is the AEAD used by the HIGH_SECURITY preset.
	AlgorithmChaCha20Poly1305 = "ChaCha20-Poly1305"
)

// AEADCipher wraps cipher.AEAD with the algorithm name for diagnostics.
type AEADCipher interface {
	cipher.AEAD
	Algorithm() string
}

type aesGCMCipher struct {
	cipher.AEAD
}

func (c *aesGCMCipher) Algorithm() string {
	return AlgorithmAES256GCM
}

type chacha20Poly1305Cipher struct {
	cipher.AEAD
}

func (c *chacha20Poly1305Cipher) Algorithm() string {
	return AlgorithmChaCha20Poly1305
}

// newAEADCipher creates an AEAD cipher for the given algorithm and key.
func newAEADCipher(algorithm string, key []byte) (AEADCipher, error) {
	switch algorithm {
	case AlgorithmAES256GCM:
		return newAESGCMCipher(key)
	case AlgorithmChaCha20Poly1305:
		return newChaCha20Poly1305Cipher(key)
	default:
		return nil, Errorf(KindSymmetric, "newAEADCipher", "unsupported algorithm: %s", algorithm)
	}
}

func newAESGCMCipher(key []byte) (AEADCipher, error) {
	if len(key) != symmetricKeySize {
		return nil, Errorf(KindSymmetric, "newAESGCMCipher", "invalid key size for AES-256: expected %d bytes, got %d", symmetricKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, WrapError(KindSymmetric, "newAESGCMCipher", "failed to create AES cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, WrapError(KindSymmetric, "newAESGCMCipher", "failed to create GCM", err)
	}

	return &aesGCMCipher{AEAD: gcm}, nil
}

func newChaCha20Poly1305Cipher(key []byte) (AEADCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, Errorf(KindSymmetric, "newChaCha20Poly1305Cipher", "invalid key size for ChaCha20: expected %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, WrapError(KindSymmetric, "newChaCha20Poly1305Cipher", "failed to create ChaCha20-Poly1305 cipher", err)
	}

	return &chacha20Poly1305Cipher{AEAD: aead}, nil
}
