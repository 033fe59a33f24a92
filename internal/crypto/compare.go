package crypto

import "crypto/subtle"

// ConstantTimeEqual compares two byte slices without short-circuiting on
// the first mismatch. Slices of different lengths compare unequal
// immediately; length is not treated as secret.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
