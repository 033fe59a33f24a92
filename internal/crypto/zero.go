package crypto

// ZeroBytes overwrites every byte of the slice with zero. Used for secret
// key material and derived symmetric keys on every exit path.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
