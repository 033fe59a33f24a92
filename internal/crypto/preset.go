package crypto

const (
	// PresetNormal selects ML-KEM-768 with AES-256-GCM.
	PresetNormal = "NORMAL"
	// PresetHighSecurity selects ML-KEM-1024 with ChaCha20-Poly1305.
	PresetHighSecurity = "HIGH_SECURITY"

	sharedSecretSize = 32 // every ML-KEM parameter set yields a 32-byte shared secret
	symmetricKeySize = 32 // 256-bit AEAD keys for both presets
)

// PresetParams is the canonical size table for a preset. Any divergent
// historical values are superseded by this table.
type PresetParams struct {
	// KEMName is the circl scheme name, e.g. "ML-KEM-768".
	KEMName string
	// Algorithm is the AEAD used with this preset.
	Algorithm string

	PublicKeySize    int
	SecretKeySize    int
	CiphertextSize   int
	NonceSize        int
	SharedSecretSize int
	SymmetricKeySize int
}

var presetTable = map[string]PresetParams{
	PresetNormal: {
		KEMName:          "ML-KEM-768",
		Algorithm:        AlgorithmAES256GCM,
		PublicKeySize:    1184,
		SecretKeySize:    2400,
		CiphertextSize:   1088,
		NonceSize:        12,
		SharedSecretSize: sharedSecretSize,
		SymmetricKeySize: symmetricKeySize,
	},
	PresetHighSecurity: {
		KEMName:          "ML-KEM-1024",
		Algorithm:        AlgorithmChaCha20Poly1305,
		PublicKeySize:    1568,
		SecretKeySize:    3168,
		CiphertextSize:   1568,
		NonceSize:        12,
		SharedSecretSize: sharedSecretSize,
		SymmetricKeySize: symmetricKeySize,
	},
}

// IsValidPreset reports whether the preset name is recognized.
func IsValidPreset(preset string) bool {
	_, ok := presetTable[preset]
	return ok
}

// ParamsFor returns the size table for a preset.
func ParamsFor(preset string) (PresetParams, error) {
	params, ok := presetTable[preset]
	if !ok {
		return PresetParams{}, Errorf(KindValidation, "ParamsFor", "unknown preset: %s", preset)
	}
	return params, nil
}

// Presets returns the recognized preset names.
func Presets() []string {
	return []string{PresetNormal, PresetHighSecurity}
}
