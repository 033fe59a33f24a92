package crypto

// EncryptedData is the wire record produced by Engine.Encrypt. All three
// byte-carrying fields are standard base64 with padding and no embedded
// line breaks.
type EncryptedData struct {
	Preset           string `json:"preset"`
	EncryptedContent string `json:"encryptedContent"`
	CipherText       string `json:"cipherText"`
	Nonce            string `json:"nonce"`
}

// decoded holds the byte form of a validated EncryptedData record.
type decoded struct {
	params           PresetParams
	encryptedContent []byte
	cipherText       []byte
	nonce            []byte
}

// validateAndDecode checks the record shape before any cryptography runs.
// Malformed input fails fast with a format error and never reaches the
// cryptographic routines.
func (d *EncryptedData) validateAndDecode() (*decoded, error) {
	const op = "EncryptedData.Validate"

	if d == nil {
		return nil, NewError(KindFormat, op, "encrypted data is nil")
	}
	if d.Preset == "" || d.EncryptedContent == "" || d.CipherText == "" || d.Nonce == "" {
		return nil, NewError(KindFormat, op, "encrypted data is missing required fields")
	}

	params, ok := presetTable[d.Preset]
	if !ok {
		return nil, Errorf(KindFormat, op, "unrecognized preset: %s", d.Preset)
	}

	content, err := DecodeBase64(d.EncryptedContent)
	if err != nil {
		return nil, WrapError(KindFormat, op, "encryptedContent is not valid base64", err)
	}

	cipherText, err := DecodeBase64(d.CipherText)
	if err != nil {
		return nil, WrapError(KindFormat, op, "cipherText is not valid base64", err)
	}
	if len(cipherText) != params.CiphertextSize {
		return nil, Errorf(KindFormat, op, "cipherText size mismatch for preset %s: expected %d bytes, got %d", d.Preset, params.CiphertextSize, len(cipherText))
	}

	nonce, err := DecodeBase64(d.Nonce)
	if err != nil {
		return nil, WrapError(KindFormat, op, "nonce is not valid base64", err)
	}
	if len(nonce) != params.NonceSize {
		return nil, Errorf(KindFormat, op, "nonce size mismatch for preset %s: expected %d bytes, got %d", d.Preset, params.NonceSize, len(nonce))
	}

	return &decoded{
		params:           params,
		encryptedContent: content,
		cipherText:       cipherText,
		nonce:            nonce,
	}, nil
}

// Validate checks the record shape without decrypting.
func (d *EncryptedData) Validate() error {
	_, err := d.validateAndDecode()
	return err
}
