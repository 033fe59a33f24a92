package crypto

import (
	"encoding/base64"
	"strings"
)

// EncodeBase64 encodes bytes as standard base64 with padding. The output
// never contains line breaks regardless of input size.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes standard base64 with padding. Malformed input is
// reported as a format error rather than a bare encoding error so callers
// can branch on the kind.
func DecodeBase64(s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n") {
		return nil, NewError(KindFormat, "DecodeBase64", "base64 input must not contain line breaks")
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, WrapError(KindFormat, "DecodeBase64", "invalid base64 input", err)
	}
	return data, nil
}
