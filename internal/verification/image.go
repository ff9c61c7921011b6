package verification

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ImageInput carries an uploaded image either as raw bytes or as a base64
// string. Exactly one of the two should be set; raw bytes win when both are.
type ImageInput struct {
	Bytes  []byte
	Base64 string
}

// DecodeImage normalizes an image payload to raw bytes. Source systems
// commonly strip trailing base64 padding, so it is restored before decoding.
// Failures are client input errors, not provider or transport errors.
func DecodeImage(input ImageInput) ([]byte, error) {
	if len(input.Bytes) > 0 {
		return input.Bytes, nil
	}
	encoded := strings.TrimSpace(input.Base64)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	if missing := len(encoded) % 4; missing != 0 {
		encoded += strings.Repeat("=", 4-missing)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return decoded, nil
}
