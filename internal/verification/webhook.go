package verification

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// Webhook authenticity headers set by the provider. Callers must read them
// case-insensitively.
const (
	WebhookDigestHeader    = "X-Payload-Digest"
	WebhookAlgorithmHeader = "X-Payload-Digest-Alg"

	defaultWebhookAlgorithm = "HMAC_SHA256_HEX"
)

var webhookAlgorithms = map[string]func() hash.Hash{
	"HMAC_SHA256_HEX": sha256.New,
	"HMAC_SHA512_HEX": sha512.New,
	// Deprecated by the provider but still delivered by older configurations.
	"HMAC_SHA1_HEX": sha1.New,
}

// WebhookVerifier authenticates inbound provider callbacks against the
// shared webhook secret.
type WebhookVerifier struct {
	secret []byte
}

// NewWebhookVerifier builds a verifier for the given shared secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(strings.TrimSpace(secret))}
}

// Verify checks the signature over the raw, undecoded request body. Any JSON
// re-encoding before this call invalidates the digest. A missing signature,
// missing secret, or unrecognised algorithm is a verification failure, never
// a fallback.
func (v *WebhookVerifier) Verify(rawBody []byte, digestHeader, algorithmHeader string) error {
	if len(v.secret) == 0 {
		return fmt.Errorf("%w: webhook secret not configured", ErrWebhookSignature)
	}
	signature := strings.TrimSpace(digestHeader)
	if signature == "" {
		return fmt.Errorf("%w: missing digest header", ErrWebhookSignature)
	}

	algorithm := strings.ToUpper(strings.TrimSpace(algorithmHeader))
	if algorithm == "" {
		algorithm = defaultWebhookAlgorithm
	}
	digest, ok := webhookAlgorithms[algorithm]
	if !ok {
		return fmt.Errorf("%w: unsupported algorithm %q", ErrWebhookSignature, algorithm)
	}

	mac := hmac.New(digest, v.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrWebhookSignature
	}
	return nil
}
