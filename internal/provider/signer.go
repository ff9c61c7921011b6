package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"
	"time"
)

const (
	headerAppToken    = "X-App-Token"
	headerAccessTs    = "X-App-Access-Ts"
	headerAccessSig   = "X-App-Access-Sig"
	headerDocWarnings = "X-Return-Doc-Warnings"
)

// Signer produces the authentication headers the verification provider
// expects on every request. The signature covers the exact bytes that go on
// the wire, so multipart bodies must be serialized before signing.
type Signer struct {
	appToken string
	key      []byte
	digest   func() hash.Hash
	now      func() time.Time
}

// SignerOption customises a Signer.
type SignerOption func(*Signer)

// WithDigest overrides the HMAC digest. SHA-256 is the default.
func WithDigest(digest func() hash.Hash) SignerOption {
	return func(s *Signer) { s.digest = digest }
}

// WithClock overrides the timestamp source. Used by tests.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

// NewSigner builds a Signer from the configured app token and secret key.
// Providers issue secret keys either raw or base64-encoded; a key that
// decodes as strict base64 is used in decoded form, anything else as-is.
func NewSigner(appToken, secretKey string, opts ...SignerOption) *Signer {
	s := &Signer{
		appToken: appToken,
		key:      secretKeyBytes(secretKey),
		digest:   sha256.New,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignedHeaders is the result of signing one request.
type SignedHeaders struct {
	Timestamp string
	Signature string
	Header    map[string]string
}

// Sign computes the HMAC over ts + METHOD + path (with query) + body and
// returns the full header set for the request. Multipart requests carry the
// serialized multipart bytes as body and supply their own Content-Type.
func (s *Signer) Sign(method, pathWithQuery string, body []byte, multipart bool) SignedHeaders {
	ts := strconv.FormatInt(s.now().Unix(), 10)

	mac := hmac.New(s.digest, s.key)
	mac.Write([]byte(ts))
	mac.Write([]byte(strings.ToUpper(method)))
	mac.Write([]byte(pathWithQuery))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	header := map[string]string{
		headerAppToken:    s.appToken,
		headerAccessTs:    ts,
		headerAccessSig:   sig,
		"Accept":          "application/json",
		headerDocWarnings: "true",
	}
	if !multipart {
		header["Content-Type"] = "application/json"
	}

	return SignedHeaders{Timestamp: ts, Signature: sig, Header: header}
}

func secretKeyBytes(secretKey string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(secretKey); err == nil {
		return decoded
	}
	return []byte(secretKey)
}
