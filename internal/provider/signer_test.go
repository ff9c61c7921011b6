package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Unix(1700000000, 0)
}

func TestSignMatchesProtocol(t *testing.T) {
	signer := NewSigner("tok", "secret", WithClock(fixedClock))

	body := []byte(`{"externalUserId":"kyc_user-1_1700000000"}`)
	signed := signer.Sign("post", "/resources/applicants?levelName=basic-kyc-level", body, false)

	if signed.Timestamp != "1700000000" {
		t.Fatalf("unexpected timestamp %q", signed.Timestamp)
	}

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("1700000000POST/resources/applicants?levelName=basic-kyc-level"))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	if signed.Signature != want {
		t.Fatalf("signature mismatch: got %s want %s", signed.Signature, want)
	}
	if signed.Header["X-App-Token"] != "tok" {
		t.Fatalf("missing app token header: %+v", signed.Header)
	}
	if signed.Header["X-App-Access-Sig"] != want {
		t.Fatalf("signature header mismatch")
	}
	if signed.Header["X-Return-Doc-Warnings"] != "true" {
		t.Fatalf("missing doc warnings header")
	}
	if signed.Header["Content-Type"] != "application/json" {
		t.Fatalf("json requests must carry a json content type")
	}
}

func TestSignMultipartOmitsContentType(t *testing.T) {
	signer := NewSigner("tok", "secret", WithClock(fixedClock))

	signed := signer.Sign("POST", "/resources/applicants/a1/info/idDoc", []byte("--boundary--"), true)
	if _, ok := signed.Header["Content-Type"]; ok {
		t.Fatalf("multipart requests must not get the json content type")
	}
}

func TestSignBodySensitivity(t *testing.T) {
	signer := NewSigner("tok", "secret", WithClock(fixedClock))

	a := signer.Sign("POST", "/resources/applicants", []byte("body-one"), false)
	b := signer.Sign("POST", "/resources/applicants", []byte("body-two"), false)
	if a.Signature == b.Signature {
		t.Fatalf("different bodies must produce different signatures")
	}
}

func TestBase64SecretKeyDecoded(t *testing.T) {
	// "c2VjcmV0" is the strict base64 encoding of "secret".
	encoded := NewSigner("tok", "c2VjcmV0", WithClock(fixedClock))
	raw := NewSigner("tok", "secret", WithClock(fixedClock))

	body := []byte(`{}`)
	if encoded.Sign("GET", "/resources/applicants/a1", body, false).Signature !=
		raw.Sign("GET", "/resources/applicants/a1", body, false).Signature {
		t.Fatalf("base64 secret must be decoded before signing")
	}
}
