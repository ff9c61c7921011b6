package verification

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestDecodeImageRawBytesWin(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xff}
	decoded, err := DecodeImage(ImageInput{Bytes: raw, Base64: "ignored"})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatalf("raw bytes must pass through unchanged")
	}
}

func TestDecodeImageRestoresPadding(t *testing.T) {
	payload := []byte("jpeg-bytes")
	stripped := strings.TrimRight(base64.StdEncoding.EncodeToString(payload), "=")

	decoded, err := DecodeImage(ImageInput{Base64: stripped})
	if err != nil {
		t.Fatalf("decode stripped padding: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("got %q want %q", decoded, payload)
	}
}

func TestDecodeImageEmpty(t *testing.T) {
	if _, err := DecodeImage(ImageInput{}); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestDecodeImageGarbage(t *testing.T) {
	if _, err := DecodeImage(ImageInput{Base64: "!!not-base64!!"}); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}
