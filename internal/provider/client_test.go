package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sango-id/sango_id/internal/logging"
)

// verifySignature recomputes the request signature server-side the way the
// real provider does.
func verifySignature(t *testing.T, r *http.Request, secret string) []byte {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read request body: %v", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(r.Header.Get("X-App-Access-Ts")))
	mac.Write([]byte(r.Method))
	mac.Write([]byte(r.URL.RequestURI()))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	if got := r.Header.Get("X-App-Access-Sig"); got != want {
		t.Errorf("signature mismatch: got %s want %s", got, want)
	}
	return body
}

func newTestClient(baseURL string) *Client {
	signer := NewSigner("tok", "secret", WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
	return NewClient(baseURL, "basic-kyc-level", signer, 5*time.Second, logging.Discard())
}

func TestCreateApplicant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resources/applicants" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("levelName"); got != "basic-kyc-level" {
			t.Errorf("unexpected level name %q", got)
		}
		if got := r.Header.Get("X-App-Token"); got != "tok" {
			t.Errorf("unexpected app token %q", got)
		}
		body := verifySignature(t, r, "secret")
		if !bytes.Contains(body, []byte(`"externalUserId":"kyc_user-1_1700000000"`)) {
			t.Errorf("unexpected body %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"abc123"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).CreateApplicant(context.Background(), "kyc_user-1_1700000000")
	if err != nil {
		t.Fatalf("create applicant: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("unexpected applicant id %q", id)
	}
}

func TestCreateApplicantAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"description":"invalid signature"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateApplicant(context.Background(), "ref")
	if !IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestFetchApplicantStatusDomainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"description":"duplicate"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchApplicantStatus(context.Background(), "a1")
	if !IsKind(err, KindDomain) {
		t.Fatalf("expected domain error, got %v", err)
	}
	var perr *Error
	if !errors.As(err, &perr) || perr.StatusCode != http.StatusConflict {
		t.Fatalf("expected status 409 recorded, got %v", err)
	}
}

func TestUploadSelfieMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := verifySignature(t, r, "secret")

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Fatalf("unexpected content type %q", r.Header.Get("Content-Type"))
		}

		form, err := multipart.NewReader(bytes.NewReader(body), params["boundary"]).ReadForm(1 << 20)
		if err != nil {
			t.Fatalf("parse multipart body: %v", err)
		}
		if got := form.Value["metadata"]; len(got) != 1 || !bytes.Contains([]byte(got[0]), []byte("VIDEO_SELFIE")) {
			t.Errorf("unexpected metadata %v", form.Value["metadata"])
		}
		files := form.File["content"]
		if len(files) != 1 || files[0].Filename != "selfie.jpg" {
			t.Fatalf("unexpected content part %v", files)
		}
		f, err := files[0].Open()
		if err != nil {
			t.Fatalf("open content part: %v", err)
		}
		defer f.Close()
		img, _ := io.ReadAll(f)
		if !bytes.Equal(img, []byte("jpeg-bytes")) {
			t.Errorf("image bytes corrupted in transit")
		}

		w.Header().Set("X-Image-Id", "img-42")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	imageID, err := newTestClient(srv.URL).UploadSelfie(context.Background(), "a1", []byte("jpeg-bytes"), true)
	if err != nil {
		t.Fatalf("upload selfie: %v", err)
	}
	if imageID != "img-42" {
		t.Fatalf("unexpected image id %q", imageID)
	}
}

func TestUploadDocumentSideImageIDFromBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := verifySignature(t, r, "secret")
		if !bytes.Contains(body, []byte("BACK_SIDE")) {
			t.Errorf("expected back side metadata")
		}
		if !bytes.Contains(body, []byte(`filename="back.jpg"`)) {
			t.Errorf("expected back.jpg filename")
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"img-7"}`))
	}))
	defer srv.Close()

	imageID, err := newTestClient(srv.URL).UploadDocumentSide(context.Background(), "a1", []byte("jpeg"), "PASSPORT", "CIV", SideBack)
	if err != nil {
		t.Fatalf("upload document: %v", err)
	}
	if imageID != "img-7" {
		t.Fatalf("unexpected image id %q", imageID)
	}
}

func TestIssueAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resources/accessTokens/sdk" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body := verifySignature(t, r, "secret")
		if !bytes.Contains(body, []byte(`"userId":"kyc_u1_1"`)) {
			t.Errorf("unexpected body %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token":"sdk-token"}`))
	}))
	defer srv.Close()

	token, err := newTestClient(srv.URL).IssueAccessToken(context.Background(), "kyc_u1_1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if token != "sdk-token" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	_, err := newTestClient(srv.URL).FetchApplicantStatus(context.Background(), "a1")
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
