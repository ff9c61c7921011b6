package verification

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/sango-id/sango_id/internal/logging"
)

func newWebhookApp(t *testing.T) (*fiber.App, *Service) {
	t.Helper()
	stub := &stubProvider{applicantID: "abc123"}
	svc := NewService(stub, NewMemoryStore(), &testNotifier{}, logging.Discard())
	handler := NewHandler(svc, NewWebhookVerifier("hook-secret"))

	app := fiber.New()
	app.Post("/webhook/provider", handler.Webhook)
	return app, svc
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte("hook-secret"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	app, _ := newWebhookApp(t)

	body := []byte(`{"externalUserId":"kyc_u1_1","reviewStatus":"approved"}`)
	req := httptest.NewRequest(fiber.MethodPost, "/webhook/provider", strings.NewReader(string(body)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(WebhookDigestHeader, "deadbeef")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWebhookEndpointUnknownReferenceSoftFails(t *testing.T) {
	app, _ := newWebhookApp(t)

	body := []byte(`{"externalUserId":"kyc_ghost_1","reviewStatus":"approved"}`)
	req := httptest.NewRequest(fiber.MethodPost, "/webhook/provider", strings.NewReader(string(body)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(WebhookDigestHeader, signBody(body))

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unknown references must answer 200, got %d", resp.StatusCode)
	}

	payload, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded["status"] != "error" {
		t.Fatalf("unexpected body %s", payload)
	}
}

func TestWebhookEndpointFinalizesSession(t *testing.T) {
	app, svc := newWebhookApp(t)

	session, err := svc.StartKYC(context.Background(), "u1")
	if err != nil {
		t.Fatalf("start kyc: %v", err)
	}

	payload, _ := json.Marshal(WebhookEvent{
		ExternalUserID: session.ExternalRef,
		ApplicantID:    session.SessionKey,
		ReviewStatus:   "approved",
	})
	req := httptest.NewRequest(fiber.MethodPost, "/webhook/provider", strings.NewReader(string(payload)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(WebhookDigestHeader, signBody(payload))
	req.Header.Set(WebhookAlgorithmHeader, "HMAC_SHA256_HEX")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	updated, err := svc.store.FindByKey(context.Background(), KindKYC, session.SessionKey)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if updated.Phase != PhaseCompleted || !updated.Verified {
		t.Fatalf("webhook did not finalize the session: %+v", updated)
	}
}
