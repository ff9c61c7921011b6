package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newAPIKeyApp(key string) *fiber.App {
	app := fiber.New()
	app.Use(APIKeyAuth(key))
	app.Get("/secure", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestAPIKeyAuth(t *testing.T) {
	app := newAPIKeyApp("top-secret")

	req := httptest.NewRequest(fiber.MethodGet, "/secure", nil)
	req.Header.Set(apiKeyHeader, "top-secret")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("valid key rejected: %d", resp.StatusCode)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/secure", nil)
	req.Header.Set(apiKeyHeader, "wrong")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("invalid key accepted: %d", resp.StatusCode)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/secure", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("missing key accepted: %d", resp.StatusCode)
	}
}

func TestAPIKeyAuthDisabledWithoutKey(t *testing.T) {
	app := newAPIKeyApp("")

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/secure", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("empty key must disable the check: %d", resp.StatusCode)
	}
}
