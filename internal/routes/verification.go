package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sango-id/sango_id/internal/verification"
)

// RegisterVerificationRoutes wires the liveness and KYC endpoints. Session
// creation is rate limited because each start provisions a remote applicant.
func RegisterVerificationRoutes(r fiber.Router, h *verification.Handler, startLimit fiber.Handler) {
	r.Post("/liveness/start", startLimit, h.StartLiveness)
	r.Post("/liveness/check", h.CheckLiveness)
	r.Post("/liveness/complete", h.CompleteLiveness)
	r.Get("/liveness/result/:session_key", h.LivenessResult)

	r.Post("/kyc/start", startLimit, h.StartKYC)
	r.Post("/document/scan-front", h.ScanDocumentFront)
	r.Post("/document/scan-back", h.ScanDocumentBack)
	r.Post("/selfie/verify", h.VerifySelfie)
	r.Get("/kyc/status/:session_key", h.KYCStatus)
	r.Post("/kyc/complete", h.CompleteKYC)

	r.Get("/user/:user_id/status", h.UserStatus)
	r.Post("/token", h.IssueToken)
}

// RegisterWebhookRoutes wires the provider callback endpoint.
func RegisterWebhookRoutes(r fiber.Router, h *verification.Handler) {
	r.Post("/webhook/provider", h.Webhook)
}
