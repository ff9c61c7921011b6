package verification

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sango-id/sango_id/internal/provider"
)

// Handler exposes the verification endpoints.
type Handler struct {
	service  *Service
	verifier *WebhookVerifier
}

// NewHandler constructs a verification HTTP handler.
func NewHandler(service *Service, verifier *WebhookVerifier) *Handler {
	return &Handler{service: service, verifier: verifier}
}

type startRequest struct {
	UserID string `json:"user_id"`
}

type imageRequest struct {
	SessionKey string `json:"session_key"`
	Image      string `json:"image"`
	DocType    string `json:"doc_type"`
	Country    string `json:"country"`
}

type sessionResponse struct {
	SessionKey     string       `json:"session_key"`
	UserID         string       `json:"user_id"`
	Kind           Kind         `json:"kind"`
	Phase          Phase        `json:"phase"`
	StepsCompleted []string     `json:"steps_completed"`
	ReviewStatus   ReviewStatus `json:"review_status,omitempty"`
	Verified       bool         `json:"verified"`
	IsLive         bool         `json:"is_live"`
	ImageID        string       `json:"image_id,omitempty"`
}

func toSessionResponse(session Session, imageID string) sessionResponse {
	steps := session.StepsCompleted
	if steps == nil {
		steps = []string{}
	}
	return sessionResponse{
		SessionKey:     session.SessionKey,
		UserID:         session.UserID,
		Kind:           session.Kind,
		Phase:          session.Phase,
		StepsCompleted: steps,
		ReviewStatus:   session.ReviewStatus,
		Verified:       session.Verified,
		IsLive:         session.IsLive,
		ImageID:        imageID,
	}
}

// httpError translates service failures into transport status codes. Provider
// auth failures surface as 401 so broken credentials are visible immediately,
// while provider-side rejections map to the gateway codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidImage):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSessionNotFound):
		return fiber.NewError(http.StatusNotFound, "session not found")
	case provider.IsAuth(err):
		return fiber.NewError(http.StatusUnauthorized, "verification provider rejected credentials")
	case provider.IsTransport(err):
		return fiber.NewError(http.StatusServiceUnavailable, "verification provider unreachable")
	default:
		var perr *provider.Error
		if errors.As(err, &perr) {
			return fiber.NewError(http.StatusBadGateway, perr.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

// StartLiveness begins a liveness enrollment session.
func (h *Handler) StartLiveness(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return fiber.NewError(http.StatusBadRequest, "user_id is required")
	}
	session, err := h.service.StartLiveness(c.UserContext(), req.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toSessionResponse(session, ""))
}

// CheckLiveness submits the liveness selfie for analysis.
func (h *Handler) CheckLiveness(c *fiber.Ctx) error {
	var req imageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.SessionKey == "" {
		return fiber.NewError(http.StatusBadRequest, "session_key is required")
	}
	session, imageID, err := h.service.SubmitLivenessSelfie(c.UserContext(), req.SessionKey, ImageInput{Base64: req.Image})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toSessionResponse(session, imageID))
}

// CompleteLiveness finalizes a liveness session.
func (h *Handler) CompleteLiveness(c *fiber.Ctx) error {
	var req imageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.SessionKey == "" {
		return fiber.NewError(http.StatusBadRequest, "session_key is required")
	}
	session, err := h.service.CompleteLiveness(c.UserContext(), req.SessionKey)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toSessionResponse(session, ""))
}

// LivenessResult polls the provider for a liveness session's standing.
func (h *Handler) LivenessResult(c *fiber.Ctx) error {
	result, err := h.service.CheckStatus(c.UserContext(), KindLiveness, c.Params("session_key"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(result)
}

// StartKYC begins a KYC session.
func (h *Handler) StartKYC(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return fiber.NewError(http.StatusBadRequest, "user_id is required")
	}
	session, err := h.service.StartKYC(c.UserContext(), req.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toSessionResponse(session, ""))
}

// ScanDocumentFront uploads the front of the identity document.
func (h *Handler) ScanDocumentFront(c *fiber.Ctx) error {
	return h.scanDocument(c, provider.SideFront)
}

// ScanDocumentBack uploads the back of the identity document.
func (h *Handler) ScanDocumentBack(c *fiber.Ctx) error {
	return h.scanDocument(c, provider.SideBack)
}

func (h *Handler) scanDocument(c *fiber.Ctx, side string) error {
	var req imageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.SessionKey == "" {
		return fiber.NewError(http.StatusBadRequest, "session_key is required")
	}

	var (
		session Session
		imageID string
		err     error
	)
	if side == provider.SideFront {
		session, imageID, err = h.service.SubmitDocumentFront(c.UserContext(), req.SessionKey, ImageInput{Base64: req.Image}, req.DocType, req.Country)
	} else {
		session, imageID, err = h.service.SubmitDocumentBack(c.UserContext(), req.SessionKey, ImageInput{Base64: req.Image}, req.DocType, req.Country)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toSessionResponse(session, imageID))
}

// VerifySelfie uploads the selfie matched against the submitted document.
func (h *Handler) VerifySelfie(c *fiber.Ctx) error {
	var req imageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.SessionKey == "" {
		return fiber.NewError(http.StatusBadRequest, "session_key is required")
	}
	session, imageID, err := h.service.SubmitKYCSelfie(c.UserContext(), req.SessionKey, ImageInput{Base64: req.Image})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toSessionResponse(session, imageID))
}

// KYCStatus polls the provider for a KYC session's standing.
func (h *Handler) KYCStatus(c *fiber.Ctx) error {
	result, err := h.service.CheckStatus(c.UserContext(), KindKYC, c.Params("session_key"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(result)
}

// CompleteKYC finalizes a KYC session.
func (h *Handler) CompleteKYC(c *fiber.Ctx) error {
	var req imageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.SessionKey == "" {
		return fiber.NewError(http.StatusBadRequest, "session_key is required")
	}
	session, err := h.service.CompleteKYC(c.UserContext(), req.SessionKey)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toSessionResponse(session, ""))
}

// UserStatus reports the aggregate verification standing for one user.
func (h *Handler) UserStatus(c *fiber.Ctx) error {
	report, err := h.service.UserVerificationStatus(c.UserContext(), c.Params("user_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(report)
}

// IssueToken mints a provider SDK access token for the user.
func (h *Handler) IssueToken(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return fiber.NewError(http.StatusBadRequest, "user_id is required")
	}
	token, err := h.service.IssueSDKToken(c.UserContext(), req.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"token": token})
}

// Webhook ingests provider review callbacks. The signature covers the raw
// request body, so it is verified before any JSON decoding. Unknown session
// references answer 200 with an error status so the provider stops retrying
// callbacks for applicants this service never created.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	raw := c.Body()
	if err := h.verifier.Verify(raw, c.Get(WebhookDigestHeader), c.Get(WebhookAlgorithmHeader)); err != nil {
		return fiber.NewError(http.StatusUnauthorized, "invalid webhook signature")
	}

	var event WebhookEvent
	if err := c.BodyParser(&event); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	session, err := h.service.HandleWebhook(c.UserContext(), event)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return c.JSON(fiber.Map{"status": "error", "message": "unknown session reference"})
		}
		return httpError(err)
	}
	return c.JSON(fiber.Map{"status": "ok", "session_key": session.SessionKey, "phase": session.Phase})
}
