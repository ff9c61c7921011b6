package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sango-id/sango_id/internal/notification"
	"github.com/sango-id/sango_id/internal/provider"
)

// ProviderClient is the remote verification API surface the orchestrator
// depends on.
type ProviderClient interface {
	CreateApplicant(ctx context.Context, externalRef string) (string, error)
	UploadSelfie(ctx context.Context, applicantID string, image []byte, liveness bool) (string, error)
	UploadDocumentSide(ctx context.Context, applicantID string, image []byte, docType, country, side string) (string, error)
	FetchApplicantStatus(ctx context.Context, applicantID string) (provider.ApplicantStatus, error)
	IssueAccessToken(ctx context.Context, externalRef string) (string, error)
}

// Service drives liveness and KYC sessions through their phases, reconciling
// client step calls with asynchronous provider webhooks.
type Service struct {
	provider ProviderClient
	store    Store
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the verification orchestrator.
func NewService(p ProviderClient, store Store, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		provider: p,
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) externalRef(kind Kind, userID string) string {
	return fmt.Sprintf("%s_%s_%d", kind, userID, s.now().Unix())
}

// StartLiveness creates a remote applicant for a liveness check and persists
// the new session. The provider's applicant id becomes the session key.
func (s *Service) StartLiveness(ctx context.Context, userID string) (Session, error) {
	return s.start(ctx, KindLiveness, userID)
}

// StartKYC creates a remote applicant for a KYC flow and persists the new
// session.
func (s *Service) StartKYC(ctx context.Context, userID string) (Session, error) {
	return s.start(ctx, KindKYC, userID)
}

func (s *Service) start(ctx context.Context, kind Kind, userID string) (Session, error) {
	ref := s.externalRef(kind, userID)
	applicantID, err := s.provider.CreateApplicant(ctx, ref)
	if err != nil {
		return Session{}, err
	}

	now := s.now().UTC()
	session := Session{
		SessionKey:     applicantID,
		UserID:         userID,
		ExternalRef:    ref,
		Kind:           kind,
		Phase:          PhaseInitiated,
		StepsCompleted: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Insert(ctx, session); err != nil {
		return Session{}, err
	}

	s.logger.Info("verification session started",
		slog.String("kind", string(kind)),
		slog.String("user_id", userID),
		slog.String("session_key", applicantID),
	)
	return session, nil
}

// SubmitLivenessSelfie uploads the liveness selfie. The upload itself
// triggers the provider's active liveness analysis.
func (s *Service) SubmitLivenessSelfie(ctx context.Context, sessionKey string, image ImageInput) (Session, string, error) {
	session, err := s.store.FindByKey(ctx, KindLiveness, sessionKey)
	if err != nil {
		return Session{}, "", err
	}
	if session.Phase.Terminal() {
		return session, "", nil
	}

	img, err := DecodeImage(image)
	if err != nil {
		return Session{}, "", err
	}

	imageID, err := s.provider.UploadSelfie(ctx, session.SessionKey, img, true)
	if err != nil {
		return Session{}, "", err
	}

	updated, err := s.applyStep(ctx, session, SessionUpdate{
		Phase: PhaseSelfieSubmitted,
		Steps: []string{StepSelfie},
	})
	return updated, imageID, err
}

// SubmitDocumentFront uploads the front side of the identity document.
func (s *Service) SubmitDocumentFront(ctx context.Context, sessionKey string, image ImageInput, docType, country string) (Session, string, error) {
	return s.submitDocument(ctx, sessionKey, image, docType, country, provider.SideFront, StepDocumentFront, PhaseFrontSubmitted)
}

// SubmitDocumentBack uploads the back side of the identity document.
func (s *Service) SubmitDocumentBack(ctx context.Context, sessionKey string, image ImageInput, docType, country string) (Session, string, error) {
	return s.submitDocument(ctx, sessionKey, image, docType, country, provider.SideBack, StepDocumentBack, PhaseBackSubmitted)
}

func (s *Service) submitDocument(ctx context.Context, sessionKey string, image ImageInput, docType, country, side, step string, target Phase) (Session, string, error) {
	session, err := s.store.FindByKey(ctx, KindKYC, sessionKey)
	if err != nil {
		return Session{}, "", err
	}
	if session.Phase.Terminal() {
		return session, "", nil
	}

	img, err := DecodeImage(image)
	if err != nil {
		return Session{}, "", err
	}

	imageID, err := s.provider.UploadDocumentSide(ctx, session.SessionKey, img, docType, country, side)
	if err != nil {
		return Session{}, "", err
	}

	updated, err := s.applyStep(ctx, session, SessionUpdate{
		Phase:   target,
		Steps:   []string{step},
		DocType: docType,
		Country: country,
	})
	return updated, imageID, err
}

// SubmitKYCSelfie uploads the selfie the provider matches against the
// submitted document.
func (s *Service) SubmitKYCSelfie(ctx context.Context, sessionKey string, image ImageInput) (Session, string, error) {
	session, err := s.store.FindByKey(ctx, KindKYC, sessionKey)
	if err != nil {
		return Session{}, "", err
	}
	if session.Phase.Terminal() {
		return session, "", nil
	}

	img, err := DecodeImage(image)
	if err != nil {
		return Session{}, "", err
	}

	imageID, err := s.provider.UploadSelfie(ctx, session.SessionKey, img, false)
	if err != nil {
		return Session{}, "", err
	}

	updated, err := s.applyStep(ctx, session, SessionUpdate{
		Phase: PhaseSelfieSubmitted,
		Steps: []string{StepSelfie},
	})
	return updated, imageID, err
}

// CompleteLiveness reads the applicant status, finalizes the session and
// projects the verdict onto the user status cache.
func (s *Service) CompleteLiveness(ctx context.Context, sessionKey string) (Session, error) {
	session, err := s.store.FindByKey(ctx, KindLiveness, sessionKey)
	if err != nil {
		return Session{}, err
	}
	if session.Phase.Terminal() {
		return session, nil
	}

	status, err := s.provider.FetchApplicantStatus(ctx, session.SessionKey)
	if err != nil {
		return Session{}, err
	}
	review := ParseReviewStatus(status.ReviewStatus)
	verdict := review == ReviewApproved

	updated, err := s.applyStep(ctx, session, SessionUpdate{
		Phase:        PhaseCompleted,
		ReviewStatus: review,
		IsLive:       &verdict,
		Steps:        []string{StepLivenessComplete},
	})
	if err != nil {
		return Session{}, err
	}

	completed := updated.Phase == PhaseCompleted
	patch := UserStatusPatch{
		LivenessCompleted:    &completed,
		LivenessVerified:     &verdict,
		LivenessSessionKey:   updated.SessionKey,
		LivenessReviewStatus: review,
	}
	if err := s.store.UpsertUserStatus(ctx, updated.UserID, patch); err != nil {
		return Session{}, err
	}
	return updated, nil
}

// CompleteKYC reads the applicant status, finalizes the session and projects
// the verdict onto the user status cache.
func (s *Service) CompleteKYC(ctx context.Context, sessionKey string) (Session, error) {
	session, err := s.store.FindByKey(ctx, KindKYC, sessionKey)
	if err != nil {
		return Session{}, err
	}
	if session.Phase.Terminal() {
		return session, nil
	}

	status, err := s.provider.FetchApplicantStatus(ctx, session.SessionKey)
	if err != nil {
		return Session{}, err
	}
	review := ParseReviewStatus(status.ReviewStatus)
	verdict := review == ReviewApproved

	updated, err := s.applyStep(ctx, session, SessionUpdate{
		Phase:        PhaseCompleted,
		ReviewStatus: review,
		Verified:     &verdict,
		Steps:        []string{StepKYCComplete},
	})
	if err != nil {
		return Session{}, err
	}

	completed := updated.Phase == PhaseCompleted
	patch := UserStatusPatch{
		Verified:        &verdict,
		KYCCompleted:    &completed,
		KYCSessionKey:   updated.SessionKey,
		KYCReviewStatus: review,
	}
	if err := s.store.UpsertUserStatus(ctx, updated.UserID, patch); err != nil {
		return Session{}, err
	}
	return updated, nil
}

// applyStep writes a step result without ever moving the phase backwards. A
// session a webhook already closed swallows the step silently: duplicate
// client retries and abandoned-but-landed uploads must not error.
func (s *Service) applyStep(ctx context.Context, session Session, upd SessionUpdate) (Session, error) {
	if upd.Phase != "" && upd.Phase.Rank(session.Kind) <= session.Phase.Rank(session.Kind) {
		upd.Phase = ""
	}
	upd.GuardTerminal = true

	updated, err := s.store.Apply(ctx, session.Kind, session.SessionKey, upd)
	if errors.Is(err, ErrSessionClosed) {
		return updated, nil
	}
	return updated, err
}

// StatusResult is the polling view of one session.
type StatusResult struct {
	SessionKey   string       `json:"session_key"`
	Phase        Phase        `json:"phase"`
	Status       string       `json:"status"`
	ReviewStatus ReviewStatus `json:"review_status"`
	Progress     int          `json:"progress"`
}

// CheckStatus polls the provider for the session's current standing. It
// mutates nothing locally or remotely.
func (s *Service) CheckStatus(ctx context.Context, kind Kind, sessionKey string) (StatusResult, error) {
	session, err := s.store.FindByKey(ctx, kind, sessionKey)
	if err != nil {
		return StatusResult{}, err
	}

	status, err := s.provider.FetchApplicantStatus(ctx, session.SessionKey)
	if err != nil {
		return StatusResult{}, err
	}

	return StatusResult{
		SessionKey:   session.SessionKey,
		Phase:        session.Phase,
		Status:       status.Status,
		ReviewStatus: ParseReviewStatus(status.ReviewStatus),
		Progress:     ProgressFor(status.Status),
	}, nil
}

// IssueSDKToken hands off verification to the provider's client SDK. The
// latest KYC session's reference is reused when one exists so the token binds
// to the in-flight applicant.
func (s *Service) IssueSDKToken(ctx context.Context, userID string) (string, error) {
	ref := s.externalRef(KindKYC, userID)
	if session, err := s.store.LatestByUser(ctx, KindKYC, userID); err == nil {
		ref = session.ExternalRef
	}
	return s.provider.IssueAccessToken(ctx, ref)
}

// FlowStatus summarizes one verification flow for the user status report.
type FlowStatus struct {
	Status       string       `json:"status"`
	Verified     bool         `json:"verified"`
	ReviewStatus ReviewStatus `json:"review_status,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	Message      string       `json:"message,omitempty"`
}

// UserStatusReport aggregates the user's latest liveness and KYC outcome.
type UserStatusReport struct {
	UserID        string     `json:"user_id"`
	OverallStatus string     `json:"overall_status"`
	Verified      bool       `json:"verified"`
	Liveness      FlowStatus `json:"liveness"`
	KYC           FlowStatus `json:"kyc"`
}

// UserVerificationStatus builds the aggregate status view from the cache and
// the most recent session of each kind.
func (s *Service) UserVerificationStatus(ctx context.Context, userID string) (UserStatusReport, error) {
	cached, err := s.store.UserStatusByID(ctx, userID)
	if err != nil {
		return UserStatusReport{}, err
	}

	report := UserStatusReport{
		UserID:        userID,
		OverallStatus: "not_started",
		Verified:      cached.Verified,
		Liveness:      FlowStatus{Status: "pending"},
		KYC:           FlowStatus{Status: "pending"},
	}
	if cached.Verified {
		report.OverallStatus = "verified"
	}

	if session, err := s.store.LatestByUser(ctx, KindLiveness, userID); err == nil {
		if session.Phase == PhaseCompleted {
			report.Liveness.Status = "completed"
			report.Liveness.Message = "Liveness Enrolled Successfully"
			completedAt := session.UpdatedAt
			report.Liveness.CompletedAt = &completedAt
		}
		report.Liveness.Verified = session.IsLive
		report.Liveness.ReviewStatus = session.ReviewStatus
	} else if !errors.Is(err, ErrSessionNotFound) {
		return UserStatusReport{}, err
	}

	if session, err := s.store.LatestByUser(ctx, KindKYC, userID); err == nil {
		if session.Phase == PhaseCompleted {
			report.KYC.Status = "completed"
			completedAt := session.UpdatedAt
			report.KYC.CompletedAt = &completedAt
		}
		if session.Verified {
			report.KYC.Message = "KYC Approved"
		}
		report.KYC.Verified = session.Verified
		report.KYC.ReviewStatus = session.ReviewStatus
	} else if !errors.Is(err, ErrSessionNotFound) {
		return UserStatusReport{}, err
	}

	return report, nil
}

// WebhookEvent is the decoded provider callback payload.
type WebhookEvent struct {
	ExternalUserID string `json:"externalUserId"`
	ApplicantID    string `json:"applicantId"`
	LevelName      string `json:"levelName"`
	ReviewStatus   string `json:"reviewStatus"`
}

// KindForReference derives the processing path from the external reference
// prefix; everything that is not a liveness reference is a KYC callback.
func KindForReference(externalRef string) Kind {
	if strings.HasPrefix(strings.ToLower(externalRef), string(KindLiveness)) {
		return KindLiveness
	}
	return KindKYC
}

// HandleWebhook folds an authenticated provider callback into the matching
// session. The callback identifies the session by external reference only.
// An unknown reference returns ErrSessionNotFound, which callers report as a
// soft failure because the provider retries webhook delivery.
func (s *Service) HandleWebhook(ctx context.Context, event WebhookEvent) (Session, error) {
	kind := KindForReference(event.ExternalUserID)
	session, err := s.store.FindByExternalRef(ctx, kind, event.ExternalUserID)
	if err != nil {
		return Session{}, err
	}

	review := ParseReviewStatus(event.ReviewStatus)
	verdict := review == ReviewApproved

	var target Phase
	switch review {
	case ReviewApproved:
		target = PhaseCompleted
	case ReviewRejected:
		target = PhaseFailed
	}

	upd := SessionUpdate{
		Phase:         target,
		ReviewStatus:  review,
		GuardTerminal: true,
	}
	if kind == KindLiveness {
		upd.IsLive = &verdict
	} else {
		upd.Verified = &verdict
	}

	updated, err := s.store.Apply(ctx, kind, session.SessionKey, upd)
	if errors.Is(err, ErrSessionClosed) {
		if target == "" {
			// A stale pending callback carries no verdict detail; the
			// terminal session stays as it is.
			return updated, nil
		}
		// Terminal phase is sticky: attach the verdict detail without
		// touching the phase and flag the contradiction for review.
		s.logger.Warn("webhook verdict for finalized session",
			slog.String("kind", string(kind)),
			slog.String("session_key", session.SessionKey),
			slog.String("phase", string(updated.Phase)),
			slog.String("review_status", string(review)),
		)
		late := SessionUpdate{ReviewStatus: review}
		if kind == KindLiveness {
			late.IsLive = &verdict
		} else {
			late.Verified = &verdict
		}
		updated, err = s.store.Apply(ctx, kind, session.SessionKey, late)
	}
	if err != nil {
		return Session{}, err
	}

	completed := updated.Phase == PhaseCompleted
	patch := UserStatusPatch{}
	if kind == KindLiveness {
		patch.LivenessCompleted = &completed
		patch.LivenessVerified = &verdict
		patch.LivenessSessionKey = updated.SessionKey
		patch.LivenessReviewStatus = review
	} else {
		patch.KYCCompleted = &completed
		patch.Verified = &verdict
		patch.KYCSessionKey = updated.SessionKey
		patch.KYCReviewStatus = review
	}
	if err := s.store.UpsertUserStatus(ctx, updated.UserID, patch); err != nil {
		return Session{}, err
	}

	if review == ReviewApproved || review == ReviewRejected {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindVerificationResult,
			Destination: updated.UserID,
			Body:        fmt.Sprintf("%s verification %s", kind, review),
		})
	}

	s.logger.Info("webhook processed",
		slog.String("kind", string(kind)),
		slog.String("external_ref", event.ExternalUserID),
		slog.String("review_status", string(review)),
	)
	return updated, nil
}
