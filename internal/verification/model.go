package verification

import "time"

// Kind distinguishes the two verification flows.
type Kind string

const (
	KindLiveness Kind = "liveness"
	KindKYC      Kind = "kyc"
)

// Phase is the local state-machine position of a session. Phases only move
// forward along the order for their kind; Completed and Failed are sticky.
type Phase string

const (
	PhaseInitiated       Phase = "initiated"
	PhaseFrontSubmitted  Phase = "front_submitted"
	PhaseBackSubmitted   Phase = "back_submitted"
	PhaseSelfieSubmitted Phase = "selfie_submitted"
	PhaseCompleted       Phase = "completed"
	PhaseFailed          Phase = "failed"
)

var (
	livenessOrder = map[Phase]int{
		PhaseInitiated:       0,
		PhaseSelfieSubmitted: 1,
		PhaseCompleted:       2,
		PhaseFailed:          2,
	}
	kycOrder = map[Phase]int{
		PhaseInitiated:       0,
		PhaseFrontSubmitted:  1,
		PhaseBackSubmitted:   2,
		PhaseSelfieSubmitted: 3,
		PhaseCompleted:       4,
		PhaseFailed:          4,
	}
)

// Rank returns the position of p in the phase order for the given kind.
// Unknown phases rank below Initiated so they never win an advance.
func (p Phase) Rank(kind Kind) int {
	order := kycOrder
	if kind == KindLiveness {
		order = livenessOrder
	}
	rank, ok := order[p]
	if !ok {
		return -1
	}
	return rank
}

// Terminal reports whether the phase is sticky.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// ReviewStatus is the provider verdict, folded into a closed enumeration.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ParseReviewStatus maps a provider status string onto the closed set,
// defaulting to pending for anything unrecognised.
func ParseReviewStatus(s string) ReviewStatus {
	switch ReviewStatus(s) {
	case ReviewApproved:
		return ReviewApproved
	case ReviewRejected:
		return ReviewRejected
	default:
		return ReviewPending
	}
}

// Step tags recorded in Session.StepsCompleted as sub-steps succeed.
const (
	StepSelfie           = "selfie"
	StepDocumentFront    = "document_front"
	StepDocumentBack     = "document_back"
	StepLivenessComplete = "liveness_complete"
	StepKYCComplete      = "kyc_complete"
)

// Session tracks one liveness or KYC attempt. SessionKey is the provider's
// applicant identifier and is never generated locally.
type Session struct {
	SessionKey     string       `bson:"session_key" json:"session_key"`
	UserID         string       `bson:"user_id" json:"user_id"`
	ExternalRef    string       `bson:"external_ref" json:"external_ref"`
	Kind           Kind         `bson:"kind" json:"kind"`
	Phase          Phase        `bson:"phase" json:"phase"`
	StepsCompleted []string     `bson:"steps_completed" json:"steps_completed"`
	ReviewStatus   ReviewStatus `bson:"review_status,omitempty" json:"review_status,omitempty"`
	Verified       bool         `bson:"verified" json:"verified"`
	IsLive         bool         `bson:"is_live" json:"is_live"`
	DocType        string       `bson:"doc_type,omitempty" json:"doc_type,omitempty"`
	Country        string       `bson:"country,omitempty" json:"country,omitempty"`
	CreatedAt      time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `bson:"updated_at" json:"updated_at"`
}

// HasStep reports whether the step tag was already recorded.
func (s Session) HasStep(tag string) bool {
	for _, step := range s.StepsCompleted {
		if step == tag {
			return true
		}
	}
	return false
}

// UserStatus is an incrementally maintained projection of a user's latest
// liveness and KYC outcomes. It is a cache, not a source of truth.
type UserStatus struct {
	UserID               string       `bson:"user_id" json:"user_id"`
	Verified             bool         `bson:"verified" json:"verified"`
	LivenessCompleted    bool         `bson:"liveness_completed" json:"liveness_completed"`
	LivenessVerified     bool         `bson:"liveness_verified" json:"liveness_verified"`
	LivenessSessionKey   string       `bson:"liveness_session_key,omitempty" json:"liveness_session_key,omitempty"`
	LivenessReviewStatus ReviewStatus `bson:"liveness_review_status,omitempty" json:"liveness_review_status,omitempty"`
	KYCCompleted         bool         `bson:"kyc_completed" json:"kyc_completed"`
	KYCSessionKey        string       `bson:"kyc_session_key,omitempty" json:"kyc_session_key,omitempty"`
	KYCReviewStatus      ReviewStatus `bson:"kyc_review_status,omitempty" json:"kyc_review_status,omitempty"`
	UpdatedAt            time.Time    `bson:"updated_at" json:"updated_at"`
}

// ProgressFor maps a provider processing status to the progress value the
// clients expect while polling.
func ProgressFor(status string) int {
	switch status {
	case "processing":
		return 75
	case "approved":
		return 100
	default:
		return 50
	}
}
