package verification

import "context"

// SessionUpdate is a partial write against one session. Only non-zero fields
// are touched, so concurrent updates to disjoint fields cannot clobber each
// other. When GuardTerminal is set the write is refused (ErrSessionClosed)
// if the session is already in a terminal phase.
type SessionUpdate struct {
	Phase         Phase
	ReviewStatus  ReviewStatus
	Verified      *bool
	IsLive        *bool
	Steps         []string
	DocType       string
	Country       string
	GuardTerminal bool
}

// UserStatusPatch is a partial upsert against the user status cache.
type UserStatusPatch struct {
	Verified             *bool
	LivenessCompleted    *bool
	LivenessVerified     *bool
	LivenessSessionKey   string
	LivenessReviewStatus ReviewStatus
	KYCCompleted         *bool
	KYCSessionKey        string
	KYCReviewStatus      ReviewStatus
}

// Store persists sessions and the user status cache.
type Store interface {
	Insert(ctx context.Context, session Session) error
	FindByKey(ctx context.Context, kind Kind, sessionKey string) (Session, error)
	FindByExternalRef(ctx context.Context, kind Kind, externalRef string) (Session, error)
	LatestByUser(ctx context.Context, kind Kind, userID string) (Session, error)

	// Apply performs an atomic partial update keyed by session key and
	// returns the resulting session.
	Apply(ctx context.Context, kind Kind, sessionKey string, upd SessionUpdate) (Session, error)

	UpsertUserStatus(ctx context.Context, userID string, patch UserStatusPatch) error
	UserStatusByID(ctx context.Context, userID string) (UserStatus, error)
}
