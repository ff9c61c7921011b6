package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	livenessCollection   = "liveness_sessions"
	kycCollection        = "kyc_sessions"
	userStatusCollection = "user_status"
)

// MongoStore implements Store on top of a MongoDB database.
type MongoStore struct {
	db  *mongo.Database
	now func() time.Time
}

// NewMongoStore builds a Mongo-backed session store.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, now: time.Now}
}

func (s *MongoStore) sessions(kind Kind) *mongo.Collection {
	if kind == KindLiveness {
		return s.db.Collection(livenessCollection)
	}
	return s.db.Collection(kycCollection)
}

// Insert stores a freshly created session document.
func (s *MongoStore) Insert(ctx context.Context, session Session) error {
	if _, err := s.sessions(session.Kind).InsertOne(ctx, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindByKey loads a session by its provider applicant identifier.
func (s *MongoStore) FindByKey(ctx context.Context, kind Kind, sessionKey string) (Session, error) {
	return s.findOne(ctx, kind, bson.M{"session_key": sessionKey}, nil)
}

// FindByExternalRef loads a session by the provider-facing reference used on
// webhook callbacks.
func (s *MongoStore) FindByExternalRef(ctx context.Context, kind Kind, externalRef string) (Session, error) {
	return s.findOne(ctx, kind, bson.M{"external_ref": externalRef}, nil)
}

// LatestByUser returns the user's most recently updated session of the kind.
func (s *MongoStore) LatestByUser(ctx context.Context, kind Kind, userID string) (Session, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	return s.findOne(ctx, kind, bson.M{"user_id": userID}, opts)
}

func (s *MongoStore) findOne(ctx context.Context, kind Kind, filter bson.M, opts *options.FindOneOptionsBuilder) (Session, error) {
	var session Session
	var err error
	if opts != nil {
		err = s.sessions(kind).FindOne(ctx, filter, opts).Decode(&session)
	} else {
		err = s.sessions(kind).FindOne(ctx, filter).Decode(&session)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

// Apply performs a conditional partial update in a single round trip. Fields
// land via $set and step tags via $addToSet, so a racing webhook and step
// call touching disjoint fields both survive.
func (s *MongoStore) Apply(ctx context.Context, kind Kind, sessionKey string, upd SessionUpdate) (Session, error) {
	filter := bson.M{"session_key": sessionKey}
	if upd.GuardTerminal {
		filter["phase"] = bson.M{"$nin": bson.A{PhaseCompleted, PhaseFailed}}
	}

	set := bson.M{"updated_at": s.now().UTC()}
	if upd.Phase != "" {
		set["phase"] = upd.Phase
	}
	if upd.ReviewStatus != "" {
		set["review_status"] = upd.ReviewStatus
	}
	if upd.Verified != nil {
		set["verified"] = *upd.Verified
	}
	if upd.IsLive != nil {
		set["is_live"] = *upd.IsLive
	}
	if upd.DocType != "" {
		set["doc_type"] = upd.DocType
	}
	if upd.Country != "" {
		set["country"] = upd.Country
	}

	update := bson.M{"$set": set}
	if len(upd.Steps) > 0 {
		update["$addToSet"] = bson.M{"steps_completed": bson.M{"$each": upd.Steps}}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session Session
	err := s.sessions(kind).FindOneAndUpdate(ctx, filter, update, opts).Decode(&session)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Session{}, fmt.Errorf("update session: %w", err)
	}
	if !upd.GuardTerminal {
		return Session{}, ErrSessionNotFound
	}

	// The guarded filter missed: either the session does not exist or it is
	// already terminal. Distinguish the two for the caller.
	current, ferr := s.FindByKey(ctx, kind, sessionKey)
	if ferr != nil {
		return Session{}, ferr
	}
	return current, ErrSessionClosed
}

// UpsertUserStatus incrementally maintains the per-user status cache.
func (s *MongoStore) UpsertUserStatus(ctx context.Context, userID string, patch UserStatusPatch) error {
	set := bson.M{"updated_at": s.now().UTC()}
	if patch.Verified != nil {
		set["verified"] = *patch.Verified
	}
	if patch.LivenessCompleted != nil {
		set["liveness_completed"] = *patch.LivenessCompleted
	}
	if patch.LivenessVerified != nil {
		set["liveness_verified"] = *patch.LivenessVerified
	}
	if patch.LivenessSessionKey != "" {
		set["liveness_session_key"] = patch.LivenessSessionKey
	}
	if patch.LivenessReviewStatus != "" {
		set["liveness_review_status"] = patch.LivenessReviewStatus
	}
	if patch.KYCCompleted != nil {
		set["kyc_completed"] = *patch.KYCCompleted
	}
	if patch.KYCSessionKey != "" {
		set["kyc_session_key"] = patch.KYCSessionKey
	}
	if patch.KYCReviewStatus != "" {
		set["kyc_review_status"] = patch.KYCReviewStatus
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"user_id": userID},
	}
	opts := options.UpdateOne().SetUpsert(true)
	if _, err := s.db.Collection(userStatusCollection).UpdateOne(ctx, bson.M{"user_id": userID}, update, opts); err != nil {
		return fmt.Errorf("upsert user status: %w", err)
	}
	return nil
}

// UserStatusByID reads the cached status projection for one user.
func (s *MongoStore) UserStatusByID(ctx context.Context, userID string) (UserStatus, error) {
	var status UserStatus
	err := s.db.Collection(userStatusCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&status)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return UserStatus{UserID: userID}, nil
		}
		return UserStatus{}, fmt.Errorf("find user status: %w", err)
	}
	return status, nil
}
