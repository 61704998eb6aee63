// Package mongo provides a MongoDB-backed implementation of session.Store
// for durability across restarts, suitable for production deployments.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/google/uuid"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/session"
)

// Store is a MongoDB implementation of session.Store. Sessions live in one
// collection, messages in another; both are keyed by session id so a
// durable append is a single insert and never requires a read-modify-write
// of the parent session document.
type Store struct {
	sessions *mongo.Collection
	messages *mongo.Collection
}

var _ session.Store = (*Store)(nil)

// New creates a MongoDB-backed store using the given collections. Callers
// are expected to have already established the connection and, ideally,
// created a compound index on {session_id: 1, timestamp: 1} for messages.
func New(sessions, messages *mongo.Collection) *Store {
	return &Store{sessions: sessions, messages: messages}
}

type sessionDocument struct {
	SessionID string `bson:"_id"`
	AgentSlug string `bson:"agent_slug"`
	UserID    string `bson:"user_id"`
	Title     string `bson:"title"`
	IsActive  bool   `bson:"is_active"`
	CreatedAt int64  `bson:"created_at"`
	UpdatedAt int64  `bson:"updated_at"`
}

func toSessionDoc(s apitypes.Session) sessionDocument {
	return sessionDocument{
		SessionID: s.SessionID,
		AgentSlug: s.AgentSlug,
		UserID:    s.UserID,
		Title:     s.Title,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt.UnixMilli(),
		UpdatedAt: s.UpdatedAt.UnixMilli(),
	}
}

func fromSessionDoc(d sessionDocument) apitypes.Session {
	return apitypes.Session{
		SessionID: d.SessionID,
		AgentSlug: d.AgentSlug,
		UserID:    d.UserID,
		Title:     d.Title,
		IsActive:  d.IsActive,
		CreatedAt: time.UnixMilli(d.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(d.UpdatedAt).UTC(),
	}
}

type messageDocument struct {
	SessionID   string         `bson:"session_id"`
	Role        string         `bson:"role"`
	Content     string         `bson:"content"`
	Attachments []attachDoc    `bson:"attachments,omitempty"`
	Metadata    map[string]any `bson:"metadata,omitempty"`
	Timestamp   int64          `bson:"timestamp"`
}

type attachDoc struct {
	Name        string `bson:"name"`
	ContentType string `bson:"content_type"`
	StorageKey  string `bson:"storage_key"`
}

func (s *Store) CreateSession(ctx context.Context, agentSlug, userID, title string) (apitypes.Session, error) {
	return s.createSession(ctx, uuid.NewString(), agentSlug, userID, title)
}

func (s *Store) CreateSessionWithID(ctx context.Context, sessionID, agentSlug, userID, title string) (apitypes.Session, error) {
	existing, err := s.GetSession(ctx, sessionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return apitypes.Session{}, err
	}
	return s.createSession(ctx, sessionID, agentSlug, userID, title)
}

func (s *Store) createSession(ctx context.Context, sessionID, agentSlug, userID, title string) (apitypes.Session, error) {
	if title == "" {
		title = session.DefaultTitle("en", time.Now())
	}
	now := time.Now()
	sess := apitypes.Session{
		SessionID: sessionID,
		AgentSlug: agentSlug,
		UserID:    userID,
		Title:     title,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.sessions.InsertOne(ctx, toSessionDoc(sess)); err != nil {
		return apitypes.Session{}, fmt.Errorf("mongodb create session %q: %w", sessionID, err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (apitypes.Session, error) {
	var doc sessionDocument
	err := s.sessions.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apitypes.Session{}, session.ErrNotFound
		}
		return apitypes.Session{}, fmt.Errorf("mongodb get session %q: %w", sessionID, err)
	}
	return fromSessionDoc(doc), nil
}

func (s *Store) ListSessions(ctx context.Context, agentSlug, userID string, limit, offset int) ([]apitypes.Session, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.sessions.Find(ctx, bson.M{"agent_slug": agentSlug, "user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb list sessions: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]apitypes.Session, 0)
	for cur.Next(ctx) {
		var doc sessionDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb decode session: %w", err)
		}
		out = append(out, fromSessionDoc(doc))
	}
	return out, cur.Err()
}

func (s *Store) AppendMessage(ctx context.Context, sessionID string, role apitypes.MessageRole, content string, attachments []apitypes.Attachment, metadata map[string]any) (apitypes.SessionMessage, error) {
	now := time.Now()
	attDocs := make([]attachDoc, 0, len(attachments))
	for _, a := range attachments {
		attDocs = append(attDocs, attachDoc{Name: a.Name, ContentType: a.ContentType, StorageKey: a.StorageKey})
	}
	doc := messageDocument{
		SessionID:   sessionID,
		Role:        string(role),
		Content:     content,
		Attachments: attDocs,
		Metadata:    metadata,
		Timestamp:   now.UnixMilli(),
	}
	res, err := s.messages.InsertOne(ctx, doc)
	if err != nil {
		return apitypes.SessionMessage{}, fmt.Errorf("mongodb append message to %q: %w", sessionID, err)
	}
	if _, err := s.sessions.UpdateOne(ctx, bson.M{"_id": sessionID}, bson.M{"$set": bson.M{"updated_at": now.UnixMilli()}}); err != nil {
		return apitypes.SessionMessage{}, fmt.Errorf("mongodb touch session %q: %w", sessionID, err)
	}

	msg := apitypes.SessionMessage{
		SessionID:   sessionID,
		Role:        role,
		Content:     content,
		Attachments: attachments,
		Metadata:    metadata,
		Timestamp:   now,
	}
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		msg.ID = int64(oid.Timestamp().UnixMilli())
	}
	return msg, nil
}

func (s *Store) GetMessages(ctx context.Context, sessionID string, limit int) ([]apitypes.SessionMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb get messages for %q: %w", sessionID, err)
	}
	defer cur.Close(ctx)

	out := make([]apitypes.SessionMessage, 0)
	for cur.Next(ctx) {
		var doc messageDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb decode message: %w", err)
		}
		atts := make([]apitypes.Attachment, 0, len(doc.Attachments))
		for _, a := range doc.Attachments {
			atts = append(atts, apitypes.Attachment{Name: a.Name, ContentType: a.ContentType, StorageKey: a.StorageKey})
		}
		out = append(out, apitypes.SessionMessage{
			SessionID:   doc.SessionID,
			Role:        apitypes.MessageRole(doc.Role),
			Content:     doc.Content,
			Attachments: atts,
			Metadata:    doc.Metadata,
			Timestamp:   time.UnixMilli(doc.Timestamp).UTC(),
		})
	}
	return out, cur.Err()
}

func (s *Store) ClearMessages(ctx context.Context, sessionID string) error {
	if _, err := s.messages.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("mongodb clear messages for %q: %w", sessionID, err)
	}
	return nil
}

func (s *Store) CloseSession(ctx context.Context, sessionID string) error {
	res, err := s.sessions.UpdateOne(ctx, bson.M{"_id": sessionID}, bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now().UnixMilli()}})
	if err != nil {
		return fmt.Errorf("mongodb close session %q: %w", sessionID, err)
	}
	if res.MatchedCount == 0 {
		return session.ErrNotFound
	}
	return nil
}
