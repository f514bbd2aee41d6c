package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tripwise/tripwise-backend/internal/repository"
)

// ConversationRepository persists conversation sessions in Postgres.
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Load resumes an active session by session id and owner.
func (r *ConversationRepository) Load(ctx context.Context, sessionID, owner string) (*repository.ConversationSession, error) {
	var session repository.ConversationSession
	query := `
		SELECT * FROM conversation_sessions
		WHERE session_id = $1 AND owner = $2 AND is_active = TRUE`

	if err := r.db.GetContext(ctx, &session, query, sessionID, owner); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &session, nil
}

// Create starts a new session with a fresh unique token and empty state.
func (r *ConversationRepository) Create(ctx context.Context, owner string) (*repository.ConversationSession, error) {
	session := &repository.ConversationSession{
		SessionID: uuid.New().String(),
		Owner:     owner,
		State:     json.RawMessage(`{"requirements":{},"messages":[]}`),
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
		INSERT INTO conversation_sessions (session_id, owner, state, is_active, created_at, updated_at)
		VALUES (:session_id, :owner, :state, :is_active, :created_at, :updated_at)
		RETURNING id`

	rows, err := r.db.NamedQueryContext(ctx, query, session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&session.ID); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
	}
	return session, nil
}

// Save writes the session state back, advancing updated_at.
func (r *ConversationRepository) Save(ctx context.Context, session *repository.ConversationSession) error {
	session.UpdatedAt = time.Now()
	query := `
		UPDATE conversation_sessions
		SET state = :state, is_active = :is_active, updated_at = :updated_at
		WHERE session_id = :session_id`

	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's sessions ordered by last activity, most
// recent first.
func (r *ConversationRepository) ListByOwner(ctx context.Context, owner string) ([]*repository.ConversationSession, error) {
	var sessions []*repository.ConversationSession
	query := `
		SELECT * FROM conversation_sessions
		WHERE owner = $1 AND is_active = TRUE
		ORDER BY updated_at DESC`

	if err := r.db.SelectContext(ctx, &sessions, query, owner); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
