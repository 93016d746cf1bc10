// Package postgres implements the messaging store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/proerror77/Nova-sub006/pkg/database"
	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/domain"
)

// MessageRepository is the PostgreSQL message store.
type MessageRepository struct {
	db database.DBTX
}

// NewMessageRepository creates a PostgreSQL-backed message repository.
func NewMessageRepository(db database.DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert persists one message. A duplicate message id is a conflict.
func (r *MessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Body, msg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict(fmt.Sprintf("message %s already exists", msg.ID))
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// History reads messages of a conversation newest-first, by keyset on message
// id when beforeID is set.
func (r *MessageRepository) History(ctx context.Context, conversationID, beforeID string, limit int) ([]domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = $1 AND ($2 = '' OR id < $2)
		ORDER BY id DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, conversationID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("query message history: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message history: %w", err)
	}
	return out, nil
}

// IsMember reports whether the user belongs to the conversation.
func (r *MessageRepository) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	var one int
	err := r.db.QueryRow(ctx,
		`SELECT 1 FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check conversation membership: %w", err)
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
