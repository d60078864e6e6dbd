package repository

import (
	"context"

	"github.com/arman-d/ChatterBack/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Insert(
	ctx context.Context,
	senderID int64,
	receiverID int64,
	text string,
	imageURL string,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (sender_id, receiver_id, text, image, pinned)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id, sender_id, receiver_id, text, image, pinned, created_at
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, senderID, receiverID, text, imageURL).Scan(
		&message.ID,
		&message.SenderID,
		&message.ReceiverID,
		&message.Text,
		&message.Image,
		&message.Pinned,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// FindConversation returns every message exchanged between the two users,
// in either direction, oldest first.
func (r *MessageRepository) FindConversation(
	ctx context.Context,
	userA int64,
	userB int64,
) ([]models.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, text, image, pinned, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.SenderID,
			&message.ReceiverID,
			&message.Text,
			&message.Image,
			&message.Pinned,
			&message.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *MessageRepository) SetPinned(
	ctx context.Context,
	messageID int64,
	pinned bool,
) (*models.Message, error) {
	query := `
		UPDATE messages
		SET pinned = $2
		WHERE id = $1
		RETURNING id, sender_id, receiver_id, text, image, pinned, created_at
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, messageID, pinned).Scan(
		&message.ID,
		&message.SenderID,
		&message.ReceiverID,
		&message.Text,
		&message.Image,
		&message.Pinned,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// TogglePinned flips the pinned flag in a single row update. Concurrent
// toggles for the same id serialize on the row lock, so no update is lost.
func (r *MessageRepository) TogglePinned(
	ctx context.Context,
	messageID int64,
) (*models.Message, error) {
	query := `
		UPDATE messages
		SET pinned = NOT pinned
		WHERE id = $1
		RETURNING id, sender_id, receiver_id, text, image, pinned, created_at
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, messageID).Scan(
		&message.ID,
		&message.SenderID,
		&message.ReceiverID,
		&message.Text,
		&message.Image,
		&message.Pinned,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}
