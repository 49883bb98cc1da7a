package repository

import (
	"context"

	"seedbazaar/internal/domain/entity"
)

type ChatRepository interface {
	History(ctx context.Context, partnerID string) ([]entity.ChatMessage, error)
	Conversations(ctx context.Context) ([]entity.ConversationSummary, error)
	MessageByID(ctx context.Context, id int64) (*entity.ChatMessage, error)
}
