package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"seedbazaar/internal/adapter/dto"
	"seedbazaar/internal/domain/entity"
	"seedbazaar/internal/domain/repository"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/logger"
)

const chatBase = "/web/api/v1/chat"

type restChatRepository struct {
	client *RestClient
	now    func() time.Time
}

func NewRestChatRepository(client *RestClient) repository.ChatRepository {
	return &restChatRepository{
		client: client,
		now:    time.Now,
	}
}

func (r *restChatRepository) History(ctx context.Context, partnerID string) ([]entity.ChatMessage, error) {
	var payloads []dto.ChatMessagePayload
	path := chatBase + "/history/" + url.PathEscape(partnerID)
	if err := r.client.do(ctx, "chat_history", http.MethodGet, path, nil, &payloads); err != nil {
		return nil, err
	}

	now := r.now()
	messages := make([]entity.ChatMessage, 0, len(payloads))
	for _, p := range payloads {
		m, err := p.ToEntity(now)
		if err != nil {
			logger.Warn("Skipping malformed chat message %d: %v", p.ID, err)
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (r *restChatRepository) Conversations(ctx context.Context) ([]entity.ConversationSummary, error) {
	var payloads []dto.ConversationPayload
	if err := r.client.do(ctx, "chat_conversations", http.MethodGet, chatBase+"/conversations", nil, &payloads); err != nil {
		return nil, err
	}

	summaries := make([]entity.ConversationSummary, 0, len(payloads))
	for _, p := range payloads {
		s, err := p.ToEntity()
		if err != nil {
			logger.Warn("Skipping malformed conversation %q: %v", p.PartnerID, err)
			continue
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (r *restChatRepository) MessageByID(ctx context.Context, id int64) (*entity.ChatMessage, error) {
	var payload *dto.ChatMessagePayload
	path := fmt.Sprintf("%s/message/%d", chatBase, id)
	if err := r.client.do(ctx, "chat_message", http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.NotFound("Message", nil)
	}

	m, err := payload.ToEntity(r.now())
	if err != nil {
		return nil, err
	}
	return &m, nil
}
