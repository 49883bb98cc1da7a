package usecase

import (
	"context"
	"fmt"
	"strings"

	"seedbazaar/internal/adapter/dto"
	"seedbazaar/internal/domain/entity"
	"seedbazaar/internal/domain/repository"
	"seedbazaar/internal/infrastructure/ratelimit"
	ws "seedbazaar/internal/infrastructure/websocket"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/logger"
)

// Publisher sends frames on the push connection.
type Publisher interface {
	Publish(destination string, payload interface{}) error
	Connected() bool
}

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	publisher   Publisher
	store       *ReconciliationStore
	loop        *EventLoop
	rateLimiter *ratelimit.RateLimiter
	identity    Identity
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	publisher Publisher,
	store *ReconciliationStore,
	loop *EventLoop,
	rateLimiter *ratelimit.RateLimiter,
	identity Identity,
) *ChatUseCase {
	return &ChatUseCase{
		chatRepo:    chatRepo,
		publisher:   publisher,
		store:       store,
		loop:        loop,
		rateLimiter: rateLimiter,
		identity:    identity,
	}
}

type SendMessageInput struct {
	PartnerID   string
	PartnerName string
	Content     string
	ProductID   int64
}

func (uc *ChatUseCase) Conversations() []entity.ConversationSummary {
	return uc.store.Conversations()
}

// Messages returns the conversation with partnerID about productID (0 for a
// general chat).
func (uc *ChatUseCase) Messages(partnerID string, productID int64) ([]entity.ChatMessage, error) {
	me := uc.identity.UserID()
	if me == "" {
		return nil, errors.Unauthorized("No active session", entity.ErrNoSession)
	}
	return uc.store.Messages(entity.NewConversationKey(me, partnerID, productID)), nil
}

// Message looks a single message up on the backend and merges it.
func (uc *ChatUseCase) Message(ctx context.Context, id int64) (*entity.ChatMessage, error) {
	m, err := uc.chatRepo.MessageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := uc.loop.Do(ctx, func() error {
		uc.store.AddChatMessage(m.Conversation(), *m)
		return nil
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// SendMessage shows the message right away as a pending echo, publishes it
// and marks it sent. A failed publish removes the echo again.
func (uc *ChatUseCase) SendMessage(ctx context.Context, input SendMessageInput) (*entity.ChatMessage, error) {
	me := uc.identity.UserID()
	if me == "" {
		return nil, errors.Unauthorized("No active session", entity.ErrNoSession)
	}
	content := strings.TrimSpace(input.Content)
	if content == "" || input.PartnerID == "" {
		return nil, errors.BadRequest("Message needs a partner and content", nil)
	}
	if input.PartnerID == me {
		return nil, errors.BadRequest("Cannot message yourself", nil)
	}

	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(me, ratelimit.ActionSendMessage); !allowed {
			logger.Info("SendMessage rate limited: user %s must wait %v", me, wait)
			return nil, errors.TooManyRequests(fmt.Sprintf("Rate limit exceeded, retry in %s", wait))
		}
	}
	if !uc.publisher.Connected() {
		return nil, ws.ErrNotConnected
	}

	key := entity.NewConversationKey(me, input.PartnerID, input.ProductID)
	var echo entity.ChatMessage
	err := uc.loop.Do(ctx, func() error {
		echo = uc.store.BeginSend(key, entity.ChatMessage{
			SenderID:     me,
			ReceiverID:   input.PartnerID,
			ReceiverName: input.PartnerName,
			Content:      content,
			ProductID:    input.ProductID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := uc.publisher.Publish(ws.DestinationChatSend, dto.NewChatSendPayload(echo)); err != nil {
		if rbErr := uc.loop.Do(context.Background(), func() error {
			return uc.store.RollbackSend(key, echo.TempID)
		}); rbErr != nil {
			logger.Warn("Rollback of message %s: %v", echo.TempID, rbErr)
		}
		if errors.Is(err, errors.CodeNotConnected) {
			return nil, err
		}
		return nil, errors.SendFailed("Failed to send message", err)
	}

	err = uc.loop.Do(context.Background(), func() error {
		return uc.store.ConfirmSend(key, echo.TempID)
	})
	if err != nil {
		logger.Debug("Confirm of message %s: %v", echo.TempID, err)
	}
	if echo.Delivery == entity.DeliveryPending {
		echo.Delivery = entity.DeliverySent
	}
	return &echo, nil
}
