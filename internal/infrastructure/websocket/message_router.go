package websocket

import (
	"encoding/json"
	"strings"
	"time"

	"seedbazaar/internal/adapter/dto"
	"seedbazaar/internal/domain/entity"
	"seedbazaar/internal/infrastructure/metrics"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/logger"
)

const (
	topicRequestsPrefix      = "/topic/requests/"
	topicRequestStatusPrefix = "/topic/request-status/"
	topicMessagesPrefix      = "/topic/messages/"

	// DestinationChatSend is where outgoing chat messages are published.
	DestinationChatSend = "/app/chat.send"
)

func TopicRequests(userID string) string      { return topicRequestsPrefix + userID }
func TopicRequestStatus(userID string) string { return topicRequestStatusPrefix + userID }
func TopicMessages(userID string) string      { return topicMessagesPrefix + userID }

// UserTopics are the three per-user topics subscribed on every session.
func UserTopics(userID string) []string {
	return []string{TopicRequests(userID), TopicRequestStatus(userID), TopicMessages(userID)}
}

// Classify maps a topic to the event kind it carries.
func Classify(topic string) (entity.EventKind, bool) {
	switch {
	case strings.HasPrefix(topic, topicRequestsPrefix):
		return entity.EventSellerRequest, true
	case strings.HasPrefix(topic, topicRequestStatusPrefix):
		return entity.EventBuyerResponse, true
	case strings.HasPrefix(topic, topicMessagesPrefix):
		return entity.EventChatMessage, true
	}
	return "", false
}

// EventSink receives decoded events.
type EventSink interface {
	HandleEvent(event entity.Event)
}

// MessageRouter turns raw frames into typed events. Frames that cannot be
// decoded are logged and dropped; they never reach the sink.
type MessageRouter struct {
	sink    EventSink
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewMessageRouter(sink EventSink, m *metrics.Metrics) *MessageRouter {
	return &MessageRouter{
		sink:    sink,
		metrics: m,
		now:     time.Now,
	}
}

// Decode classifies and decodes body received on topic.
func (r *MessageRouter) Decode(topic string, body []byte) (entity.Event, error) {
	kind, ok := Classify(topic)
	if !ok {
		return nil, errors.Decode("unknown topic "+topic, nil)
	}

	switch kind {
	case entity.EventSellerRequest, entity.EventBuyerResponse:
		var p dto.NotificationPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, errors.Decode("malformed notification frame", err)
		}
		n, err := p.ToEntity(r.now())
		if err != nil {
			return nil, err
		}
		if kind == entity.EventSellerRequest {
			return entity.SellerRequestEvent{Notification: n}, nil
		}
		return entity.BuyerResponseEvent{Notification: n}, nil

	default:
		var p dto.ChatMessagePayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, errors.Decode("malformed chat frame", err)
		}
		m, err := p.ToEntity(r.now())
		if err != nil {
			return nil, err
		}
		return entity.ChatMessageEvent{Message: m}, nil
	}
}

// Handle is the subscription handler for all user topics.
func (r *MessageRouter) Handle(msg Message) {
	event, err := r.Decode(msg.Topic, msg.Body)
	if err != nil {
		r.metrics.FrameDropped("decode")
		logger.WithFields(map[string]interface{}{
			"topic": msg.Topic,
		}).Warnf("Dropping push frame: %v", err)
		return
	}

	r.metrics.FrameReceived(string(event.Kind()))
	r.sink.HandleEvent(event)
}
