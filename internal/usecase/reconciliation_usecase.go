package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"seedbazaar/internal/domain/entity"
	"seedbazaar/internal/domain/repository"
	"seedbazaar/internal/infrastructure/metrics"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/logger"
)

// MergeOutcome tells the caller what a merge did to the store.
type MergeOutcome int

const (
	Unchanged MergeOutcome = iota
	Inserted
	Transitioned
	Updated
	Rejected
)

func (o MergeOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Transitioned:
		return "transitioned"
	case Updated:
		return "updated"
	case Rejected:
		return "rejected"
	}
	return "unchanged"
}

// Changed reports whether the outcome is new information for the badges.
func (o MergeOutcome) Changed() bool {
	return o == Inserted || o == Transitioned
}

// Identity yields the id of the signed-in user, empty without a session.
type Identity interface {
	UserID() string
}

// SnapshotResult counts what a snapshot merge did.
type SnapshotResult struct {
	Inserted     int `json:"inserted"`
	Transitioned int `json:"transitioned"`
	Updated      int `json:"updated"`
	Skipped      int `json:"skipped"`
}

type conversation struct {
	messages []*entity.ChatMessage
}

// ReconciliationStore holds the notifications and chat messages seen from
// both the push stream and REST snapshots. Every merge is idempotent on
// entity identity, and push and snapshot merges commute on the final state.
type ReconciliationStore struct {
	mu sync.RWMutex

	identity      Identity
	clearer       repository.NotificationClearer
	metrics       *metrics.Metrics
	echoWindow    time.Duration
	now           func() time.Time
	notifications map[int64]*entity.Notification
	tombstones    map[int64]struct{}
	conversations map[entity.ConversationKey]*conversation
	summaries     map[string]entity.ConversationSummary
	lastLocalID   int64
}

func NewReconciliationStore(identity Identity, clearer repository.NotificationClearer, echoWindow time.Duration, m *metrics.Metrics) *ReconciliationStore {
	if echoWindow <= 0 {
		echoWindow = 10 * time.Second
	}
	return &ReconciliationStore{
		identity:      identity,
		clearer:       clearer,
		metrics:       m,
		echoWindow:    echoWindow,
		now:           time.Now,
		notifications: make(map[int64]*entity.Notification),
		tombstones:    make(map[int64]struct{}),
		conversations: make(map[entity.ConversationKey]*conversation),
		summaries:     make(map[string]entity.ConversationSummary),
	}
}

// MergeFromPush applies a decoded push event. For notification events the
// stored copy is returned alongside the outcome.
func (s *ReconciliationStore) MergeFromPush(event entity.Event) (MergeOutcome, *entity.Notification, error) {
	switch ev := event.(type) {
	case entity.SellerRequestEvent:
		return s.mergePushNotification(ev.Notification)
	case entity.BuyerResponseEvent:
		return s.mergePushNotification(ev.Notification)
	case entity.ChatMessageEvent:
		m := ev.Message
		return s.AddChatMessage(m.Conversation(), m), nil, nil
	}
	return Rejected, nil, errors.BadRequest("unsupported event", nil)
}

func (s *ReconciliationStore) mergePushNotification(n entity.Notification) (MergeOutcome, *entity.Notification, error) {
	category, err := entity.CategoryFor(s.identity.UserID(), n.BuyerID, n.SellerID)
	if err != nil {
		s.metrics.Merge("push", Rejected.String())
		return Rejected, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dead := s.tombstones[n.ID]; dead {
		logger.LogMergeDrop("push", n.ID, "tombstoned")
		s.metrics.Merge("push", Rejected.String())
		return Rejected, nil, entity.ErrTombstoned
	}

	outcome := Unchanged
	existing, ok := s.notifications[n.ID]
	switch {
	case !ok:
		stored := n
		stored.Category = category
		stored.RespondedAt = copyTime(n.RespondedAt)
		s.notifications[n.ID] = &stored
		existing = &stored
		outcome = Inserted

	case existing.Status == entity.StatusPending && n.Status.Terminal():
		existing.Status = n.Status
		at := s.now()
		if n.RespondedAt != nil {
			at = *n.RespondedAt
		}
		existing.RespondedAt = &at
		existing.FillFrom(&n)
		outcome = Transitioned

	default:
		// redelivery or a stale status; only fill what is missing
		existing.FillFrom(&n)
	}

	s.metrics.Merge("push", outcome.String())
	out := *existing
	out.RespondedAt = copyTime(existing.RespondedAt)
	return outcome, &out, nil
}

// MergeFromSnapshot merges a REST list fetched for category. The backend
// wins on status except that nothing moves back to PENDING. Local entries
// missing from the list are kept.
func (s *ReconciliationStore) MergeFromSnapshot(category entity.Category, list []entity.Notification) SnapshotResult {
	var res SnapshotResult
	userID := s.identity.UserID()

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range list {
		n := list[i]

		derived, err := entity.CategoryFor(userID, n.BuyerID, n.SellerID)
		if err != nil || !category.Includes(derived) {
			logger.WithFields(map[string]interface{}{
				"id":       n.ID,
				"category": category,
				"derived":  derived,
			}).Warn("Skipping snapshot entry outside the requested category")
			res.Skipped++
			continue
		}
		if _, dead := s.tombstones[n.ID]; dead {
			logger.LogMergeDrop("snapshot", n.ID, "tombstoned")
			res.Skipped++
			continue
		}

		existing, ok := s.notifications[n.ID]
		switch {
		case !ok:
			stored := n
			stored.Category = derived
			stored.RespondedAt = copyTime(n.RespondedAt)
			s.notifications[n.ID] = &stored
			res.Inserted++
			s.metrics.Merge("snapshot", Inserted.String())
			continue

		case existing.Status == entity.StatusPending && n.Status.Terminal():
			existing.Status = n.Status
			existing.RespondedAt = copyTime(n.RespondedAt)
			res.Transitioned++
			s.metrics.Merge("snapshot", Transitioned.String())

		case existing.Status.Terminal() && n.Status.Terminal() && existing.Status != n.Status:
			existing.Status = n.Status
			if n.RespondedAt != nil {
				existing.RespondedAt = copyTime(n.RespondedAt)
			}
			res.Updated++
			s.metrics.Merge("snapshot", Updated.String())

		case existing.Status == n.Status:
			if n.RespondedAt != nil {
				existing.RespondedAt = copyTime(n.RespondedAt)
			}
			s.metrics.Merge("snapshot", Unchanged.String())

		default:
			logger.LogMergeDrop("snapshot", n.ID, "would revert a terminal status")
			s.metrics.Merge("snapshot", Unchanged.String())
		}

		// the backend copy wins on every field it carries
		existing.Overlay(&n)
		existing.Read = n.Read
		if !n.SentAt.IsZero() {
			existing.SentAt = n.SentAt
		}
	}

	return res
}

// ApplyResponse records a response the current user just sent to the
// backend. It is authoritative, so it may replace another terminal status.
func (s *ReconciliationStore) ApplyResponse(id int64, status entity.NotificationStatus, at time.Time) (MergeOutcome, error) {
	if !status.Terminal() {
		return Rejected, errors.BadRequest("Response must be ACCEPTED or REJECTED", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dead := s.tombstones[id]; dead {
		return Rejected, entity.ErrTombstoned
	}
	n, ok := s.notifications[id]
	if !ok {
		return Rejected, errors.NotFound("Notification", nil)
	}

	switch {
	case n.Status == status:
		return Unchanged, nil
	case n.Status == entity.StatusPending:
		n.Status = status
		n.RespondedAt = &at
		return Transitioned, nil
	}
	n.Status = status
	n.RespondedAt = &at
	return Updated, nil
}

// ClearRemote asks the backend to clear the notification with request id
// id. Local state is left alone; Tombstone applies the clear once the
// backend accepted it.
func (s *ReconciliationStore) ClearRemote(ctx context.Context, id int64) error {
	target := id
	s.mu.RLock()
	if n, ok := s.notifications[id]; ok {
		target = n.ClearID()
	}
	s.mu.RUnlock()

	if err := s.clearer.MarkCleared(ctx, target); err != nil {
		return errors.ClearFailed("Failed to clear notification", err)
	}
	return nil
}

func (s *ReconciliationStore) ClearAllRemote(ctx context.Context) error {
	if err := s.clearer.MarkClearedAll(ctx); err != nil {
		return errors.ClearFailed("Failed to clear notifications", err)
	}
	return nil
}

// Tombstone drops the notification and blocks it from coming back through
// any later merge.
func (s *ReconciliationStore) Tombstone(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.notifications, id)
	s.tombstones[id] = struct{}{}
}

func (s *ReconciliationStore) TombstoneAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.notifications {
		s.tombstones[id] = struct{}{}
	}
	s.notifications = make(map[int64]*entity.Notification)
}

func (s *ReconciliationStore) Tombstoned(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, dead := s.tombstones[id]
	return dead
}

// Get returns a copy of the active notification with id.
func (s *ReconciliationStore) Get(id int64) (entity.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return entity.Notification{}, false
	}
	out := *n
	out.RespondedAt = copyTime(n.RespondedAt)
	return out, true
}

// Active lists the notifications of category, newest first by effective
// time, ties broken by ascending id. The notifications category returns
// both sales and orders.
func (s *ReconciliationStore) Active(category entity.Category) []entity.Notification {
	s.mu.RLock()
	out := make([]entity.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if category.Includes(n.Category) {
			c := *n
			c.RespondedAt = copyTime(n.RespondedAt)
			out = append(out, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].EffectiveAt(), out[j].EffectiveAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AddChatMessage stores m under key. A confirmed copy replaces the local
// echo it belongs to instead of being added next to it.
func (s *ReconciliationStore) AddChatMessage(key entity.ConversationKey, m entity.ChatMessage) MergeOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := s.addChatLocked(key, m)
	s.metrics.Merge("chat", outcome.String())
	return outcome
}

func (s *ReconciliationStore) addChatLocked(key entity.ConversationKey, m entity.ChatMessage) MergeOutcome {
	conv := s.conversation(key)

	if m.ID > 0 {
		for _, existing := range conv.messages {
			if existing.ID == m.ID {
				if !existing.Confirmed() && m.Confirmed() {
					existing.Delivery = entity.DeliveryConfirmed
				}
				return Unchanged
			}
		}
	}

	if m.Confirmed() {
		if echo := s.findEcho(conv, m); echo != nil {
			tempID := echo.TempID
			*echo = m
			if echo.TempID == "" {
				echo.TempID = tempID
			}
			if echo.ID == 0 {
				echo.ID = s.nextLocalID()
			}
			sortMessages(conv.messages)
			s.touchSummary(*echo)
			return Updated
		}

		if m.ID <= 0 {
			for _, existing := range conv.messages {
				if existing.Confirmed() && sameText(existing, &m) && existing.Timestamp.Equal(m.Timestamp) {
					return Unchanged
				}
			}
		}
	}

	if m.ID == 0 {
		m.ID = s.nextLocalID()
	}
	stored := m
	conv.messages = append(conv.messages, &stored)
	sortMessages(conv.messages)
	s.touchSummary(stored)
	return Inserted
}

// findEcho returns the unconfirmed local message m confirms: the same temp
// id, or the same sender, receiver and content within the echo window.
func (s *ReconciliationStore) findEcho(conv *conversation, m entity.ChatMessage) *entity.ChatMessage {
	for _, existing := range conv.messages {
		if !existing.Local() || existing.Confirmed() {
			continue
		}
		if m.TempID != "" && existing.TempID == m.TempID {
			return existing
		}
	}
	for _, existing := range conv.messages {
		if !existing.Local() || existing.Confirmed() || !sameText(existing, &m) {
			continue
		}
		d := m.Timestamp.Sub(existing.Timestamp)
		if d < 0 {
			d = -d
		}
		if d <= s.echoWindow {
			return existing
		}
	}
	return nil
}

func sameText(a, b *entity.ChatMessage) bool {
	return a.SenderID == b.SenderID && a.ReceiverID == b.ReceiverID && a.Content == b.Content
}

// BeginSend inserts an optimistic echo of m and returns it with its temp id
// and local id filled in.
func (s *ReconciliationStore) BeginSend(key entity.ConversationKey, m entity.ChatMessage) entity.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextLocalID()
	m.TempID = uuid.NewString()
	m.Delivery = entity.DeliveryPending
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}

	conv := s.conversation(key)
	stored := m
	conv.messages = append(conv.messages, &stored)
	sortMessages(conv.messages)
	s.touchSummary(stored)
	return m
}

// ConfirmSend marks the echo as handed to the transport. It is a no-op when
// the backend copy already replaced the echo.
func (s *ReconciliationStore) ConfirmSend(key entity.ConversationKey, tempID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findTemp(key, tempID)
	if m == nil {
		return entity.ErrMessageNotPending
	}
	if m.Delivery == entity.DeliveryPending {
		m.Delivery = entity.DeliverySent
	}
	return nil
}

// RollbackSend removes an echo whose send failed.
func (s *ReconciliationStore) RollbackSend(key entity.ConversationKey, tempID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[key]
	if !ok {
		return entity.ErrMessageNotPending
	}
	for i, m := range conv.messages {
		if m.TempID == tempID && !m.Confirmed() {
			conv.messages = append(conv.messages[:i], conv.messages[i+1:]...)
			return nil
		}
	}
	return entity.ErrMessageNotPending
}

func (s *ReconciliationStore) findTemp(key entity.ConversationKey, tempID string) *entity.ChatMessage {
	conv, ok := s.conversations[key]
	if !ok {
		return nil
	}
	for _, m := range conv.messages {
		if m.TempID == tempID {
			return m
		}
	}
	return nil
}

// MergeChatHistory merges a fetched history page and returns the number of
// messages that were new.
func (s *ReconciliationStore) MergeChatHistory(key entity.ConversationKey, messages []entity.ChatMessage) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, m := range messages {
		outcome := s.addChatLocked(key, m)
		s.metrics.Merge("history", outcome.String())
		if outcome == Inserted {
			inserted++
		}
	}
	return inserted
}

// MergeConversations merges summaries by partner; the newer last message
// wins and blanks are filled from the older entry.
func (s *ReconciliationStore) MergeConversations(list []entity.ConversationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range list {
		s.mergeSummary(c)
	}
}

func (s *ReconciliationStore) mergeSummary(c entity.ConversationSummary) {
	existing, ok := s.summaries[c.PartnerID]
	if !ok {
		s.summaries[c.PartnerID] = c
		return
	}

	newer, older := c, existing
	if existing.LastMessageTime.After(c.LastMessageTime) {
		newer, older = existing, c
	}
	if newer.PartnerName == "" {
		newer.PartnerName = older.PartnerName
	}
	if newer.ProfileImageURL == "" {
		newer.ProfileImageURL = older.ProfileImageURL
	}
	s.summaries[c.PartnerID] = newer
}

func (s *ReconciliationStore) touchSummary(m entity.ChatMessage) {
	me := s.identity.UserID()
	if me == "" || !m.Conversation().Has(me) {
		return
	}
	partnerID, partnerName := m.Partner(me)
	s.mergeSummary(entity.ConversationSummary{
		PartnerID:       partnerID,
		PartnerName:     partnerName,
		LastMessage:     m.Content,
		LastMessageTime: m.Timestamp,
	})
}

// Conversations lists the summaries, most recent first.
func (s *ReconciliationStore) Conversations() []entity.ConversationSummary {
	s.mu.RLock()
	out := make([]entity.ConversationSummary, 0, len(s.summaries))
	for _, c := range s.summaries {
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageTime.Equal(out[j].LastMessageTime) {
			return out[i].LastMessageTime.After(out[j].LastMessageTime)
		}
		return out[i].PartnerID < out[j].PartnerID
	})
	return out
}

// Messages returns the conversation in display order.
func (s *ReconciliationStore) Messages(key entity.ConversationKey) []entity.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[key]
	if !ok {
		return []entity.ChatMessage{}
	}
	out := make([]entity.ChatMessage, len(conv.messages))
	for i, m := range conv.messages {
		out[i] = *m
	}
	return out
}

// ChatMessages returns every stored message of every conversation.
func (s *ReconciliationStore) ChatMessages() []entity.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.ChatMessage
	for _, conv := range s.conversations {
		for _, m := range conv.messages {
			out = append(out, *m)
		}
	}
	return out
}

// Reset drops everything, tombstones included. Used on logout.
func (s *ReconciliationStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = make(map[int64]*entity.Notification)
	s.tombstones = make(map[int64]struct{})
	s.conversations = make(map[entity.ConversationKey]*conversation)
	s.summaries = make(map[string]entity.ConversationSummary)
}

func (s *ReconciliationStore) conversation(key entity.ConversationKey) *conversation {
	conv, ok := s.conversations[key]
	if !ok {
		conv = &conversation{}
		s.conversations[key] = conv
	}
	return conv
}

// nextLocalID hands out negative ids so they never collide with the
// backend's positive ones.
func (s *ReconciliationStore) nextLocalID() int64 {
	s.lastLocalID--
	return s.lastLocalID
}

func sortMessages(msgs []*entity.ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
