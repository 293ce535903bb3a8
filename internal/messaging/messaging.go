// Package messaging threads one-to-one voice messages into conversations.
package messaging

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
)

// ConversationID is the two participant ids in ascending order joined by "_".
func ConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// Partner returns the other participant of chatID, or "" if id is not one.
func Partner(chatID, id string) string {
	a, b, ok := strings.Cut(chatID, "_")
	switch {
	case !ok:
		return ""
	case a == id:
		return b
	case b == id:
		return a
	default:
		return ""
	}
}

// Store is a session's message cache backed by the messages collection.
type Store struct {
	docs repository.DocumentRepository
	now  func() time.Time

	mu       sync.RWMutex
	messages []*model.Message
	seen     map[string]struct{}
	entropy  *ulid.MonotonicEntropy
}

func NewStore(docs repository.DocumentRepository) *Store {
	return &Store{
		docs:    docs,
		now:     time.Now,
		seen:    map[string]struct{}{},
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Send persists a new message from senderID to recipientID and appends it
// to the cache.
func (s *Store) Send(ctx context.Context, senderID, recipientID, voiceURL string) (*model.Message, error) {
	if senderID == "" {
		return nil, apperr.ErrNotAuthenticated
	}
	if recipientID == "" || voiceURL == "" {
		return nil, fmt.Errorf("recipient and voice payload are required: %w", apperr.ErrInvalidInput)
	}

	now := s.now().UTC()
	s.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), s.entropy)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	msg := &model.Message{
		ID:          id.String(),
		ChatID:      ConversationID(senderID, recipientID),
		SenderID:    senderID,
		RecipientID: recipientID,
		VoiceURL:    voiceURL,
		CreatedAt:   now,
		IsRead:      false,
	}
	if err := s.docs.SetPartitioned(ctx, model.CollectionMessages, msg.ID, msg.ChatID, msg); err != nil {
		return nil, &apperr.PersistenceError{Op: "send", Collection: model.CollectionMessages, ID: msg.ID, Err: err}
	}

	s.mu.Lock()
	s.addLocked(msg)
	s.mu.Unlock()
	c := *msg
	return &c, nil
}

func (s *Store) addLocked(msg *model.Message) bool {
	if _, dup := s.seen[msg.ID]; dup {
		return false
	}
	s.seen[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg)
	return true
}

// Messages returns the cached conversation between caller and partner,
// oldest first.
func (s *Store) Messages(callerID, partnerID string) []model.Message {
	chatID := ConversationID(callerID, partnerID)

	s.mu.RLock()
	out := make([]model.Message, 0)
	for _, m := range s.messages {
		if m.ChatID == chatID {
			out = append(out, *m)
		}
	}
	s.mu.RUnlock()

	sortMessages(out)
	return out
}

func sortMessages(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// Load fills the cache with the stored conversation and returns it.
func (s *Store) Load(ctx context.Context, callerID, partnerID string) ([]model.Message, error) {
	if callerID == "" {
		return nil, apperr.ErrNotAuthenticated
	}
	chatID := ConversationID(callerID, partnerID)
	raws, err := s.docs.ListPartition(ctx, model.CollectionMessages, chatID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", chatID, err)
	}
	msgs, err := repository.DecodeAll[model.Message](raws)
	if err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", chatID, err)
	}

	s.mu.Lock()
	for _, m := range msgs {
		s.addLocked(m)
	}
	s.mu.Unlock()
	return s.Messages(callerID, partnerID), nil
}

// Conversations lists the caller's cached chats, most recent first.
func (s *Store) Conversations(callerID string) []model.Chat {
	s.mu.RLock()
	byChat := map[string]*model.Chat{}
	for _, m := range s.messages {
		partner := Partner(m.ChatID, callerID)
		if partner == "" {
			continue
		}
		c, ok := byChat[m.ChatID]
		if !ok {
			c = &model.Chat{ID: m.ChatID, PartnerID: partner, ParticipantIDs: participants(m.ChatID)}
			byChat[m.ChatID] = c
		}
		if c.LastMessage == nil || later(m, c.LastMessage) {
			last := *m
			c.LastMessage = &last
			c.UpdatedAt = m.CreatedAt
		}
		if m.RecipientID == callerID && !m.IsRead {
			c.UnreadCount++
		}
	}
	s.mu.RUnlock()

	out := make([]model.Chat, 0, len(byChat))
	for _, c := range byChat {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func later(a, b *model.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func participants(chatID string) []string {
	a, b, _ := strings.Cut(chatID, "_")
	return []string{a, b}
}

// Reset drops every cached message.
func (s *Store) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.seen = map[string]struct{}{}
	s.mu.Unlock()
}
