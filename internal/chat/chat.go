// ABOUTME: Direct conversations between user pairs, their messages and read markers
// ABOUTME: Unread state is derived from per-user last-read watermarks on every call

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/query"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/store"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/validation"
)

// ErrNotFound is returned when a conversation does not exist
var ErrNotFound = errors.New("conversation not found")

// ErrUnauthorized is returned when the actor is not a participant of the conversation
var ErrUnauthorized = errors.New("not a participant")

// DefaultMaxMessageLength caps message content, in runes
const DefaultMaxMessageLength = 4000

// UnknownPartner is shown when a partner id no longer resolves to a user
const UnknownPartner = "?"

// Chat is a conversation between two users, stored in canonical order
type Chat struct {
	ID        string `json:"id"`
	User1ID   string `json:"user1_id"`
	User2ID   string `json:"user2_id"`
	CreatedAt string `json:"created_at"`
}

// HasParticipant reports whether userID is one of the two members
func (c *Chat) HasParticipant(userID string) bool {
	return userID != "" && (c.User1ID == userID || c.User2ID == userID)
}

// Partner returns the other member from userID's point of view
func (c *Chat) Partner(userID string) string {
	if c.User2ID == userID {
		return c.User1ID
	}
	return c.User2ID
}

func chatFromRecord(r store.Record) *Chat {
	return &Chat{
		ID:        r.Get("id"),
		User1ID:   r.Get("user1_id"),
		User2ID:   r.Get("user2_id"),
		CreatedAt: r.Get("created_at"),
	}
}

// Message is one line of a conversation
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func messageFromRecord(r store.Record) Message {
	return Message{
		ID:        r.Get("id"),
		ChatID:    r.Get("chat_id"),
		SenderID:  r.Get("sender_id"),
		Content:   r.Get("content"),
		CreatedAt: r.Get("created_at"),
	}
}

// Summary is one entry of a user's conversation list
type Summary struct {
	ID        string
	PartnerID string
	Partner   string
	CreatedAt string
	Unread    bool
}

// UserLookup resolves user ids to usernames
type UserLookup interface {
	Usernames(ctx context.Context, ids []string) (map[string]string, error)
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source for created_at and read markers
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxMessageLength sets the content cap; longer messages are truncated
func WithMaxMessageLength(n int) Option {
	return func(s *Service) { s.maxMessageLen = n }
}

// Service manages conversations over the chats, messages and chat_reads tables.
// Existence checks run before inserts without locking, so concurrent callers
// can create duplicate conversations or read markers.
type Service struct {
	store         store.RecordStore
	logger        *slog.Logger
	now           func() time.Time
	maxMessageLen int
}

// NewService creates a chat service
func NewService(s store.RecordStore, opts ...Option) *Service {
	svc := &Service{
		store:         s,
		logger:        slog.Default().With("component", "chat"),
		now:           time.Now,
		maxMessageLen: DefaultMaxMessageLength,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// canonicalPair orders two ids so the pair is independent of argument order
func canonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// GetOrCreateChat returns the conversation between a and b, creating it when absent
func (s *Service) GetOrCreateChat(ctx context.Context, a, b string) (*Chat, error) {
	if a == "" || b == "" {
		return nil, validation.New("user", "chat.user_required")
	}
	if a == b {
		return nil, validation.New("user", "chat.self_chat")
	}
	u1, u2 := canonicalPair(a, b)

	records, err := s.store.ScanAll(ctx, store.TableChats)
	if err != nil {
		return nil, fmt.Errorf("scanning chats: %w", err)
	}
	for _, r := range records {
		x, y := canonicalPair(r.Get("user1_id"), r.Get("user2_id"))
		if x == u1 && y == u2 {
			return chatFromRecord(r), nil
		}
	}

	c := &Chat{
		ID:        uuid.New().String(),
		User1ID:   u1,
		User2ID:   u2,
		CreatedAt: store.FormatTime(s.now()),
	}
	err = s.store.Append(ctx, store.TableChats, map[string]string{
		"id":         c.ID,
		"user1_id":   c.User1ID,
		"user2_id":   c.User2ID,
		"created_at": c.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}

	s.logger.Info("chat created", "chat_id", c.ID)
	return c, nil
}

// ListChatsForUser returns the conversations userID belongs to, newest first
func (s *Service) ListChatsForUser(ctx context.Context, userID string) ([]*Chat, error) {
	records, err := s.store.ScanAll(ctx, store.TableChats)
	if err != nil {
		return nil, fmt.Errorf("scanning chats: %w", err)
	}

	mine := query.Filter(records, func(r store.Record) bool {
		return r.Get("user1_id") == userID || r.Get("user2_id") == userID
	})
	query.SortByTimeDesc(mine, "created_at")

	chats := make([]*Chat, len(mine))
	for i, r := range mine {
		chats[i] = chatFromRecord(r)
	}
	return chats, nil
}

// GetChat returns a conversation by id
func (s *Service) GetChat(ctx context.Context, id string) (*Chat, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	records, err := s.store.ScanAll(ctx, store.TableChats)
	if err != nil {
		return nil, fmt.Errorf("scanning chats: %w", err)
	}
	r, ok := query.First(records, query.Equals("id", id))
	if !ok {
		return nil, ErrNotFound
	}
	return chatFromRecord(r), nil
}

// RequireParticipant returns the conversation when userID belongs to it
func (s *Service) RequireParticipant(ctx context.Context, chatID, userID string) (*Chat, error) {
	c, err := s.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, ErrUnauthorized
	}
	return c, nil
}

// AddMessage appends a message. Content is trimmed and truncated to the
// configured maximum; empty content is rejected.
func (s *Service) AddMessage(ctx context.Context, chatID, senderID, content string) (*Message, error) {
	content = validation.TrimAndLimit(content, s.maxMessageLen)
	if content == "" {
		return nil, validation.New("content", "chat.empty_message")
	}

	m := &Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: store.FormatTime(s.now()),
	}
	err := s.store.Append(ctx, store.TableMessages, map[string]string{
		"id":         m.ID,
		"chat_id":    m.ChatID,
		"sender_id":  m.SenderID,
		"content":    m.Content,
		"created_at": m.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}

	s.logger.Debug("message added", "chat_id", chatID, "message_id", m.ID)
	return m, nil
}

// ListMessages returns the messages of a conversation in ascending time order.
// A non-empty since keeps only messages created strictly after it.
func (s *Service) ListMessages(ctx context.Context, chatID, since string) ([]Message, error) {
	records, err := s.store.ScanAll(ctx, store.TableMessages)
	if err != nil {
		return nil, fmt.Errorf("scanning messages: %w", err)
	}

	matched := query.Filter(records,
		query.Equals("chat_id", chatID),
		query.After("created_at", since),
	)
	query.SortByTimeAsc(matched, "created_at")

	msgs := make([]Message, len(matched))
	for i, r := range matched {
		msgs[i] = messageFromRecord(r)
	}
	return msgs, nil
}

// GetLastRead returns the read marker of userID in chatID, or "" when none exists
func (s *Service) GetLastRead(ctx context.Context, chatID, userID string) (string, error) {
	records, err := s.store.ScanAll(ctx, store.TableChatReads)
	if err != nil {
		return "", fmt.Errorf("scanning read markers: %w", err)
	}
	r, ok := query.First(records, markerOf(chatID, userID))
	if !ok {
		return "", nil
	}
	return r.Get("last_read_at"), nil
}

// SetLastRead records that userID has read chatID up to ts (now when empty).
// An existing marker is overwritten in place; otherwise one is appended.
// Returns the timestamp written.
func (s *Service) SetLastRead(ctx context.Context, chatID, userID, ts string) (string, error) {
	if ts == "" {
		ts = store.FormatTime(s.now())
	}

	records, err := s.store.ScanAll(ctx, store.TableChatReads)
	if err != nil {
		return "", fmt.Errorf("scanning read markers: %w", err)
	}

	if r, ok := query.First(records, markerOf(chatID, userID)); ok {
		if err := s.store.UpdateCell(ctx, store.TableChatReads, r.Row, "last_read_at", ts); err != nil {
			return "", fmt.Errorf("updating read marker: %w", err)
		}
		return ts, nil
	}

	err = s.store.Append(ctx, store.TableChatReads, map[string]string{
		"id":           uuid.New().String(),
		"chat_id":      chatID,
		"user_id":      userID,
		"last_read_at": ts,
	})
	if err != nil {
		return "", fmt.Errorf("creating read marker: %w", err)
	}
	return ts, nil
}

func markerOf(chatID, userID string) query.Predicate {
	return func(r store.Record) bool {
		return r.Get("chat_id") == chatID && r.Get("user_id") == userID
	}
}

// CountUnreadConversations counts conversations of userID with unread messages
// from the other participant. Every call re-scans chats, messages and markers.
func (s *Service) CountUnreadConversations(ctx context.Context, userID string) (int, error) {
	chats, err := s.ListChatsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	unread, err := s.unreadFlags(ctx, userID, chats)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, c := range chats {
		if unread[c.ID] {
			count++
		}
	}
	return count, nil
}

// unreadFlags marks a conversation unread when messages from others exist and
// either no marker is set or any of them is newer than the marker
func (s *Service) unreadFlags(ctx context.Context, userID string, chats []*Chat) (map[string]bool, error) {
	flags := make(map[string]bool, len(chats))
	if len(chats) == 0 {
		return flags, nil
	}

	messages, err := s.store.ScanAll(ctx, store.TableMessages)
	if err != nil {
		return nil, fmt.Errorf("scanning messages: %w", err)
	}
	markers, err := s.store.ScanAll(ctx, store.TableChatReads)
	if err != nil {
		return nil, fmt.Errorf("scanning read markers: %w", err)
	}

	for _, c := range chats {
		lastRead := ""
		if r, ok := query.First(markers, markerOf(c.ID, userID)); ok {
			lastRead = r.Get("last_read_at")
		}

		incoming := query.Filter(messages,
			query.Equals("chat_id", c.ID),
			query.NotEquals("sender_id", userID),
		)
		for _, m := range incoming {
			if lastRead == "" || m.Get("created_at") > lastRead {
				flags[c.ID] = true
				break
			}
		}
	}
	return flags, nil
}

// ListConversationSummaries returns userID's conversations, newest first,
// with partner usernames and unread flags
func (s *Service) ListConversationSummaries(ctx context.Context, userID string, users UserLookup) ([]Summary, error) {
	chats, err := s.ListChatsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.unreadFlags(ctx, userID, chats)
	if err != nil {
		return nil, err
	}

	partnerIDs := make([]string, 0, len(chats))
	for _, c := range chats {
		partnerIDs = append(partnerIDs, c.Partner(userID))
	}
	names, err := users.Usernames(ctx, partnerIDs)
	if err != nil {
		return nil, fmt.Errorf("resolving partners: %w", err)
	}

	out := make([]Summary, len(chats))
	for i, c := range chats {
		partnerID := c.Partner(userID)
		name, ok := names[partnerID]
		if !ok {
			name = UnknownPartner
		}
		out[i] = Summary{
			ID:        c.ID,
			PartnerID: partnerID,
			Partner:   name,
			CreatedAt: c.CreatedAt,
			Unread:    unread[c.ID],
		}
	}
	return out, nil
}
