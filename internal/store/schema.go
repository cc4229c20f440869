// ABOUTME: Fixed table schemas for users, posts, chats, messages and read markers
// ABOUTME: EnsureSchema creates or repairs every table header at startup

package store

import (
	"context"
	"fmt"
)

// Table names
const (
	TableUsers     = "users"
	TablePosts     = "posts"
	TableChats     = "chats"
	TableMessages  = "messages"
	TableChatReads = "chat_reads"
)

// Schema is a table name with its ordered header
type Schema struct {
	Name    string
	Columns []string
}

// Column order is part of the persisted format. Reordering needs a migration.
var (
	UsersSchema = Schema{TableUsers, []string{
		"id", "username", "email", "password_hash", "avatar_url", "bio", "created_at",
	}}
	PostsSchema = Schema{TablePosts, []string{
		"id", "author_id", "content", "media_url", "media_type", "tags", "description", "subject", "created_at",
	}}
	ChatsSchema = Schema{TableChats, []string{
		"id", "user1_id", "user2_id", "created_at",
	}}
	MessagesSchema = Schema{TableMessages, []string{
		"id", "chat_id", "sender_id", "content", "created_at",
	}}
	ChatReadsSchema = Schema{TableChatReads, []string{
		"id", "chat_id", "user_id", "last_read_at",
	}}
)

// Tables lists every schema the application persists
var Tables = []Schema{UsersSchema, PostsSchema, ChatsSchema, MessagesSchema, ChatReadsSchema}

// EnsureSchema ensures every application table exists with its header
func EnsureSchema(ctx context.Context, s RecordStore) error {
	for _, t := range Tables {
		if err := s.EnsureTable(ctx, t.Name, t.Columns); err != nil {
			return fmt.Errorf("ensuring table %s: %w", t.Name, err)
		}
	}
	return nil
}
