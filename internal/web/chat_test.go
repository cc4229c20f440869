// ABOUTME: Tests for the direct message pages and JSON API
// ABOUTME: Covers conversation start, membership checks, polling and unread tracking

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/chat"
)

type messagesResponse struct {
	Messages []chat.Message `json:"messages"`
}

func startChat(t *testing.T, env *testEnv, cookie *http.Cookie, username string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"csrf_token": {testCSRF}, "username": {username}}
	return env.do(formRequest("/chat/start", form), cookie)
}

func unreadCount(t *testing.T, env *testEnv, cookie *http.Cookie) int {
	t.Helper()
	rec := env.do(httptest.NewRequest(http.MethodGet, "/chat/api/unread", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Count
}

func TestChatStart_CreatesOnceAndRedirects(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, anaCookie := env.register(t, "ana")
	_, bobCookie := env.register(t, "bob")

	first := startChat(t, env, anaCookie, "bob")
	require.Equal(t, http.StatusSeeOther, first.Code)
	location := first.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/chat/"), location)

	second := startChat(t, env, bobCookie, "ana")
	assert.Equal(t, location, second.Header().Get("Location"), "both directions reach the same conversation")
}

func TestChatStart_UnknownUser(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, cookie := env.register(t, "ana")

	rec := startChat(t, env, cookie, "ghost")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, chatListPath, rec.Header().Get("Location"))
	assert.Equal(t, "chat.user_not_found", flashKey(t, rec))
}

func TestChatStart_BlankUsername(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, cookie := env.register(t, "ana")

	rec := startChat(t, env, cookie, "   ")

	assert.Equal(t, chatListPath, rec.Header().Get("Location"))
	assert.Equal(t, "chat.user_required", flashKey(t, rec))
}

func TestChatStart_Self(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, cookie := env.register(t, "ana")

	rec := startChat(t, env, cookie, "ana")

	assert.Equal(t, chatListPath, rec.Header().Get("Location"))
	assert.Equal(t, "chat.self_chat", flashKey(t, rec))
}

func TestChatFlow_UnreadTracking(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana, anaCookie := env.register(t, "ana")
	_, bobCookie := env.register(t, "bob")

	c, err := env.chat.GetOrCreateChat(context.Background(), ana.ID, mustUserID(t, env, "bob"))
	require.NoError(t, err)

	// only ana has written: nothing unread for her
	rec := env.do(jsonRequest(http.MethodPost, "/chat/api/"+c.ID+"/messages", `{"content":"hi bob"}`), anaCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, unreadCount(t, env, anaCookie))
	assert.Equal(t, 1, unreadCount(t, env, bobCookie))

	rec = env.do(jsonRequest(http.MethodPost, "/chat/api/"+c.ID+"/messages", `{"content":"  hello ana  "}`), bobCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var sent struct {
		OK      bool         `json:"ok"`
		Message chat.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.True(t, sent.OK)
	assert.Equal(t, "hello ana", sent.Message.Content)
	assert.Equal(t, 1, unreadCount(t, env, anaCookie))

	// opening the room marks it read
	room := env.do(httptest.NewRequest(http.MethodGet, "/chat/"+c.ID, nil), anaCookie)
	require.Equal(t, http.StatusOK, room.Code)
	assert.Contains(t, room.Body.String(), "Conversation with bob")
	assert.Contains(t, room.Body.String(), "hello ana")
	assert.Equal(t, 0, unreadCount(t, env, anaCookie))

	// the list shows the partner name
	list := env.do(httptest.NewRequest(http.MethodGet, "/chat/", nil), anaCookie)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), ">bob</a>")
}

func mustUserID(t *testing.T, env *testEnv, username string) string {
	t.Helper()
	u, err := env.accounts.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	return u.ID
}

func TestMessagesAPI_Since(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana, anaCookie := env.register(t, "ana")
	bob, _ := env.register(t, "bob")
	ctx := context.Background()

	c, err := env.chat.GetOrCreateChat(ctx, ana.ID, bob.ID)
	require.NoError(t, err)
	first, err := env.chat.AddMessage(ctx, c.ID, bob.ID, "one")
	require.NoError(t, err)
	_, err = env.chat.AddMessage(ctx, c.ID, ana.ID, "two")
	require.NoError(t, err)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/chat/api/"+c.ID+"/messages", nil), anaCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var all messagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all.Messages, 2)
	assert.Equal(t, "one", all.Messages[0].Content)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/chat/api/"+c.ID+"/messages?since="+url.QueryEscape(first.CreatedAt), nil), anaCookie)
	var newer messagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &newer))
	require.Len(t, newer.Messages, 1)
	assert.Equal(t, "two", newer.Messages[0].Content)
}

func TestMessagesAPI_EmptyList(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana, anaCookie := env.register(t, "ana")
	bob, _ := env.register(t, "bob")

	c, err := env.chat.GetOrCreateChat(context.Background(), ana.ID, bob.ID)
	require.NoError(t, err)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/chat/api/"+c.ID+"/messages", nil), anaCookie)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestSendMessage_Empty(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana, anaCookie := env.register(t, "ana")
	bob, _ := env.register(t, "bob")

	c, err := env.chat.GetOrCreateChat(context.Background(), ana.ID, bob.ID)
	require.NoError(t, err)

	for _, body := range []string{`{"content":"   "}`, `{}`, ``} {
		rec := env.do(jsonRequest(http.MethodPost, "/chat/api/"+c.ID+"/messages", body), anaCookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"ok":false}`, rec.Body.String(), body)
	}
}

func TestSendMessage_RequiresCSRFHeader(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana, anaCookie := env.register(t, "ana")
	bob, _ := env.register(t, "bob")

	c, err := env.chat.GetOrCreateChat(context.Background(), ana.ID, bob.ID)
	require.NoError(t, err)

	req := jsonRequest(http.MethodPost, "/chat/api/"+c.ID+"/messages", `{"content":"hi"}`)
	req.Header.Del("X-CSRF-Token")
	rec := env.do(req, anaCookie)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	msgs, err := env.chat.ListMessages(context.Background(), c.ID, "")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestChat_NonMemberAndUnknownAre404(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana, _ := env.register(t, "ana")
	bob, _ := env.register(t, "bob")
	_, carlCookie := env.register(t, "carl")

	c, err := env.chat.GetOrCreateChat(context.Background(), ana.ID, bob.ID)
	require.NoError(t, err)

	requests := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/chat/"+c.ID, nil),
		httptest.NewRequest(http.MethodGet, "/chat/api/"+c.ID+"/messages", nil),
		jsonRequest(http.MethodPost, "/chat/api/"+c.ID+"/messages", `{"content":"sneaky"}`),
		jsonRequest(http.MethodPost, "/chat/api/"+c.ID+"/read", ``),
		httptest.NewRequest(http.MethodGet, "/chat/does-not-exist", nil),
		httptest.NewRequest(http.MethodGet, "/chat/api/does-not-exist/messages", nil),
	}

	for _, req := range requests {
		rec := env.do(req, carlCookie)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.Method+" "+req.URL.Path)
	}
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana, anaCookie := env.register(t, "ana")
	bob, _ := env.register(t, "bob")
	ctx := context.Background()

	c, err := env.chat.GetOrCreateChat(ctx, ana.ID, bob.ID)
	require.NoError(t, err)
	msg, err := env.chat.AddMessage(ctx, c.ID, bob.ID, "ping")
	require.NoError(t, err)
	require.Equal(t, 1, unreadCount(t, env, anaCookie))

	rec := env.do(jsonRequest(http.MethodPost, "/chat/api/"+c.ID+"/read", `{"at":"`+msg.CreatedAt+`"}`), anaCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"last_read_at":"`+msg.CreatedAt+`"}`, rec.Body.String())
	assert.Equal(t, 0, unreadCount(t, env, anaCookie))

	rec = env.do(jsonRequest(http.MethodPost, "/chat/api/"+c.ID+"/read", `{"at":"yesterday"}`), anaCookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
