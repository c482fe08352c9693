package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	myMiddleware "pairchat/internal/middleware"
)

func authedRequest(method, target, body, userID string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(r.Context(), myMiddleware.UserKey, userID)
	return r.WithContext(ctx)
}

func TestSendMessageHandler_StatusMapping(t *testing.T) {
	svc, _, _, _ := newTestService("u1", "u2")
	h := NewHandler(svc)

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"ok", `{"receiverID":"u2","type":"text","content":"hi"}`, http.StatusCreated},
		{"empty text", `{"receiverID":"u2","type":"text"}`, http.StatusBadRequest},
		{"self pair", `{"receiverID":"u1","content":"hi"}`, http.StatusBadRequest},
		{"unknown receiver", `{"receiverID":"ghost","content":"hi"}`, http.StatusNotFound},
		{"broken json", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.SendMessage(w, authedRequest(http.MethodPost, "/api/messages", tc.body, "u1"))
			require.Equal(t, tc.status, w.Code)
		})
	}
}

func TestSendMessageHandler_Unauthenticated(t *testing.T) {
	svc, _, _, _ := newTestService("u1")
	h := NewHandler(svc)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(`{}`))
	h.SendMessage(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetConversationsHandler_BadAudience(t *testing.T) {
	svc, _, _, _ := newTestService("u1")
	h := NewHandler(svc)

	w := httptest.NewRecorder()
	h.GetConversations(w, authedRequest(http.MethodGet, "/api/conversations?audience=everyone", "", "u1"))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
