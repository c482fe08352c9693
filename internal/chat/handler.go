package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	myMiddleware "pairchat/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	me, ok := r.Context().Value(myMiddleware.UserKey).(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	payload, err := h.service.Send(r.Context(), me, &req)
	if err != nil {
		h.writeSendError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	me, ok := r.Context().Value(myMiddleware.UserKey).(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	audience := Audience(r.URL.Query().Get("audience"))
	if audience == "" {
		audience = AudienceFriends
	}
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.service.ListConversations(r.Context(), me, audience, skip, limit)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		logrus.WithError(err).Error("list conversations failed")
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	me, ok := r.Context().Value(myMiddleware.UserKey).(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	other := chi.URLParam(r, "userID")

	msgs, err := h.service.History(r.Context(), me, other)
	if err != nil {
		if errors.Is(err, ErrInvalidPair) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logrus.WithError(err).Error("get history failed")
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}
	if msgs == nil {
		msgs = []*MessagePayload{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

func (h *Handler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	me, ok := r.Context().Value(myMiddleware.UserKey).(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	other := chi.URLParam(r, "userID")

	if err := h.service.MarkSeen(r.Context(), me, other); err != nil {
		if errors.Is(err, ErrInvalidPair) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logrus.WithError(err).Error("mark seen failed")
		writeError(w, http.StatusInternalServerError, "failed to mark seen")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeSendError maps the error taxonomy onto status codes: client mistakes
// get 4xx, anchor conflicts and store failures get 5xx so the client knows
// a retry may succeed.
func (h *Handler) writeSendError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, ErrInvalidPair):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRecipientNotFound):
		writeError(w, http.StatusNotFound, "receiver not found")
	case errors.Is(err, ErrAnchorConflict):
		logrus.WithError(err).Error("anchor conflict on send")
		writeError(w, http.StatusInternalServerError, "message conflict, retry")
	default:
		logrus.WithError(err).Error("send message failed")
		writeError(w, http.StatusInternalServerError, "failed to send message")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
