package friend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	myMiddleware "pairchat/internal/middleware"
	"pairchat/internal/user"
)

// ProfileResolver resolves IDs to public profiles (the user service).
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, id string) (*user.Profile, error)
}

type Handler struct {
	repo     *Repository
	resolver *Resolver
	profiles ProfileResolver
	pageSize int
}

func NewHandler(repo *Repository, resolver *Resolver, profiles ProfileResolver, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Handler{repo: repo, resolver: resolver, profiles: profiles, pageSize: pageSize}
}

func (h *Handler) SendRequest(w http.ResponseWriter, r *http.Request) {
	me, ok := r.Context().Value(myMiddleware.UserKey).(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body RequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ToUserID == "" {
		writeError(w, http.StatusBadRequest, "toUserId is required")
		return
	}
	if body.ToUserID == me {
		writeError(w, http.StatusBadRequest, "cannot friend yourself")
		return
	}

	if err := h.repo.CreateRequest(r.Context(), me, body.ToUserID); err != nil {
		if errors.Is(err, ErrEdgeExists) {
			writeError(w, http.StatusBadRequest, "friend request already exists")
			return
		}
		logrus.WithError(err).Error("create friend request failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	me, ok := r.Context().Value(myMiddleware.UserKey).(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	requester := chi.URLParam(r, "userID")

	if err := h.repo.Accept(r.Context(), me, requester); err != nil {
		if errors.Is(err, ErrNoRequest) {
			writeError(w, http.StatusNotFound, "no pending request")
			return
		}
		logrus.WithError(err).Error("accept friend request failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	me, ok := r.Context().Value(myMiddleware.UserKey).(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ids, err := h.repo.PendingFor(r.Context(), me)
	if err != nil {
		logrus.WithError(err).Error("list pending requests failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.writeProfilePage(w, r, ids, 0, len(ids)+1)
}

func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	me, ok := r.Context().Value(myMiddleware.UserKey).(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	if skip < 0 {
		skip = 0
	}

	ids, err := h.resolver.FriendsOf(r.Context(), me)
	if err != nil {
		logrus.WithError(err).Error("list friends failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.writeProfilePage(w, r, ids, skip, h.pageSize)
}

func (h *Handler) writeProfilePage(w http.ResponseWriter, r *http.Request, ids []string, skip, limit int) {
	hasMore := skip+limit < len(ids)
	if skip > len(ids) {
		skip = len(ids)
	}
	end := skip + limit
	if end > len(ids) {
		end = len(ids)
	}

	data := make([]*user.Profile, 0, end-skip)
	for _, id := range ids[skip:end] {
		p, err := h.profiles.ResolveProfile(r.Context(), id)
		if err != nil {
			logrus.WithError(err).WithField("user", id).Error("resolve profile failed")
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		data = append(data, p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data, "hasMore": hasMore})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
