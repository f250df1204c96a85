// Package backend is an in-memory implementation of the chat REST API. It
// backs local development (apps/api) and the client tests.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mahaj/chat-feed/pkg/auth"
	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/mahaj/chat-feed/pkg/session"
	"go.uber.org/zap"
)

type Server struct {
	store  *Store
	signer *auth.Signer
	log    *zap.Logger
	mux    *http.ServeMux
}

func NewServer(store *Store, signer *auth.Signer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{store: store, signer: signer, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Public endpoints
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)

	protected := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, s.AuthMiddleware(h))
	}
	protected("GET /api/messages/all", s.handleAllMessages)
	protected("GET /api/messages/conversation/{peerId}", s.handleConversation)
	protected("POST /api/messages/send/{peerId}", s.handleSend)
	protected("POST /api/groups/create", s.handleCreateGroup)
	protected("GET /api/groups/{groupId}", s.handleGroup)
	protected("GET /api/groups/{groupId}/members", s.handleGroupMembers)
	protected("GET /api/groups/{groupId}/messages", s.handleGroupMessages)
	protected("POST /api/groups/{groupId}/send", s.handleGroupSend)
	protected("GET /api/users/all", s.handleUsers)
	protected("GET /api/users/{id}", s.handleUser)
	protected("GET /api/friends/all", s.handleFriends)
	protected("GET /api/friends/requests/pending", s.handlePending)
	protected("POST /api/friends/add/{id}", s.handleAddFriend)
	protected("POST /api/friends/accept/{requestId}", s.handleAccept)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	CORSMiddleware(s.mux).ServeHTTP(w, r)
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, User-Id, X-Request-Id")

		if r.Method == http.MethodOptions {
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware requires a valid bearer token. A User-Id header, when sent,
// must name the token's user.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		claims, err := s.signer.ValidateToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if id := r.Header.Get(session.HeaderUserID); id != "" && id != claims.UserID {
			writeError(w, http.StatusForbidden, "User-Id does not match token")
			return
		}

		ctx := context.WithValue(r.Context(), auth.UserKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	claims, _ := r.Context().Value(auth.UserKey).(*auth.Claims)
	if claims == nil {
		return ""
	}
	return claims.UserID
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	token, err := s.signer.GenerateToken(u.ID)
	if err != nil {
		s.log.Error("generate token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, model.LoginResponse{AccessToken: token})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, err := s.store.Register(req)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.log.Info("user registered", zap.String("user_id", u.ID))
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleAllMessages(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	writeJSON(w, http.StatusOK, s.store.Messages(userID(r), page, size))
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	msgs := s.store.Conversation(userID(r), r.PathValue("peerId"))
	writeJSON(w, http.StatusOK, model.Page[model.Message]{Content: nonNil(msgs)})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req model.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	m, err := s.store.SendMessage(userID(r), r.PathValue("peerId"), req.Content)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req model.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	g, err := s.store.CreateGroup(userID(r), req)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.Group(r.PathValue("groupId"), userID(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleGroupMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.store.GroupMembers(r.PathValue("groupId"), userID(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleGroupMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.GroupMessages(r.PathValue("groupId"), userID(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Page[model.Message]{Content: nonNil(msgs)})
}

func (s *Server) handleGroupSend(w http.ResponseWriter, r *http.Request) {
	var req model.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	m, err := s.store.SendGroupMessage(r.PathValue("groupId"), userID(r), req.Content)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Users())
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.User(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleFriends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.store.Friends(userID(r))))
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.store.PendingRequests(userID(r))))
}

func (s *Server) handleAddFriend(w http.ResponseWriter, r *http.Request) {
	req, err := s.store.RequestFriend(userID(r), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	if err := s.store.AcceptRequest(userID(r), r.PathValue("requestId")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("store failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
