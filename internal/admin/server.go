package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/golden-vcr/accounts/internal/changelog"
	"github.com/golden-vcr/accounts/internal/profile"
	"github.com/golden-vcr/accounts/internal/registry"
	"github.com/golden-vcr/accounts/internal/store"
	"github.com/golden-vcr/accounts/internal/tokens"
	"github.com/golden-vcr/auth"
	"github.com/golden-vcr/server-common/entry"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Registry finds or registers users via a directory lookup
type Registry interface {
	FindOrRegisterByID(ctx context.Context, twitchID string) (*registry.Result, error)
	FindOrRegisterByLogin(ctx context.Context, login string) (*registry.Result, error)
}

// TokenRefresher supersedes a user's current token with freshly-granted credentials
type TokenRefresher interface {
	Refresh(ctx context.Context, userID uuid.UUID) (*store.Token, error)
}

type Server struct {
	store     store.Store
	registry  Registry
	refresher TokenRefresher
}

func NewServer(s store.Store, r Registry, refresher TokenRefresher) *Server {
	return &Server{
		store:     s,
		registry:  r,
		refresher: refresher,
	}
}

func (s *Server) RegisterRoutes(c auth.Client, r *mux.Router) {
	users := r.PathPrefix("/users").Subrouter()
	users.Use(func(next http.Handler) http.Handler {
		return auth.RequireAccess(c, auth.RoleBroadcaster, next)
	})
	users.Path("/login/{login}").Methods("GET").HandlerFunc(s.handleGetUserByLogin)
	users.Path("/id/{id}").Methods("GET").HandlerFunc(s.handleGetUserByID)
	users.Path("/id/{id}/changes").Methods("GET").HandlerFunc(s.handleGetChanges)
	users.Path("/id/{id}/refresh").Methods("POST").HandlerFunc(s.handlePostRefresh)
}

type userResponse struct {
	User   *store.User          `json:"user"`
	IsNew  bool                 `json:"isNew"`
	Change *store.ProfileChange `json:"change,omitempty"`
}

// handleGetUserByLogin (GET /users/login/{login}) returns the user who currently
// holds the given login name, registering them or applying a rename if needed
func (s *Server) handleGetUserByLogin(res http.ResponseWriter, req *http.Request) {
	result, err := s.registry.FindOrRegisterByLogin(req.Context(), mux.Vars(req)["login"])
	s.respondWithResult(res, req, result, err)
}

// handleGetUserByID (GET /users/id/{id}) returns the user with the given Twitch user
// ID, registering them if needed
func (s *Server) handleGetUserByID(res http.ResponseWriter, req *http.Request) {
	result, err := s.registry.FindOrRegisterByID(req.Context(), mux.Vars(req)["id"])
	s.respondWithResult(res, req, result, err)
}

func (s *Server) respondWithResult(res http.ResponseWriter, req *http.Request, result *registry.Result, err error) {
	if err != nil {
		entry.Log(req).Error("Failed to find or register user", "error", err)
		switch {
		case errors.Is(err, registry.ErrProfileUnavailable):
			http.Error(res, err.Error(), http.StatusNotFound)
		case errors.Is(err, profile.ErrMalformedProfile):
			http.Error(res, err.Error(), http.StatusBadGateway)
		default:
			http.Error(res, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(res, req, userResponse{
		User:   result.User,
		IsNew:  result.IsNew,
		Change: result.Change,
	})
}

// handleGetChanges (GET /users/id/{id}/changes) lists every recorded change to the
// profile of a known user, newest first
func (s *Server) handleGetChanges(res http.ResponseWriter, req *http.Request) {
	user, ok := s.lookupUser(res, req)
	if !ok {
		return
	}
	changes, err := changelog.History(req.Context(), s.store, user.ID)
	if err != nil {
		entry.Log(req).Error("Failed to list profile changes", "error", err)
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(res, req, changes)
}

// handlePostRefresh (POST /users/id/{id}/refresh) exchanges a known user's current
// refresh token for new credentials
func (s *Server) handlePostRefresh(res http.ResponseWriter, req *http.Request) {
	user, ok := s.lookupUser(res, req)
	if !ok {
		return
	}
	token, err := s.refresher.Refresh(req.Context(), user.ID)
	if err != nil {
		entry.Log(req).Error("Failed to refresh token", "twitchId", user.TwitchID, "error", err)
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(res, "user has never logged in", http.StatusNotFound)
		case errors.Is(err, tokens.ErrNoRefreshToken):
			http.Error(res, err.Error(), http.StatusConflict)
		default:
			http.Error(res, err.Error(), http.StatusBadGateway)
		}
		return
	}
	writeJSON(res, req, token)
}

func (s *Server) lookupUser(res http.ResponseWriter, req *http.Request) (*store.User, bool) {
	user, err := s.store.GetUserByTwitchID(req.Context(), mux.Vars(req)["id"])
	if errors.Is(err, store.ErrNotFound) {
		http.Error(res, "no such user", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		entry.Log(req).Error("Failed to look up user", "error", err)
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return user, true
}

func writeJSON(res http.ResponseWriter, req *http.Request, v any) {
	res.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(res).Encode(v); err != nil {
		entry.Log(req).Error("Failed to encode response", "error", err)
	}
}
