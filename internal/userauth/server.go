package userauth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golden-vcr/accounts/internal/login"
	"github.com/golden-vcr/accounts/internal/metrics"
	"github.com/golden-vcr/accounts/internal/profile"
	"github.com/golden-vcr/accounts/internal/registry"
	"github.com/golden-vcr/accounts/internal/tokens"
	"github.com/golden-vcr/server-common/entry"
	"github.com/gorilla/mux"
)

// Provider carries out the authorization code grant flow with Twitch
type Provider interface {
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (tokens.Credentials, error)
	FetchProfile(ctx context.Context, accessToken string) (profile.Raw, error)
}

// Verifier persists a completed login
type Verifier interface {
	Verify(ctx context.Context, creds tokens.Credentials, raw profile.Raw, meta login.Meta) (*login.Outcome, error)
}

// FailureCounter records the reason for each failed login
type FailureCounter interface {
	LoginFailed(reason string)
}

type Server struct {
	origin          string
	provider        Provider
	verifier        Verifier
	failures        FailureCounter
	successRedirect string
	failureRedirect string
	states          *stateBuffer
}

func NewServer(origin string, provider Provider, verifier Verifier, failures FailureCounter, successRedirect, failureRedirect string) *Server {
	return &Server{
		origin:          origin,
		provider:        provider,
		verifier:        verifier,
		failures:        failures,
		successRedirect: successRedirect,
		failureRedirect: failureRedirect,
		states:          newStateBuffer(15 * time.Minute),
	}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.Path("/auth").Methods("GET").HandlerFunc(s.handleLoginPage)
	r.Path("/auth/twitch").Methods("GET").HandlerFunc(s.handleStartAuth)
	r.Path("/auth/twitch/callback").Methods("GET").HandlerFunc(s.handleFinishAuth)
}

func (s *Server) handleLoginPage(res http.ResponseWriter, req *http.Request) {
	res.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginPage.Execute(res, loginPageData{StartURL: s.origin + "/auth/twitch"}); err != nil {
		entry.Log(req).Error("Failed to render login page", "error", err)
	}
}

func (s *Server) handleStartAuth(res http.ResponseWriter, req *http.Request) {
	res.Header().Set("location", s.provider.AuthorizeURL(s.states.generate()))
	res.WriteHeader(http.StatusSeeOther)
}

func (s *Server) handleFinishAuth(res http.ResponseWriter, req *http.Request) {
	logger := entry.Log(req)
	q := req.URL.Query()

	// If the user declined to authorize our app, Twitch sends them back with an error
	// in place of an authorization code
	if errorValue := q.Get("error"); errorValue != "" {
		logger.Info("User did not authorize login", "error", errorValue, "description", q.Get("error_description"))
		s.fail(res, req, metrics.ReasonDenied)
		return
	}

	// Verify the nonce carried in the 'state' parameter
	if !s.states.consume(q.Get("state")) {
		logger.Error("OAuth state verification failed")
		s.fail(res, req, metrics.ReasonState)
		return
	}

	// Redeem the authorization code for a user access token, then use that token to
	// get the profile of the user who's logging in
	code := q.Get("code")
	if code == "" {
		logger.Error("'code' value not found in URL query params")
		s.fail(res, req, metrics.ReasonExchange)
		return
	}
	creds, err := s.provider.Exchange(req.Context(), code)
	if err != nil {
		logger.Error("Failed to exchange authorization code", "error", err)
		s.fail(res, req, metrics.ReasonExchange)
		return
	}
	raw, err := s.provider.FetchProfile(req.Context(), creds.AccessToken)
	if err != nil {
		logger.Error("Failed to fetch profile of authorizing user", "error", err)
		s.fail(res, req, metrics.ReasonProfile)
		return
	}

	// Hand off to the login controller to record the login
	outcome, err := s.verifier.Verify(req.Context(), creds, raw, login.Meta{
		IP:        clientIP(req),
		UserAgent: req.UserAgent(),
	})
	if err != nil {
		logger.Error("Failed to verify login", "error", err)
		s.fail(res, req, failureReason(err))
		return
	}

	logger.Info("Login succeeded", "twitchId", outcome.User.TwitchID, "isNew", outcome.IsNew)
	http.Redirect(res, req, s.successRedirect, http.StatusSeeOther)
}

func (s *Server) fail(res http.ResponseWriter, req *http.Request, reason string) {
	s.failures.LoginFailed(reason)
	http.Redirect(res, req, s.failureRedirect, http.StatusSeeOther)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, profile.ErrMalformedProfile):
		return metrics.ReasonMalformed
	case errors.Is(err, registry.ErrDuplicateIdentity):
		return metrics.ReasonDuplicate
	default:
		return metrics.ReasonPersistence
	}
}

// clientIP returns the address of the client that made the request, preferring the
// first X-Forwarded-For entry added by our reverse proxy
func clientIP(req *http.Request) string {
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
