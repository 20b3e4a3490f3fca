package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/golden-vcr/accounts"
	"github.com/golden-vcr/auth"
	"github.com/golden-vcr/server-common/entry"
	"github.com/golden-vcr/server-common/twitch"
	"github.com/gorilla/mux"
	"github.com/nicklaw5/helix/v2"
)

type NewTwitchClientFunc func(ctx context.Context) (TwitchClient, error)

type Server struct {
	callbackUrl           string
	conditionParams       accounts.RequiredSubscriptionConditionParams
	requiredSubscriptions accounts.RequiredSubscriptions

	newTwitchClient     NewTwitchClientFunc
	twitchWebhookSecret string
}

func NewServer(callbackUrl, twitchClientId, twitchClientSecret, twitchWebhookSecret string) *Server {
	return &Server{
		callbackUrl: callbackUrl,
		conditionParams: accounts.RequiredSubscriptionConditionParams{
			ClientId: twitchClientId,
		},
		requiredSubscriptions: accounts.Subscriptions,
		newTwitchClient: func(ctx context.Context) (TwitchClient, error) {
			return twitch.NewClientWithAppToken(ctx, twitchClientId, twitchClientSecret)
		},
		twitchWebhookSecret: twitchWebhookSecret,
	}
}

func (s *Server) RegisterRoutes(c auth.Client, r *mux.Router) {
	subscriptions := r.Path("/subscriptions").Subrouter()
	subscriptions.Use(func(next http.Handler) http.Handler {
		return auth.RequireAccess(c, auth.RoleBroadcaster, next)
	})
	subscriptions.Methods("GET").HandlerFunc(s.handleGetSubscriptions)
	subscriptions.Methods("PATCH").HandlerFunc(s.handlePatchSubscriptions)
	subscriptions.Methods("DELETE").HandlerFunc(s.handleDeleteSubscriptions)
}

// handleGetSubscriptions (GET /subscriptions) reports whether the 'user.update'
// subscription that keeps stored profiles current is registered and enabled
func (s *Server) handleGetSubscriptions(res http.ResponseWriter, req *http.Request) {
	_, status, ok := s.resolve(res, req)
	if !ok {
		return
	}
	res.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(res).Encode(status); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

// handlePatchSubscriptions (PATCH /subscriptions) registers every required EventSub
// subscription that's currently missing
func (s *Server) handlePatchSubscriptions(res http.ResponseWriter, req *http.Request) {
	c, status, ok := s.resolve(res, req)
	if !ok {
		return
	}
	logger := entry.Log(req)
	for _, state := range status.Subscriptions {
		if !state.Required || state.Status != "missing" {
			continue
		}
		logger := logger.With("subscriptionType", state.Type, "subscriptionVersion", state.Version, "subscriptionCondition", state.Condition)
		if err := s.createSubscription(c, &state); err != nil {
			logger.Error("Failed to create EventSub subscription", "error", err)
			http.Error(res, fmt.Sprintf("Failed to create EventSub subscription: %v", err), http.StatusInternalServerError)
			return
		}
		logger.Info("Created new EventSub subscription")
	}
	res.WriteHeader(http.StatusNoContent)
}

// handleDeleteSubscriptions (DELETE /subscriptions) deletes every EventSub
// subscription that delivers to our webhook, required or not
func (s *Server) handleDeleteSubscriptions(res http.ResponseWriter, req *http.Request) {
	c, status, ok := s.resolve(res, req)
	if !ok {
		return
	}
	logger := entry.Log(req)
	for _, state := range status.Subscriptions {
		if state.subscriptionId == "" {
			continue
		}
		logger := logger.With("subscriptionId", state.subscriptionId, "subscriptionType", state.Type)
		if err := deleteSubscription(c, state.subscriptionId); err != nil {
			logger.Error("Failed to delete EventSub subscription", "error", err)
			http.Error(res, fmt.Sprintf("Failed to delete EventSub subscription: %v", err), http.StatusInternalServerError)
			return
		}
		logger.Info("Deleted EventSub subscription")
	}
	res.WriteHeader(http.StatusNoContent)
}

// resolve initializes a Twitch API client and uses it to determine the current status
// of our EventSub subscriptions, writing an error response if either step fails
func (s *Server) resolve(res http.ResponseWriter, req *http.Request) (TwitchClient, *Status, bool) {
	logger := entry.Log(req)

	c, err := s.newTwitchClient(req.Context())
	if err != nil {
		logger.Error("Failed to initialize Twitch API client", "error", err)
		http.Error(res, fmt.Sprintf("failed to initialize Twitch API client: %v", err), http.StatusInternalServerError)
		return nil, nil, false
	}

	existing, err := getOwnedSubscriptions(c, s.callbackUrl)
	if err != nil {
		logger.Error("Failed to get EventSub subscriptions", "error", err)
		http.Error(res, fmt.Sprintf("failed to get EventSub subscriptions: %v", err), http.StatusInternalServerError)
		return nil, nil, false
	}
	status, err := reconcileSubscriptionStatus(existing, s.conditionParams, s.requiredSubscriptions)
	if err != nil {
		logger.Error("Failed to resolve EventSub subscription status", "error", err)
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return nil, nil, false
	}
	return c, status, true
}

func (s *Server) createSubscription(c TwitchClient, state *State) error {
	r, err := c.CreateEventSubSubscription(&helix.EventSubSubscription{
		Type:      state.Type,
		Version:   state.Version,
		Condition: parseCondition(state.Condition),
		Transport: helix.EventSubTransport{
			Method:   "webhook",
			Callback: s.callbackUrl,
			Secret:   s.twitchWebhookSecret,
		},
	})
	if err != nil {
		return err
	}
	if r.StatusCode != http.StatusAccepted {
		return fmt.Errorf("got response %d from CreateEventSubSubscription request: %s", r.StatusCode, r.ErrorMessage)
	}
	return nil
}

func deleteSubscription(c TwitchClient, subscriptionId string) error {
	r, err := c.RemoveEventSubSubscription(subscriptionId)
	if err != nil {
		return err
	}
	if r.StatusCode != http.StatusNoContent {
		return fmt.Errorf("got response %d from RemoveEventSubSubscription request: %s", r.StatusCode, r.ErrorMessage)
	}
	return nil
}
