package subscription

import (
	"fmt"
	"net/http"

	"github.com/golden-vcr/accounts"
	"github.com/nicklaw5/helix/v2"
)

// TwitchClient is the subset of Twitch API client functionality used to view and
// manage EventSub subscriptions
type TwitchClient interface {
	GetEventSubSubscriptions(params *helix.EventSubSubscriptionsParams) (*helix.EventSubSubscriptionsResponse, error)
	CreateEventSubSubscription(payload *helix.EventSubSubscription) (*helix.EventSubSubscriptionsResponse, error)
	RemoveEventSubSubscription(id string) (*helix.RemoveEventSubSubscriptionParamsResponse, error)
}

// Status represents the status of all EventSub subscriptions that deliver events to
// our webhook
type Status struct {
	Ok            bool    `json:"ok"`
	Subscriptions []State `json:"subscriptions"`
}

// State represents the state of a single EventSub subscription
type State struct {
	Required  bool              `json:"required"`
	Type      string            `json:"type"`
	Version   string            `json:"version"`
	Condition map[string]string `json:"condition"`
	Status    string            `json:"status"`

	subscriptionId string
}

// getOwnedSubscriptions pages through all EventSub subscriptions owned by our app,
// keeping only those that deliver to the given webhook callback URL
func getOwnedSubscriptions(c TwitchClient, callbackUrl string) ([]helix.EventSubSubscription, error) {
	owned := make([]helix.EventSubSubscription, 0)
	params := &helix.EventSubSubscriptionsParams{}
	for {
		r, err := c.GetEventSubSubscriptions(params)
		if err != nil {
			return nil, err
		}
		if r.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("got response %d from get subscriptions request: %s", r.StatusCode, r.ErrorMessage)
		}
		for _, subscription := range r.Data.EventSubSubscriptions {
			if subscription.Transport.Method == "webhook" && subscription.Transport.Callback == callbackUrl {
				owned = append(owned, subscription)
			}
		}
		if r.Data.Pagination.Cursor == "" {
			return owned, nil
		}
		params.After = r.Data.Pagination.Cursor
	}
}

// reconcileSubscriptionStatus matches each required subscription against the
// subscriptions that actually exist. Required subscriptions with no match are
// reported as missing; existing subscriptions that aren't required are reported as
// ancillary. Status is Ok only if every required subscription is enabled.
func reconcileSubscriptionStatus(existing []helix.EventSubSubscription, params accounts.RequiredSubscriptionConditionParams, required accounts.RequiredSubscriptions) (*Status, error) {
	states := make([]State, 0, len(required))
	unmatched := append([]helix.EventSubSubscription(nil), existing...)
	ok := true

	for _, req := range required {
		condition, err := params.Format(&req.TemplatedCondition)
		if err != nil {
			return nil, fmt.Errorf("failed to format templated condition with params %+v: %w", params, err)
		}

		state := State{
			Required:  true,
			Type:      req.Type,
			Version:   req.Version,
			Condition: formatCondition(condition),
			Status:    "missing",
		}
		for i := range unmatched {
			s := &unmatched[i]
			if s.Type == req.Type && s.Version == req.Version && s.Condition == *condition {
				state.Status = s.Status
				state.subscriptionId = s.ID
				unmatched = append(unmatched[:i], unmatched[i+1:]...)
				break
			}
		}
		if state.Status != "enabled" {
			ok = false
		}
		states = append(states, state)
	}

	for i := range unmatched {
		states = append(states, State{
			Type:           unmatched[i].Type,
			Version:        unmatched[i].Version,
			Condition:      formatCondition(&unmatched[i].Condition),
			Status:         unmatched[i].Status,
			subscriptionId: unmatched[i].ID,
		})
	}
	return &Status{Ok: ok, Subscriptions: states}, nil
}
