package accounts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/nicklaw5/helix/v2"
)

// RequiredSubscription describes an EventSub subscription that must be registered
// against our webhook callback URL. Condition values are Go templates that are
// resolved against RequiredSubscriptionConditionParams.
type RequiredSubscription struct {
	Type               string
	Version            string
	TemplatedCondition helix.EventSubCondition
	RequiredScopes     []string
}

type RequiredSubscriptions []RequiredSubscription

// RequiredSubscriptionConditionParams carries the values that may be substituted
// into a TemplatedCondition
type RequiredSubscriptionConditionParams struct {
	ClientId string
}

// Format resolves all template expressions in the given condition, returning a new
// condition with concrete values
func (p *RequiredSubscriptionConditionParams) Format(cond *helix.EventSubCondition) (*helix.EventSubCondition, error) {
	data, err := json.Marshal(cond)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("condition").Option("missingkey=error").Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse condition template: %w", err)
	}
	var b bytes.Buffer
	if err := tmpl.Execute(&b, p); err != nil {
		return nil, fmt.Errorf("failed to execute condition template: %w", err)
	}
	var result helix.EventSubCondition
	if err := json.Unmarshal(b.Bytes(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRequiredUserScopes returns the distinct set of OAuth scopes that a user must
// grant in order for all required subscriptions to be registered
func (r RequiredSubscriptions) GetRequiredUserScopes() []string {
	scopes := make([]string, 0)
	for _, required := range r {
		scopes = append(scopes, required.RequiredScopes...)
	}
	return ParseScopes(scopes...)
}
