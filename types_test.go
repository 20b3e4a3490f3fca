package accounts

import (
	"testing"

	"github.com/nicklaw5/helix/v2"
	"github.com/stretchr/testify/assert"
)

func Test_RequiredSubscriptionConditionParams_Format(t *testing.T) {
	params := &RequiredSubscriptionConditionParams{
		ClientId: "abc123",
	}
	got, err := params.Format(&helix.EventSubCondition{
		ClientID: "{{.ClientId}}",
		RewardID: "client-{{.ClientId}}-reward",
	})
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, &helix.EventSubCondition{
		ClientID: "abc123",
		RewardID: "client-abc123-reward",
	}, got)
}

func Test_RequiredSubscriptionConditionParams_Format_unknownField(t *testing.T) {
	params := &RequiredSubscriptionConditionParams{}
	_, err := params.Format(&helix.EventSubCondition{
		UserID: "{{.BroadcasterId}}",
	})
	assert.Error(t, err)
}

func Test_GetRequiredUserScopes(t *testing.T) {
	required := RequiredSubscriptions{
		{
			RequiredScopes: []string{
				"user:read:email",
			},
		},
		{
			RequiredScopes: []string{
				"user:read:email",
				"user:read:follows",
			},
		},
		{},
		{
			RequiredScopes: []string{
				"user:read:email",
				"user:read:subscriptions",
			},
		},
	}
	got := required.GetRequiredUserScopes()
	assert.ElementsMatch(t, got, []string{
		"user:read:email",
		"user:read:follows",
		"user:read:subscriptions",
	})
}

func Test_Subscriptions_formatWithClientId(t *testing.T) {
	params := &RequiredSubscriptionConditionParams{ClientId: "my-client"}
	for _, required := range Subscriptions {
		got, err := params.Format(&required.TemplatedCondition)
		assert.NoError(t, err)
		assert.Equal(t, "my-client", got.ClientID)
	}
}
