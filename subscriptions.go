package accounts

import (
	"github.com/nicklaw5/helix/v2"
)

// Subscriptions declares the Twitch EventSub webhook subscriptions that must be
// registered for stored profiles to be kept up to date between logins: Twitch sends
// a user.update notification to our callback whenever a user who has authorized our
// client ID changes their login, display name or description
var Subscriptions = RequiredSubscriptions{
	{
		Type:    helix.EventSubTypeUserUpdate,
		Version: "1",
		TemplatedCondition: helix.EventSubCondition{
			ClientID: "{{.ClientId}}",
		},
	},
}
