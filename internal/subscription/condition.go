package subscription

import "github.com/nicklaw5/helix/v2"

// conditionFields maps the JSON key of each helix.EventSubCondition field to that
// field in cond
func conditionFields(cond *helix.EventSubCondition) map[string]*string {
	return map[string]*string{
		"broadcaster_user_id":      &cond.BroadcasterUserID,
		"from_broadcaster_user_id": &cond.FromBroadcasterUserID,
		"to_broadcaster_user_id":   &cond.ToBroadcasterUserID,
		"moderator_user_id":        &cond.ModeratorUserID,
		"reward_id":                &cond.RewardID,
		"client_id":                &cond.ClientID,
		"extension_client_id":      &cond.ExtensionClientID,
		"user_id":                  &cond.UserID,
	}
}

// formatCondition converts a helix.EventSubCondition to a map containing only its
// non-empty fields, since helix.EventSubCondition's JSON tags lack omitempty
func formatCondition(cond *helix.EventSubCondition) map[string]string {
	result := make(map[string]string)
	for key, value := range conditionFields(cond) {
		if *value != "" {
			result[key] = *value
		}
	}
	return result
}

// parseCondition is the inverse of formatCondition
func parseCondition(m map[string]string) helix.EventSubCondition {
	var cond helix.EventSubCondition
	for key, value := range conditionFields(&cond) {
		*value = m[key]
	}
	return cond
}
