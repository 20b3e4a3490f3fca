package accounts

import "strings"

// DefaultScopes are requested during the OAuth handshake when no scopes are
// configured
var DefaultScopes = []string{"user:read:email"}

// ParseScopes normalizes one or more scope values into a list of distinct scopes,
// preserving the order in which they first appear. Each value may itself hold
// several scopes separated by spaces or commas.
func ParseScopes(values ...string) []string {
	seen := make(map[string]struct{})
	scopes := make([]string, 0, len(values))
	for _, value := range values {
		fields := strings.FieldsFunc(value, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
		for _, scope := range fields {
			if _, ok := seen[scope]; ok {
				continue
			}
			seen[scope] = struct{}{}
			scopes = append(scopes, scope)
		}
	}
	return scopes
}
