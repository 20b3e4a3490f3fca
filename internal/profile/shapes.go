package profile

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/nicklaw5/helix/v2"
)

// HelixUser is the shape returned by the Helix Get Users endpoint, which serves both
// directory lookups and the profile of the user who just completed a login
type HelixUser helix.User

func (u HelixUser) Normalize() (*Profile, error) {
	return canonicalize(&Profile{
		TwitchID:        u.ID,
		Login:           u.Login,
		DisplayName:     u.DisplayName,
		Description:     u.Description,
		UserType:        u.Type,
		BroadcasterType: u.BroadcasterType,
		AvatarURL:       u.ProfileImageURL,
		OfflineImageURL: u.OfflineImageURL,
		ViewCount:       u.ViewCount,
	})
}

// Fields is a profile decoded from arbitrary JSON. It understands the snake_case
// keys used by Helix, the camelCase keys used by most client libraries, and the
// claims returned by the Twitch OIDC userinfo endpoint.
type Fields map[string]any

var fieldAliases = struct {
	id, login, displayName, description, userType, broadcasterType, avatar, offline, views []string
}{
	id:              []string{"id", "_id", "twitchId", "sub"},
	login:           []string{"login", "loginName", "name", "preferred_username"},
	displayName:     []string{"display_name", "displayName"},
	description:     []string{"description", "bio"},
	userType:        []string{"type", "userType"},
	broadcasterType: []string{"broadcaster_type", "broadcasterType"},
	avatar:          []string{"profile_image_url", "profilePictureUrl", "avatarUrl", "logo", "picture"},
	offline:         []string{"offline_image_url", "offlinePlaceholderUrl", "offlineImageUrl"},
	views:           []string{"view_count", "viewCount", "views"},
}

func (f Fields) Normalize() (*Profile, error) {
	return canonicalize(&Profile{
		TwitchID:        f.str(fieldAliases.id...),
		Login:           f.str(fieldAliases.login...),
		DisplayName:     f.str(fieldAliases.displayName...),
		Description:     f.str(fieldAliases.description...),
		UserType:        f.str(fieldAliases.userType...),
		BroadcasterType: f.str(fieldAliases.broadcasterType...),
		AvatarURL:       f.str(fieldAliases.avatar...),
		OfflineImageURL: f.str(fieldAliases.offline...),
		ViewCount:       f.num(fieldAliases.views...),
	})
}

// str returns the value of the first key that is present with a usable value
func (f Fields) str(keys ...string) string {
	for _, key := range keys {
		switch v := f[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			if v == math.Trunc(v) {
				return strconv.FormatInt(int64(v), 10)
			}
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}
	return ""
}

func (f Fields) num(keys ...string) int {
	for _, key := range keys {
		switch v := f[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n)
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return 0
}
