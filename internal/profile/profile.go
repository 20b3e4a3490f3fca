package profile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedProfile is returned when a provider profile lacks one of the fields
// required to identify a user: the Twitch user ID or the login name
var ErrMalformedProfile = errors.New("malformed profile")

// Profile is the canonical, provider-agnostic representation of a Twitch user's
// profile
type Profile struct {
	TwitchID        string `json:"twitchId"`
	Login           string `json:"loginName"`
	DisplayName     string `json:"displayName"`
	Description     string `json:"description"`
	UserType        string `json:"userType"`
	BroadcasterType string `json:"broadcasterType"`
	AvatarURL       string `json:"avatarUrl"`
	OfflineImageURL string `json:"offlineImageUrl"`
	ViewCount       int    `json:"viewCount"`
}

// Name returns the best available human-readable name for the user
func (p *Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Login != "" {
		return p.Login
	}
	return "#" + p.TwitchID
}

// Raw is a profile as supplied by Twitch, in any of the shapes we know how to read
type Raw interface {
	Normalize() (*Profile, error)
}

// Normalize converts a raw provider profile to canonical form
func Normalize(raw Raw) (*Profile, error) {
	if raw == nil {
		return nil, ErrMalformedProfile
	}
	return raw.Normalize()
}

// canonicalize applies the rules that every profile shape shares: whitespace is
// trimmed, logins are lower-cased, display names fall back to the login, and view
// counts are never negative
func canonicalize(p *Profile) (*Profile, error) {
	p.TwitchID = strings.TrimSpace(p.TwitchID)
	p.Login = strings.ToLower(strings.TrimSpace(p.Login))
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Description = strings.TrimSpace(p.Description)
	p.UserType = strings.TrimSpace(p.UserType)
	p.BroadcasterType = strings.TrimSpace(p.BroadcasterType)
	p.AvatarURL = strings.TrimSpace(p.AvatarURL)
	p.OfflineImageURL = strings.TrimSpace(p.OfflineImageURL)

	if p.TwitchID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrMalformedProfile)
	}
	if p.Login == "" {
		return nil, fmt.Errorf("%w: missing login name", ErrMalformedProfile)
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Login
	}
	if p.ViewCount < 0 {
		p.ViewCount = 0
	}
	return p, nil
}
