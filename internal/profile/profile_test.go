package profile

import (
	"encoding/json"
	"testing"

	"github.com/nicklaw5/helix/v2"
	"github.com/stretchr/testify/assert"
)

func Test_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     Raw
		want    *Profile
		wantErr bool
	}{
		{
			"helix user is mapped field-by-field",
			HelixUser(helix.User{
				ID:              "123",
				Login:           "Jaidchen",
				DisplayName:     "Jaidchen",
				Type:            "",
				BroadcasterType: "affiliate",
				Description:     " streams VHS tapes ",
				ProfileImageURL: "https://static-cdn.jtvnw.net/a.png",
				OfflineImageURL: "https://static-cdn.jtvnw.net/b.png",
				ViewCount:       10,
			}),
			&Profile{
				TwitchID:        "123",
				Login:           "jaidchen",
				DisplayName:     "Jaidchen",
				Description:     "streams VHS tapes",
				BroadcasterType: "affiliate",
				AvatarURL:       "https://static-cdn.jtvnw.net/a.png",
				OfflineImageURL: "https://static-cdn.jtvnw.net/b.png",
				ViewCount:       10,
			},
			false,
		},
		{
			"display name falls back to login",
			HelixUser(helix.User{ID: "123", Login: "neydora"}),
			&Profile{TwitchID: "123", Login: "neydora", DisplayName: "neydora"},
			false,
		},
		{
			"helix-style JSON fields are read",
			Fields{
				"id":                "123",
				"login":             "jaidchen",
				"display_name":      "Jaidchen",
				"broadcaster_type":  "partner",
				"profile_image_url": "https://example.com/a.png",
				"view_count":        float64(15),
			},
			&Profile{
				TwitchID:        "123",
				Login:           "jaidchen",
				DisplayName:     "Jaidchen",
				BroadcasterType: "partner",
				AvatarURL:       "https://example.com/a.png",
				ViewCount:       15,
			},
			false,
		},
		{
			"oidc claims are read",
			Fields{
				"sub":                "123",
				"preferred_username": "Jaidchen",
				"picture":            "https://example.com/a.png",
			},
			&Profile{
				TwitchID:    "123",
				Login:       "jaidchen",
				DisplayName: "jaidchen",
				AvatarURL:   "https://example.com/a.png",
			},
			false,
		},
		{
			"numeric id and string view count are tolerated",
			Fields{
				"_id":   float64(123),
				"name":  "jaidchen",
				"views": "42",
			},
			&Profile{TwitchID: "123", Login: "jaidchen", DisplayName: "jaidchen", ViewCount: 42},
			false,
		},
		{
			"negative view count is clamped",
			Fields{"id": "123", "login": "jaidchen", "view_count": -5},
			&Profile{TwitchID: "123", Login: "jaidchen", DisplayName: "jaidchen"},
			false,
		},
		{
			"missing id is malformed",
			Fields{"login": "jaidchen"},
			nil,
			true,
		},
		{
			"missing login is malformed",
			HelixUser(helix.User{ID: "123", DisplayName: "Jaidchen"}),
			nil,
			true,
		},
		{
			"nil profile is malformed",
			nil,
			nil,
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedProfile)
				assert.Nil(t, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_Fields_decodedFromJSON(t *testing.T) {
	var f Fields
	err := json.Unmarshal([]byte(`{"id":"123","login":"jaidchen","view_count":10}`), &f)
	assert.NoError(t, err)

	got, err := Normalize(f)
	assert.NoError(t, err)
	assert.Equal(t, 10, got.ViewCount)
}

func Test_Profile_Name(t *testing.T) {
	assert.Equal(t, "Jaidchen", (&Profile{TwitchID: "1", Login: "jaidchen", DisplayName: "Jaidchen"}).Name())
	assert.Equal(t, "jaidchen", (&Profile{TwitchID: "1", Login: "jaidchen"}).Name())
	assert.Equal(t, "#1", (&Profile{TwitchID: "1"}).Name())
}
