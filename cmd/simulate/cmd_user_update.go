package main

import (
	"encoding/json"
	"flag"
	"strings"

	"github.com/nicklaw5/helix/v2"
)

var userUpdateUserId string
var userUpdateDisplayName string
var userUpdateDescription string

func initUserUpdateCommand(cmd *flag.FlagSet) {
	cmd.StringVar(&userUpdateUserId, "user-id", "1337", "Twitch User ID of the user whose profile changed")
	cmd.StringVar(&userUpdateDisplayName, "username", "BigJoeBob", "New Twitch Display Name of the user")
	cmd.StringVar(&userUpdateDescription, "description", "", "New channel description of the user")
}

func runUserUpdateCommand() (string, json.RawMessage) {
	ev, err := json.Marshal(map[string]any{
		"user_id":        userUpdateUserId,
		"user_login":     strings.ToLower(userUpdateDisplayName),
		"user_name":      userUpdateDisplayName,
		"email":          "",
		"email_verified": false,
		"description":    userUpdateDescription,
	})
	if err != nil {
		panic(err)
	}
	return helix.EventSubTypeUserUpdate, ev
}
