package main

import (
	"encoding/json"
	"flag"

	"github.com/nicklaw5/helix/v2"
)

func initRevokeCommand(cmd *flag.FlagSet) {}

// runRevokeCommand produces a revocation message, which carries no event
func runRevokeCommand() (string, json.RawMessage) {
	return helix.EventSubTypeUserUpdate, nil
}
