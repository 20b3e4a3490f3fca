package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/codingconcepts/env"
	"github.com/golden-vcr/accounts"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nicklaw5/helix/v2"
)

const (
	TwitchHeaderMessageId        = "twitch-eventsub-message-id"
	TwitchHeaderMessageTimestamp = "twitch-eventsub-message-timestamp"
	TwitchHeaderMessageSignature = "twitch-eventsub-message-signature"
	TwitchHeaderMessageType      = "twitch-eventsub-message-type"
)

type Config struct {
	ListenPort          uint16 `env:"LISTEN_PORT" default:"5003"`
	TwitchClientId      string `env:"TWITCH_CLIENT_ID" required:"true"`
	TwitchWebhookSecret string `env:"TWITCH_WEBHOOK_SECRET" required:"true"`
}

type MessagePayload struct {
	Subscription helix.EventSubSubscription `json:"subscription"`
	Event        json.RawMessage            `json:"event,omitempty"`
}

type Command struct {
	name        string
	messageType string
	initFunc    func(cmd *flag.FlagSet)
	runFunc     func() (string, json.RawMessage)
}

var commands = []Command{
	{"user-update", "notification", initUserUpdateCommand, runUserUpdateCommand},
	{"revoke", "revocation", initRevokeCommand, runRevokeCommand},
}

func main() {
	// Parse config from environment variables
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Fatalf("error loading .env file: %v", err)
	}
	config := Config{}
	if err := env.Set(&config); err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	// Only ever simulate events against a locally-running server: profile changes in
	// the production DB should only come from Twitch itself
	url := fmt.Sprintf("http://localhost:%d/callback", config.ListenPort)

	// Parse the subcommand that we want to run, or print usage if no match
	var command *Command
	commandName := ""
	if len(os.Args) > 1 {
		commandName = os.Args[1]
	}
	for i := range commands {
		if commands[i].name == commandName {
			command = &commands[i]
			break
		}
	}
	if command == nil {
		commandNames := make([]string, 0, len(commands))
		for i := range commands {
			commandNames = append(commandNames, commands[i].name)
		}
		log.Fatalf("Usage: simulate [%s]", strings.Join(commandNames, "|"))
	}

	flagSet := flag.NewFlagSet(command.name, flag.ExitOnError)
	command.initFunc(flagSet)
	if err := flagSet.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Parse error: %v", err)
	}
	subscriptionType, event := command.runFunc()

	// Find the required subscription of the given type so that our fake message looks
	// like it was delivered via that subscription
	params := accounts.RequiredSubscriptionConditionParams{ClientId: config.TwitchClientId}
	payload := MessagePayload{}
	for _, required := range accounts.Subscriptions {
		if required.Type == subscriptionType {
			cond, err := params.Format(&required.TemplatedCondition)
			if err != nil {
				log.Fatalf("failed to format subscription condition from template: %v", err)
			}
			payload.Subscription.Type = subscriptionType
			payload.Subscription.Version = required.Version
			payload.Subscription.Condition = *cond
			break
		}
	}
	if payload.Subscription.Type == "" {
		log.Fatalf("no subscription of type %s is required by the service", subscriptionType)
	}
	payload.Subscription.ID = uuid.NewString()
	payload.Subscription.Status = helix.EventSubStatusEnabled
	if command.messageType == "revocation" {
		payload.Subscription.Status = "authorization_revoked"
	}
	payload.Subscription.Transport.Method = "webhook"
	payload.Subscription.Transport.Callback = url
	payload.Subscription.CreatedAt = helix.Time{Time: time.Now().Add(-5 * time.Minute)}
	payload.Event = event

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("failed to encode message payload: %v", err)
	}
	body := string(bodyBytes)

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		log.Fatalf("error initializing HTTP request: %v", err)
	}

	// Sign the message with our webhook secret, the same way Twitch does, so that
	// helix.VerifyEventSubNotification will accept it
	req.Header.Set(TwitchHeaderMessageId, uuid.NewString())
	req.Header.Set(TwitchHeaderMessageTimestamp, time.Now().Format(time.RFC3339))
	req.Header.Set(TwitchHeaderMessageType, command.messageType)
	req.Header.Set(TwitchHeaderMessageSignature, computeSignature(config.TwitchWebhookSecret, req.Header, body))

	fmt.Printf("%s %s\n", req.Method, req.URL)
	for k, values := range req.Header {
		for _, v := range values {
			fmt.Printf("> %s: %s\n", k, v)
		}
	}
	pretty, err := json.MarshalIndent(payload, "", "    ")
	if err != nil {
		log.Fatalf("failed to pretty-print JSON payload: %v", err)
	}
	fmt.Printf("\n%s\n\n", pretty)

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("error sending HTTP request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		log.Fatalf("got response %d", res.StatusCode)
	}
	fmt.Printf("< %d\n", res.StatusCode)
}

func computeSignature(secret string, h http.Header, message string) string {
	hmacMessage := []byte(h.Get(TwitchHeaderMessageId) + h.Get(TwitchHeaderMessageTimestamp) + message)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(hmacMessage)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
