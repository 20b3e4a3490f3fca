package main

import (
	"os"

	"github.com/codingconcepts/env"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/golden-vcr/accounts"
	"github.com/golden-vcr/accounts/internal/admin"
	"github.com/golden-vcr/accounts/internal/callback"
	"github.com/golden-vcr/accounts/internal/events"
	"github.com/golden-vcr/accounts/internal/login"
	"github.com/golden-vcr/accounts/internal/metrics"
	"github.com/golden-vcr/accounts/internal/registry"
	"github.com/golden-vcr/accounts/internal/store"
	"github.com/golden-vcr/accounts/internal/subscription"
	"github.com/golden-vcr/accounts/internal/tokens"
	"github.com/golden-vcr/accounts/internal/twitch"
	"github.com/golden-vcr/accounts/internal/userauth"
	"github.com/golden-vcr/auth"
	"github.com/golden-vcr/server-common/entry"
	"github.com/golden-vcr/server-common/rmq"
	commontwitch "github.com/golden-vcr/server-common/twitch"
)

func main() {
	app, ctx := entry.NewApplication("accounts")
	defer app.Stop()

	// Parse config from environment variables
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		app.Fail("Failed to load .env file", err)
	}
	config := accounts.Config{}
	if err := env.Set(&config); err != nil {
		app.Fail("Failed to load config", err)
	}
	if exported, err := config.Export(); err == nil {
		app.Log().Info("Loaded config", "config", string(exported))
	}

	// Use Postgres when a database is configured, applying any pending migrations
	// first; otherwise keep everything in memory for local development
	var s store.Store
	if config.DatabaseURL != "" {
		before, after, err := store.Migrate(config.DatabaseURL)
		if err != nil {
			app.Fail("Failed to apply database migrations", err)
		}
		app.Log().Info("Database schema is up to date", "versionBefore", before, "versionAfter", after)
		pg, err := store.NewPostgres(ctx, config.DatabaseURL)
		if err != nil {
			app.Fail("Failed to connect to database", err)
		}
		s = pg
	} else {
		app.Log().Warn("DATABASE_URL is not set; accounts will be stored in memory only")
		s = store.NewMemory()
	}
	defer s.Close()

	// Every successful login and every recorded profile change is announced on our
	// in-process event bus
	bus := events.NewBus()

	// If a RabbitMQ host is configured, forward those events to other services via the
	// 'twitch-logins' exchange
	if config.RmqHost != "" {
		amqpConn, err := amqp.Dial(rmq.FormatConnectionString(config.RmqHost, config.RmqPort, config.RmqVhost, config.RmqUser, config.RmqPassword))
		if err != nil {
			app.Fail("Failed to connect to AMQP server", err)
		}
		defer amqpConn.Close()
		publisher, err := events.NewPublisher(amqpConn, "twitch-logins")
		if err != nil {
			app.Fail("Failed to initialize AMQP publisher", err)
		}
		defer publisher.Close()
		publisher.Attach(bus)
	}

	// Count logins, profile changes, and login failures
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		app.Fail("Failed to register metrics", err)
	}
	m.Attach(bus)

	// Initialize an auth client so we can require broadcaster-level access in order to
	// call admin-only endpoints
	authClient, err := auth.NewClient(ctx, config.AuthURL)
	if err != nil {
		app.Fail("Failed to initialize auth client", err)
	}

	// Look up arbitrary Twitch users with an app access token, and carry out OAuth
	// flows on behalf of users who log in
	appClient, err := commontwitch.NewClientWithAppToken(ctx, config.TwitchClientId, config.TwitchClientSecret)
	if err != nil {
		app.Fail("Failed to initialize Twitch API client", err)
	}
	directory := twitch.NewDirectory(appClient)
	provider, err := twitch.NewProvider(config.TwitchClientId, config.TwitchClientSecret, config.CallbackURL(), config.Scopes())
	if err != nil {
		app.Fail("Failed to initialize Twitch OAuth provider", err)
	}

	r := registry.New(s, directory, app.Log())
	controller := login.NewController(s, r, bus, app.Log())

	router := mux.NewRouter()
	router.Path("/metrics").Methods("GET").Handler(m.Handler())

	// GET /auth serves a login page; GET /auth/twitch begins the OAuth flow, and Twitch
	// redirects the user back to GET /auth/twitch/callback once they've authorized us
	userauthServer := userauth.NewServer(config.Origin, provider, controller, m, config.SuccessRedirect, config.FailureRedirect)
	userauthServer.RegisterRoutes(router)

	// The broadcaster can look up users, view their profile history, and refresh their
	// stored tokens via /users
	adminServer := admin.NewServer(s, r, tokens.NewRefresher(s, provider))
	adminServer.RegisterRoutes(authClient, router)

	// Twitch will call POST /callback with 'user.update' notifications once the
	// required EventSub subscription is registered
	callbackServer := callback.NewServer(config.TwitchWebhookSecret, callback.NewUserUpdateHandler(r, directory.Forget, bus))
	callbackServer.RegisterRoutes(router)

	// The broadcaster can GET /subscriptions to check on that subscription, PATCH to
	// create it if missing, or DELETE to remove it
	subscriptionServer := subscription.NewServer(config.WebhookURL(), config.TwitchClientId, config.TwitchClientSecret, config.TwitchWebhookSecret)
	subscriptionServer.RegisterRoutes(authClient, router)

	// Handle incoming HTTP connections until our top-level context is canceled, at
	// which point shut down cleanly
	entry.RunServer(ctx, app.Log(), router, config.BindAddr, config.ListenPort)
}
