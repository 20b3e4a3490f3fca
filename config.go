package accounts

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the host-supplied configuration for the accounts service, populated from
// environment variables. Secrets are tagged yaml:"-" so that they never appear in
// the output of Export.
type Config struct {
	BindAddr   string `env:"BIND_ADDR" yaml:"bindAddr"`
	ListenPort uint16 `env:"LISTEN_PORT" default:"5003" yaml:"listenPort"`
	Origin     string `env:"ORIGIN" default:"http://localhost:5003" yaml:"origin"`

	TwitchClientId      string `env:"TWITCH_CLIENT_ID" required:"true" yaml:"twitchClientId"`
	TwitchClientSecret  string `env:"TWITCH_CLIENT_SECRET" required:"true" yaml:"-"`
	TwitchWebhookSecret string `env:"TWITCH_WEBHOOK_SECRET" required:"true" yaml:"-"`
	TwitchScopes        string `env:"TWITCH_SCOPES" default:"user:read:email" yaml:"twitchScopes"`

	SuccessRedirect string `env:"SUCCESS_REDIRECT" default:"/" yaml:"successRedirect"`
	FailureRedirect string `env:"FAILURE_REDIRECT" default:"/auth" yaml:"failureRedirect"`

	DatabaseURL string `env:"DATABASE_URL" yaml:"-"`

	RmqHost     string `env:"RMQ_HOST" yaml:"rmqHost"`
	RmqPort     int    `env:"RMQ_PORT" default:"5672" yaml:"rmqPort"`
	RmqVhost    string `env:"RMQ_VHOST" default:"/" yaml:"rmqVhost"`
	RmqUser     string `env:"RMQ_USER" yaml:"rmqUser"`
	RmqPassword string `env:"RMQ_PASSWORD" yaml:"-"`

	AuthURL string `env:"AUTH_URL" default:"http://localhost:5002" yaml:"authUrl"`
}

// CallbackURL is the redirect_uri registered with Twitch for our OAuth client
func (c *Config) CallbackURL() string {
	return strings.TrimSuffix(c.Origin, "/") + "/auth/twitch/callback"
}

// WebhookURL is the URL that Twitch will POST EventSub notifications to
func (c *Config) WebhookURL() string {
	return strings.TrimSuffix(c.Origin, "/") + "/callback"
}

// Scopes returns the full list of OAuth scopes to request at login: the configured
// scopes plus any scopes needed by required EventSub subscriptions
func (c *Config) Scopes() []string {
	scopes := ParseScopes(c.TwitchScopes)
	scopes = ParseScopes(append(scopes, Subscriptions.GetRequiredUserScopes()...)...)
	if len(scopes) == 0 {
		return DefaultScopes
	}
	return scopes
}

// Export serializes the non-secret portion of the config as YAML, suitable for
// logging at startup
func (c *Config) Export() ([]byte, error) {
	return yaml.Marshal(c)
}
