package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/golden-vcr/accounts/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure reasons recorded by LoginFailed
const (
	ReasonDenied      = "denied"
	ReasonState       = "state"
	ReasonExchange    = "exchange"
	ReasonProfile     = "profile"
	ReasonMalformed   = "malformed"
	ReasonDuplicate   = "duplicate"
	ReasonPersistence = "persistence"
)

// Metrics counts logins, profile changes, and failed login attempts
type Metrics struct {
	gatherer       prometheus.Gatherer
	logins         *prometheus.CounterVec
	profileChanges prometheus.Counter
	loginFailures  *prometheus.CounterVec
}

// New creates all counters and registers them with reg
func New(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		gatherer: reg,
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_logins_total",
			Help: "Number of successful Twitch logins, by whether the user was new",
		}, []string{"new"}),
		profileChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accounts_profile_changes_total",
			Help: "Number of times drift was applied to a stored Twitch profile, at login or from a user.update notification",
		}),
		loginFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_login_failures_total",
			Help: "Number of OAuth callbacks that were redirected to the failure target",
		}, []string{"reason"}),
	}
	for _, c := range []prometheus.Collector{m.logins, m.profileChanges, m.loginFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Attach counts every login and profileChanged event emitted on the bus
func (m *Metrics) Attach(bus *events.Bus) {
	bus.OnLogin(func(ctx context.Context, ev events.Login) error {
		m.logins.WithLabelValues(strconv.FormatBool(ev.IsNew)).Inc()
		return nil
	})
	bus.OnProfileChanged(func(ctx context.Context, ev events.ProfileChanged) error {
		m.profileChanges.Inc()
		return nil
	})
}

func (m *Metrics) LoginFailed(reason string) {
	m.loginFailures.WithLabelValues(reason).Inc()
}

// Handler serves all registered metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
