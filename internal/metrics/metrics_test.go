package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golden-vcr/accounts/internal/events"
	"github.com/golden-vcr/accounts/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Metrics(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	bus := events.NewBus()
	m.Attach(bus)

	ctx := context.Background()
	require.NoError(t, bus.EmitLogin(ctx, events.Login{User: &store.User{}, IsNew: true}))
	require.NoError(t, bus.EmitLogin(ctx, events.Login{User: &store.User{}}))
	require.NoError(t, bus.EmitLogin(ctx, events.Login{User: &store.User{}}))
	require.NoError(t, bus.EmitProfileChanged(ctx, events.ProfileChanged{User: &store.User{}}))
	m.LoginFailed(ReasonState)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.logins.WithLabelValues("true")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.logins.WithLabelValues("false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.profileChanges))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.loginFailures.WithLabelValues(ReasonState)))

	res := httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(res.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `accounts_logins_total{new="true"} 1`)
	assert.Contains(t, string(body), `accounts_login_failures_total{reason="state"} 1`)
}

func Test_Metrics_profileChangesCountWebhookDrift(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	bus := events.NewBus()
	m.Attach(bus)

	// user.update notifications reconcile existing users, so they arrive with IsNew
	// false and no accompanying login
	err = bus.EmitProfileChanged(context.Background(), events.ProfileChanged{User: &store.User{}, Change: &store.ProfileChange{}})
	require.NoError(t, err)

	want := `
# HELP accounts_profile_changes_total Number of times drift was applied to a stored Twitch profile, at login or from a user.update notification
# TYPE accounts_profile_changes_total counter
accounts_profile_changes_total 1
`
	assert.NoError(t, testutil.CollectAndCompare(m.profileChanges, strings.NewReader(want)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.logins.WithLabelValues("false")))
}

func Test_New_rejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
