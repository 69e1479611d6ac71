package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silasmoran/bastion/internal/models"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func knownSession(ip, agent string, age time.Duration) *models.Session {
	return &models.Session{
		UserID:    "user123",
		IPAddress: ip,
		UserAgent: agent,
		CreatedAt: fixedNow.Add(-age),
	}
}

func attempt(ip, agent string) models.LoginContext {
	return models.LoginContext{IPAddress: ip, UserAgent: agent}
}

func TestAnalyze_FirstEverLoginScoresZero(t *testing.T) {
	a := NewAnalyzerAt(DefaultConfig(), fixedClock)
	u := &models.User{ID: "user123"}

	got := a.Analyze(u, attempt("203.0.113.10", "agent-a"), nil)

	assert.Equal(t, 0, got.Score)
	assert.Empty(t, got.Flags)
}

func TestAnalyze_EmptyHistoryWithPriorLoginFlagsBoth(t *testing.T) {
	a := NewAnalyzerAt(DefaultConfig(), fixedClock)
	lastLogin := fixedNow.Add(-90 * 24 * time.Hour)
	u := &models.User{ID: "user123", LastLoginAt: &lastLogin}

	// History swept by retention but the user has logged in before: nothing
	// matches, so both the IP and the device look new.
	got := a.Analyze(u, attempt("203.0.113.10", "agent-a"), nil)

	assert.Equal(t, 50, got.Score)
	assert.True(t, got.Has(models.RiskFlagNewIP))
	assert.True(t, got.Has(models.RiskFlagNewDevice))
}

func TestAnalyze_KnownIPAndDevice(t *testing.T) {
	a := NewAnalyzerAt(DefaultConfig(), fixedClock)
	u := &models.User{ID: "user123"}
	history := []*models.Session{knownSession("203.0.113.10", "agent-a", 24*time.Hour)}

	got := a.Analyze(u, attempt("203.0.113.10", "agent-a"), history)

	assert.Equal(t, 0, got.Score)
}

func TestAnalyze_NewIPOnly(t *testing.T) {
	a := NewAnalyzerAt(DefaultConfig(), fixedClock)
	u := &models.User{ID: "user123"}
	history := []*models.Session{knownSession("198.51.100.7", "agent-a", 24*time.Hour)}

	got := a.Analyze(u, attempt("203.0.113.10", "agent-a"), history)

	assert.Equal(t, 30, got.Score)
	assert.True(t, got.Has(models.RiskFlagNewIP))
	assert.False(t, got.Has(models.RiskFlagNewDevice))
}

func TestAnalyze_NewDeviceOnly(t *testing.T) {
	a := NewAnalyzerAt(DefaultConfig(), fixedClock)
	u := &models.User{ID: "user123"}
	history := []*models.Session{knownSession("203.0.113.10", "agent-a", 24*time.Hour)}

	got := a.Analyze(u, attempt("203.0.113.10", "agent-b"), history)

	assert.Equal(t, 20, got.Score)
	assert.True(t, got.Has(models.RiskFlagNewDevice))
}

func TestAnalyze_StuffingSignal(t *testing.T) {
	a := NewAnalyzerAt(DefaultConfig(), fixedClock)
	u := &models.User{ID: "user123"}

	// A session from another IP, created five minutes ago and already
	// revoked, alongside an established session matching this attempt.
	revoked := knownSession("198.51.100.7", "agent-x", 5*time.Minute)
	revokedAt := fixedNow.Add(-2 * time.Minute)
	revoked.RevokedAt = &revokedAt

	history := []*models.Session{
		knownSession("203.0.113.10", "agent-a", 24*time.Hour),
		revoked,
	}

	got := a.Analyze(u, attempt("203.0.113.10", "agent-a"), history)

	// Known IP and device; only the stuffing signal fires.
	assert.Equal(t, 40, got.Score)
	require.True(t, got.Has(models.RiskFlagPossibleStuffing))
}

func TestAnalyze_OldRevocationOutsideWindow(t *testing.T) {
	a := NewAnalyzerAt(DefaultConfig(), fixedClock)
	u := &models.User{ID: "user123"}

	revoked := knownSession("198.51.100.7", "agent-a", 2*time.Hour)
	revokedAt := fixedNow.Add(-90 * time.Minute)
	revoked.RevokedAt = &revokedAt

	history := []*models.Session{
		knownSession("203.0.113.10", "agent-a", 24*time.Hour),
		revoked,
	}

	got := a.Analyze(u, attempt("203.0.113.10", "agent-a"), history)

	assert.False(t, got.Has(models.RiskFlagPossibleStuffing))
	assert.Equal(t, 0, got.Score)
}

func TestAnalyze_AllSignalsStack(t *testing.T) {
	a := NewAnalyzerAt(DefaultConfig(), fixedClock)
	lastLogin := fixedNow.Add(-24 * time.Hour)
	u := &models.User{ID: "user123", LastLoginAt: &lastLogin}

	revoked := knownSession("198.51.100.7", "agent-x", 5*time.Minute)
	revokedAt := fixedNow.Add(-1 * time.Minute)
	revoked.RevokedAt = &revokedAt

	got := a.Analyze(u, attempt("203.0.113.10", "agent-new"), []*models.Session{revoked})

	assert.Equal(t, 90, got.Score)
	assert.Len(t, got.Flags, 3)
}

func TestAnalyze_CustomWeights(t *testing.T) {
	cfg := Config{
		Weights:        Weights{NewIP: 10, NewDevice: 5, PossibleStuffing: 100},
		StuffingWindow: 15 * time.Minute,
	}
	a := NewAnalyzerAt(cfg, fixedClock)
	lastLogin := fixedNow.Add(-24 * time.Hour)
	u := &models.User{ID: "user123", LastLoginAt: &lastLogin}

	got := a.Analyze(u, attempt("203.0.113.10", "agent-a"), nil)

	assert.Equal(t, 15, got.Score)
}
