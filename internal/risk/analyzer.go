// Package risk scores a login attempt's context against the user's recent
// session history. The analyzer is deterministic and side-effect free given
// its inputs; weights come from configuration.
package risk

import (
	"time"

	"github.com/silasmoran/bastion/internal/models"
)

// Weights are the score contributions of each anomaly flag.
type Weights struct {
	NewIP            int
	NewDevice        int
	PossibleStuffing int
}

// Config configures the analyzer.
type Config struct {
	Weights Weights

	// A revoked session created within this window from a different IP
	// suggests credential stuffing.
	StuffingWindow time.Duration
}

// DefaultConfig returns the weights used when none are configured.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			NewIP:            30,
			NewDevice:        20,
			PossibleStuffing: 40,
		},
		StuffingWindow: 15 * time.Minute,
	}
}

type Analyzer struct {
	cfg Config
	now func() time.Time
}

func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg, now: time.Now}
}

// NewAnalyzerAt builds an analyzer with a fixed clock, for tests.
func NewAnalyzerAt(cfg Config, now func() time.Time) *Analyzer {
	return &Analyzer{cfg: cfg, now: now}
}

// Analyze scores the login context against recent sessions. Baseline is 0;
// each anomaly adds its configured weight. An empty history scores the
// new-IP and new-device flags only when the user has logged in before, so a
// first-ever login is not penalized for having no history.
func (a *Analyzer) Analyze(u *models.User, lc models.LoginContext, recent []*models.Session) models.RiskAssessment {
	assessment := models.RiskAssessment{Flags: []string{}}

	if len(recent) == 0 && u.LastLoginAt == nil {
		return assessment
	}

	knownIP := false
	knownAgent := false
	for _, s := range recent {
		if s.IPAddress == lc.IPAddress {
			knownIP = true
		}
		if s.UserAgent == lc.UserAgent {
			knownAgent = true
		}
	}

	if !knownIP {
		assessment.Score += a.cfg.Weights.NewIP
		assessment.Flags = append(assessment.Flags, models.RiskFlagNewIP)
	}
	if !knownAgent {
		assessment.Score += a.cfg.Weights.NewDevice
		assessment.Flags = append(assessment.Flags, models.RiskFlagNewDevice)
	}

	if a.recentlyRevokedElsewhere(lc, recent) {
		assessment.Score += a.cfg.Weights.PossibleStuffing
		assessment.Flags = append(assessment.Flags, models.RiskFlagPossibleStuffing)
	}

	return assessment
}

// recentlyRevokedElsewhere reports whether a session created shortly before
// this attempt from a different IP has already been revoked.
func (a *Analyzer) recentlyRevokedElsewhere(lc models.LoginContext, recent []*models.Session) bool {
	cutoff := a.now().Add(-a.cfg.StuffingWindow)
	for _, s := range recent {
		if s.RevokedAt == nil {
			continue
		}
		if s.IPAddress != lc.IPAddress && s.CreatedAt.After(cutoff) {
			return true
		}
	}
	return false
}
