package config

import (
	"github.com/mastersh0w/citadel/internal/models"
)

// Threshold and decay bounds come from the dashboard's tunable ranges.
const (
	MinThreshold = 25.0
	MaxThreshold = 100.0

	MinDecayPerSecond = 0.2
	MaxDecayPerSecond = 5.0

	DefaultThreshold      = 50.0
	DefaultDecayPerSecond = 0.5
)

type scoreBound struct {
	Min float64
	Max float64
}

// Per-kind score bounds. Kinds not listed fall back to defaultScoreBound.
var scoreBounds = map[models.ActionKind]scoreBound{
	models.ActionChannelDelete: {1, 25},
	models.ActionChannelCreate: {1, 15},
	models.ActionChannelUpdate: {1, 10},
	models.ActionRoleDelete:    {1, 25},
	models.ActionRoleCreate:    {1, 15},
	models.ActionRoleUpdate:    {1, 10},
	models.ActionMemberBan:     {1, 20},
	models.ActionMemberKick:    {1, 15},
	models.ActionWebhookCreate: {1, 15},
	models.ActionWebhookDelete: {1, 15},
}

var defaultScoreBound = scoreBound{1, 50}

// DefaultActionScores matches the dashboard defaults.
func DefaultActionScores() map[models.ActionKind]float64 {
	return map[models.ActionKind]float64{
		models.ActionChannelDelete: 10,
		models.ActionChannelCreate: 5,
		models.ActionChannelUpdate: 2,
		models.ActionRoleDelete:    10,
		models.ActionRoleCreate:    5,
		models.ActionRoleUpdate:    2,
		models.ActionMemberBan:     8,
		models.ActionMemberKick:    6,
		models.ActionWebhookCreate: 5,
		models.ActionWebhookDelete: 5,
	}
}

// ThreatConfig is the scope-wide tunable set owned by the admin dashboard.
// The engine only reads it; changes take effect on the next event or sweep.
type ThreatConfig struct {
	Enabled        bool                            `json:"enabled"`
	Threshold      float64                         `json:"threshold"`
	DecayPerSecond float64                         `json:"decay_per_second"`
	ActionScores   map[models.ActionKind]float64   `json:"action_scores"`
	ResetOnRestore bool                            `json:"reset_on_restore"`

	// Platform wiring, untouched by the engine core.
	OwnerID          string   `json:"owner_id"`
	Whitelist        []string `json:"whitelist"`
	QuarantineRoleID string   `json:"quarantine_role_id"`
	LogChannelID     string   `json:"log_channel_id"`
}

func DefaultThreatConfig() *ThreatConfig {
	return &ThreatConfig{
		Enabled:        true,
		Threshold:      DefaultThreshold,
		DecayPerSecond: DefaultDecayPerSecond,
		ActionScores:   DefaultActionScores(),
		ResetOnRestore: true,
	}
}

// Clamp forces every tunable into its documented range and fills missing
// action scores from the defaults. Returns the receiver for chaining.
func (tc *ThreatConfig) Clamp() *ThreatConfig {
	tc.Threshold = clampFloat(tc.Threshold, MinThreshold, MaxThreshold)
	tc.DecayPerSecond = clampFloat(tc.DecayPerSecond, MinDecayPerSecond, MaxDecayPerSecond)

	if tc.ActionScores == nil {
		tc.ActionScores = make(map[models.ActionKind]float64, len(models.AllActionKinds))
	}
	defaults := DefaultActionScores()
	for _, kind := range models.AllActionKinds {
		if _, ok := tc.ActionScores[kind]; !ok {
			tc.ActionScores[kind] = defaults[kind]
		}
	}
	for kind, score := range tc.ActionScores {
		b, ok := scoreBounds[kind]
		if !ok {
			b = defaultScoreBound
		}
		tc.ActionScores[kind] = clampFloat(score, b.Min, b.Max)
	}
	return tc
}

// ScoreFor returns the configured point value for a kind.
func (tc *ThreatConfig) ScoreFor(kind models.ActionKind) (float64, bool) {
	score, ok := tc.ActionScores[kind]
	return score, ok
}

// IsExempt reports whether the actor is never scored into a case:
// the scope owner and whitelisted actors.
func (tc *ThreatConfig) IsExempt(actorID string) bool {
	if actorID == "" {
		return false
	}
	if tc.OwnerID != "" && actorID == tc.OwnerID {
		return true
	}
	for _, id := range tc.Whitelist {
		if id == actorID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so readers never share the score map with a
// concurrent UpdateConfig.
func (tc *ThreatConfig) Clone() *ThreatConfig {
	out := *tc
	out.ActionScores = make(map[models.ActionKind]float64, len(tc.ActionScores))
	for k, v := range tc.ActionScores {
		out.ActionScores[k] = v
	}
	out.Whitelist = append([]string(nil), tc.Whitelist...)
	return &out
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
