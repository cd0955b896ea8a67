package config

import "sync"

// Store keeps one ThreatConfig per scope. Reads are taken on every recorded
// action, so lookups return a stable snapshot and writers swap whole values.
type Store struct {
	mu       sync.RWMutex
	defaults *ThreatConfig
	scopes   map[string]*ThreatConfig
}

func NewStore(defaults *ThreatConfig) *Store {
	if defaults == nil {
		defaults = DefaultThreatConfig()
	}
	return &Store{
		defaults: defaults.Clone().Clamp(),
		scopes:   make(map[string]*ThreatConfig),
	}
}

// Get returns the config for a scope, falling back to the defaults when the
// scope was never configured. The returned value must be treated read-only.
func (s *Store) Get(scopeID string) *ThreatConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.scopes[scopeID]; ok {
		return cfg
	}
	return s.defaults
}

// Set installs a clamped copy of cfg for the scope. Takes effect on the
// next recorded action or decay sweep, no restart needed.
func (s *Store) Set(scopeID string, cfg *ThreatConfig) {
	clamped := cfg.Clone().Clamp()
	s.mu.Lock()
	s.scopes[scopeID] = clamped
	s.mu.Unlock()
}

// SetDefaults replaces the fallback config used for unconfigured scopes.
func (s *Store) SetDefaults(cfg *ThreatConfig) {
	clamped := cfg.Clone().Clamp()
	s.mu.Lock()
	s.defaults = clamped
	s.mu.Unlock()
}

// Scopes returns the IDs with an explicit config, for sweep bookkeeping.
func (s *Store) Scopes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.scopes))
	for id := range s.scopes {
		out = append(out, id)
	}
	return out
}
