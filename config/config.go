package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Limiter struct {
	Tier            string `yaml:"tier"`              // "starter","intermediate","pro"
	DecayIntervalMS int    `yaml:"decay_interval_ms"` // scheduler tick, test acceleration only
	CooldownMS      int    `yaml:"cooldown_ms"`       // blocking wait after an overrun
}

type Observability struct {
	LogLevel string `yaml:"log_level"` // "debug","info","warn","error"
}

type Root struct {
	Limiter       Limiter       `yaml:"limiter"`
	Observability Observability `yaml:"observability"`
}

func (l Limiter) DecayInterval() time.Duration {
	if l.DecayIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(l.DecayIntervalMS) * time.Millisecond
}

func (l Limiter) Cooldown() time.Duration {
	if l.CooldownMS <= 0 {
		return 20 * time.Second
	}
	return time.Duration(l.CooldownMS) * time.Millisecond
}

// Load reads the yaml config. Timing fields fall back to the exchange
// defaults, but the tier is deliberately not defaulted: a missing or
// unknown tier must fail when the limiter is built, never fall back to
// some other tier's quotas.
func Load(path string) (*Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Root
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	return &cfg, nil
}
