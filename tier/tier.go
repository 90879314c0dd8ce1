package tier

import (
	"fmt"
	"strings"
)

// Limits holds the per-category thresholds for one verification tier.
type Limits struct {
	General float64 // decaying general API counter threshold
	Orders  int     // max open orders per instrument
	Cancel  float64 // cancellation weight threshold per instrument
}

// Decay holds the per-tick decrements applied by the scheduler.
// Orders has no decay rate: open-order counts only drop when an order
// actually closes.
type Decay struct {
	General float64
	Cancel  float64
}

type Tier struct {
	Name   string
	Limits Limits
	Decay  Decay
}

// Rate limit tables per verification tier, as published by the exchange.
var tiers = map[string]Tier{
	"starter": {
		Name:   "starter",
		Limits: Limits{General: 15, Orders: 60, Cancel: 60},
		Decay:  Decay{General: 0.33, Cancel: 1},
	},
	"intermediate": {
		Name:   "intermediate",
		Limits: Limits{General: 20, Orders: 80, Cancel: 125},
		Decay:  Decay{General: 0.5, Cancel: 2.34},
	},
	"pro": {
		Name:   "pro",
		Limits: Limits{General: 20, Orders: 225, Cancel: 180},
		Decay:  Decay{General: 1, Cancel: 3.75},
	},
}

// Resolve maps a verification tier name to its limit tables. Matching is
// case-insensitive. An unknown name is an error: limits are never
// silently defaulted, because running a session against the wrong tier's
// quotas gets the account banned.
func Resolve(name string) (Tier, error) {
	t, ok := tiers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Tier{}, fmt.Errorf("tier: unknown verification tier %q", name)
	}
	return t, nil
}
