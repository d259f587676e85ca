package policy

import "time"

// ExpirationDefaults fills a draft key's ExpiresAt according to role when
// the caller left it unset: ignition tiers default to short lifetimes,
// Repo/Master/Skull default to unbounded (ExpiresAt stays nil).
type ExpirationDefaults struct {
	IgnitionLifetime time.Duration
	DistroLifetime   time.Duration
	// WarningFraction is the fraction of a key's lifetime remaining at
	// which status() should start flagging it as nearing expiry.
	WarningFraction float64
}

// NewExpirationDefaults returns the spec's documented defaults: ignition
// keys live ~30 days, distro keys ~7 days, with a 20% warning window.
func NewExpirationDefaults() *ExpirationDefaults {
	return &ExpirationDefaults{
		IgnitionLifetime: 30 * 24 * time.Hour,
		DistroLifetime:   7 * 24 * time.Hour,
		WarningFraction:  0.20,
	}
}

func (e *ExpirationDefaults) Name() string { return "expiration-defaults" }

func (e *ExpirationDefaults) ApplyKeyDefaults(draft *DraftKey) error {
	if draft.ExpiresAt != nil {
		return nil
	}

	var lifetime time.Duration
	switch draft.Role {
	case RoleIgnition:
		lifetime = e.IgnitionLifetime
	case RoleDistro:
		lifetime = e.DistroLifetime
	default:
		return nil // Repo/Master/Skull: unbounded unless caller overrides.
	}

	expires := draft.CreatedAt.Add(lifetime)
	draft.ExpiresAt = &expires
	return nil
}

// WarningThreshold returns the instant at which a key created at
// createdAt and expiring at expiresAt enters the warning window.
func (e *ExpirationDefaults) WarningThreshold(createdAt, expiresAt time.Time) time.Time {
	lifetime := expiresAt.Sub(createdAt)
	warn := time.Duration(float64(lifetime) * (1 - e.WarningFraction))
	return createdAt.Add(warn)
}
