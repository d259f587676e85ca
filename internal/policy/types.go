// Package policy centralizes the business rules the Authority Chain would
// otherwise scatter across its operations: what a new key's defaults
// should be, whether a draft key is structurally valid, and whether a
// passphrase is strong enough for an ignition-tier key.
package policy

import "time"

// Role mirrors the authority package's KeyRole without importing it, so
// that package can depend on policy rather than the reverse.
type Role string

const (
	RoleSkull    Role = "skull"
	RoleMaster   Role = "master"
	RoleRepo     Role = "repo"
	RoleIgnition Role = "ignition"
	RoleDistro   Role = "distro"
)

// IsIgnitionTier reports whether role's private material must be
// passphrase-wrapped (Skull, Ignition, Distro).
func (r Role) IsIgnitionTier() bool {
	switch r {
	case RoleSkull, RoleIgnition, RoleDistro:
		return true
	default:
		return false
	}
}

// DraftKey is the mutable record policies observe and amend before a key
// is persisted.
type DraftKey struct {
	Role      Role
	ParentFP  string
	OwnerID   string
	Scope     map[string]any
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// KeyDefaulter fills in fields a caller left unset.
type KeyDefaulter interface {
	ApplyKeyDefaults(draft *DraftKey) error
}

// KeyValidator rejects structurally invalid drafts.
type KeyValidator interface {
	ValidateKey(draft *DraftKey) error
}

// PassphraseValidator enforces strength rules for ignition tiers.
type PassphraseValidator interface {
	ValidatePassphrase(passphrase string, role Role) error
}

// Named gives a policy a stable name for logging and bundle introspection.
type Named interface {
	Name() string
}
