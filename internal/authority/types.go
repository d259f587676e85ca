// Package authority implements the in-memory authority chain and the
// Core facade that wires the Canonical Codec, Proof Engine, Vault
// Storage, Key Material & Wrapping, and Policy Engine into the five
// operations a caller (normally a CLI) drives: create, rotate, revoke,
// and the read-only verify/list/status queries.
package authority

import (
	"time"

	"github.com/padlokk/ignite/internal/keymaterial"
	"github.com/padlokk/ignite/internal/policy"
)

// Role is the five-tier hierarchy's node kind. It is policy.Role so the
// Policy Engine and Authority Chain agree on one vocabulary.
type Role = policy.Role

const (
	RoleSkull    = policy.RoleSkull
	RoleMaster   = policy.RoleMaster
	RoleRepo     = policy.RoleRepo
	RoleIgnition = policy.RoleIgnition
	RoleDistro   = policy.RoleDistro
)

// legalChild maps a parent role to the one role it may parent. Skull has
// no parent; Distro has no legal children.
var legalChild = map[Role]Role{
	RoleSkull:    RoleMaster,
	RoleMaster:   RoleRepo,
	RoleRepo:     RoleIgnition,
	RoleIgnition: RoleDistro,
}

// Status is a key's lifecycle state. Transitions are write-once:
// Active -> Archived or Active -> Revoked, both terminal.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusRevoked  Status = "revoked"
)

// AuthorityKey is one node of the hierarchy.
type AuthorityKey struct {
	Fingerprint string `json:"fingerprint"`
	Role        Role   `json:"role"`
	ParentFP    string `json:"parent_fp,omitempty"`
	PublicKey   string `json:"public_key"` // base64

	// Exactly one of these is set, per role: Master/Repo store raw
	// bytes; Skull/Ignition/Distro store a WrappedPayload.
	PrivateKeyRaw     string                     `json:"private_key_raw,omitempty"`
	WrappedPrivateKey *keymaterial.WrappedPayload `json:"wrapped_private_key,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Status    Status     `json:"status"`

	Scope map[string]any `json:"scope,omitempty"`
	Owner string         `json:"owner,omitempty"`
	Label string         `json:"label,omitempty"`

	// Cached proof locations, populated when the claim/receipt pair is
	// issued at create time. verify_chain and status() use these rather
	// than re-deriving filenames from issued_at/purpose.
	ParentClaimPath   string `json:"parent_claim_path,omitempty"`
	ChildReceiptPath  string `json:"child_receipt_path,omitempty"`
	ParentClaimDigest string `json:"parent_claim_digest,omitempty"`
}

// IsIgnitionTier reports whether this key's private material must be
// passphrase-wrapped.
func (k *AuthorityKey) IsIgnitionTier() bool { return k.Role.IsIgnitionTier() }

// ManifestEvent describes what triggered a manifest.
type ManifestEvent struct {
	OperationID       string    `json:"operation_id"` // correlates this cascade across log lines
	Type              string    `json:"type"`          // "rotation" | "revocation"
	ParentFingerprint string    `json:"parent_fingerprint"`
	InitiatedAt       time.Time `json:"initiated_at"`
	InitiatedBy       string    `json:"initiated_by"`
	Reason            string    `json:"reason,omitempty"`
}

// ManifestDigestRef is the self-describing digest stamped on a manifest.
type ManifestDigestRef struct {
	Algorithm    string `json:"algorithm"`
	Value        string `json:"value"`
	ManifestBody string `json:"manifest_body"`
}

// ManifestChild is one affected key enumerated in a manifest.
type ManifestChild struct {
	Fingerprint   string         `json:"fingerprint"`
	Role          Role           `json:"role"`
	Status        Status         `json:"status"`
	CiphertextMD5 string         `json:"ciphertext_md5,omitempty"`
	Scope         map[string]any `json:"scope,omitempty"`
	IssuedAt      time.Time      `json:"issued_at"`
	RevokedAt     *time.Time     `json:"revoked_at,omitempty"`
}

// Manifest is the immutable record of a rotation or revocation cascade.
type Manifest struct {
	SchemaVersion int               `json:"schema_version"`
	Event         ManifestEvent     `json:"event"`
	Digest        ManifestDigestRef `json:"digest"`
	Children      []ManifestChild   `json:"children"`
}

// manifestBody is Manifest with the digest field elided, per invariant 6:
// digest.value is computed over the canonical body with digest removed.
type manifestBody struct {
	SchemaVersion int             `json:"schema_version"`
	Event         ManifestEvent   `json:"event"`
	Children      []ManifestChild `json:"children"`
}

// Tombstone permanently poisons a fingerprint against re-registration.
type Tombstone struct {
	Fingerprint string    `json:"fingerprint"`
	RevokedAt   time.Time `json:"revoked_at"`
	Reason      string    `json:"reason"`
	ManifestRef string    `json:"manifest_ref"`
}

// ChainHealth summarizes the chain for the status() query.
type ChainHealth struct {
	CountsByRole      map[Role]int `json:"counts_by_role"`
	ExpiringSoon      []string     `json:"expiring_soon"`
	StaleProofs       []string     `json:"stale_proofs"`
	PendingTombstones int          `json:"pending_tombstones"`
}
