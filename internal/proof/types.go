// Package proof implements the Ed25519-over-canonical-JSON signing and
// verification that backs every edge of the authority chain: a parent
// signs an AuthorityClaim over a child's fingerprint, the child signs a
// SubjectReceipt acknowledging the parent, and both travel as a
// ProofBundle the vault persists alongside the key record.
package proof

import "time"

// PayloadKind distinguishes what a ProofBundle's payload is, since the
// two payload shapes are verified identically but carry different fields.
type PayloadKind string

const (
	KindAuthorityClaim  PayloadKind = "authority_claim"
	KindSubjectReceipt  PayloadKind = "subject_receipt"
	schemaVersion                   = 1
)

// AuthorityClaim is signed by a parent key asserting control over a
// specific child fingerprint.
type AuthorityClaim struct {
	SchemaVersion int       `json:"schema_version"`
	ParentFP      string    `json:"parent_fp"`
	ChildFP       string    `json:"child_fp"`
	IssuedAt      time.Time `json:"issued_at"`
	Purpose       string    `json:"purpose"`
	Nonce         string    `json:"nonce"`
}

// SubjectReceipt is signed by a child key acknowledging its parent.
type SubjectReceipt struct {
	SchemaVersion  int       `json:"schema_version"`
	ChildFP        string    `json:"child_fp"`
	ParentFP       string    `json:"parent_fp"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
	Nonce          string    `json:"nonce"`
}

// ProofBundle is the envelope persisted to disk and exchanged between
// verifier and signer: a payload, its canonical digest, the Ed25519
// signature over that digest, the signer's public key, and an expiry.
type ProofBundle struct {
	PayloadKind    PayloadKind     `json:"payload_kind"`
	AuthorityClaim *AuthorityClaim `json:"authority_claim,omitempty"`
	SubjectReceipt *SubjectReceipt `json:"subject_receipt,omitempty"`
	Digest         string          `json:"digest"`     // hex(sha256(canonical(payload)))
	Signature      string          `json:"signature"`  // base64
	PublicKey      string          `json:"public_key"` // base64
	ExpiresAt      time.Time       `json:"expires_at"`
}

// Payload returns the concrete claim or receipt carried by the bundle.
func (b *ProofBundle) Payload() any {
	switch b.PayloadKind {
	case KindAuthorityClaim:
		return b.AuthorityClaim
	case KindSubjectReceipt:
		return b.SubjectReceipt
	default:
		return nil
	}
}

// ParentFingerprint returns the parent_fp field common to both payload
// shapes, or "" if the bundle carries neither.
func (b *ProofBundle) ParentFingerprint() string {
	switch b.PayloadKind {
	case KindAuthorityClaim:
		return b.AuthorityClaim.ParentFP
	case KindSubjectReceipt:
		return b.SubjectReceipt.ParentFP
	default:
		return ""
	}
}

// ChildFingerprint returns the child_fp field common to both payload
// shapes, or "" if the bundle carries neither.
func (b *ProofBundle) ChildFingerprint() string {
	switch b.PayloadKind {
	case KindAuthorityClaim:
		return b.AuthorityClaim.ChildFP
	case KindSubjectReceipt:
		return b.SubjectReceipt.ChildFP
	default:
		return ""
	}
}
