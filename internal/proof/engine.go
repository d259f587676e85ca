package proof

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/padlokk/ignite/internal/clock"
	"github.com/padlokk/ignite/internal/codec"
)

const defaultValidity = 24 * time.Hour

// Engine signs and verifies proof bundles. It holds no AuthorityKey state
// of its own; callers pass in whichever Ed25519 private key is signing.
type Engine struct {
	clk             clock.Clock
	rand            io.Reader
	defaultValidity time.Duration
	graceWindow     time.Duration

	mu    sync.RWMutex
	grace map[string]graceEntry // base64(pubkey) -> entry
}

type graceEntry struct {
	pubkey ed25519.PublicKey
	until  time.Time
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithRandReader overrides the CSPRNG source used for nonce generation,
// so tests can inject a deterministic reader.
func WithRandReader(r io.Reader) Option {
	return func(e *Engine) { e.rand = r }
}

// WithDefaultValidity overrides the default 24h claim/receipt lifetime.
func WithDefaultValidity(d time.Duration) Option {
	return func(e *Engine) { e.defaultValidity = d }
}

// WithGraceWindow sets the clock-skew grace applied to expiry checks.
// Must never be negative.
func WithGraceWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d < 0 {
			d = 0
		}
		e.graceWindow = d
	}
}

// NewEngine constructs a proof Engine backed by clk for timestamps.
func NewEngine(clk clock.Clock, opts ...Option) *Engine {
	e := &Engine{
		clk:             clk,
		rand:            rand.Reader,
		defaultValidity: defaultValidity,
		grace:           make(map[string]graceEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterGraceKey retains an old signing public key as valid until the
// given time, so proofs signed before a signing-key rotation still verify.
func (e *Engine) RegisterGraceKey(pub ed25519.PublicKey, until time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.grace[base64.StdEncoding.EncodeToString(pub)] = graceEntry{pubkey: pub, until: until}
}

func (e *Engine) nonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := io.ReadFull(e.rand, buf); err != nil {
		return "", newError("nonce", CryptoBackendUnavailable, err)
	}
	return hex.EncodeToString(buf), nil
}

// SignAuthorityClaim builds and signs an AuthorityClaim asserting that
// parentFP controls childFP for the given purpose (e.g. "create-ignition").
func (e *Engine) SignAuthorityClaim(signer ed25519.PrivateKey, parentFP, childFP, purpose string) (*ProofBundle, error) {
	nonce, err := e.nonce()
	if err != nil {
		return nil, err
	}
	issuedAt := e.clk.Now()
	claim := &AuthorityClaim{
		SchemaVersion: schemaVersion,
		ParentFP:      parentFP,
		ChildFP:       childFP,
		IssuedAt:      issuedAt,
		Purpose:       purpose,
		Nonce:         nonce,
	}

	bundle := &ProofBundle{
		PayloadKind:    KindAuthorityClaim,
		AuthorityClaim: claim,
		ExpiresAt:      issuedAt.Add(e.defaultValidity),
	}
	if err := e.sign(bundle, claim, signer); err != nil {
		return nil, err
	}
	return bundle, nil
}

// IssueSubjectReceipt builds and signs a SubjectReceipt by which childFP
// acknowledges parentFP.
func (e *Engine) IssueSubjectReceipt(signer ed25519.PrivateKey, childFP, parentFP string) (*ProofBundle, error) {
	nonce, err := e.nonce()
	if err != nil {
		return nil, err
	}
	ackAt := e.clk.Now()
	receipt := &SubjectReceipt{
		SchemaVersion:  schemaVersion,
		ChildFP:        childFP,
		ParentFP:       parentFP,
		AcknowledgedAt: ackAt,
		Nonce:          nonce,
	}

	bundle := &ProofBundle{
		PayloadKind:    KindSubjectReceipt,
		SubjectReceipt: receipt,
		ExpiresAt:      ackAt.Add(e.defaultValidity),
	}
	if err := e.sign(bundle, receipt, signer); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (e *Engine) sign(bundle *ProofBundle, payload any, signer ed25519.PrivateKey) error {
	digest, err := codec.Digest(payload)
	if err != nil {
		return newError("sign", CryptoBackendUnavailable, err)
	}
	sig := ed25519.Sign(signer, digest[:])

	pub, ok := signer.Public().(ed25519.PublicKey)
	if !ok {
		return newError("sign", CryptoBackendUnavailable, fmt.Errorf("signer has no ed25519 public key"))
	}

	bundle.Digest = hex.EncodeToString(digest[:])
	bundle.Signature = base64.StdEncoding.EncodeToString(sig)
	bundle.PublicKey = base64.StdEncoding.EncodeToString(pub)
	return nil
}

// Verify recomputes the canonical digest of bundle's payload, checks the
// Ed25519 signature, confirms the embedded public key matches
// expectedSignerPubkey (or a still-in-grace retired key), checks
// non-expiry, and cross-checks the caller-asserted parent/child
// fingerprints.
func (e *Engine) Verify(bundle *ProofBundle, expectedSignerPubkey ed25519.PublicKey, wantParentFP, wantChildFP string) error {
	payload := bundle.Payload()
	if payload == nil {
		return newError("verify", SignatureInvalid, fmt.Errorf("unknown payload kind %q", bundle.PayloadKind))
	}

	digest, err := codec.Digest(payload)
	if err != nil {
		return newError("verify", Tampered, err)
	}
	wantDigest := hex.EncodeToString(digest[:])
	if wantDigest != bundle.Digest {
		return newError("verify", Tampered, fmt.Errorf("recomputed digest %s does not match stored digest %s", wantDigest, bundle.Digest))
	}

	sig, err := base64.StdEncoding.DecodeString(bundle.Signature)
	if err != nil {
		return newError("verify", SignatureInvalid, fmt.Errorf("malformed signature encoding: %w", err))
	}
	pub, err := base64.StdEncoding.DecodeString(bundle.PublicKey)
	if err != nil {
		return newError("verify", SignatureInvalid, fmt.Errorf("malformed public key encoding: %w", err))
	}

	if !e.trustedKey(ed25519.PublicKey(pub), expectedSignerPubkey) {
		return newError("verify", FingerprintMismatch, fmt.Errorf("embedded public key is not the expected signer and carries no active grace"))
	}

	if !ed25519.Verify(ed25519.PublicKey(pub), digest[:], sig) {
		return newError("verify", SignatureInvalid, fmt.Errorf("ed25519 signature does not verify"))
	}

	now := e.clk.Now()
	if !now.Before(bundle.ExpiresAt.Add(e.graceWindow)) {
		return newError("verify", Expired, fmt.Errorf("proof expired at %s (now %s)", bundle.ExpiresAt, now))
	}

	if bundle.ParentFingerprint() != wantParentFP {
		return newError("verify", FingerprintMismatch, fmt.Errorf("parent fingerprint mismatch: bundle=%s want=%s", bundle.ParentFingerprint(), wantParentFP))
	}
	if bundle.ChildFingerprint() != wantChildFP {
		return newError("verify", FingerprintMismatch, fmt.Errorf("child fingerprint mismatch: bundle=%s want=%s", bundle.ChildFingerprint(), wantChildFP))
	}

	return nil
}

// VerifySelfConsistent checks a bundle's internal consistency without an
// expected signer or asserted fingerprints: digest matches, signature
// verifies under the bundle's own embedded public key, and it has not
// expired. It is used for "inspect this file in isolation" callers (the
// verify_proof external operation) that have no independent source for
// the expected signer.
func (e *Engine) VerifySelfConsistent(bundle *ProofBundle) error {
	payload := bundle.Payload()
	if payload == nil {
		return newError("verify_self_consistent", SignatureInvalid, fmt.Errorf("unknown payload kind %q", bundle.PayloadKind))
	}

	digest, err := codec.Digest(payload)
	if err != nil {
		return newError("verify_self_consistent", Tampered, err)
	}
	if hex.EncodeToString(digest[:]) != bundle.Digest {
		return newError("verify_self_consistent", Tampered, fmt.Errorf("recomputed digest does not match stored digest"))
	}

	sig, err := base64.StdEncoding.DecodeString(bundle.Signature)
	if err != nil {
		return newError("verify_self_consistent", SignatureInvalid, err)
	}
	pub, err := base64.StdEncoding.DecodeString(bundle.PublicKey)
	if err != nil {
		return newError("verify_self_consistent", SignatureInvalid, err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), digest[:], sig) {
		return newError("verify_self_consistent", SignatureInvalid, fmt.Errorf("ed25519 signature does not verify"))
	}

	now := e.clk.Now()
	if !now.Before(bundle.ExpiresAt.Add(e.graceWindow)) {
		return newError("verify_self_consistent", Expired, fmt.Errorf("proof expired at %s (now %s)", bundle.ExpiresAt, now))
	}
	return nil
}

func (e *Engine) trustedKey(embedded, expected ed25519.PublicKey) bool {
	if expected != nil && string(embedded) == string(expected) {
		return true
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.grace[base64.StdEncoding.EncodeToString(embedded)]
	if !ok {
		return false
	}
	return e.clk.Now().Before(entry.until)
}
