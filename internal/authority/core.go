package authority

import (
	"context"
	"crypto/ed25519"
	crand "crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/padlokk/ignite/internal/clock"
	"github.com/padlokk/ignite/internal/codec"
	"github.com/padlokk/ignite/internal/keymaterial"
	"github.com/padlokk/ignite/internal/policy"
	"github.com/padlokk/ignite/internal/proof"
	"github.com/padlokk/ignite/internal/vault"
)

var allRoles = []Role{RoleSkull, RoleMaster, RoleRepo, RoleIgnition, RoleDistro}

// Core is the public facade the CLI (or any other caller) drives: it
// wires the Canonical Codec, Proof Engine, Vault Storage, Key Material &
// Wrapping, and Policy Engine behind the eight operations spec.md names.
type Core struct {
	vault  *vault.Vault
	chain  *Chain
	bundle *policy.Bundle
	exp    *policy.ExpirationDefaults
	engine *proof.Engine

	clk         clock.Clock
	rnd         io.Reader
	log         *logrus.Entry
	lockTimeout time.Duration

	// allowSkullRotation gates the emergency Skull-rotation path. The
	// spec leaves the dual-control workflow for Skull rotation as an
	// open question; this core exposes only the on/off hook.
	allowSkullRotation bool
}

// Option configures a Core at construction time.
type Option func(*Core)

func WithLockTimeout(d time.Duration) Option {
	return func(c *Core) { c.lockTimeout = d }
}

func WithRandReader(r io.Reader) Option {
	return func(c *Core) { c.rnd = r }
}

func WithAllowSkullRotation(allow bool) Option {
	return func(c *Core) { c.allowSkullRotation = allow }
}

// Open opens the vault at root, loads metadata/policy.toml (or its
// built-in defaults), replays every persisted key into the in-memory
// chain, and returns a ready-to-use Core.
func Open(root string, clk clock.Clock, log *logrus.Entry, opts ...Option) (*Core, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	v, err := vault.Open(root, log)
	if err != nil {
		return nil, err
	}

	cfg, err := v.ReadPolicyConfig()
	if err != nil {
		return nil, err
	}

	exp := policy.NewExpirationDefaults()
	exp.IgnitionLifetime = time.Duration(cfg.Expiration.IgnitionDays) * 24 * time.Hour
	exp.DistroLifetime = time.Duration(cfg.Expiration.DistroDays) * 24 * time.Hour
	exp.WarningFraction = cfg.Expiration.WarningFraction

	strength := policy.NewPassphraseStrength()
	strength.MinLength = cfg.Passphrase.MinLength
	strength.MinDiversity = cfg.Passphrase.MinDiversity
	for _, banned := range cfg.Passphrase.BannedSet {
		strength.Banned[banned] = struct{}{}
	}

	c := &Core{
		vault:       v,
		chain:       NewChain(),
		bundle:      policy.NewBundle(exp, strength),
		exp:         exp,
		clk:         clk,
		rnd:         nil,
		log:         log.WithField("component", "authority"),
		lockTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rnd == nil {
		c.rnd = crand.Reader
	}
	c.engine = proof.NewEngine(clk, proof.WithRandReader(c.rnd), proof.WithDefaultValidity(24*time.Hour))

	if err := c.loadChain(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Core) loadChain() error {
	for _, role := range allRoles {
		role := role
		err := c.vault.ListKeys(role, func(data []byte) error {
			var k AuthorityKey
			if err := json.Unmarshal(data, &k); err != nil {
				return err
			}
			c.chain.Register(&k)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func decodePub(b64 string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	return ed25519.PublicKey(raw), nil
}

func (c *Core) wrapAAD(k *AuthorityKey) ([]byte, error) {
	return codec.Canonicalize(map[string]any{
		"fingerprint": k.Fingerprint,
		"role":        string(k.Role),
		"created_at":  k.CreatedAt.Format(time.RFC3339),
	})
}

// resolveSigningKey recovers the raw Ed25519 private key backing k,
// unwrapping it with passphrase if k's material is passphrase-wrapped.
// Callers must keymaterial.Wipe the result once they are done signing.
func (c *Core) resolveSigningKey(k *AuthorityKey, passphrase string) (ed25519.PrivateKey, error) {
	if k.WrappedPrivateKey != nil {
		aad, err := c.wrapAAD(k)
		if err != nil {
			return nil, err
		}
		wrapper := &keymaterial.Argon2XChaChaWrapper{Params: k.WrappedPrivateKey.KDFParams, Rand: c.rnd}
		return wrapper.Unwrap(passphrase, k.WrappedPrivateKey, aad)
	}
	raw, err := base64.StdEncoding.DecodeString(k.PrivateKeyRaw)
	if err != nil {
		return nil, fmt.Errorf("decode raw private key: %w", err)
	}
	return ed25519.PrivateKey(raw), nil
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	ParentFP string
	Role     Role
	// Passphrase wraps the new key's own private material; required iff
	// Role is an ignition tier.
	Passphrase string
	// ParentPassphrase unwraps the parent's private material so it can
	// sign the child's AuthorityClaim; required iff the parent is itself
	// an ignition tier (Skull or Ignition parents).
	ParentPassphrase string
	OwnerID          string
	Scope            map[string]any
}

// Create mints a new key under parentFP (or bootstraps a parentless
// Skull), applying policy defaults/validation, generating and wrapping
// key material, and issuing the AuthorityClaim/SubjectReceipt pair.
func (c *Core) Create(req CreateRequest) (*AuthorityKey, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.lockTimeout)
	defer cancel()
	unlock, err := c.vault.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return c.createLocked(req)
}

func (c *Core) createLocked(req CreateRequest) (*AuthorityKey, error) {
	opID := uuid.NewString()
	log := c.log.WithField("operation_id", opID)
	now := c.clk.Now()

	var parent *AuthorityKey
	if req.Role == RoleSkull {
		if req.ParentFP != "" {
			return nil, newAuthorityError("create", IllegalEdge, fmt.Errorf("skull keys must not have a parent"))
		}
	} else {
		p, ok := c.chain.Get(req.ParentFP)
		if !ok {
			return nil, newAuthorityError("create", ParentNotFound, fmt.Errorf("parent %s not found", req.ParentFP))
		}
		if p.Status != StatusActive {
			return nil, newAuthorityError("create", ParentInactive, fmt.Errorf("parent %s is %s", req.ParentFP, p.Status))
		}
		want, ok := legalChild[p.Role]
		if !ok || want != req.Role {
			return nil, newAuthorityError("create", IllegalEdge, fmt.Errorf("%s may not parent a %s", p.Role, req.Role))
		}
		parent = p
	}

	draft := &policy.DraftKey{Role: req.Role, ParentFP: req.ParentFP, OwnerID: req.OwnerID, Scope: req.Scope, CreatedAt: now}
	if err := c.bundle.ApplyKeyDefaults(draft); err != nil {
		return nil, err
	}
	if err := c.bundle.ValidateKey(draft); err != nil {
		return nil, err
	}

	if req.Role.IsIgnitionTier() {
		if err := c.bundle.ValidatePassphrase(req.Passphrase, req.Role); err != nil {
			return nil, err
		}
	} else if req.Passphrase != "" {
		return nil, newAuthorityError("create", PassphraseNotAllowed, fmt.Errorf("%s keys are not passphrase-wrapped", req.Role))
	}

	pub, priv, err := keymaterial.GenerateKeypair(c.rnd)
	if err != nil {
		return nil, err
	}
	fp := keymaterial.Fingerprint(pub)

	if err := c.vault.CheckNotPoisoned(fp); err != nil {
		return nil, err
	}
	if _, exists := c.chain.Get(fp); exists {
		return nil, newAuthorityError("create", AlreadyExists, fmt.Errorf("fingerprint collision on %s", fp))
	}

	key := &AuthorityKey{
		Fingerprint: fp,
		Role:        req.Role,
		ParentFP:    req.ParentFP,
		PublicKey:   base64.StdEncoding.EncodeToString(pub),
		CreatedAt:   now,
		ExpiresAt:   draft.ExpiresAt,
		Status:      StatusActive,
		Scope:       draft.Scope,
		Owner:       req.OwnerID,
	}

	// Issue proofs while priv is still raw: the child signs its own
	// SubjectReceipt before any wrapping/wiping happens below.
	if parent != nil {
		parentSigner, err := c.resolveSigningKey(parent, req.ParentPassphrase)
		if err != nil {
			return nil, err
		}
		purpose := fmt.Sprintf("create-%s", req.Role)
		claimBundle, err := c.engine.SignAuthorityClaim(parentSigner, parent.Fingerprint, fp, purpose)
		keymaterial.Wipe(parentSigner)
		if err != nil {
			return nil, err
		}

		receiptBundle, err := c.engine.IssueSubjectReceipt(priv, fp, parent.Fingerprint)
		if err != nil {
			return nil, err
		}

		claimPath, err := c.vault.WriteProof(parent.Fingerprint, claimBundle.AuthorityClaim.IssuedAt, purpose, claimBundle)
		if err != nil {
			return nil, err
		}
		receiptPath, err := c.vault.WriteProof(parent.Fingerprint, receiptBundle.SubjectReceipt.AcknowledgedAt, "subject-receipt", receiptBundle)
		if err != nil {
			return nil, err
		}

		key.ParentClaimPath = claimPath
		key.ChildReceiptPath = receiptPath
		key.ParentClaimDigest = claimBundle.Digest
	}

	if req.Role.IsIgnitionTier() {
		aad, err := c.wrapAAD(key)
		if err != nil {
			return nil, err
		}
		wrapper, err := keymaterial.NewArgon2XChaChaWrapper(c.rnd)
		if err != nil {
			return nil, err
		}
		wrapped, err := wrapper.Wrap(req.Passphrase, priv, aad)
		if err != nil {
			return nil, err
		}
		key.WrappedPrivateKey = wrapped
	} else {
		key.PrivateKeyRaw = base64.StdEncoding.EncodeToString(priv)
		keymaterial.Wipe(priv)
	}

	if err := c.vault.WriteKey(req.Role, fp, key); err != nil {
		return nil, err
	}

	c.chain.Register(key)
	log.WithFields(logrus.Fields{"fingerprint": fp, "role": req.Role}).Info("authority key created")
	return key, nil
}

func computeManifestDigest(event ManifestEvent, children []ManifestChild) (ManifestDigestRef, error) {
	body := manifestBody{SchemaVersion: 1, Event: event, Children: children}
	d, err := codec.Digest(body)
	if err != nil {
		return ManifestDigestRef{}, err
	}
	return ManifestDigestRef{Algorithm: "SHA256", Value: hex.EncodeToString(d[:]), ManifestBody: "canonical"}, nil
}

func sortChildren(children []ManifestChild) {
	sort.Slice(children, func(i, j int) bool {
		if children[i].Role != children[j].Role {
			return children[i].Role < children[j].Role
		}
		return children[i].Fingerprint < children[j].Fingerprint
	})
}

// RotateRequest is the input to Rotate.
type RotateRequest struct {
	TargetFP string
	// NewPassphrase wraps the newly minted successor, if its role is an
	// ignition tier.
	NewPassphrase string
	// ParentPassphrase unwraps the target's parent so it can sign both
	// the successor's AuthorityClaim and the archival claim over the
	// retiring key. Unused when TargetFP names a Skull (no parent).
	ParentPassphrase string
	Reason           string
}

// Rotate mints a same-role, same-parent successor for TargetFP, archives
// the old record (signed by its parent), revokes every transitive
// dependent with a tombstone, and emits a manifest enumerating the
// cascade. The manifest is written last, so its presence on disk proves
// the whole cascade committed.
func (c *Core) Rotate(req RotateRequest) (*AuthorityKey, *Manifest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.lockTimeout)
	defer cancel()
	unlock, err := c.vault.Lock(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	target, ok := c.chain.Get(req.TargetFP)
	if !ok {
		return nil, nil, newAuthorityError("rotate", ParentNotFound, fmt.Errorf("target %s not found", req.TargetFP))
	}
	if target.Status != StatusActive {
		return nil, nil, newAuthorityError("rotate", NotActive, fmt.Errorf("target %s is %s", req.TargetFP, target.Status))
	}
	if target.Role == RoleSkull && !c.allowSkullRotation {
		return nil, nil, newAuthorityError("rotate", SkullRotationDisallowed, fmt.Errorf("skull rotation requires an explicit policy opt-in"))
	}

	dependentFPs := c.chain.Dependents(req.TargetFP)
	dependents := make([]*AuthorityKey, 0, len(dependentFPs))
	for _, fp := range dependentFPs {
		if k, ok := c.chain.Get(fp); ok {
			snapshot := *k
			dependents = append(dependents, &snapshot)
		}
	}

	newKey, err := c.createLocked(CreateRequest{
		ParentFP:         target.ParentFP,
		Role:             target.Role,
		Passphrase:       req.NewPassphrase,
		ParentPassphrase: req.ParentPassphrase,
		OwnerID:          target.Owner,
		Scope:            target.Scope,
	})
	if err != nil {
		return nil, nil, err
	}

	now := c.clk.Now()

	archivedKey := *target
	archivedKey.Status = StatusArchived
	archivePayload := map[string]any{
		"archived_at": now.Format(time.RFC3339),
		"key":         archivedKey,
	}
	if target.ParentFP != "" {
		parent, ok := c.chain.Get(target.ParentFP)
		if !ok {
			return nil, nil, newAuthorityError("rotate", ParentNotFound, fmt.Errorf("archival parent %s vanished mid-rotation", target.ParentFP))
		}
		parentSigner, serr := c.resolveSigningKey(parent, req.ParentPassphrase)
		if serr != nil {
			return nil, nil, fmt.Errorf("rotate: resolve archival signer: %w", serr)
		}
		archivalClaim, cerr := c.engine.SignAuthorityClaim(parentSigner, parent.Fingerprint, target.Fingerprint, "archive-"+string(target.Role))
		keymaterial.Wipe(parentSigner)
		if cerr != nil {
			return nil, nil, fmt.Errorf("rotate: sign archival claim: %w", cerr)
		}
		archivePayload["archival_proof"] = archivalClaim
	}
	if _, err := c.vault.WriteArchive(now, target.Role, archivePayload); err != nil {
		return nil, nil, err
	}
	if err := c.vault.DeleteKey(target.Role, target.Fingerprint); err != nil {
		return nil, nil, err
	}
	if err := c.chain.SetStatus(target.Fingerprint, StatusArchived); err != nil {
		return nil, nil, err
	}
	c.chain.Remove(target.Fingerprint)

	event := ManifestEvent{
		OperationID:       uuid.NewString(),
		Type:              "rotation",
		ParentFingerprint: target.ParentFP,
		InitiatedAt:       now,
		InitiatedBy:       "system",
		Reason:            req.Reason,
	}
	manifestRef := c.vault.ManifestPath(event.ParentFingerprint, now, event.Type)

	children := []ManifestChild{{
		Fingerprint: target.Fingerprint,
		Role:        target.Role,
		Status:      StatusArchived,
		Scope:       target.Scope,
		IssuedAt:    target.CreatedAt,
	}}

	for _, dep := range dependents {
		tomb := Tombstone{Fingerprint: dep.Fingerprint, RevokedAt: now, Reason: "cascade-rotation", ManifestRef: manifestRef}
		if err := c.vault.WriteTombstone(dep.Fingerprint, tomb); err != nil {
			return nil, nil, err
		}
		dep.Status = StatusRevoked
		if err := c.vault.WriteKey(dep.Role, dep.Fingerprint, dep); err != nil {
			return nil, nil, err
		}
		if err := c.chain.SetStatus(dep.Fingerprint, StatusRevoked); err != nil {
			return nil, nil, err
		}
		c.chain.Remove(dep.Fingerprint)

		revokedAt := now
		children = append(children, ManifestChild{
			Fingerprint: dep.Fingerprint,
			Role:        dep.Role,
			Status:      StatusRevoked,
			Scope:       dep.Scope,
			IssuedAt:    dep.CreatedAt,
			RevokedAt:   &revokedAt,
		})
	}
	sortChildren(children)

	digestRef, err := computeManifestDigest(event, children)
	if err != nil {
		return nil, nil, err
	}
	manifest := &Manifest{SchemaVersion: 1, Event: event, Digest: digestRef, Children: children}
	if _, err := c.vault.WriteManifest(event.ParentFingerprint, now, event.Type, manifest); err != nil {
		return nil, nil, err
	}

	c.log.WithFields(logrus.Fields{"operation_id": event.OperationID, "target": target.Fingerprint, "successor": newKey.Fingerprint, "dependents": len(dependents)}).Info("authority key rotated")
	return newKey, manifest, nil
}

// RevokeRequest is the input to Revoke.
type RevokeRequest struct {
	TargetFP string
	Reason   string
}

// Revoke marks TargetFP and every transitive dependent Revoked, writes a
// tombstone for each, and emits a manifest. No replacement key is
// minted.
func (c *Core) Revoke(req RevokeRequest) (*Manifest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.lockTimeout)
	defer cancel()
	unlock, err := c.vault.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	target, ok := c.chain.Get(req.TargetFP)
	if !ok {
		return nil, newAuthorityError("revoke", ParentNotFound, fmt.Errorf("target %s not found", req.TargetFP))
	}
	if target.Status != StatusActive {
		return nil, newAuthorityError("revoke", NotActive, fmt.Errorf("target %s is %s", req.TargetFP, target.Status))
	}

	now := c.clk.Now()
	event := ManifestEvent{
		OperationID:       uuid.NewString(),
		Type:              "revocation",
		ParentFingerprint: target.ParentFP,
		InitiatedAt:       now,
		InitiatedBy:       "system",
		Reason:            req.Reason,
	}
	manifestRef := c.vault.ManifestPath(event.ParentFingerprint, now, event.Type)

	fps := append([]string{target.Fingerprint}, c.chain.Dependents(req.TargetFP)...)
	children := make([]ManifestChild, 0, len(fps))
	for _, fp := range fps {
		k, ok := c.chain.Get(fp)
		if !ok {
			continue
		}
		snapshot := *k

		tomb := Tombstone{Fingerprint: fp, RevokedAt: now, Reason: req.Reason, ManifestRef: manifestRef}
		if err := c.vault.WriteTombstone(fp, tomb); err != nil {
			return nil, err
		}
		snapshot.Status = StatusRevoked
		if err := c.vault.WriteKey(snapshot.Role, fp, &snapshot); err != nil {
			return nil, err
		}
		if err := c.chain.SetStatus(fp, StatusRevoked); err != nil {
			return nil, err
		}
		c.chain.Remove(fp)

		revokedAt := now
		children = append(children, ManifestChild{
			Fingerprint: snapshot.Fingerprint,
			Role:        snapshot.Role,
			Status:      StatusRevoked,
			Scope:       snapshot.Scope,
			IssuedAt:    snapshot.CreatedAt,
			RevokedAt:   &revokedAt,
		})
	}
	sortChildren(children)

	digestRef, err := computeManifestDigest(event, children)
	if err != nil {
		return nil, err
	}
	manifest := &Manifest{SchemaVersion: 1, Event: event, Digest: digestRef, Children: children}
	if _, err := c.vault.WriteManifest(event.ParentFingerprint, now, event.Type, manifest); err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{"operation_id": event.OperationID, "target": target.Fingerprint, "affected": len(children)}).Info("authority key revoked")
	return manifest, nil
}

// verifyEdge checks that child's AuthorityClaim (signed by parent) and
// SubjectReceipt (signed by child) both verify against each other's
// asserted fingerprints.
func (c *Core) verifyEdge(child, parent *AuthorityKey) error {
	parentPub, err := decodePub(parent.PublicKey)
	if err != nil {
		return newChainError(child.Fingerprint, BrokenLink, err)
	}
	childPub, err := decodePub(child.PublicKey)
	if err != nil {
		return newChainError(child.Fingerprint, BrokenLink, err)
	}

	var claim proof.ProofBundle
	if err := c.vault.ReadProof(child.ParentClaimPath, &claim); err != nil {
		return newChainError(child.Fingerprint, BrokenLink, err)
	}
	if err := c.engine.Verify(&claim, parentPub, parent.Fingerprint, child.Fingerprint); err != nil {
		return newChainError(child.Fingerprint, BrokenLink, err)
	}

	var receipt proof.ProofBundle
	if err := c.vault.ReadProof(child.ChildReceiptPath, &receipt); err != nil {
		return newChainError(child.Fingerprint, BrokenLink, err)
	}
	if err := c.engine.Verify(&receipt, childPub, parent.Fingerprint, child.Fingerprint); err != nil {
		return newChainError(child.Fingerprint, BrokenLink, err)
	}
	return nil
}

// VerifyChain walks from fp to Skull, checking that every edge's proofs
// verify, every key on the path is Active, and no expiration has passed.
func (c *Core) VerifyChain(fp string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.lockTimeout)
	defer cancel()
	unlock, err := c.vault.RLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	cur, ok := c.chain.Get(fp)
	if !ok {
		return newChainError(fp, BrokenLink, fmt.Errorf("fingerprint not registered"))
	}

	now := c.clk.Now()
	for cur.Role != RoleSkull {
		if cur.Status != StatusActive {
			return newChainError(cur.Fingerprint, LinkNotActive, fmt.Errorf("status is %s", cur.Status))
		}
		if cur.ExpiresAt != nil && !now.Before(*cur.ExpiresAt) {
			return newChainError(cur.Fingerprint, LinkExpired, fmt.Errorf("expired at %s", cur.ExpiresAt))
		}

		parent, ok := c.chain.Get(cur.ParentFP)
		if !ok {
			return newChainError(cur.Fingerprint, BrokenLink, fmt.Errorf("parent %s missing", cur.ParentFP))
		}
		if err := c.verifyEdge(cur, parent); err != nil {
			return err
		}
		cur = parent
	}

	if cur.Status != StatusActive {
		return newChainError(cur.Fingerprint, LinkNotActive, fmt.Errorf("skull status is %s", cur.Status))
	}
	return nil
}

// VerifyProof checks a single proof bundle file in isolation: digest,
// signature under its own embedded key, and non-expiry.
func (c *Core) VerifyProof(path string) error {
	var bundle proof.ProofBundle
	if err := c.vault.ReadProof(path, &bundle); err != nil {
		return err
	}
	return c.engine.VerifySelfConsistent(&bundle)
}

// VerifyManifest recomputes a manifest's digest.value over its canonical
// body with the digest field elided and compares against the stored
// value.
func (c *Core) VerifyManifest(path string) error {
	var m Manifest
	if err := c.vault.ReadManifest(path, &m); err != nil {
		return err
	}
	recomputed, err := computeManifestDigest(m.Event, m.Children)
	if err != nil {
		return err
	}
	if recomputed.Value != m.Digest.Value {
		return newChainError("", BrokenLink, fmt.Errorf("manifest digest mismatch: stored=%s recomputed=%s", m.Digest.Value, recomputed.Value))
	}
	return nil
}

// List returns every key matching roleFilter (or every key if nil),
// sorted by fingerprint.
func (c *Core) List(roleFilter *Role) []*AuthorityKey {
	return c.chain.List(roleFilter)
}

// Status summarizes the chain's health: counts per role, keys entering
// their expiration warning window, keys whose proofs no longer verify,
// and how many tombstones are pending on disk.
func (c *Core) Status() (ChainHealth, error) {
	now := c.clk.Now()
	health := ChainHealth{CountsByRole: make(map[Role]int)}

	for _, k := range c.chain.List(nil) {
		health.CountsByRole[k.Role]++

		if k.ExpiresAt != nil {
			warnAt := c.exp.WarningThreshold(k.CreatedAt, *k.ExpiresAt)
			if !now.Before(warnAt) && now.Before(*k.ExpiresAt) {
				health.ExpiringSoon = append(health.ExpiringSoon, k.Fingerprint)
			}
		}

		if k.Role != RoleSkull && k.ParentClaimPath != "" {
			if parent, ok := c.chain.Get(k.ParentFP); ok {
				if err := c.verifyEdge(k, parent); err != nil {
					health.StaleProofs = append(health.StaleProofs, k.Fingerprint)
				}
			}
		}
	}

	pending, err := c.vault.CountTombstones()
	if err != nil {
		return health, err
	}
	health.PendingTombstones = pending

	return health, nil
}
