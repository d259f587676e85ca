// Package vault implements the Authority Core's durable storage layer:
// a filesystem tree under an XDG-resolved root, atomic writes, OS-level
// locking for single-writer/multi-reader access, and tombstone checks
// that keep a retired fingerprint from ever being reissued.
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/padlokk/ignite/internal/codec"
	"github.com/padlokk/ignite/internal/policy"
)

const lockRetryDelay = 25 * time.Millisecond

// Vault is a handle on one vault root. It is not safe for concurrent use
// by multiple goroutines against the same *Vault; the exclusive/shared
// file lock only serializes access across processes.
type Vault struct {
	root string
	fl   *flock.Flock
	log  *logrus.Entry
}

// Open prepares a vault rooted at root: it ensures the directory tree
// exists and sweeps any stray *.tmp files left by a prior crash before
// handing back a handle. It does not itself acquire the vault lock.
func Open(root string, log *logrus.Entry) (*Vault, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, newError("open", Transient, fmt.Errorf("mkdir root: %w", err))
	}
	if err := sweepStrayTmp(root); err != nil {
		return nil, err
	}
	return &Vault{
		root: root,
		fl:   flock.New(lockPath(root)),
		log:  log.WithField("component", "vault"),
	}, nil
}

// Root returns the vault's filesystem root.
func (v *Vault) Root() string { return v.root }

// PolicyPath returns the path of metadata/policy.toml under this vault.
func (v *Vault) PolicyPath() string { return policyPath(v.root) }

// Lock acquires the exclusive vault lock for the duration of a mutating
// operation, blocking until ctx's deadline. The returned func releases
// it; callers must defer it.
func (v *Vault) Lock(ctx context.Context) (func() error, error) {
	ok, err := v.fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, newError("lock", Transient, err)
	}
	if !ok {
		return nil, newError("lock", LockTimeout, fmt.Errorf("exclusive lock not acquired before deadline"))
	}
	return v.fl.Unlock, nil
}

// RLock acquires a shared vault lock, suitable for read-only operations
// that must not run concurrently with a mutation.
func (v *Vault) RLock(ctx context.Context) (func() error, error) {
	ok, err := v.fl.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, newError("rlock", Transient, err)
	}
	if !ok {
		return nil, newError("rlock", LockTimeout, fmt.Errorf("shared lock not acquired before deadline"))
	}
	return v.fl.Unlock, nil
}

func writeRecord(path string, value any) error {
	data, err := codec.Canonicalize(value)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// readRecord loads path, rejects it with Error{Kind: Tampered} if it is
// not in canonical form, and decodes it into out.
func readRecord(path string, out any) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newError("read", NotFound, err)
		}
		return nil, newError("read", Transient, err)
	}
	if !codec.VerifyCanonical(data) {
		return nil, newError("read", Tampered, fmt.Errorf("%s is not in canonical form", path))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, newError("read", Tampered, err)
		}
	}
	return data, nil
}

// WriteKey persists record at keys/<role>/<short>/<fingerprint>.json.
func (v *Vault) WriteKey(role policy.Role, fingerprint string, record any) error {
	return writeRecord(keyPath(v.root, role, fingerprint), record)
}

// ReadKey decodes the key record for (role, fingerprint) into out.
func (v *Vault) ReadKey(role policy.Role, fingerprint string, out any) error {
	_, err := readRecord(keyPath(v.root, role, fingerprint), out)
	return err
}

// DeleteKey removes a key record, used when rotation moves it to archive.
func (v *Vault) DeleteKey(role policy.Role, fingerprint string) error {
	if err := os.Remove(keyPath(v.root, role, fingerprint)); err != nil && !os.IsNotExist(err) {
		return newError("delete_key", Transient, err)
	}
	return nil
}

// ListKeys decodes every key record under role into outs via decodeEach,
// which receives the raw canonical bytes of each file in turn.
func (v *Vault) ListKeys(role policy.Role, decodeEach func(data []byte) error) error {
	dir := keyRoleDir(v.root, role)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return newError("list_keys", Transient, err)
	}
	for _, shortDir := range entries {
		if !shortDir.IsDir() {
			continue
		}
		files, err := os.ReadDir(dir + string(os.PathSeparator) + shortDir.Name())
		if err != nil {
			return newError("list_keys", Transient, err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			full := dir + string(os.PathSeparator) + shortDir.Name() + string(os.PathSeparator) + f.Name()
			data, err := readRecord(full, nil)
			if err != nil {
				return err
			}
			if err := decodeEach(data); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteProof persists a ProofBundle under proofs/<parent_short>/.
func (v *Vault) WriteProof(parentFP string, issuedAt time.Time, purpose string, bundle any) (string, error) {
	path := proofPath(v.root, parentFP, issuedAt, purpose)
	return path, writeRecord(path, bundle)
}

// ReadProof decodes the proof bundle at path into out.
func (v *Vault) ReadProof(path string, out any) error {
	_, err := readRecord(path, out)
	return err
}

// WriteManifest persists a rotation/revocation manifest under
// manifests/<parent_short>/.
func (v *Vault) WriteManifest(parentFP string, timestamp time.Time, event string, manifest any) (string, error) {
	path := manifestPath(v.root, parentFP, timestamp, event)
	return path, writeRecord(path, manifest)
}

// ReadManifest decodes the manifest at path into out.
func (v *Vault) ReadManifest(path string, out any) error {
	_, err := readRecord(path, out)
	return err
}

// WriteTombstone permanently poisons fingerprint.
func (v *Vault) WriteTombstone(fingerprint string, tombstone any) error {
	return writeRecord(tombstonePath(v.root, fingerprint), tombstone)
}

// IsTombstoned reports whether fingerprint has a tombstone on disk.
func (v *Vault) IsTombstoned(fingerprint string) (bool, error) {
	if _, err := os.Stat(tombstonePath(v.root, fingerprint)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, newError("is_tombstoned", Transient, err)
	}
	return true, nil
}

// CheckNotPoisoned returns Error{Kind: FingerprintPoisoned} if fingerprint
// has already been tombstoned.
func (v *Vault) CheckNotPoisoned(fingerprint string) error {
	poisoned, err := v.IsTombstoned(fingerprint)
	if err != nil {
		return err
	}
	if poisoned {
		return newError("check_not_poisoned", FingerprintPoisoned, fmt.Errorf("fingerprint %s is permanently poisoned", fingerprint))
	}
	return nil
}

// WriteArchive persists payload (the signed prior key record) into
// metadata/archive/ as a dated, opaque bundle.
func (v *Vault) WriteArchive(timestamp time.Time, role policy.Role, payload any) (string, error) {
	path := archivePath(v.root, timestamp, role)
	return path, writeRecord(path, payload)
}

// ReadPolicyConfig loads metadata/policy.toml, falling back to built-in
// defaults when absent.
func (v *Vault) ReadPolicyConfig() (*policy.Config, error) {
	return policy.LoadConfig(v.PolicyPath())
}

// ManifestPath returns the deterministic path a manifest for
// (parentFP, timestamp, event) would be written to, without writing it.
// Callers use this to pre-compute a tombstone's manifest_ref before the
// manifest itself is persisted (the manifest is always the last artifact
// of a cascade).
func (v *Vault) ManifestPath(parentFP string, timestamp time.Time, event string) string {
	return manifestPath(v.root, parentFP, timestamp, event)
}

// CountTombstones returns how many tombstones are currently on disk.
func (v *Vault) CountTombstones() (int, error) {
	entries, err := os.ReadDir(tombstonesDir(v.root))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, newError("count_tombstones", Transient, err)
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}
	return count, nil
}
