package vault

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/padlokk/ignite/internal/keymaterial"
	"github.com/padlokk/ignite/internal/policy"
)

const timestampLayout = "20060102T150405.000000000Z"

// ResolveRoot is a pure function of environment: it never touches
// business logic, only decides where the vault lives on disk.
// IGNITE_DATA_DIR wins outright; otherwise it follows the XDG base
// directory convention, falling back to ~/.local/share/ignite.
func ResolveRoot(getenv func(string) string) string {
	if v := getenv("IGNITE_DATA_DIR"); v != "" {
		return v
	}
	if v := getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, "ignite")
	}
	home := getenv("HOME")
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "ignite")
}

func lockPath(root string) string {
	return filepath.Join(root, ".lock")
}

func keyPath(root string, role policy.Role, fingerprint string) string {
	short := keymaterial.ShortFingerprint(fingerprint)
	return filepath.Join(root, "keys", string(role), short, fingerprint+".json")
}

func keyRoleDir(root string, role policy.Role) string {
	return filepath.Join(root, "keys", string(role))
}

func proofPath(root, parentFP string, issuedAt time.Time, purpose string) string {
	short := keymaterial.ShortFingerprint(parentFP)
	name := fmt.Sprintf("%s_%s.json", issuedAt.UTC().Format(timestampLayout), purpose)
	return filepath.Join(root, "proofs", short, name)
}

func manifestPath(root, parentFP string, timestamp time.Time, event string) string {
	short := keymaterial.ShortFingerprint(parentFP)
	name := fmt.Sprintf("%s_%s.json", timestamp.UTC().Format(timestampLayout), event)
	return filepath.Join(root, "manifests", short, name)
}

func policyPath(root string) string {
	return filepath.Join(root, "metadata", "policy.toml")
}

func tombstonePath(root, fingerprint string) string {
	return filepath.Join(root, "metadata", "tombstones", fingerprint+".json")
}

func tombstonesDir(root string) string {
	return filepath.Join(root, "metadata", "tombstones")
}

func archivePath(root string, timestamp time.Time, role policy.Role) string {
	name := fmt.Sprintf("%s_%s.bundle", timestamp.UTC().Format(timestampLayout), role)
	return filepath.Join(root, "metadata", "archive", name)
}
