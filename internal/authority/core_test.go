package authority

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/padlokk/ignite/internal/clock"
	"github.com/padlokk/ignite/internal/keymaterial"
	"github.com/padlokk/ignite/internal/vault"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func newTestCore(t *testing.T) (*Core, *clock.Fixed) {
	t.Helper()
	root := t.TempDir()
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c, err := Open(root, clk, testLog())
	require.NoError(t, err)
	return c, clk
}

// bootstrapFullChain builds Skull -> Master -> Repo -> Ignition -> Distro,
// returning every minted key keyed by role.
func bootstrapFullChain(t *testing.T, c *Core) map[Role]*AuthorityKey {
	t.Helper()
	out := make(map[Role]*AuthorityKey)

	skull, err := c.Create(CreateRequest{Role: RoleSkull, Passphrase: "Corr3ct!HorseBatteryStaple", OwnerID: "root"})
	require.NoError(t, err)
	out[RoleSkull] = skull

	master, err := c.Create(CreateRequest{ParentFP: skull.Fingerprint, Role: RoleMaster, ParentPassphrase: "Corr3ct!HorseBatteryStaple", OwnerID: "root"})
	require.NoError(t, err)
	out[RoleMaster] = master

	repo, err := c.Create(CreateRequest{ParentFP: master.Fingerprint, Role: RoleRepo, OwnerID: "team-a"})
	require.NoError(t, err)
	out[RoleRepo] = repo

	ignition, err := c.Create(CreateRequest{ParentFP: repo.Fingerprint, Role: RoleIgnition, Passphrase: "Tr0ub4dor&3xample", OwnerID: "team-a"})
	require.NoError(t, err)
	out[RoleIgnition] = ignition

	distro, err := c.Create(CreateRequest{ParentFP: ignition.Fingerprint, Role: RoleDistro, Passphrase: "Distro-One-Pass!1", ParentPassphrase: "Tr0ub4dor&3xample", OwnerID: "team-a"})
	require.NoError(t, err)
	out[RoleDistro] = distro

	return out
}

// S1: bootstrap the full five-tier hierarchy and verify the chain end to end.
func TestCore_BootstrapFullHierarchy(t *testing.T) {
	c, _ := newTestCore(t)
	keys := bootstrapFullChain(t, c)

	require.Equal(t, StatusActive, keys[RoleDistro].Status)
	require.NoError(t, c.VerifyChain(keys[RoleDistro].Fingerprint))
	require.NoError(t, c.VerifyChain(keys[RoleIgnition].Fingerprint))
	require.NoError(t, c.VerifyProof(keys[RoleMaster].ParentClaimPath))

	listed := c.List(nil)
	require.Len(t, listed, 5)
}

// S2: rotating a Repo key archives it, mints a successor under the same
// parent, and revokes every transitive dependent with a manifest.
func TestCore_Rotate_CascadesToDependents(t *testing.T) {
	c, _ := newTestCore(t)
	keys := bootstrapFullChain(t, c)
	repo := keys[RoleRepo]
	ignitionFP := keys[RoleIgnition].Fingerprint
	distroFP := keys[RoleDistro].Fingerprint

	newRepo, manifest, err := c.Rotate(RotateRequest{TargetFP: repo.Fingerprint, Reason: "scheduled"})
	require.NoError(t, err)
	require.Equal(t, RoleRepo, newRepo.Role)
	require.NotEqual(t, repo.Fingerprint, newRepo.Fingerprint)
	require.Equal(t, "rotation", manifest.Event.Type)

	// Old repo and both dependents are gone from the working chain.
	_, ok := c.chain.Get(repo.Fingerprint)
	require.False(t, ok)
	_, ok = c.chain.Get(ignitionFP)
	require.False(t, ok)
	_, ok = c.chain.Get(distroFP)
	require.False(t, ok)

	// Manifest enumerates the archived target plus both revoked dependents.
	require.Len(t, manifest.Children, 3)

	poisoned := c.vault.CheckNotPoisoned(ignitionFP)
	require.Error(t, poisoned)

	require.NoError(t, c.VerifyManifest(c.vault.ManifestPath(manifest.Event.ParentFingerprint, manifest.Event.InitiatedAt, manifest.Event.Type)))
}

// S3: a tampered key record on disk is caught on read and surfaces as a
// vault.Error{Kind: Tampered} through the authority layer.
func TestCore_DetectsTamperedKeyRecord(t *testing.T) {
	c, _ := newTestCore(t)
	keys := bootstrapFullChain(t, c)
	master := keys[RoleMaster]

	short := keymaterial.ShortFingerprint(master.Fingerprint)
	path := filepath.Join(c.vault.Root(), "keys", string(RoleMaster), short, master.Fingerprint+".json")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(raw[:len(raw)-1], 'X', '\n'), 0o600))

	var reloaded AuthorityKey
	err = c.vault.ReadKey(RoleMaster, master.Fingerprint, &reloaded)
	require.Error(t, err)
	var verr *vault.Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, vault.Tampered, verr.Kind)
}

// S4: weak or injection-bearing passphrases are rejected before any key
// material is generated.
func TestCore_Create_RejectsWeakPassphrase(t *testing.T) {
	c, _ := newTestCore(t)
	_, err := c.Create(CreateRequest{Role: RoleSkull, Passphrase: "short"})
	require.Error(t, err)
}

func TestCore_Create_RejectsInjectionPassphrase(t *testing.T) {
	c, _ := newTestCore(t)
	_, err := c.Create(CreateRequest{Role: RoleSkull, Passphrase: "Good-Pass-$(whoami)"})
	require.Error(t, err)
}

func TestCore_Create_AcceptsExactlyTwelveCharPassphrase(t *testing.T) {
	c, _ := newTestCore(t)
	_, err := c.Create(CreateRequest{Role: RoleSkull, Passphrase: "Corr3ct!Pass"})
	require.NoError(t, err)
}

// S6: revoking a subtree poisons the target and everything beneath it.
func TestCore_Revoke_PoisonsTargetAndDependents(t *testing.T) {
	c, _ := newTestCore(t)
	keys := bootstrapFullChain(t, c)
	repoFP := keys[RoleRepo].Fingerprint
	ignitionFP := keys[RoleIgnition].Fingerprint
	distroFP := keys[RoleDistro].Fingerprint

	manifest, err := c.Revoke(RevokeRequest{TargetFP: repoFP, Reason: "compromise"})
	require.NoError(t, err)
	require.Equal(t, "revocation", manifest.Event.Type)
	require.Len(t, manifest.Children, 3)

	for _, fp := range []string{repoFP, ignitionFP, distroFP} {
		_, ok := c.chain.Get(fp)
		require.False(t, ok)
		require.Error(t, c.vault.CheckNotPoisoned(fp))
	}

	// Master remains active and still verifies.
	require.NoError(t, c.VerifyChain(keys[RoleMaster].Fingerprint))
}

func TestCore_Create_IllegalEdgeRejected(t *testing.T) {
	c, _ := newTestCore(t)
	keys := bootstrapFullChain(t, c)
	skull := keys[RoleSkull]

	// Skull may only parent a Master, not a Repo.
	_, err := c.Create(CreateRequest{ParentFP: skull.Fingerprint, Role: RoleRepo})
	require.Error(t, err)
	var aerr *AuthorityError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, IllegalEdge, aerr.Kind)
}

func TestCore_Create_ParentNotFoundRejected(t *testing.T) {
	c, _ := newTestCore(t)
	_, err := c.Create(CreateRequest{ParentFP: "SHA256:doesnotexist", Role: RoleMaster})
	require.Error(t, err)
	var aerr *AuthorityError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, ParentNotFound, aerr.Kind)
}

func TestCore_Create_ParentInactiveRejected(t *testing.T) {
	c, _ := newTestCore(t)
	keys := bootstrapFullChain(t, c)
	repo := keys[RoleRepo]

	_, err := c.Revoke(RevokeRequest{TargetFP: repo.Fingerprint, Reason: "test"})
	require.NoError(t, err)

	_, err = c.Create(CreateRequest{ParentFP: repo.Fingerprint, Role: RoleIgnition})
	require.Error(t, err)
	var aerr *AuthorityError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, ParentInactive, aerr.Kind)
}

func TestCore_Create_PassphraseNotAllowedForNonIgnitionTier(t *testing.T) {
	c, _ := newTestCore(t)
	keys := bootstrapFullChain(t, c)
	master := keys[RoleMaster]

	_, err := c.Create(CreateRequest{ParentFP: master.Fingerprint, Role: RoleRepo, Passphrase: "Should-Not-Be-Allowed1"})
	require.Error(t, err)
	var aerr *AuthorityError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, PassphraseNotAllowed, aerr.Kind)
}

func TestCore_Rotate_SkullDisallowedByDefault(t *testing.T) {
	c, _ := newTestCore(t)
	keys := bootstrapFullChain(t, c)
	skull := keys[RoleSkull]

	_, _, err := c.Rotate(RotateRequest{TargetFP: skull.Fingerprint, ParentPassphrase: "", NewPassphrase: "Corr3ct!HorseBatteryStaple2"})
	require.Error(t, err)
	var aerr *AuthorityError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, SkullRotationDisallowed, aerr.Kind)
}

func TestCore_Status_ReportsCountsAndPendingTombstones(t *testing.T) {
	c, _ := newTestCore(t)
	keys := bootstrapFullChain(t, c)

	_, err := c.Revoke(RevokeRequest{TargetFP: keys[RoleRepo].Fingerprint, Reason: "cleanup"})
	require.NoError(t, err)

	health, err := c.Status()
	require.NoError(t, err)
	require.Equal(t, 2, health.CountsByRole[RoleSkull]+health.CountsByRole[RoleMaster])
	require.Equal(t, 3, health.PendingTombstones)
}

func TestCore_VerifyChain_DetectsExpiredLink(t *testing.T) {
	c, clk := newTestCore(t)
	keys := bootstrapFullChain(t, c)
	distro := keys[RoleDistro]

	clk.Advance(8 * 24 * time.Hour) // past the 7-day distro lifetime

	err := c.VerifyChain(distro.Fingerprint)
	require.Error(t, err)
	var cerr *ChainError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, LinkExpired, cerr.Kind)
}

func TestCore_Load_ReplaysPersistedKeysAcrossReopen(t *testing.T) {
	root := t.TempDir()
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	c1, err := Open(root, clk, testLog())
	require.NoError(t, err)
	keys := bootstrapFullChain(t, c1)

	c2, err := Open(root, clk, testLog())
	require.NoError(t, err)
	require.Equal(t, 5, c2.chain.Len())
	require.NoError(t, c2.VerifyChain(keys[RoleDistro].Fingerprint))
}
