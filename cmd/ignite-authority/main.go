// ignite-authority is a demonstration binary, not a CLI dispatcher: it
// wires one authority.Core against an XDG-resolved vault and drives a
// bootstrap-then-inspect sequence so the whole stack (codec, proof,
// keymaterial, policy, vault) can be exercised end to end without a
// driver harness. A real CLI would sit in front of the same Core.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/padlokk/ignite/internal/authority"
	"github.com/padlokk/ignite/internal/clock"
	"github.com/padlokk/ignite/internal/vault"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logrus.NewEntry(log)

	root := vault.ResolveRoot(os.Getenv)
	entry.WithField("root", root).Info("opening ignite authority vault")

	core, err := authority.Open(root, clock.System{}, entry)
	if err != nil {
		entry.WithError(err).Fatal("failed to open authority core")
	}

	if len(core.List(nil)) == 0 {
		if err := bootstrap(core, entry); err != nil {
			entry.WithError(err).Fatal("bootstrap failed")
		}
	}

	health, err := core.Status()
	if err != nil {
		entry.WithError(err).Fatal("status query failed")
	}
	fmt.Printf("counts by role: %v\n", health.CountsByRole)
	fmt.Printf("expiring soon:  %v\n", health.ExpiringSoon)
	fmt.Printf("stale proofs:   %v\n", health.StaleProofs)
	fmt.Printf("tombstones:     %d\n", health.PendingTombstones)
}

func bootstrap(core *authority.Core, log *logrus.Entry) error {
	skullPass := "Corr3ct!HorseBatteryStaple"
	ignitionPass := "Tr0ub4dor&3xample"
	distroPass := "Distro-One-Pass!1"

	skull, err := core.Create(authority.CreateRequest{Role: authority.RoleSkull, Passphrase: skullPass, OwnerID: "operator"})
	if err != nil {
		return fmt.Errorf("create skull: %w", err)
	}
	log.WithField("fingerprint", skull.Fingerprint).Info("skull created")

	master, err := core.Create(authority.CreateRequest{ParentFP: skull.Fingerprint, Role: authority.RoleMaster, ParentPassphrase: skullPass, OwnerID: "operator"})
	if err != nil {
		return fmt.Errorf("create master: %w", err)
	}
	log.WithField("fingerprint", master.Fingerprint).Info("master created")

	repo, err := core.Create(authority.CreateRequest{ParentFP: master.Fingerprint, Role: authority.RoleRepo, OwnerID: "team-a"})
	if err != nil {
		return fmt.Errorf("create repo: %w", err)
	}
	log.WithField("fingerprint", repo.Fingerprint).Info("repo created")

	ignition, err := core.Create(authority.CreateRequest{ParentFP: repo.Fingerprint, Role: authority.RoleIgnition, Passphrase: ignitionPass, OwnerID: "team-a"})
	if err != nil {
		return fmt.Errorf("create ignition: %w", err)
	}
	log.WithField("fingerprint", ignition.Fingerprint).Info("ignition created")

	distro, err := core.Create(authority.CreateRequest{ParentFP: ignition.Fingerprint, Role: authority.RoleDistro, Passphrase: distroPass, ParentPassphrase: ignitionPass, OwnerID: "team-a"})
	if err != nil {
		return fmt.Errorf("create distro: %w", err)
	}
	log.WithField("fingerprint", distro.Fingerprint).Info("distro created")

	if err := core.VerifyChain(distro.Fingerprint); err != nil {
		return fmt.Errorf("verify chain: %w", err)
	}
	log.Info("distro chain verified to skull")

	return nil
}
