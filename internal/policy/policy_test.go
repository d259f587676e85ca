package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpirationDefaults_SetsIgnitionAndDistroOnly(t *testing.T) {
	exp := NewExpirationDefaults()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ignition := &DraftKey{Role: RoleIgnition, CreatedAt: now}
	require.NoError(t, exp.ApplyKeyDefaults(ignition))
	require.NotNil(t, ignition.ExpiresAt)
	require.Equal(t, now.Add(30*24*time.Hour), *ignition.ExpiresAt)

	master := &DraftKey{Role: RoleMaster, CreatedAt: now}
	require.NoError(t, exp.ApplyKeyDefaults(master))
	require.Nil(t, master.ExpiresAt)
}

func TestExpirationDefaults_DoesNotOverwriteCallerValue(t *testing.T) {
	exp := NewExpirationDefaults()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	explicit := now.Add(time.Hour)

	draft := &DraftKey{Role: RoleIgnition, CreatedAt: now, ExpiresAt: &explicit}
	require.NoError(t, exp.ApplyKeyDefaults(draft))
	require.Equal(t, explicit, *draft.ExpiresAt)
}

func TestPassphraseStrength_TableDriven(t *testing.T) {
	strength := NewPassphraseStrength()

	cases := []struct {
		name       string
		passphrase string
		wantErr    bool
		wantKind   Kind
	}{
		{"too short", "short", true, PassphraseWeak},
		{"long but low diversity", "abcdefghijkl", true, PassphraseWeak},
		{"shell injection backtick", "Good-Pass-`whoami`", true, InjectionBlocked},
		{"shell injection subshell", "Good-Pass-$(whoami)", true, InjectionBlocked},
		{"exactly 12 chars meeting diversity", "Corr3ct!Pass", false, 0},
		{"seeded S1 skull passphrase", "Corr3ct!HorseBatteryStaple", false, 0},
		{"seeded S1 ignition passphrase", "Tr0ub4dor&3xample", false, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := strength.ValidatePassphrase(tc.passphrase, RoleIgnition)
			if tc.wantErr {
				require.Error(t, err)
				perr, ok := err.(*Error)
				require.True(t, ok)
				require.Equal(t, tc.wantKind, perr.Kind)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPassphraseStrength_RejectsPassphraseForNonIgnitionRole(t *testing.T) {
	strength := NewPassphraseStrength()
	err := strength.ValidatePassphrase("anything", RoleMaster)
	require.Error(t, err)
}

func TestPassphraseStrength_AllowsEmptyForNonIgnitionRole(t *testing.T) {
	strength := NewPassphraseStrength()
	require.NoError(t, strength.ValidatePassphrase("", RoleRepo))
}

func TestBundle_HaltsAtFirstRejection(t *testing.T) {
	bundle := NewBundle(NewExpirationDefaults(), NewPassphraseStrength())
	err := bundle.ValidatePassphrase("short", RoleIgnition)
	require.Error(t, err)
}

func TestDefaultConfig_BuildsUsablePolicyBundle(t *testing.T) {
	cfg := DefaultConfig()
	bundle := cfg.Bundle()

	draft := &DraftKey{Role: RoleDistro, CreatedAt: time.Now().UTC()}
	require.NoError(t, bundle.ApplyKeyDefaults(draft))
	require.NotNil(t, draft.ExpiresAt)

	require.NoError(t, bundle.ValidatePassphrase("Distro-One-Pass!1", RoleDistro))
}
