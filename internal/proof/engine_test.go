package proof

import (
	"bytes"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/padlokk/ignite/internal/clock"
)

func zeroReader() *bytes.Reader {
	return bytes.NewReader(make([]byte, 16))
}

func TestEngine_SignAndVerifyAuthorityClaim(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	engine := NewEngine(clk, WithRandReader(zeroReader()))

	parentPub, parentPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	bundle, err := engine.SignAuthorityClaim(parentPriv, "SHA256:parent", "SHA256:child", "create-ignition")
	require.NoError(t, err)
	require.Equal(t, KindAuthorityClaim, bundle.PayloadKind)
	require.Equal(t, clk.Now().Add(24*time.Hour), bundle.ExpiresAt)

	require.NoError(t, engine.Verify(bundle, parentPub, "SHA256:parent", "SHA256:child"))
}

func TestEngine_SignAndVerifySubjectReceipt(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	engine := NewEngine(clk, WithRandReader(zeroReader()))

	childPub, childPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	bundle, err := engine.IssueSubjectReceipt(childPriv, "SHA256:child", "SHA256:parent")
	require.NoError(t, err)
	require.Equal(t, KindSubjectReceipt, bundle.PayloadKind)

	require.NoError(t, engine.Verify(bundle, childPub, "SHA256:parent", "SHA256:child"))
}

func TestEngine_Verify_RejectsWrongSignerKey(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	engine := NewEngine(clk, WithRandReader(zeroReader()))

	_, parentPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	bundle, err := engine.SignAuthorityClaim(parentPriv, "SHA256:parent", "SHA256:child", "create-ignition")
	require.NoError(t, err)

	err = engine.Verify(bundle, otherPub, "SHA256:parent", "SHA256:child")
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, FingerprintMismatch, perr.Kind)
}

func TestEngine_Verify_RejectsExpired(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	engine := NewEngine(clk, WithRandReader(zeroReader()), WithDefaultValidity(time.Hour))

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	bundle, err := engine.SignAuthorityClaim(priv, "SHA256:parent", "SHA256:child", "create-ignition")
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	err = engine.Verify(bundle, pub, "SHA256:parent", "SHA256:child")
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, Expired, perr.Kind)
}

func TestEngine_Verify_DetectsTamperedPayload(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	engine := NewEngine(clk, WithRandReader(zeroReader()))

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	bundle, err := engine.SignAuthorityClaim(priv, "SHA256:parent", "SHA256:child", "create-ignition")
	require.NoError(t, err)

	bundle.AuthorityClaim.ChildFP = "SHA256:attacker-controlled"

	err = engine.Verify(bundle, pub, "SHA256:parent", "SHA256:child")
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, Tampered, perr.Kind)
}

func TestEngine_Verify_RejectsFingerprintMismatch(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	engine := NewEngine(clk, WithRandReader(zeroReader()))

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	bundle, err := engine.SignAuthorityClaim(priv, "SHA256:parent", "SHA256:child", "create-ignition")
	require.NoError(t, err)

	err = engine.Verify(bundle, pub, "SHA256:parent", "SHA256:someone-else")
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, FingerprintMismatch, perr.Kind)
}

func TestEngine_RegisterGraceKey_AllowsRetiredSigner(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	engine := NewEngine(clk, WithRandReader(zeroReader()))

	oldPub, oldPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	newPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	bundle, err := engine.SignAuthorityClaim(oldPriv, "SHA256:parent", "SHA256:child", "create-ignition")
	require.NoError(t, err)

	engine.RegisterGraceKey(oldPub, clk.Now().Add(time.Hour))

	// expected signer is now the rotated-in key, but the bundle was signed
	// by the retired key, which is still within its grace window.
	require.NoError(t, engine.Verify(bundle, newPub, "SHA256:parent", "SHA256:child"))

	clk.Advance(2 * time.Hour)
	err = engine.Verify(bundle, newPub, "SHA256:parent", "SHA256:child")
	require.Error(t, err)
}
