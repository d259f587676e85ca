package keymaterial

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"io"

	crand "crypto/rand"
)

// Fingerprint derives the canonical "SHA256:<hex>" identifier for a
// public key, used as the primary key throughout the vault.
func Fingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return "SHA256:" + hex.EncodeToString(sum[:])
}

// ShortFingerprint returns the directory-grouping prefix of a fingerprint
// (the first 8 hex characters after the "SHA256:" tag).
func ShortFingerprint(fingerprint string) string {
	const prefix = "SHA256:"
	hexPart := fingerprint
	if len(fingerprint) > len(prefix) && fingerprint[:len(prefix)] == prefix {
		hexPart = fingerprint[len(prefix):]
	}
	if len(hexPart) < 8 {
		return hexPart
	}
	return hexPart[:8]
}

// GenerateKeypair draws an Ed25519 keypair from rnd (crypto/rand.Reader
// by default; tests may inject a deterministic reader).
func GenerateKeypair(rnd io.Reader) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	if rnd == nil {
		rnd = crand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(rnd)
	if err != nil {
		return nil, nil, newError("generate_keypair", GenerationFailed, err)
	}
	return pub, priv, nil
}

// Wipe zeroes b in place. Call it on any buffer that held private key
// bytes or a passphrase once the caller is done with it.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
