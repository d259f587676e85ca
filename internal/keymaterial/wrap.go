package keymaterial

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	kdfArgon2id     = "argon2id"
	aeadXChaCha20   = "xchacha20-poly1305"
	saltSize        = 16
	defaultMemoryKB = 64 * 1024 // 64 MiB
	defaultTime     = 3
	defaultParallel = 1
)

// KDFParams are the Argon2id costs used to derive the AEAD key from a
// passphrase. Defaults come from policy; callers may override per role.
type KDFParams struct {
	MemoryKiB   uint32 `json:"memory_kib"`
	Time        uint32 `json:"time"`
	Parallelism uint8  `json:"parallelism"`
	Salt        string `json:"salt"` // base64
}

// DefaultKDFParams returns the spec's documented Argon2id defaults with a
// freshly drawn salt.
func DefaultKDFParams(rnd io.Reader) (KDFParams, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rnd, salt); err != nil {
		return KDFParams{}, newError("default_kdf_params", GenerationFailed, err)
	}
	return KDFParams{
		MemoryKiB:   defaultMemoryKB,
		Time:        defaultTime,
		Parallelism: defaultParallel,
		Salt:        base64.StdEncoding.EncodeToString(salt),
	}, nil
}

// WrappedPayload is the on-disk envelope around a passphrase-protected
// private key (Skull, Ignition, Distro tiers).
type WrappedPayload struct {
	KDF             string    `json:"kdf"`
	KDFParams       KDFParams `json:"kdf_params"`
	AEAD            string    `json:"aead"`
	Nonce           string    `json:"nonce"`      // base64
	Ciphertext      string    `json:"ciphertext"` // base64
	PassphraseCheck string    `json:"passphrase_check,omitempty"` // base64
}

// Wrapper is the capability callers see; the default implementation is
// Argon2id+XChaCha20-Poly1305, but an OS-keyring-backed alternative could
// satisfy the same interface without touching callers.
type Wrapper interface {
	Wrap(passphrase string, priv ed25519.PrivateKey, aad []byte) (*WrappedPayload, error)
	Unwrap(passphrase string, payload *WrappedPayload, aad []byte) (ed25519.PrivateKey, error)
}

// Argon2XChaChaWrapper is the default Wrapper.
type Argon2XChaChaWrapper struct {
	Params KDFParams
	Rand   io.Reader
}

// NewArgon2XChaChaWrapper builds a wrapper with fresh default parameters.
func NewArgon2XChaChaWrapper(rnd io.Reader) (*Argon2XChaChaWrapper, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	params, err := DefaultKDFParams(rnd)
	if err != nil {
		return nil, err
	}
	return &Argon2XChaChaWrapper{Params: params, Rand: rnd}, nil
}

func deriveKey(passphrase string, p KDFParams) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(p.Salt)
	if err != nil {
		return nil, newError("derive_key", MalformedPayload, fmt.Errorf("bad salt encoding: %w", err))
	}
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.MemoryKiB, p.Parallelism, chacha20poly1305.KeySize), nil
}

func passphraseCheckDigest(key []byte) string {
	sum := sha256.Sum256(key)
	return base64.StdEncoding.EncodeToString(sum[:8])
}

// Wrap validates nothing about passphrase strength itself (that is the
// Policy Engine's job); it only performs the KDF + AEAD seal and zeroes
// priv before returning.
func (w *Argon2XChaChaWrapper) Wrap(passphrase string, priv ed25519.PrivateKey, aad []byte) (*WrappedPayload, error) {
	defer Wipe(priv)

	key, err := deriveKey(passphrase, w.Params)
	if err != nil {
		return nil, err
	}
	defer Wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, newError("wrap", GenerationFailed, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(w.Rand, nonce); err != nil {
		return nil, newError("wrap", GenerationFailed, err)
	}

	ciphertext := aead.Seal(nil, nonce, priv, aad)

	return &WrappedPayload{
		KDF:             kdfArgon2id,
		KDFParams:       w.Params,
		AEAD:            aeadXChaCha20,
		Nonce:           base64.StdEncoding.EncodeToString(nonce),
		Ciphertext:      base64.StdEncoding.EncodeToString(ciphertext),
		PassphraseCheck: passphraseCheckDigest(key),
	}, nil
}

// Unwrap reverses Wrap. A wrong passphrase surfaces as an AEAD open
// failure (BadPassphrase); the optional PassphraseCheck short-circuits
// obviously-wrong passphrases before paying for the AEAD open, but is
// never authoritative on its own.
func (w *Argon2XChaChaWrapper) Unwrap(passphrase string, payload *WrappedPayload, aad []byte) (ed25519.PrivateKey, error) {
	if payload.KDF != kdfArgon2id {
		return nil, newError("unwrap", MalformedPayload, fmt.Errorf("unsupported kdf %q", payload.KDF))
	}
	if payload.AEAD != aeadXChaCha20 {
		return nil, newError("unwrap", MalformedPayload, fmt.Errorf("unsupported aead %q", payload.AEAD))
	}

	key, err := deriveKey(passphrase, payload.KDFParams)
	if err != nil {
		return nil, err
	}
	defer Wipe(key)

	if payload.PassphraseCheck != "" {
		want, err := base64.StdEncoding.DecodeString(payload.PassphraseCheck)
		if err == nil {
			got := sha256.Sum256(key)
			if subtle.ConstantTimeCompare(want, got[:8]) != 1 {
				return nil, newError("unwrap", BadPassphrase, fmt.Errorf("passphrase check digest mismatch"))
			}
		}
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, newError("unwrap", GenerationFailed, err)
	}

	nonce, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, newError("unwrap", MalformedPayload, fmt.Errorf("bad nonce encoding: %w", err))
	}
	ciphertext, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, newError("unwrap", MalformedPayload, fmt.Errorf("bad ciphertext encoding: %w", err))
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, newError("unwrap", BadPassphrase, fmt.Errorf("aead open failed: %w", err))
	}

	return ed25519.PrivateKey(plaintext), nil
}
