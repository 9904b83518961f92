// Package provision builds the payloads that are actually burned into
// one-time-programmable fields: public-key digests for secure-boot key-hash
// slots and deterministic device-unique secrets.
//
// Everything here is a pure, deterministic primitive. Nothing talks to the
// secure peer; the output bytes are handed to the otp client as-is.
package provision

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// KeyHashPayloadEd25519 returns the digest blob of an Ed25519 public key,
// sized for a key-hash field. hashAlg must be one of: sha256, sha3-256.
func KeyHashPayloadEd25519(pub ed25519.PublicKey, hashAlg string) ([]byte, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return digestFor(hashAlg, pub)
}

// KeyHashPayloadDilithium3 returns the digest blob of a Dilithium3 public
// key. hashAlg must be one of: sha256, sha3-256.
func KeyHashPayloadDilithium3(pub *mode3.PublicKey, hashAlg string) ([]byte, error) {
	if pub == nil {
		return nil, errors.New("missing public key")
	}
	return digestFor(hashAlg, pub.Bytes())
}

// RootSeedSize is the required length of a provisioning root seed.
const RootSeedSize = 32

// DeriveFieldSecret deterministically derives a size-byte device-unique
// secret from a root seed and a label naming the field's purpose. The same
// (seed, label) pair always yields the same bytes; distinct labels yield
// independent streams.
func DeriveFieldSecret(rootSeed []byte, label string, size int) ([]byte, error) {
	if len(rootSeed) != RootSeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", RootSeedSize)
	}
	if label == "" {
		return nil, errors.New("label is required")
	}
	if size <= 0 || size > 1024 {
		return nil, fmt.Errorf("secret size %d out of range", size)
	}

	out := make([]byte, 0, size)
	var counter [4]byte
	for block := uint32(0); len(out) < size; block++ {
		binary.BigEndian.PutUint32(counter[:], block)
		h := sha256.New()
		_, _ = h.Write(rootSeed)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte("fusevault-provision-v1"))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte("label:"))
		_, _ = h.Write([]byte(label))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(counter[:])
		out = h.Sum(out)
	}
	return out[:size], nil
}
