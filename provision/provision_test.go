package provision

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

func TestKeyHashPayloadEd25519(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	got, err := KeyHashPayloadEd25519(pub, "sha256")
	if err != nil {
		t.Fatalf("KeyHashPayloadEd25519: %v", err)
	}
	want := sha256.Sum256(pub)
	if !bytes.Equal(got, want[:]) {
		t.Fatalf("digest mismatch")
	}

	sha3Digest, err := KeyHashPayloadEd25519(pub, "sha3-256")
	if err != nil {
		t.Fatalf("sha3-256: %v", err)
	}
	if len(sha3Digest) != 32 || bytes.Equal(sha3Digest, want[:]) {
		t.Fatalf("sha3-256 digest suspicious: %x", sha3Digest)
	}

	if _, err := KeyHashPayloadEd25519(pub[:16], "sha256"); err == nil {
		t.Fatalf("truncated key accepted")
	}
	if _, err := KeyHashPayloadEd25519(pub, "md5"); err == nil {
		t.Fatalf("unsupported hash accepted")
	}
}

func TestKeyHashPayloadDilithium3(t *testing.T) {
	pub, _, err := mode3.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	got, err := KeyHashPayloadDilithium3(pub, "sha256")
	if err != nil {
		t.Fatalf("KeyHashPayloadDilithium3: %v", err)
	}
	want := sha256.Sum256(pub.Bytes())
	if !bytes.Equal(got, want[:]) {
		t.Fatalf("digest mismatch")
	}

	if _, err := KeyHashPayloadDilithium3(nil, "sha256"); err == nil {
		t.Fatalf("nil key accepted")
	}
}

func TestDeriveFieldSecret(t *testing.T) {
	seed := bytes.Repeat([]byte{0xA5}, RootSeedSize)

	a, err := DeriveFieldSecret(seed, "hmac-key", 48)
	if err != nil {
		t.Fatalf("DeriveFieldSecret: %v", err)
	}
	if len(a) != 48 {
		t.Fatalf("size: got %d want 48", len(a))
	}

	// Deterministic for the same inputs.
	b, err := DeriveFieldSecret(seed, "hmac-key", 48)
	if err != nil || !bytes.Equal(a, b) {
		t.Fatalf("derivation not deterministic: %v", err)
	}

	// Independent per label and per seed.
	c, err := DeriveFieldSecret(seed, "storage-key", 48)
	if err != nil || bytes.Equal(a, c) {
		t.Fatalf("labels not independent: %v", err)
	}
	other := bytes.Repeat([]byte{0x5A}, RootSeedSize)
	d, err := DeriveFieldSecret(other, "hmac-key", 48)
	if err != nil || bytes.Equal(a, d) {
		t.Fatalf("seeds not independent: %v", err)
	}

	// A shorter request is a prefix of a longer one.
	short, err := DeriveFieldSecret(seed, "hmac-key", 16)
	if err != nil || !bytes.Equal(short, a[:16]) {
		t.Fatalf("short derivation is not a prefix: %v", err)
	}
}

func TestDeriveFieldSecretValidation(t *testing.T) {
	seed := make([]byte, RootSeedSize)

	if _, err := DeriveFieldSecret(seed[:16], "x", 8); err == nil {
		t.Fatalf("short seed accepted")
	}
	if _, err := DeriveFieldSecret(seed, "", 8); err == nil {
		t.Fatalf("empty label accepted")
	}
	if _, err := DeriveFieldSecret(seed, "x", 0); err == nil {
		t.Fatalf("zero size accepted")
	}
	if _, err := DeriveFieldSecret(seed, "x", 1025); err == nil {
		t.Fatalf("oversized request accepted")
	}
}
