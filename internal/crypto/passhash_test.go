package crypto

import (
	"bytes"
	"testing"
)

// cheap params keep the suite fast
var testHasher = NewHasher(Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal", n)
	}
}

func TestHasher_New_FreshSalt(t *testing.T) {
	t.Parallel()

	h1, s1, err := testHasher.New([]byte("secret"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h2, s2, err := testHasher.New([]byte("secret"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(s1) != 16 || bytes.Equal(s1, s2) {
		t.Fatalf("salts must be random 16 bytes: %x %x", s1, s2)
	}
	if bytes.Equal(h1, h2) {
		t.Fatalf("hashes with different salts must differ")
	}
}

func TestHasher_HashDeterministic(t *testing.T) {
	t.Parallel()

	pw := []byte("p@ssw0rd")
	salt := []byte("NaCl-16-bytes?")

	if !bytes.Equal(testHasher.Hash(pw, salt), testHasher.Hash(pw, salt)) {
		t.Fatalf("hash not deterministic for same input")
	}
	if bytes.Equal(testHasher.Hash(pw, salt), testHasher.Hash([]byte("p@ssw0rd!"), salt)) {
		t.Fatalf("hash should differ when password differs")
	}
}

func TestHasher_Verify(t *testing.T) {
	t.Parallel()

	pw := []byte("correct horse battery staple")
	hash, salt, err := testHasher.New(pw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !testHasher.Verify(pw, salt, hash) {
		t.Fatalf("expected true for correct password")
	}
	if testHasher.Verify([]byte("wrong"), salt, hash) {
		t.Fatalf("expected false for wrong password")
	}
	if testHasher.Verify(pw, []byte("wrong-salt"), hash) {
		t.Fatalf("expected false for wrong salt")
	}
	if testHasher.Verify([]byte{}, salt, hash) {
		t.Fatalf("expected false for empty password")
	}
}
