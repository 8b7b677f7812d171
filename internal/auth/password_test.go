package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// =========================================================================
// HELPER
// =========================================================================

// newTestPasswordService returns a PasswordService with bcrypt's minimum
// cost so each hash takes milliseconds.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(bcrypt.MinCost)
}

// =========================================================================
// Hash TESTS
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("Passw0rd!")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
	if strings.Contains(hash, "Passw0rd!") {
		t.Error("Hash() output contains the plaintext")
	}
}

func TestHash_SamePasswordProducesDifferentHashes(t *testing.T) {
	ps := newTestPasswordService()

	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password (salt must be random)")
	}
	if len(hash1) != len(hash2) {
		t.Errorf("hash lengths differ: %d vs %d", len(hash1), len(hash2))
	}
	if !ps.Verify(hash1, "same-password") || !ps.Verify(hash2, "same-password") {
		t.Error("both salted hashes must verify")
	}
}

func TestHash_RejectsPasswordOver72Bytes(t *testing.T) {
	ps := newTestPasswordService()

	_, err := ps.Hash(strings.Repeat("a", 73))
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Hash() error = %v, want ErrPasswordTooLong", err)
	}
}

func TestHash_AcceptsPasswordExactly72Bytes(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Fatalf("Hash() should accept a 72-byte password, got error: %v", err)
	}
}

// =========================================================================
// Verify TESTS
// =========================================================================

func TestVerify_WrongPassword(t *testing.T) {
	ps := newTestPasswordService()
	hash, _ := ps.Hash("the-real-password")

	if ps.Verify(hash, "the-wrong-password") {
		t.Fatal("Verify() should return false for a wrong password")
	}
	if ps.Verify(hash, "") {
		t.Fatal("Verify() should return false for an empty password")
	}
}

func TestVerify_MalformedHashIsFalse(t *testing.T) {
	ps := newTestPasswordService()

	for _, hash := range []string{"", "not-a-valid-bcrypt-hash", "$2a$04$short"} {
		if ps.Verify(hash, "password") {
			t.Errorf("Verify(%q) = true, want false", hash)
		}
	}
}

// =========================================================================
// ROUND-TRIP TEST
// =========================================================================

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	cases := []struct {
		name     string
		password string
		other    string
	}{
		{"simple alphanumeric", "hello123", "hello124"},
		{"special characters", "p@$$w0rd!#%", "p@$$w0rd!#"},
		{"unicode", "пароль-密码", "пароль-密"},
		{"whitespace", "  leading and trailing  ", "leading and trailing"},
		{"case differs", "Passw0rd!", "passw0rd!"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := ps.Hash(tc.password)
			if err != nil {
				t.Fatalf("Hash(%q) error = %v", tc.password, err)
			}
			if !ps.Verify(hash, tc.password) {
				t.Errorf("Verify() failed for %q", tc.password)
			}
			if ps.Verify(hash, tc.other) {
				t.Errorf("Verify() accepted %q for a hash of %q", tc.other, tc.password)
			}
		})
	}
}
