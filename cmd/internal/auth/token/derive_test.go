package token

import (
	"bytes"
	"strings"
	"testing"
)

func TestDeriveKey_ClassSeparation(t *testing.T) {
	t.Parallel()

	secret := []byte(strings.Repeat("s", 32))

	access := DeriveKey(secret, ClassAccess)
	refresh := DeriveKey(secret, ClassRefresh)

	if bytes.Equal(access, refresh) {
		t.Fatalf("access and refresh keys must differ for the same secret")
	}
	if len(access) != 32 || len(refresh) != 32 {
		t.Fatalf("key lengths = %d/%d, want 32/32", len(access), len(refresh))
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	t.Parallel()

	secret := []byte(strings.Repeat("s", 32))
	if !bytes.Equal(DeriveKey(secret, ClassAccess), DeriveKey(secret, ClassAccess)) {
		t.Fatalf("derivation must be deterministic")
	}

	other := []byte(strings.Repeat("t", 32))
	if bytes.Equal(DeriveKey(secret, ClassAccess), DeriveKey(other, ClassAccess)) {
		t.Fatalf("different secrets must derive different keys")
	}
}
