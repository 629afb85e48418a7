package security

import (
	"bytes"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	ok, err := VerifyPassword("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Error("correct password did not verify")
	}

	ok, err = VerifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword wrong: %v", err)
	}
	if ok {
		t.Error("wrong password verified")
	}
}

func TestHashPasswordSalts(t *testing.T) {
	a, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	b, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two hashes of the same password should differ by salt")
	}
}

func TestVerifyPasswordMalformed(t *testing.T) {
	if _, err := VerifyPassword("x", []byte("not-a-hash")); err == nil {
		t.Error("expected error for malformed hash")
	}
	if _, err := VerifyPassword("x", []byte("$argon2i$v=19$t=3,m=1,p=1$a$b")); err == nil {
		t.Error("expected error for wrong variant")
	}
}

func TestGenerateSessionToken(t *testing.T) {
	token, digest, err := GenerateSessionToken(32)
	if err != nil {
		t.Fatalf("GenerateSessionToken: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if len(digest) != 32 {
		t.Fatalf("digest length = %d, want 32", len(digest))
	}
	if !bytes.Equal(digest, HashSessionToken(token)) {
		t.Error("digest does not match HashSessionToken")
	}

	other, _, err := GenerateSessionToken(32)
	if err != nil {
		t.Fatalf("GenerateSessionToken: %v", err)
	}
	if token == other {
		t.Error("two tokens should not collide")
	}
}
