package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	ti := NewTokenIssuer("test-secret", time.Hour)

	token, expires, err := ti.Issue("fam-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if d := time.Until(expires); d < 59*time.Minute || d > time.Hour+time.Second {
		t.Errorf("expires in %v, want about 1h", d)
	}

	ac, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ac.FamilyID != "fam-1" {
		t.Errorf("FamilyID = %q, want %q", ac.FamilyID, "fam-1")
	}
	if ac.TokenID == "" {
		t.Error("expected token id")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, err := NewTokenIssuer("secret-a", time.Hour).Issue("fam-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = NewTokenIssuer("secret-b", time.Hour).Verify(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	ti := NewTokenIssuer("test-secret", time.Minute)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ti.now = func() time.Time { return issued }

	token, _, err := ti.Issue("fam-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	ti.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = ti.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	ti := NewTokenIssuer("test-secret", time.Hour)
	if _, err := ti.Verify("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}
