package token

import (
	"errors"
	"testing"
	"time"

	"identity-service/internal/models"
)

func testAccount() *models.Account {
	return &models.Account{
		ID:        42,
		FirstName: "Alice",
		LastName:  "Smith",
		Email:     "alice@gmail.com",
		Role:      models.RoleUser,
		Status:    models.StatusActive,
	}
}

func TestNewIssuer_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewIssuer("", "identity-service", time.Hour, time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewIssuer("secret", "identity-service", 0, time.Hour); err == nil {
		t.Fatal("expected error for zero access TTL")
	}
	if _, err := NewIssuer("secret", "identity-service", time.Hour, -time.Minute); err == nil {
		t.Fatal("expected error for negative refresh TTL")
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	t.Parallel()

	issuer, err := NewIssuer("test-secret", "identity-service", time.Hour, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}

	account := testAccount()
	signed, err := issuer.MintAccess(SnapshotClaims(account))
	if err != nil {
		t.Fatalf("MintAccess error: %v", err)
	}

	claims, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.ID != account.ID {
		t.Errorf("claims.ID = %d, want %d", claims.ID, account.ID)
	}
	if claims.FirstName != account.FirstName || claims.LastName != account.LastName {
		t.Errorf("claims name = %q %q, want %q %q", claims.FirstName, claims.LastName, account.FirstName, account.LastName)
	}
	if claims.Email != account.Email {
		t.Errorf("claims.Email = %q, want %q", claims.Email, account.Email)
	}
	if claims.Role != account.Role {
		t.Errorf("claims.Role = %q, want %q", claims.Role, account.Role)
	}
	if claims.Status != account.Status {
		t.Errorf("claims.Status = %q, want %q", claims.Status, account.Status)
	}
	if claims.Subject != account.Email {
		t.Errorf("claims.Subject = %q, want %q", claims.Subject, account.Email)
	}
	if claims.RegisteredClaims.ID == "" {
		t.Error("token id should be populated")
	}
}

func TestIssuer_RefreshOutlivesAccess(t *testing.T) {
	t.Parallel()

	issuer, err := NewIssuer("test-secret", "identity-service", time.Hour, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}

	account := testAccount()
	access, err := issuer.MintAccess(SnapshotClaims(account))
	if err != nil {
		t.Fatalf("MintAccess error: %v", err)
	}
	refresh, err := issuer.MintRefresh(SnapshotClaims(account))
	if err != nil {
		t.Fatalf("MintRefresh error: %v", err)
	}

	accessClaims, err := issuer.Verify(access)
	if err != nil {
		t.Fatalf("Verify access error: %v", err)
	}
	refreshClaims, err := issuer.Verify(refresh)
	if err != nil {
		t.Fatalf("Verify refresh error: %v", err)
	}
	if !refreshClaims.ExpiresAt.After(accessClaims.ExpiresAt.Time) {
		t.Errorf("refresh expiry %v should be after access expiry %v",
			refreshClaims.ExpiresAt.Time, accessClaims.ExpiresAt.Time)
	}
}

func TestIssuer_Expired(t *testing.T) {
	t.Parallel()

	issuer, err := NewIssuer("test-secret", "identity-service", time.Millisecond, time.Millisecond)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}

	signed, err := issuer.MintAccess(SnapshotClaims(testAccount()))
	if err != nil {
		t.Fatalf("MintAccess error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if _, err := issuer.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify after expiry = %v, want %v", err, ErrInvalidToken)
	}
}

func TestIssuer_WrongSecret(t *testing.T) {
	t.Parallel()

	minter, err := NewIssuer("secret-a", "identity-service", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}
	verifier, err := NewIssuer("secret-b", "identity-service", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}

	signed, err := minter.MintAccess(SnapshotClaims(testAccount()))
	if err != nil {
		t.Fatalf("MintAccess error: %v", err)
	}

	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify with wrong secret = %v, want %v", err, ErrInvalidToken)
	}
}

func TestIssuer_WrongIssuer(t *testing.T) {
	t.Parallel()

	minter, err := NewIssuer("shared-secret", "service-a", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}
	verifier, err := NewIssuer("shared-secret", "service-b", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}

	signed, err := minter.MintAccess(SnapshotClaims(testAccount()))
	if err != nil {
		t.Fatalf("MintAccess error: %v", err)
	}

	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify with wrong issuer = %v, want %v", err, ErrInvalidToken)
	}
}

func TestIssuer_Malformed(t *testing.T) {
	t.Parallel()

	issuer, err := NewIssuer("test-secret", "identity-service", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}

	for _, raw := range []string{"", "garbage", "a.b", "not.a.token"} {
		if _, err := issuer.Verify(raw); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Verify(%q) = %v, want %v", raw, err, ErrMalformedToken)
		}
	}
}
