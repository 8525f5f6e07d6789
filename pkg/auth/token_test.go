package auth

import (
	"testing"
	"time"

	"github.com/SpiritGreen/mushroom-checker-backend/pkg/config"
	"github.com/google/uuid"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "mushcheck",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	accountID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		AccountID: accountID,
		Email:     "forager@example.com",
	})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.AccountID != accountID {
		t.Errorf("expected account %s, got %s", accountID, claims.AccountID)
	}
	if claims.Email != "forager@example.com" {
		t.Errorf("unexpected email %q", claims.Email)
	}
	if claims.Subject != accountID.String() {
		t.Errorf("subject should mirror account id, got %q", claims.Subject)
	}
}

func TestMintRequiresAccountID(t *testing.T) {
	if _, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{}); err == nil {
		t.Fatal("expected error for missing account id")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{AccountID: uuid.New()})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{AccountID: uuid.New()})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch to fail validation")
	}
}

func TestParseRejectsTamperedSecret(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{AccountID: uuid.New()})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected signature mismatch to fail validation")
	}
}
