package auth

import (
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{
		UserID:   "user-1",
		Role:     RoleStudent,
		SchoolID: "school-1",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseToken("secret", "issuer", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if claims.UserID != "user-1" || claims.Role != RoleStudent || claims.SchoolID != "school-1" {
		t.Fatalf("unexpected claims")
	}
}

func TestParseTokenRejectsWrongIssuerAndSecret(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{UserID: "user-1", Role: RoleTeacher})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", "other-issuer", token); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
	if _, err := ParseToken("other-secret", "issuer", token); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", -time.Minute, Claims{UserID: "user-1", Role: RoleTeacher})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", "issuer", token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestCanAccessSchool(t *testing.T) {
	super := &Claims{Role: RoleSuperAdmin}
	admin := &Claims{Role: RoleSchoolAdmin, SchoolID: "school-1"}
	var missing *Claims

	if !super.CanAccessSchool("anything") {
		t.Fatalf("super admin should access any school")
	}
	if !admin.CanAccessSchool("school-1") || admin.CanAccessSchool("school-2") {
		t.Fatalf("school admin should only access own school")
	}
	if admin.CanAccessSchool("") {
		t.Fatalf("empty school id must not match")
	}
	if missing.CanAccessSchool("school-1") || missing.IsAdmin() {
		t.Fatalf("nil claims must deny")
	}
}
