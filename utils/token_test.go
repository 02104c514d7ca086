package utils

import (
	"testing"

	"github.com/dgrijalva/jwt-go"
)

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate(42, "admin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	parsed, err := JwtValidate(token)
	if err != nil || !parsed.Valid {
		t.Fatalf("generated token should validate, got valid=%v err=%v", parsed != nil && parsed.Valid, err)
	}
	claim, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatalf("unexpected claims type %T", parsed.Claims)
	}
	if claim.ID != 42 || claim.Role != "admin" {
		t.Fatalf("claims did not survive the round trip: %+v", claim)
	}
}

func TestJwtValidate_RejectsTamperedSignature(t *testing.T) {
	token, err := JwtGenerate(1, "user")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	tampered := token + "tampered"
	if parsed, err := JwtValidate(tampered); err == nil && parsed.Valid {
		t.Fatal("tampered token must not validate")
	}
}

func TestJwtValidate_RejectsUnsignedToken(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &JwtCustomClaim{ID: 1, Role: "admin"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing with none: %v", err)
	}
	if parsed, err := JwtValidate(token); err == nil && parsed.Valid {
		t.Fatal("alg=none token must not validate")
	}
}
