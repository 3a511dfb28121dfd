package keymaterial

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"testing"

	"jwtkeys/jwterr"
)

func b64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func padded(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

func TestToPublicKeyRSA(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	raw := map[string]any{
		"kty": "RSA",
		"n":   b64(priv.PublicKey.N.Bytes()),
		"e":   b64(big.NewInt(int64(priv.PublicKey.E)).Bytes()),
	}

	pub, err := ToPublicKey(raw)
	if err != nil {
		t.Fatalf("ToPublicKey: %v", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		t.Fatalf("expected *rsa.PublicKey, got %T", pub)
	}
	if rsaPub.N.Cmp(priv.PublicKey.N) != 0 || rsaPub.E != priv.PublicKey.E {
		t.Fatalf("decoded key does not match source key")
	}
}

func TestToPublicKeyEC(t *testing.T) {
	curves := []struct {
		name  string
		curve elliptic.Curve
		size  int
	}{
		{"P-256", elliptic.P256(), 32},
		{"P-384", elliptic.P384(), 48},
		{"P-521", elliptic.P521(), 66},
	}

	for _, c := range curves {
		t.Run(c.name, func(t *testing.T) {
			priv, err := ecdsa.GenerateKey(c.curve, rand.Reader)
			if err != nil {
				t.Fatalf("GenerateKey: %v", err)
			}
			raw := map[string]any{
				"kty": "EC",
				"crv": c.name,
				"x":   b64(padded(priv.PublicKey.X.Bytes(), c.size)),
				"y":   b64(padded(priv.PublicKey.Y.Bytes(), c.size)),
			}
			pub, err := ToPublicKey(raw)
			if err != nil {
				t.Fatalf("ToPublicKey: %v", err)
			}
			ecPub, ok := pub.(*ecdsa.PublicKey)
			if !ok {
				t.Fatalf("expected *ecdsa.PublicKey, got %T", pub)
			}
			if ecPub.X.Cmp(priv.PublicKey.X) != 0 || ecPub.Y.Cmp(priv.PublicKey.Y) != 0 {
				t.Fatalf("decoded key does not match source key")
			}
		})
	}
}

func TestToPublicKeyOKP(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	raw := map[string]any{
		"kty": "OKP",
		"crv": "Ed25519",
		"x":   b64(pub),
	}

	got, err := ToPublicKey(raw)
	if err != nil {
		t.Fatalf("ToPublicKey: %v", err)
	}
	edPub, ok := got.(ed25519.PublicKey)
	if !ok {
		t.Fatalf("expected ed25519.PublicKey, got %T", got)
	}
	if !edPub.Equal(pub) {
		t.Fatalf("decoded key does not match source key")
	}
}

func TestValidateJWKRejectsBadUse(t *testing.T) {
	raw := map[string]any{
		"kty": "RSA",
		"n":   "abc",
		"e":   "AQAB",
		"use": "enc",
	}
	err := ValidateJWK(raw)
	if err == nil {
		t.Fatal("expected error for use=enc")
	}
	jerr, ok := err.(*jwterr.Error)
	if !ok || jerr.Kind != jwterr.KindJWKInvalid {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateJWKRejectsIncompatibleAlg(t *testing.T) {
	raw := map[string]any{
		"kty": "EC",
		"crv": "P-256",
		"x":   "abc",
		"y":   "def",
		"alg": "RS256",
	}
	if err := ValidateJWK(raw); err == nil {
		t.Fatal("expected error for incompatible alg")
	}
}

func TestValidateJWKRejectsUnknownKty(t *testing.T) {
	raw := map[string]any{"kty": "oct"}
	if err := ValidateJWK(raw); err == nil {
		t.Fatal("expected error for unsupported kty")
	}
}

func TestEffectiveAlg(t *testing.T) {
	alg, err := EffectiveAlg(map[string]any{"alg": "RS256"}, "ES256")
	if err != nil || alg != "RS256" {
		t.Fatalf("expected jwk.alg to win, got %q, err %v", alg, err)
	}

	alg, err = EffectiveAlg(map[string]any{}, "ES256")
	if err != nil || alg != "ES256" {
		t.Fatalf("expected algHint fallback, got %q, err %v", alg, err)
	}

	_, err = EffectiveAlg(map[string]any{}, "")
	if err == nil {
		t.Fatal("expected error when neither alg nor algHint is set")
	}
}
