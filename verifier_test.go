package jwtkeys

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"jwtkeys/jwks"
	"jwtkeys/jwterr"
)

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func jwkFor(kid string, pub *rsa.PublicKey) map[string]any {
	return map[string]any{
		"kty": "RSA",
		"kid": kid,
		"n":   b64(pub.N.Bytes()),
		"e":   b64(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func signToken(t *testing.T, priv *rsa.PrivateKey, kid string, payload map[string]any) string {
	t.Helper()
	header := map[string]any{"alg": "RS256", "typ": "JWT", "kid": kid}
	hb, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	signingInput := b64(hb) + "." + b64(pb)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signingInput + "." + b64(sig)
}

func newKeyPairAndDoc(t *testing.T, kid string) (*rsa.PrivateKey, []byte) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	doc := map[string]any{"keys": []map[string]any{jwkFor(kid, &priv.PublicKey)}}
	body, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return priv, body
}

type staticFetcher struct {
	body []byte
}

func (f staticFetcher) Fetch(ctx context.Context, uri string, headers map[string]string) ([]byte, error) {
	return f.body, nil
}

func TestVerifyHappyPath(t *testing.T) {
	priv, body := newKeyPairAndDoc(t, "k1")
	cache := jwks.NewCache(jwks.CacheConfig{Fetcher: staticFetcher{body: body}, FetchTimeout: time.Second})

	v := New(Config{
		Issuer:    "https://issuer.example.com",
		Audience:  []string{"my-client"},
		JWKSCache: cache,
	})

	now := time.Now().Unix()
	token := signToken(t, priv, "k1", map[string]any{
		"iss": "https://issuer.example.com",
		"aud": "my-client",
		"exp": now + 3600,
	})

	payload, err := v.Verify(context.Background(), token, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["iss"] != "https://issuer.example.com" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestVerifyRejectsUnknownKid(t *testing.T) {
	priv, body := newKeyPairAndDoc(t, "k1")
	cache := jwks.NewCache(jwks.CacheConfig{Fetcher: staticFetcher{body: body}, FetchTimeout: time.Second})
	v := New(Config{Issuer: "https://issuer.example.com", JWKSCache: cache})

	token := signToken(t, priv, "does-not-exist", map[string]any{"iss": "https://issuer.example.com"})
	_, err := v.Verify(context.Background(), token, nil)
	jerr, ok := err.(*jwterr.Error)
	if !ok || jerr.Kind != jwterr.KindKidNotFoundInJWKS {
		t.Fatalf("expected KidNotFoundInJWKS, got %v", err)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	priv, body := newKeyPairAndDoc(t, "k1")
	cache := jwks.NewCache(jwks.CacheConfig{Fetcher: staticFetcher{body: body}, FetchTimeout: time.Second})
	v := New(Config{Issuer: "https://issuer.example.com", JWKSCache: cache})

	token := signToken(t, priv, "k1", map[string]any{"iss": "https://issuer.example.com"})
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + b64([]byte("not-a-real-signature-not-a-real-signature"))

	_, err := v.Verify(context.Background(), tampered, nil)
	jerr, ok := err.(*jwterr.Error)
	if !ok || jerr.Kind != jwterr.KindInvalidSignature {
		t.Fatalf("expected InvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsFailedClaims(t *testing.T) {
	priv, body := newKeyPairAndDoc(t, "k1")
	cache := jwks.NewCache(jwks.CacheConfig{Fetcher: staticFetcher{body: body}, FetchTimeout: time.Second})
	v := New(Config{Issuer: "https://issuer.example.com", Audience: []string{"my-client"}, JWKSCache: cache})

	token := signToken(t, priv, "k1", map[string]any{
		"iss": "https://issuer.example.com",
		"aud": "someone-else",
	})
	_, err := v.Verify(context.Background(), token, nil)
	jerr, ok := err.(*jwterr.Error)
	if !ok || jerr.Kind != jwterr.KindAudienceNotAllowed {
		t.Fatalf("expected AudienceNotAllowed, got %v", err)
	}
}

func TestVerifySyncUsesOnlyCachedJWKS(t *testing.T) {
	priv, body := newKeyPairAndDoc(t, "k1")
	cache := jwks.NewCache(jwks.CacheConfig{Fetcher: staticFetcher{body: body}, FetchTimeout: time.Second})
	v := New(Config{Issuer: "https://issuer.example.com", JWKSCache: cache})

	token := signToken(t, priv, "k1", map[string]any{"iss": "https://issuer.example.com"})

	// Nothing has been fetched yet: VerifySync must fail without I/O.
	if _, err := v.VerifySync(token, nil); err == nil {
		t.Fatal("expected VerifySync to fail before any fetch has happened")
	}

	// Prime the cache via the async path, then VerifySync should succeed.
	if _, err := v.Verify(context.Background(), token, nil); err != nil {
		t.Fatalf("unexpected error priming cache: %v", err)
	}
	payload, err := v.VerifySync(token, nil)
	if err != nil {
		t.Fatalf("unexpected error on primed VerifySync: %v", err)
	}
	if payload["iss"] != "https://issuer.example.com" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestVerifyOverridesReplaceAudience(t *testing.T) {
	priv, body := newKeyPairAndDoc(t, "k1")
	cache := jwks.NewCache(jwks.CacheConfig{Fetcher: staticFetcher{body: body}, FetchTimeout: time.Second})
	v := New(Config{Issuer: "https://issuer.example.com", Audience: []string{"default-client"}, JWKSCache: cache})

	token := signToken(t, priv, "k1", map[string]any{
		"iss": "https://issuer.example.com",
		"aud": "special-client",
	})

	_, err := v.Verify(context.Background(), token, &Overrides{Audience: []string{"special-client"}})
	if err != nil {
		t.Fatalf("unexpected error with override audience: %v", err)
	}
}

func TestVerifyCustomCheckRuns(t *testing.T) {
	priv, body := newKeyPairAndDoc(t, "k1")
	cache := jwks.NewCache(jwks.CacheConfig{Fetcher: staticFetcher{body: body}, FetchTimeout: time.Second})

	called := false
	v := New(Config{
		Issuer: "https://issuer.example.com",
		JWKSCache: cache,
		CustomCheck: func(ctx context.Context, payload map[string]any) error {
			called = true
			return nil
		},
	})

	token := signToken(t, priv, "k1", map[string]any{"iss": "https://issuer.example.com"})
	if _, err := v.Verify(context.Background(), token, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected custom check to run")
	}
}

func TestVerifyUnsupportedAlgorithm(t *testing.T) {
	priv, body := newKeyPairAndDoc(t, "k1")
	cache := jwks.NewCache(jwks.CacheConfig{Fetcher: staticFetcher{body: body}, FetchTimeout: time.Second})
	v := New(Config{Issuer: "https://issuer.example.com", JWKSCache: cache})

	header := map[string]any{"alg": "none", "kid": "k1"}
	payload := map[string]any{"iss": "https://issuer.example.com"}
	hb, _ := json.Marshal(header)
	pb, _ := json.Marshal(payload)
	token := b64(hb) + "." + b64(pb) + "." + b64([]byte("x"))

	_, _ = priv, token
	_, err := v.Verify(context.Background(), token, nil)
	jerr, ok := err.(*jwterr.Error)
	if !ok || jerr.Kind != jwterr.KindInvalidSignatureAlgorithm {
		t.Fatalf("expected InvalidSignatureAlgorithm, got %v", err)
	}
}

func TestVerifyUsesJWKAlgOverHeaderAlg(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	jwk := jwkFor("k1", &priv.PublicKey)
	jwk["alg"] = "RS256"
	// Header claims PS256, which this code never signed with; the JWK's
	// own alg must win so the RS256 signature below verifies.
	header := map[string]any{"alg": "PS256", "typ": "JWT", "kid": "k1"}
	payload := map[string]any{"iss": "https://issuer.example.com"}
	hb, _ := json.Marshal(header)
	pb, _ := json.Marshal(payload)
	signingInput := b64(hb) + "." + b64(pb)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	token := signingInput + "." + b64(sig)

	doc := map[string]any{"keys": []map[string]any{jwk}}
	body, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	cache := jwks.NewCache(jwks.CacheConfig{Fetcher: staticFetcher{body: body}, FetchTimeout: time.Second})
	v := New(Config{Issuer: "https://issuer.example.com", JWKSCache: cache})

	if _, err := v.Verify(context.Background(), token, nil); err != nil {
		t.Fatalf("expected the JWK's own alg to override the header's PS256, got: %v", err)
	}
}

func TestNewDerivesDefaultJWKSURI(t *testing.T) {
	v := New(Config{Issuer: "https://issuer.example.com"})
	if v.jwksURI != "https://issuer.example.com/.well-known/jwks.json" {
		t.Fatalf("unexpected derived JWKS URI: %s", v.jwksURI)
	}
}
