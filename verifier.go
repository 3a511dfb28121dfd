// Package jwtkeys verifies compact JWS-serialized JWTs issued by an
// OIDC/OAuth2 identity provider against a caller-supplied policy,
// returning the decoded payload on success. It composes codec,
// keymaterial, sigverify, claims and jwks into a single façade bound
// to exactly one issuer and one JWKS endpoint; a Verifier does not
// accept a set of issuers.
//
// The pipeline is fixed: split the compact JWT, decode header and
// payload, resolve the signing key (from a pre-loaded JWKS or the
// shared jwks.Cache), verify the signature, assert claims, and return
// the payload. VerifySync never performs I/O; Verify may.
package jwtkeys

import (
	"context"
	"time"

	"jwtkeys/internal/claims"
	"jwtkeys/internal/codec"
	"jwtkeys/internal/keymaterial"
	"jwtkeys/internal/sigverify"
	"jwtkeys/jwks"
	"jwtkeys/jwterr"
)

// Payload is the decoded JWT body: claim name to JSON value. Numeric
// claims decode as json.Number (see internal/codec).
type Payload = map[string]any

// Config configures a Verifier: a plain struct constructed directly,
// no functional options.
type Config struct {
	// Issuer is the expected iss value and, absent JWKSURI, is also
	// used to derive the JWKS endpoint.
	Issuer string

	// JWKSURI overrides the derived JWKS endpoint
	// (issuer + "/.well-known/jwks.json").
	JWKSURI string

	// Audience lists acceptable aud values. Nil disables the check.
	Audience []string

	// Scope lists acceptable scopes. Nil disables the check.
	Scope []string

	// GraceSeconds tolerates clock skew on exp/nbf.
	GraceSeconds int64

	// CustomCheck runs last, after every built-in assertion passes.
	CustomCheck claims.CustomCheck

	// Specializations run between nbf and scope; set by issuer
	// specializations such as the cognito package.
	Specializations []claims.SpecializationCheck

	// IncludeRawJWTInErrors attaches the offending token to returned
	// errors for diagnostics. Off by default since tokens are
	// sensitive.
	IncludeRawJWTInErrors bool

	// JWKSCache is injected so multiple Verifiers can share one
	// cache (and its penalty box / in-flight coalescing). A private
	// cache with default bounds is created if nil.
	JWKSCache *jwks.Cache
}

// Verifier verifies JWTs for one issuer. Construct with New.
type Verifier struct {
	issuer  string
	jwksURI string
	policy  claims.Policy
	cache   *jwks.Cache
	raw     bool
}

// New constructs a Verifier from cfg, applying the
// "issuer + /.well-known/jwks.json" default JWKS URI and a
// private default-bounded cache when not overridden.
func New(cfg Config) *Verifier {
	jwksURI := cfg.JWKSURI
	if jwksURI == "" {
		jwksURI = cfg.Issuer + "/.well-known/jwks.json"
	}

	cache := cfg.JWKSCache
	if cache == nil {
		cache = jwks.NewCache(jwks.DefaultCacheConfig())
	}

	return &Verifier{
		issuer:  cfg.Issuer,
		jwksURI: jwksURI,
		cache:   cache,
		raw:     cfg.IncludeRawJWTInErrors,
		policy: claims.Policy{
			Issuer:          issuerList(cfg.Issuer),
			Audience:        cfg.Audience,
			GraceSeconds:    cfg.GraceSeconds,
			Scope:           cfg.Scope,
			Specializations: cfg.Specializations,
			Custom:          cfg.CustomCheck,
		},
	}
}

func issuerList(issuer string) []string {
	if issuer == "" {
		return nil
	}
	return []string{issuer}
}

// Overrides lets a single call replace parts of the verifier's default
// policy, e.g. to accept a different scope list for one endpoint. Each
// non-empty field replaces the corresponding default; it is not merged
// with it.
type Overrides struct {
	Audience    []string
	Scope       []string
	CustomCheck claims.CustomCheck
}

func (v *Verifier) effectivePolicy(o *Overrides) claims.Policy {
	p := v.policy
	if o == nil {
		return p
	}
	if len(o.Audience) > 0 {
		p.Audience = o.Audience
	}
	if len(o.Scope) > 0 {
		p.Scope = o.Scope
	}
	if o.CustomCheck != nil {
		p.Custom = o.CustomCheck
	}
	return p
}

// decoded holds the parsed-but-unverified pieces of a compact JWT,
// shared by both VerifySync and Verify.
type decoded struct {
	compact *codec.CompactJWT
	header  map[string]any
	payload map[string]any
	alg     string
	kid     string
}

func decode(jwt string) (*decoded, error) {
	compact, err := codec.SplitCompactJWT(jwt)
	if err != nil {
		return nil, err
	}

	headerBytes, err := codec.DecodeBase64URL(compact.HeaderB64)
	if err != nil {
		return nil, err
	}
	header, err := codec.ParseJSONObject(headerBytes)
	if err != nil {
		return nil, err
	}

	payloadBytes, err := codec.DecodeBase64URL(compact.PayloadB64)
	if err != nil {
		return nil, err
	}
	payload, err := codec.ParseJSONObject(payloadBytes)
	if err != nil {
		return nil, err
	}

	alg, _ := header["alg"].(string)
	kid, _ := header["kid"].(string)

	return &decoded{compact: compact, header: header, payload: payload, alg: alg, kid: kid}, nil
}

func (v *Verifier) wrapErr(err error, jwt string) error {
	if !v.raw || err == nil {
		return err
	}
	if jerr, ok := err.(*jwterr.Error); ok {
		return jerr.WithRawJWT(jwt)
	}
	return err
}

// VerifySync verifies jwt using only the JWKS already resident in the
// shared cache. It never performs I/O: a cache miss for the token's
// kid fails with KidNotFoundInJWKS rather than triggering a fetch.
func (v *Verifier) VerifySync(jwt string, overrides *Overrides) (Payload, error) {
	d, err := decode(jwt)
	if err != nil {
		return nil, v.wrapErr(err, jwt)
	}

	doc := v.cache.Peek(v.issuer)
	if doc == nil {
		return nil, v.wrapErr(jwterr.KidNotFoundInJWKS(v.issuer, d.kid), jwt)
	}

	key, alg, err := peekKey(doc, v.issuer, d.kid, d.alg)
	if err != nil {
		return nil, v.wrapErr(err, jwt)
	}

	return v.verifyWithKey(context.Background(), d, key, alg, overrides, jwt)
}

// peekKey resolves kid against an already-fetched Document without
// any cache state transition (no refresh, no penalty box): VerifySync
// promises never to perform I/O, so an absent kid here is final. It
// returns the effective algorithm to verify with: the JWK's own alg
// field if it set one, otherwise algHint.
func peekKey(doc *jwks.Document, issuer, kid, algHint string) (interface{}, string, error) {
	jwk, err := doc.FindForSync(issuer, kid)
	if err != nil {
		return nil, "", err
	}
	alg, err := keymaterial.EffectiveAlg(jwk, algHint)
	if err != nil {
		return nil, "", err
	}
	pub, err := keymaterial.ToPublicKey(jwk)
	if err != nil {
		return nil, "", err
	}
	return pub, alg, nil
}

// Verify verifies jwt, consulting the shared JWKS cache (and
// performing a fetch) if the token's kid is not already resident.
// This is the only operation in the package that can suspend.
func (v *Verifier) Verify(ctx context.Context, jwt string, overrides *Overrides) (Payload, error) {
	d, err := decode(jwt)
	if err != nil {
		return nil, v.wrapErr(err, jwt)
	}

	key, alg, err := v.cache.GetKey(ctx, v.issuer, v.jwksURI, d.kid, d.alg)
	if err != nil {
		return nil, v.wrapErr(err, jwt)
	}

	return v.verifyWithKey(ctx, d, key, alg, overrides, jwt)
}

// verifyWithKey checks the signature and asserts claims. alg is the
// effective algorithm resolved from the signing key: the JWK's own alg
// field if it set one, otherwise the JWT header's alg.
func (v *Verifier) verifyWithKey(ctx context.Context, d *decoded, key interface{}, alg string, overrides *Overrides, jwt string) (Payload, error) {
	if !sigverify.Supported(alg) {
		return nil, v.wrapErr(jwterr.InvalidSignatureAlgorithm(alg), jwt)
	}

	sig, err := codec.DecodeBase64URL(d.compact.SignatureB64)
	if err != nil {
		return nil, v.wrapErr(err, jwt)
	}

	ok, err := sigverify.Verify(ctx, alg, key, d.compact.SigningInput, sig)
	if err != nil {
		return nil, v.wrapErr(err, jwt)
	}
	if !ok {
		return nil, v.wrapErr(jwterr.InvalidSignature(), jwt)
	}

	policy := v.effectivePolicy(overrides)
	if err := claims.Assert(ctx, d.payload, time.Now().Unix(), policy); err != nil {
		return nil, v.wrapErr(err, jwt)
	}

	return d.payload, nil
}
