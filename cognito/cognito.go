// Package cognito is an issuer specialization for Amazon Cognito user
// pools: a NewVerifier preset that wires up the fixed Cognito JWKS URI
// template and the token_use/client_id/group assertions Cognito tokens
// carry beyond plain OIDC.
package cognito

import (
	"fmt"
	"strings"

	"jwtkeys"
	"jwtkeys/internal/claims"
	"jwtkeys/jwks"
	"jwtkeys/jwterr"
)

// TokenUse distinguishes Cognito's two token kinds, which carry
// different audience semantics: an id token's aud is the app client
// ID, while an access token has no aud at all and instead names the
// client in client_id.
type TokenUse string

const (
	TokenUseID     TokenUse = "id"
	TokenUseAccess TokenUse = "access"
)

// Config configures a Cognito-issuer Verifier.
type Config struct {
	// Region is the AWS region the user pool lives in, e.g. "us-east-1".
	Region string

	// UserPoolID is the Cognito user pool ID, e.g. "us-east-1_abc123".
	UserPoolID string

	// TokenUse restricts verification to one token kind. Required: a
	// Cognito id token and access token validate aud differently, so a
	// Verifier cannot safely accept either at Verify time.
	TokenUse TokenUse

	// ClientIDs lists the app client IDs a token must match (aud for id
	// tokens, client_id for access tokens). Empty disables the check.
	ClientIDs []string

	// RequiredGroups, if non-empty, requires at least one of the listed
	// names to appear in the token's cognito:groups claim.
	RequiredGroups []string

	// JWKSCache lets multiple Cognito verifiers (or verifiers for other
	// issuers) share one jwks.Cache. See jwtkeys.Config.JWKSCache.
	JWKSCache *jwks.Cache
}

// issuerFor builds the standard Cognito issuer URL for a region/pool.
func issuerFor(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// NewVerifier builds a jwtkeys.Verifier preset for a Cognito user pool.
// The JWKS endpoint and issuer are derived from region/userPoolID per
// Cognito's fixed URL scheme; callers only choose which token kind and
// which client IDs/groups to require.
func NewVerifier(cfg Config) (*jwtkeys.Verifier, error) {
	if cfg.Region == "" || cfg.UserPoolID == "" {
		return nil, jwterr.JWKInvalid("cognito: region and user pool ID are required")
	}
	if cfg.TokenUse != TokenUseID && cfg.TokenUse != TokenUseAccess {
		return nil, jwterr.JWKInvalid(fmt.Sprintf("cognito: unsupported token_use %q", cfg.TokenUse))
	}
	if !ValidUserPoolID(cfg.Region, cfg.UserPoolID) {
		return nil, jwterr.JWKInvalid(fmt.Sprintf("cognito: user pool ID %q does not match region %q", cfg.UserPoolID, cfg.Region))
	}

	issuer := issuerFor(cfg.Region, cfg.UserPoolID)

	vcfg := jwtkeys.Config{
		Issuer:    issuer,
		JWKSURI:   issuer + "/.well-known/jwks.json",
		JWKSCache: cfg.JWKSCache,
		Specializations: []claims.SpecializationCheck{
			checkTokenUse(cfg.TokenUse),
			checkClientID(cfg.TokenUse, cfg.ClientIDs),
			checkGroups(cfg.RequiredGroups),
		},
	}

	// id tokens carry aud and are checked by the built-in Audience
	// assertion (which runs before specializations); access tokens have
	// no aud, so ClientIDs is enforced entirely by checkClientID instead.
	if cfg.TokenUse == TokenUseID {
		vcfg.Audience = cfg.ClientIDs
	}

	return jwtkeys.New(vcfg), nil
}

// checkTokenUse rejects a token whose token_use claim does not match
// the configured kind, preventing an access token from being accepted
// where an id token was expected or vice versa.
func checkTokenUse(want TokenUse) claims.SpecializationCheck {
	return func(payload map[string]any) error {
		got, _ := payload["token_use"].(string)
		if got != string(want) {
			return jwterr.CustomCheckFailed(fmt.Errorf("expected token_use %q, got %q", want, got))
		}
		return nil
	}
}

// checkClientID enforces the access-token client_id claim against
// allowed, since Cognito access tokens carry no aud for the built-in
// audience assertion to check. id tokens are covered by Audience
// instead, so this is a no-op for TokenUseID.
func checkClientID(use TokenUse, allowed []string) claims.SpecializationCheck {
	return func(payload map[string]any) error {
		if use != TokenUseAccess || len(allowed) == 0 {
			return nil
		}
		clientID, _ := payload["client_id"].(string)
		for _, a := range allowed {
			if clientID == a {
				return nil
			}
		}
		return jwterr.CustomCheckFailed(fmt.Errorf("client_id %q is not in the allowed list", clientID))
	}
}

// checkGroups requires at least one of required to appear in the
// token's cognito:groups claim, when required is non-empty.
func checkGroups(required []string) claims.SpecializationCheck {
	return func(payload map[string]any) error {
		if len(required) == 0 {
			return nil
		}
		groups := groupsClaim(payload)
		for _, want := range required {
			for _, have := range groups {
				if have == want {
					return nil
				}
			}
		}
		return jwterr.CustomCheckFailed(fmt.Errorf("token is missing all of the required groups %v (has %v)", required, groups))
	}
}

func groupsClaim(payload map[string]any) []string {
	raw, ok := payload["cognito:groups"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, g := range raw {
		if s, ok := g.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// JWKSURI returns the well-known JWKS endpoint for a user pool,
// exported so callers can pre-warm a shared jwks.Cache without
// constructing a full Verifier.
func JWKSURI(region, userPoolID string) string {
	return issuerFor(region, userPoolID) + "/.well-known/jwks.json"
}

// ValidUserPoolID reports whether userPoolID has the region prefix
// Cognito pool IDs always carry, catching an obviously-wrong pool ID
// before it produces a confusing fetch failure.
func ValidUserPoolID(region, userPoolID string) bool {
	return strings.HasPrefix(userPoolID, region+"_")
}
