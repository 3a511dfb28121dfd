// Package claims evaluates policy-driven assertions against a decoded
// JWT payload, in a fixed order chosen for deterministic failure
// attribution: issuer, audience, expiration, not-before,
// specialization hooks, scope, then a custom check. The first failing
// assertion's error is returned; later ones are not evaluated.
package claims

import (
	"context"
	"encoding/json"
	"strings"

	"jwtkeys/jwterr"
)

// CustomCheck is an opaque caller-supplied assertion, evaluated last.
// It may block (e.g. a remote lookup), hence the context.
type CustomCheck func(ctx context.Context, payload map[string]any) error

// SpecializationCheck lets an issuer specialization (e.g. cognito)
// inject additional assertions between nbf and scope, without adding
// a new pipeline stage of its own.
type SpecializationCheck func(payload map[string]any) error

// Policy configures which assertions Assert evaluates.
type Policy struct {
	// Issuer lists acceptable iss values. Nil/empty disables the check.
	Issuer []string

	// Audience lists acceptable aud values (payload.aud may be a
	// scalar or list; at least one must intersect). Nil/empty
	// disables the check.
	Audience []string

	// GraceSeconds is added to exp and subtracted from nbf before
	// comparison.
	GraceSeconds int64

	// Scope lists acceptable scopes; payload.scope is space-delimited
	// and at least one listed scope must appear. Nil/empty disables
	// the check.
	Scope []string

	// Specializations run after nbf and before scope, in order.
	Specializations []SpecializationCheck

	// Custom runs last, after every other check has passed.
	Custom CustomCheck
}

// Assert evaluates policy against payload in the fixed order: iss,
// aud, exp, nbf, specializations, scope, custom. The first failing
// check's error is returned; later checks are not evaluated.
func Assert(ctx context.Context, payload map[string]any, now int64, policy Policy) error {
	if err := assertIssuer(payload, policy.Issuer); err != nil {
		return err
	}
	if err := assertAudience(payload, policy.Audience); err != nil {
		return err
	}
	if err := assertExpiry(payload, now, policy.GraceSeconds); err != nil {
		return err
	}
	if err := assertNotBefore(payload, now, policy.GraceSeconds); err != nil {
		return err
	}
	for _, check := range policy.Specializations {
		if err := check(payload); err != nil {
			return err
		}
	}
	if err := assertScope(payload, policy.Scope); err != nil {
		return err
	}
	if policy.Custom != nil {
		if err := policy.Custom(ctx, payload); err != nil {
			return jwterr.CustomCheckFailed(err)
		}
	}
	return nil
}

func assertIssuer(payload map[string]any, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	iss, _ := payload["iss"].(string)
	for _, a := range allowed {
		if iss == a {
			return nil
		}
	}
	return jwterr.IssuerNotAllowed(iss)
}

// audienceValues normalizes payload.aud, which per RFC 7519 may be a
// single string or an array of strings.
func audienceValues(payload map[string]any) []string {
	switch v := payload["aud"].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func assertAudience(payload map[string]any, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	got := audienceValues(payload)
	for _, g := range got {
		for _, a := range allowed {
			if g == a {
				return nil
			}
		}
	}
	return jwterr.AudienceNotAllowed(got)
}

func assertExpiry(payload map[string]any, now, grace int64) error {
	exp, ok := numericClaim(payload, "exp")
	if !ok {
		return nil
	}
	if now > exp+grace {
		return jwterr.Expired(exp, now)
	}
	return nil
}

func assertNotBefore(payload map[string]any, now, grace int64) error {
	nbf, ok := numericClaim(payload, "nbf")
	if !ok {
		return nil
	}
	if now < nbf-grace {
		return jwterr.NotBefore(nbf, now)
	}
	return nil
}

func assertScope(payload map[string]any, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	scopeStr, _ := payload["scope"].(string)
	have := strings.Fields(scopeStr)
	haveSet := make(map[string]struct{}, len(have))
	for _, s := range have {
		haveSet[s] = struct{}{}
	}
	for _, want := range allowed {
		if _, ok := haveSet[want]; ok {
			return nil
		}
	}
	return jwterr.ScopeNotAllowed(scopeStr)
}

// numericClaim extracts an integer-valued claim. Payloads decoded via
// codec.ParseJSONObject carry numbers as json.Number (decoder runs
// with UseNumber); this also tolerates a plain float64 for payloads
// built by hand (e.g. in tests).
func numericClaim(payload map[string]any, name string) (int64, bool) {
	v, ok := payload[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
