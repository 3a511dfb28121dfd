// Package compat bridges jwtkeys' map[string]any payload shape to
// golang-jwt/jwt/v5's typed Claims, for callers who want a struct
// instead of a map.
//
// jwtkeys itself never depends on golang-jwt: signature verification
// happens in internal/sigverify and claim checks in internal/claims.
// This package only offers a decode-time convenience for callers that
// want it.
package compat

import (
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"

	"jwtkeys"
)

// Claims is jwt.RegisteredClaims plus a DPoP confirmation claim and a
// space-delimited scope string.
type Claims struct {
	jwt.RegisteredClaims
	Confirmation map[string]any `json:"cnf,omitempty"`
	Scope        string         `json:"scope,omitempty"`
}

// FromPayload converts a jwtkeys.Payload into Claims by round-tripping
// it through JSON. jwtkeys decodes numeric claims as json.Number (see
// internal/codec); json.Marshal renders those back as plain JSON
// numbers, so unmarshaling into jwt.RegisteredClaims' numeric date
// types works the same as decoding a token directly with golang-jwt.
func FromPayload(payload jwtkeys.Payload) (*Claims, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var c Claims
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GroupsClaim extracts a string-slice claim (e.g. Cognito's
// cognito:groups) that jwt.RegisteredClaims has no field for.
func GroupsClaim(payload jwtkeys.Payload, name string) []string {
	raw, ok := payload[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
