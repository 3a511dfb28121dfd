// Package codec implements the base64url and compact-JWT framing used
// throughout jwtkeys. It never touches cryptography or claim semantics;
// it only turns bytes into the shapes the rest of the pipeline needs.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"jwtkeys/jwterr"
)

// DecodeBase64URL decodes the base64url alphabet (A-Z a-z 0-9 - _),
// tolerating 0-2 trailing '=' padding characters. Any other character,
// or a length that is invalid mod 4, fails with InvalidJWT.
func DecodeBase64URL(s string) ([]byte, error) {
	trimmed := strings.TrimRight(s, "=")
	if len(s)-len(trimmed) > 2 {
		return nil, jwterr.InvalidJWT("base64url segment has more than 2 padding characters")
	}
	if len(trimmed)%4 == 1 {
		return nil, jwterr.InvalidJWT("base64url segment has invalid length")
	}

	b, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, jwterr.InvalidJWT("invalid base64url encoding: " + err.Error())
	}
	return b, nil
}

// EncodeBase64URL encodes b using the unpadded base64url alphabet. It
// exists mainly for round-trip tests and for callers constructing
// signing input by hand.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// CompactJWT holds the three decoded segments of a compact JWS, plus
// the exact bytes the signature was computed over.
type CompactJWT struct {
	HeaderB64    string
	PayloadB64   string
	SignatureB64 string
	SigningInput []byte
}

// SplitCompactJWT splits a compact-serialized JWT into its three
// segments. It requires exactly three non-empty, dot-separated parts;
// anything else fails with InvalidJWT.
func SplitCompactJWT(s string) (*CompactJWT, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return nil, jwterr.InvalidJWT("expected 3 dot-separated segments")
	}
	for _, p := range parts {
		if p == "" {
			return nil, jwterr.InvalidJWT("empty segment in compact JWT")
		}
	}

	return &CompactJWT{
		HeaderB64:    parts[0],
		PayloadB64:   parts[1],
		SignatureB64: parts[2],
		SigningInput: []byte(parts[0] + "." + parts[1]),
	}, nil
}

// ParseJSONObject decodes b as a JSON object. Any other JSON shape
// (array, scalar, malformed) fails with InvalidJWT.
func ParseJSONObject(b []byte) (map[string]any, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, jwterr.InvalidJWT("invalid JSON: " + err.Error())
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, jwterr.InvalidJWT("expected a JSON object")
	}
	return obj, nil
}
