package jwks

import (
	"reflect"

	"jwtkeys/internal/codec"
	"jwtkeys/jwterr"
)

// Document is a parsed JWKS: the set of JWKs published at one issuer's
// JWKS endpoint. Each key is kept as its raw JSON object so
// keymaterial can validate and convert it lazily, only for the kid
// actually requested.
type Document struct {
	Keys []map[string]any
}

// ParseDocument parses a JWKS response body. It fails with
// JWKSValidationError if the body is not a JSON object with a "keys"
// array of JSON objects.
func ParseDocument(body []byte) (*Document, error) {
	obj, err := codec.ParseJSONObject(body)
	if err != nil {
		return nil, jwterr.JWKSValidationError("JWKS body is not a JSON object: " + err.Error())
	}

	rawKeys, ok := obj["keys"].([]any)
	if !ok {
		return nil, jwterr.JWKSValidationError(`JWKS is missing a "keys" array`)
	}

	keys := make([]map[string]any, 0, len(rawKeys))
	for _, rk := range rawKeys {
		km, ok := rk.(map[string]any)
		if !ok {
			return nil, jwterr.JWKSValidationError("JWKS contains a non-object key entry")
		}
		keys = append(keys, km)
	}

	return &Document{Keys: keys}, nil
}

// lookupResult is the outcome of matching a kid (or lack thereof)
// against a Document.
type lookupResult int

const (
	lookupNotFound lookupResult = iota
	lookupFound
	lookupAmbiguous
)

// findKey matches kid against doc. When kid is empty, a Document with
// exactly one key matches it; a Document with no keys reports not
// found, and one with multiple keys is reported ambiguous so callers
// fail closed rather than guess.
func findKey(doc *Document, kid string) (map[string]any, lookupResult) {
	if kid == "" {
		switch len(doc.Keys) {
		case 0:
			return nil, lookupNotFound
		case 1:
			return doc.Keys[0], lookupFound
		default:
			return nil, lookupAmbiguous
		}
	}

	var matches []map[string]any
	for _, k := range doc.Keys {
		if kidOf(k) == kid {
			matches = append(matches, k)
		}
	}

	switch len(matches) {
	case 0:
		return nil, lookupNotFound
	case 1:
		return matches[0], lookupFound
	default:
		// Duplicate kids are only ambiguous when the key material
		// actually differs; repeated publication of the identical key
		// under the same kid is harmless.
		for _, m := range matches[1:] {
			if !reflect.DeepEqual(m, matches[0]) {
				return nil, lookupAmbiguous
			}
		}
		return matches[0], lookupFound
	}
}

func kidOf(jwk map[string]any) string {
	kid, _ := jwk["kid"].(string)
	return kid
}

// FindForSync matches kid against doc using the same rules as a
// refresh-backed lookup, without triggering one. It is exported for
// the verifier façade's synchronous path, which must resolve a key
// from an already-cached Document only. issuer is only used to
// annotate a returned error.
func (doc *Document) FindForSync(issuer, kid string) (map[string]any, error) {
	jwk, result := findKey(doc, kid)
	switch result {
	case lookupFound:
		return jwk, nil
	case lookupAmbiguous:
		return nil, jwterr.JWKSMultipleKeysFound(issuer, kid)
	default:
		return nil, jwterr.KidNotFoundInJWKS(issuer, kid)
	}
}
