// Package keymaterial validates JWKs and converts them into Go's
// native public-key types. RSA and EC conversion is hand-rolled:
// base64url-decoded big-endian integers straight into big.Int. OKP
// (Ed25519/Ed448) keys are parsed through lestrrat-go/jwx, which
// already ships a correct decoder for that shape.
package keymaterial

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"math/big"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"jwtkeys/jwterr"
)

// Kty enumerates the supported JWK key types.
type Kty string

const (
	KtyRSA Kty = "RSA"
	KtyEC  Kty = "EC"
	KtyOKP Kty = "OKP"
)

var ecCurves = map[string]elliptic.Curve{
	"P-256": elliptic.P256(),
	"P-384": elliptic.P384(),
	"P-521": elliptic.P521(),
}

var okpCurves = map[string]bool{
	"Ed25519": true,
	"Ed448":   true,
}

// algCompatible reports whether alg is one of the algorithm names
// compatible with kty/crv. Used only to validate an explicit jwk.alg field; it does
// not drive dispatch (that happens via algHint / sigverify).
func algCompatible(kty Kty, crv, alg string) bool {
	switch kty {
	case KtyRSA:
		switch alg {
		case "RS256", "RS384", "RS512", "PS256", "PS384", "PS512":
			return true
		}
	case KtyEC:
		switch crv + ":" + alg {
		case "P-256:ES256", "P-384:ES384", "P-521:ES512":
			return true
		}
	case KtyOKP:
		return alg == "EdDSA"
	}
	return false
}

// ValidateJWK enforces the structural invariants of a JWK: kty must be
// one of RSA/EC/OKP, required fields for that kty must be present, use
// (if set) must be "sig", and alg (if set) must be compatible with
// kty/crv.
func ValidateJWK(raw map[string]any) error {
	ktyRaw, _ := raw["kty"].(string)
	kty := Kty(ktyRaw)

	switch kty {
	case KtyRSA:
		if s, _ := raw["n"].(string); s == "" {
			return jwterr.JWKInvalid("RSA key missing n")
		}
		if s, _ := raw["e"].(string); s == "" {
			return jwterr.JWKInvalid("RSA key missing e")
		}
	case KtyEC:
		crv, _ := raw["crv"].(string)
		if _, ok := ecCurves[crv]; !ok {
			return jwterr.JWKInvalid(fmt.Sprintf("EC key has unsupported crv %q", crv))
		}
		if s, _ := raw["x"].(string); s == "" {
			return jwterr.JWKInvalid("EC key missing x")
		}
		if s, _ := raw["y"].(string); s == "" {
			return jwterr.JWKInvalid("EC key missing y")
		}
	case KtyOKP:
		crv, _ := raw["crv"].(string)
		if !okpCurves[crv] {
			return jwterr.JWKInvalid(fmt.Sprintf("OKP key has unsupported crv %q", crv))
		}
		if s, _ := raw["x"].(string); s == "" {
			return jwterr.JWKInvalid("OKP key missing x")
		}
	default:
		return jwterr.JWKInvalid(fmt.Sprintf("unsupported kty %q", ktyRaw))
	}

	if use, ok := raw["use"].(string); ok && use != "" && use != "sig" {
		return jwterr.JWKInvalid(fmt.Sprintf("unsupported key use %q, only sig is accepted", use))
	}

	if alg, ok := raw["alg"].(string); ok && alg != "" {
		crv, _ := raw["crv"].(string)
		if !algCompatible(kty, crv, alg) {
			return jwterr.JWKInvalid(fmt.Sprintf("alg %q is not compatible with kty %q / crv %q", alg, ktyRaw, crv))
		}
	}

	return nil
}

// EffectiveAlg returns jwk.alg if present, else algHint (from the JWT
// header). It fails with InvalidSignatureAlgorithm if neither is set.
func EffectiveAlg(raw map[string]any, algHint string) (string, error) {
	if alg, ok := raw["alg"].(string); ok && alg != "" {
		return alg, nil
	}
	if algHint != "" {
		return algHint, nil
	}
	return "", jwterr.InvalidSignatureAlgorithm("")
}

// ToPublicKey converts a validated JWK into a Go crypto.PublicKey
// (*rsa.PublicKey, *ecdsa.PublicKey, or ed25519.PublicKey /
// ed448-shaped raw key via jwx).
func ToPublicKey(raw map[string]any) (crypto.PublicKey, error) {
	if err := ValidateJWK(raw); err != nil {
		return nil, err
	}

	kty := Kty(raw["kty"].(string))
	switch kty {
	case KtyRSA:
		return rsaPublicKey(raw)
	case KtyEC:
		return ecPublicKey(raw)
	case KtyOKP:
		return okpPublicKey(raw)
	default:
		return nil, jwterr.JWKInvalid(fmt.Sprintf("unsupported kty %q", kty))
	}
}

func decodeB64BigInt(s string) (*big.Int, error) {
	b, err := decodeB64(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

func rsaPublicKey(raw map[string]any) (*rsa.PublicKey, error) {
	n, err := decodeB64BigInt(raw["n"].(string))
	if err != nil {
		return nil, jwterr.JWKInvalid("failed to decode RSA modulus: " + err.Error())
	}

	eBytes, err := decodeB64(raw["e"].(string))
	if err != nil {
		return nil, jwterr.JWKInvalid("failed to decode RSA exponent: " + err.Error())
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, jwterr.JWKInvalid("RSA exponent is zero")
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}

func ecPublicKey(raw map[string]any) (*ecdsa.PublicKey, error) {
	crv := raw["crv"].(string)
	curve := ecCurves[crv]

	x, err := decodeB64BigInt(raw["x"].(string))
	if err != nil {
		return nil, jwterr.JWKInvalid("failed to decode EC x: " + err.Error())
	}
	y, err := decodeB64BigInt(raw["y"].(string))
	if err != nil {
		return nil, jwterr.JWKInvalid("failed to decode EC y: " + err.Error())
	}

	pub := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	if !curve.IsOnCurve(x, y) {
		return nil, jwterr.JWKInvalid("EC public key point is not on curve " + crv)
	}
	return pub, nil
}

// okpPublicKey hands OKP (Ed25519/Ed448) decoding to jwx rather than
// re-deriving it: round-trip the validated map through JSON and let
// jwk.ParseKey build the concrete key type.
func okpPublicKey(raw map[string]any) (crypto.PublicKey, error) {
	b, err := marshalJSON(raw)
	if err != nil {
		return nil, jwterr.JWKInvalid("failed to marshal OKP JWK: " + err.Error())
	}

	key, err := jwk.ParseKey(b)
	if err != nil {
		return nil, jwterr.JWKInvalid("failed to parse OKP JWK: " + err.Error())
	}

	var pub crypto.PublicKey
	if err := key.Raw(&pub); err != nil {
		return nil, jwterr.JWKInvalid("failed to materialize OKP public key: " + err.Error())
	}
	return pub, nil
}
