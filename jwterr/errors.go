// Package jwterr defines the tagged error kinds surfaced by jwtkeys.
//
// Every failure in the verification pipeline is an *Error whose Kind
// names the failure. It carries enough context to explain itself and a
// Retryable method so callers can decide whether to retry a verify call
// without string-matching error messages.
package jwterr

import "fmt"

// Kind identifies which stage of the pipeline produced an error.
type Kind string

const (
	KindInvalidJWT                Kind = "invalid_jwt"
	KindJWKInvalid                Kind = "jwk_invalid"
	KindJWKSValidationError       Kind = "jwks_validation_error"
	KindKidNotFoundInJWKS         Kind = "kid_not_found_in_jwks"
	KindJWKSMultipleKeysFound     Kind = "jwks_multiple_keys_found"
	KindInvalidSignatureAlgorithm Kind = "jwt_invalid_signature_algorithm"
	KindInvalidSignature          Kind = "invalid_signature"
	KindNotSupported              Kind = "not_supported"
	KindExpired                   Kind = "jwt_expired"
	KindNotBefore                 Kind = "jwt_not_before"
	KindIssuerNotAllowed          Kind = "jwt_issuer_not_allowed"
	KindAudienceNotAllowed        Kind = "jwt_audience_not_allowed"
	KindScopeNotAllowed           Kind = "jwt_scope_not_allowed"
	KindCustomCheckFailed         Kind = "jwt_custom_check_failed"
	KindFetchError                Kind = "fetch_error"
	KindNonRetryableFetchError    Kind = "non_retryable_fetch_error"
)

// Error is the single error type returned from every public jwtkeys
// entry point. Callers type-switch on Kind, or call Retryable, rather
// than inspecting the message.
type Error struct {
	Kind Kind

	// Message is a short human-readable description.
	Message string

	// Claim names the offending claim, when applicable (e.g. "aud").
	Claim string

	// Kid is the key ID involved, when applicable.
	Kid string

	// Issuer is the issuer involved, when applicable.
	Issuer string

	// RawJWT carries the offending token, only populated when the
	// verifier is configured with IncludeRawJWTInErrors.
	RawJWT string

	// Cause is the underlying error, if any (e.g. a transport error).
	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a caller may reasonably retry the
// operation that produced this error. Only transport failures that
// are not a definitive rejection (e.g. network blips, timeouts) are
// retryable; everything else - bad input, a provably unknown key, a
// failed assertion - is not.
func (e *Error) Retryable() bool {
	return e.Kind == KindFetchError
}

func newErr(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func InvalidJWT(message string) *Error { return newErr(KindInvalidJWT, message) }

func JWKInvalid(message string) *Error { return newErr(KindJWKInvalid, message) }

func JWKSValidationError(message string) *Error {
	return newErr(KindJWKSValidationError, message)
}

func KidNotFoundInJWKS(issuer, kid string) *Error {
	e := newErr(KindKidNotFoundInJWKS, fmt.Sprintf("kid %q not found in JWKS for issuer %q", kid, issuer))
	e.Kid = kid
	e.Issuer = issuer
	return e
}

func JWKSMultipleKeysFound(issuer, kid string) *Error {
	e := newErr(KindJWKSMultipleKeysFound, fmt.Sprintf("multiple keys share kid %q in JWKS for issuer %q", kid, issuer))
	e.Kid = kid
	e.Issuer = issuer
	return e
}

func InvalidSignatureAlgorithm(alg string) *Error {
	return newErr(KindInvalidSignatureAlgorithm, fmt.Sprintf("unsupported or missing signature algorithm %q", alg))
}

func InvalidSignature() *Error {
	return newErr(KindInvalidSignature, "signature verification failed")
}

func NotSupported(what string) *Error {
	return newErr(KindNotSupported, fmt.Sprintf("%s is not supported on this platform", what))
}

func Expired(exp, now int64) *Error {
	e := newErr(KindExpired, fmt.Sprintf("token expired at %d, now %d", exp, now))
	e.Claim = "exp"
	return e
}

func NotBefore(nbf, now int64) *Error {
	e := newErr(KindNotBefore, fmt.Sprintf("token not valid until %d, now %d", nbf, now))
	e.Claim = "nbf"
	return e
}

func IssuerNotAllowed(iss string) *Error {
	e := newErr(KindIssuerNotAllowed, fmt.Sprintf("issuer %q is not allowed", iss))
	e.Claim = "iss"
	e.Issuer = iss
	return e
}

func AudienceNotAllowed(aud []string) *Error {
	e := newErr(KindAudienceNotAllowed, fmt.Sprintf("audience %v is not allowed", aud))
	e.Claim = "aud"
	return e
}

func ScopeNotAllowed(scope string) *Error {
	e := newErr(KindScopeNotAllowed, fmt.Sprintf("scope %q does not satisfy policy", scope))
	e.Claim = "scope"
	return e
}

func CustomCheckFailed(cause error) *Error {
	e := newErr(KindCustomCheckFailed, "custom claim check failed")
	e.Cause = cause
	return e
}

func FetchError(message string, cause error) *Error {
	e := newErr(KindFetchError, message)
	e.Cause = cause
	return e
}

func NonRetryableFetchError(status int, message string) *Error {
	return newErr(KindNonRetryableFetchError, fmt.Sprintf("%s (status %d)", message, status))
}

// WithRawJWT returns a copy of e with RawJWT set, used by the verifier
// façade when IncludeRawJWTInErrors is enabled.
func (e *Error) WithRawJWT(raw string) *Error {
	cp := *e
	cp.RawJWT = raw
	return &cp
}
