package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"catalyst.org/internal/keys"
	"catalyst.org/internal/obs"
	"catalyst.org/internal/registry"
)

// Reason codes for invalid tokens. Callers get a structured result, never a
// raw cryptographic library error.
type Reason string

const (
	ReasonOK         Reason = "ok"
	ReasonMalformed  Reason = "malformed"
	ReasonSignature  Reason = "signature_invalid"
	ReasonUnknownKey Reason = "unknown_key"
	ReasonIssuer     Reason = "issuer_mismatch"
	ReasonExpired    Reason = "expired"
	ReasonRevoked    Reason = "revoked"
)

// Result is the outcome of a validation call. Subject and Claims are only
// populated when Valid is true.
type Result struct {
	Valid     bool      `json:"valid"`
	Reason    Reason    `json:"reason"`
	Subject   string    `json:"subject,omitempty"`
	Claims    []string  `json:"claims,omitempty"`
	Issuer    string    `json:"issuer,omitempty"`
	JTI       string    `json:"jti,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// RevocationChecker is the registry lookup consulted before a token is
// trusted. An error here means the registry is unavailable, not that the
// token is invalid.
type RevocationChecker interface {
	TokenStatus(ctx context.Context, jti string) (registry.Status, bool, error)
}

// Validator verifies signature, issuer, expiry, and revocation status for a
// namespace's tokens.
type Validator struct {
	keys        *keys.Provider
	revocations RevocationChecker
	now         func() time.Time
}

// ValidatorOption configures optional validator behavior.
type ValidatorOption func(*Validator)

// WithValidatorClock overrides the time source (useful for tests).
func WithValidatorClock(fn func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewValidator constructs a Validator.
func NewValidator(provider *keys.Provider, revocations RevocationChecker, opts ...ValidatorOption) (*Validator, error) {
	if provider == nil {
		return nil, errors.New("token: key provider is required")
	}
	if revocations == nil {
		return nil, errors.New("token: revocation checker is required")
	}
	v := &Validator{keys: provider, revocations: revocations, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Validate checks a compact token under the given namespace. The returned
// error is non-nil only for infrastructure failures (key store or registry
// unavailable); every token defect comes back as an invalid Result.
func (v *Validator) Validate(ctx context.Context, tokenString, namespace string) (Result, error) {
	var infraErr error
	keyfunc := func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			active, err := v.keys.ActiveSigningKey(ctx, namespace)
			if err != nil {
				infraErr = err
				return nil, err
			}
			return active.Public, nil
		}
		// All retained versions are tried, not only the active one.
		pub, err := v.keys.VerificationKey(ctx, namespace, kid)
		if err != nil {
			if !errors.Is(err, keys.ErrUnknownKID) {
				infraErr = err
			}
			return nil, err
		}
		return pub, nil
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	parsed, err := parser.ParseWithClaims(tokenString, &Claims{}, keyfunc)
	if err != nil {
		if infraErr != nil {
			return Result{}, infraErr
		}
		return v.reject(reasonForParseError(err)), nil
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return v.reject(ReasonMalformed), nil
	}

	// Tokens signed under one namespace must fail under another.
	if !strings.HasPrefix(claims.Issuer, keys.IssuerPrefix(namespace)) {
		return v.reject(ReasonIssuer), nil
	}
	if claims.ID == "" {
		return v.reject(ReasonMalformed), nil
	}

	status, found, err := v.revocations.TokenStatus(ctx, claims.ID)
	if err != nil {
		return Result{}, err
	}
	if found && status != registry.StatusActive {
		if status == registry.StatusExpired {
			return v.reject(ReasonExpired), nil
		}
		return v.reject(ReasonRevoked), nil
	}

	obs.TokenValidations.WithLabelValues(string(ReasonOK)).Inc()
	return Result{
		Valid:     true,
		Reason:    ReasonOK,
		Subject:   claims.Subject,
		Claims:    claims.Claims,
		Issuer:    claims.Issuer,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (v *Validator) reject(reason Reason) Result {
	obs.TokenValidations.WithLabelValues(string(reason)).Inc()
	return Result{Valid: false, Reason: reason}
}

func reasonForParseError(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, keys.ErrUnknownKID):
		return ReasonUnknownKey
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	default:
		return ReasonSignature
	}
}
