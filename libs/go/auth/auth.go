// Package auth turns bearer credentials into identity claims and carries the
// resolved user identity between services.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Header names shared by the gateway and downstream services.
const (
	HeaderUserID        = "X-User-ID"
	HeaderAuthorization = "Authorization"
)

const bearerPrefix = "bearer "

// IdentityClaims is the identity asserted by the external provider's token.
type IdentityClaims struct {
	ExternalID string
	Email      string
	GivenName  string
	FamilyName string
}

// ErrMalformedCredential is returned when the credential cannot be parsed as a JWT.
var ErrMalformedCredential = errors.New("malformed credential")

// ErrMissingSubject is returned when the token carries no subject claim.
var ErrMissingSubject = errors.New("credential has no subject")

// Config holds signer verification parameters.
type Config struct {
	Secret string
	Issuer string
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithHMACVerification makes the extractor verify HS256 signatures and the issuer.
func WithHMACVerification(cfg Config) ExtractorOption {
	return func(e *Extractor) {
		if cfg.Secret == "" {
			return
		}
		e.verify = &cfg
	}
}

// Extractor reads identity claims out of bearer credentials.
// Without options it only checks structure; signatures are verified upstream.
type Extractor struct {
	verify *Config
}

// NewExtractor constructs an Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = NewExtractor()

// Extract parses a credential with the structural-only extractor.
func Extract(credential string) (IdentityClaims, error) {
	return defaultExtractor.Extract(credential)
}

// Extract strips the bearer scheme and returns the normalised claim set.
func (e *Extractor) Extract(credential string) (IdentityClaims, error) {
	token := stripScheme(credential)
	if token == "" {
		return IdentityClaims{}, ErrMalformedCredential
	}

	claims := jwt.MapClaims{}
	if e.verify != nil {
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(e.verify.Secret), nil
		}, jwt.WithIssuer(e.verify.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
		if err != nil {
			return IdentityClaims{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
		}
		if !parsed.Valid {
			return IdentityClaims{}, ErrMalformedCredential
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return IdentityClaims{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
		}
	}

	subject := strings.TrimSpace(stringClaim(claims, "sub"))
	if subject == "" {
		return IdentityClaims{}, ErrMissingSubject
	}

	return IdentityClaims{
		ExternalID: subject,
		Email:      stringClaim(claims, "email"),
		GivenName:  stringClaim(claims, "given_name"),
		FamilyName: stringClaim(claims, "family_name"),
	}, nil
}

func stripScheme(credential string) string {
	credential = strings.TrimSpace(credential)
	if len(credential) >= len(bearerPrefix) && strings.EqualFold(credential[:len(bearerPrefix)], bearerPrefix) {
		credential = credential[len(bearerPrefix):]
	}
	return strings.TrimSpace(credential)
}

func stringClaim(claims jwt.MapClaims, key string) string {
	value, _ := claims[key].(string)
	return value
}
