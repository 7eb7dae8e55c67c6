// Package reconcile resolves the caller's external identity to an internal
// user on every gateway request and forwards the resolved id downstream.
package reconcile

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"example.com/fitness/libs/go/auth"
	"example.com/fitness/libs/go/directory"
)

// Directory is the subset of the user directory the filter needs.
type Directory interface {
	Exists(ctx context.Context, id string) (bool, error)
	Register(ctx context.Context, claims auth.IdentityClaims) (directory.User, error)
	Lookup(ctx context.Context, id string) (directory.User, error)
}

// ClaimsExtractor turns the Authorization header into identity claims.
type ClaimsExtractor interface {
	Extract(credential string) (auth.IdentityClaims, error)
}

// Outcome labels how a request's identity was settled.
type Outcome string

const (
	OutcomeAnonymous  Outcome = "anonymous"
	OutcomeCached     Outcome = "cached"
	OutcomeExisting   Outcome = "existing"
	OutcomeRegistered Outcome = "registered"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeFailOpen   Outcome = "fail_open"
)

// Resolution is the id to forward and how it was obtained.
// An empty UserID means the request is forwarded untouched.
type Resolution struct {
	UserID  string
	Outcome Outcome
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger used for fail-open branches.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Filter) { f.logger = logger }
}

// WithExtractor replaces the structural-only claims extractor.
func WithExtractor(extractor ClaimsExtractor) Option {
	return func(f *Filter) { f.extractor = extractor }
}

// WithCache enables caching of successful resolutions.
func WithCache(cache Cache) Option {
	return func(f *Filter) { f.cache = cache }
}

// Filter is the identity reconciliation middleware. It holds no per-request
// state; concurrent first requests for one identity may both register and the
// directory settles the duplicate.
type Filter struct {
	directory Directory
	extractor ClaimsExtractor
	cache     Cache
	logger    zerolog.Logger
}

// NewFilter constructs a Filter backed by the given directory.
func NewFilter(dir Directory, opts ...Option) *Filter {
	f := &Filter{
		directory: dir,
		extractor: auth.NewExtractor(),
		cache:     noopCache{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Wrap rewrites X-User-ID to the resolved internal id before calling next.
func (f *Filter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, claims, hasClaims := f.resolve(r.Context(), r.Header.Get(auth.HeaderUserID), r.Header.Get(auth.HeaderAuthorization))
		recordOutcome(res.Outcome)

		if err := r.Context().Err(); err != nil {
			f.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("request cancelled during identity resolution")
			return
		}

		if res.UserID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := auth.WithUserID(r.Context(), res.UserID)
		if hasClaims {
			ctx = auth.WithIdentity(ctx, claims)
		}
		out := r.Clone(ctx)
		out.Header.Set(auth.HeaderUserID, res.UserID)
		next.ServeHTTP(w, out)
	})
}

// Resolve runs the reconciliation steps for one request. It never fails: every
// directory error degrades to forwarding the best id known so far.
func (f *Filter) Resolve(ctx context.Context, userIDHeader, credential string) Resolution {
	res, _, _ := f.resolve(ctx, userIDHeader, credential)
	return res
}

func (f *Filter) resolve(ctx context.Context, userIDHeader, credential string) (Resolution, auth.IdentityClaims, bool) {
	working := strings.TrimSpace(userIDHeader)

	var claims auth.IdentityClaims
	hasClaims := false
	if strings.TrimSpace(credential) != "" {
		extracted, err := f.extractor.Extract(credential)
		if err != nil {
			f.logger.Debug().Err(err).Msg("ignoring unusable credential")
		} else {
			claims, hasClaims = extracted, true
		}
	}

	if working == "" && !hasClaims {
		return Resolution{Outcome: OutcomeAnonymous}, claims, false
	}

	fromSubject := false
	if working == "" {
		working = claims.ExternalID
		fromSubject = true
	}

	key := cacheKey(working, fromSubject)
	if resolved, ok := f.cache.Get(key); ok {
		return Resolution{UserID: resolved, Outcome: OutcomeCached}, claims, hasClaims
	}

	exists, err := f.directory.Exists(ctx, working)
	if err != nil {
		f.logger.Warn().Err(err).Str("user_id", working).Msg("existence check failed, forwarding best-known id")
		return Resolution{UserID: working, Outcome: OutcomeFailOpen}, claims, hasClaims
	}

	if exists {
		if !fromSubject {
			f.cache.Set(key, working)
			return Resolution{UserID: working, Outcome: OutcomeExisting}, claims, hasClaims
		}
		return f.translateSubject(ctx, working, key, working, OutcomeExisting), claims, hasClaims
	}

	if !hasClaims {
		return Resolution{UserID: working, Outcome: OutcomeUnresolved}, claims, hasClaims
	}

	user, err := f.directory.Register(ctx, claims)
	switch {
	case err == nil && user.ID != "":
		f.logger.Info().Str("external_id", claims.ExternalID).Str("user_id", user.ID).Msg("registered user from token")
		f.cache.Set(key, user.ID)
		return Resolution{UserID: user.ID, Outcome: OutcomeRegistered}, claims, hasClaims
	case errors.Is(err, directory.ErrConflict):
		return f.translateSubject(ctx, claims.ExternalID, key, working, OutcomeRegistered), claims, hasClaims
	case errors.Is(err, directory.ErrInvalidRegistration):
		f.logger.Warn().Err(err).Str("external_id", claims.ExternalID).Msg("directory rejected registration, forwarding original id")
	default:
		f.logger.Warn().Err(err).Str("external_id", claims.ExternalID).Msg("registration failed, forwarding original id")
	}
	return Resolution{UserID: working, Outcome: OutcomeFailOpen}, claims, hasClaims
}

// translateSubject maps an external subject to the internal id it was
// registered under and caches it under key. On failure fallback is forwarded instead.
func (f *Filter) translateSubject(ctx context.Context, subject, key, fallback string, outcome Outcome) Resolution {
	user, err := f.directory.Lookup(ctx, subject)
	if err != nil || user.ID == "" {
		f.logger.Warn().Err(err).Str("external_id", subject).Msg("could not translate subject to internal id")
		return Resolution{UserID: fallback, Outcome: OutcomeFailOpen}
	}
	f.cache.Set(key, user.ID)
	return Resolution{UserID: user.ID, Outcome: outcome}
}

// cacheKey namespaces entries by where the working id came from.
func cacheKey(working string, fromSubject bool) string {
	if fromSubject {
		return "sub:" + working
	}
	return "hdr:" + working
}
