package reconcile

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/fitness/libs/go/auth"
	"example.com/fitness/libs/go/directory"
)

func TestFreshIdentityIsRegisteredAndForwarded(t *testing.T) {
	dir := newFakeDirectory()
	filter := NewFilter(dir)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activity", nil)
	req.Header.Set(auth.HeaderAuthorization, bearer(t, jwt.MapClaims{"sub": "ext-1", "email": "a@x.com"}))

	forwarded := serve(t, filter, req)

	require.Equal(t, "u-1", forwarded.Header.Get(auth.HeaderUserID))
	require.Equal(t, []string{"ext-1"}, dir.existsIDs())
	require.Equal(t, 1, dir.registerCount())
	stored, ok := dir.userByExternal("ext-1")
	require.True(t, ok)
	require.Equal(t, "a@x.com", stored.Email)

	ctxID, ok := auth.UserIDFromContext(forwarded.Context())
	require.True(t, ok)
	require.Equal(t, "u-1", ctxID)

	identity, ok := auth.IdentityFromContext(forwarded.Context())
	require.True(t, ok)
	require.Equal(t, auth.IdentityClaims{ExternalID: "ext-1", Email: "a@x.com"}, identity)
}

func TestKnownInternalIDSkipsRegistration(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed(directory.User{ID: "u-1", ExternalID: "ext-1"})
	filter := NewFilter(dir)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activity", nil)
	req.Header.Set(auth.HeaderUserID, "u-1")
	req.Header.Set(auth.HeaderAuthorization, bearer(t, jwt.MapClaims{"sub": "ext-1"}))

	forwarded := serve(t, filter, req)

	require.Equal(t, "u-1", forwarded.Header.Get(auth.HeaderUserID))
	require.Zero(t, dir.registerCount())
	require.Zero(t, dir.lookupCount())
}

func TestKnownSubjectIsTranslatedToInternalID(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed(directory.User{ID: "u-7", ExternalID: "ext-7"})
	filter := NewFilter(dir)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(auth.HeaderAuthorization, bearer(t, jwt.MapClaims{"sub": "ext-7"}))

	forwarded := serve(t, filter, req)

	require.Equal(t, "u-7", forwarded.Header.Get(auth.HeaderUserID))
	require.Zero(t, dir.registerCount())
}

func TestConcurrentFirstRequestsResolveToOneUser(t *testing.T) {
	dir := newFakeDirectory()
	dir.holdExists(2)
	filter := NewFilter(dir)
	credential := bearer(t, jwt.MapClaims{"sub": "ext-race", "email": "race@x.com"})

	var wg sync.WaitGroup
	results := make([]Resolution, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = filter.Resolve(context.Background(), "", credential)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 2, dir.registerCount(), "both requests observed exists=false")
	require.Equal(t, 1, dir.userCount())
	require.Equal(t, results[0].UserID, results[1].UserID)
	require.Equal(t, OutcomeRegistered, results[0].Outcome)
	require.Equal(t, OutcomeRegistered, results[1].Outcome)
}

func TestDirectoryOutageFailsOpen(t *testing.T) {
	dir := newFakeDirectory()
	dir.existsErr = directory.ErrRemoteUnavailable
	dir.registerErr = directory.ErrRemoteUnavailable
	filter := NewFilter(dir)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/activity/track", nil)
	req.Header.Set(auth.HeaderUserID, "u-42")
	req.Header.Set(auth.HeaderAuthorization, bearer(t, jwt.MapClaims{"sub": "ext-42"}))

	before := testutil.ToFloat64(reconciliationCounter.WithLabelValues(string(OutcomeFailOpen)))
	rr := httptest.NewRecorder()
	var forwarded *http.Request
	filter.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded = r
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, forwarded)
	require.Equal(t, "u-42", forwarded.Header.Get(auth.HeaderUserID))
	require.InDelta(t, before+1, testutil.ToFloat64(reconciliationCounter.WithLabelValues(string(OutcomeFailOpen))), 0.0001)
}

func TestRegistrationOutageForwardsOriginalID(t *testing.T) {
	dir := newFakeDirectory()
	dir.registerErr = fmt.Errorf("%w: boom", directory.ErrRemoteUnavailable)
	filter := NewFilter(dir)

	res := filter.Resolve(context.Background(), "", bearer(t, jwt.MapClaims{"sub": "ext-5"}))
	require.Equal(t, Resolution{UserID: "ext-5", Outcome: OutcomeFailOpen}, res)
	require.Equal(t, 1, dir.registerCount())
}

func TestInvalidRegistrationIsNotRetried(t *testing.T) {
	dir := newFakeDirectory()
	dir.registerErr = directory.ErrInvalidRegistration
	filter := NewFilter(dir)

	res := filter.Resolve(context.Background(), "", bearer(t, jwt.MapClaims{"sub": "ext-6", "email": "not-an-email"}))
	require.Equal(t, "ext-6", res.UserID)
	require.Equal(t, 1, dir.registerCount())
}

func TestConflictReResolvesWinner(t *testing.T) {
	dir := newFakeDirectory()
	dir.registerErr = directory.ErrConflict
	dir.seedLookupOnly(directory.User{ID: "u-winner", ExternalID: "ext-8"})
	filter := NewFilter(dir)

	res := filter.Resolve(context.Background(), "", bearer(t, jwt.MapClaims{"sub": "ext-8"}))
	require.Equal(t, Resolution{UserID: "u-winner", Outcome: OutcomeRegistered}, res)
}

func TestBareUnknownIDIsForwardedAsIs(t *testing.T) {
	dir := newFakeDirectory()
	filter := NewFilter(dir)

	res := filter.Resolve(context.Background(), "u-unknown", "")
	require.Equal(t, Resolution{UserID: "u-unknown", Outcome: OutcomeUnresolved}, res)
	require.Zero(t, dir.registerCount())
}

func TestRequestsWithoutIdentityPassThroughUnmodified(t *testing.T) {
	dir := newFakeDirectory()
	filter := NewFilter(dir)

	for _, credential := range []string{"", "Bearer garbage", bearer(t, jwt.MapClaims{"email": "nosub@x.com"})} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		if credential != "" {
			req.Header.Set(auth.HeaderAuthorization, credential)
		}
		forwarded := serve(t, filter, req)
		require.Empty(t, forwarded.Header.Get(auth.HeaderUserID))
		require.Same(t, req, forwarded)
	}
	require.Empty(t, dir.existsIDs())
}

func TestCacheShortCircuitsDirectory(t *testing.T) {
	dir := newFakeDirectory()
	cache := NewTTLCache(time.Minute, 100)
	t.Cleanup(cache.Stop)
	filter := NewFilter(dir, WithCache(cache))
	credential := bearer(t, jwt.MapClaims{"sub": "ext-c"})

	first := filter.Resolve(context.Background(), "", credential)
	second := filter.Resolve(context.Background(), "", credential)

	require.Equal(t, OutcomeRegistered, first.Outcome)
	require.Equal(t, Resolution{UserID: first.UserID, Outcome: OutcomeCached}, second)
	require.Len(t, dir.existsIDs(), 1)
}

func TestFailOpenResultsAreNotCached(t *testing.T) {
	dir := newFakeDirectory()
	dir.existsErr = directory.ErrRemoteUnavailable
	cache := NewTTLCache(time.Minute, 100)
	t.Cleanup(cache.Stop)
	filter := NewFilter(dir, WithCache(cache))

	filter.Resolve(context.Background(), "u-1", "")
	_, ok := cache.Get(cacheKey("u-1", false))
	require.False(t, ok)
}

func TestCachedHeaderIDDoesNotBypassSubjectTranslation(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed(directory.User{ID: "u-7", ExternalID: "ext-7"})
	cache := NewTTLCache(time.Minute, 100)
	t.Cleanup(cache.Stop)
	filter := NewFilter(dir, WithCache(cache))

	header := filter.Resolve(context.Background(), "ext-7", "")
	require.Equal(t, Resolution{UserID: "ext-7", Outcome: OutcomeExisting}, header)

	subject := filter.Resolve(context.Background(), "", bearer(t, jwt.MapClaims{"sub": "ext-7"}))
	require.Equal(t, Resolution{UserID: "u-7", Outcome: OutcomeExisting}, subject)

	again := filter.Resolve(context.Background(), "", bearer(t, jwt.MapClaims{"sub": "ext-7"}))
	require.Equal(t, Resolution{UserID: "u-7", Outcome: OutcomeCached}, again)
}

func TestAnonymousRequestCarriesNoIdentity(t *testing.T) {
	filter := NewFilter(newFakeDirectory())

	forwarded := serve(t, filter, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
	_, ok := auth.IdentityFromContext(forwarded.Context())
	require.False(t, ok)
}

func TestCancelledRequestIsNotForwarded(t *testing.T) {
	dir := newFakeDirectory()
	filter := NewFilter(dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	req.Header.Set(auth.HeaderUserID, "u-1")

	called := false
	filter.Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })).
		ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, called)
}

func serve(t *testing.T, filter *Filter, req *http.Request) *http.Request {
	t.Helper()
	var forwarded *http.Request
	filter.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded = r
	})).ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, forwarded, "request was not forwarded")
	return forwarded
}

func bearer(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("upstream-key"))
	require.NoError(t, err)
	return "Bearer " + signed
}

// fakeDirectory is idempotent per external id, like the real user directory.
type fakeDirectory struct {
	mu          sync.Mutex
	users       map[string]directory.User
	byExternal  map[string]string
	lookupOnly  map[string]directory.User
	existsCalls []string
	registers   int
	lookups     int
	nextID      int
	existsGate  *sync.WaitGroup

	existsErr   error
	registerErr error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:      make(map[string]directory.User),
		byExternal: make(map[string]string),
		lookupOnly: make(map[string]directory.User),
	}
}

func (d *fakeDirectory) seed(u directory.User) {
	d.users[u.ID] = u
	d.byExternal[u.ExternalID] = u.ID
}

func (d *fakeDirectory) seedLookupOnly(u directory.User) {
	d.lookupOnly[u.ExternalID] = u
}

// holdExists makes the next n Exists calls wait for each other.
func (d *fakeDirectory) holdExists(n int) {
	d.existsGate = &sync.WaitGroup{}
	d.existsGate.Add(n)
}

func (d *fakeDirectory) Exists(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	d.existsCalls = append(d.existsCalls, id)
	_, internal := d.users[id]
	_, external := d.byExternal[id]
	gate := d.existsGate
	d.mu.Unlock()

	if gate != nil {
		gate.Done()
		gate.Wait()
	}
	if d.existsErr != nil {
		return false, d.existsErr
	}
	return internal || external, nil
}

func (d *fakeDirectory) Register(ctx context.Context, claims auth.IdentityClaims) (directory.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registers++
	if d.registerErr != nil {
		return directory.User{}, d.registerErr
	}
	if id, ok := d.byExternal[claims.ExternalID]; ok {
		return d.users[id], nil
	}
	d.nextID++
	u := directory.User{
		ID:         fmt.Sprintf("u-%d", d.nextID),
		ExternalID: claims.ExternalID,
		Email:      claims.Email,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
	}
	d.users[u.ID] = u
	d.byExternal[u.ExternalID] = u.ID
	return u, nil
}

func (d *fakeDirectory) Lookup(ctx context.Context, id string) (directory.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	if u, ok := d.lookupOnly[id]; ok {
		return u, nil
	}
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	if internal, ok := d.byExternal[id]; ok {
		return d.users[internal], nil
	}
	return directory.User{}, directory.ErrUserNotFound
}

func (d *fakeDirectory) existsIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.existsCalls...)
}

func (d *fakeDirectory) registerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registers
}

func (d *fakeDirectory) lookupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookups
}

func (d *fakeDirectory) userCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

func (d *fakeDirectory) userByExternal(externalID string) (directory.User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byExternal[externalID]
	return d.users[id], ok
}
