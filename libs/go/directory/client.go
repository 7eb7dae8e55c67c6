// Package directory is the client for the user directory service, the sole
// owner of internal user records.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/fitness/libs/go/auth"
)

var (
	// ErrRemoteUnavailable covers transport failures, timeouts and unexpected statuses.
	ErrRemoteUnavailable = errors.New("user directory unavailable")
	// ErrInvalidRegistration is returned when the directory rejects the registration payload.
	ErrInvalidRegistration = errors.New("registration rejected by user directory")
	// ErrConflict is returned when the directory reports the user already exists under a conflicting key.
	ErrConflict = errors.New("registration conflict")
	// ErrUserNotFound is returned by Lookup when no user matches the id.
	ErrUserNotFound = errors.New("user not found")
)

// User is the directory's representation of an internal user.
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RegisterRequest is the body accepted by POST /api/v1/users/register.
type RegisterRequest struct {
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	ExternalID string `json:"externalId"`
	Password   string `json:"password"`
}

// Config configures the HTTP client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the user directory over HTTP.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient constructs a Client. A non-positive timeout defaults to 3s.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exists reports whether the directory knows id, as an internal or external id.
// A 404 is a definite "no"; every other failure is ErrRemoteUnavailable.
func (c *Client) Exists(ctx context.Context, id string) (exists bool, err error) {
	defer observe("exists", time.Now(), &err)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL(id, "validate"), nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: validate %s: %v", ErrRemoteUnavailable, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, statusError(ErrRemoteUnavailable, "validate", resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(&exists); err != nil {
		return false, fmt.Errorf("%w: decode validate response: %v", ErrRemoteUnavailable, err)
	}
	return exists, nil
}

// Register asks the directory to create the user for claims. The directory is
// idempotent per external id, so repeat calls return the stored record.
func (c *Client) Register(ctx context.Context, claims auth.IdentityClaims) (user User, err error) {
	defer observe("register", time.Now(), &err)

	body, err := json.Marshal(RegisterRequest{
		Email:      claims.Email,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
		ExternalID: claims.ExternalID,
		// Credentials live with the identity provider; the directory only
		// needs a secret it can hash.
		Password: uuid.NewString(),
	})
	if err != nil {
		return User{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/users/register", bytes.NewReader(body))
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("%w: register %s: %v", ErrRemoteUnavailable, claims.ExternalID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return User{}, statusError(ErrInvalidRegistration, "register", resp)
	case resp.StatusCode == http.StatusConflict:
		return User{}, statusError(ErrConflict, "register", resp)
	case resp.StatusCode >= 300:
		return User{}, statusError(ErrRemoteUnavailable, "register", resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return User{}, fmt.Errorf("%w: decode register response: %v", ErrRemoteUnavailable, err)
	}
	if user.ID == "" {
		return User{}, fmt.Errorf("%w: register response without id", ErrRemoteUnavailable)
	}
	return user, nil
}

// Lookup fetches a user by internal or external id.
func (c *Client) Lookup(ctx context.Context, id string) (user User, err error) {
	defer observe("lookup", time.Now(), &err)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL(id, ""), nil)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("%w: lookup %s: %v", ErrRemoteUnavailable, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return User{}, ErrUserNotFound
	}
	if resp.StatusCode >= 300 {
		return User{}, statusError(ErrRemoteUnavailable, "lookup", resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return User{}, fmt.Errorf("%w: decode lookup response: %v", ErrRemoteUnavailable, err)
	}
	return user, nil
}

func (c *Client) userURL(id, suffix string) string {
	u := c.baseURL + "/api/v1/users/" + url.PathEscape(id)
	if suffix != "" {
		u += "/" + suffix
	}
	return u
}

func statusError(kind error, op string, resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: %s returned %d: %s", kind, op, resp.StatusCode, strings.TrimSpace(string(detail)))
}
