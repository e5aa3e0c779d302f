package session

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	tokenstore "github.com/trezcool/alama/storage/token"
)

// Client is the slice of the API client the session container needs.
type Client interface {
	Get(ctx context.Context, path string, out interface{}) error
	Post(ctx context.Context, path string, in, out interface{}) error
	Put(ctx context.Context, path string, in, out interface{}) error
	Delete(ctx context.Context, path string, out interface{}) error
}

// State is a point-in-time snapshot of the session.
//
// IsAuthenticated is true iff a token is present; it does not imply
// User has been populated yet (the profile is fetched lazily).
type State struct {
	Token           string
	User            *User
	IsAuthenticated bool
	Loading         bool
	Err             string
}

// Container holds the auth session and the operations that mutate it.
// Operations follow one lifecycle: loading=true + err cleared on entry,
// result applied + loading cleared on success, normalized message
// stored + loading cleared on failure.
type Container struct {
	api      Client
	store    tokenstore.Store
	validate *validator.Validate

	mu            sync.RWMutex
	token         string
	user          *User
	authenticated bool
	loading       bool
	err           string
}

// NewContainer seeds the session from the persisted token: a stored
// token marks the session authenticated before any profile is fetched.
func NewContainer(api Client, store tokenstore.Store, validate *validator.Validate) (*Container, error) {
	c := &Container{api: api, store: store, validate: validate}
	token, err := store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "loading persisted token")
	}
	if token != "" {
		c.token = token
		c.authenticated = true
	}
	return c, nil
}

// Token satisfies apiclient.TokenSource.
func (c *Container) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Container) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := State{
		Token:           c.token,
		IsAuthenticated: c.authenticated,
		Loading:         c.loading,
		Err:             c.err,
	}
	if c.user != nil {
		usr := *c.user
		st.User = &usr
	}
	return st
}

// ClearError resets the error message once it has been displayed.
func (c *Container) ClearError() {
	c.mu.Lock()
	c.err = ""
	c.mu.Unlock()
}

func (c *Container) begin() {
	c.mu.Lock()
	c.loading = true
	c.err = ""
	c.mu.Unlock()
}

func (c *Container) reject(err error) error {
	c.mu.Lock()
	c.loading = false
	c.err = core.ErrorMessage(err)
	c.mu.Unlock()
	return err
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
	// User is echoed by some deployments on profile updates; when
	// present it wins over the request payload.
	User *User `json:"user,omitempty"`
}

type profileResponse struct {
	User User `json:"user"`
}

// Login authenticates against the API and, on success, persists the
// returned token and marks the session authenticated.
func (c *Container) Login(ctx context.Context, creds Credentials) error {
	if err := creds.Validate(c.validate); err != nil {
		return err
	}
	c.begin()

	var resp loginResponse
	if err := c.api.Post(ctx, "/login", creds, &resp); err != nil {
		return c.reject(err)
	}
	if err := c.store.Save(resp.AccessToken); err != nil {
		return c.reject(errors.Wrap(err, "persisting token"))
	}

	c.mu.Lock()
	c.token = resp.AccessToken
	usr := resp.User
	c.user = &usr
	c.authenticated = true
	c.loading = false
	c.mu.Unlock()
	return nil
}

// Register creates a new account and returns the server's message. The
// caller is not authenticated by this; they must log in afterwards.
func (c *Container) Register(ctx context.Context, reg Registration) (string, error) {
	if err := reg.Validate(c.validate); err != nil {
		return "", err
	}
	c.begin()

	var resp messageResponse
	if err := c.api.Post(ctx, "/register", reg, &resp); err != nil {
		return "", c.reject(err)
	}

	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
	return resp.Message, nil
}

// FetchProfile replaces the cached user with the server's profile.
//
// Any failure is treated as "session invalid", not as transient: the
// token is dropped from the store and token/user/authenticated are
// cleared together, forcing the caller back to unauthenticated state.
func (c *Container) FetchProfile(ctx context.Context) error {
	c.begin()

	var resp profileResponse
	if err := c.api.Get(ctx, "/user/profile", &resp); err != nil {
		_ = c.store.Clear()
		c.mu.Lock()
		c.token = ""
		c.user = nil
		c.authenticated = false
		c.loading = false
		c.err = core.ErrorMessage(err)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	usr := resp.User
	c.user = &usr
	c.loading = false
	c.mu.Unlock()
	return nil
}

// UpdateProfile submits new profile fields. On success the cached user
// takes the server-echoed user when one is returned, else the request
// payload is merged in as a best-effort local reflection.
func (c *Container) UpdateProfile(ctx context.Context, upd ProfileUpdate) (string, error) {
	if err := upd.Validate(c.validate); err != nil {
		return "", err
	}
	c.begin()

	var resp messageResponse
	if err := c.api.Put(ctx, "/user/profile", upd, &resp); err != nil {
		return "", c.reject(err)
	}

	c.mu.Lock()
	switch {
	case resp.User != nil:
		usr := *resp.User
		c.user = &usr
	case c.user != nil:
		c.user.Username = upd.Username
		c.user.Email = upd.Email
	}
	c.loading = false
	c.mu.Unlock()
	return resp.Message, nil
}

// ChangePassword verifies the form client-side (all fields present, new
// password at least 6 chars, confirmation matching) before contacting
// the server; the server re-checks the current password.
func (c *Container) ChangePassword(ctx context.Context, pc PasswordChange) (string, error) {
	if err := pc.Validate(c.validate); err != nil {
		return "", err
	}
	c.begin()

	var resp messageResponse
	if err := c.api.Put(ctx, "/user/password", pc.payload(), &resp); err != nil {
		return "", c.reject(err)
	}

	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
	return resp.Message, nil
}

// ChangeEmail submits a new email; on success the cached user's email
// is updated from the request payload.
func (c *Container) ChangeEmail(ctx context.Context, ec EmailChange) (string, error) {
	if err := ec.Validate(c.validate); err != nil {
		return "", err
	}
	c.begin()

	var resp messageResponse
	if err := c.api.Put(ctx, "/user/email", ec, &resp); err != nil {
		return "", c.reject(err)
	}

	c.mu.Lock()
	if c.user != nil {
		c.user.Email = ec.NewEmail
	}
	c.loading = false
	c.mu.Unlock()
	return resp.Message, nil
}

// DeleteAccount removes the account server-side and, on success, clears
// the session exactly like Logout.
func (c *Container) DeleteAccount(ctx context.Context) (string, error) {
	c.begin()

	var resp messageResponse
	if err := c.api.Delete(ctx, "/user/account", &resp); err != nil {
		return "", c.reject(err)
	}

	_ = c.store.Clear()
	c.mu.Lock()
	c.token = ""
	c.user = nil
	c.authenticated = false
	c.loading = false
	c.mu.Unlock()
	return resp.Message, nil
}

// Logout clears the persisted token and the session fields. It is
// local-only (no network call) and idempotent.
func (c *Container) Logout() error {
	err := c.store.Clear()
	c.mu.Lock()
	c.token = ""
	c.user = nil
	c.authenticated = false
	c.mu.Unlock()
	return errors.Wrap(err, "clearing persisted token")
}
