package session

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	apiclient "github.com/trezcool/alama/api"
	"github.com/trezcool/alama/core"
	tokenstore "github.com/trezcool/alama/storage/token"
	testutil "github.com/trezcool/alama/tests"
)

func setup(t *testing.T) (*Container, *testutil.Server, tokenstore.Store) {
	t.Helper()
	validate, _ := testutil.NewValidator()

	stub := testutil.NewServer()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	store := tokenstore.NewMemoryStore()
	client := apiclient.NewClient(apiclient.Options{
		BaseURL: srv.URL + "/api",
		Timeout: 5 * time.Second,
		Tokens: apiclient.TokenSourceFunc(func() string {
			token, _ := store.Load()
			return token
		}),
	})

	c, err := NewContainer(client, store, validate)
	if err != nil {
		t.Fatalf("NewContainer() error = %v", err)
	}
	return c, stub, store
}

func assertLoggedOut(t *testing.T, c *Container, store tokenstore.Store) {
	t.Helper()
	st := c.State()
	if st.Token != "" {
		t.Errorf("Token = %q, want empty", st.Token)
	}
	if st.User != nil {
		t.Errorf("User = %+v, want nil", st.User)
	}
	if st.IsAuthenticated {
		t.Error("IsAuthenticated = true, want false")
	}
	if token, _ := store.Load(); token != "" {
		t.Errorf("persisted token = %q, want empty", token)
	}
}

func TestContainer_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success persists token and authenticates", func(t *testing.T) {
		c, stub, store := setup(t)
		stub.AddUser(t, "awe", "awe@test.cd", "s3cret")

		if err := c.Login(ctx, Credentials{Username: "awe", Password: "s3cret"}); err != nil {
			t.Fatalf("Login() error = %v", err)
		}

		st := c.State()
		if !st.IsAuthenticated {
			t.Error("IsAuthenticated = false, want true")
		}
		if st.Token == "" {
			t.Error("Token is empty")
		}
		if st.User == nil || st.User.Username != "awe" || st.User.Email != "awe@test.cd" {
			t.Errorf("User = %+v, want awe/awe@test.cd", st.User)
		}
		if token, _ := store.Load(); token != st.Token {
			t.Errorf("persisted token = %q, want %q", token, st.Token)
		}
		if st.Err != "" {
			t.Errorf("Err = %q, want empty", st.Err)
		}
	})

	t.Run("invalid credentials record the server message", func(t *testing.T) {
		c, stub, store := setup(t)
		stub.AddUser(t, "awe", "awe@test.cd", "s3cret")

		err := c.Login(ctx, Credentials{Username: "awe", Password: "nope"})
		if err == nil {
			t.Fatal("Login() error = nil, want error")
		}
		apiErr, ok := errors.Cause(err).(*core.APIError)
		if !ok {
			t.Fatalf("Login() error = %T, want *core.APIError", errors.Cause(err))
		}
		if apiErr.Message != "Invalid credentials" {
			t.Errorf("message = %q, want %q", apiErr.Message, "Invalid credentials")
		}
		st := c.State()
		if st.Err != "Invalid credentials" {
			t.Errorf("Err = %q, want %q", st.Err, "Invalid credentials")
		}
		assertLoggedOut(t, c, store)
	})

	t.Run("validation failure does not dispatch", func(t *testing.T) {
		c, stub, _ := setup(t)

		err := c.Login(ctx, Credentials{Username: "", Password: ""})
		if _, ok := errors.Cause(err).(validator.ValidationErrors); !ok {
			t.Fatalf("Login() error = %T, want validator.ValidationErrors", err)
		}
		if n := stub.RequestCount(); n != 0 {
			t.Errorf("requests = %d, want 0", n)
		}
	})
}

func TestContainer_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("does not authenticate the caller", func(t *testing.T) {
		c, _, store := setup(t)

		msg, err := c.Register(ctx, Registration{
			Username:        "newkid",
			Email:           "newkid@test.cd",
			Password:        "s3cret",
			PasswordConfirm: "s3cret",
		})
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if msg != "User registered successfully" {
			t.Errorf("message = %q", msg)
		}
		assertLoggedOut(t, c, store)

		// explicit login afterwards works
		if err := c.Login(ctx, Credentials{Username: "newkid", Password: "s3cret"}); err != nil {
			t.Fatalf("Login() after Register() error = %v", err)
		}
	})

	t.Run("password mismatch is caught before dispatch", func(t *testing.T) {
		c, stub, _ := setup(t)

		_, err := c.Register(ctx, Registration{
			Username:        "newkid",
			Email:           "newkid@test.cd",
			Password:        "s3cret",
			PasswordConfirm: "different",
		})
		if _, ok := errors.Cause(err).(validator.ValidationErrors); !ok {
			t.Fatalf("Register() error = %T, want validator.ValidationErrors", err)
		}
		if n := stub.RequestCount(); n != 0 {
			t.Errorf("requests = %d, want 0", n)
		}
	})

	t.Run("duplicate user surfaces the server message", func(t *testing.T) {
		c, stub, _ := setup(t)
		stub.AddUser(t, "taken", "taken@test.cd", "s3cret")

		_, err := c.Register(ctx, Registration{
			Username:        "taken",
			Email:           "other@test.cd",
			Password:        "s3cret",
			PasswordConfirm: "s3cret",
		})
		if err == nil {
			t.Fatal("Register() error = nil, want error")
		}
		if st := c.State(); st.Err != "User already exists" {
			t.Errorf("Err = %q, want %q", st.Err, "User already exists")
		}
	})
}

func TestContainer_FetchProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the cached user", func(t *testing.T) {
		c, stub, _ := setup(t)
		stub.AddUser(t, "awe", "awe@test.cd", "s3cret")
		if err := c.Login(ctx, Credentials{Username: "awe", Password: "s3cret"}); err != nil {
			t.Fatalf("Login() error = %v", err)
		}

		if err := c.FetchProfile(ctx); err != nil {
			t.Fatalf("FetchProfile() error = %v", err)
		}
		usr := c.State().User
		if usr == nil || usr.Username != "awe" || usr.Email != "awe@test.cd" {
			t.Errorf("User = %+v", usr)
		}
		if usr.Ident() == "" {
			t.Error("Ident() is empty, want the server-assigned id")
		}
		if usr.CreatedAt == "" {
			t.Error("CreatedAt is empty")
		}
	})

	t.Run("any failure forces the hard logout", func(t *testing.T) {
		c, stub, store := setup(t)
		stub.AddUser(t, "awe", "awe@test.cd", "s3cret")
		if err := c.Login(ctx, Credentials{Username: "awe", Password: "s3cret"}); err != nil {
			t.Fatalf("Login() error = %v", err)
		}

		// invalidate the persisted token; the next request 401s
		if err := store.Save("garbage"); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		if err := c.FetchProfile(ctx); err == nil {
			t.Fatal("FetchProfile() error = nil, want error")
		}
		assertLoggedOut(t, c, store)
		if st := c.State(); st.Err == "" {
			t.Error("Err is empty, want the failure message")
		}
	})
}

func TestContainer_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	c, stub, _ := setup(t)
	stub.AddUser(t, "awe", "awe@test.cd", "s3cret")
	if err := c.Login(ctx, Credentials{Username: "awe", Password: "s3cret"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	before := c.State().User

	msg, err := c.UpdateProfile(ctx, ProfileUpdate{Username: "x", Email: "y@test.cd"})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if msg != "Profile updated successfully" {
		t.Errorf("message = %q", msg)
	}

	// the two fields are merged into the cached user; everything else
	// is untouched
	usr := c.State().User
	if usr.Username != "x" || usr.Email != "y@test.cd" {
		t.Errorf("User = %+v, want username=x email=y@test.cd", usr)
	}
	if usr.Ident() != before.Ident() {
		t.Errorf("Ident() = %q, want %q (untouched)", usr.Ident(), before.Ident())
	}
}

func TestContainer_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("client-side checks run before dispatch", func(t *testing.T) {
		c, stub, _ := setup(t)
		stub.AddUser(t, "awe", "awe@test.cd", "s3cret")
		if err := c.Login(ctx, Credentials{Username: "awe", Password: "s3cret"}); err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		sent := stub.RequestCount()

		tests := []struct {
			name   string
			change PasswordChange
		}{
			{name: "missing fields", change: PasswordChange{}},
			{name: "too short", change: PasswordChange{Current: "s3cret", New: "abc", Confirm: "abc"}},
			{name: "mismatch", change: PasswordChange{Current: "s3cret", New: "longenough", Confirm: "different"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := c.ChangePassword(ctx, tt.change)
				if _, ok := errors.Cause(err).(validator.ValidationErrors); !ok {
					t.Fatalf("ChangePassword() error = %T, want validator.ValidationErrors", err)
				}
			})
		}
		if n := stub.RequestCount(); n != sent {
			t.Errorf("requests = %d, want %d (no dispatch)", n, sent)
		}
	})

	t.Run("server validates the current password", func(t *testing.T) {
		c, stub, _ := setup(t)
		stub.AddUser(t, "awe", "awe@test.cd", "s3cret")
		if err := c.Login(ctx, Credentials{Username: "awe", Password: "s3cret"}); err != nil {
			t.Fatalf("Login() error = %v", err)
		}

		_, err := c.ChangePassword(ctx, PasswordChange{Current: "wrong", New: "longenough", Confirm: "longenough"})
		if err == nil {
			t.Fatal("ChangePassword() error = nil, want error")
		}
		if st := c.State(); st.Err != "Current password is incorrect" {
			t.Errorf("Err = %q", st.Err)
		}

		msg, err := c.ChangePassword(ctx, PasswordChange{Current: "s3cret", New: "longenough", Confirm: "longenough"})
		if err != nil {
			t.Fatalf("ChangePassword() error = %v", err)
		}
		if msg != "Password changed successfully" {
			t.Errorf("message = %q", msg)
		}

		// the new password works
		_ = c.Logout()
		if err := c.Login(ctx, Credentials{Username: "awe", Password: "longenough"}); err != nil {
			t.Errorf("Login() with new password error = %v", err)
		}
	})
}

func TestContainer_ChangeEmail(t *testing.T) {
	ctx := context.Background()
	c, stub, _ := setup(t)
	stub.AddUser(t, "awe", "awe@test.cd", "s3cret")
	if err := c.Login(ctx, Credentials{Username: "awe", Password: "s3cret"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	msg, err := c.ChangeEmail(ctx, EmailChange{NewEmail: "new@test.cd", Password: "s3cret"})
	if err != nil {
		t.Fatalf("ChangeEmail() error = %v", err)
	}
	if msg != "Email updated successfully" {
		t.Errorf("message = %q", msg)
	}
	if usr := c.State().User; usr.Email != "new@test.cd" {
		t.Errorf("Email = %q, want %q", usr.Email, "new@test.cd")
	}
}

func TestContainer_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	c, stub, store := setup(t)
	stub.AddUser(t, "awe", "awe@test.cd", "s3cret")
	if err := c.Login(ctx, Credentials{Username: "awe", Password: "s3cret"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	msg, err := c.DeleteAccount(ctx)
	if err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	if msg == "" {
		t.Error("message is empty")
	}
	assertLoggedOut(t, c, store)

	// the account is gone
	if err := c.Login(ctx, Credentials{Username: "awe", Password: "s3cret"}); err == nil {
		t.Error("Login() after DeleteAccount() error = nil, want error")
	}
}

func TestContainer_Logout(t *testing.T) {
	ctx := context.Background()
	c, stub, store := setup(t)
	stub.AddUser(t, "awe", "awe@test.cd", "s3cret")
	if err := c.Login(ctx, Credentials{Username: "awe", Password: "s3cret"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := c.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	assertLoggedOut(t, c, store)
	first := c.State()

	// idempotent: a second call yields the same cleared state
	if err := c.Logout(); err != nil {
		t.Fatalf("second Logout() error = %v", err)
	}
	second := c.State()
	if first != second {
		t.Errorf("second Logout() state = %+v, want %+v", second, first)
	}
}

func TestContainer_seedsFromPersistedToken(t *testing.T) {
	validate, _ := testutil.NewValidator()
	store := tokenstore.NewMemoryStore()
	if err := store.Save("persisted-token"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	c, err := NewContainer(nil, store, validate)
	if err != nil {
		t.Fatalf("NewContainer() error = %v", err)
	}
	st := c.State()
	if !st.IsAuthenticated {
		t.Error("IsAuthenticated = false, want true (token present)")
	}
	if st.Token != "persisted-token" {
		t.Errorf("Token = %q, want %q", st.Token, "persisted-token")
	}
	// the user is only populated once the profile is fetched
	if st.User != nil {
		t.Errorf("User = %+v, want nil", st.User)
	}
}

func TestContainer_ClearError(t *testing.T) {
	ctx := context.Background()
	c, stub, _ := setup(t)
	stub.AddUser(t, "awe", "awe@test.cd", "s3cret")

	_ = c.Login(ctx, Credentials{Username: "awe", Password: "nope"})
	if st := c.State(); st.Err == "" {
		t.Fatal("Err is empty, want a message")
	}
	c.ClearError()
	if st := c.State(); st.Err != "" {
		t.Errorf("Err = %q after ClearError(), want empty", st.Err)
	}
}
