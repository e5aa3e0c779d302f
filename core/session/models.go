package session

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
)

// User is the authenticated account as the server reports it. Login
// payloads carry the id under "id"; profile payloads use the raw
// document key "_id". Ident() returns whichever was sent.
type User struct {
	ID        string `json:"id,omitempty"`
	ObjectID  string `json:"_id,omitempty"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (u User) Ident() string {
	if u.ID != "" {
		return u.ID
	}
	return u.ObjectID
}

// Credentials is the login form.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Username = core.CleanString(c.Username, true /* lower */)
	return validate.Struct(c)
}

// Registration contains information needed to create a new account.
// A successful registration does not authenticate the caller; they must
// log in explicitly afterwards.
type Registration struct {
	Username        string `json:"username" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (r *Registration) Validate(validate *validator.Validate) error {
	r.Username = core.CleanString(r.Username, true /* lower */)
	r.Email = core.CleanString(r.Email, true /* lower */)
	return validate.Struct(r)
}

// ProfileUpdate defines what may be modified on the account profile.
// The server requires both fields.
type ProfileUpdate struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

func (pu *ProfileUpdate) Validate(validate *validator.Validate) error {
	pu.Username = core.CleanString(pu.Username, true /* lower */)
	pu.Email = core.CleanString(pu.Email, true /* lower */)
	return validate.Struct(pu)
}

// PasswordChange is the change-password form. Confirm never goes over
// the wire; it only backs the client-side equality check.
type PasswordChange struct {
	Current string `json:"currentPassword" validate:"required"`
	New     string `json:"newPassword" validate:"required,min=6"`
	Confirm string `json:"newPasswordConfirm" validate:"required,eqfield=New"`
}

func (pc *PasswordChange) Validate(validate *validator.Validate) error {
	return validate.Struct(pc)
}

// payload returns the wire form of the change (without Confirm).
func (pc *PasswordChange) payload() interface{} {
	return struct {
		Current string `json:"currentPassword"`
		New     string `json:"newPassword"`
	}{pc.Current, pc.New}
}

// EmailChange is the change-email form; the server re-checks the
// password before applying it.
type EmailChange struct {
	NewEmail string `json:"newEmail" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (ec *EmailChange) Validate(validate *validator.Validate) error {
	ec.NewEmail = core.CleanString(ec.NewEmail, true /* lower */)
	return validate.Struct(ec)
}
