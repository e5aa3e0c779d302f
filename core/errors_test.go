package core

import (
	"testing"

	"github.com/pkg/errors"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "api error",
			err:  NewAPIError(401, "Invalid credentials"),
			want: "Invalid credentials",
		},
		{
			name: "wrapped api error",
			err:  errors.Wrap(NewAPIError(404, "User not found"), "fetching profile"),
			want: "User not found",
		},
		{
			name: "validation error with message",
			err:  NewValidationError(errors.New("passwords do not match")),
			want: "passwords do not match",
		},
		{
			name: "validation error with fields only",
			err:  NewValidationError(nil, FieldError{Field: "gender", Error: "invalid choice"}),
			want: "gender: invalid choice",
		},
		{
			name: "plain error",
			err:  errors.New("contacting server: connection refused"),
			want: "contacting server: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.want {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
