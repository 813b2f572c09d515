package users

import "github.com/clinicops/visitdesk/internal/apperr"

var (
	// ErrNotFound indicates the user id or email does not resolve.
	ErrNotFound = apperr.New(apperr.KindNotFound, "user not found")

	// ErrEmailTaken indicates a registration against an existing email.
	ErrEmailTaken = apperr.New(apperr.KindConflict, "user already exists")
)
