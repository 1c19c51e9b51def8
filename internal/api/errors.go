package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthFailed is returned by every call once token retrieval has failed.
	// The client does not recover from it; the user has to sign in again.
	ErrAuthFailed = errors.New("api: authentication failed")

	// ErrNotSignedIn is the cause recorded when a call is made with no user.
	ErrNotSignedIn = errors.New("api: not signed in")
)

// StatusError is a non-200 response from the backend.
type StatusError struct {
	Operation string
	Code      int
	Status    string
	Body      string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api: %s returned %s: %s", e.Operation, e.Status, e.Body)
	}
	return fmt.Sprintf("api: %s returned %s", e.Operation, e.Status)
}

// StatusText is the status line text without the code, as shown to users.
func (e *StatusError) StatusText() string {
	if t := http.StatusText(e.Code); t != "" {
		return t
	}
	return e.Status
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
