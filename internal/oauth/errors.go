package oauth

import "fmt"

// Error is a recoverable OAuth2 protocol error surfaced to the client with
// its RFC 6749 / 6750 error code.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches errors by code so wrapped and described variants compare equal
// to their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithDescription returns a copy of the error carrying a human-readable
// description.
func (e *Error) WithDescription(format string, args ...any) *Error {
	return &Error{Code: e.Code, Description: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidRequest          = &Error{Code: "invalid_request"}
	ErrInvalidClient           = &Error{Code: "invalid_client"}
	ErrInvalidGrant            = &Error{Code: "invalid_grant"}
	ErrUnauthorizedClient      = &Error{Code: "unauthorized_client"}
	ErrUnsupportedGrantType    = &Error{Code: "unsupported_grant_type"}
	ErrUnsupportedResponseType = &Error{Code: "unsupported_response_type"}
	ErrInvalidScope            = &Error{Code: "invalid_scope"}
	ErrAccessDenied            = &Error{Code: "access_denied"}

	// ErrInvalidToken is the RFC 6750 bearer-token rejection.
	ErrInvalidToken = &Error{Code: "invalid_token"}
)
