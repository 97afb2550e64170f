package service

import "fmt"

// Error codes surfaced to clients. Token-decode failures all collapse to
// CodeUnauthenticated: clients are never told whether a token was
// malformed, expired, or unknown.
const (
	CodeValidationFailed   = "validation_failed"
	CodeInvalidCredentials = "invalid_credentials"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeUnauthenticated    = "unauthenticated"
	CodeForbidden          = "forbidden"
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"
)

// AuthError is a user-facing failure with an HTTP status.
type AuthError struct {
	Code    string
	Message string
	Status  int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAuthError(code, message string, status int) *AuthError {
	return &AuthError{Code: code, Message: message, Status: status}
}

func errUnauthenticated() *AuthError {
	return newAuthError(CodeUnauthenticated, "Session is not valid.", 401)
}
