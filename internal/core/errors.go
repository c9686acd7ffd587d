package core

import "errors"

// Error codes reported on the wire.
const (
	CodeInvalidUsername      = "invalid_username"
	CodeInvalidPassword      = "invalid_password"
	CodeInvalidColor         = "invalid_color"
	CodeDuplicateUsername    = "duplicate_username"
	CodeInvalidCredentials   = "invalid_credentials"
	CodeUnknownUser          = "unknown_user"
	CodeAlreadyLoggedIn      = "already_logged_in"
	CodeAlreadyAuthenticated = "already_authenticated"
	CodeNotAuthenticated     = "not_authenticated"
	CodeChannelNotFound      = "channel_not_found"
	CodeInvalidChannel       = "invalid_channel"
	CodeNotInChannel         = "not_in_channel"
	CodeUserNotFound         = "user_not_found"
	CodeMalformedRequest     = "malformed_request"
	CodeUnknownCommand       = "unknown_command"
	CodeRateLimited          = "rate_limited"
	CodeStorageUnavailable   = "storage_unavailable"
	CodeInternal             = "internal"
)

// Error wraps a code and human-readable message.
// Retry tells a client whether resubmitting corrected input can succeed.
type Error struct {
	Code    string
	Message string
	Retry   bool
}

func (e *Error) Error() string {
	return e.Message
}

func coreError(code, msg string, retry bool) *Error {
	return &Error{Code: code, Message: msg, Retry: retry}
}

var (
	ErrInvalidUsername      = coreError(CodeInvalidUsername, "Username must be 1-12 letters or digits", true)
	ErrInvalidPassword      = coreError(CodeInvalidPassword, "Password must be 1-72 bytes", true)
	ErrInvalidColor         = coreError(CodeInvalidColor, "Color must be between 0 and 255", true)
	ErrDuplicateUsername    = coreError(CodeDuplicateUsername, "Username taken", true)
	ErrInvalidCredentials   = coreError(CodeInvalidCredentials, "Invalid credentials", true)
	ErrUnknownUser          = coreError(CodeUnknownUser, "Unknown user", true)
	ErrAlreadyLoggedIn      = coreError(CodeAlreadyLoggedIn, "User already logged in", false)
	ErrAlreadyAuthenticated = coreError(CodeAlreadyAuthenticated, "Already authenticated on this connection", false)
	ErrNotAuthenticated     = coreError(CodeNotAuthenticated, "Not authenticated", false)
	ErrChannelNotFound      = coreError(CodeChannelNotFound, "Channel not found", false)
	ErrInvalidChannel       = coreError(CodeInvalidChannel, "Channel names are 1-32 letters, digits, '-' or '_'", false)
	ErrNotInChannel         = coreError(CodeNotInChannel, "Not in any channel", false)
	ErrUserNotFound         = coreError(CodeUserNotFound, "User not found", false)
	ErrMalformedRequest     = coreError(CodeMalformedRequest, "Invalid JSON", false)
	ErrUnknownCommand       = coreError(CodeUnknownCommand, "Unknown command", false)
	ErrRateLimited          = coreError(CodeRateLimited, "Too many messages, slow down", false)
	ErrStorageUnavailable   = coreError(CodeStorageUnavailable, "Storage unavailable, try again later", false)
	ErrInternal             = coreError(CodeInternal, "Internal server error", false)
)

// AsError extracts the taxonomy error carried by err.
// Anything outside the taxonomy is reported as ErrInternal.
func AsError(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return ErrInternal
}
