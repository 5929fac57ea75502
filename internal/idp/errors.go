package idp

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed provider flow
type ErrorKind string

const (
	// KindProtocol means the provider or browser sent something invalid
	KindProtocol ErrorKind = "protocol_error"
	// KindUpstream means a provider endpoint could not be reached or failed
	KindUpstream ErrorKind = "upstream_unavailable"
	// KindConfiguration means gamefront lacks credentials for the provider
	KindConfiguration ErrorKind = "configuration_missing"
)

var (
	ErrMissingIdentity     = errors.New("claimed identity missing or malformed")
	ErrInvalidMode         = errors.New("unexpected openid mode")
	ErrVerificationFailed  = errors.New("assertion verification failed")
	ErrNoProfileData       = errors.New("no profile data returned")
	ErrProviderError       = errors.New("provider returned an error")
	ErrMissingCode         = errors.New("authorization code missing")
	ErrInvalidState        = errors.New("state token mismatch")
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrProfileFetchFailed  = errors.New("profile fetch failed")
	ErrNotConfigured       = errors.New("provider not configured")
	ErrNotSupported        = errors.New("provider not supported")
)

// Redirect codes carried back to the browser as /?error=<code>
const (
	CodeNoSteamID          = "NoSteamID"
	CodeInvalidMode        = "InvalidMode"
	CodeVerificationFailed = "VerificationFailed"
	CodeNoAPIKey           = "NoAPIKey"
	CodeNoPlayerData       = "NoPlayerData"
	CodeUnknown            = "Unknown"
	CodeMissingCode        = "missing_code"
	CodeInvalidState       = "invalid_state"
	CodeNotConfigured      = "not_configured"
	CodeEpicAuthFailed     = "epic_auth_failed"
	CodeNotSupported       = "not_supported"
)

// CallbackError is a failed login or callback. Code is safe to show the user.
type CallbackError struct {
	Kind ErrorKind
	Code string
	Err  error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Code, e.Kind, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

func protocolError(code string, err error) *CallbackError {
	return &CallbackError{Kind: KindProtocol, Code: code, Err: err}
}

func upstreamError(code string, err error) *CallbackError {
	return &CallbackError{Kind: KindUpstream, Code: code, Err: err}
}

func configurationError(code string) *CallbackError {
	return &CallbackError{Kind: KindConfiguration, Code: code, Err: ErrNotConfigured}
}

// ErrorCode extracts the redirect code from err, falling back to fallback
func ErrorCode(err error, fallback string) string {
	var cbErr *CallbackError
	if errors.As(err, &cbErr) && cbErr.Code != "" {
		return cbErr.Code
	}
	return fallback
}
