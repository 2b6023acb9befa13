package u2m

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates the authorization attempt could not start:
// malformed client id, invalid or busy redirect port, or an empty scope set.
// It is never retryable with the same configuration.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid authorization configuration: %s: %v", e.Reason, e.Err)
	}
	return "invalid authorization configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ErrConsentTimeout indicates the user did not complete the browser consent
// step before the flow timeout. The attempt is terminal; start a new one.
var ErrConsentTimeout = errors.New("timed out waiting for the user to complete consent in the browser")

// StateMismatchError indicates the callback carried a state nonce that does
// not match the one generated for this attempt. This is security-relevant
// (possible CSRF or response injection) and is surfaced distinctly so callers
// can alert rather than silently retry. The token exchange is never performed.
type StateMismatchError struct{}

func (*StateMismatchError) Error() string {
	return "authorization state mismatch: callback does not belong to this attempt"
}

// ProviderDeniedError indicates the identity provider returned an explicit
// OAuth error on the redirect instead of an authorization code. The provider's
// error code and description are passed through verbatim.
type ProviderDeniedError struct {
	Code        string
	Description string
}

func (e *ProviderDeniedError) Error() string {
	if e.Description == "" {
		return "authorization denied by provider: " + e.Code
	}
	return fmt.Sprintf("authorization denied by provider: %s: %s", e.Code, e.Description)
}

// TokenExchangeError indicates the token endpoint call failed, either at the
// network level or with a non-2xx response. Status and body are retained for
// diagnosis. The attempt is terminal; the caller may start a new one.
type TokenExchangeError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TokenExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange failed: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }
