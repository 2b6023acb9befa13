package auth

import (
	"errors"
	"fmt"
	"os"
)

// Mode selects the credential strategy used for workspace API calls.
// It is resolved once at startup rather than sniffed from the environment at
// each call site.
type Mode string

const (
	// ModeServicePrincipal authenticates every call as the service's own
	// identity using the SDK's ambient OAuth M2M configuration.
	ModeServicePrincipal Mode = "service-principal"

	// ModeDelegated authenticates each call as the inbound caller using the
	// token forwarded by the Databricks Apps proxy. Requests without a
	// forwarded token fail with ErrMissingDelegatedToken.
	ModeDelegated Mode = "delegated"

	// ModeDeveloper authenticates using the developer's local Databricks
	// configuration (CLI profile, env vars). Used when running outside a
	// Databricks App.
	ModeDeveloper Mode = "developer"
)

// envAppName is set by the Databricks Apps runtime. Its presence means the
// server is deployed behind the Apps proxy and should act on behalf of the
// forwarded caller.
const envAppName = "DATABRICKS_APP_NAME"

// ErrMissingDelegatedToken indicates delegated auth is configured but the
// request carried no forwarded access token.
var ErrMissingDelegatedToken = errors.New(
	"authentication token not found in request headers (" + HeaderForwardedAccessToken + ")")

// ParseMode parses a mode flag value. The value "auto" resolves against the
// runtime environment via ResolveMode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeServicePrincipal, ModeDelegated, ModeDeveloper:
		return Mode(s), nil
	}
	if s == "auto" || s == "" {
		return ResolveMode(), nil
	}
	return "", fmt.Errorf("unknown auth mode %q (supported: auto, %s, %s, %s)",
		s, ModeServicePrincipal, ModeDelegated, ModeDeveloper)
}

// ResolveMode picks the mode for the current environment: delegated when
// running as a Databricks App, developer otherwise.
func ResolveMode() Mode {
	if os.Getenv(envAppName) != "" {
		return ModeDelegated
	}
	return ModeDeveloper
}
