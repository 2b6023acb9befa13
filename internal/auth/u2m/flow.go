package u2m

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"github.com/databricks-solutions/appbridge/internal/logging"
)

const (
	// DefaultClientID is the public OAuth client registered for CLI-style
	// user-to-machine logins against Databricks workspaces.
	DefaultClientID = "databricks-cli"

	// DefaultRedirectPort is the loopback port registered for the client's
	// redirect URI. It must match the provider-side registration exactly, so
	// a busy port is a configuration error rather than a reason to pick
	// another one.
	DefaultRedirectPort = 8020

	// DefaultTimeout bounds the wait for the user to complete consent.
	DefaultTimeout = 5 * time.Minute

	// callbackPath is the path component of the registered redirect URI.
	callbackPath = "/callback"
)

// Config holds the parameters of an authorization attempt.
type Config struct {
	// Host is the workspace base URL, e.g. https://my-workspace.cloud.databricks.com.
	// The OIDC endpoints are derived from it unless AuthURL/TokenURL are set.
	Host string

	// ClientID identifies the public OAuth client. Defaults to DefaultClientID.
	ClientID string

	// Scopes is the set of scopes to request. Must not be empty.
	Scopes []string

	// RedirectPort is the fixed loopback port for the callback listener.
	// Defaults to DefaultRedirectPort.
	RedirectPort int

	// Timeout bounds the wait for the browser callback. Defaults to DefaultTimeout.
	Timeout time.Duration

	// AuthURL and TokenURL override the endpoints derived from Host.
	AuthURL  string
	TokenURL string

	// OpenBrowser launches the user's browser at the authorization URL.
	// Defaults to OpenBrowser. Failures are not fatal; the URL is logged so
	// the user can open it manually.
	OpenBrowser func(url string) error

	// HTTPClient is used for the token exchange. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger receives progress diagnostics. Defaults to slog.Default().
	// Progress never goes to stdout, which is reserved for the token result.
	Logger *slog.Logger
}

// TokenResponse is the outcome of a successful authorization attempt. It is
// handed to the caller; the authorizer keeps no copy.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Authorizer runs one interactive authorization-code-with-PKCE attempt per
// call to Authorize. It holds no state between attempts.
type Authorizer struct {
	cfg    Config
	logger *slog.Logger
}

// New validates the configuration and returns an Authorizer.
func New(cfg Config) (*Authorizer, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.RedirectPort == 0 {
		cfg.RedirectPort = DefaultRedirectPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RedirectPort < 1 || cfg.RedirectPort > 65535 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("redirect port %d out of range", cfg.RedirectPort)}
	}
	if len(cfg.Scopes) == 0 {
		return nil, &ConfigurationError{Reason: "no scopes requested"}
	}
	for _, s := range cfg.Scopes {
		if s == "" {
			return nil, &ConfigurationError{Reason: "empty scope in scope set"}
		}
	}
	if cfg.Host == "" && (cfg.AuthURL == "" || cfg.TokenURL == "") {
		return nil, &ConfigurationError{Reason: "workspace host is required unless both endpoint URLs are set"}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{cfg: cfg, logger: logger}, nil
}

func (a *Authorizer) authURL() string {
	if a.cfg.AuthURL != "" {
		return a.cfg.AuthURL
	}
	return a.cfg.Host + "/oidc/v1/authorize"
}

func (a *Authorizer) tokenURL() string {
	if a.cfg.TokenURL != "" {
		return a.cfg.TokenURL
	}
	return a.cfg.Host + "/oidc/v1/token"
}

// callbackResult carries the query parameters of the authorization redirect.
type callbackResult struct {
	code    string
	state   string
	errCode string
	errDesc string
}

// Authorize runs the full flow: generate verifier/state, open the browser,
// wait for exactly one loopback callback, validate it, and exchange the code.
// The listener is torn down on every exit path, including cancellation and
// timeout, so the redirect port is immediately rebindable afterwards.
func (a *Authorizer) Authorize(ctx context.Context) (*TokenResponse, error) {
	verifier := oauth2.GenerateVerifier()
	state, err := generateState()
	if err != nil {
		return nil, err
	}

	conf := &oauth2.Config{
		ClientID: a.cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.authURL(),
			TokenURL: a.tokenURL(),
			// Public client: credentials go in the POST body, never a Basic
			// auth header, so exactly one token request is made.
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: fmt.Sprintf("http://localhost:%d%s", a.cfg.RedirectPort, callbackPath),
		Scopes:      a.cfg.Scopes,
	}
	authorizationURL := conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	// Loopback only; the listener must not be reachable from other machines.
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", a.cfg.RedirectPort))
	if err != nil {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("cannot bind redirect port %d (it must match the registered redirect URI)", a.cfg.RedirectPort),
			Err:    err,
		}
	}

	results := make(chan callbackResult, 1)
	var handled atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		// Exactly one callback is processed; browser retries or double-fires
		// must not trigger a second exchange with a spent code.
		if !handled.CompareAndSwap(false, true) {
			http.Error(w, "authorization response already processed", http.StatusGone)
			return
		}

		q := r.URL.Query()
		result := callbackResult{
			code:    q.Get("code"),
			state:   q.Get("state"),
			errCode: q.Get("error"),
			errDesc: q.Get("error_description"),
		}

		// The token exchange has not run yet at this point, so the page must
		// not claim the login succeeded; the outcome lands on the terminal.
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if result.errCode == "" && result.code != "" && stateMatches(result.state, state) {
			fmt.Fprint(w, "<html><body><h2>Authorization received</h2><p>You can close this window and return to the terminal.</p></body></html>")
		} else {
			// Generic failure page; details are surfaced on the terminal only.
			fmt.Fprint(w, "<html><body><h2>Authorization failed</h2><p>Return to the terminal for details.</p></body></html>")
		}

		results <- result
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		// Serve returns once the listener is closed; nothing to report.
		_ = srv.Serve(ln)
	}()
	defer srv.Close()

	a.logger.Info("waiting for authorization callback",
		"listen", ln.Addr().String(),
		logging.Operation("u2m_login"))
	openBrowser := a.cfg.OpenBrowser
	if openBrowser == nil {
		openBrowser = OpenBrowser
	}
	if err := openBrowser(authorizationURL); err != nil {
		a.logger.Warn("could not open browser; open the URL manually",
			"url", authorizationURL, logging.Err(err))
	}

	timer := time.NewTimer(a.cfg.Timeout)
	defer timer.Stop()

	var result callbackResult
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil, ErrConsentTimeout
	case result = <-results:
	}

	if result.errCode != "" {
		return nil, &ProviderDeniedError{Code: result.errCode, Description: result.errDesc}
	}
	if !stateMatches(result.state, state) {
		return nil, &StateMismatchError{}
	}
	if result.code == "" {
		return nil, &ProviderDeniedError{Code: "invalid_response", Description: "authorization response carried no code"}
	}

	exchangeCtx := ctx
	if a.cfg.HTTPClient != nil {
		exchangeCtx = context.WithValue(ctx, oauth2.HTTPClient, a.cfg.HTTPClient)
	}
	tok, err := conf.Exchange(exchangeCtx, result.code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, &TokenExchangeError{
				StatusCode: retrieveErr.Response.StatusCode,
				Body:       string(retrieveErr.Body),
				Err:        err,
			}
		}
		return nil, &TokenExchangeError{Err: err}
	}

	a.logger.Info("token exchange complete",
		"token", logging.SanitizeToken(tok.AccessToken),
		logging.Operation("u2m_login"))

	resp := &TokenResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		ExpiresIn:    tok.ExpiresIn,
		RefreshToken: tok.RefreshToken,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		resp.Scope = scope
	}
	return resp, nil
}

// stateMatches compares state nonces in constant time. Missing or mismatched
// state is always fatal to the attempt.
func stateMatches(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
