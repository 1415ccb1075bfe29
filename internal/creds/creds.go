// Package creds supplies Slack session credentials to outbound API calls.
// The server runs with browser session tokens, not a bot token: the xoxc web
// token travels as the bearer token and the xoxd token as the `d` cookie.
//
// Two providers exist, selected at startup: Static serves tokens read from
// the environment (stdio transport), PerRequest serves tokens extracted from
// the inbound HTTP request's headers (http transport).
package creds

import (
	"context"
	"errors"
	"net/http"
)

// Header names carrying the session tokens on inbound requests in http mode.
const (
	HeaderWebToken    = "X-Slack-Web-Token"
	HeaderCookieToken = "X-Slack-Cookie-Token"
)

// Credentials is one usable set of session secrets.
type Credentials struct {
	Token     string // xoxc web token, sent as the bearer token
	Cookie    string // xoxd token, sent as the d cookie
	UserAgent string
}

// Provider yields the credentials for a single outbound call.
type Provider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Static serves one fixed credential set for the lifetime of the process.
type Static struct {
	Creds Credentials
}

func (s Static) Credentials(context.Context) (Credentials, error) {
	if s.Creds.Token == "" || s.Creds.Cookie == "" {
		return Credentials{}, errors.New("slack session tokens not configured")
	}
	return s.Creds, nil
}

type ctxKey struct{}

// WithRequest stashes the credential headers of an inbound request in the
// context, for PerRequest to pick up later in the same call.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, ctxKey{}, Credentials{
		Token:     r.Header.Get(HeaderWebToken),
		Cookie:    r.Header.Get(HeaderCookieToken),
		UserAgent: r.Header.Get("User-Agent"),
	})
}

// PerRequest reads credentials placed in the context by WithRequest.
type PerRequest struct {
	// DefaultUserAgent is used when the inbound request carried none.
	DefaultUserAgent string
}

func (p PerRequest) Credentials(ctx context.Context) (Credentials, error) {
	c, ok := ctx.Value(ctxKey{}).(Credentials)
	if !ok {
		return Credentials{}, errors.New("no request credentials in context")
	}
	if c.Token == "" || c.Cookie == "" {
		return Credentials{}, errors.New("missing " + HeaderWebToken + " or " + HeaderCookieToken + " header")
	}
	if c.UserAgent == "" {
		c.UserAgent = p.DefaultUserAgent
	}
	return c, nil
}
