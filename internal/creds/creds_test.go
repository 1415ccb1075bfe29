package creds

import (
	"context"
	"net/http"
	"testing"
)

func TestStaticRequiresBothTokens(t *testing.T) {
	cases := []Credentials{
		{},
		{Token: "xoxc-1"},
		{Cookie: "xoxd-1"},
	}
	for _, c := range cases {
		if _, err := (Static{Creds: c}).Credentials(context.Background()); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}

	got, err := (Static{Creds: Credentials{Token: "xoxc-1", Cookie: "xoxd-1", UserAgent: "ua"}}).Credentials(context.Background())
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if got.Token != "xoxc-1" || got.Cookie != "xoxd-1" || got.UserAgent != "ua" {
		t.Fatalf("unexpected credentials: %+v", got)
	}
}

func TestPerRequestReadsHeaders(t *testing.T) {
	r, _ := http.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set(HeaderWebToken, "xoxc-2")
	r.Header.Set(HeaderCookieToken, "xoxd-2")
	r.Header.Set("User-Agent", "client/9")

	ctx := WithRequest(context.Background(), r)
	got, err := (PerRequest{DefaultUserAgent: "fallback"}).Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if got.Token != "xoxc-2" || got.Cookie != "xoxd-2" || got.UserAgent != "client/9" {
		t.Fatalf("unexpected credentials: %+v", got)
	}
}

func TestPerRequestDefaultUserAgent(t *testing.T) {
	r, _ := http.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set(HeaderWebToken, "xoxc-2")
	r.Header.Set(HeaderCookieToken, "xoxd-2")

	ctx := WithRequest(context.Background(), r)
	got, err := (PerRequest{DefaultUserAgent: "fallback"}).Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if got.UserAgent != "fallback" {
		t.Fatalf("expected fallback user agent, got %q", got.UserAgent)
	}
}

func TestPerRequestMissingContext(t *testing.T) {
	if _, err := (PerRequest{}).Credentials(context.Background()); err == nil {
		t.Fatal("expected error without request context")
	}
}

func TestPerRequestMissingHeaders(t *testing.T) {
	r, _ := http.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set(HeaderWebToken, "xoxc-2")

	ctx := WithRequest(context.Background(), r)
	if _, err := (PerRequest{}).Credentials(ctx); err == nil {
		t.Fatal("expected error when cookie token header is absent")
	}
}
