// Package slack performs the outbound Web API calls behind the tool surface.
// Calls authenticate with session tokens obtained from a creds.Provider; the
// underlying HTTP client is built fresh for each call and released with it,
// so nothing is shared between concurrent invocations. There are no retries:
// a failed call returns an error carrying the API's reason.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/slackhub/slackhub/internal/creds"
	"github.com/slackhub/slackhub/internal/telemetry"
)

// DefaultAPIBase is the production Web API root.
const DefaultAPIBase = "https://slack.com/api"

const callTimeout = 30 * time.Second

// Client maps each workspace operation to one Web API call.
type Client struct {
	provider creds.Provider
	apiBase  string
	logger   *slog.Logger
}

func NewClient(provider creds.Provider, apiBase string, logger *slog.Logger) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{
		provider: provider,
		apiBase:  strings.TrimRight(apiBase, "/"),
		logger:   logger,
	}
}

// sessionTransport decorates every request the way a browser session does:
// the xoxd token rides as the d cookie and the caller's user agent replaces
// the library default.
type sessionTransport struct {
	cookie    string
	userAgent string
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.AddCookie(&http.Cookie{Name: "d", Value: t.cookie})
	req.Header.Set("User-Agent", t.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

func (c *Client) httpClient(cr creds.Credentials) *http.Client {
	return &http.Client{
		Timeout:   callTimeout,
		Transport: &sessionTransport{cookie: cr.Cookie, userAgent: cr.UserAgent},
	}
}

// api builds a Web API client scoped to this one call.
func (c *Client) api(ctx context.Context) (*slackapi.Client, error) {
	cr, err := c.provider.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return slackapi.New(cr.Token,
		slackapi.OptionHTTPClient(c.httpClient(cr)),
		slackapi.OptionAPIURL(c.apiBase+"/"),
	), nil
}

// WhoAmI checks authentication and returns the session's user name.
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	api, err := c.api(ctx)
	if err != nil {
		return "", err
	}
	resp, err := api.AuthTestContext(ctx)
	if err != nil {
		telemetry.IncSlackAPIError("auth.test")
		return "", fmt.Errorf("auth.test: %w", err)
	}
	return resp.User, nil
}

// ChannelHistory returns the channel's messages in the order the API sends
// them (newest first).
func (c *Client) ChannelHistory(ctx context.Context, channelID string) ([]slackapi.Message, error) {
	api, err := c.api(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := api.GetConversationHistoryContext(ctx, &slackapi.GetConversationHistoryParameters{
		ChannelID: channelID,
	})
	if err != nil {
		telemetry.IncSlackAPIError("conversations.history")
		return nil, fmt.Errorf("conversations.history: %w", err)
	}
	return resp.Messages, nil
}

// JoinChannel joins the channel. Joining a channel the session is already a
// member of is a no-op on the API side.
func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	if _, _, _, err := api.JoinConversationContext(ctx, channelID); err != nil {
		telemetry.IncSlackAPIError("conversations.join")
		return fmt.Errorf("conversations.join: %w", err)
	}
	return nil
}

// PostMessage joins the channel and then posts text to it, optionally inside
// a thread. The join must land before the post within this call; a join
// failure is diagnostic only, since the session may already be a member.
func (c *Client) PostMessage(ctx context.Context, channelID, text, threadTS string) error {
	if err := c.JoinChannel(ctx, channelID); err != nil {
		c.logger.Warn("join before post failed", "channel", channelID, "err", err)
	}
	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	opts := []slackapi.MsgOption{slackapi.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slackapi.MsgOptionTS(NormalizeTimestamp(threadTS)))
	}
	if _, _, err := api.PostMessageContext(ctx, channelID, opts...); err != nil {
		telemetry.IncSlackAPIError("chat.postMessage")
		return fmt.Errorf("chat.postMessage: %w", err)
	}
	return nil
}

// PostCommand joins the channel and then runs a slash command in it.
// chat.command is not part of the published Web API surface, so the call is
// a raw JSON POST through the same session transport.
func (c *Client) PostCommand(ctx context.Context, channelID, command, text string) error {
	if err := c.JoinChannel(ctx, channelID); err != nil {
		c.logger.Warn("join before command failed", "channel", channelID, "err", err)
	}

	cr, err := c.provider.Credentials(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]string{
		"channel": channelID,
		"command": command,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("chat.command: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat.command", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chat.command: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cr.Token)

	resp, err := c.httpClient(cr).Do(req)
	if err != nil {
		telemetry.IncSlackAPIError("chat.command")
		return fmt.Errorf("chat.command: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		telemetry.IncSlackAPIError("chat.command")
		return fmt.Errorf("chat.command: unexpected status %d", resp.StatusCode)
	}
	var out struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("chat.command: decode: %w", err)
	}
	if !out.OK {
		telemetry.IncSlackAPIError("chat.command")
		return fmt.Errorf("chat.command: %s", out.Error)
	}
	return nil
}

// AddReaction reacts to a message. The timestamp may arrive in shared-link
// form and is normalized before the call.
func (c *Client) AddReaction(ctx context.Context, channelID, messageTS, reaction string) error {
	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	ref := slackapi.NewRefToMessage(channelID, NormalizeTimestamp(messageTS))
	if err := api.AddReactionContext(ctx, reaction, ref); err != nil {
		telemetry.IncSlackAPIError("reactions.add")
		return fmt.Errorf("reactions.add: %w", err)
	}
	return nil
}
