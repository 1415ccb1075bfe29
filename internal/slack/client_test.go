package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/slackhub/slackhub/internal/creds"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProvider() creds.Provider {
	return creds.Static{Creds: creds.Credentials{
		Token:     "xoxc-test",
		Cookie:    "xoxd-test",
		UserAgent: "slackhub-test/1.0",
	}}
}

// recordingServer captures every request path in arrival order and serves
// canned JSON per Web API method.
type recordingServer struct {
	mu    sync.Mutex
	paths []string
	srv   *httptest.Server

	// lastPostMessageForm holds the decoded form of the latest
	// chat.postMessage request.
	lastPostMessageForm map[string][]string
	lastReactionForm    map[string][]string
	lastCommandBody     map[string]string
	lastCookie          string
	lastUserAgent       string
	lastAuthorization   string

	responses map[string]string
}

func newRecordingServer(t *testing.T) *recordingServer {
	t.Helper()
	rs := &recordingServer{
		responses: map[string]string{
			"/auth.test":             `{"ok":true,"user":"grace","user_id":"U1","team":"eng"}`,
			"/conversations.history": `{"ok":true,"messages":[{"type":"message","text":"newest","ts":"3.0"},{"type":"message","text":"older","ts":"2.0"}]}`,
			"/conversations.join":    `{"ok":true,"channel":{"id":"C1"}}`,
			"/chat.postMessage":      `{"ok":true,"channel":"C1","ts":"4.0"}`,
			"/chat.command":          `{"ok":true}`,
			"/reactions.add":         `{"ok":true}`,
		},
	}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.paths = append(rs.paths, r.URL.Path)
		if c, err := r.Cookie("d"); err == nil {
			rs.lastCookie = c.Value
		}
		rs.lastUserAgent = r.Header.Get("User-Agent")
		if auth := r.Header.Get("Authorization"); auth != "" {
			rs.lastAuthorization = auth
		}
		switch r.URL.Path {
		case "/chat.postMessage":
			r.ParseForm()
			rs.lastPostMessageForm = r.PostForm
		case "/reactions.add":
			r.ParseForm()
			rs.lastReactionForm = r.PostForm
		case "/chat.command":
			body, _ := io.ReadAll(r.Body)
			var decoded map[string]string
			json.Unmarshal(body, &decoded)
			rs.lastCommandBody = decoded
		}
		resp, ok := rs.responses[r.URL.Path]
		rs.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if !ok {
			resp = `{"ok":false,"error":"unknown_method"}`
		}
		io.WriteString(w, resp)
	}))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *recordingServer) setResponse(path, body string) {
	rs.mu.Lock()
	rs.responses[path] = body
	rs.mu.Unlock()
}

func (rs *recordingServer) client() *Client {
	return NewClient(testProvider(), rs.srv.URL, discardLogger())
}

func (rs *recordingServer) recordedPaths() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.paths...)
}

func TestWhoAmI(t *testing.T) {
	rs := newRecordingServer(t)

	user, err := rs.client().WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("WhoAmI: %v", err)
	}
	if user != "grace" {
		t.Fatalf("expected user grace, got %q", user)
	}
	if rs.lastCookie != "xoxd-test" {
		t.Fatalf("expected d cookie on request, got %q", rs.lastCookie)
	}
	if rs.lastUserAgent != "slackhub-test/1.0" {
		t.Fatalf("expected configured user agent, got %q", rs.lastUserAgent)
	}
}

func TestChannelHistoryPreservesOrder(t *testing.T) {
	rs := newRecordingServer(t)

	msgs, err := rs.client().ChannelHistory(context.Background(), "C1")
	if err != nil {
		t.Fatalf("ChannelHistory: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "newest" || msgs[1].Text != "older" {
		t.Fatalf("order not preserved: %q, %q", msgs[0].Text, msgs[1].Text)
	}
}

func TestChannelHistoryAPIFailure(t *testing.T) {
	rs := newRecordingServer(t)
	rs.setResponse("/conversations.history", `{"ok":false,"error":"channel_not_found"}`)

	_, err := rs.client().ChannelHistory(context.Background(), "CMISSING")
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected channel_not_found error, got %v", err)
	}
}

func TestPostMessageJoinsBeforePosting(t *testing.T) {
	rs := newRecordingServer(t)

	if err := rs.client().PostMessage(context.Background(), "C1", "hello", ""); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	paths := rs.recordedPaths()
	if len(paths) != 2 || paths[0] != "/conversations.join" || paths[1] != "/chat.postMessage" {
		t.Fatalf("expected join then post, got %v", paths)
	}
}

func TestPostMessageThreadTSPassedThrough(t *testing.T) {
	rs := newRecordingServer(t)

	if err := rs.client().PostMessage(context.Background(), "C1", "hello", "1678901234.123456"); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	got := rs.lastPostMessageForm["thread_ts"]
	if len(got) != 1 || got[0] != "1678901234.123456" {
		t.Fatalf("expected thread_ts passed through unchanged, got %v", got)
	}
}

func TestPostMessageLinkFormThreadTSConverted(t *testing.T) {
	rs := newRecordingServer(t)

	if err := rs.client().PostMessage(context.Background(), "C1", "hello", "1678901234123456"); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	got := rs.lastPostMessageForm["thread_ts"]
	if len(got) != 1 || got[0] != "1678901234.123456" {
		t.Fatalf("expected converted thread_ts, got %v", got)
	}
}

func TestPostMessageOmitsEmptyThreadTS(t *testing.T) {
	rs := newRecordingServer(t)

	if err := rs.client().PostMessage(context.Background(), "C1", "hello", ""); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if _, present := rs.lastPostMessageForm["thread_ts"]; present {
		t.Fatalf("expected thread_ts omitted, form was %v", rs.lastPostMessageForm)
	}
}

func TestPostMessageAPIFailure(t *testing.T) {
	rs := newRecordingServer(t)
	rs.setResponse("/chat.postMessage", `{"ok":false,"error":"msg_too_long"}`)

	err := rs.client().PostMessage(context.Background(), "C1", "hello", "")
	if err == nil || !strings.Contains(err.Error(), "msg_too_long") {
		t.Fatalf("expected msg_too_long error, got %v", err)
	}
}

func TestPostMessageContinuesWhenJoinFails(t *testing.T) {
	rs := newRecordingServer(t)
	rs.setResponse("/conversations.join", `{"ok":false,"error":"method_not_supported_for_channel_type"}`)

	if err := rs.client().PostMessage(context.Background(), "D1", "hello", ""); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	paths := rs.recordedPaths()
	if paths[len(paths)-1] != "/chat.postMessage" {
		t.Fatalf("expected post despite join failure, got %v", paths)
	}
}

func TestPostCommand(t *testing.T) {
	rs := newRecordingServer(t)

	if err := rs.client().PostCommand(context.Background(), "C1", "/deploy", "prod"); err != nil {
		t.Fatalf("PostCommand: %v", err)
	}
	paths := rs.recordedPaths()
	if len(paths) != 2 || paths[0] != "/conversations.join" || paths[1] != "/chat.command" {
		t.Fatalf("expected join then command, got %v", paths)
	}
	want := map[string]string{"channel": "C1", "command": "/deploy", "text": "prod"}
	for k, v := range want {
		if rs.lastCommandBody[k] != v {
			t.Fatalf("expected %s=%q in payload, got %v", k, v, rs.lastCommandBody)
		}
	}
	if rs.lastAuthorization != "Bearer xoxc-test" {
		t.Fatalf("expected bearer auth, got %q", rs.lastAuthorization)
	}
}

func TestPostCommandAPIFailure(t *testing.T) {
	rs := newRecordingServer(t)
	rs.setResponse("/chat.command", `{"ok":false,"error":"command_not_found"}`)

	err := rs.client().PostCommand(context.Background(), "C1", "/nope", "")
	if err == nil || !strings.Contains(err.Error(), "command_not_found") {
		t.Fatalf("expected command_not_found error, got %v", err)
	}
}

func TestAddReactionNormalizesTimestamp(t *testing.T) {
	rs := newRecordingServer(t)

	if err := rs.client().AddReaction(context.Background(), "C1", "1678901234123456", "rocket"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	if got := rs.lastReactionForm["timestamp"]; len(got) != 1 || got[0] != "1678901234.123456" {
		t.Fatalf("expected normalized timestamp, got %v", got)
	}
	if got := rs.lastReactionForm["name"]; len(got) != 1 || got[0] != "rocket" {
		t.Fatalf("expected reaction name, got %v", got)
	}
}

func TestAddReactionAPIFailure(t *testing.T) {
	rs := newRecordingServer(t)
	rs.setResponse("/reactions.add", `{"ok":false,"error":"already_reacted"}`)

	err := rs.client().AddReaction(context.Background(), "C1", "1.2", "rocket")
	if err == nil || !strings.Contains(err.Error(), "already_reacted") {
		t.Fatalf("expected already_reacted error, got %v", err)
	}
}

func TestJoinChannelAlreadyMemberIsNoError(t *testing.T) {
	rs := newRecordingServer(t)
	rs.setResponse("/conversations.join", `{"ok":true,"warning":"already_in_channel","channel":{"id":"C1"}}`)

	if err := rs.client().JoinChannel(context.Background(), "C1"); err != nil {
		t.Fatalf("JoinChannel: %v", err)
	}
}

func TestMissingCredentialsShortCircuits(t *testing.T) {
	rs := newRecordingServer(t)
	c := NewClient(creds.PerRequest{}, rs.srv.URL, discardLogger())

	if _, err := c.WhoAmI(context.Background()); err == nil {
		t.Fatal("expected credential error")
	}
	if len(rs.recordedPaths()) != 0 {
		t.Fatalf("expected no outbound call, got %v", rs.recordedPaths())
	}
}
