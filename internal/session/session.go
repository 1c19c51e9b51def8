// Package session exchanges an ID token for a backend cookie session.
//
// The backend's privileged redirect flows (third-party service connects) need a
// cookie session rather than a bearer token. The bridge makes one request per
// call and never retries; callers decide what a non-200 status means.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/claude/fitconsole/internal/identity"
	"golang.org/x/net/publicsuffix"
)

// Response is the outcome of a session request.
type Response struct {
	StatusCode int
	Status     string
}

// OK reports whether the backend accepted the request.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// fakeOK is returned in fake-user mode without touching the network.
var fakeOK = Response{StatusCode: http.StatusOK, Status: "200 OK"}

// Bridge creates and closes backend sessions.
type Bridge struct {
	baseURL    string
	httpClient *http.Client
	fake       bool
	log        *slog.Logger
}

// NewBridge returns a bridge to the backend at baseURL. The HTTP client should
// carry a cookie jar (see NewHTTPClient) so the session cookie is kept. In fake
// mode every call succeeds locally.
func NewBridge(baseURL string, httpClient *http.Client, fake bool, log *slog.Logger) *Bridge {
	return &Bridge{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		fake:       fake,
		log:        log,
	}
}

// NewHTTPClient returns a client with a cookie jar. A zero timeout means calls
// wait until their context is cancelled.
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &http.Client{Jar: jar, Timeout: timeout}, nil
}

// CreateSession posts a freshly refreshed ID token to /create_session.
func (b *Bridge) CreateSession(ctx context.Context, user *identity.User) (*Response, error) {
	return b.post(ctx, user, "/create_session")
}

// CloseSession ends the backend session.
func (b *Bridge) CloseSession(ctx context.Context, user *identity.User) (*Response, error) {
	return b.post(ctx, user, "/close_session")
}

// Connect creates a session and returns the URL that starts the connect flow for
// service. The URL is only useful to a client sharing this bridge's cookies.
func (b *Bridge) Connect(ctx context.Context, user *identity.User, service string) (string, error) {
	resp, err := b.CreateSession(ctx, user)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("creating session for %s connect: %s", service, resp.Status)
	}
	return b.baseURL + "/" + url.PathEscape(service) + "/connect", nil
}

func (b *Bridge) post(ctx context.Context, user *identity.User, path string) (*Response, error) {
	if b.fake {
		resp := fakeOK
		return &resp, nil
	}
	if user == nil {
		return nil, fmt.Errorf("%s: not signed in", path)
	}

	token, err := user.IDToken(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%s: getting ID token: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	b.log.Debug("session request", "path", path, "status", resp.StatusCode)
	return &Response{StatusCode: resp.StatusCode, Status: resp.Status}, nil
}
