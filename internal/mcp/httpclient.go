package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/views"
)

// HTTPClient implements DataSource by calling the view routes of a running
// fitconsole-server. Used when the MCP binary runs locally over stdio but the
// signed-in session lives on the server (reached over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

// getView fetches one view and fails when the server could not load it.
func getView[S any](ctx context.Context, c *HTTPClient, name string, params url.Values, loaded func(S) bool) (*S, error) {
	body, err := c.get(ctx, "/api/v1/views/"+name, params)
	if err != nil {
		return nil, err
	}
	var st S
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("httpclient: decode %s: %w", name, err)
	}
	if !loaded(st) {
		return nil, fmt.Errorf("%s: backend data unavailable", name)
	}
	return &st, nil
}

func (c *HTTPClient) Dashboard(ctx context.Context) (*views.DashboardState, error) {
	return getView(ctx, c, "dashboard", nil, func(st views.DashboardState) bool { return st.Loaded })
}

func (c *HTTPClient) Body(ctx context.Context) (*views.BodyState, error) {
	return getView(ctx, c, "body", nil, func(st views.BodyState) bool { return st.Loaded })
}

func (c *HTTPClient) Activities(ctx context.Context, req api.ListRequest) (*views.RecordsState, error) {
	params := url.Values{}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		params.Set("offset", strconv.Itoa(req.Offset))
	}
	return getView(ctx, c, "activities", params, func(st views.RecordsState) bool { return st.Loaded })
}

func (c *HTTPClient) Services(ctx context.Context) (*views.ServicesState, error) {
	return getView(ctx, c, "services", nil, func(st views.ServicesState) bool { return st.Loaded })
}
