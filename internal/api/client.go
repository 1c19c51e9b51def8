// Package api is the client for the backend RPC API.
//
// Every operation is a POST to <backend>/api/<operation> with a JSON request and
// a {"body": ...} envelope in the response. Calls carry the signed-in user's ID
// token as a bearer token. If the token cannot be obtained the client marks
// itself failed, reports it once, and refuses further calls.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/claude/fitconsole/internal/identity"
	"github.com/claude/fitconsole/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

const breakerName = "backend-api"

// Client calls the backend on behalf of the current user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       *identity.Auth
	breaker    *gobreaker.CircuitBreaker[[]byte]
	flight     singleflight.Group
	log        *slog.Logger

	flightMu sync.Mutex
	flights  map[string]*sharedRead

	mu            sync.Mutex
	failed        bool
	reported      bool
	onAuthFailure func(error)
}

// NewClient returns a client for the backend at baseURL. Timeouts, if any, come
// from httpClient.
func NewClient(baseURL string, httpClient *http.Client, auth *identity.Auth, log *slog.Logger) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		auth:       auth,
		log:        log,
	}
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Only transport errors and 5xx mean the backend is unhealthy.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return c
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// OnAuthFailure sets the callback fired the first time token retrieval fails.
// If the client already failed, fn is called right away.
func (c *Client) OnAuthFailure(fn func(error)) {
	c.mu.Lock()
	c.onAuthFailure = fn
	fire := c.failed && !c.reported
	if fire {
		c.reported = true
	}
	c.mu.Unlock()
	if fire && fn != nil {
		fn(ErrAuthFailed)
	}
}

// Failed reports whether the client has given up after an auth failure.
func (c *Client) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

func (c *Client) markFailed(cause error) error {
	c.mu.Lock()
	c.failed = true
	fn := c.onAuthFailure
	fire := !c.reported && fn != nil
	if fire {
		c.reported = true
	}
	c.mu.Unlock()

	c.log.Error("backend auth failed", "error", cause)
	if fire {
		fn(cause)
	}
	return fmt.Errorf("%w: %w", ErrAuthFailed, cause)
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.Failed() {
		return "", ErrAuthFailed
	}
	user := c.auth.CurrentUser()
	if user == nil {
		return "", c.markFailed(ErrNotSignedIn)
	}
	tok, err := user.IDToken(ctx, false)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", c.markFailed(err)
	}
	return tok, nil
}

// call sends req to op and decodes the envelope body into out (which may be nil).
func (c *Client) call(ctx context.Context, op string, req, out any) error {
	if err := validateRequest(op, req); err != nil {
		return err
	}
	tok, err := c.token(ctx)
	if err != nil {
		return err
	}
	body, err := c.execute(ctx, op, tok, req)
	if err != nil {
		return err
	}
	return decodeBody(op, body, out)
}

// read is call for parameterless reads. Concurrent reads of the same operation
// share one request. A caller whose context ends stops waiting without failing
// the others; the request itself is cancelled once nobody waits for it.
func (c *Client) read(ctx context.Context, op string, out any) error {
	tok, err := c.token(ctx)
	if err != nil {
		return err
	}
	shared := c.joinRead(ctx, op)
	defer c.leaveRead(op, shared)

	ch := c.flight.DoChan(op, func() (any, error) {
		return c.execute(shared.ctx, op, tok, nil)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return decodeBody(op, res.Val.([]byte), out)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sharedRead is the context of one in-flight read and the number of callers
// waiting on it.
type sharedRead struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (c *Client) joinRead(ctx context.Context, op string) *sharedRead {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	if c.flights == nil {
		c.flights = make(map[string]*sharedRead)
	}
	s, ok := c.flights[op]
	if !ok {
		sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s = &sharedRead{ctx: sctx, cancel: cancel}
		c.flights[op] = s
	}
	s.waiters++
	return s
}

func (c *Client) leaveRead(op string, s *sharedRead) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	s.waiters--
	if s.waiters > 0 {
		return
	}
	s.cancel()
	delete(c.flights, op)
	// A request abandoned by every caller must not be joined by the next one.
	c.flight.Forget(op)
}

func (c *Client) execute(ctx context.Context, op, token string, req any) ([]byte, error) {
	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.post(ctx, op, token, req)
	})

	result := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
	case err != nil:
		result = "error"
	}
	metrics.RecordBackendCall(op, result, time.Since(start))

	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, op, token string, req any) ([]byte, error) {
	payload := []byte("{}")
	if req != nil {
		var err error
		if payload, err = json.Marshal(req); err != nil {
			return nil, fmt.Errorf("api: encoding %s request: %w", op, err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+op, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("api: creating %s request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("api: %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: reading %s response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			Operation: op,
			Code:      resp.StatusCode,
			Status:    resp.Status,
			Body:      strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}

type envelope struct {
	Body json.RawMessage `json:"body"`
}

func decodeBody(op string, data []byte, out any) error {
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("api: decoding %s response: %w", op, err)
	}
	if len(env.Body) == 0 || string(env.Body) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Body, out); err != nil {
		return fmt.Errorf("api: decoding %s body: %w", op, err)
	}
	return nil
}
