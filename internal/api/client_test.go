package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/claude/fitconsole/internal/identity"
	"github.com/claude/fitconsole/internal/models"
	gobreaker "github.com/sony/gobreaker/v2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer routes requests by path and fails the test on unknown paths.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeBody writes v inside the response envelope.
func writeBody(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"body": v}); err != nil {
		t.Fatal(err)
	}
}

func signedInAuth(t *testing.T, p identity.Provider) *identity.Auth {
	t.Helper()
	auth := identity.NewAuth(testLogger())
	if _, err := auth.SignIn(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return auth
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(srv.URL, srv.Client(), signedInAuth(t, &identity.FakeProvider{UID: "u1"}), testLogger())
}

// flakyProvider signs in successfully, then fails every later token request.
type flakyProvider struct {
	inner identity.FakeProvider
	fail  atomic.Bool
	calls atomic.Int32
}

func (p *flakyProvider) IDToken(ctx context.Context, force bool) (string, error) {
	p.calls.Add(1)
	if p.fail.Load() {
		return "", errors.New("refresh token revoked")
	}
	return p.inner.IDToken(ctx, force)
}

// TestGetProfile verifies the bearer header, request path and envelope decoding.
func TestGetProfile(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/get_profile": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); !strings.HasPrefix(got, "Bearer ") {
				t.Errorf("Authorization = %q", got)
			}
			writeBody(t, w, map[string]any{
				"user": map[string]any{
					"id":   "u1",
					"name": "Ada",
					"properties": map[string]any{
						"preferences": map[string]any{"units": "imperial"},
					},
				},
			})
		},
	})

	p, err := newTestClient(t, srv).GetProfile(context.Background())
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.User.Name != "Ada" || p.Units() != models.UnitsImperial {
		t.Errorf("profile = %+v, units %q", p.User, p.Units())
	}
}

// TestGetSeriesKeepsMissingValues verifies null and absent weights stay distinguishable.
func TestGetSeriesKeepsMissingValues(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/get_series": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"body":{"measurements":[
				{"date":"2026-01-01T08:00:00Z","weight":80.5},
				{"date":"2026-01-02","weight":null},
				{"date":"2026-01-03T08:00:00Z","fat_ratio":21.5}
			]}}`))
		},
	})

	ms, err := newTestClient(t, srv).GetSeries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 3 {
		t.Fatalf("got %d measurements", len(ms))
	}
	if v, ok := ms[0].Weight.Get(); !ok || v != 80.5 {
		t.Errorf("ms[0].Weight = %v, %v", v, ok)
	}
	if !ms[1].Weight.IsNull() {
		t.Error("ms[1].Weight should be null")
	}
	if !ms[2].Weight.IsUnset() {
		t.Error("ms[2].Weight should be unset")
	}
}

// TestRequestBodyIsSent verifies the request payload reaches the backend as JSON.
func TestRequestBodyIsSent(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/compare_segments": func(w http.ResponseWriter, r *http.Request) {
			var req CompareRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatal(err)
			}
			if req.SegmentID != "s1" || req.ActivityID != "a9" {
				t.Errorf("req = %+v", req)
			}
			writeBody(t, w, map[string]any{
				"segment": map[string]any{"id": "s1", "properties": map[string]any{"name": "Hill"}},
				"efforts": []any{map[string]any{"activity_id": "a9", "athlete_name": "Ada", "elapsed_time": 321}},
			})
		},
	})

	cmp, err := newTestClient(t, srv).CompareSegments(context.Background(), CompareRequest{SegmentID: "s1", ActivityID: "a9"})
	if err != nil {
		t.Fatal(err)
	}
	if cmp.Segment.Properties.Name != "Hill" || len(cmp.Efforts) != 1 {
		t.Errorf("comparison = %+v", cmp)
	}
}

// TestValidationStopsRequest verifies invalid payloads are rejected before any request.
func TestValidationStopsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/update_preferences": func(w http.ResponseWriter, r *http.Request) { calls.Add(1) },
		"/api/connect_userpass":   func(w http.ResponseWriter, r *http.Request) { calls.Add(1) },
	})
	c := newTestClient(t, srv)

	_, err := c.UpdatePreferences(context.Background(), PreferencesRequest{Units: "kelvin"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, err := c.ConnectUserPass(context.Background(), UserPassRequest{Service: "garmin", Username: "ada"}); !errors.As(err, &ve) {
		t.Errorf("missing password: err = %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("backend called %d times", calls.Load())
	}
}

// TestAuthFailureReportedOnce verifies a token failure fails the client permanently and reports once.
func TestAuthFailureReportedOnce(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/get_profile": func(w http.ResponseWriter, r *http.Request) { calls.Add(1) },
	})

	p := &flakyProvider{inner: identity.FakeProvider{UID: "u1"}}
	c := NewClient(srv.URL, srv.Client(), signedInAuth(t, p), testLogger())
	var reports atomic.Int32
	c.OnAuthFailure(func(error) { reports.Add(1) })

	p.fail.Store(true)
	tokenCallsBefore := p.calls.Load()
	for range 3 {
		if _, err := c.GetProfile(context.Background()); !errors.Is(err, ErrAuthFailed) {
			t.Errorf("err = %v, want ErrAuthFailed", err)
		}
	}

	if !c.Failed() {
		t.Error("Failed() = false")
	}
	if reports.Load() != 1 {
		t.Errorf("reports = %d, want 1", reports.Load())
	}
	if got := p.calls.Load() - tokenCallsBefore; got != 1 {
		t.Errorf("token requested %d times after failure, want 1", got)
	}
	if calls.Load() != 0 {
		t.Errorf("backend called %d times", calls.Load())
	}

	// A listener attached after the failure was reported is not called again.
	late := 0
	c.OnAuthFailure(func(error) { late++ })
	if late != 0 {
		t.Errorf("late listener called %d times; failure was already reported", late)
	}
}

// TestNoUserIsAuthFailure verifies calling without a signed-in user fails the client.
func TestNoUserIsAuthFailure(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", http.DefaultClient, identity.NewAuth(testLogger()), testLogger())
	var cause error
	c.OnAuthFailure(func(err error) { cause = err })

	if _, err := c.GetClients(context.Background()); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("err = %v", err)
	}
	if !errors.Is(cause, ErrNotSignedIn) {
		t.Errorf("reported cause = %v, want ErrNotSignedIn", cause)
	}
}

// TestStatusError verifies non-200 responses surface code and status text.
func TestStatusError(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/admin/get_clubs": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "admin only", http.StatusForbidden)
		},
	})

	_, err := newTestClient(t, srv).GetClubs(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if se.Code != http.StatusForbidden || se.StatusText() != "Forbidden" || se.Body != "admin only" {
		t.Errorf("StatusError = %+v", se)
	}
	if !IsStatus(err, http.StatusForbidden) {
		t.Error("IsStatus(403) = false")
	}
}

// TestBreakerOpensOnServerErrors verifies repeated 5xx responses stop further requests without retrying.
func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/get_activities": func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		},
	})
	c := newTestClient(t, srv)

	for range 5 {
		if _, err := c.GetActivities(context.Background(), ListRequest{Limit: 10}); !IsStatus(err, http.StatusBadGateway) {
			t.Fatalf("err = %v, want 502", err)
		}
	}
	_, err := c.GetActivities(context.Background(), ListRequest{Limit: 10})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
	if calls.Load() != 5 {
		t.Errorf("backend called %d times, want 5", calls.Load())
	}
}

// TestClientErrorsDoNotTripBreaker verifies 4xx responses leave the breaker closed.
func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/get_activity": func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		},
	})
	c := newTestClient(t, srv)

	for range 8 {
		if _, err := c.GetActivity(context.Background(), "missing"); !IsStatus(err, http.StatusNotFound) {
			t.Fatalf("err = %v, want 404", err)
		}
	}
	if calls.Load() != 8 {
		t.Errorf("backend called %d times, want 8", calls.Load())
	}
}

// TestHungCallPendingUntilCancelled verifies a call with no timeout waits until its context ends.
func TestHungCallPendingUntilCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/get_routes": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		},
	})
	defer close(release)
	c := newTestClient(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetRoutes(ctx, ListRequest{})
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("call returned early: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("call did not return after cancel")
	}
}

// TestAdminWrites verifies club and admin service operations hit their paths with their payloads.
func TestAdminWrites(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/admin/track_club": func(w http.ResponseWriter, r *http.Request) {
			var req ClubRequest
			json.NewDecoder(r.Body).Decode(&req)
			writeBody(t, w, models.Club{ID: req.ClubID, Name: "Velo", Tracked: true})
		},
		"/api/admin/disconnect": func(w http.ResponseWriter, r *http.Request) {
			var req AdminServiceRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.UserID != "u2" || req.Service != "strava" {
				t.Errorf("req = %+v", req)
			}
			writeBody(t, w, nil)
		},
	})
	c := newTestClient(t, srv)

	club, err := c.TrackClub(context.Background(), "c1")
	if err != nil || club.ID != "c1" || !club.Tracked {
		t.Errorf("TrackClub = %+v, %v", club, err)
	}
	if err := c.AdminDisconnect(context.Background(), AdminServiceRequest{UserID: "u2", Service: "strava"}); err != nil {
		t.Errorf("AdminDisconnect: %v", err)
	}
}

// TestListsDecodeBareArrays verifies list operations read the array in the envelope body.
func TestListsDecodeBareArrays(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/get_activities": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"body":[{"id":"a1","properties":{"name":"Ride","distance":1000}},{"id":"a2"}]}`))
		},
		"/api/get_clients": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"body":[{"id":"c1","token":"tok","enabled":true}]}`))
		},
		"/api/admin/get_users": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"body":[{"id":"u1","name":"Ada","admin":true}]}`))
		},
		"/api/admin/get_clubs": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"body":[]}`))
		},
	})
	c := newTestClient(t, srv)
	ctx := context.Background()

	acts, err := c.GetActivities(ctx, ListRequest{})
	if err != nil {
		t.Fatalf("GetActivities: %v", err)
	}
	if len(acts) != 2 || acts[0].ID != "a1" {
		t.Errorf("activities = %+v", acts)
	}

	clients, err := c.GetClients(ctx)
	if err != nil {
		t.Fatalf("GetClients: %v", err)
	}
	if len(clients) != 1 || clients[0].Token != "tok" {
		t.Errorf("clients = %+v", clients)
	}

	users, err := c.GetUsers(ctx)
	if err != nil {
		t.Fatalf("GetUsers: %v", err)
	}
	if len(users) != 1 || users[0].Name != "Ada" {
		t.Errorf("users = %+v", users)
	}

	clubs, err := c.GetClubs(ctx)
	if err != nil || len(clubs) != 0 {
		t.Errorf("clubs = %+v, err = %v", clubs, err)
	}
}

// TestSyncServicePath verifies SyncService posts to the sync_service operation.
func TestSyncServicePath(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/sync_service": func(w http.ResponseWriter, r *http.Request) {
			writeBody(t, w, map[string]any{"name": "strava", "connected": true, "sync_state": "syncing"})
		},
	})

	svc, err := newTestClient(t, srv).SyncService(context.Background(), "strava")
	if err != nil {
		t.Fatal(err)
	}
	if svc.SyncState != models.SyncStateSyncing {
		t.Errorf("service = %+v", svc)
	}
}

// TestSharedReadSurvivesOneCancel verifies cancelling one caller of a shared read leaves the others running.
func TestSharedReadSurvivesOneCancel(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/get_profile": func(w http.ResponseWriter, r *http.Request) {
			started <- struct{}{}
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
			writeBody(t, w, map[string]any{"user": map[string]any{"id": "u1", "name": "Ada"}})
		},
	})
	c := newTestClient(t, srv)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	doneA := make(chan error, 1)
	go func() {
		_, err := c.GetProfile(ctxA)
		doneA <- err
	}()
	<-started

	doneB := make(chan error, 1)
	var name atomic.Value
	go func() {
		p, err := c.GetProfile(context.Background())
		if err == nil {
			name.Store(p.User.Name)
		}
		doneB <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-doneA:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled caller err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	select {
	case err := <-doneB:
		t.Fatalf("live caller returned before the backend answered: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-doneB:
		if err != nil {
			t.Fatalf("live caller err = %v", err)
		}
		if name.Load() != "Ada" {
			t.Errorf("name = %v", name.Load())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("live caller did not return")
	}
}
