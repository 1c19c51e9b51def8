package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/views"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestHTTPActivities verifies paging is sent as query params and the view state is parsed.
func TestHTTPActivities(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/views/activities": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("limit"); got != "5" {
				t.Errorf("limit=%q, want 5", got)
			}
			if r.URL.Query().Has("offset") {
				t.Error("zero offset should not be sent")
			}
			writeTestJSON(t, w, views.RecordsState{Loaded: true, Kind: "activity", Records: []views.RecordRow{{ID: "a1", Distance: "5.00 km"}}})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	st, err := client.Activities(context.Background(), api.ListRequest{Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Records) != 1 || st.Records[0].Distance != "5.00 km" {
		t.Errorf("records = %+v", st.Records)
	}
}

// TestHTTPBody verifies the body view is fetched and decoded.
func TestHTTPBody(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/views/body": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, views.BodyState{Loaded: true, WeightLabel: "kg", Charts: []views.Chart{{Cadence: "daily"}}})
		},
	})
	defer ts.Close()

	st, err := NewHTTPClient(ts.URL).Body(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.WeightLabel != "kg" || len(st.Charts) != 1 {
		t.Errorf("state = %+v", st)
	}
}

// TestHTTPNotLoaded verifies a view the server could not load is an error.
func TestHTTPNotLoaded(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/views/services": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, views.ServicesState{Loaded: false})
		},
	})
	defer ts.Close()

	if _, err := NewHTTPClient(ts.URL).Services(context.Background()); err == nil {
		t.Fatal("expected error for unloaded view")
	}
}

// TestHTTPClientServerError verifies the client returns an error on non-200 responses.
func TestHTTPClientServerError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/views/dashboard": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"context canceled"}`))
		},
	})
	defer ts.Close()

	if _, err := NewHTTPClient(ts.URL).Dashboard(context.Background()); err == nil {
		t.Fatal("expected error for 503 response")
	}
}
