package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/models"
	"github.com/claude/fitconsole/internal/views"
)

type fakeSource struct {
	body    *views.BodyState
	records *views.RecordsState
	req     api.ListRequest
	err     error
}

func (f *fakeSource) Dashboard(ctx context.Context) (*views.DashboardState, error) {
	return &views.DashboardState{Loaded: true, Name: "Ada", Units: models.UnitsMetric, Activities: []views.RecordRow{}}, f.err
}

func (f *fakeSource) Body(ctx context.Context) (*views.BodyState, error) {
	return f.body, f.err
}

func (f *fakeSource) Activities(ctx context.Context, req api.ListRequest) (*views.RecordsState, error) {
	f.req = req
	return f.records, f.err
}

func (f *fakeSource) Services(ctx context.Context) (*views.ServicesState, error) {
	return &views.ServicesState{Loaded: true, Services: []views.ServiceRow{{Name: "strava", Connected: true}}}, f.err
}

func testHandlers(ds DataSource) *handlers {
	return &handlers{ds: ds, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func callTool(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := fn(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T", res.Content[0])
	}
	return text.Text, res.IsError
}

func sampleBody() *views.BodyState {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return &views.BodyState{
		Loaded:      true,
		WeightLabel: "lb",
		Charts: []views.Chart{
			{Cadence: "weekly", Interval: "week", Weight: []views.Point{{Date: day, Value: 180.8}}, FatRatio: []views.Point{{Date: day, Value: 21.5}}},
		},
		KeyPoints: []views.KeyPointRow{{Label: "Today", Date: day, Weight: 180.8}},
	}
}

// TestGetWeightChart verifies the chart tool picks the cadence and series and reports the unit.
func TestGetWeightChart(t *testing.T) {
	h := testHandlers(&fakeSource{body: sampleBody()})

	text, isErr := callTool(t, h.getWeightChart, map[string]any{"series": "fat_ratio"})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var chart weightChart
	if err := json.Unmarshal([]byte(text), &chart); err != nil {
		t.Fatal(err)
	}
	if chart.Cadence != "weekly" || chart.Unit != "%" || len(chart.Points) != 1 || chart.Points[0].Value != 21.5 {
		t.Errorf("chart = %+v", chart)
	}

	if _, isErr := callTool(t, h.getWeightChart, map[string]any{"cadence": "hourly"}); !isErr {
		t.Error("unknown cadence should be a tool error")
	}
}

// TestGetWeightKeyPoints verifies key points are returned with the weight unit.
func TestGetWeightKeyPoints(t *testing.T) {
	h := testHandlers(&fakeSource{body: sampleBody()})

	text, isErr := callTool(t, h.getWeightKeyPoints, nil)
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var got struct {
		Unit      string              `json:"unit"`
		KeyPoints []views.KeyPointRow `json:"key_points"`
	}
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatal(err)
	}
	if got.Unit != "lb" || len(got.KeyPoints) != 1 || got.KeyPoints[0].Label != "Today" {
		t.Errorf("got = %+v", got)
	}
}

// TestGetActivitiesLimit verifies the default limit and the range check.
func TestGetActivitiesLimit(t *testing.T) {
	src := &fakeSource{records: &views.RecordsState{Loaded: true, Records: []views.RecordRow{{ID: "a1"}}}}
	h := testHandlers(src)

	if text, isErr := callTool(t, h.getActivities, nil); isErr {
		t.Fatalf("tool error: %s", text)
	}
	if src.req.Limit != views.RecentActivities {
		t.Errorf("limit = %d, want %d", src.req.Limit, views.RecentActivities)
	}

	if _, isErr := callTool(t, h.getActivities, map[string]any{"limit": float64(500)}); !isErr {
		t.Error("limit 500 should be a tool error")
	}
}

// TestToolReportsSourceError verifies data source failures become tool errors, not protocol errors.
func TestToolReportsSourceError(t *testing.T) {
	h := testHandlers(&fakeSource{err: errors.New("backend down")})

	text, isErr := callTool(t, h.getServices, nil)
	if !isErr {
		t.Fatalf("expected tool error, got %s", text)
	}
}

// TestConvertUnits verifies each kind is formatted as the views show it.
func TestConvertUnits(t *testing.T) {
	cases := []struct {
		kind  string
		value float64
		units string
		want  string
	}{
		{"distance", 16093.44, "imperial", "10.00 mi"},
		{"distance", 5000, "metric", "5.00 km"},
		{"elevation", 100, "imperial", "328.08 ft"},
		{"speed", 10, "metric", "36.00 km/h"},
		{"weight", 82, "metric", "82.0 kg"},
		{"duration", 3725, "metric", "01:02:05"},
	}
	h := testHandlers(&fakeSource{})
	for _, tc := range cases {
		got, isErr := callTool(t, h.convertUnits, map[string]any{"kind": tc.kind, "value": tc.value, "units": tc.units})
		if isErr || got != tc.want {
			t.Errorf("convert_units(%s, %v, %s) = %q (error %v), want %q", tc.kind, tc.value, tc.units, got, isErr, tc.want)
		}
	}

	if _, isErr := callTool(t, h.convertUnits, map[string]any{"kind": "distance", "value": 1.0, "units": "furlongs"}); !isErr {
		t.Error("unknown units should be a tool error")
	}
}

// TestNewRegistersTools verifies the server lists every tool.
func TestNewRegistersTools(t *testing.T) {
	s := New(&fakeSource{}, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	tools := s.ListTools()
	for _, name := range []string{"get_weight_chart", "get_weight_key_points", "get_activities", "get_services", "convert_units"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
}
