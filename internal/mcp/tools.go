package mcp

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/models"
	"github.com/claude/fitconsole/internal/units"
	"github.com/claude/fitconsole/internal/views"
)

// --- Tool definitions ---

var toolGetWeightChart = mcp.NewTool("get_weight_chart",
	mcp.WithDescription("Body-composition chart for one cadence. Returns one sample per interval, oldest first, with weight in the user's preferred unit or fat ratio in percent."),
	mcp.WithString("cadence", mcp.Description("Chart range. Defaults to 'weekly'."), mcp.Enum("daily", "weekly", "monthly")),
	mcp.WithString("series", mcp.Description("Which series to return. Defaults to 'weight'."), mcp.Enum("weight", "fat_ratio")),
)

var toolGetWeightKeyPoints = mcp.NewTool("get_weight_key_points",
	mcp.WithDescription("Weight at fixed lookbacks (today, one week ago, one month ago and so on), in the user's preferred unit."),
)

var toolGetActivities = mcp.NewTool("get_activities",
	mcp.WithDescription("Most recent activities with distance, elevation, duration and speed formatted in the user's preferred units."),
	mcp.WithNumber("limit", mcp.Description("Number of activities (1-200). Defaults to 10.")),
)

var toolGetServices = mcp.NewTool("get_services",
	mcp.WithDescription("Connection and sync state of each third-party service (strava, withings, fitbit, slack)."),
)

var toolConvertUnits = mcp.NewTool("convert_units",
	mcp.WithDescription("Format a raw value the way FitConsole displays it. Distance and elevation take meters, speed meters per second, weight kilograms, duration seconds."),
	mcp.WithString("kind", mcp.Required(), mcp.Description("Kind of value"), mcp.Enum("distance", "elevation", "speed", "weight", "duration")),
	mcp.WithNumber("value", mcp.Required(), mcp.Description("Raw value in base units")),
	mcp.WithString("units", mcp.Description("Unit system. Defaults to 'metric'."), mcp.Enum("metric", "imperial")),
)

// --- Tool handlers ---

// weightChart is the get_weight_chart result.
type weightChart struct {
	Cadence  string        `json:"cadence"`
	Interval string        `json:"interval"`
	Series   string        `json:"series"`
	Unit     string        `json:"unit"`
	Points   []views.Point `json:"points"`
}

func (h *handlers) getWeightChart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cadence := req.GetString("cadence", "weekly")
	series := req.GetString("series", "weight")
	if series != "weight" && series != "fat_ratio" {
		return mcp.NewToolResultError("series must be weight or fat_ratio"), nil
	}

	body, err := h.ds.Body(ctx)
	if err != nil {
		h.log.Error("mcp get_weight_chart", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	for _, c := range body.Charts {
		if c.Cadence != cadence {
			continue
		}
		out := weightChart{Cadence: c.Cadence, Interval: c.Interval, Series: series, Unit: body.WeightLabel, Points: c.Weight}
		if series == "fat_ratio" {
			out.Unit = "%"
			out.Points = c.FatRatio
		}
		result, err := mcp.NewToolResultJSON(out)
		if err != nil {
			return mcp.NewToolResultError("serialization failed"), nil
		}
		return result, nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("unknown cadence %q", cadence)), nil
}

func (h *handlers) getWeightKeyPoints(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body, err := h.ds.Body(ctx)
	if err != nil {
		h.log.Error("mcp get_weight_key_points", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"unit":       body.WeightLabel,
		"key_points": body.KeyPoints,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getActivities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", views.RecentActivities)
	if limit < 1 || limit > 200 {
		return mcp.NewToolResultError("limit must be between 1 and 200"), nil
	}

	st, err := h.ds.Activities(ctx, api.ListRequest{Limit: limit})
	if err != nil {
		h.log.Error("mcp get_activities", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(st.Records)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getServices(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.ds.Services(ctx)
	if err != nil {
		h.log.Error("mcp get_services", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(st.Services)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) convertUnits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError("kind parameter is required"), nil
	}
	value, err := req.RequireFloat("value")
	if err != nil {
		return mcp.NewToolResultError("value parameter is required"), nil
	}
	pref, ok := models.ParseUnitPreference(req.GetString("units", string(models.UnitsMetric)))
	if !ok {
		return mcp.NewToolResultError("units must be metric or imperial"), nil
	}

	text, err := convert(kind, value, pref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

// convert formats value of the given kind for display in pref.
func convert(kind string, value float64, pref models.UnitPreference) (string, error) {
	v := models.Some(value)
	switch kind {
	case "distance":
		s, _ := units.Distance(v, pref)
		return s, nil
	case "elevation":
		s, _ := units.Elevation(v, pref)
		return s, nil
	case "speed":
		s, _ := units.Speed(v, pref)
		return s, nil
	case "weight":
		w, _ := units.Weight(v, pref).Get()
		return strconv.FormatFloat(w, 'f', 1, 64) + " " + units.WeightLabel(pref), nil
	case "duration":
		s, _ := units.Duration(v)
		return s, nil
	}
	return "", fmt.Errorf("unknown kind %q", kind)
}
