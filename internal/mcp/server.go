package mcp

import (
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("FitConsole", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("FitConsole fitness data. Query body-composition charts, recent activities and connected services for the signed-in user, and convert values between metric and imperial units."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetWeightChart, Handler: h.getWeightChart},
		server.ServerTool{Tool: toolGetWeightKeyPoints, Handler: h.getWeightKeyPoints},
		server.ServerTool{Tool: toolGetActivities, Handler: h.getActivities},
		server.ServerTool{Tool: toolGetServices, Handler: h.getServices},
		server.ServerTool{Tool: toolConvertUnits, Handler: h.convertUnits},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resProfile, Handler: h.profile},
	)

	return s
}

// HTTPHandler serves s over the streamable HTTP transport.
func HTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

// ServeStdio serves s on stdin/stdout until stdin closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resProfile = mcp.NewResource(
	"fitconsole://profile",
	"Profile",
	mcp.WithResourceDescription("The signed-in user's name, unit preference and most recent activities"),
	mcp.WithMIMEType("application/json"),
)
