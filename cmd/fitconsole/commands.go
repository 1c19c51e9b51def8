package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/app"
	"github.com/claude/fitconsole/internal/identity"
	"github.com/claude/fitconsole/internal/mcp"
	"github.com/claude/fitconsole/internal/models"
	"github.com/claude/fitconsole/internal/push"
	"github.com/claude/fitconsole/internal/session"
	"github.com/claude/fitconsole/internal/views"
)

type loader interface {
	Load(ctx context.Context) error
	Close()
}

// show loads v, prints its state and fails when the backend data could not be
// fetched. The view has already logged why.
func show[S any](ctx context.Context, v loader, state func() S, loaded func(S) bool) error {
	defer v.Close()
	if err := v.Load(ctx); err != nil {
		return err
	}
	st := state()
	if err := printJSON(st); err != nil {
		return err
	}
	if !loaded(st) {
		return errors.New("some data could not be loaded")
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readPassword prompts on stderr and reads a password without echo when stdin
// is a terminal.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func oneArg(args []string, what string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("expected exactly one %s", what)
	}
	return args[0], nil
}

func runLogin(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("user", "", "account user name or email")
	password := fs.String("password", os.Getenv("FITCONSOLE_PASSWORD"), "account password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !a.Config.Identity.FakeUser {
		if *username == "" {
			return errors.New("-user is required")
		}
		if *password == "" {
			pw, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			*password = pw
		}
	}

	user, err := a.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	resp, err := a.Bridge.CreateSession(ctx, user)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("creating session: %s", resp.Status)
	}
	fmt.Printf("Signed in as %s (%s)\n", user.Email, user.UID)
	return nil
}

func runLogout(ctx context.Context, a *app.App, args []string) error {
	if _, err := a.Resume(ctx); err != nil && !errors.Is(err, api.ErrNotSignedIn) {
		a.Log.Warn("resuming session for logout failed", "error", err)
	}
	if err := a.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func runSession(ctx context.Context, a *app.App, args []string) error {
	action, err := oneArg(args, "action (create or close)")
	if err != nil {
		return err
	}
	var call func(context.Context, *identity.User) (*session.Response, error)
	switch action {
	case "create":
		call = a.Bridge.CreateSession
	case "close":
		call = a.Bridge.CloseSession
	default:
		return fmt.Errorf("unknown session action %q", action)
	}

	resp, err := call(ctx, a.Auth.CurrentUser())
	if err != nil {
		return err
	}
	fmt.Println(resp.Status)
	if !resp.OK() {
		return errors.New("backend rejected the session request")
	}
	return nil
}

func runProfile(ctx context.Context, a *app.App, args []string) error {
	p, err := a.API.GetProfile(ctx)
	if err != nil {
		return err
	}
	return printJSON(p)
}

func runDashboard(ctx context.Context, a *app.App, args []string) error {
	v := views.NewDashboard(a.API, a.Log)
	return show(ctx, v, v.State, func(st views.DashboardState) bool { return st.Loaded })
}

func runRecords(kind string) func(context.Context, *app.App, []string) error {
	return func(ctx context.Context, a *app.App, args []string) error {
		fs := flag.NewFlagSet(kind, flag.ContinueOnError)
		limit := fs.Int("limit", 0, "number of records (1-200, backend default when 0)")
		offset := fs.Int("offset", 0, "records to skip")
		if err := fs.Parse(args); err != nil {
			return err
		}

		req := api.ListRequest{Limit: *limit, Offset: *offset}
		var v *views.Records
		switch kind {
		case "activities":
			v = views.NewActivities(a.API, req, a.Log)
		case "routes":
			v = views.NewRoutes(a.API, req, a.Log)
		default:
			v = views.NewSegments(a.API, req, a.Log)
		}
		return show(ctx, v, v.State, func(st views.RecordsState) bool { return st.Loaded })
	}
}

func runCompare(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	segment := fs.String("segment", "", "segment ID")
	activity := fs.String("activity", "", "activity ID to compare around")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *segment == "" {
		return errors.New("-segment is required")
	}

	v := views.NewSegmentCompare(a.API, api.CompareRequest{SegmentID: *segment, ActivityID: *activity}, a.Log)
	return show(ctx, v, v.State, func(st views.SegmentCompareState) bool { return st.Loaded })
}

// weightOutput is the weight command's result: one chart plus the key points.
type weightOutput struct {
	Unit      string              `json:"unit"`
	Chart     *views.Chart        `json:"chart,omitempty"`
	KeyPoints []views.KeyPointRow `json:"key_points"`
}

func runWeight(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("weight", flag.ContinueOnError)
	cadence := fs.String("cadence", "weekly", "chart cadence: daily, weekly or monthly")
	if err := fs.Parse(args); err != nil {
		return err
	}

	v := views.NewBody(a.API, a.Log)
	defer v.Close()
	if err := v.Load(ctx); err != nil {
		return err
	}
	st := v.State()
	if !st.Loaded {
		return errors.New("body data could not be loaded")
	}

	out := weightOutput{Unit: st.WeightLabel, KeyPoints: st.KeyPoints}
	for i := range st.Charts {
		if st.Charts[i].Cadence == *cadence {
			out.Chart = &st.Charts[i]
		}
	}
	if out.Chart == nil {
		return fmt.Errorf("unknown cadence %q", *cadence)
	}
	return printJSON(out)
}

func runServices(ctx context.Context, a *app.App, args []string) error {
	v := views.NewServices(a.API, a.Log)
	return show(ctx, v, v.State, func(st views.ServicesState) bool { return st.Loaded })
}

func runConnect(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		return errors.New("expected a service name")
	}
	service := args[0]
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	username := fs.String("user", "", "service user name (garmin)")
	password := fs.String("password", "", "service password (garmin)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	if service == "garmin" {
		if *username == "" {
			return errors.New("garmin needs -user")
		}
		if *password == "" {
			pw, err := readPassword("Garmin password: ")
			if err != nil {
				return err
			}
			*password = pw
		}
		svc, err := a.API.ConnectUserPass(ctx, api.UserPassRequest{Service: service, Username: *username, Password: *password})
		if err != nil {
			return err
		}
		return printJSON(svc)
	}

	u, err := a.Bridge.Connect(ctx, a.Auth.CurrentUser(), service)
	if err != nil {
		return err
	}
	fmt.Println(u)
	return nil
}

func runDisconnect(ctx context.Context, a *app.App, args []string) error {
	service, err := oneArg(args, "service name")
	if err != nil {
		return err
	}
	if err := a.API.Disconnect(ctx, service); err != nil {
		return err
	}
	fmt.Printf("Disconnected %s\n", service)
	return nil
}

func runSync(ctx context.Context, a *app.App, args []string) error {
	service, err := oneArg(args, "service name")
	if err != nil {
		return err
	}

	v := views.NewServices(a.API, a.Log)
	defer v.Close()
	if err := v.Load(ctx); err != nil {
		return err
	}
	if err := v.Sync(ctx, service); err != nil {
		return err
	}
	st := v.State()
	if err := printJSON(st); err != nil {
		return err
	}
	for _, row := range st.Services {
		if row.Name == service && row.SyncError != "" {
			return fmt.Errorf("sync %s: %s", service, row.SyncError)
		}
	}
	return nil
}

func runUnits(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		p, err := a.API.GetProfile(ctx)
		if err != nil {
			return err
		}
		pref := p.Units()
		if pref == models.UnitsUnset {
			pref = models.UnitsMetric
		}
		fmt.Println(pref)
		return nil
	}

	arg, err := oneArg(args, "unit system")
	if err != nil {
		return err
	}
	pref, ok := models.ParseUnitPreference(arg)
	if !ok {
		return fmt.Errorf("units must be metric or imperial, got %q", arg)
	}
	prefs, err := a.API.UpdatePreferences(ctx, api.PreferencesRequest{Units: pref})
	if err != nil {
		return err
	}
	fmt.Println(prefs.Units)
	return nil
}

func runPush(ctx context.Context, a *app.App, args []string) error {
	action, err := oneArg(args, "action (enable or disable)")
	if err != nil {
		return err
	}
	if a.Config.Push.URL == "" {
		return errors.New("push.url is not configured")
	}
	deviceID, err := a.State.DeviceID()
	if err != nil {
		return err
	}

	m, err := push.DialMessaging(ctx, a.Config.Push.URL, deviceID, a.Log)
	if err != nil {
		return err
	}
	defer m.Close()
	reg := push.NewRegistrar(m, a.API, a.State, deviceID, a.Config.Push.Platform, a.Log)

	switch action {
	case "enable":
		tok, err := reg.Enable(ctx)
		if errors.Is(err, push.ErrPermissionDenied) {
			return errors.New("notification permission was denied")
		}
		if err != nil {
			return err
		}
		fmt.Printf("Push enabled for device %s (token %s)\n", deviceID, abbreviate(tok))
	case "disable":
		if err := reg.Disable(ctx); err != nil {
			return err
		}
		fmt.Printf("Push disabled for device %s\n", deviceID)
	default:
		return fmt.Errorf("unknown push action %q", action)
	}
	return nil
}

func abbreviate(tok string) string {
	if len(tok) <= 12 {
		return tok
	}
	return tok[:6] + "…" + tok[len(tok)-4:]
}

func runAdmin(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		return errors.New("expected an admin action")
	}
	action, rest := args[0], args[1:]

	v := views.NewAdmin(a.API, a.Auth.CurrentUser(), a.Log)
	defer v.Close()
	if err := v.Load(ctx); err != nil {
		return err
	}
	st := v.State()
	if !st.Admin {
		return views.ErrNotAdmin
	}

	switch action {
	case "users":
		return printJSON(st.Users)
	case "bot":
		return printJSON(st.Bot)
	case "clubs":
		if st.ClubsError != "" {
			return fmt.Errorf("clubs: %s", st.ClubsError)
		}
		return printJSON(st.Clubs)
	case "slack":
		return printJSON(st.Slack)
	case "sync-club", "track", "untrack":
		clubID, err := oneArg(rest, "club ID")
		if err != nil {
			return err
		}
		clubAction := views.ClubAction(strings.TrimSuffix(action, "-club"))
		if err := v.Club(ctx, clubID, clubAction); err != nil {
			return err
		}
		return printJSON(v.State().Clubs)
	case "sync-service", "disconnect":
		if len(rest) != 2 {
			return errors.New("expected a user ID and a service name")
		}
		req := api.AdminServiceRequest{UserID: rest[0], Service: rest[1]}
		if action == "disconnect" {
			if err := a.API.AdminDisconnect(ctx, req); err != nil {
				return err
			}
			fmt.Printf("Disconnected %s for %s\n", req.Service, req.UserID)
			return nil
		}
		svc, err := a.API.SyncAdminService(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(svc)
	}
	return fmt.Errorf("unknown admin action %q", action)
}

func runMCP(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	remote := fs.String("remote", "", "fitconsole-server URL; serve its views instead of calling the backend directly")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var ds mcp.DataSource
	if *remote != "" {
		ds = mcp.NewHTTPClient(*remote)
	} else {
		if _, err := a.Resume(ctx); err != nil {
			return err
		}
		ds = mcp.NewLocal(a.API, a.Log)
	}
	return mcp.ServeStdio(mcp.New(ds, Version, a.Log))
}
