package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/app"
	"github.com/claude/fitconsole/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// command is one subcommand. Commands marked signedIn resume the stored
// session before running.
type command struct {
	usage    string
	signedIn bool
	run      func(ctx context.Context, a *app.App, args []string) error
}

var commands = map[string]command{
	"login":      {usage: "login -user <name> [-password <pw>]", run: runLogin},
	"logout":     {usage: "logout", run: runLogout},
	"session":    {usage: "session create|close", signedIn: true, run: runSession},
	"profile":    {usage: "profile", signedIn: true, run: runProfile},
	"dashboard":  {usage: "dashboard", signedIn: true, run: runDashboard},
	"activities": {usage: "activities [-limit N] [-offset N]", signedIn: true, run: runRecords("activities")},
	"routes":     {usage: "routes [-limit N] [-offset N]", signedIn: true, run: runRecords("routes")},
	"segments":   {usage: "segments [-limit N] [-offset N]", signedIn: true, run: runRecords("segments")},
	"compare":    {usage: "compare -segment <id> [-activity <id>]", signedIn: true, run: runCompare},
	"weight":     {usage: "weight [-cadence daily|weekly|monthly]", signedIn: true, run: runWeight},
	"services":   {usage: "services", signedIn: true, run: runServices},
	"connect":    {usage: "connect <service> [-user <name> -password <pw>]", signedIn: true, run: runConnect},
	"disconnect": {usage: "disconnect <service>", signedIn: true, run: runDisconnect},
	"sync":       {usage: "sync <service>", signedIn: true, run: runSync},
	"units":      {usage: "units [metric|imperial]", signedIn: true, run: runUnits},
	"push":       {usage: "push enable|disable", signedIn: true, run: runPush},
	"admin":      {usage: "admin users|bot|clubs|slack|sync-club <id>|track <id>|untrack <id>|sync-service <user> <service>|disconnect <user> <service>", signedIn: true, run: runAdmin},
	"mcp":        {usage: "mcp [-remote <server URL>]", run: runMCP},
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	version := flag.Bool("version", false, "print version and exit")
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Println("fitconsole", Version)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// stdout carries command output (and the MCP protocol), so logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, cmd, args[1:]); err != nil {
		if errors.Is(err, api.ErrNotSignedIn) {
			fmt.Fprintln(os.Stderr, "Error: not signed in; run `fitconsole login` first")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, cmd command, args []string) error {
	a, err := app.Open(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.signedIn {
		if _, err := a.Resume(ctx); err != nil {
			return err
		}
	}
	return cmd.run(ctx, a, args)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: fitconsole [-config <file>] <command> [args]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}
