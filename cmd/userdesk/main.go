package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/userdesk/cmd/userdesk/cli"
	"github.com/odyssey-erp/userdesk/internal/app"
	"github.com/odyssey-erp/userdesk/internal/userapi"
)

var commands = map[string]func(ctx context.Context, args []string) int{
	"serve":  runServe,
	"status": runStatus,
	"users":  runUsers,
}

func usage() {
	fmt.Fprint(os.Stderr, `userdesk - user administration dashboard

Usage:
  userdesk [command] [options]

Commands:
  serve    Run the dashboard web server (default)
  status   Report Users service health, app info and active user count
  users    List users (-active, -search <name>, -username <name>)

Run 'userdesk <command> -h' for command-specific help.
`)
}

func main() {
	name := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}
	if name == "-h" || name == "--help" || name == "help" {
		usage()
		return
	}
	run, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "userdesk: unknown command %q\n", name)
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, args)
	stop()
	os.Exit(code)
}

func newCLIClient() (*userapi.Client, error) {
	cfg, err := app.LoadClientConfig()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg.LogFormat, os.Stderr)
	return userapi.NewClient(cfg.UsersAPIURL, userapi.WithLogger(logger)), nil
}

func runStatus(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	client, err := newCLIClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: load config: %v\n", err)
		return 1
	}
	return cli.StatusCommand(ctx, client, client.BaseURL(), cli.StatusOptions{JSONOutput: *jsonOut})
}

func runUsers(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("users", flag.ContinueOnError)
	active := fs.Bool("active", false, "only active users")
	search := fs.String("search", "", "search first and last names")
	username := fs.String("username", "", "look up one user by username")
	jsonOut := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	client, err := newCLIClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "users: load config: %v\n", err)
		return 1
	}
	return cli.UsersCommand(ctx, client, cli.UsersOptions{
		ActiveOnly: *active,
		Search:     *search,
		Username:   *username,
		JSONOutput: *jsonOut,
	})
}
