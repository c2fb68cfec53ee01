package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/odyssey-erp/userdesk/internal/dashboard"
	"github.com/odyssey-erp/userdesk/internal/userapi"
)

// UsersAPI is what the users command reads from the Users service.
type UsersAPI interface {
	ListUsers(ctx context.Context) ([]userapi.User, error)
	ListActiveUsers(ctx context.Context) ([]userapi.User, error)
	SearchUsers(ctx context.Context, name string) ([]userapi.User, error)
	GetUserByUsername(ctx context.Context, username string) (userapi.User, error)
}

// UsersOptions defines available flags for the users command. At most one
// of ActiveOnly, Search and Username selects the query; none lists everyone.
type UsersOptions struct {
	ActiveOnly bool
	Search     string
	Username   string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// UsersCommand prints users as a table or JSON. Exit codes: 0 success,
// 1 request failure or bad flags, 4 username not found.
func UsersCommand(ctx context.Context, api UsersAPI, opts UsersOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	search := strings.TrimSpace(opts.Search)
	username := strings.TrimSpace(opts.Username)
	selected := 0
	for _, set := range []bool{opts.ActiveOnly, search != "", username != ""} {
		if set {
			selected++
		}
	}
	if selected > 1 {
		_, _ = fmt.Fprintln(opts.Stderr, "users: -active, -search and -username are mutually exclusive")
		return 1
	}

	var (
		users []userapi.User
		err   error
	)
	switch {
	case username != "":
		var u userapi.User
		u, err = api.GetUserByUsername(ctx, username)
		if errors.Is(err, userapi.ErrNotFound) {
			_, _ = fmt.Fprintf(opts.Stderr, "users: no user named %q\n", username)
			return 4
		}
		users = []userapi.User{u}
	case search != "":
		users, err = api.SearchUsers(ctx, search)
	case opts.ActiveOnly:
		users, err = api.ListActiveUsers(ctx)
	default:
		users, err = api.ListUsers(ctx)
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "users: %v\n", err)
		return 1
	}

	if opts.JSONOutput {
		if users == nil {
			users = []userapi.User{}
		}
		if err := json.NewEncoder(opts.Stdout).Encode(users); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "users: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	renderUsersHuman(opts.Stdout, dashboard.ListView(users))
	return 0
}

func renderUsersHuman(w io.Writer, list dashboard.ListModel) {
	if list.Empty {
		_, _ = fmt.Fprintln(w, list.Placeholder)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tEMAIL\tSTATUS\tCREATED")
	for _, row := range list.Rows {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", row.ID, row.Username, row.Name, row.Email, row.Status, row.Created)
	}
	_ = tw.Flush()
}
