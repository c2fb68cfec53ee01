// Package cli implements the operator subcommands of userdesk.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/userdesk/internal/userapi"
)

// StatusAPI is what the status command asks the Users service.
type StatusAPI interface {
	HealthCheck(ctx context.Context) (userapi.Health, error)
	GetAppInfo(ctx context.Context) (userapi.AppInfo, error)
	CountActiveUsers(ctx context.Context) (int64, error)
}

// StatusOptions defines available flags for the status command.
type StatusOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// StatusSummary is the JSON document printed by status -json.
type StatusSummary struct {
	OK          bool   `json:"ok"`
	BaseURL     string `json:"base_url,omitempty"`
	Service     string `json:"service"`
	Health      string `json:"health"`
	Application string `json:"application"`
	Version     string `json:"version"`
	Status      string `json:"status"`
	TotalUsers  int64  `json:"total_users"`
	ActiveUsers int64  `json:"active_users"`
	CheckedAt   string `json:"checked_at"`
}

// StatusCommand queries health, app info and the active count concurrently.
// Exit codes: 0 healthy, 1 unreachable or failing, 10 reachable but not UP.
func StatusCommand(ctx context.Context, api StatusAPI, baseURL string, opts StatusOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	var (
		health userapi.Health
		info   userapi.AppInfo
		active int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		health, err = api.HealthCheck(gctx)
		return err
	})
	g.Go(func() (err error) {
		info, err = api.GetAppInfo(gctx)
		return err
	})
	g.Go(func() (err error) {
		active, err = api.CountActiveUsers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "status: %v\n", err)
		return 1
	}

	summary := StatusSummary{
		OK:          health.Status == "UP",
		BaseURL:     baseURL,
		Service:     health.Service,
		Health:      health.Status,
		Application: info.Application,
		Version:     info.Version,
		Status:      info.Status,
		TotalUsers:  info.TotalUsers,
		ActiveUsers: active,
		CheckedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "status: encode json: %v\n", err)
			return 1
		}
	} else {
		renderStatusHuman(opts.Stdout, summary)
	}
	if !summary.OK {
		return 10
	}
	return 0
}

func renderStatusHuman(w io.Writer, s StatusSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if s.BaseURL != "" {
		_, _ = fmt.Fprintf(tw, "Endpoint:\t%s\n", s.BaseURL)
	}
	_, _ = fmt.Fprintf(tw, "Service:\t%s (%s)\n", s.Service, s.Health)
	_, _ = fmt.Fprintf(tw, "Application:\t%s v%s\n", s.Application, s.Version)
	_, _ = fmt.Fprintf(tw, "Status:\t%s\n", s.Status)
	_, _ = fmt.Fprintf(tw, "Total Users:\t%d\n", s.TotalUsers)
	_, _ = fmt.Fprintf(tw, "Active Users:\t%d\n", s.ActiveUsers)
	_ = tw.Flush()
}
