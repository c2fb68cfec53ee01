// Package dashboard implements the user administration dashboard: the
// controller state machine, the list and form views, the per-session state
// store and the HTTP handler that drives them.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/userdesk/internal/userapi"
)

// User-facing messages.
const (
	MsgLoadFailed       = "Failed to load data. Please check if the backend is running."
	MsgDeleteFailed     = "Failed to delete user"
	MsgDeactivateFailed = "Failed to deactivate user"
	MsgSearchFailed     = "Search failed"
	MsgConflict         = "Username or email already exists"
	MsgSaveFailed       = "Failed to save user. Please try again."
	MsgSubmitInFlight   = "This form is already being saved."

	PromptDelete     = "Are you sure you want to delete this user?"
	PromptDeactivate = "Are you sure you want to deactivate this user?"
)

var (
	// ErrNotConfirmed is returned when the confirmation gate declines an action.
	ErrNotConfirmed = errors.New("dashboard: action not confirmed")
	// ErrStaleResponse is returned when a response lost the race to a newer one.
	ErrStaleResponse = errors.New("dashboard: stale response discarded")
	// ErrFormClosed is returned when submitting while no form is open.
	ErrFormClosed = errors.New("dashboard: form is not open")
)

// UsersAPI is the subset of the Users service the dashboard needs.
type UsersAPI interface {
	ListUsers(ctx context.Context) ([]userapi.User, error)
	SearchUsers(ctx context.Context, name string) ([]userapi.User, error)
	GetUser(ctx context.Context, id int64) (userapi.User, error)
	CreateUser(ctx context.Context, draft userapi.Draft) (userapi.User, error)
	UpdateUser(ctx context.Context, id int64, req userapi.UpdateRequest) (userapi.User, error)
	DeactivateUser(ctx context.Context, id int64) error
	DeleteUser(ctx context.Context, id int64) error
	GetAppInfo(ctx context.Context) (userapi.AppInfo, error)
}

// Confirm is a blocking yes/no gate consulted before destructive actions.
type Confirm func(prompt string) bool

// Option customises a Controller.
type Option func(*Controller)

// WithSequencer replaces the in-process ticket counter.
func WithSequencer(seq Sequencer) Option {
	return func(c *Controller) {
		if seq != nil {
			c.seq = seq
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller owns the dashboard state and mediates between user intents and
// the Users service. It is safe for concurrent use.
type Controller struct {
	api    UsersAPI
	seq    Sequencer
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	latestLoad uint64
}

// NewController returns a controller in the initial Loading/FormClosed state.
func NewController(api UsersAPI, opts ...Option) *Controller {
	return Restore(api, NewState(), opts...)
}

// Restore returns a controller resuming from a previously saved state.
func Restore(api UsersAPI, st State, opts ...Option) *Controller {
	c := &Controller{
		api:    api,
		logger: slog.Default(),
		state:  st.Clone(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.seq == nil {
		c.seq = NewCounterSequencer(st.Seq)
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Load runs the mount sequence: list users and app info concurrently, joined
// fail-fast. On failure previously loaded data is kept and the error is set.
func (c *Controller) Load(ctx context.Context) error {
	ticket, err := c.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("dashboard: next ticket: %w", err)
	}
	c.mu.Lock()
	c.state.Phase = PhaseLoading
	if ticket > c.latestLoad {
		c.latestLoad = ticket
	}
	c.mu.Unlock()

	var (
		users []userapi.User
		info  userapi.AppInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := c.api.ListUsers(gctx)
		if err != nil {
			return err
		}
		users = list
		return nil
	})
	g.Go(func() error {
		snapshot, err := c.api.GetAppInfo(gctx)
		if err != nil {
			return err
		}
		info = snapshot
		return nil
	})
	fetchErr := g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acceptLocked(ticket) {
		return ErrStaleResponse
	}
	if fetchErr != nil {
		c.state.Error = MsgLoadFailed
		return fmt.Errorf("dashboard: load: %w", fetchErr)
	}
	if users == nil {
		users = []userapi.User{}
	}
	c.state.Users = users
	c.state.AppInfo = &info
	c.state.Error = ""
	return nil
}

// Retry re-runs the mount sequence.
func (c *Controller) Retry(ctx context.Context) error {
	return c.Load(ctx)
}

// SetSearchTerm mirrors the search input without issuing a request.
func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SearchTerm = term
}

// Search replaces the listed users with the server's matches. A blank term
// behaves as ClearSearch and never reaches the network.
func (c *Controller) Search(ctx context.Context, term string) error {
	query := strings.TrimSpace(term)
	if query == "" {
		return c.ClearSearch(ctx)
	}
	c.SetSearchTerm(query)

	ticket, err := c.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("dashboard: next ticket: %w", err)
	}
	users, searchErr := c.api.SearchUsers(ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acceptLocked(ticket) {
		return ErrStaleResponse
	}
	if searchErr != nil {
		c.state.Error = MsgSearchFailed
		return fmt.Errorf("dashboard: search: %w", searchErr)
	}
	if users == nil {
		users = []userapi.User{}
	}
	c.state.Users = users
	return nil
}

// Mount is the page-load sequence: the search is reset and users and app
// info are fetched fresh. An open form keeps its draft.
func (c *Controller) Mount(ctx context.Context) error {
	c.SetSearchTerm("")
	return c.Load(ctx)
}

// ClearSearch resets the search term and reloads the full list.
func (c *Controller) ClearSearch(ctx context.Context) error {
	return c.Mount(ctx)
}

// OpenCreate opens an empty form.
func (c *Controller) OpenCreate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Form = &FormState{Draft: userapi.NewDraft()}
}

// OpenEdit opens the form on a value snapshot of user.
func (c *Controller) OpenEdit(user userapi.User) {
	target := user
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Form = &FormState{Target: &target, Draft: userapi.DraftFrom(user)}
}

// CancelForm closes the form and discards the draft.
func (c *Controller) CancelForm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Form = nil
}

// Form builds a form view bound to the open form's target and draft.
func (c *Controller) Form() (*Form, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Form == nil {
		return nil, ErrFormClosed
	}
	fs := c.state.Form.clone()
	f := NewForm(c.api, fs.Target)
	f.Bind(fs.Draft)
	return f, nil
}

// SubmitForm delegates to f. On success the form closes and the dashboard
// reloads; on failure the form stays open with the draft and message kept.
// Only submission failures are returned; a failed reload is reported through
// State.Error.
func (c *Controller) SubmitForm(ctx context.Context, f *Form) (userapi.User, error) {
	c.mu.Lock()
	open := c.state.Form != nil
	c.mu.Unlock()
	if !open {
		return userapi.User{}, ErrFormClosed
	}

	saved, err := f.Submit(ctx)
	if err != nil {
		c.mu.Lock()
		if c.state.Form != nil {
			c.state.Form.Draft = f.Draft()
			c.state.Form.Error = f.Error()
			c.state.Form.FieldErrors = f.FieldErrors()
		}
		c.mu.Unlock()
		return saved, err
	}

	c.CancelForm()
	c.reload(ctx)
	return saved, nil
}

// Delete removes a user after confirm approves, then reloads.
func (c *Controller) Delete(ctx context.Context, id int64, confirm Confirm) error {
	if confirm == nil || !confirm(PromptDelete) {
		return ErrNotConfirmed
	}
	if err := c.api.DeleteUser(ctx, id); err != nil {
		c.setError(MsgDeleteFailed)
		return fmt.Errorf("dashboard: delete user %d: %w", id, err)
	}
	c.reload(ctx)
	return nil
}

// Deactivate clears a user's active flag after confirm approves, then reloads.
func (c *Controller) Deactivate(ctx context.Context, id int64, confirm Confirm) error {
	if confirm == nil || !confirm(PromptDeactivate) {
		return ErrNotConfirmed
	}
	if err := c.api.DeactivateUser(ctx, id); err != nil {
		c.setError(MsgDeactivateFailed)
		return fmt.Errorf("dashboard: deactivate user %d: %w", id, err)
	}
	c.reload(ctx)
	return nil
}

func (c *Controller) reload(ctx context.Context) {
	if err := c.Load(ctx); err != nil && !errors.Is(err, ErrStaleResponse) {
		c.logger.Warn("dashboard reload failed", slog.Any("error", err))
	}
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Error = msg
}

// acceptLocked applies the ticket when it is newer than the last applied
// response. The phase turns Ready once no newer mount sequence is pending.
func (c *Controller) acceptLocked(ticket uint64) bool {
	if ticket <= c.state.Seq {
		return false
	}
	c.state.Seq = ticket
	if ticket >= c.latestLoad {
		c.state.Phase = PhaseReady
	}
	return true
}
