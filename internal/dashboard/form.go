package dashboard

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/userdesk/internal/userapi"
)

var (
	// ErrSubmitInFlight is returned when a form already has a submission pending.
	ErrSubmitInFlight = errors.New("dashboard: submission already in flight")
	// ErrInvalidDraft is returned when client-side validation blocks a submit.
	ErrInvalidDraft = errors.New("dashboard: draft failed validation")
)

var fieldLabels = map[string]string{
	"username":  "Username",
	"email":     "Email",
	"firstName": "First name",
	"lastName":  "Last name",
}

var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FormAPI is the part of the Users service a form submits to.
type FormAPI interface {
	CreateUser(ctx context.Context, draft userapi.Draft) (userapi.User, error)
	UpdateUser(ctx context.Context, id int64, req userapi.UpdateRequest) (userapi.User, error)
}

// Form is a draft bound to the create/edit inputs. Only one submission may be
// in flight per Form.
type Form struct {
	api    FormAPI
	target *userapi.User

	busy atomic.Bool

	mu     sync.Mutex
	draft  userapi.Draft
	errMsg string
	fields map[string]string
}

// NewForm returns a form creating a user when target is nil and updating
// target otherwise. The draft starts from target or from the defaults.
func NewForm(api FormAPI, target *userapi.User) *Form {
	f := &Form{api: api, draft: userapi.NewDraft()}
	if target != nil {
		snapshot := *target
		f.target = &snapshot
		f.draft = userapi.DraftFrom(snapshot)
	}
	return f
}

// Editing reports whether the form updates an existing user.
func (f *Form) Editing() bool {
	return f.target != nil
}

// Busy reports whether a submission is in flight.
func (f *Form) Busy() bool {
	return f.busy.Load()
}

// Bind replaces the draft with input values. Inputs are disabled while a
// submission is in flight, so Bind reports false and changes nothing then.
func (f *Form) Bind(d userapi.Draft) bool {
	if f.Busy() {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = d.Clone()
	if f.draft.IsActive == nil {
		active := true
		f.draft.IsActive = &active
	}
	return true
}

// Draft returns a copy of the current draft.
func (f *Form) Draft() userapi.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.Clone()
}

// Error returns the form-level message of the last failed submit.
func (f *Form) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

// FieldErrors returns per-field messages of the last validation failure.
func (f *Form) FieldErrors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fields == nil {
		return nil
	}
	out := make(map[string]string, len(f.fields))
	for k, v := range f.fields {
		out[k] = v
	}
	return out
}

// Validate runs the client-side guard and returns messages keyed by field.
func (f *Form) Validate() map[string]string {
	return ValidateDraft(f.Draft())
}

// Submit validates the draft and sends it to the service: create when there
// is no target, update of the target otherwise.
func (f *Form) Submit(ctx context.Context) (userapi.User, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return userapi.User{}, ErrSubmitInFlight
	}
	defer f.busy.Store(false)

	draft := f.Draft()
	if fields := ValidateDraft(draft); len(fields) > 0 {
		f.setResult("", fields)
		return userapi.User{}, ErrInvalidDraft
	}
	f.setResult("", nil)

	var (
		saved userapi.User
		err   error
	)
	if f.target == nil {
		saved, err = f.api.CreateUser(ctx, draft)
	} else {
		saved, err = f.api.UpdateUser(ctx, f.target.ID, userapi.UpdateRequest{ID: f.target.ID, Draft: draft})
	}
	if err != nil {
		if errors.Is(err, userapi.ErrConflict) {
			f.setResult(MsgConflict, nil)
		} else {
			f.setResult(MsgSaveFailed, nil)
		}
		return userapi.User{}, fmt.Errorf("dashboard: save user: %w", err)
	}
	return saved, nil
}

func (f *Form) setResult(msg string, fields map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errMsg = msg
	f.fields = fields
}

// Model returns the render model of the form.
func (f *Form) Model() FormModel {
	f.mu.Lock()
	fs := FormState{Target: f.target, Draft: f.draft.Clone(), Error: f.errMsg, FieldErrors: f.fields}
	f.mu.Unlock()
	return fs.Model(f.Busy())
}

// ValidateDraft checks the length and format constraints enforced before
// submitting. The service remains the authority.
func ValidateDraft(d userapi.Draft) map[string]string {
	err := draftValidator.Struct(d)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return map[string]string{"general": err.Error()}
	}
	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return label + " must be at least " + fe.Param() + " characters"
	case "max":
		return label + " must be at most " + fe.Param() + " characters"
	case "email":
		return label + " must be a valid email address"
	}
	return label + " is invalid"
}

// FormModel is what the form template renders.
type FormModel struct {
	Title       string
	SubmitLabel string
	Action      string
	Editing     bool
	Disabled    bool
	Draft       userapi.Draft
	Active      bool
	Error       string
	FieldErrors map[string]string
}

// Model converts the stored form state into a render model.
func (fs FormState) Model(busy bool) FormModel {
	m := FormModel{
		Title:       "Create New User",
		SubmitLabel: "Create User",
		Action:      "/users",
		Draft:       fs.Draft,
		Active:      fs.Draft.Active(),
		Disabled:    busy,
		Error:       fs.Error,
		FieldErrors: fs.FieldErrors,
	}
	if fs.Target != nil {
		m.Editing = true
		m.Title = "Edit User"
		m.SubmitLabel = "Update User"
		m.Action = "/users/" + strconv.FormatInt(fs.Target.ID, 10)
	}
	if busy {
		m.SubmitLabel = "Saving..."
	}
	if m.FieldErrors == nil {
		m.FieldErrors = map[string]string{}
	}
	return m
}
