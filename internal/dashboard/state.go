package dashboard

import (
	"github.com/odyssey-erp/userdesk/internal/userapi"
)

// Phase is the data-loading half of the dashboard state machine.
type Phase string

const (
	// PhaseLoading means a mount sequence is in flight; the UI shows only an indicator.
	PhaseLoading Phase = "loading"
	// PhaseReady means data (or an error) is available and the UI is interactive.
	PhaseReady Phase = "ready"
)

// State is the complete UI state owned by a Controller.
type State struct {
	Phase      Phase            `json:"phase"`
	Users      []userapi.User   `json:"users"`
	AppInfo    *userapi.AppInfo `json:"appInfo,omitempty"`
	Error      string           `json:"error,omitempty"`
	SearchTerm string           `json:"searchTerm,omitempty"`
	Form       *FormState       `json:"form,omitempty"`
	// Seq is the ticket of the last server response applied to this state.
	Seq uint64 `json:"seq"`
}

// FormState describes an open form. Target is a value snapshot of the user
// being edited, nil when creating.
type FormState struct {
	Target      *userapi.User     `json:"target,omitempty"`
	Draft       userapi.Draft     `json:"draft"`
	Error       string            `json:"error,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// NewState returns the initial state: loading with the form closed.
func NewState() State {
	return State{Phase: PhaseLoading, Users: []userapi.User{}}
}

// Loading reports whether the mount sequence is pending.
func (s State) Loading() bool {
	return s.Phase == PhaseLoading
}

// FormOpen reports whether the create/edit form is shown.
func (s State) FormOpen() bool {
	return s.Form != nil
}

// FindUser returns the listed user with id.
func (s State) FindUser(id int64) (userapi.User, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return userapi.User{}, false
}

// Clone returns a deep copy sharing no mutable memory with s.
func (s State) Clone() State {
	out := s
	out.Users = append([]userapi.User(nil), s.Users...)
	if out.Users == nil {
		out.Users = []userapi.User{}
	}
	if s.AppInfo != nil {
		info := *s.AppInfo
		out.AppInfo = &info
	}
	if s.Form != nil {
		form := s.Form.clone()
		out.Form = &form
	}
	return out
}

func (f FormState) clone() FormState {
	out := f
	if f.Target != nil {
		target := *f.Target
		out.Target = &target
	}
	out.Draft = f.Draft.Clone()
	if f.FieldErrors != nil {
		out.FieldErrors = make(map[string]string, len(f.FieldErrors))
		for k, v := range f.FieldErrors {
			out.FieldErrors[k] = v
		}
	}
	return out
}
