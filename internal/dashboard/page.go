package dashboard

import "github.com/odyssey-erp/userdesk/internal/userapi"

// Page is the render model of the dashboard page.
type Page struct {
	Loading    bool
	AppInfo    *userapi.AppInfo
	Error      string
	ShowRetry  bool
	SearchTerm string
	ShowClear  bool
	List       ListModel
	Form       *FormModel
}

// NewPage derives the page model from a state snapshot. busy renders the form
// as it looks while a save is in flight.
func NewPage(st State, busy bool) Page {
	p := Page{
		Loading:    st.Loading(),
		AppInfo:    st.AppInfo,
		Error:      st.Error,
		ShowRetry:  st.Error != "",
		SearchTerm: st.SearchTerm,
		ShowClear:  st.SearchTerm != "",
		List:       ListView(st.Users),
	}
	if st.Form != nil {
		model := st.Form.Model(busy)
		p.Form = &model
	}
	return p
}

// ConfirmPage is the render model of the delete/deactivate confirmation gate.
type ConfirmPage struct {
	Prompt string
	Action string
	Verb   string
	User   userapi.User
}
