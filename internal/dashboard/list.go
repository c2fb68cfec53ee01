package dashboard

import (
	"strconv"
	"time"

	"github.com/odyssey-erp/userdesk/internal/userapi"
)

// EmptyListMessage is shown instead of an empty table.
const EmptyListMessage = "No users found"

const createdLayout = "Jan 2, 2006, 03:04 PM"

// Row is one rendered user with its action triggers. Each trigger carries
// the row's identity; the list itself never mutates anything.
type Row struct {
	ID            int64
	Username      string
	Name          string
	Email         string
	Active        bool
	Status        string
	Created       string
	EditURL       string
	DeactivateURL string
	DeleteURL     string
}

// CanDeactivate reports whether the deactivate trigger is shown.
func (r Row) CanDeactivate() bool {
	return r.DeactivateURL != ""
}

// ListModel is the rendered user table.
type ListModel struct {
	Rows        []Row
	Empty       bool
	Placeholder string
}

// ListView projects users, in received order, into table rows.
func ListView(users []userapi.User) ListModel {
	if len(users) == 0 {
		return ListModel{Empty: true, Placeholder: EmptyListMessage, Rows: []Row{}}
	}
	rows := make([]Row, 0, len(users))
	for _, u := range users {
		base := "/users/" + strconv.FormatInt(u.ID, 10)
		row := Row{
			ID:        u.ID,
			Username:  u.Username,
			Name:      u.FullName(),
			Email:     u.Email,
			Active:    u.IsActive,
			Status:    "Inactive",
			Created:   formatCreated(u.CreatedAt.Time),
			EditURL:   base + "/edit",
			DeleteURL: base + "/delete",
		}
		if u.IsActive {
			row.Status = "Active"
			row.DeactivateURL = base + "/deactivate"
		}
		rows = append(rows, row)
	}
	return ListModel{Rows: rows}
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(createdLayout)
}
