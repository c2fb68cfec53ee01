package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/userdesk/internal/userapi"
)

func TestListViewEmpty(t *testing.T) {
	for _, users := range [][]userapi.User{nil, {}} {
		model := ListView(users)
		assert.True(t, model.Empty)
		assert.Equal(t, EmptyListMessage, model.Placeholder)
		assert.Empty(t, model.Rows)
	}
}

func TestListViewRowsKeepOrderAndTriggers(t *testing.T) {
	created := time.Date(2024, time.March, 5, 14, 7, 0, 0, time.UTC)
	users := []userapi.User{
		{ID: 9, Username: "zed", FirstName: "Zed", LastName: "Last", Email: "zed@example.com", IsActive: true, CreatedAt: userapi.NewTimestamp(created)},
		{ID: 2, Username: "amy", FirstName: "Amy", Email: "amy@example.com", IsActive: false},
	}

	model := ListView(users)
	require.Len(t, model.Rows, 2)
	assert.False(t, model.Empty)

	first := model.Rows[0]
	assert.Equal(t, int64(9), first.ID)
	assert.Equal(t, "Zed Last", first.Name)
	assert.Equal(t, "Active", first.Status)
	assert.Equal(t, "Mar 5, 2024, 02:07 PM", first.Created)
	assert.Equal(t, "/users/9/edit", first.EditURL)
	assert.Equal(t, "/users/9/delete", first.DeleteURL)
	assert.True(t, first.CanDeactivate())
	assert.Equal(t, "/users/9/deactivate", first.DeactivateURL)

	second := model.Rows[1]
	assert.Equal(t, "Amy", second.Name)
	assert.Equal(t, "Inactive", second.Status)
	assert.Empty(t, second.Created)
	assert.False(t, second.CanDeactivate())
	assert.Equal(t, "/users/2/edit", second.EditURL)
}
