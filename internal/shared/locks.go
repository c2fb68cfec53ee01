package shared

import "fmt"

// DashboardStateKey builds the redis key holding a session's dashboard state.
func DashboardStateKey(sessionID string) string {
	return fmt.Sprintf("dashboard:%s:state", sessionID)
}

// DashboardSeqKey builds the redis key of a session's response sequence.
func DashboardSeqKey(sessionID string) string {
	return fmt.Sprintf("dashboard:%s:seq", sessionID)
}

// DashboardSubmitLockKey builds the redis key guarding form submissions.
func DashboardSubmitLockKey(sessionID string) string {
	return fmt.Sprintf("dashboard:%s:submit:lock", sessionID)
}
