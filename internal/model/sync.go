package model

import "fmt"

// SyncError records one isolated failure inside a batch operation. Scope
// names the stage ("course", "assignment", "submission", "task", ...), ID
// the remote or local key and Name the human-readable item name.
type SyncError struct {
	Scope   string `json:"scope"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

func (e SyncError) Error() string {
	label := e.Name
	if label == "" {
		label = e.ID
	}
	if label == "" {
		return fmt.Sprintf("%s: %s", e.Scope, e.Message)
	}
	return fmt.Sprintf("%s %q: %s", e.Scope, label, e.Message)
}

// NewSyncError builds a SyncError from err.
func NewSyncError(scope, id, name string, err error) SyncError {
	return SyncError{Scope: scope, ID: id, Name: name, Message: err.Error()}
}
