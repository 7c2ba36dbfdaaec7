package tasklist

import (
	"errors"

	"github.com/RedDead11/Todo-App/domain"
)

var (
	// ErrBlankText is returned when add or edit-save is given whitespace-only
	// text. Nothing is sent to the remote store.
	ErrBlankText = errors.New("task text is empty")
	// ErrRowBusy is returned when the row's phase does not allow the operation,
	// e.g. editing a row that is being deleted.
	ErrRowBusy = errors.New("task is being deleted")
)

const (
	opLoad   = "load"
	opAdd    = "add"
	opUpdate = "update"
	opDelete = "delete"
)

var userMessages = map[string]string{
	opLoad:   "Failed to load todos",
	opAdd:    "Failed to add todo",
	opUpdate: "Failed to update todo",
	opDelete: "Failed to delete todo",
}

// RemoteError reports a failed remote call. Message is meant for the user.
type RemoteError struct {
	Op      string
	TaskID  domain.ID
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func newRemoteError(op string, id domain.ID, err error) *RemoteError {
	return &RemoteError{Op: op, TaskID: id, Message: userMessages[op], Err: err}
}
