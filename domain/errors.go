package domain

import "errors"

// ErrTaskNotFound indicates that no task with the requested id exists,
// locally or in the remote collection.
var ErrTaskNotFound = errors.New("task not found")
