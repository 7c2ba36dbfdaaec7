package api

import (
	"context"

	"github.com/RedDead11/Todo-App/domain"
	"github.com/RedDead11/Todo-App/tasklist"
)

// TaskList is the list state the handlers drive.
type TaskList interface {
	Snapshot() []tasklist.Row
	Add(ctx context.Context, text string) (domain.Task, error)
	BeginEdit(id domain.ID) error
	EditSave(ctx context.Context, id domain.ID, text string) error
	ToggleDone(ctx context.Context, id domain.ID) error
	Delete(ctx context.Context, id domain.ID) error
}

// Deduper prevents the same add request from creating two todos.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, key string) (bool, error)
	// Remove deletes a previously added key, used when the add fails.
	Remove(ctx context.Context, key string) error
}

type textRequest struct {
	Text string `json:"text"`
}

type todosResponse struct {
	Todos []tasklist.Row `json:"todos"`
}

type todoResponse struct {
	Todo domain.Task `json:"todo"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type cueEvent struct {
	ID domain.ID `json:"id"`
}
