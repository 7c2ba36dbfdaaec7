package domain

import (
	"strings"
	"time"
)

// Task is a single todo item as rendered by the UI.
type Task struct {
	ID   ID     `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Row is the remote representation of a task in the todos collection.
type Row struct {
	ID        ID        `json:"id"`
	UserID    *string   `json:"user_id"`
	Todo      string    `json:"todo"`
	IsDone    bool      `json:"is_done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRow is the insert payload. The server assigns id and timestamps.
type NewRow struct {
	UserID *string `json:"user_id"`
	Todo   string  `json:"todo"`
	IsDone bool    `json:"is_done"`
}

// RowPatch carries a partial update; nil fields are left untouched.
type RowPatch struct {
	Todo   *string `json:"todo,omitempty"`
	IsDone *bool   `json:"is_done,omitempty"`
}

// TextPatch builds a patch replacing the task text.
func TextPatch(text string) RowPatch {
	return RowPatch{Todo: &text}
}

// DonePatch builds a patch setting the completion flag.
func DonePatch(done bool) RowPatch {
	return RowPatch{IsDone: &done}
}

// Empty reports whether the patch changes nothing.
func (p RowPatch) Empty() bool {
	return p.Todo == nil && p.IsDone == nil
}

// IsBlank reports whether text is empty once surrounding whitespace is removed.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
