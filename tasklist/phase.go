package tasklist

import (
	"fmt"
	"hash/fnv"

	"github.com/RedDead11/Todo-App/domain"
)

// Phase is the transient UI state of a row. It is never persisted.
//
//	Entering -> Idle <-> Editing
//	Idle/Editing -> Deleting -> Removed (or back to Idle on failure)
type Phase int

const (
	PhaseEntering Phase = iota
	PhaseIdle
	PhaseEditing
	PhaseDeleting
	PhaseRemoved
)

var phaseNames = [...]string{
	PhaseEntering: "entering",
	PhaseIdle:     "idle",
	PhaseEditing:  "editing",
	PhaseDeleting: "deleting",
	PhaseRemoved:  "removed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText renders the phase by name in JSON and templates.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// active reports whether the row accepts edit, toggle and delete.
func (p Phase) active() bool {
	return p == PhaseEntering || p == PhaseIdle || p == PhaseEditing
}

// Row is a task as rendered, with its UI phase and entry animation variant.
type Row struct {
	domain.Task
	Phase   Phase  `json:"phase"`
	Variant string `json:"variant"`
}

// Editing and Deleting mirror the per-row flags the view toggles classes on.
func (r Row) Editing() bool  { return r.Phase == PhaseEditing }
func (r Row) Deleting() bool { return r.Phase == PhaseDeleting }
func (r Row) Entering() bool { return r.Phase == PhaseEntering }

// enterVariant alternates the entry animation by id parity.
func enterVariant(id domain.ID) string {
	if n, ok := id.Numeric(); ok {
		if n%2 == 0 {
			return "even"
		}
		return "odd"
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	if h.Sum32()%2 == 0 {
		return "even"
	}
	return "odd"
}
