package tasklist

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/RedDead11/Todo-App/domain"
)

const (
	defaultEnterDuration = 400 * time.Millisecond
	defaultDeleteDelay   = 300 * time.Millisecond
)

// Store is the remote collection of task rows.
type Store interface {
	ListAll(ctx context.Context) ([]domain.Row, error)
	Insert(ctx context.Context, row domain.NewRow) (domain.Row, error)
	Update(ctx context.Context, id domain.ID, patch domain.RowPatch) error
	Delete(ctx context.Context, id domain.ID) error
}

// EventKind names a notification published to observers.
type EventKind string

const (
	// EventChanged follows every local mutation of the list.
	EventChanged EventKind = "changed"
	// EventDeleteCue is published when a row starts its exit animation.
	EventDeleteCue EventKind = "cue"
)

// Event is delivered to observers after the list lock is released.
type Event struct {
	Kind   EventKind
	TaskID domain.ID
}

type item struct {
	task  domain.Task
	phase Phase
	enter *time.Timer
}

// List is the in-memory ordered task list. Mutations are confirmed by the
// remote store before they are applied locally; the lock is never held
// across a remote call.
type List struct {
	store       Store
	logger      *log.Logger
	enterFor    time.Duration
	deleteDelay time.Duration
	wait        func(time.Duration)
	observers   []func(Event)

	mu     sync.Mutex
	items  []*item
	closed bool
}

// Option configures a List.
type Option func(*List)

// WithEnterDuration sets how long new rows stay in PhaseEntering. Zero or
// negative skips the phase.
func WithEnterDuration(d time.Duration) Option {
	return func(l *List) { l.enterFor = d }
}

// WithDeleteDelay sets the pause between entering PhaseDeleting and the
// remote delete.
func WithDeleteDelay(d time.Duration) Option {
	return func(l *List) {
		if d < 0 {
			d = 0
		}
		l.deleteDelay = d
	}
}

// WithObserver registers fn for list events. Observers must not block.
func WithObserver(fn func(Event)) Option {
	return func(l *List) {
		if fn != nil {
			l.observers = append(l.observers, fn)
		}
	}
}

// New creates an empty list backed by store.
func New(store Store, logger *log.Logger, opts ...Option) *List {
	if store == nil {
		panic("tasklist.New: store is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	l := &List{
		store:       store,
		logger:      logger,
		enterFor:    defaultEnterDuration,
		deleteDelay: defaultDeleteDelay,
		wait:        time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the list with the remote rows. A failure is logged and
// leaves the list empty.
func (l *List) Load(ctx context.Context) {
	rows, err := l.store.ListAll(context.WithoutCancel(ctx))
	var tasks []domain.Task
	if err != nil {
		l.logFailure(newRemoteError(opLoad, "", err))
	} else {
		tasks = domain.Partition(domain.TasksFromRows(rows))
	}

	l.mu.Lock()
	l.stopTimersLocked()
	l.items = make([]*item, 0, len(tasks))
	for _, t := range tasks {
		it := &item{task: t}
		l.startEnteringLocked(it)
		l.items = append(l.items, it)
	}
	l.mu.Unlock()

	l.emit(Event{Kind: EventChanged})
}

// Add inserts a new open task and prepends it once the store has assigned
// its id.
func (l *List) Add(ctx context.Context, text string) (domain.Task, error) {
	if domain.IsBlank(text) {
		return domain.Task{}, ErrBlankText
	}
	row, err := l.store.Insert(context.WithoutCancel(ctx), domain.RowFromTask(domain.Task{Text: text}))
	if err != nil {
		return domain.Task{}, l.logFailure(newRemoteError(opAdd, "", err))
	}
	task := domain.TaskFromRow(row)

	l.mu.Lock()
	if i := l.indexLocked(task.ID); i >= 0 {
		l.logger.WithFields(log.Fields{
			"task_id":  task.ID,
			"replaced": l.items[i].task.Text,
		}).Warn("store returned an id already in the list")
		l.removeLocked(i)
	}
	it := &item{task: task}
	l.startEnteringLocked(it)
	l.items = append([]*item{it}, l.items...)
	l.partitionLocked()
	l.mu.Unlock()

	l.emit(Event{Kind: EventChanged, TaskID: task.ID})
	return task, nil
}

// BeginEdit moves a row into PhaseEditing.
func (l *List) BeginEdit(id domain.ID) error {
	l.mu.Lock()
	it, err := l.activeLocked(id)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	stopTimer(it)
	it.phase = PhaseEditing
	l.mu.Unlock()

	l.emit(Event{Kind: EventChanged, TaskID: id})
	return nil
}

// EditSave leaves PhaseEditing and, unless newText is blank, replaces the
// task text once the store accepts it. The row keeps its position.
func (l *List) EditSave(ctx context.Context, id domain.ID, newText string) error {
	l.mu.Lock()
	it, err := l.activeLocked(id)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	exited := it.phase == PhaseEditing
	if exited {
		it.phase = PhaseIdle
	}
	l.mu.Unlock()

	if exited {
		l.emit(Event{Kind: EventChanged, TaskID: id})
	}
	if domain.IsBlank(newText) {
		return ErrBlankText
	}

	if err := l.store.Update(context.WithoutCancel(ctx), id, domain.TextPatch(newText)); err != nil {
		return l.logFailure(newRemoteError(opUpdate, id, err))
	}

	l.mu.Lock()
	if i := l.indexLocked(id); i >= 0 {
		l.items[i].task.Text = newText
	}
	l.mu.Unlock()

	l.emit(Event{Kind: EventChanged, TaskID: id})
	return nil
}

// ToggleDone flips the completion flag remotely, then locally, and moves
// completed tasks behind open ones.
func (l *List) ToggleDone(ctx context.Context, id domain.ID) error {
	l.mu.Lock()
	it, err := l.activeLocked(id)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	next := !it.task.Done
	l.mu.Unlock()

	if err := l.store.Update(context.WithoutCancel(ctx), id, domain.DonePatch(next)); err != nil {
		return l.logFailure(newRemoteError(opUpdate, id, err))
	}

	l.mu.Lock()
	if i := l.indexLocked(id); i >= 0 {
		l.items[i].task.Done = next
		l.partitionLocked()
	}
	l.mu.Unlock()

	l.emit(Event{Kind: EventChanged, TaskID: id})
	return nil
}

// Delete starts the exit phase, waits the delete delay and then removes the
// task remotely. On failure the row returns to PhaseIdle.
func (l *List) Delete(ctx context.Context, id domain.ID) error {
	l.mu.Lock()
	it, err := l.activeLocked(id)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	stopTimer(it)
	it.phase = PhaseDeleting
	l.mu.Unlock()

	l.emit(Event{Kind: EventDeleteCue, TaskID: id})
	l.emit(Event{Kind: EventChanged, TaskID: id})

	if l.deleteDelay > 0 {
		l.wait(l.deleteDelay)
	}

	err = l.store.Delete(context.WithoutCancel(ctx), id)
	if err != nil && errors.Is(err, domain.ErrTaskNotFound) {
		l.logger.WithError(err).WithField("task_id", id).Warn("todo already deleted remotely")
		err = nil
	}
	if err != nil {
		l.mu.Lock()
		if it.phase == PhaseDeleting {
			it.phase = PhaseIdle
		}
		l.mu.Unlock()
		l.emit(Event{Kind: EventChanged, TaskID: id})
		return l.logFailure(newRemoteError(opDelete, id, err))
	}

	l.mu.Lock()
	it.phase = PhaseRemoved
	for i, cur := range l.items {
		if cur == it {
			l.removeLocked(i)
			break
		}
	}
	l.mu.Unlock()

	l.emit(Event{Kind: EventChanged, TaskID: id})
	return nil
}

// Snapshot returns the rows in render order.
func (l *List) Snapshot() []Row {
	l.mu.Lock()
	defer l.mu.Unlock()
	rows := make([]Row, 0, len(l.items))
	for _, it := range l.items {
		rows = append(rows, Row{Task: it.task, Phase: it.phase, Variant: enterVariant(it.task.ID)})
	}
	return rows
}

// Tasks returns the tasks in render order without UI state.
func (l *List) Tasks() []domain.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := make([]domain.Task, 0, len(l.items))
	for _, it := range l.items {
		tasks = append(tasks, it.task)
	}
	return tasks
}

// Close stops pending entry timers. The list stays readable.
func (l *List) Close() {
	l.mu.Lock()
	l.closed = true
	l.stopTimersLocked()
	l.mu.Unlock()
}

func (l *List) activeLocked(id domain.ID) (*item, error) {
	i := l.indexLocked(id)
	if i < 0 {
		return nil, domain.ErrTaskNotFound
	}
	it := l.items[i]
	if !it.phase.active() {
		return nil, ErrRowBusy
	}
	return it, nil
}

func (l *List) indexLocked(id domain.ID) int {
	for i, it := range l.items {
		if it.task.ID == id {
			return i
		}
	}
	return -1
}

func (l *List) removeLocked(i int) {
	stopTimer(l.items[i])
	l.items = append(l.items[:i:i], l.items[i+1:]...)
}

func (l *List) partitionLocked() {
	l.items = domain.PartitionBy(l.items, func(it *item) bool { return it.task.Done })
}

func (l *List) startEnteringLocked(it *item) {
	if l.enterFor <= 0 || l.closed {
		it.phase = PhaseIdle
		return
	}
	it.phase = PhaseEntering
	it.enter = time.AfterFunc(l.enterFor, func() { l.settle(it) })
}

// settle ends the entry phase of it if nothing else moved it on.
func (l *List) settle(it *item) {
	l.mu.Lock()
	if it.phase != PhaseEntering {
		l.mu.Unlock()
		return
	}
	it.phase = PhaseIdle
	it.enter = nil
	id := it.task.ID
	l.mu.Unlock()

	l.emit(Event{Kind: EventChanged, TaskID: id})
}

func (l *List) stopTimersLocked() {
	for _, it := range l.items {
		stopTimer(it)
	}
}

func stopTimer(it *item) {
	if it.enter != nil {
		it.enter.Stop()
		it.enter = nil
	}
	if it.phase == PhaseEntering {
		it.phase = PhaseIdle
	}
}

func (l *List) emit(ev Event) {
	for _, fn := range l.observers {
		fn(ev)
	}
}

func (l *List) logFailure(err *RemoteError) *RemoteError {
	entry := l.logger.WithFields(log.Fields{"op": err.Op, "error": err.Err})
	if err.TaskID != "" {
		entry = entry.WithField("task_id", err.TaskID)
	}
	entry.Error(err.Message)
	return err
}
