package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/RedDead11/Todo-App/domain"
	"github.com/RedDead11/Todo-App/tasklist"
)

const (
	cueBuffer         = 8
	keepAliveInterval = 25 * time.Second
)

type subscriber struct {
	changed chan struct{}
	cues    chan domain.ID
}

// Broker fans task list events out to the open event streams. Publish never
// blocks: change notifications coalesce and cues beyond the buffer are dropped.
type Broker struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[*subscriber]struct{})}
}

func (b *Broker) subscribe() *subscriber {
	s := &subscriber{changed: make(chan struct{}, 1), cues: make(chan domain.ID, cueBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *Broker) unsubscribe(s *subscriber) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Publish is a tasklist observer.
func (b *Broker) Publish(ev tasklist.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		switch ev.Kind {
		case tasklist.EventDeleteCue:
			select {
			case s.cues <- ev.TaskID:
			default:
			}
		default:
			select {
			case s.changed <- struct{}{}:
			default:
			}
		}
	}
}

func writeEvent(c echo.Context, name string, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	w := c.Response()
	if _, err := w.Write([]byte("event: " + name + "\ndata: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// streamTodos pushes a todos snapshot on connect and after every change, and
// a cue event whenever a row starts deleting.
func streamTodos(list TaskList, broker *Broker, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := c.Response().Writer.(http.Flusher); !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		h := c.Response().Header()
		h.Set(echo.HeaderContentType, "text/event-stream")
		h.Set(echo.HeaderCacheControl, "no-cache")
		h.Set(echo.HeaderConnection, "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		c.Response().WriteHeader(http.StatusOK)

		ctx := c.Request().Context()
		sub := broker.subscribe()
		defer broker.unsubscribe(sub)

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		if err := writeEvent(c, "todos", todosResponse{Todos: list.Snapshot()}); err != nil {
			logger.WithError(err).Warn("stream write failed")
			return nil
		}
		for {
			var err error
			select {
			case <-ctx.Done():
				return nil
			case <-sub.changed:
				err = writeEvent(c, "todos", todosResponse{Todos: list.Snapshot()})
			case id := <-sub.cues:
				err = writeEvent(c, "cue", cueEvent{ID: id})
			case <-ticker.C:
				_, err = c.Response().Write([]byte(": ping\n\n"))
				c.Response().Flush()
			}
			if err != nil {
				logger.WithError(err).Debug("stream closed")
				return nil
			}
		}
	}
}
