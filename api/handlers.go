package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/RedDead11/Todo-App/domain"
	"github.com/RedDead11/Todo-App/tasklist"
	"github.com/RedDead11/Todo-App/web"
)

// IdempotencyHeader lets clients retry an add without creating a second todo.
const IdempotencyHeader = "Idempotency-Key"

// Register wires up the page and API routes on the provided Echo instance.
// deduper may be nil, which disables idempotency keys.
func Register(e *echo.Echo, list TaskList, broker *Broker, deduper Deduper, logger *log.Logger) {
	e.Renderer = web.NewRenderer()
	e.StaticFS("/static", web.Static())
	e.GET("/", page(list))
	e.GET("/healthz", healthz())
	e.GET("/api/stream", streamTodos(list, broker, logger))

	g := e.Group("/api", observe(logger), limitBodies(maxBodySize))
	g.GET("/todos", getTodos(list))
	g.POST("/todos", postTodo(list, deduper, logger))
	g.POST("/todos/:id/edit", beginEdit(list))
	g.PUT("/todos/:id", saveTodo(list))
	g.POST("/todos/:id/toggle", toggleTodo(list))
	g.DELETE("/todos/:id", deleteTodo(list))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func page(list TaskList) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "index.html", list.Snapshot())
	}
}

func getTodos(list TaskList) echo.HandlerFunc {
	return func(c echo.Context) error {
		rows := list.Snapshot()
		metricsFrom(c).SetTodosReturned(len(rows))
		return c.JSON(http.StatusOK, todosResponse{Todos: rows})
	}
}

func postTodo(list TaskList, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := decodeText(c)
		if err != nil {
			return decodeFailure(c, err)
		}
		if domain.IsBlank(req.Text) {
			return c.NoContent(http.StatusNoContent)
		}

		ctx := c.Request().Context()
		key := strings.TrimSpace(c.Request().Header.Get(IdempotencyHeader))
		if deduper == nil {
			key = ""
		}
		if key != "" {
			added, err := deduper.Add(ctx, key)
			switch {
			case err != nil:
				logger.WithError(err).WithField("idempotency_key", key).Warn("deduper unavailable; adding without idempotency")
				key = ""
			case !added:
				metricsFrom(c).SetErrorStage("duplicate")
				return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
			}
		}

		start := time.Now()
		task, err := list.Add(ctx, req.Text)
		metricsFrom(c).ObserveList(time.Since(start))
		if err != nil {
			if key != "" {
				if rerr := deduper.Remove(ctx, key); rerr != nil {
					logger.WithError(rerr).WithField("idempotency_key", key).Warn("remove idempotency key")
				}
			}
			if errors.Is(err, tasklist.ErrBlankText) {
				return c.NoContent(http.StatusNoContent)
			}
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, todoResponse{Todo: task})
	}
}

func beginEdit(list TaskList) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := list.BeginEdit(domain.ID(c.Param("id"))); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func saveTodo(list TaskList) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := decodeText(c)
		if err != nil {
			return decodeFailure(c, err)
		}
		start := time.Now()
		err = list.EditSave(c.Request().Context(), domain.ID(c.Param("id")), req.Text)
		metricsFrom(c).ObserveList(time.Since(start))
		if err != nil && !errors.Is(err, tasklist.ErrBlankText) {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func toggleTodo(list TaskList) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := list.ToggleDone(c.Request().Context(), domain.ID(c.Param("id")))
		metricsFrom(c).ObserveList(time.Since(start))
		if err != nil {
			return writeError(c, err)
		}
		rows := list.Snapshot()
		metricsFrom(c).SetTodosReturned(len(rows))
		return c.JSON(http.StatusOK, todosResponse{Todos: rows})
	}
}

func deleteTodo(list TaskList) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := list.Delete(c.Request().Context(), domain.ID(c.Param("id")))
		metricsFrom(c).ObserveList(time.Since(start))
		if err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func decodeText(c echo.Context) (textRequest, error) {
	var req textRequest
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return req, err
	}
	dec := sonic.ConfigStd.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err = dec.Decode(&req)
	return req, err
}

// writeError maps task list errors onto HTTP responses.
func writeError(c echo.Context, err error) error {
	m := metricsFrom(c)
	var remote *tasklist.RemoteError
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		m.SetErrorStage("not_found")
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, tasklist.ErrRowBusy):
		m.SetErrorStage("busy")
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &remote):
		m.SetErrorStage("remote_" + remote.Op)
		return c.JSON(http.StatusBadGateway, errorResponse{Error: remote.Message})
	default:
		m.SetErrorStage("internal")
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
