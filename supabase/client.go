package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/RedDead11/Todo-App/domain"
)

const (
	restPath        = "/rest/v1/"
	tracerName      = "github.com/RedDead11/Todo-App/supabase"
	maxErrorBodyLen = 64 * 1024
)

// Client talks to the PostgREST endpoint of a Supabase project for a single
// table. It applies no timeout and never retries.
type Client struct {
	baseURL string
	key     string
	table   string
	http    *http.Client
	tracer  trace.Tracer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for table at the project rooted at baseURL.
func New(baseURL, key, table string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" || strings.TrimSpace(key) == "" {
		return nil, errors.New("supabase: url and key are required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("supabase: invalid url: %w", err)
	}
	if table == "" {
		table = "todos"
	}
	c := &Client{
		baseURL: baseURL,
		key:     key,
		table:   table,
		http:    &http.Client{},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListAll returns every row ordered newest first.
func (c *Client) ListAll(ctx context.Context) ([]domain.Row, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")

	var rows []domain.Row
	_, err := c.do(ctx, "select", http.MethodGet, q, nil, false, &rows)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.Row{}
	}
	return rows, nil
}

// Insert stores row and returns the stored representation with its
// server-assigned id and timestamps.
func (c *Client) Insert(ctx context.Context, row domain.NewRow) (domain.Row, error) {
	q := url.Values{}
	q.Set("select", "*")

	var rows []domain.Row
	if _, err := c.do(ctx, "insert", http.MethodPost, q, []domain.NewRow{row}, true, &rows); err != nil {
		return domain.Row{}, err
	}
	if len(rows) != 1 {
		return domain.Row{}, fmt.Errorf("supabase: insert returned %d rows, want 1", len(rows))
	}
	return rows[0], nil
}

// Update applies patch to the row with the given id.
func (c *Client) Update(ctx context.Context, id domain.ID, patch domain.RowPatch) error {
	if patch.Empty() {
		return errors.New("supabase: empty patch")
	}
	var rows []domain.Row
	status, err := c.do(ctx, "update", http.MethodPatch, idFilter(id), patch, true, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &NoRowsError{Op: "update", ID: id, Status: status}
	}
	return nil
}

// Delete removes the row with the given id.
func (c *Client) Delete(ctx context.Context, id domain.ID) error {
	var rows []domain.Row
	status, err := c.do(ctx, "delete", http.MethodDelete, idFilter(id), nil, true, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &NoRowsError{Op: "delete", ID: id, Status: status}
	}
	return nil
}

func idFilter(id domain.ID) url.Values {
	q := url.Values{}
	q.Set("id", "eq."+id.String())
	return q
}

func (c *Client) endpoint(q url.Values) string {
	u := c.baseURL + restPath + url.PathEscape(c.table)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, op, method string, q url.Values, body any, representation bool, out any) (status int, err error) {
	ctx, span := c.tracer.Start(ctx, "supabase."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.collection.name", c.table),
			attribute.String("db.operation.name", op),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		payload, merr := sonic.Marshal(body)
		if merr != nil {
			return 0, fmt.Errorf("supabase: encode %s: %w", op, merr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(q), reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if representation {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("supabase: %s: %w", op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	status = resp.StatusCode
	if status < 200 || status > 299 {
		return status, decodeAPIError(op, resp)
	}
	if out == nil {
		return status, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return status, fmt.Errorf("supabase: read %s response: %w", op, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return status, nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return status, fmt.Errorf("supabase: decode %s response: %w", op, err)
	}
	return status, nil
}
