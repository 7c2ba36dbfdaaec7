package supabase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/RedDead11/Todo-App/domain"
)

const testKey = "anon-key"

type recordedRequest struct {
	method string
	path   string
	query  string
	header http.Header
	body   []byte
}

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
		}
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.header = r.Header.Clone()
		rec.body = data
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(srv.URL+"/", testKey, "todos", WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewRequiresURLAndKey(t *testing.T) {
	if _, err := New("", testKey, "todos"); err == nil {
		t.Fatalf("expected error for missing url")
	}
	if _, err := New("https://example.supabase.co", " ", "todos"); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if _, err := New("not a url", testKey, "todos"); err == nil {
		t.Fatalf("expected error for invalid url")
	}
}

func TestListAllOrdersNewestFirst(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, `[
		{"id":2,"user_id":null,"todo":"b","is_done":false,"created_at":"2024-05-02T10:00:00+00:00","updated_at":"2024-05-02T10:00:00+00:00"},
		{"id":1,"user_id":null,"todo":"a","is_done":true,"created_at":"2024-05-01T10:00:00+00:00","updated_at":"2024-05-01T10:00:00+00:00"}
	]`)
	c := newTestClient(t, srv)

	rows, err := c.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if rec.method != http.MethodGet || rec.path != "/rest/v1/todos" {
		t.Fatalf("unexpected request %s %s", rec.method, rec.path)
	}
	if rec.query != "order=created_at.desc&select=%2A" {
		t.Fatalf("unexpected query: %s", rec.query)
	}
	if rec.header.Get("apikey") != testKey || rec.header.Get("Authorization") != "Bearer "+testKey {
		t.Fatalf("missing credentials: %v", rec.header)
	}
	if len(rows) != 2 || rows[0].ID != "2" || rows[1].Todo != "a" || !rows[1].IsDone {
		t.Fatalf("unexpected rows: %#v", rows)
	}
	if rows[0].CreatedAt.Before(rows[1].CreatedAt) {
		t.Fatalf("expected newest row first")
	}
}

func TestListAllEmpty(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `[]`)
	rows, err := newTestClient(t, srv).ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", rows)
	}
}

func TestInsertReturnsServerRow(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusCreated, `[{"id":7,"user_id":null,"todo":"buy milk","is_done":false,"created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-01T10:00:00Z"}]`)
	c := newTestClient(t, srv)

	row, err := c.Insert(context.Background(), domain.NewRow{Todo: "buy milk"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if row.ID != "7" || row.Todo != "buy milk" || row.IsDone {
		t.Fatalf("unexpected row: %#v", row)
	}
	if rec.method != http.MethodPost {
		t.Fatalf("unexpected method %s", rec.method)
	}
	if rec.header.Get("Prefer") != "return=representation" {
		t.Fatalf("expected representation preference, got %q", rec.header.Get("Prefer"))
	}
	var sent []map[string]any
	if err := sonic.Unmarshal(rec.body, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if len(sent) != 1 || sent[0]["todo"] != "buy milk" || sent[0]["is_done"] != false {
		t.Fatalf("unexpected insert body: %s", rec.body)
	}
	if v, ok := sent[0]["user_id"]; !ok || v != nil {
		t.Fatalf("expected explicit null user_id, got %s", rec.body)
	}
}

func TestInsertRejectsUnexpectedRowCount(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusCreated, `[]`)
	if _, err := newTestClient(t, srv).Insert(context.Background(), domain.NewRow{Todo: "x"}); err == nil {
		t.Fatalf("expected error for empty representation")
	}
}

func TestUpdateFiltersByID(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, `[{"id":3,"todo":"new","is_done":false}]`)
	c := newTestClient(t, srv)

	if err := c.Update(context.Background(), "3", domain.TextPatch("new")); err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.method != http.MethodPatch || rec.query != "id=eq.3" {
		t.Fatalf("unexpected request %s ?%s", rec.method, rec.query)
	}
	if string(rec.body) != `{"todo":"new"}` {
		t.Fatalf("unexpected patch body: %s", rec.body)
	}
}

func TestUpdateMissingRow(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `[]`)
	err := newTestClient(t, srv).Update(context.Background(), "404", domain.DonePatch(true))
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestUpdateRejectsEmptyPatch(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, `[]`)
	if err := newTestClient(t, srv).Update(context.Background(), "1", domain.RowPatch{}); err == nil {
		t.Fatalf("expected error for empty patch")
	}
	if rec.method != "" {
		t.Fatalf("expected no request for empty patch")
	}
}

func TestDelete(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, `[{"id":"a-b","todo":"x","is_done":true}]`)
	if err := newTestClient(t, srv).Delete(context.Background(), "a-b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.method != http.MethodDelete || rec.query != "id=eq.a-b" {
		t.Fatalf("unexpected request %s ?%s", rec.method, rec.query)
	}
	if len(rec.body) != 0 {
		t.Fatalf("expected empty delete body, got %s", rec.body)
	}
}

func TestDeleteMatchingNoRows(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `[]`)
	err := newTestClient(t, srv).Delete(context.Background(), "7")
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	var noRows *NoRowsError
	if !errors.As(err, &noRows) {
		t.Fatalf("expected NoRowsError, got %T", err)
	}
	if noRows.Op != "delete" || noRows.ID != "7" || noRows.Status != http.StatusOK {
		t.Fatalf("unexpected error: %#v", noRows)
	}
	if err.Error() != "supabase: delete of id 7 matched no rows (status 200)" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestAPIErrorDecoded(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusUnauthorized, `{"code":"42501","message":"permission denied for table todos","details":null,"hint":null}`)
	_, err := newTestClient(t, srv).ListAll(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Code != "42501" || apiErr.Op != "select" {
		t.Fatalf("unexpected api error: %#v", apiErr)
	}
	if apiErr.Error() != "supabase: select failed with status 401 (42501): permission denied for table todos" {
		t.Fatalf("unexpected message: %s", apiErr.Error())
	}
}

func TestAPIErrorWithPlainBody(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadGateway, `upstream down`)
	err := newTestClient(t, srv).Delete(context.Background(), "1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "upstream down" {
		t.Fatalf("unexpected message: %q", apiErr.Message)
	}
}

func TestRemoteCallsAreTraced(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	srv, _ := newTestServer(t, http.StatusInternalServerError, `{"message":"boom"}`)
	c := newTestClient(t, srv)
	if _, err := c.ListAll(context.Background()); err == nil {
		t.Fatalf("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "supabase.select" {
		t.Fatalf("unexpected span name: %s", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status.Code)
	}
}

func TestKeyRole(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":  "supabase",
		"role": "anon",
		"exp":  exp.Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	info, err := KeyRole(signed)
	if err != nil {
		t.Fatalf("key role: %v", err)
	}
	if info.Role != "anon" || info.Issuer != "supabase" {
		t.Fatalf("unexpected key info: %#v", info)
	}
	if !info.ExpiresAt.Equal(exp) || !info.Expired(time.Now()) {
		t.Fatalf("expected expired key at %v, got %v", exp, info.ExpiresAt)
	}
}

func TestKeyRoleOpaqueKey(t *testing.T) {
	if _, err := KeyRole("sb_publishable_abc123"); !errors.Is(err, ErrOpaqueKey) {
		t.Fatalf("expected ErrOpaqueKey, got %v", err)
	}
}
