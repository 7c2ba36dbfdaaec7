package supabase

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/RedDead11/Todo-App/domain"
)

// APIError is the error body PostgREST returns for failed requests.
type APIError struct {
	Op      string `json:"-"`
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "supabase: %s failed with status %d", e.Op, e.Status)
	if e.Code != "" {
		b.WriteString(" (" + e.Code + ")")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

func decodeAPIError(op string, resp *http.Response) error {
	apiErr := &APIError{Op: op, Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	if err != nil || len(data) == 0 {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}
	if err := sonic.Unmarshal(data, apiErr); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// NoRowsError reports a filtered write that matched nothing. PostgREST
// answers 2xx with an empty array both when the row is gone and when row
// level security hides it, so Status is kept for the log.
type NoRowsError struct {
	Op     string
	ID     domain.ID
	Status int
}

func (e *NoRowsError) Error() string {
	return fmt.Sprintf("supabase: %s of id %s matched no rows (status %d)", e.Op, e.ID, e.Status)
}

func (e *NoRowsError) Unwrap() error { return domain.ErrTaskNotFound }
