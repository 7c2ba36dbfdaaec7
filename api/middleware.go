package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// maxBodySize bounds every todo request body.
const maxBodySize = 64 << 10

var errBodyTooLarge = errors.New("request body too large")

// limitBodies rejects bodies above limit. A declared Content-Length over the
// limit is refused before the handler runs; chunked bodies are cut off by
// http.MaxBytesReader while decoding.
func limitBodies(limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.ContentLength > limit {
				metricsFrom(c).SetErrorStage("body_size")
				return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: errBodyTooLarge.Error()})
			}
			if req.Body != nil && req.Body != http.NoBody {
				req.Body = http.MaxBytesReader(c.Response(), req.Body, limit)
			}
			return next(c)
		}
	}
}

// decodeFailure answers a body that could not be decoded.
func decodeFailure(c echo.Context, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		metricsFrom(c).SetErrorStage("body_size")
		return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: errBodyTooLarge.Error()})
	}
	metricsFrom(c).SetErrorStage("decode")
	return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
}
