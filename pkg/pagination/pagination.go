package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	// DefaultLimit is the page size of the framework-hosted API.
	DefaultLimit = 50
	// FunctionDefaultLimit is the page size of the function endpoints.
	FunctionDefaultLimit = 10
	MaxLimit             = 200
)

var ErrInvalidParam = errors.New("invalid pagination parameter")

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// Parse validates raw limit and offset query values. A missing or zero
// limit falls back to defaultLimit, a limit above MaxLimit is clamped, and
// a missing offset is 0. Non-integer or negative values are rejected.
func Parse(limitStr, offsetStr string, defaultLimit int) (Params, error) {
	p := Params{Limit: defaultLimit}

	if limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return Params{}, fmt.Errorf("%w: limit must be a non-negative integer, got %q", ErrInvalidParam, limitStr)
		}
		if limit > 0 {
			p.Limit = limit
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	if offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return Params{}, fmt.Errorf("%w: offset must be a non-negative integer, got %q", ErrInvalidParam, offsetStr)
		}
		p.Offset = offset
	}

	return p, nil
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context, defaultLimit int) (Params, error) {
	return Parse(c.QueryParam("limit"), c.QueryParam("offset"), defaultLimit)
}

// FromRequest extracts pagination parameters from a plain HTTP request.
func FromRequest(r *http.Request, defaultLimit int) (Params, error) {
	q := r.URL.Query()
	return Parse(q.Get("limit"), q.Get("offset"), defaultLimit)
}

// Page returns the 1-based page number the offset falls on.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// Response wraps a paginated API response.
type Response[T any] struct {
	Data     []T `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// NewResponse builds the response envelope. Data is never nil so an empty
// page serialises as [].
func NewResponse[T any](data []T, total int, p Params) *Response[T] {
	if data == nil {
		data = []T{}
	}
	return &Response[T]{
		Data:     data,
		Total:    total,
		Page:     p.Page(),
		PageSize: p.Limit,
	}
}
