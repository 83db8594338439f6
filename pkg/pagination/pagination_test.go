package pagination

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		limit      string
		offset     string
		def        int
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"defaults", "", "", DefaultLimit, 50, 0, false},
		{"function defaults", "", "", FunctionDefaultLimit, 10, 0, false},
		{"zero limit uses default", "0", "", DefaultLimit, 50, 0, false},
		{"custom", "25", "75", DefaultLimit, 25, 75, false},
		{"clamped", "500", "", DefaultLimit, MaxLimit, 0, false},
		{"exact max", "200", "", DefaultLimit, 200, 0, false},
		{"non-integer limit", "ten", "", DefaultLimit, 0, 0, true},
		{"negative limit", "-1", "", DefaultLimit, 0, 0, true},
		{"non-integer offset", "10", "x", DefaultLimit, 0, 0, true},
		{"negative offset", "10", "-5", DefaultLimit, 0, 0, true},
		{"float limit", "2.5", "", DefaultLimit, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.limit, tt.offset, tt.def)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParam) {
					t.Fatalf("expected ErrInvalidParam, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Limit != tt.wantLimit {
				t.Errorf("expected limit %d, got %d", tt.wantLimit, p.Limit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("expected offset %d, got %d", tt.wantOffset, p.Offset)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=20&offset=40", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p, err := FromContext(c, DefaultLimit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Limit != 20 || p.Offset != 40 {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestFromRequest_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/getPaginatedPatients", nil)

	p, err := FromRequest(req, FunctionDefaultLimit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Limit != FunctionDefaultLimit || p.Offset != 0 {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestParams_Page(t *testing.T) {
	tests := []struct {
		p    Params
		want int
	}{
		{Params{Limit: 10, Offset: 0}, 1},
		{Params{Limit: 10, Offset: 9}, 1},
		{Params{Limit: 10, Offset: 10}, 2},
		{Params{Limit: 50, Offset: 125}, 3},
		{Params{Limit: 0, Offset: 10}, 1},
	}
	for _, tt := range tests {
		if got := tt.p.Page(); got != tt.want {
			t.Errorf("Page(%+v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestNewResponse(t *testing.T) {
	p := Params{Limit: 2, Offset: 0}
	resp := NewResponse([]string{"a", "b"}, 3, p)

	if resp.Total != 3 || resp.Page != 1 || resp.PageSize != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestNewResponse_EmptyDataIsArray(t *testing.T) {
	resp := NewResponse[int](nil, 0, Params{Limit: 10, Offset: 30})

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"data":[],"total":0,"page":4,"pageSize":10}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}
