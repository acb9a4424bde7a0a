package errmodel

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewAndFrom(t *testing.T) {
	e := Validation("unknown_intent", "intent not recognized", map[string]any{"intent": "modulo"})
	if e.Category != CategoryValidation || e.Code != "unknown_intent" {
		t.Fatalf("unexpected: %#v", e)
	}
	if got := From(e); got != e {
		t.Fatalf("From should return same error instance")
	}
	if got := From(errors.New("boom")); got.Category != CategorySystem || got.Code != "internal" {
		t.Fatalf("From(plain error)=%#v", got)
	}
	if From(nil) != nil {
		t.Fatal("From(nil) must be nil")
	}
}

func TestCategoryConstructors(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{Validation("c", "m", nil), CategoryValidation},
		{Execution("c", "m", nil), CategoryExecution},
		{Driver("c", "m", nil), CategoryDriver},
		{Config("c", "m", nil), CategoryConfig},
		{System("c", "m", nil), CategorySystem},
	}
	for _, c := range cases {
		if c.err.Category != c.want {
			t.Fatalf("category=%s want %s", c.err.Category, c.want)
		}
		if !IsCategory(c.err, c.want) {
			t.Fatalf("IsCategory(%s) false", c.want)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	if got := HTTPStatus(Validation("bad_json", "m", nil)); got != 400 {
		t.Fatalf("validation status=%d want 400", got)
	}
	if got := HTTPStatus(Validation("not_found", "m", nil)); got != 404 {
		t.Fatalf("not_found status=%d want 404", got)
	}
	if got := HTTPStatus(Config("unknown_provider", "m", nil)); got != 400 {
		t.Fatalf("config status=%d want 400", got)
	}
	if got := HTTPStatus(Driver("completion_failed", "m", nil)); got != 502 {
		t.Fatalf("driver status=%d want 502", got)
	}
	if got := HTTPStatus(Execution("division_by_zero", "m", nil)); got != 500 {
		t.Fatalf("execution status=%d want 500", got)
	}
}

func TestWriteHTTP_StatusAndEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	WriteHTTP(rr, req, Validation("bad_json", "oops", nil))
	if rr.Code != 400 {
		t.Fatalf("status=%d want 400", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "\"category\":\"validation\"") {
		t.Fatalf("body missing category: %s", body)
	}
	if !strings.Contains(body, "\"code\":\"bad_json\"") {
		t.Fatalf("body missing code: %s", body)
	}
}

func TestTruncateLongMessage(t *testing.T) {
	long := strings.Repeat("x", 1024)
	e := Driver("completion_failed", long, nil)
	if len(e.Message) != 512 {
		t.Fatalf("message len=%d want 512", len(e.Message))
	}
	if !strings.HasSuffix(e.Message, "...") {
		t.Fatal("truncated message should end with ellipsis")
	}
}
