package httpx

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, 404, "not_found", "no such thing")

	if rec.Code != 404 {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("unexpected cache control %q", cc)
	}
	want := `{"error":{"code":"not_found","message":"no such thing"}}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestDecodeJSONStrictness(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"ok", `{"name":"ada"}`, false},
		{"unknown field", `{"name":"ada","extra":1}`, true},
		{"trailing data", `{"name":"ada"}{"name":"eve"}`, true},
		{"not json", `name=ada`, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			var dst payload
			err := DecodeJSON(rec, req, 1<<10, &dst)
			if tc.wantErr && err == nil {
				t.Fatalf("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDecodeJSONBodyCap(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"`+strings.Repeat("a", 100)+`"}`))
	rec := httptest.NewRecorder()

	var dst struct {
		Name string `json:"name"`
	}
	err := DecodeJSON(rec, req, 16, &dst)
	if err == nil || !strings.Contains(err.Error(), "larger than") {
		t.Fatalf("expected a body size error, got %v", err)
	}
}
