package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newUpstream(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "gpt-4o-mini", Timeout: 5 * time.Second})
}

func TestClient_Complete(t *testing.T) {
	var got completionRequest
	client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Creatinine is trending up."}}]}`))
	})

	content, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "You summarise labs."},
		{Role: RoleUser, Content: "How is renal function?"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "Creatinine is trending up." {
		t.Errorf("unexpected content %q", content)
	}
	if got.Model != "gpt-4o-mini" || len(got.Messages) != 2 || got.Messages[1].Role != RoleUser {
		t.Errorf("unexpected upstream request %+v", got)
	}
}

func TestClient_Complete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"non-2xx", http.StatusTooManyRequests, `{"error":"rate limited"}`, "status 429"},
		{"empty choices", http.StatusOK, `{"choices":[]}`, "empty completion"},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"  "}}]}`, "empty completion"},
		{"bad json", http.StatusOK, `not json`, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
			if !errors.Is(err, ErrUpstream) {
				t.Fatalf("expected ErrUpstream, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestClient_Complete_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()
	client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second})

	if _, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}
