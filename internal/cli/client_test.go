package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/charliek/sidecarhost/internal/api"
	"github.com/charliek/sidecarhost/internal/domain"
)

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	client := NewClient("http://localhost:5556/")

	if client.baseURL != "http://localhost:5556" {
		t.Errorf("expected baseURL without trailing slash, got %q", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("expected httpClient to be non-nil")
	}
}

func TestClient_GetStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != "GET" {
			t.Errorf("expected GET, got %s", r.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.StatusResponse{
			Status:        "running",
			UptimeSeconds: 3600,
			APIVersion:    "v1",
			Sidecar:       api.SidecarResponse{Name: "backend", Status: "running", PID: 99},
		})
	}))
	defer server.Close()

	status, err := NewClient(server.URL).GetStatus()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Sidecar.PID != 99 {
		t.Errorf("expected sidecar pid 99, got %d", status.Sidecar.PID)
	}
}

func TestClient_SidecarControl(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		json.NewEncoder(w).Encode(api.SuccessResponse{Success: true})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.StartSidecar(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := client.StopSidecar(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := client.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	want := []string{"/api/v1/sidecar/start", "/api/v1/sidecar/stop", "/api/v1/shutdown"}
	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(paths) != fmt.Sprint(want) {
		t.Errorf("expected paths %v, got %v", want, paths)
	}
}

func TestClient_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(api.ErrorResponse{
			Error: "spawn backend: resolution_failed",
			Code:  domain.ErrCodeResolutionFailed,
		})
	}))
	defer server.Close()

	err := NewClient(server.URL).StartSidecar()
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", apiErr.Status)
	}
	if apiErr.Code != domain.ErrCodeResolutionFailed {
		t.Errorf("expected code %s, got %s", domain.ErrCodeResolutionFailed, apiErr.Code)
	}
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).GetStatus()
	if err == nil || err.Error() != "request failed with status 502" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_GetLogsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("stream") != "stderr" || q.Get("lines") != "5" || q.Get("pattern") != "err" || q.Get("regex") != "true" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(api.LogsResponse{
			Logs:          []api.LogLineResponse{{Line: "err: boom", Stream: "stderr"}},
			FilteredCount: 1,
			TotalCount:    1,
		})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).GetLogs(LogParams{Stream: "stderr", Lines: 5, Pattern: "err", Regex: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Logs) != 1 || resp.Logs[0].Line != "err: boom" {
		t.Errorf("unexpected logs: %+v", resp.Logs)
	}
}

func TestClient_Greet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.GreetResponse{Message: "Hello, " + r.URL.Query().Get("name") + "!"})
	}))
	defer server.Close()

	msg, err := NewClient(server.URL).Greet("Ada Lovelace")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "Hello, Ada Lovelace!" {
		t.Errorf("unexpected greeting %q", msg)
	}
}

func TestClient_StreamLogs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lines") != "" {
			t.Errorf("stream should not send lines, got %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": connected\n\n")
		for _, line := range []string{"one", "two"} {
			data, _ := json.Marshal(api.LogLineResponse{Source: "backend", Stream: "stdout", Line: line})
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: not-json\n\n")
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []string
	err := NewClient(server.URL).StreamLogs(ctx, LogParams{Lines: 10}, func(entry api.LogLineResponse) {
		got = append(got, entry.Line)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(got) != "[one two]" {
		t.Errorf("expected [one two], got %v", got)
	}
}

func TestClient_StreamLogsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: "bad pattern", Code: domain.ErrCodeInvalidPattern})
	}))
	defer server.Close()

	err := NewClient(server.URL).StreamLogs(context.Background(), LogParams{}, func(api.LogLineResponse) {})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != domain.ErrCodeInvalidPattern {
		t.Errorf("expected INVALID_PATTERN error, got %v", err)
	}
}

func TestClient_SendsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", got)
		}
		json.NewEncoder(w).Encode(api.StatusResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.token = "tok"
	if _, err := client.GetStatus(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
