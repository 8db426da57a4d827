package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vidsnatch/internal/api"
	"vidsnatch/internal/jobs"
)

func TestNewClientNormalizesBind(t *testing.T) {
	client, err := api.NewClient("127.0.0.1:8080")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if got := client.BaseURL(); got != "http://127.0.0.1:8080" {
		t.Fatalf("BaseURL = %q", got)
	}

	client, err = api.NewClient("http://localhost:9000/ignored?x=1")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if got := client.BaseURL(); got != "http://localhost:9000" {
		t.Fatalf("BaseURL = %q", got)
	}

	if _, err := api.NewClient("  "); !errors.Is(err, api.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty bind, got %v", err)
	}
}

func TestClientSubmitSendsJSON(t *testing.T) {
	var got api.DownloadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/download" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(api.DownloadResponse{
			Success:          true,
			DownloadID:       "abc",
			URL:              got.URL,
			Title:            got.Title,
			PreviousAttempts: 2,
		})
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Submit(context.Background(), api.DownloadRequest{URL: "https://example.com/v", Title: "Clip", OpenFolder: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !got.OpenFolder || got.URL != "https://example.com/v" {
		t.Fatalf("server saw %+v", got)
	}
	if resp.DownloadID != "abc" || resp.PreviousAttempts != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestClientMapsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "download is downloading"})
	}))
	defer srv.Close()

	client, _ := api.NewClient(srv.URL)
	_, err := client.Retry(context.Background(), "abc")
	if !api.IsStatus(err, http.StatusConflict) {
		t.Fatalf("expected 409 status error, got %v", err)
	}
	if !strings.Contains(err.Error(), "download is downloading") {
		t.Fatalf("error text lost: %v", err)
	}
	if api.IsUnavailable(err) {
		t.Fatal("status error must not look like an unavailable server")
	}
}

func TestClientEventsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("since") != "7" || q.Get("limit") != "10" || q.Get("follow") != "1" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(api.EventsResponse{
			Events: []jobs.Event{{Sequence: 8, JobID: "a", Status: jobs.StatusDownloading}},
			Next:   8,
		})
	}))
	defer srv.Close()

	client, _ := api.NewClient(srv.URL)
	resp, err := client.Events(context.Background(), api.EventQuery{Since: 7, Limit: 10, Follow: true})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if resp.Next != 8 || len(resp.Events) != 1 || resp.Events[0].Status != jobs.StatusDownloading {
		t.Fatalf("unexpected events %+v", resp)
	}
}

func TestClientEscapesFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/find-failed-download-for-file/My Clip #1.mp4.part" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(api.FindFailedResponse{Found: true, URL: "https://example.com/v", Similarity: 0.9})
	}))
	defer srv.Close()

	client, _ := api.NewClient(srv.URL)
	resp, err := client.FindFailed(context.Background(), "My Clip #1.mp4.part")
	if err != nil {
		t.Fatalf("FindFailed: %v", err)
	}
	if !resp.Found || resp.Similarity != 0.9 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestIsUnavailable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	client, _ := api.NewClient(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = client.Status(ctx)
	if !api.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if api.IsUnavailable(nil) {
		t.Fatal("nil error reported as unavailable")
	}
}

func TestFromJob(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	dl := api.FromJob(jobs.Job{
		ID:           "abc",
		SourceURL:    "https://example.com/v",
		DisplayTitle: "Clip",
		Status:       jobs.StatusError,
		ErrorMessage: "boom",
		RetryCount:   1,
		CreatedAt:    created,
	})
	if dl.DownloadID != "abc" || dl.Status != "error" || dl.Error != "boom" || dl.RetryCount != 1 {
		t.Fatalf("unexpected conversion %+v", dl)
	}
	if dl.UpdatedAt != "" {
		t.Fatalf("zero time should be omitted, got %q", dl.UpdatedAt)
	}
	parsed, ok := api.ParseTime(dl.CreatedAt)
	if !ok || !parsed.Equal(created) {
		t.Fatalf("ParseTime(%q) = %v, %v", dl.CreatedAt, parsed, ok)
	}

	data, err := json.Marshal(dl)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"downloadId":"abc"`) || strings.Contains(string(data), `"speed"`) {
		t.Fatalf("unexpected JSON %s", data)
	}
}
