package usagelog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type githubStub struct {
	mu        sync.Mutex
	sha       string
	gets      int
	puts      int
	conflicts int
	lastPut   putRequest
}

func (g *githubStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			g.gets++
			if g.sha == "" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(contentsResponse{
				SHA:      g.sha,
				Content:  base64.StdEncoding.EncodeToString([]byte("[]")),
				Encoding: "base64",
			})
		case http.MethodPut:
			g.puts++
			var req putRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			g.lastPut = req
			if g.conflicts > 0 {
				g.conflicts--
				w.WriteHeader(http.StatusConflict)
				return
			}
			if req.SHA != g.sha {
				w.WriteHeader(http.StatusUnprocessableEntity)
				return
			}
			g.sha = fmt.Sprintf("sha-%d", g.puts)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func (g *githubStub) state() (int, int, putRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gets, g.puts, g.lastPut
}

func newStubWriter(t *testing.T, stub *githubStub) (*GitHubWriter, *[]time.Duration) {
	t.Helper()
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)
	writer := NewGitHubWriter(GitHubConfig{
		Owner:   "acme",
		Repo:    "usage",
		Path:    "usage-data.json",
		Token:   "test-token",
		BaseURL: server.URL,
	})
	var delays []time.Duration
	writer.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return writer, &delays
}

func TestGitHubWriteSendsShaPrecondition(t *testing.T) {
	stub := &githubStub{sha: "abc"}
	writer, delays := newStubWriter(t, stub)
	conflicts, err := writer.Write(context.Background(), sampleRecords())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if conflicts != 0 || len(*delays) != 0 {
		t.Fatalf("clean write should not back off, conflicts=%d sleeps=%d", conflicts, len(*delays))
	}
	_, _, lastPut := stub.state()
	if lastPut.SHA != "abc" {
		t.Fatalf("PUT must carry the fetched sha, got %q", lastPut.SHA)
	}
	if lastPut.Branch != "main" {
		t.Fatalf("PUT must target the configured branch, got %q", lastPut.Branch)
	}
	decoded, err := base64.StdEncoding.DecodeString(lastPut.Content)
	if err != nil {
		t.Fatalf("decode uploaded content: %v", err)
	}
	loaded, err := unmarshalRecords(decoded)
	if err != nil || len(loaded) != 2 {
		t.Fatalf("uploaded payload should round-trip, err=%v len=%d", err, len(loaded))
	}
}

func TestGitHubWriteCreatesMissingFile(t *testing.T) {
	stub := &githubStub{} // no sha: GET returns 404
	writer, _ := newStubWriter(t, stub)
	if _, err := writer.Write(context.Background(), sampleRecords()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, lastPut := stub.state(); lastPut.SHA != "" {
		t.Fatalf("first write of a missing file must omit the sha, got %q", lastPut.SHA)
	}
}

func TestGitHubWriteRetriesConflict(t *testing.T) {
	stub := &githubStub{sha: "abc", conflicts: 1}
	writer, delays := newStubWriter(t, stub)
	conflicts, err := writer.Write(context.Background(), sampleRecords())
	if err != nil {
		t.Fatalf("write should recover after conflict: %v", err)
	}
	if conflicts != 1 {
		t.Fatalf("expected 1 conflict, got %d", conflicts)
	}
	if gets, _, _ := stub.state(); gets != 2 {
		t.Fatalf("each attempt must re-read the sha, got %d gets", gets)
	}
	want := 1000*time.Millisecond + 500*time.Millisecond
	if len(*delays) != 1 || (*delays)[0] != want {
		t.Fatalf("expected one %v backoff, got %v", want, *delays)
	}
}

func TestGitHubWriteConflictExhaustion(t *testing.T) {
	stub := &githubStub{sha: "abc", conflicts: 10}
	writer, delays := newStubWriter(t, stub)
	conflicts, err := writer.Write(context.Background(), sampleRecords())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict after exhaustion, got %v", err)
	}
	if conflicts != 3 {
		t.Fatalf("expected 3 conflicts, got %d", conflicts)
	}
	wantDelays := []time.Duration{1500 * time.Millisecond, 2000 * time.Millisecond}
	if len(*delays) != len(wantDelays) {
		t.Fatalf("expected %d backoffs, got %d", len(wantDelays), len(*delays))
	}
	for i, d := range wantDelays {
		if (*delays)[i] != d {
			t.Fatalf("backoff %d: want %v, got %v", i, d, (*delays)[i])
		}
	}
}

func TestGitHubLoadMissingFile(t *testing.T) {
	writer, _ := newStubWriter(t, &githubStub{})
	records, err := writer.Load(context.Background())
	if err != nil {
		t.Fatalf("missing remote file must not error: %v", err)
	}
	if records != nil {
		t.Fatalf("missing remote file should yield no records")
	}
}

func TestStoreFallsBackToLocalFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	path := filepath.Join(t.TempDir(), "usage.json")
	file, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("new file writer: %v", err)
	}
	remote := NewGitHubWriter(GitHubConfig{
		Owner: "acme", Repo: "usage", Path: "usage-data.json",
		Token: "test-token", BaseURL: server.URL,
	})
	remote.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	store := &Store{remote: remote, file: file}

	if err := store.Write(context.Background(), sampleRecords()); err != nil {
		t.Fatalf("fallback write should succeed: %v", err)
	}
	loaded, err := file.Load(context.Background())
	if err != nil || len(loaded) != 2 {
		t.Fatalf("records should land in the local file, err=%v len=%d", err, len(loaded))
	}
	// Load also falls back when the remote is unreachable.
	records, err := store.Load(context.Background())
	if err != nil || len(records) != 2 {
		t.Fatalf("fallback load should read the local file, err=%v len=%d", err, len(records))
	}
}
