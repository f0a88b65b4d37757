package usagelog

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ideaforge-io/ideaforge/internal/common"
	"github.com/ideaforge-io/ideaforge/internal/session"
)

// ErrConflict reports that the remote blob changed between read and write.
var ErrConflict = errors.New("usagelog: remote content changed")

const defaultGitHubAPI = "https://api.github.com"

// GitHubConfig identifies the repository blob the usage log lives in.
type GitHubConfig struct {
	Owner       string
	Repo        string
	Path        string
	Branch      string
	Token       string
	MaxAttempts int
	// BaseURL overrides the GitHub API endpoint, mainly for tests.
	BaseURL string
}

// GitHubWriter reads and writes a single JSON file through the GitHub
// contents API. Each write fetches the current blob SHA and sends it back
// as a precondition, so a concurrent writer surfaces as ErrConflict.
type GitHubWriter struct {
	cfg        GitHubConfig
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewGitHubWriter(cfg GitHubConfig) *GitHubWriter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGitHubAPI
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &GitHubWriter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		sleep:      sleepContext,
	}
}

type contentsResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

// Write replaces the remote blob with the given record list. On conflict it
// restarts the whole read-modify-write cycle, backing off between attempts.
// The returned count is the number of conflicts hit along the way.
func (w *GitHubWriter) Write(ctx context.Context, records []session.UsageRecord) (int, error) {
	payload, err := marshalRecords(records)
	if err != nil {
		return 0, err
	}
	conflicts := 0
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		sha, _, err := w.getFile(ctx)
		if err != nil {
			return conflicts, err
		}
		err = w.putFile(ctx, payload, sha)
		if err == nil {
			return conflicts, nil
		}
		if !errors.Is(err, ErrConflict) {
			return conflicts, err
		}
		conflicts++
		common.Logger().Warn("usage log write conflict",
			"attempt", attempt, "path", w.cfg.Path)
		if attempt == w.cfg.MaxAttempts {
			break
		}
		delay := 1000*time.Millisecond + time.Duration(attempt)*500*time.Millisecond
		if err := w.sleep(ctx, delay); err != nil {
			return conflicts, err
		}
	}
	return conflicts, fmt.Errorf("usagelog: write gave up after %d attempts: %w",
		w.cfg.MaxAttempts, ErrConflict)
}

// Load fetches and decodes the remote record list. A missing file is not an
// error, it just yields no records.
func (w *GitHubWriter) Load(ctx context.Context) ([]session.UsageRecord, error) {
	_, data, err := w.getFile(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return unmarshalRecords(data)
}

// getFile returns the current SHA and decoded content. A 404 yields an empty
// SHA and nil content so the first write creates the file.
func (w *GitHubWriter) getFile(ctx context.Context) (string, []byte, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		w.cfg.BaseURL, w.cfg.Owner, w.cfg.Repo, w.cfg.Path, w.cfg.Branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, err
	}
	w.setHeaders(req)
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fetch usage log: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", nil, fmt.Errorf("fetch usage log: status %d: %s", resp.StatusCode, body)
	}
	var contents contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&contents); err != nil {
		return "", nil, fmt.Errorf("decode contents response: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(stripNewlines(contents.Content))
	if err != nil {
		return "", nil, fmt.Errorf("decode usage log content: %w", err)
	}
	return contents.SHA, data, nil
}

func (w *GitHubWriter) putFile(ctx context.Context, payload []byte, sha string) error {
	body, err := json.Marshal(putRequest{
		Message: "Update usage log",
		Content: base64.StdEncoding.EncodeToString(payload),
		Branch:  w.cfg.Branch,
		SHA:     sha,
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		w.cfg.BaseURL, w.cfg.Owner, w.cfg.Repo, w.cfg.Path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	w.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("store usage log: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return ErrConflict
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("store usage log: status %d: %s", resp.StatusCode, msg)
	}
}

func (w *GitHubWriter) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+w.cfg.Token)
}

func stripNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
