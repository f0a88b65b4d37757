package usagelog

import (
	"context"

	"github.com/ideaforge-io/ideaforge/internal/common"
	"github.com/ideaforge-io/ideaforge/internal/common/telemetry"
	"github.com/ideaforge-io/ideaforge/internal/config"
	"github.com/ideaforge-io/ideaforge/internal/session"
)

// Store is the durable sink for usage records. When a GitHub repository is
// configured it is the primary copy; the local file takes over whenever a
// remote write cannot land.
type Store struct {
	remote *GitHubWriter
	file   *FileWriter
}

func NewStore(cfg config.Config) (*Store, error) {
	file, err := NewFileWriter(cfg.LogFile)
	if err != nil {
		return nil, err
	}
	store := &Store{file: file}
	if cfg.RemoteStoreConfigured() {
		store.remote = NewGitHubWriter(GitHubConfig{
			Owner:       cfg.GitHubOwner,
			Repo:        cfg.GitHubRepo,
			Path:        cfg.GitHubPath,
			Branch:      cfg.GitHubBranch,
			Token:       cfg.GitHubToken,
			MaxAttempts: cfg.StoreMaxAttempts,
		})
		common.Logger().Info("usage log remote store enabled",
			"owner", cfg.GitHubOwner, "repo", cfg.GitHubRepo, "path", cfg.GitHubPath)
	} else {
		common.Logger().Info("usage log using local file", "path", cfg.LogFile)
	}
	return store, nil
}

// Write persists the full record list, satisfying session.Flusher.
func (s *Store) Write(ctx context.Context, records []session.UsageRecord) error {
	if s.remote == nil {
		telemetry.RecordFlush(0, false)
		return s.file.Write(ctx, records)
	}
	conflicts, err := s.remote.Write(ctx, records)
	if err == nil {
		telemetry.RecordFlush(conflicts, false)
		return nil
	}
	common.Logger().Warn("remote usage log write failed, using local file",
		"error", err, "conflicts", conflicts)
	telemetry.RecordFlush(conflicts, true)
	return s.file.Write(ctx, records)
}

// Load seeds the in-memory record list at startup. The remote copy wins when
// available; otherwise the local fallback file is read.
func (s *Store) Load(ctx context.Context) ([]session.UsageRecord, error) {
	if s.remote != nil {
		records, err := s.remote.Load(ctx)
		if err == nil {
			return records, nil
		}
		common.Logger().Warn("remote usage log load failed, trying local file", "error", err)
	}
	return s.file.Load(ctx)
}
