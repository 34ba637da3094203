// Package gitsync commits saved daily notes to the git repository holding the
// vault, optionally pushing them to the configured remote.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

const queueSize = 64

// Config controls commit authorship and pushing.
type Config struct {
	AuthorName  string
	AuthorEmail string
	Push        bool
	Remote      string
	SSHKeyPath  string
}

type job struct {
	path    string
	message string
}

// Syncer commits files of one git worktree. Commits requested through
// Enqueue are performed by Run, one at a time.
type Syncer struct {
	repo   *git.Repository
	root   string
	cfg    Config
	logger *slog.Logger
	queue  chan job
	now    func() time.Time
}

// Open opens the repository containing path. The vault may be a
// subdirectory of the worktree.
func Open(path string, cfg Config, logger *slog.Logger) (*Syncer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("gitsync: resolve path: %w", err)
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("gitsync: open repo: %w", err)
	}
	w, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("gitsync: worktree: %w", err)
	}
	if cfg.AuthorName == "" {
		cfg.AuthorName = "planpanel"
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = "planpanel@localhost"
	}
	if cfg.Remote == "" {
		cfg.Remote = git.DefaultRemoteName
	}
	return &Syncer{
		repo:   repo,
		root:   w.Filesystem.Root(),
		cfg:    cfg,
		logger: logger,
		queue:  make(chan job, queueSize),
		now:    time.Now,
	}, nil
}

// Enqueue schedules a commit of the file at path. It never blocks; when the
// queue is full the request is dropped and the file is picked up by the next
// commit touching it.
func (s *Syncer) Enqueue(path, message string) {
	select {
	case s.queue <- job{path: path, message: message}:
	default:
		s.logger.Warn("gitsync: queue full, commit dropped", slog.String("path", path))
	}
}

// Run performs queued commits until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-s.queue:
			hash, err := s.Commit(j.path, j.message)
			switch {
			case errors.Is(err, git.ErrEmptyCommit):
				s.logger.Debug("gitsync: nothing to commit", slog.String("path", j.path))
				continue
			case err != nil:
				s.logger.Warn("gitsync: commit failed", slog.String("path", j.path), slog.String("error", err.Error()))
				continue
			}
			s.logger.Info("gitsync: committed", slog.String("path", j.path), slog.String("hash", hash.String()))

			if s.cfg.Push {
				if err := s.Push(ctx); err != nil {
					s.logger.Warn("gitsync: push failed", slog.String("error", err.Error()))
				}
			}
		}
	}
}

// Commit stages the file at path and commits it. An unchanged file yields
// git.ErrEmptyCommit.
func (s *Syncer) Commit(path, message string) (plumbing.Hash, error) {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(s.root, path)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("gitsync: relative path: %w", err)
		}
		rel = r
	}
	rel = filepath.ToSlash(rel)

	w, err := s.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("gitsync: worktree: %w", err)
	}
	if _, err := w.Add(rel); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("gitsync: add %s: %w", rel, err)
	}
	if message == "" {
		message = fmt.Sprintf("planpanel: update %s", rel)
	}
	hash, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.cfg.AuthorName,
			Email: s.cfg.AuthorEmail,
			When:  s.now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("gitsync: commit: %w", err)
	}
	return hash, nil
}

// Push pushes the current branch to the configured remote.
func (s *Syncer) Push(ctx context.Context) error {
	opts := &git.PushOptions{RemoteName: s.cfg.Remote}
	auth, err := s.auth()
	if err != nil {
		return err
	}
	opts.Auth = auth

	err = s.repo.PushContext(ctx, opts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("gitsync: push: %w", err)
	}
	return nil
}

// auth returns public-key auth when an SSH key is configured, nil otherwise.
func (s *Syncer) auth() (transport.AuthMethod, error) {
	if s.cfg.SSHKeyPath == "" {
		return nil, nil
	}
	keys, err := ssh.NewPublicKeysFromFile("git", s.cfg.SSHKeyPath, "")
	if err != nil {
		return nil, fmt.Errorf("gitsync: load ssh key: %w", err)
	}
	return keys, nil
}
