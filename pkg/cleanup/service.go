// Package cleanup implements CleanupService: the synchronous, ordered
// cascade-delete that follows a project document delete (CascadeDelete),
// plus a cron-scheduled periodic sweep that catches Artifact-Store
// prefixes left behind by a cascade that crashed partway through.
package cleanup

import (
	"context"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/taskforge/platform/pkg/artifacts"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/store"
)

// Service periodically scans the Artifact Store's audit/ and artifacts/
// roots for project prefixes whose owning Project no longer exists, and
// deletes them. CascadeDelete already removes these prefixes synchronously
// for the common case; this sweep is a backstop for a cascade that died
// mid-run before reaching its Artifact-Store cleanup step.
type Service struct {
	store     store.Store
	artifacts artifacts.Store
	schedule  string

	cron *cron.Cron
}

// NewService builds a Service that sweeps on the given cron schedule
// (standard 5-field expression; e.g. "0 * * * *" for hourly).
func NewService(s store.Store, a artifacts.Store, schedule string) *Service {
	return &Service{store: s, artifacts: a, schedule: schedule}
}

// Start launches the cron-scheduled sweep loop.
func (s *Service) Start(ctx context.Context) error {
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.sweep(ctx) }); err != nil {
		return err
	}
	s.cron = c
	s.cron.Start()
	slog.Info("cleanup: orphan-artifact sweep started", "schedule", s.schedule)
	return nil
}

// Stop halts the cron scheduler and waits for any in-flight sweep to finish.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.cron = nil
	slog.Info("cleanup: orphan-artifact sweep stopped")
}

// sweep runs one pass over both Artifact-Store roots.
func (s *Service) sweep(ctx context.Context) {
	liveLower, liveExact, err := s.liveProjectIDs(ctx)
	if err != nil {
		slog.Error("cleanup: sweep failed to load live projects", "error", err)
		return
	}
	s.sweepRoot(ctx, "audit/", liveLower)
	s.sweepRoot(ctx, "artifacts/", liveExact)
}

func (s *Service) liveProjectIDs(ctx context.Context) (lower, exact map[string]bool, err error) {
	docs, err := s.store.Find(ctx, models.CollectionProjects, store.Filter{}, func() store.Document { return &models.Project{} })
	if err != nil {
		return nil, nil, err
	}
	lower = make(map[string]bool, len(docs))
	exact = make(map[string]bool, len(docs))
	for _, d := range docs {
		exact[d.GetID()] = true
		lower[strings.ToLower(d.GetID())] = true
	}
	return lower, exact, nil
}

func (s *Service) sweepRoot(ctx context.Context, root string, live map[string]bool) {
	segments, err := s.artifacts.ListPrefixes(ctx, root)
	if err != nil {
		slog.Error("cleanup: list prefixes failed", "root", root, "error", err)
		return
	}
	for _, segment := range segments {
		if live[segment] {
			continue
		}
		prefix := root + segment + "/"
		if err := s.artifacts.DeletePrefix(ctx, prefix); err != nil {
			slog.Error("cleanup: orphan prefix deletion failed", "prefix", prefix, "error", err)
			continue
		}
		slog.Info("cleanup: removed orphaned artifact prefix", "prefix", prefix)
	}
}
