// internal/syncer/syncer.go
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bitbucket-commit-mirror/internal/checkpoint"
	"bitbucket-commit-mirror/internal/model"
	"bitbucket-commit-mirror/internal/timeutil"
)

const (
	// System tags outgoing events for downstream consumers.
	System = "bitbucket-commits"

	// keySystem prefixes checkpoint keys. Shared with older deployments,
	// must stay stable.
	keySystem = "bitbucket"
)

// Upstream is the slice of the API client the syncer consumes.
type Upstream interface {
	Repositories(ctx context.Context) ([]model.Repository, error)
	Changesets(ctx context.Context, repo, start string) (commits []model.Commit, ok bool, err error)
}

// Emitter is the outgoing side. Delivery failures are the emitter's problem;
// the syncer only decides what to emit and when to force a flush.
type Emitter interface {
	Enqueue(ctx context.Context, ev model.Event)
	FlushIfPending(ctx context.Context)
}

// Syncer walks every repository's commit history backward from the most
// recent page and emits one event per qualifying commit, remembering per
// repository how far it got.
type Syncer struct {
	upstream    Upstream
	checkpoints checkpoint.Store
	events      Emitter
	logger      *slog.Logger
	emailDomain string
	interval    time.Duration
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(upstream Upstream, checkpoints checkpoint.Store, events Emitter, logger *slog.Logger, emailDomain string, interval time.Duration) *Syncer {
	return &Syncer{
		upstream:    upstream,
		checkpoints: checkpoints,
		events:      events,
		logger:      logger,
		emailDomain: emailDomain,
		interval:    interval,
	}
}

// Start runs sync cycles until the context is cancelled, one immediately and
// then one per interval.
func (s *Syncer) Start(ctx context.Context) {
	s.logger.Info("Starting syncer", "interval", s.interval.String(), "email_domain", s.emailDomain)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Sync cycle failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Sync cycle failed", "error", err)
			}
		case <-ctx.Done():
			s.logger.Info("Syncer shutting down", "reason", ctx.Err())
			return
		}
	}
}

// RunOnce performs one full sync cycle over the upstream listing. Repositories
// are handled strictly one after another, each ending with its own forced
// flush, so a batch never mixes repositories from different traversals that
// could be interrupted independently. Transport and store failures abort the
// cycle; checkpoints already persisted stay put, so a re-run is safe.
func (s *Syncer) RunOnce(ctx context.Context) error {
	s.logger.Info("Starting sync cycle")

	repos, err := s.upstream.Repositories(ctx)
	if err != nil {
		return err
	}

	for _, repo := range repos {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if repo.Slug == "" {
			continue
		}
		if err := s.syncRepository(ctx, repo); err != nil {
			return fmt.Errorf("sync of %s failed: %w", repo.Slug, err)
		}
	}

	s.logger.Info("Sync cycle finished", "repositories", len(repos))
	return nil
}

// syncRepository decides whether a repository needs syncing, runs the page
// walk, persists the advanced checkpoint and forces a final flush.
func (s *Syncer) syncRepository(ctx context.Context, repo model.Repository) error {
	logger := s.logger.With("repo", repo.Slug)
	key := checkpoint.Key(keySystem, repo.Slug)

	since := timeutil.Epoch
	if stored, ok, err := s.checkpoints.Get(ctx, key); err != nil {
		return err
	} else if ok {
		parsed, err := timeutil.Parse(stored)
		if err != nil {
			// A corrupt checkpoint falls back to a full re-scan; downstream
			// tolerates the duplicate events.
			logger.Warn("Unreadable stored checkpoint, re-syncing from epoch", "stored", stored, "error", err)
		} else {
			since = parsed
		}
	}

	if lastUpdated, err := timeutil.Parse(repo.LastUpdated); err != nil {
		logger.Warn("Unreadable last_updated on listing entry, syncing anyway", "last_updated", repo.LastUpdated)
	} else if !since.Before(lastUpdated) {
		logger.Debug("Repository unchanged since checkpoint, skipping")
		return nil
	}

	logger.Info("Syncing repository", "since", timeutil.FormatCheckpoint(since))

	bestSeen, err := s.walkHistory(ctx, repo.Slug, since)
	if err != nil {
		return err
	}

	if err := s.checkpoints.Set(ctx, key, timeutil.FormatCheckpoint(bestSeen)); err != nil {
		return err
	}
	s.events.FlushIfPending(ctx)

	logger.Info("Repository synced", "checkpoint", timeutil.FormatCheckpoint(bestSeen))
	return nil
}

// walkHistory pages backward through a repository's commit history, most
// recent first, and returns the highest commit timestamp observed (never
// below since). Filtered commits still advance the returned watermark; only
// commits strictly after since emit events. The walk stops at the checkpoint
// boundary, at a missing or empty page, or when a page echoes back nothing
// but the cursor commit.
func (s *Syncer) walkHistory(ctx context.Context, repo string, since time.Time) (time.Time, error) {
	bestSeen := since
	cursor := ""

	for {
		commits, ok, err := s.upstream.Changesets(ctx, repo, cursor)
		if err != nil {
			return bestSeen, err
		}
		if !ok || len(commits) == 0 {
			return bestSeen, nil
		}

		// The next page request is anchored at this page's most recent
		// commit; the upstream walks backward from there.
		cursor = commits[0].Node

		for _, c := range commits {
			if c.UTCTimestamp.After(bestSeen) {
				bestSeen = c.UTCTimestamp
			}

			email, found := authorEmail(c.RawAuthor)
			if !found || !strings.HasSuffix(email, s.emailDomain) {
				continue
			}

			if !c.UTCTimestamp.After(since) {
				// The boundary commit and everything older were already
				// processed in a previous run.
				return bestSeen, nil
			}

			s.events.Enqueue(ctx, model.Event{
				System:    System,
				Timestamp: c.RawUTCTimestamp,
				Username:  email,
				Data:      repo,
				IsUTC:     true,
				TZInfo:    timeutil.OffsetBetween(c.UTCTimestamp, c.LocalTimestamp),
			})
		}

		// A single-commit page is the cursor commit echoed back with no new
		// history behind it. On the very first page this doubles as a
		// one-commit repository, which has just been scanned above, so
		// stopping here is right in both readings.
		if len(commits) == 1 {
			return bestSeen, nil
		}
	}
}

// authorEmail extracts the address from a "Name <email>" author string.
func authorEmail(raw string) (string, bool) {
	i := strings.Index(raw, "<")
	if i < 0 {
		return "", false
	}
	return strings.ReplaceAll(raw[i+1:], ">", ""), true
}
