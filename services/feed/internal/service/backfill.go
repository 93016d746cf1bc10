package service

import (
	"context"
	"fmt"
	"log/slog"
)

// BackfillOptions tune a bulk materialization run.
type BackfillOptions struct {
	// PageSize is how many user ids are fetched per keyset page.
	PageSize int

	// Max caps how many users are processed; 0 means no cap.
	Max int

	// Resequence renumbers existing feeds instead of re-ranking them.
	Resequence bool
}

// BackfillUser materializes (or resequences) one user's feed.
func (s *FeedService) BackfillUser(ctx context.Context, userID string, resequence bool) error {
	if resequence {
		return s.Resequence(ctx, userID)
	}
	_, err := s.Materialize(ctx, userID)
	return err
}

// BackfillAuthor walks the followers of one author and rebuilds each of their
// feeds. Returns how many users were processed.
func (s *FeedService) BackfillAuthor(ctx context.Context, authorID string, opts BackfillOptions) (int, error) {
	return s.walk(ctx, opts, func(ctx context.Context, afterID string) ([]string, error) {
		return s.repo.FollowerIDs(ctx, authorID, afterID, opts.PageSize)
	})
}

// BackfillAll walks every user with at least one follow edge and rebuilds
// their feeds. Returns how many users were processed.
func (s *FeedService) BackfillAll(ctx context.Context, opts BackfillOptions) (int, error) {
	return s.walk(ctx, opts, func(ctx context.Context, afterID string) ([]string, error) {
		return s.repo.ActiveUserIDs(ctx, afterID, opts.PageSize)
	})
}

// walk pages user ids by keyset and processes each one. A single user failing
// aborts the run so a retry resumes from logs rather than silently skipping.
func (s *FeedService) walk(ctx context.Context, opts BackfillOptions, page func(ctx context.Context, afterID string) ([]string, error)) (int, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}

	var (
		afterID   string
		processed int
	)
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		ids, err := page(ctx, afterID)
		if err != nil {
			return processed, fmt.Errorf("page user ids after %q: %w", afterID, err)
		}
		if len(ids) == 0 {
			return processed, nil
		}

		for _, id := range ids {
			if err := s.BackfillUser(ctx, id, opts.Resequence); err != nil {
				return processed, fmt.Errorf("backfill user %s: %w", id, err)
			}
			processed++
			if opts.Max > 0 && processed >= opts.Max {
				return processed, nil
			}
		}

		afterID = ids[len(ids)-1]
		s.logger.InfoContext(ctx, "backfill page done",
			slog.Int("processed", processed),
			slog.String("after_id", afterID),
		)
		if len(ids) < opts.PageSize {
			return processed, nil
		}
	}
}
