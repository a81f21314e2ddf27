package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campushub/gamification/internal/domain/gamification"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT CATALOG
// Read access to the set of unlockable achievements. The catalog does not
// interpret unlock conditions; that is the evaluator's job.
// ══════════════════════════════════════════════════════════════════════════════

// Catalog exposes active and unearned achievements.
type Catalog struct {
	repo   gamification.AchievementRepository
	logger *slog.Logger
}

// NewCatalog creates a Catalog.
func NewCatalog(repo gamification.AchievementRepository, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		repo:   repo,
		logger: logger.With("component", "achievement_catalog"),
	}
}

// Active returns active achievements ordered by type, tier and name.
func (c *Catalog) Active(ctx context.Context) ([]*gamification.Achievement, error) {
	list, err := c.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active achievements: %w", err)
	}
	return list, nil
}

// All returns the full catalog including inactive entries.
func (c *Catalog) All(ctx context.Context) ([]*gamification.Achievement, error) {
	list, err := c.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return list, nil
}

// Get returns one achievement.
func (c *Catalog) Get(ctx context.Context, id string) (*gamification.Achievement, error) {
	return c.repo.GetByID(ctx, id)
}

// UnearnedFor returns the active achievements the user does not hold yet,
// in catalog order.
func (c *Catalog) UnearnedFor(ctx context.Context, userID string) ([]*gamification.Achievement, error) {
	active, err := c.Active(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}

	earnedIDs, err := c.repo.EarnedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list earned achievements: %w", err)
	}

	earned := make(map[string]struct{}, len(earnedIDs))
	for _, id := range earnedIDs {
		earned[id] = struct{}{}
	}

	out := make([]*gamification.Achievement, 0, len(active))
	for _, a := range active {
		if _, ok := earned[a.ID]; ok {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// SeedReport summarises a Seed run.
type SeedReport struct {
	Created  []string
	Existing []string
}

// Seed inserts every definition that is not in the catalog yet, matching on
// code. Existing entries are left untouched so admin edits survive.
func (c *Catalog) Seed(ctx context.Context, defs []*gamification.Achievement) (*SeedReport, error) {
	report := &SeedReport{}

	for _, def := range defs {
		created, err := c.repo.GetOrCreate(ctx, def)
		if err != nil {
			return report, fmt.Errorf("seed %q: %w", def.Name, err)
		}
		if created {
			report.Created = append(report.Created, def.Name)
			c.logger.Info("achievement created", "code", def.Code, "name", def.Name)
		} else {
			report.Existing = append(report.Existing, def.Name)
			c.logger.Debug("achievement already exists", "code", def.Code)
		}
	}

	return report, nil
}
