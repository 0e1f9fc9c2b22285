package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"brightsteps/internal/logger"
	"brightsteps/internal/metrics"
	"brightsteps/internal/models"
	"brightsteps/internal/progress"
	"brightsteps/internal/repository"
	"brightsteps/internal/validation"
)

// ChildStore reads and creates child profiles
type ChildStore interface {
	GetChildByID(ctx context.Context, childID int64) (*models.Child, error)
	ListChildren(ctx context.Context) ([]models.Child, error)
	CreateChild(ctx context.Context, name, ageRange, parentEmail string) (*models.Child, error)
}

// EventStore holds challenge completions
type EventStore interface {
	FetchCompletions(ctx context.Context, childID int64) ([]models.CompletionEvent, error)
	GetCompletion(ctx context.Context, childID, challengeID int64) (*models.CompletionEvent, error)
	UpsertCompletion(ctx context.Context, event models.CompletionEvent) error
}

// CatalogStore serves the static reference data
type CatalogStore interface {
	FetchChallengeCatalog(ctx context.Context, ageRange string) ([]models.Challenge, error)
	GetChallenge(ctx context.Context, challengeID int64) (*models.Challenge, error)
	FetchTraitWeights(ctx context.Context, challengeID int64) ([]models.ChallengeTraitWeight, error)
	FetchRewardCatalog(ctx context.Context) ([]models.RewardDefinition, error)
	ListTraits(ctx context.Context) ([]models.Trait, error)
	ListPillars(ctx context.Context) ([]models.Pillar, error)
}

// TraitStore holds trait scores and the XP ledger. ApplyXPAwards must be
// atomic and idempotent per event key.
type TraitStore interface {
	FetchTraitScores(ctx context.Context, childID int64) ([]models.TraitScore, error)
	FetchAwards(ctx context.Context, childID int64, since time.Time) ([]models.XPAward, error)
	ApplyXPAwards(ctx context.Context, app repository.XPApplication) ([]progress.TraitAward, bool, error)
}

// Notifier tells parents about newly earned rewards
type Notifier interface {
	NotifyRewardsUnlocked(ctx context.Context, child models.Child, rewards []models.RewardDefinition) error
}

// ProgressService fetches a child's history from its collaborators and runs
// the progression engine over it. It keeps no state between calls.
type ProgressService struct {
	children ChildStore
	events   EventStore
	catalog  CatalogStore
	traits   TraitStore
	notifier Notifier
	opts     progress.Options
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewProgressService creates a new progress service. notifier and m may be nil.
func NewProgressService(children ChildStore, events EventStore, catalog CatalogStore, traits TraitStore,
	notifier Notifier, opts progress.Options, log *logger.Logger, m *metrics.Metrics) *ProgressService {
	return &ProgressService{
		children: children,
		events:   events,
		catalog:  catalog,
		traits:   traits,
		notifier: notifier,
		opts:     opts,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// CompletionResult is what recording a completion produced
type CompletionResult struct {
	Completion  models.CompletionEvent    `json:"completion"`
	XP          []progress.TraitAward     `json:"xp"`
	NewlyEarned []models.RewardDefinition `json:"newly_earned"`
}

// snapshot holds the collaborator data one computation needs
type snapshot struct {
	child   *models.Child
	events  []models.CompletionEvent
	catalog []models.Challenge
	rewards []models.RewardDefinition
	traits  []models.Trait
	scores  []models.TraitScore
	awards  []models.XPAward
}

type want struct {
	events, rewards, traits bool
}

// load fetches the child first, then everything else in parallel. Any failed
// fetch fails the whole computation.
func (s *ProgressService) load(ctx context.Context, op string, childID int64, asOf time.Time, w want) (*snapshot, error) {
	child, err := s.children.GetChildByID(ctx, childID)
	if err != nil {
		return nil, progress.Upstream(op, err)
	}
	snap := &snapshot{child: child}

	g, gctx := errgroup.WithContext(ctx)
	if w.events {
		g.Go(func() error {
			events, err := s.events.FetchCompletions(gctx, childID)
			snap.events = events
			return err
		})
		g.Go(func() error {
			catalog, err := s.catalog.FetchChallengeCatalog(gctx, child.AgeRange)
			snap.catalog = catalog
			return err
		})
	}
	if w.rewards {
		g.Go(func() error {
			rewards, err := s.catalog.FetchRewardCatalog(gctx)
			snap.rewards = rewards
			return err
		})
	}
	if w.traits {
		g.Go(func() error {
			traits, err := s.catalog.ListTraits(gctx)
			snap.traits = traits
			return err
		})
		g.Go(func() error {
			scores, err := s.traits.FetchTraitScores(gctx, childID)
			snap.scores = scores
			return err
		})
		g.Go(func() error {
			awards, err := s.traits.FetchAwards(gctx, childID, asOf.Add(-s.opts.TrendWindow))
			snap.awards = awards
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, progress.Upstream(op, err)
	}
	return snap, nil
}

func (s *ProgressService) asOf(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

// ComputeProgressSummary derives streaks, weekly count, pillar progress and
// the milestone ladder for a child
func (s *ProgressService) ComputeProgressSummary(ctx context.Context, childID int64, asOf time.Time) (progress.ProgressSummary, error) {
	asOf = s.asOf(asOf)
	snap, err := s.load(ctx, "compute progress summary", childID, asOf, want{events: true})
	if err != nil {
		return progress.ProgressSummary{}, err
	}
	agg := progress.Aggregate(snap.events, snap.catalog, asOf, s.opts)
	return progress.SummaryFromAggregates(agg), nil
}

// ComputeRewardsState evaluates the reward catalog for a child
func (s *ProgressService) ComputeRewardsState(ctx context.Context, childID int64, asOf time.Time) (progress.RewardsState, error) {
	asOf = s.asOf(asOf)
	snap, err := s.load(ctx, "compute rewards state", childID, asOf, want{events: true, rewards: true})
	if err != nil {
		return progress.RewardsState{}, err
	}
	return progress.EvaluateRewards(snap.rewards, progress.Aggregate(snap.events, snap.catalog, asOf, s.opts)), nil
}

// ComputeTraitPanel classifies a child's trait scores and picks the trend traits
func (s *ProgressService) ComputeTraitPanel(ctx context.Context, childID int64, asOf time.Time) (progress.TraitPanel, error) {
	asOf = s.asOf(asOf)
	snap, err := s.load(ctx, "compute trait panel", childID, asOf, want{traits: true})
	if err != nil {
		return progress.TraitPanel{}, err
	}
	return progress.AssembleTraitPanel(snap.traits, snap.scores, snap.awards, asOf, s.opts), nil
}

// ComputeDashboard returns summary, rewards and trait panel from one fetch
func (s *ProgressService) ComputeDashboard(ctx context.Context, childID int64, asOf time.Time) (progress.Dashboard, error) {
	asOf = s.asOf(asOf)
	snap, err := s.load(ctx, "compute dashboard", childID, asOf, want{events: true, rewards: true, traits: true})
	if err != nil {
		return progress.Dashboard{}, err
	}
	return progress.Assemble(progress.Inputs{
		Events:  snap.events,
		Catalog: snap.catalog,
		Rewards: snap.rewards,
		Traits:  snap.traits,
		Scores:  snap.scores,
		Awards:  snap.awards,
		AsOf:    asOf,
	}, s.opts), nil
}

// ApplyCompletionXP awards trait XP for the child's recorded completion of a
// challenge. Repeating the call for the same completion changes nothing and
// returns the awards already recorded.
func (s *ProgressService) ApplyCompletionXP(ctx context.Context, childID, challengeID int64, feeling *int) ([]progress.TraitAward, error) {
	const op = "apply completion xp"
	if feeling != nil {
		if err := progress.ValidateFeeling(*feeling); err != nil {
			return nil, err
		}
	}
	if _, err := s.children.GetChildByID(ctx, childID); err != nil {
		return nil, progress.Upstream(op, err)
	}
	event, err := s.events.GetCompletion(ctx, childID, challengeID)
	if err != nil {
		return nil, progress.Upstream(op, err)
	}
	return s.applyXP(ctx, *event, feeling)
}

func (s *ProgressService) applyXP(ctx context.Context, event models.CompletionEvent, requested *int) ([]progress.TraitAward, error) {
	const op = "apply completion xp"
	feeling, err := progress.ResolveFeeling(requested, event.Feeling)
	if err != nil {
		return nil, err
	}

	weights, err := s.catalog.FetchTraitWeights(ctx, event.ChallengeID)
	if err != nil {
		return nil, progress.Upstream(op, err)
	}
	deltas, err := progress.ComputeXPDeltas(weights, feeling)
	if err != nil {
		return nil, err
	}

	awards, applied, err := s.traits.ApplyXPAwards(ctx, repository.XPApplication{
		ChildID:     event.ChildID,
		ChallengeID: event.ChallengeID,
		EventKey:    event.EventKey(),
		Feeling:     feeling,
		AwardedAt:   event.CompletedAt,
		Deltas:      deltas,
	})
	if err != nil {
		s.metrics.XPApplication(metrics.ResultError)
		return nil, progress.Upstream(op, err)
	}

	if !applied {
		s.metrics.XPApplication(metrics.ResultDuplicate)
		s.log.Debug("XP already applied", "child_id", event.ChildID, "event_key", event.EventKey())
		return awards, nil
	}

	s.metrics.XPApplication(metrics.ResultApplied)
	total := 0
	for _, a := range awards {
		s.metrics.AddXP(strconv.FormatInt(a.TraitID, 10), a.Delta)
		total += a.Delta
	}
	s.log.Info("XP applied", "child_id", event.ChildID, "challenge_id", event.ChallengeID,
		"feeling", feeling, "traits", len(awards), "xp", total)
	return awards, nil
}

// RecordCompletion stores a completion, applies its XP and notifies the
// parent about rewards it unlocked. A failed notification is logged only.
// A completion earlier than the one already recorded for the challenge is
// rejected; repeating the recorded one changes nothing.
func (s *ProgressService) RecordCompletion(ctx context.Context, childID, challengeID int64, feeling *int, completedAt time.Time) (*CompletionResult, error) {
	const op = "record completion"
	if feeling != nil {
		if err := progress.ValidateFeeling(*feeling); err != nil {
			return nil, err
		}
	}
	now := s.now()
	if completedAt.IsZero() {
		completedAt = now
	}
	if completedAt.After(now) {
		return nil, progress.InvalidInput(op, "completed_at %s is in the future", completedAt.Format(time.RFC3339))
	}
	// stores keep microseconds; the event key must match what is read back
	completedAt = completedAt.UTC().Truncate(time.Microsecond)

	challenge, err := s.catalog.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, progress.Upstream(op, err)
	}

	existing, err := s.events.GetCompletion(ctx, childID, challengeID)
	switch {
	case err == nil && completedAt.Before(existing.CompletedAt):
		return nil, progress.InvalidInput(op, "completed_at %s is earlier than the recorded completion at %s",
			completedAt.Format(time.RFC3339), existing.CompletedAt.UTC().Format(time.RFC3339))
	case err != nil && !errors.Is(err, progress.ErrNotFound):
		return nil, progress.Upstream(op, err)
	}

	before, err := s.ComputeRewardsState(ctx, childID, now)
	if err != nil {
		return nil, err
	}

	event := models.CompletionEvent{
		ChildID:     childID,
		ChallengeID: challengeID,
		PillarID:    challenge.PillarID,
		CompletedAt: completedAt,
		Feeling:     feeling,
	}
	if existing != nil && completedAt.Equal(existing.CompletedAt) {
		// replayed request
		event = *existing
	} else if err := s.events.UpsertCompletion(ctx, event); err != nil {
		return nil, progress.Upstream(op, err)
	}

	awards, err := s.applyXP(ctx, event, feeling)
	if err != nil {
		return nil, err
	}

	after, err := s.ComputeRewardsState(ctx, childID, now)
	if err != nil {
		return nil, err
	}
	newly := progress.NewlyEarned(before, after)
	for _, r := range newly {
		s.metrics.RewardUnlocked(string(r.Type))
	}

	if len(newly) > 0 && s.notifier != nil {
		child, err := s.children.GetChildByID(ctx, childID)
		if err == nil {
			err = s.notifier.NotifyRewardsUnlocked(ctx, *child, newly)
		}
		if err != nil {
			s.log.Warn("Reward notification failed", "child_id", childID, "error", err)
		}
	}

	s.log.Info("Completion recorded", "child_id", childID, "challenge_id", challengeID, "new_rewards", len(newly))
	return &CompletionResult{Completion: event, XP: awards, NewlyEarned: newly}, nil
}

// ListChallenges returns the catalog for an age range, or all of it
func (s *ProgressService) ListChallenges(ctx context.Context, ageRange string) ([]models.Challenge, error) {
	challenges, err := s.catalog.FetchChallengeCatalog(ctx, ageRange)
	if err != nil {
		return nil, progress.Upstream("list challenges", err)
	}
	return challenges, nil
}

// ListPillars returns the fixed skill pillars in ID order
func (s *ProgressService) ListPillars(ctx context.Context) ([]models.Pillar, error) {
	pillars, err := s.catalog.ListPillars(ctx)
	if err != nil {
		return nil, progress.Upstream("list pillars", err)
	}
	return pillars, nil
}

// ListChildren returns every child profile
func (s *ProgressService) ListChildren(ctx context.Context) ([]models.Child, error) {
	children, err := s.children.ListChildren(ctx)
	if err != nil {
		return nil, progress.Upstream("list children", err)
	}
	return children, nil
}

// GetChild returns one child profile
func (s *ProgressService) GetChild(ctx context.Context, childID int64) (*models.Child, error) {
	child, err := s.children.GetChildByID(ctx, childID)
	if err != nil {
		return nil, progress.Upstream("get child", err)
	}
	return child, nil
}

// CreateChild validates and stores a new child profile
func (s *ProgressService) CreateChild(ctx context.Context, name, ageRange, parentEmail string) (*models.Child, error) {
	const op = "create child"
	name = strings.TrimSpace(name)
	ageRange = strings.TrimSpace(ageRange)
	parentEmail = strings.TrimSpace(parentEmail)

	for _, err := range []error{
		validation.ValidateName(name),
		validation.ValidateAgeRange(ageRange),
		validation.ValidateOptionalEmail(parentEmail),
	} {
		if err != nil {
			return nil, progress.InvalidInput(op, "%v", err)
		}
	}

	child, err := s.children.CreateChild(ctx, name, ageRange, parentEmail)
	if err != nil {
		return nil, progress.Upstream(op, err)
	}
	s.log.Info("Child created", "child_id", child.ID, "age_range", ageRange)
	return child, nil
}
