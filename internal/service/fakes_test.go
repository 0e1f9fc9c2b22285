package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"brightsteps/internal/models"
	"brightsteps/internal/progress"
	"brightsteps/internal/repository"
)

type scoreKey struct{ child, trait int64 }
type completionKey struct{ child, challenge int64 }

// memStore is an in-memory implementation of every collaborator
type memStore struct {
	mu          sync.Mutex
	nextChildID int64
	children    map[int64]models.Child
	challenges  []models.Challenge
	weights     map[int64][]models.ChallengeTraitWeight
	rewards     []models.RewardDefinition
	traits      []models.Trait
	pillars     []models.Pillar
	completions map[completionKey]models.CompletionEvent
	scores      map[scoreKey]float64
	applied     map[string][]progress.TraitAward
	ledger      []models.XPAward

	failFetch error
}

func newMemStore() *memStore {
	return &memStore{
		children:    make(map[int64]models.Child),
		weights:     make(map[int64][]models.ChallengeTraitWeight),
		completions: make(map[completionKey]models.CompletionEvent),
		scores:      make(map[scoreKey]float64),
		applied:     make(map[string][]progress.TraitAward),
	}
}

func (m *memStore) GetChildByID(_ context.Context, childID int64) (*models.Child, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.children[childID]
	if !ok {
		return nil, progress.NotFound("get child", "child %d", childID)
	}
	return &c, nil
}

func (m *memStore) ListChildren(context.Context) ([]models.Child, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Child
	for _, c := range m.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateChild(_ context.Context, name, ageRange, parentEmail string) (*models.Child, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextChildID++
	c := models.Child{ID: m.nextChildID, Name: name, AgeRange: ageRange, ParentEmail: parentEmail}
	m.children[c.ID] = c
	return &c, nil
}

func (m *memStore) FetchCompletions(_ context.Context, childID int64) ([]models.CompletionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFetch != nil {
		return nil, m.failFetch
	}
	var out []models.CompletionEvent
	for k, e := range m.completions {
		if k.child == childID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) GetCompletion(_ context.Context, childID, challengeID int64) (*models.CompletionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.completions[completionKey{childID, challengeID}]
	if !ok {
		return nil, progress.NotFound("get completion", "child %d challenge %d", childID, challengeID)
	}
	return &e, nil
}

func (m *memStore) UpsertCompletion(_ context.Context, event models.CompletionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := completionKey{event.ChildID, event.ChallengeID}
	if cur, ok := m.completions[key]; ok && !event.CompletedAt.After(cur.CompletedAt) {
		return nil
	}
	m.completions[key] = event
	return nil
}

// microsecondStore stores timestamps at the precision PostgreSQL and MySQL keep
type microsecondStore struct {
	*memStore
}

func (s microsecondStore) UpsertCompletion(ctx context.Context, event models.CompletionEvent) error {
	event.CompletedAt = event.CompletedAt.Truncate(time.Microsecond)
	return s.memStore.UpsertCompletion(ctx, event)
}

func (m *memStore) FetchChallengeCatalog(_ context.Context, ageRange string) ([]models.Challenge, error) {
	var out []models.Challenge
	for _, c := range m.challenges {
		if ageRange == "" || c.AgeRange == ageRange {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) GetChallenge(_ context.Context, challengeID int64) (*models.Challenge, error) {
	for _, c := range m.challenges {
		if c.ID == challengeID {
			c := c
			return &c, nil
		}
	}
	return nil, progress.NotFound("get challenge", "challenge %d", challengeID)
}

func (m *memStore) FetchTraitWeights(_ context.Context, challengeID int64) ([]models.ChallengeTraitWeight, error) {
	return m.weights[challengeID], nil
}

func (m *memStore) FetchRewardCatalog(context.Context) ([]models.RewardDefinition, error) {
	return m.rewards, nil
}

func (m *memStore) ListTraits(context.Context) ([]models.Trait, error) {
	return m.traits, nil
}

func (m *memStore) ListPillars(context.Context) ([]models.Pillar, error) {
	return m.pillars, nil
}

func (m *memStore) FetchTraitScores(_ context.Context, childID int64) ([]models.TraitScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TraitScore
	for k, v := range m.scores {
		if k.child == childID {
			out = append(out, models.TraitScore{ChildID: childID, TraitID: k.trait, Score: v})
		}
	}
	return out, nil
}

func (m *memStore) FetchAwards(_ context.Context, childID int64, since time.Time) ([]models.XPAward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.XPAward
	for _, a := range m.ledger {
		if a.ChildID == childID && !a.AwardedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ApplyXPAwards(_ context.Context, app repository.XPApplication) ([]progress.TraitAward, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%d|%s", app.ChildID, app.EventKey)
	if awards, ok := m.applied[key]; ok {
		return awards, false, nil
	}
	awards := []progress.TraitAward{}
	for _, d := range app.Deltas {
		k := scoreKey{app.ChildID, d.TraitID}
		m.scores[k] += float64(d.Delta)
		awards = append(awards, progress.TraitAward{TraitID: d.TraitID, Delta: d.Delta, NewTotal: m.scores[k]})
		m.ledger = append(m.ledger, models.XPAward{
			ChildID: app.ChildID, EventKey: app.EventKey, ChallengeID: app.ChallengeID,
			TraitID: d.TraitID, Delta: d.Delta, AwardedAt: app.AwardedAt,
		})
	}
	m.applied[key] = awards
	return awards, true, nil
}

// recordingNotifier captures reward notifications
type recordingNotifier struct {
	mu    sync.Mutex
	calls [][]models.RewardDefinition
	err   error
}

func (n *recordingNotifier) NotifyRewardsUnlocked(_ context.Context, _ models.Child, rewards []models.RewardDefinition) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, rewards)
	return n.err
}

var errStoreDown = errors.New("connection refused")
