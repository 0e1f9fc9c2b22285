package models

import (
	"strconv"
	"time"
)

// CompletionEvent records that a child completed a challenge.
// One row exists per (child, challenge); re-completing moves CompletedAt.
type CompletionEvent struct {
	ChildID     int64     `json:"child_id"`
	ChallengeID int64     `json:"challenge_id"`
	PillarID    int       `json:"pillar_id"`
	CompletedAt time.Time `json:"completed_at"`
	Feeling     *int      `json:"feeling,omitempty"` // 1-5, optional
}

// EventKey identifies this specific completion for XP processing. It keeps
// microseconds only, the finest precision every supported database stores.
func (e CompletionEvent) EventKey() string {
	return strconv.FormatInt(e.ChallengeID, 10) + "@" + e.CompletedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
}

// TraitScore is the cumulative XP a child holds in one trait
type TraitScore struct {
	ChildID int64
	TraitID int64
	Score   float64
}

// XPAward is one ledger row: the XP a single completion event gave a trait
type XPAward struct {
	ChildID     int64
	EventKey    string
	ChallengeID int64
	TraitID     int64
	Delta       int
	AwardedAt   time.Time
}
