package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arisefit/arise/server/cache"
)

// Kind distinguishes what a timed session is counting down for.
type Kind string

const (
	KindWorkout Kind = "workout"
	KindQuest   Kind = "quest"
)

// Session is the durable record of one in-progress timed activity.
// At most one session exists per account (single slot, not a collection).
type Session struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	TargetID    int64      `json:"target_id"`
	StartedAt   time.Time  `json:"started_at"`
	DurationMs  int64      `json:"duration_ms"`
	RemainingMs int64      `json:"remaining_ms"`
	EndedAt     *time.Time `json:"ended_at"`
	Active      bool       `json:"active"`
}

// Store persists the single session slot for an account.
type Store interface {
	// Load returns the stored session, or nil if the slot is empty.
	Load(ctx context.Context, accountID int64) (*Session, error)
	Save(ctx context.Context, accountID int64, s *Session) error
	Clear(ctx context.Context, accountID int64) error
}

// CacheStore is a Store backed by the shared cache.
type CacheStore struct {
	c cache.Cache
}

// NewCacheStore creates a cache-backed session store.
func NewCacheStore(c cache.Cache) *CacheStore {
	return &CacheStore{c: c}
}

func sessionKey(accountID int64) string {
	return fmt.Sprintf("activity:session:%d", accountID)
}

func (s *CacheStore) Load(ctx context.Context, accountID int64) (*Session, error) {
	key := sessionKey(accountID)
	exists, err := s.c.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	raw, err := s.c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *CacheStore) Save(ctx context.Context, accountID int64, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	// The slot outlives the session so a restart can detect interruption;
	// the TTL only bounds abandoned tombstones.
	return s.c.Set(ctx, sessionKey(accountID), string(raw), 24*time.Hour)
}

func (s *CacheStore) Clear(ctx context.Context, accountID int64) error {
	return s.c.Del(ctx, sessionKey(accountID))
}
