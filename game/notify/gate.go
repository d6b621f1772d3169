package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/arisefit/arise/server/cache"
	"github.com/arisefit/arise/server/game/quest"
	"github.com/arisefit/arise/server/model"
	"github.com/arisefit/arise/server/observability"
	"go.uber.org/zap"
)

// Fetcher supplies today's quest when the gate decides to show the prompt.
type Fetcher interface {
	Today(ctx context.Context, accountID int64, now time.Time) (*model.Quest, error)
}

// Gate decides whether to surface the daily quest prompt.
//
// The prompt fires at most once per account per calendar day, unless a
// fresh-login one-shot signal or an expired snooze re-arms it. The
// "seen" marker is only written after the quest fetch succeeds, so a
// transient fetch failure leaves the gate retryable.
type Gate struct {
	c       cache.Cache
	fetcher Fetcher
	snooze  time.Duration
	logger  *zap.Logger

	mu        sync.Mutex
	loginSeen map[int64]bool // one-shot signals, in-process only
}

// NewGate creates a notification gate.
func NewGate(c cache.Cache, fetcher Fetcher, snooze time.Duration, logger *zap.Logger) *Gate {
	if snooze <= 0 {
		snooze = time.Hour
	}
	return &Gate{
		c:         c,
		fetcher:   fetcher,
		snooze:    snooze,
		logger:    logger,
		loginSeen: make(map[int64]bool),
	}
}

func seenKey(accountID int64, day string) string {
	return fmt.Sprintf("quest_notif:seen:%d:%s", accountID, day)
}

func remindKey(accountID int64) string {
	return fmt.Sprintf("quest_notif:remind:%d", accountID)
}

// QueueLoginSignal arms the one-shot prompt for a freshly logged-in account.
func (g *Gate) QueueLoginSignal(accountID int64) {
	g.mu.Lock()
	g.loginSeen[accountID] = true
	g.mu.Unlock()
}

func (g *Gate) takeLoginSignal(accountID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loginSeen[accountID] {
		delete(g.loginSeen, accountID)
		return true
	}
	return false
}

func (g *Gate) requeueLoginSignal(accountID int64) {
	g.mu.Lock()
	g.loginSeen[accountID] = true
	g.mu.Unlock()
}

// Evaluate decides whether to show the quest prompt now. When it decides
// to show, it fetches today's quest, marks the day as seen and clears any
// consumed one-shot signal. On fetch failure nothing is marked and a
// consumed one-shot signal is restored.
func (g *Gate) Evaluate(ctx context.Context, accountID int64, now time.Time) (*model.Quest, bool, error) {
	day := quest.DayKey(now)
	oneShot := g.takeLoginSignal(accountID)

	show := oneShot
	if !show {
		seen, err := g.c.Exists(ctx, seenKey(accountID, day))
		if err != nil {
			return nil, false, err
		}
		if !seen {
			due, err := g.remindDue(ctx, accountID, now)
			if err != nil {
				return nil, false, err
			}
			show = due
		}
	}
	if !show {
		return nil, false, nil
	}

	q, err := g.fetcher.Today(ctx, accountID, now)
	if err != nil {
		if oneShot {
			g.requeueLoginSignal(accountID)
		}
		return nil, false, err
	}

	// Seen marker expires at the next day boundary on its own.
	ttl := quest.NextUnlock(now).Sub(now)
	if err := g.c.Set(ctx, seenKey(accountID, day), "1", ttl); err != nil {
		g.logger.Warn("failed to mark quest prompt seen",
			zap.Int64("account_id", accountID), zap.Error(err))
	}
	observability.RecordPromptShown()
	return q, true, nil
}

// remindDue reports whether no snooze is set or the snooze has expired.
func (g *Gate) remindDue(ctx context.Context, accountID int64, now time.Time) (bool, error) {
	key := remindKey(accountID)
	exists, err := g.c.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if !exists {
		return true, nil
	}
	raw, err := g.c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	at, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Unreadable marker; drop it rather than wedge the prompt.
		_ = g.c.Del(ctx, key)
		return true, nil
	}
	return now.UnixMilli() >= at, nil
}

// RemindLater snoozes the prompt until now plus the configured interval.
// It does not mark the day as seen.
func (g *Gate) RemindLater(ctx context.Context, accountID int64, now time.Time) (time.Time, error) {
	at := now.Add(g.snooze)
	err := g.c.Set(ctx, remindKey(accountID), strconv.FormatInt(at.UnixMilli(), 10), g.snooze+time.Minute)
	if err != nil {
		return time.Time{}, err
	}
	return at, nil
}
