package quest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arisefit/arise/server/model"
	"github.com/arisefit/arise/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *model.Account) {
	db := testutil.SetupTestDB(t)
	logger, _ := zap.NewDevelopment()
	svc := NewService(db, nil, 50, logger)

	acct := &model.Account{Username: "hunter", PasswordHash: "x"}
	require.NoError(t, db.Create(acct).Error)
	return svc, acct
}

func TestToday_CreatesFromPool(t *testing.T) {
	svc, acct := newTestService(t)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.Local)

	q, err := svc.Today(context.Background(), acct.ID, now)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, q.AccountID)
	assert.Equal(t, "2026-03-15", q.QuestDate)
	assert.False(t, q.Completed)
	assert.NotEmpty(t, q.Title)
	assert.NotEmpty(t, q.Quote)
	assert.Greater(t, q.BaseReps, 0)
	assert.Greater(t, q.BaseDuration, 0)
}

func TestToday_ReturnsExisting(t *testing.T) {
	svc, acct := newTestService(t)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.Local)

	first, err := svc.Today(context.Background(), acct.ID, now)
	require.NoError(t, err)

	// Later the same day returns the same row, not a new one.
	second, err := svc.Today(context.Background(), acct.ID, now.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Title, second.Title)
}

func TestToday_NewDayNewQuest(t *testing.T) {
	svc, acct := newTestService(t)
	day1 := time.Date(2026, 3, 15, 23, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 3, 16, 1, 0, 0, 0, time.Local)

	q1, err := svc.Today(context.Background(), acct.ID, day1)
	require.NoError(t, err)
	q2, err := svc.Today(context.Background(), acct.ID, day2)
	require.NoError(t, err)
	assert.NotEqual(t, q1.ID, q2.ID)
	assert.Equal(t, "2026-03-16", q2.QuestDate)
}

func TestToday_OnePerAccountPerDay(t *testing.T) {
	svc, acct := newTestService(t)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.Local)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Today(ctx, acct.ID, now)
		require.NoError(t, err)
	}

	var count int64
	svc.db.Model(&model.Quest{}).
		Where("account_id = ? AND quest_date = ?", acct.ID, "2026-03-15").
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestToday_ConcurrentCallsYieldOneRow(t *testing.T) {
	svc, acct := newTestService(t)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.Local)
	ctx := context.Background()

	const n = 8
	ids := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := svc.Today(ctx, acct.ID, now)
			if err == nil {
				ids[i] = q.ID
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	// Every caller succeeds; losers of the insert race land on the
	// winner's row via the unique-index fallback.
	var winner model.Quest
	require.NoError(t, svc.db.
		Where("account_id = ? AND quest_date = ?", acct.ID, "2026-03-15").
		First(&winner).Error)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "call %d", i)
		assert.Equal(t, winner.ID, ids[i], "call %d", i)
	}

	var count int64
	svc.db.Model(&model.Quest{}).
		Where("account_id = ? AND quest_date = ?", acct.ID, "2026-03-15").
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: quests.account_id, quests.quest_date")))
	assert.True(t, isUniqueViolation(errors.New("Error 1062 (23000): Duplicate entry '1-2026-03-15'")))
	assert.True(t, isUniqueViolation(errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)")))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}

func TestUpdate_EditsOwnQuest(t *testing.T) {
	svc, acct := newTestService(t)
	now := time.Now()
	q, err := svc.Today(context.Background(), acct.ID, now)
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), acct.ID, q.ID, UpdateFields{
		Title:        "Evening Swim",
		Description:  "Laps at the pool",
		BaseReps:     12,
		BaseDuration: 45,
	})
	require.NoError(t, err)
	assert.Equal(t, "Evening Swim", updated.Title)
	assert.Equal(t, 12, updated.BaseReps)
	assert.Equal(t, 45, updated.BaseDuration)
	// Date and completion state are untouched.
	assert.Equal(t, q.QuestDate, updated.QuestDate)
	assert.False(t, updated.Completed)
}

func TestUpdate_NotOwned(t *testing.T) {
	svc, acct := newTestService(t)
	other := &model.Account{Username: "rival", PasswordHash: "x"}
	require.NoError(t, svc.db.Create(other).Error)

	q, err := svc.Today(context.Background(), acct.ID, time.Now())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), other.ID, q.ID, UpdateFields{
		Title: "steal", BaseReps: 1, BaseDuration: 1,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_Missing(t *testing.T) {
	svc, acct := newTestService(t)
	_, err := svc.Update(context.Background(), acct.ID, 9999, UpdateFields{
		Title: "ghost", BaseReps: 1, BaseDuration: 1,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestComplete_AwardsXPAndStreak(t *testing.T) {
	svc, acct := newTestService(t)
	now := time.Now()
	q, err := svc.Today(context.Background(), acct.ID, now)
	require.NoError(t, err)

	done, awarded, err := svc.Complete(context.Background(), acct.ID, q.ID, now)
	require.NoError(t, err)
	assert.True(t, awarded)
	assert.True(t, done.Completed)
	require.NotNil(t, done.CompletedAt)

	var after model.Account
	require.NoError(t, svc.db.First(&after, acct.ID).Error)
	assert.Equal(t, int64(50), after.XP)
	assert.Equal(t, 1, after.Streak)
}

func TestComplete_NeverAwardsTwice(t *testing.T) {
	svc, acct := newTestService(t)
	now := time.Now()
	q, err := svc.Today(context.Background(), acct.ID, now)
	require.NoError(t, err)

	_, awarded, err := svc.Complete(context.Background(), acct.ID, q.ID, now)
	require.NoError(t, err)
	assert.True(t, awarded)

	// Repeat attempts succeed but do not award again.
	done, awarded, err := svc.Complete(context.Background(), acct.ID, q.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, awarded)
	assert.True(t, done.Completed)

	var after model.Account
	require.NoError(t, svc.db.First(&after, acct.ID).Error)
	assert.Equal(t, int64(50), after.XP)
	assert.Equal(t, 1, after.Streak)
}

func TestComplete_RollsBackFlagWhenGrantFails(t *testing.T) {
	svc, acct := newTestService(t)
	now := time.Now()
	q, err := svc.Today(context.Background(), acct.ID, now)
	require.NoError(t, err)

	// Hide the accounts table so the XP grant fails after the flag flip.
	require.NoError(t, svc.db.Exec("ALTER TABLE accounts RENAME TO accounts_hidden").Error)
	_, _, err = svc.Complete(context.Background(), acct.ID, q.ID, now)
	require.Error(t, err)
	require.NoError(t, svc.db.Exec("ALTER TABLE accounts_hidden RENAME TO accounts").Error)

	// The failed grant rolled the completion back with it.
	var after model.Quest
	require.NoError(t, svc.db.First(&after, q.ID).Error)
	assert.False(t, after.Completed)

	// A retry performs the full transition and awards once.
	done, awarded, err := svc.Complete(context.Background(), acct.ID, q.ID, now)
	require.NoError(t, err)
	assert.True(t, awarded)
	assert.True(t, done.Completed)

	var balance model.Account
	require.NoError(t, svc.db.First(&balance, acct.ID).Error)
	assert.Equal(t, int64(50), balance.XP)
	assert.Equal(t, 1, balance.Streak)
}

func TestComplete_NotOwned(t *testing.T) {
	svc, acct := newTestService(t)
	other := &model.Account{Username: "rival", PasswordHash: "x"}
	require.NoError(t, svc.db.Create(other).Error)

	q, err := svc.Today(context.Background(), acct.ID, time.Now())
	require.NoError(t, err)

	_, _, err = svc.Complete(context.Background(), other.ID, q.ID, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestComplete_Missing(t *testing.T) {
	svc, acct := newTestService(t)
	_, _, err := svc.Complete(context.Background(), acct.ID, 424242, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDayKey(t *testing.T) {
	ts := time.Date(2026, 1, 5, 23, 59, 59, 0, time.Local)
	assert.Equal(t, "2026-01-05", DayKey(ts))
}

func TestNextUnlock(t *testing.T) {
	ts := time.Date(2026, 3, 15, 14, 30, 0, 0, time.Local)
	unlock := NextUnlock(ts)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.Local), unlock)

	// Just before midnight still unlocks at the next boundary.
	late := time.Date(2026, 3, 15, 23, 59, 59, 0, time.Local)
	assert.Equal(t, unlock, NextUnlock(late))
}
