package progress

import (
	"context"
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
	svc := NewService(db, 15, 5, 200, logger)

	acct := &model.Account{Username: "hunter", PasswordHash: "x"}
	require.NoError(t, db.Create(acct).Error)
	return svc, acct
}

func TestLogWorkout_XPFormula(t *testing.T) {
	svc, acct := newTestService(t)

	w, xp, err := svc.LogWorkout(context.Background(), acct.ID, WorkoutInput{
		Name: "Bench Press", Sets: 3, Reps: 24, Duration: 40,
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(15+3+2), xp) // base + sets + reps/10
	assert.Equal(t, "Bench Press", w.Name)

	var after model.Account
	require.NoError(t, svc.db.First(&after, acct.ID).Error)
	assert.Equal(t, int64(20), after.XP)
}

func TestLogWorkout_GrantsFirstWorkoutOnce(t *testing.T) {
	svc, acct := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.LogWorkout(ctx, acct.ID, WorkoutInput{Name: "Run"}, time.Now())
	require.NoError(t, err)
	_, _, err = svc.LogWorkout(ctx, acct.ID, WorkoutInput{Name: "Run"}, time.Now())
	require.NoError(t, err)

	var count int64
	svc.db.Model(&model.Achievement{}).
		Where("account_id = ? AND key = ?", acct.ID, AchvFirstWorkout).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLogMeal_FlatXP(t *testing.T) {
	svc, acct := newTestService(t)

	m, xp, err := svc.LogMeal(context.Background(), acct.ID, MealInput{
		Name: "Oatmeal", Calories: 320,
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(5), xp)
	assert.Equal(t, 320, m.Calories)

	var after model.Account
	require.NoError(t, svc.db.First(&after, acct.ID).Error)
	assert.Equal(t, int64(5), after.XP)
}

func TestLogWorkout_ConcurrentIncrements(t *testing.T) {
	svc, acct := newTestService(t)
	ctx := context.Background()

	// Ten plain workouts, each worth the base 15 XP. Atomic increments
	// must not lose any of them.
	for i := 0; i < 10; i++ {
		_, _, err := svc.LogWorkout(ctx, acct.ID, WorkoutInput{Name: "Pushups"}, time.Now())
		require.NoError(t, err)
	}

	var after model.Account
	require.NoError(t, svc.db.First(&after, acct.ID).Error)
	assert.Equal(t, int64(150), after.XP)
}

func TestOnQuestCompleted_GrantsMilestones(t *testing.T) {
	svc, acct := newTestService(t)
	ctx := context.Background()

	svc.OnQuestCompleted(ctx, acct.ID)

	achvs, err := svc.ListAchievements(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, achvs, 1)
	assert.Equal(t, AchvFirstQuest, achvs[0].Key)

	// A week-long streak earns the streak milestone.
	require.NoError(t, svc.db.Model(&model.Account{}).
		Where("id = ?", acct.ID).Update("streak", 7).Error)
	svc.OnQuestCompleted(ctx, acct.ID)

	achvs, err = svc.ListAchievements(ctx, acct.ID)
	require.NoError(t, err)
	keys := make([]string, 0, len(achvs))
	for _, a := range achvs {
		keys = append(keys, a.Key)
	}
	assert.Contains(t, keys, AchvStreakWeek)
}

func TestLevelMilestone(t *testing.T) {
	svc, acct := newTestService(t)
	ctx := context.Background()

	// 1000 XP puts the account at level 5.
	require.NoError(t, svc.db.Model(&model.Account{}).
		Where("id = ?", acct.ID).Update("xp", 1000).Error)

	_, _, err := svc.LogWorkout(ctx, acct.ID, WorkoutInput{Name: "Squats"}, time.Now())
	require.NoError(t, err)

	var count int64
	svc.db.Model(&model.Achievement{}).
		Where("account_id = ? AND key = ?", acct.ID, AchvLevelFive).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestListWorkouts_NewestFirst(t *testing.T) {
	svc, acct := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"one", "two", "three"} {
		_, _, err := svc.LogWorkout(ctx, acct.ID, WorkoutInput{Name: name}, time.Now())
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	got, err := svc.ListWorkouts(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "three", got[0].Name)
}

func TestListMeals_OwnerScoped(t *testing.T) {
	svc, acct := newTestService(t)
	other := &model.Account{Username: "rival", PasswordHash: "x"}
	require.NoError(t, svc.db.Create(other).Error)
	ctx := context.Background()

	_, _, err := svc.LogMeal(ctx, acct.ID, MealInput{Name: "Salad"}, time.Now())
	require.NoError(t, err)
	_, _, err = svc.LogMeal(ctx, other.ID, MealInput{Name: "Burger"}, time.Now())
	require.NoError(t, err)

	got, err := svc.ListMeals(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Salad", got[0].Name)
}

func TestSweepStreaks(t *testing.T) {
	svc, acct := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 16, 3, 0, 0, 0, time.Local)

	// acct kept the streak alive yesterday; idle did not.
	idle := &model.Account{Username: "idle", PasswordHash: "x", Streak: 4}
	require.NoError(t, svc.db.Create(idle).Error)
	require.NoError(t, svc.db.Model(&model.Account{}).
		Where("id = ?", acct.ID).Update("streak", 3).Error)

	done := time.Date(2026, 3, 15, 18, 0, 0, 0, time.Local)
	require.NoError(t, svc.db.Create(&model.Quest{
		AccountID: acct.ID, QuestDate: "2026-03-15", Title: "Morning Run",
		Completed: true, CompletedAt: &done,
	}).Error)

	reset, err := svc.SweepStreaks(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	var kept, zeroed model.Account
	require.NoError(t, svc.db.First(&kept, acct.ID).Error)
	require.NoError(t, svc.db.First(&zeroed, idle.ID).Error)
	assert.Equal(t, 3, kept.Streak)
	assert.Equal(t, 0, zeroed.Streak)
}

func TestSweepStreaks_SparesStreakEarnedToday(t *testing.T) {
	svc, acct := newTestService(t)
	ctx := context.Background()

	// Completed today's quest this morning, nothing yesterday. The
	// mid-day sweep must not wipe the streak that completion started.
	done := time.Date(2026, 3, 16, 8, 0, 0, 0, time.Local)
	require.NoError(t, svc.db.Create(&model.Quest{
		AccountID: acct.ID, QuestDate: "2026-03-16", Title: "Cardio Blast",
		Completed: true, CompletedAt: &done,
	}).Error)
	require.NoError(t, svc.db.Model(&model.Account{}).
		Where("id = ?", acct.ID).Update("streak", 1).Error)

	reset, err := svc.SweepStreaks(ctx, time.Date(2026, 3, 16, 11, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.Equal(t, int64(0), reset)

	var after model.Account
	require.NoError(t, svc.db.First(&after, acct.ID).Error)
	assert.Equal(t, 1, after.Streak)
}
