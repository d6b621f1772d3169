package progress

import (
	"context"
	"strings"
	"time"

	"github.com/arisefit/arise/server/game/leveling"
	"github.com/arisefit/arise/server/game/quest"
	"github.com/arisefit/arise/server/model"
	"github.com/arisefit/arise/server/observability"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Milestone achievement keys.
const (
	AchvFirstWorkout = "first_workout"
	AchvFirstMeal    = "first_meal"
	AchvFirstQuest   = "first_quest"
	AchvStreakWeek   = "streak_7"
	AchvLevelFive    = "level_5"
)

// WorkoutInput holds the caller-supplied workout fields.
type WorkoutInput struct {
	Name     string `json:"name" binding:"required"`
	Sets     int    `json:"sets" binding:"min=0"`
	Reps     int    `json:"reps" binding:"min=0"`
	Duration int    `json:"duration" binding:"min=0"`
}

// MealInput holds the caller-supplied meal fields.
type MealInput struct {
	Name     string `json:"name" binding:"required"`
	Calories int    `json:"calories" binding:"min=0"`
}

// Service records workouts and meals, awards XP and grants milestone
// achievements.
type Service struct {
	db            *gorm.DB
	workoutBaseXP int64
	mealXP        int64
	historyLimit  int
	logger        *zap.Logger
}

// NewService creates a progress Service.
func NewService(db *gorm.DB, workoutBaseXP, mealXP int64, historyLimit int, logger *zap.Logger) *Service {
	if historyLimit <= 0 {
		historyLimit = 200
	}
	return &Service{
		db:            db,
		workoutBaseXP: workoutBaseXP,
		mealXP:        mealXP,
		historyLimit:  historyLimit,
		logger:        logger,
	}
}

// LogWorkout persists a workout and awards XP scaled by its volume.
// The XP increment is applied relative to the stored value, never as a
// read-modify-write from here.
func (svc *Service) LogWorkout(ctx context.Context, accountID int64, in WorkoutInput, now time.Time) (*model.Workout, int64, error) {
	w := &model.Workout{
		AccountID: accountID,
		Name:      in.Name,
		Sets:      in.Sets,
		Reps:      in.Reps,
		Duration:  in.Duration,
		Date:      quest.DayKey(now),
	}
	if err := svc.db.WithContext(ctx).Create(w).Error; err != nil {
		return nil, 0, err
	}

	xpGain := svc.workoutBaseXP + int64(in.Sets) + int64(in.Reps/10)
	if err := svc.addXP(ctx, accountID, xpGain); err != nil {
		return nil, 0, err
	}
	observability.RecordXPGranted("workout", xpGain)
	svc.grant(ctx, accountID, AchvFirstWorkout, "First Workout")
	svc.checkLevelMilestones(ctx, accountID)
	return w, xpGain, nil
}

// LogMeal persists a meal and awards the flat meal XP.
func (svc *Service) LogMeal(ctx context.Context, accountID int64, in MealInput, now time.Time) (*model.Meal, int64, error) {
	m := &model.Meal{
		AccountID: accountID,
		Name:      in.Name,
		Calories:  in.Calories,
		Date:      quest.DayKey(now),
	}
	if err := svc.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, 0, err
	}

	if err := svc.addXP(ctx, accountID, svc.mealXP); err != nil {
		return nil, 0, err
	}
	observability.RecordXPGranted("meal", svc.mealXP)
	svc.grant(ctx, accountID, AchvFirstMeal, "Mindful Eater")
	return m, svc.mealXP, nil
}

// OnQuestCompleted grants milestone achievements after a quest completion
// actually awarded (the quest service owns the XP and streak updates).
func (svc *Service) OnQuestCompleted(ctx context.Context, accountID int64) {
	svc.grant(ctx, accountID, AchvFirstQuest, "Quest Novice")

	var acct model.Account
	if err := svc.db.WithContext(ctx).First(&acct, accountID).Error; err != nil {
		svc.logger.Warn("milestone check failed",
			zap.Int64("account_id", accountID), zap.Error(err))
		return
	}
	if acct.Streak >= 7 {
		svc.grant(ctx, accountID, AchvStreakWeek, "Week Warrior")
	}
	if leveling.FromXP(acct.XP) >= 5 {
		svc.grant(ctx, accountID, AchvLevelFive, "Level 5 Hunter")
	}
}

// ListWorkouts returns the account's most recent workouts.
func (svc *Service) ListWorkouts(ctx context.Context, accountID int64) ([]model.Workout, error) {
	var out []model.Workout
	err := svc.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(svc.historyLimit).
		Find(&out).Error
	return out, err
}

// ListMeals returns the account's most recent meals.
func (svc *Service) ListMeals(ctx context.Context, accountID int64) ([]model.Meal, error) {
	var out []model.Meal
	err := svc.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(svc.historyLimit).
		Find(&out).Error
	return out, err
}

// ListAchievements returns the account's achievements, newest first.
func (svc *Service) ListAchievements(ctx context.Context, accountID int64) ([]model.Achievement, error) {
	var out []model.Achievement
	err := svc.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("earned_at DESC").
		Find(&out).Error
	return out, err
}

// SweepStreaks zeroes the streak of every account with no completed quest
// for yesterday or today. Sparing today keeps a streak earned earlier the
// same day intact, so the scheduler may run the sweep at any hour.
func (svc *Service) SweepStreaks(ctx context.Context, now time.Time) (int64, error) {
	days := []string{quest.DayKey(now.AddDate(0, 0, -1)), quest.DayKey(now)}
	sub := svc.db.Model(&model.Quest{}).
		Select("account_id").
		Where("quest_date IN ? AND completed = ?", days, true)
	res := svc.db.WithContext(ctx).Model(&model.Account{}).
		Where("streak > 0").
		Where("id NOT IN (?)", sub).
		Update("streak", 0)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		svc.logger.Info("streaks reset", zap.Int64("accounts", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (svc *Service) addXP(ctx context.Context, accountID, delta int64) error {
	return svc.db.WithContext(ctx).Model(&model.Account{}).
		Where("id = ?", accountID).
		Update("xp", gorm.Expr("xp + ?", delta)).Error
}

// grant inserts a milestone achievement. The unique index on
// (account_id, key) makes repeat grants a no-op.
func (svc *Service) grant(ctx context.Context, accountID int64, key, name string) {
	a := &model.Achievement{AccountID: accountID, Key: key, Name: name}
	if err := svc.db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return
		}
		svc.logger.Warn("achievement grant failed",
			zap.Int64("account_id", accountID),
			zap.String("key", key),
			zap.Error(err))
	}
}

func (svc *Service) checkLevelMilestones(ctx context.Context, accountID int64) {
	var acct model.Account
	if err := svc.db.WithContext(ctx).First(&acct, accountID).Error; err != nil {
		return
	}
	if leveling.FromXP(acct.XP) >= 5 {
		svc.grant(ctx, accountID, AchvLevelFive, "Level 5 Hunter")
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
