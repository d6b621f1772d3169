package quest

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/arisefit/arise/server/model"
	"github.com/arisefit/arise/server/observability"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a quest does not exist or is not owned
// by the caller.
var ErrNotFound = errors.New("quest: not found")

// Template is one entry in the daily quest pool.
type Template struct {
	Title        string
	Description  string
	BaseReps     int
	BaseDuration int
	Quote        string
}

// DefaultPool is the fixed pool of daily quest templates.
var DefaultPool = []Template{
	{Title: "Morning Run", Description: "Start your day with a run", BaseReps: 5, BaseDuration: 20, Quote: "A mile a day keeps the fatigue away."},
	{Title: "Strength Training", Description: "Build muscle and power", BaseReps: 15, BaseDuration: 30, Quote: "Strength comes from overcoming what you thought you couldn't."},
	{Title: "Cardio Blast", Description: "Pump up your heart rate", BaseReps: 20, BaseDuration: 25, Quote: "You can't win if you don't try."},
	{Title: "Flexibility & Stretch", Description: "Improve your range of motion", BaseReps: 10, BaseDuration: 15, Quote: "Flexibility is the foundation of fitness."},
	{Title: "HIIT Workout", Description: "High intensity, high reward", BaseReps: 30, BaseDuration: 20, Quote: "The pain today is the strength tomorrow."},
}

// DayKey formats a time as the server-local calendar day string used in
// quest_date columns.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// NextUnlock returns the next local midnight after t, when a new daily
// quest becomes available.
func NextUnlock(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// UpdateFields holds the caller-editable quest attributes.
// Completion state and the quest date are never editable.
type UpdateFields struct {
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	BaseReps     int    `json:"base_reps" binding:"min=1"`
	BaseDuration int    `json:"base_duration" binding:"min=1"`
}

// Service assigns and transitions daily quests.
type Service struct {
	db      *gorm.DB
	pool    []Template
	questXP int64
	logger  *zap.Logger
}

// NewService creates a quest Service drawing from the given template pool.
func NewService(db *gorm.DB, pool []Template, questXP int64, logger *zap.Logger) *Service {
	if len(pool) == 0 {
		pool = DefaultPool
	}
	return &Service{db: db, pool: pool, questXP: questXP, logger: logger}
}

// QuestXP returns the XP bonus awarded for completing a daily quest.
func (svc *Service) QuestXP() int64 {
	return svc.questXP
}

// Today returns the quest for (accountID, now's calendar day), creating
// one from the pool if none exists yet.
//
// Two concurrent calls for the same account and day may both attempt the
// insert; the unique index on (account_id, quest_date) rejects the loser,
// which then re-reads the winner's row.
func (svc *Service) Today(ctx context.Context, accountID int64, now time.Time) (*model.Quest, error) {
	day := DayKey(now)

	var q model.Quest
	err := svc.db.WithContext(ctx).
		Where("account_id = ? AND quest_date = ?", accountID, day).
		First(&q).Error
	if err == nil {
		return &q, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tpl := svc.pool[rand.Intn(len(svc.pool))]
	q = model.Quest{
		AccountID:    accountID,
		QuestDate:    day,
		Title:        tpl.Title,
		Description:  tpl.Description,
		BaseReps:     tpl.BaseReps,
		BaseDuration: tpl.BaseDuration,
		Quote:        tpl.Quote,
	}
	if err := svc.db.WithContext(ctx).Create(&q).Error; err != nil {
		if isUniqueViolation(err) {
			// Lost the insert race; the winner's row is authoritative.
			var winner model.Quest
			if err2 := svc.db.WithContext(ctx).
				Where("account_id = ? AND quest_date = ?", accountID, day).
				First(&winner).Error; err2 != nil {
				return nil, err2
			}
			return &winner, nil
		}
		return nil, err
	}
	observability.RecordQuestAssigned()
	svc.logger.Info("quest assigned",
		zap.Int64("account_id", accountID),
		zap.String("day", day),
		zap.String("title", q.Title))
	return &q, nil
}

// Update mutates the editable fields of the caller's own quest.
func (svc *Service) Update(ctx context.Context, accountID, questID int64, fields UpdateFields) (*model.Quest, error) {
	res := svc.db.WithContext(ctx).Model(&model.Quest{}).
		Where("id = ? AND account_id = ?", questID, accountID).
		Updates(map[string]interface{}{
			"title":         fields.Title,
			"description":   fields.Description,
			"base_reps":     fields.BaseReps,
			"base_duration": fields.BaseDuration,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	var q model.Quest
	if err := svc.db.WithContext(ctx).First(&q, questID).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// Complete transitions a quest to completed and awards the XP bonus.
// The transition is one-way; the XP grant and streak increment happen
// only when this call actually flips the completed flag, so repeated
// completion attempts never award twice. The awarded return reports
// whether this call performed the transition.
func (svc *Service) Complete(ctx context.Context, accountID, questID int64, now time.Time) (q *model.Quest, awarded bool, err error) {
	var exists model.Quest
	if err := svc.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", questID, accountID).
		First(&exists).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}

	// The flag flip and the XP/streak grant commit together; a failed
	// grant rolls the flip back so the bonus is never lost to a
	// half-applied completion.
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Quest{}).
			Where("id = ? AND account_id = ? AND completed = ?", questID, accountID, false).
			Updates(map[string]interface{}{
				"completed":    true,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}
		if err := tx.Model(&model.Account{}).
			Where("id = ?", accountID).
			Updates(map[string]interface{}{
				"xp":     gorm.Expr("xp + ?", svc.questXP),
				"streak": gorm.Expr("streak + ?", 1),
			}).Error; err != nil {
			return err
		}
		awarded = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if awarded {
		observability.RecordQuestCompleted()
		observability.RecordXPGranted("quest_complete", svc.questXP)
		svc.logger.Info("quest completed",
			zap.Int64("account_id", accountID),
			zap.Int64("quest_id", questID),
			zap.Int64("xp_bonus", svc.questXP))
	}

	var out model.Quest
	if err := svc.db.WithContext(ctx).First(&out, questID).Error; err != nil {
		return nil, false, err
	}
	return &out, awarded, nil
}

// isUniqueViolation reports whether err is a unique-constraint error from
// any of the supported database backends.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || // sqlite
		strings.Contains(msg, "Duplicate entry") || // mysql
		strings.Contains(msg, "duplicate key") // postgres
}
