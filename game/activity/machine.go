package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arisefit/arise/server/observability"
	"go.uber.org/zap"
)

var (
	// ErrBusy is returned when a session is already running.
	ErrBusy = errors.New("activity: session already active")
	// ErrNoSession is returned when there is nothing to cancel.
	ErrNoSession = errors.New("activity: no active session")
)

// Callbacks are invoked when a session ends. The machine does not know
// how to log a workout or complete a quest; the caller wires that in.
type Callbacks struct {
	OnComplete func(s *Session)
	OnCancel   func(s *Session)
}

// Machine drives the countdown for one account's single session slot.
//
// State transitions: start creates and persists the session before the
// countdown begins; each tick burns one logical second and re-persists
// the remaining time; reaching zero completes exactly once; cancellation
// and startup invalidation end the session without completion credit.
type Machine struct {
	store  Store
	cb     Callbacks
	tick   time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	accountID int64
	sess      *Session
	minimized bool
	stopCh    chan struct{}
}

// NewMachine creates a session machine for one account.
// tick controls the real-time cadence of one logical countdown second;
// pass 0 for the normal one-second cadence.
func NewMachine(store Store, accountID int64, cb Callbacks, tick time.Duration, logger *zap.Logger) *Machine {
	if tick <= 0 {
		tick = time.Second
	}
	return &Machine{
		store:     store,
		cb:        cb,
		tick:      tick,
		accountID: accountID,
		logger:    logger,
	}
}

// StartupCheck inspects the persisted slot on process start. A session
// still flagged active means the previous run ended before the timer
// finished; it is invalidated, never resumed. Returns the invalidated
// session, or nil if the slot was empty or already inactive.
func (m *Machine) StartupCheck(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.store.Load(ctx, m.accountID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Active {
		return nil, nil
	}

	now := time.Now()
	sess.Active = false
	sess.EndedAt = &now
	if err := m.store.Save(ctx, m.accountID, sess); err != nil {
		return nil, err
	}
	observability.RecordSessionInvalidated()
	m.logger.Warn("interrupted session invalidated",
		zap.Int64("account_id", m.accountID),
		zap.String("session_id", sess.ID),
		zap.Int64("remaining_ms", sess.RemainingMs))
	if m.cb.OnCancel != nil {
		m.cb.OnCancel(sess)
	}
	return sess, nil
}

// Start validates the duration input, persists a new active session and
// begins the countdown. Returns ErrBusy if a session is already running.
func (m *Machine) Start(ctx context.Context, kind Kind, targetID int64, input string) (*Session, error) {
	d, err := ParseDuration(input)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess != nil && m.sess.Active {
		return nil, ErrBusy
	}

	now := time.Now()
	sess := &Session{
		ID:          fmt.Sprintf("%s-%d-%d", kind, targetID, now.UnixMilli()),
		Kind:        kind,
		TargetID:    targetID,
		StartedAt:   now,
		DurationMs:  d.Milliseconds(),
		RemainingMs: d.Milliseconds(),
		Active:      true,
	}
	// Persist before the countdown starts so an immediate crash still
	// leaves an invalidatable record.
	if err := m.store.Save(ctx, m.accountID, sess); err != nil {
		return nil, err
	}

	m.sess = sess
	m.minimized = false
	m.stopCh = make(chan struct{})
	go m.run(m.stopCh)

	m.logger.Info("activity session started",
		zap.Int64("account_id", m.accountID),
		zap.String("kind", string(kind)),
		zap.Int64("duration_ms", sess.DurationMs))
	return sess, nil
}

// Cancel ends the running session without completion credit.
func (m *Machine) Cancel(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil || !m.sess.Active {
		return ErrNoSession
	}
	close(m.stopCh)
	m.stopCh = nil

	now := time.Now()
	sess := m.sess
	sess.Active = false
	sess.EndedAt = &now
	m.sess = nil
	if err := m.store.Save(ctx, m.accountID, sess); err != nil {
		return err
	}
	if m.cb.OnCancel != nil {
		m.cb.OnCancel(sess)
	}
	return nil
}

// Minimize collapses the session presentation. The timer is unaffected.
func (m *Machine) Minimize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != nil && m.sess.Active {
		m.minimized = true
	}
}

// Restore expands a minimized session.
func (m *Machine) Restore() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.minimized = false
}

// Snapshot returns a copy of the current session state, or nil when idle,
// along with whether the presentation is minimized.
func (m *Machine) Snapshot() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, false
	}
	cp := *m.sess
	return &cp, m.minimized
}

func (m *Machine) run(stopCh chan struct{}) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if m.step() {
				return
			}
		case <-stopCh:
			return
		}
	}
}

// step burns one logical second. It returns true when the countdown has
// finished and the run loop should exit.
func (m *Machine) step() bool {
	m.mu.Lock()

	sess := m.sess
	if sess == nil || !sess.Active {
		m.mu.Unlock()
		return true
	}

	sess.RemainingMs -= 1000
	if sess.RemainingMs < 0 {
		sess.RemainingMs = 0
	}

	if sess.RemainingMs > 0 {
		// Re-persist so a reload mid-countdown can recover roughly
		// where it left off.
		_ = m.store.Save(context.Background(), m.accountID, sess)
		m.mu.Unlock()
		return false
	}

	now := time.Now()
	sess.Active = false
	sess.EndedAt = &now
	m.sess = nil
	m.stopCh = nil
	_ = m.store.Save(context.Background(), m.accountID, sess)
	m.mu.Unlock()

	m.logger.Info("activity session completed",
		zap.Int64("account_id", m.accountID),
		zap.String("session_id", sess.ID))
	if m.cb.OnComplete != nil {
		m.cb.OnComplete(sess)
	}
	return true
}
