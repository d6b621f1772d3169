package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is a scheduled unit of work.
type TaskFn func()

// Scheduler owns the server's named background jobs: recurring sweeps
// such as the streak reset on tickers, plus one-shot delayed work.
// Registering a name twice replaces the earlier job.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*recurring
	timers  map[string]*time.Timer
	logger  *zap.Logger
	done    chan struct{}
}

type recurring struct {
	ticker *time.Ticker
	cancel chan struct{}
}

// New creates an empty Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		tickers: make(map[string]*recurring),
		timers:  make(map[string]*time.Timer),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// AddTicker runs fn every interval until the task is removed or the
// scheduler stops. A panicking run is logged and the schedule keeps
// going.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.tickers[name]; ok {
		close(prev.cancel)
		delete(s.tickers, name)
	}

	job := &recurring{
		ticker: time.NewTicker(interval),
		cancel: make(chan struct{}),
	}
	s.tickers[name] = job

	go func() {
		defer job.ticker.Stop()
		for {
			select {
			case <-job.ticker.C:
				s.run(name, fn)
			case <-job.cancel:
				return
			case <-s.done:
				return
			}
		}
	}()
	s.logger.Info("background task registered",
		zap.String("name", name), zap.Duration("interval", interval))
}

func (s *Scheduler) run(name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("background task panicked",
				zap.String("task", name), zap.Any("recover", r))
		}
	}()
	fn()
}

// AddDelay runs fn once after delay. Re-registering the name cancels
// the earlier timer.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[name]; ok {
		prev.Stop()
	}
	s.timers[name] = time.AfterFunc(delay, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("delayed task panicked",
					zap.String("task", name), zap.Any("recover", r))
			}
			s.mu.Lock()
			delete(s.timers, name)
			s.mu.Unlock()
		}()
		fn()
	})
}

// Remove stops the named ticker or delayed task.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.tickers[name]; ok {
		close(job.cancel)
		delete(s.tickers, name)
	}
	if timer, ok := s.timers[name]; ok {
		timer.Stop()
		delete(s.timers, name)
	}
}

// Stop shuts down every task. Safe to call more than once.
func (s *Scheduler) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// ListTickers reports the names of the registered recurring tasks.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers))
	for name := range s.tickers {
		names = append(names, name)
	}
	return names
}
