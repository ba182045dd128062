// Package supervisor runs hermit's long-lived tasks as one group: every
// task starts at once, and the first to return, with or without an error,
// stops all the others. Nothing is restarted.
package supervisor

import (
	"sync"
	"time"

	"github.com/heptio/workgroup"

	"github.com/KilimcininKorOglu/hermit/internal/logging"
)

// Task runs until stop is closed or it fails. A task must return promptly
// once stop is closed.
type Task func(stop <-chan struct{}) error

// Exit describes the task that ended the group.
type Exit struct {
	Task string
	Err  error
	// Elapsed is how long the group ran.
	Elapsed time.Duration
}

// Supervisor is a named workgroup.Group.
type Supervisor struct {
	group  workgroup.Group
	logger logging.Logger
	names  []string

	once  sync.Once
	first Exit
}

// New returns an empty Supervisor.
func New(logger logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Supervisor{logger: logger}
}

// Add registers a task under name. Add must not be called after Run.
func (s *Supervisor) Add(name string, task Task) {
	s.names = append(s.names, name)
	s.group.Add(func(stop <-chan struct{}) error {
		err := task(stop)
		s.once.Do(func() {
			s.first = Exit{Task: name, Err: err}
		})
		s.logger.Debug("task returned", "task", name, "error", err)
		return err
	})
}

// Tasks returns the registered task names in registration order.
func (s *Supervisor) Tasks() []string {
	return append([]string(nil), s.names...)
}

// Run starts every task and blocks until all have returned. It reports the
// first task to return. With no tasks it returns immediately with an empty
// Exit.
func (s *Supervisor) Run() Exit {
	if len(s.names) == 0 {
		return Exit{}
	}

	start := time.Now()
	s.logger.Debug("starting tasks", "tasks", s.names)
	_ = s.group.Run()

	exit := s.first
	exit.Elapsed = time.Since(start)
	return exit
}
