package app

import (
	"sync"

	"github.com/NodePath81/linewatch/internal/config"
	"github.com/NodePath81/linewatch/internal/util"
)

// Supervisor manages the runtime lifecycle for configurations loaded from a
// file: it starts the first session and rebuilds the engine when Restart is
// triggered (the CLI wires this to SIGHUP).
type Supervisor struct {
	configPath string
	logger     util.Logger
	mu         sync.Mutex
	runtime    *Runtime
}

func NewSupervisor(configPath string, logger util.Logger) *Supervisor {
	return &Supervisor{
		configPath: configPath,
		logger:     logger,
	}
}

func (s *Supervisor) Start() error {
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		return err
	}
	runtime, err := NewRuntime(cfg, s.logger)
	if err != nil {
		return err
	}
	if err := runtime.Start(); err != nil {
		runtime.Stop()
		return err
	}
	s.mu.Lock()
	s.runtime = runtime
	s.mu.Unlock()
	return nil
}

// Restart reloads the config file and replaces the running engine. The old
// session is stopped first so listeners and journal files are free for the
// new one; a config error therefore leaves the supervisor stopped, and the
// caller decides whether to keep waiting or exit.
func (s *Supervisor) Restart() error {
	s.logger.Info("restarting", "config", s.configPath)
	s.mu.Lock()
	current := s.runtime
	s.runtime = nil
	s.mu.Unlock()

	if current != nil {
		current.Stop()
	}
	return s.Start()
}

func (s *Supervisor) Stop() {
	s.mu.Lock()
	current := s.runtime
	s.runtime = nil
	s.mu.Unlock()
	if current != nil {
		current.Stop()
	}
}

// Running reports whether a session is currently active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runtime != nil
}
