package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/rl1809/jersey-pos/internal/config"
	"github.com/rl1809/jersey-pos/internal/queue"
)

type Service struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{server: asynq.NewServer(opt, serverCfg), mux: mux}, nil
}

func (s *Service) Name() string { return "worker" }

// Start launches the processors and returns. Signals stay with the caller;
// Stop drains in-flight tasks.
func (s *Service) Start(_ context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("worker not initialized")
	}
	return s.server.Start(s.mux)
}

func (s *Service) Stop(_ context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.server.Shutdown()
	return nil
}
