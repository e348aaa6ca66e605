package bootstrap

import (
	"os"

	"github.com/rs/zerolog"

	"mailpilot/adapter/in/worker"
	"mailpilot/config"
	"mailpilot/pkg/logger"
)

// NewWorker builds the scheduler that periodically runs processing for every
// user with connected credentials.
func NewWorker(cfg *config.Config) (*worker.Scheduler, func(), error) {
	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "mailpilot-worker",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("failed to initialize dependencies")
		return nil, nil, err
	}

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	scheduler := worker.NewScheduler(deps.Process, deps.CredentialRepo, worker.SchedulerConfig{
		Interval:   cfg.SchedulerInterval,
		RunTimeout: cfg.RunTimeout,
		MaxWorkers: cfg.WorkerMax,
	}, zlog)

	return scheduler, cleanup, nil
}
