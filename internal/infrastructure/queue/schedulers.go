package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"returns-backend/internal/shared"
	"returns-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
}

func NewScheduler(redisAddress string) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddress},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
	}
}

func (s *Scheduler) RegisterMaintenanceJobs() error {
	return s.registerSweepExpiredOtpsJob()
}

// ================================================
// JOB: Sweep Expired Pickup Codes (every 5 minutes)
// ================================================
// Verification already rejects codes past their TTL; the sweep clears the
// stored hashes so stale secrets do not linger in the table.
func (s *Scheduler) registerSweepExpiredOtpsJob() error {
	payload, err := json.Marshal(shared.SweepExpiredOtpsPayload{})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeSweepExpiredOtps, payload)

	_, err = s.scheduler.Register(
		"*/5 * * * *", // every 5 minutes
		task,
		asynq.Queue(shared.QueueMaintenance),
		asynq.MaxRetry(1),
		asynq.Timeout(2*time.Minute),
	)

	if err != nil {
		logger.Error("Failed to register SweepExpiredOtps job", err)
		return err
	}

	logger.Info("Registered SweepExpiredOtps: every 5 minutes", map[string]interface{}{})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
