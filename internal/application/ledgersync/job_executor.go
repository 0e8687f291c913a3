package ledgersync

import (
	"context"

	"github.com/finsync/backend/internal/infrastructure/scheduler"
)

// JobExecutor runs scheduler jobs through the orchestrator
type JobExecutor struct {
	service *Service
}

// NewJobExecutor creates a JobExecutor
func NewJobExecutor(service *Service) *JobExecutor {
	return &JobExecutor{service: service}
}

// Execute implements scheduler.JobExecutor
func (e *JobExecutor) Execute(ctx context.Context, job *scheduler.Job) error {
	_, err := e.service.Run(ctx, job.EntityType, job.Period, job.ExecutedBy)
	return err
}

var _ scheduler.JobExecutor = (*JobExecutor)(nil)
