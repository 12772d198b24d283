package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/flow/pkg/domain"
)

// AuditHooks logs every lifecycle event through logger.
// Step starts and branch choices are logged at debug level.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_start", "run_id", e.RunID, "step", e.StepID, "task", e.Task)
		},
		OnStepDone: func(ctx context.Context, e *domain.StepEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "step_done", "run_id", e.RunID, "step", e.StepID, "task", e.Task, "duration", e.Duration, "error", e.Err)
				return
			}
			logger.InfoContext(ctx, "step_done", "run_id", e.RunID, "step", e.StepID, "task", e.Task, "duration", e.Duration)
		},
		OnBranch: func(ctx context.Context, e *domain.BranchEvent) {
			logger.DebugContext(ctx, "branch", "run_id", e.RunID, "node", e.NodeID, "branch", e.Branch)
		},
		OnRunDone: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_done", "run_id", e.RunID, "status", e.Status, "duration", e.Duration, "error", e.Err)
		},
		OnInternalError: func(ctx context.Context, e *domain.InternalErrorEvent) {
			logger.ErrorContext(ctx, "internal_error", "run_id", e.RunID, "error", e.Err)
		},
	}
}
