package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/alitto/pond"
)

// PoolManager holds the two worker pools chat-core's background work runs
// on: fan-out notifications to child actors, and a general-purpose pool
// reached through SubmitTask.
type PoolManager struct {
	ChildNotifyPool *pond.WorkerPool
	GeneralPool      *pond.WorkerPool
}

type PoolConfig struct {
	ChildNotifyWorkers int
	Workers            int
}

func NewPoolManager(config PoolConfig) *PoolManager {
	return &PoolManager{
		ChildNotifyPool: pond.New(
			config.ChildNotifyWorkers,
			config.ChildNotifyWorkers*2,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
		GeneralPool: pond.New(
			config.Workers,
			config.Workers*2,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
	}
}

// SubmitChildNotify schedules a single child-actor notification so a slow
// or unreachable child doesn't block notify_children's other recipients.
func (pm *PoolManager) SubmitChildNotify(task func()) {
	pm.ChildNotifyPool.Submit(task)
}

func (pm *PoolManager) SubmitTask(task func()) {
	pm.GeneralPool.Submit(task)
}

// SubmitChildNotifyWithTimeout runs task on the child-notify pool and
// waits up to timeout for it to finish, recovering a panic from the task
// itself rather than letting it take down the pool worker.
func (pm *PoolManager) SubmitChildNotifyWithTimeout(ctx context.Context, task func(), timeout time.Duration) error {
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{}, 1)

	pm.ChildNotifyPool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("child notify task panicked", "error", r)
			}
			done <- struct{}{}
		}()
		task()
	})

	select {
	case <-done:
		return nil
	case <-taskCtx.Done():
		return taskCtx.Err()
	}
}

func (pm *PoolManager) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"child_notify_pool": map[string]interface{}{
			"running_workers":  pm.ChildNotifyPool.RunningWorkers(),
			"idle_workers":     pm.ChildNotifyPool.IdleWorkers(),
			"submitted_tasks":  pm.ChildNotifyPool.SubmittedTasks(),
			"waiting_tasks":    pm.ChildNotifyPool.WaitingTasks(),
			"successful_tasks": pm.ChildNotifyPool.SuccessfulTasks(),
			"failed_tasks":     pm.ChildNotifyPool.FailedTasks(),
		},
		"general_pool": map[string]interface{}{
			"running_workers":  pm.GeneralPool.RunningWorkers(),
			"idle_workers":     pm.GeneralPool.IdleWorkers(),
			"submitted_tasks":  pm.GeneralPool.SubmittedTasks(),
			"waiting_tasks":    pm.GeneralPool.WaitingTasks(),
			"successful_tasks": pm.GeneralPool.SuccessfulTasks(),
			"failed_tasks":     pm.GeneralPool.FailedTasks(),
		},
	}
}

func (pm *PoolManager) Shutdown() {
	slog.Info("shutting down worker pools")

	pm.ChildNotifyPool.StopAndWait()
	slog.Info("child notify pool stopped")

	pm.GeneralPool.StopAndWait()
	slog.Info("general pool stopped")

	slog.Info("all worker pools shut down successfully")
}
