package async

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes tasks with at most limit of them running at once.
// A limit of zero or less runs all tasks concurrently.
//
// Tasks are started in slice order. A failing task does not cancel the
// others; all tasks run to completion and every error is returned, joined
// in task order.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "r1", Func: upgradeR1},
//	    {Name: "r2", Func: upgradeR2},
//	}
//	if err := RunParallel(ctx, tasks, 2); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task, limit int) error {
	if len(tasks) == 0 {
		return nil
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	errs := make([]error, len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			if err := task.Func(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", task.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
