// Package admission implements the at-most-one-active-task advisory check
// the Dispatcher consults before creating a new task pair.
package admission

import (
	"context"
	"fmt"

	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/store"
)

// Gate is a thin Store.Count wrapper, advisory only — it does not lock
// anything, per spec.md §4.4/§5. A caller can still race past it; the
// Runner and Store together tolerate that (see spec.md §8 invariant 3).
type Gate struct {
	store store.Store
}

// New builds a Gate over the given Store.
func New(s store.Store) *Gate {
	return &Gate{store: s}
}

// HasActiveTask reports whether projectID/agentID already has a task in
// the queued or processing state.
func (g *Gate) HasActiveTask(ctx context.Context, projectID, agentID string) (bool, error) {
	queued, err := g.store.Count(ctx, models.CollectionTasks, store.Filter{
		"project_id": projectID,
		"agent_id":   agentID,
		"status":     string(models.TaskStatusQueued),
	})
	if err != nil {
		return false, fmt.Errorf("admission: count queued tasks: %w", err)
	}
	if queued > 0 {
		return true, nil
	}
	processing, err := g.store.Count(ctx, models.CollectionTasks, store.Filter{
		"project_id": projectID,
		"agent_id":   agentID,
		"status":     string(models.TaskStatusProcessing),
	})
	if err != nil {
		return false, fmt.Errorf("admission: count processing tasks: %w", err)
	}
	return processing > 0, nil
}
