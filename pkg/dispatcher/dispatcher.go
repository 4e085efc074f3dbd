// Package dispatcher implements the single entry point every task-creating
// caller goes through: the ACP HTTP handler and every orchestrator submit
// their work via Dispatcher.CreateTask, never by writing to the Store
// directly. That is what lets spec.md's project_id-lowercasing open
// question collapse — see DESIGN.md.
package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/platform/pkg/admission"
	"github.com/taskforge/platform/pkg/apperr"
	"github.com/taskforge/platform/pkg/broker"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/store"
)

// CreateTaskInput is the domain-level request, already stripped of any
// transport concern by the caller (HTTP handler or orchestrator).
type CreateTaskInput struct {
	ProjectID      string
	AgentID        string
	Content        string
	Metadata       map[string]any
	ConversationID string
}

// TaskPair is the (user, assistant) ids CreateTask returns.
type TaskPair struct {
	UserTaskID      string
	AssistantTaskID string
}

// Dispatcher creates task pairs and enqueues them onto the Broker,
// implementing spec.md §4.5's 7-step sequence exactly.
type Dispatcher struct {
	store   store.Store
	broker  broker.Broker
	gate    *admission.Gate
	now     func() time.Time
	newID   func() string
}

// New builds a Dispatcher over the given Store and Broker.
func New(s store.Store, b broker.Broker) *Dispatcher {
	return &Dispatcher{
		store:  s,
		broker: b,
		gate:   admission.New(s),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// CreateTask implements spec.md §4.5 steps 1-7 verbatim.
func (d *Dispatcher) CreateTask(ctx context.Context, in CreateTaskInput) (*TaskPair, error) {
	// Step 2: project_id is normalized to lower-case for every downstream
	// use, at this single entry point.
	in.ProjectID = strings.ToLower(in.ProjectID)

	// Step 1: verify agent exists and belongs to project.
	agent := &models.Agent{}
	if err := d.store.Get(ctx, models.CollectionAgents, in.AgentID, agent); err != nil {
		return nil, fmt.Errorf("dispatcher: load agent %s: %w", in.AgentID, err)
	}
	if agent.ProjectID != in.ProjectID {
		return nil, fmt.Errorf("dispatcher: agent %s does not belong to project %s: %w", in.AgentID, in.ProjectID, apperr.NotFound)
	}

	// Step 3: admission check.
	active, err := d.gate.HasActiveTask(ctx, in.ProjectID, in.AgentID)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: admission check: %w", err)
	}
	if active {
		return nil, fmt.Errorf("dispatcher: agent %s already has an active task: %w", in.AgentID, apperr.Throttled)
	}

	now := d.now()
	userTask := &models.Task{
		Base:      models.Base{ID: d.newID(), CreatedAt: now, UpdatedAt: now},
		ProjectID: in.ProjectID,
		AgentID:   in.AgentID,
		Role:      models.RoleUser,
		Content:   in.Content,
		Status:    models.TaskStatusQueued,
		Metadata:  in.Metadata,
	}
	// Step 4: insert user Task.
	if err := d.store.Insert(ctx, models.CollectionTasks, userTask); err != nil {
		return nil, fmt.Errorf("dispatcher: insert user task: %w", err)
	}

	assistantTask := &models.Task{
		Base:          models.Base{ID: d.newID(), CreatedAt: now, UpdatedAt: now},
		ProjectID:     in.ProjectID,
		AgentID:       in.AgentID,
		Role:          models.RoleAssistant,
		Status:        models.TaskStatusQueued,
		RelatedTaskID: userTask.ID,
		Metadata:      in.Metadata,
	}
	// Step 5: insert assistant Task, paired via related_task_id.
	if err := d.store.Insert(ctx, models.CollectionTasks, assistantTask); err != nil {
		return nil, fmt.Errorf("dispatcher: insert assistant task: %w", err)
	}

	// Step 6: publish one broker message carrying both ids. The pair is
	// persisted before publication so a publish failure leaves both tasks
	// in queued for a janitor sweep to republish or mark failed, rather
	// than losing the work.
	if err := d.broker.PublishTask(ctx, broker.TaskMessage{
		ProjectID:      in.ProjectID,
		AgentID:        in.AgentID,
		TaskID:         userTask.ID,
		RelatedTaskID:  assistantTask.ID,
		ConversationID: in.ConversationID,
	}); err != nil {
		return nil, fmt.Errorf("dispatcher: publish task message: %w: %v", apperr.Transport, err)
	}

	// Step 7: return the pair.
	return &TaskPair{UserTaskID: userTask.ID, AssistantTaskID: assistantTask.ID}, nil
}
