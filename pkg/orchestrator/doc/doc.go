// Package doc implements DocOrchestrator: it drives a Training's embedded
// projectmd generation sub-state through submission of a documentation
// request to a lazily-created documentation agent, polling, and upload to
// the Artifact Store, per spec.md §4.10.
package doc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/platform/pkg/apperr"
	"github.com/taskforge/platform/pkg/artifacts"
	"github.com/taskforge/platform/pkg/dispatcher"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/orchestrator"
	"github.com/taskforge/platform/pkg/store"
)

// pollInterval and maxIterations are vars, not consts, so tests can shrink
// them rather than waiting out the production 1s/1800s bound (the same
// testability deviation used for runner.CancellationPollInterval).
var (
	pollInterval  = 1 * time.Second
	maxIterations = 1800 // 1800s ceiling / 1s interval, per spec.md §4.10 step 4
)

const (
	docPrompt = "Please provide your claude.md now."

	docAgentInstructions = "You maintain this project's documentation. " +
		"When asked for your claude.md, respond with the current body " +
		"of that file and nothing else."
)

// Orchestrator drives one Training's documentation generation to completion.
type Orchestrator struct {
	store         store.Store
	dispatcher    *dispatcher.Dispatcher
	artifacts     artifacts.Store
	docsProjectID string
	now           func() time.Time
	newID         func() string
}

// New builds an Orchestrator. docsProjectID is the project documentation
// agents are hosted under, per spec.md §4.10 step 3 ("the agent itself is
// hosted under the docs project") — a deployment-time configuration value.
func New(s store.Store, d *dispatcher.Dispatcher, a artifacts.Store, docsProjectID string) *Orchestrator {
	return &Orchestrator{
		store:         s,
		dispatcher:    d,
		artifacts:     a,
		docsProjectID: docsProjectID,
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
	}
}

// Run implements spec.md §4.10 steps 1-6 for the Training identified by
// trainingID.
func (o *Orchestrator) Run(ctx context.Context, trainingID string) error {
	training := &models.Training{}
	if err := o.store.Get(ctx, models.CollectionTrainings, trainingID, training); err != nil {
		return fmt.Errorf("doc: load training %s: %w", trainingID, err)
	}

	// Step 1.
	started := o.now()
	training.ProjectMD.Status = models.ProjectMDStatusInProgress
	training.ProjectMD.StartedAt = &started

	// Step 2.
	agent, err := o.resolveDocAgent(ctx, training.ProjectID)
	if err != nil {
		return o.fail(ctx, training, fmt.Sprintf("resolve documentation agent: %v", err))
	}
	training.ProjectMD.DocumentationAgentID = agent.ID
	training.ProjectMD.DocumentationProjectID = o.docsProjectID
	if err := o.save(ctx, training); err != nil {
		return err
	}

	// Step 3.
	pair, err := o.dispatcher.CreateTask(ctx, dispatcher.CreateTaskInput{
		ProjectID: o.docsProjectID,
		AgentID:   agent.ID,
		Content:   docPrompt,
		Metadata: map[string]any{
			"training_id":         trainingID,
			"override_project_id": training.ProjectID,
		},
	})
	if err != nil {
		return o.fail(ctx, training, err.Error())
	}

	// Step 4: poll until the assistant Task completes.
	var body string
	poller := orchestrator.Poller{Interval: pollInterval, MaxIterations: maxIterations}
	pollErr := poller.Run(ctx, func(ctx context.Context) (bool, error) {
		task := &models.Task{}
		if err := o.store.Get(ctx, models.CollectionTasks, pair.AssistantTaskID, task); err != nil {
			return false, err
		}
		switch task.Status {
		case models.TaskStatusCompleted:
			body = task.Content
			return true, nil
		case models.TaskStatusFailed:
			return false, fmt.Errorf("documentation task failed: %s", task.Content)
		default:
			return false, nil
		}
	})
	if pollErr != nil {
		if apperr.Is(pollErr, apperr.Timeout) {
			return o.fail(ctx, training, "Documentation generation timed out")
		}
		return o.fail(ctx, training, pollErr.Error())
	}

	// Step 5: upload.
	key := fmt.Sprintf("artifacts/%s/trainings/%s/projectmd.md", training.ProjectID, trainingID)
	url, err := o.artifacts.Put(ctx, key, strings.NewReader(body), "text/markdown")
	if err != nil {
		return o.fail(ctx, training, fmt.Sprintf("upload failed: %v", err))
	}

	completed := o.now()
	training.ProjectMD.Status = models.ProjectMDStatusCompleted
	training.ProjectMD.S3URL = url
	training.ProjectMD.CompletedAt = &completed
	return o.save(ctx, training)
}

// resolveDocAgent implements spec.md §4.10 step 2: look up an existing
// documentation agent for projectID under the docs project, or create one.
func (o *Orchestrator) resolveDocAgent(ctx context.Context, projectID string) (*models.Agent, error) {
	name := "docs-" + projectID
	results, err := o.store.Find(ctx, models.CollectionAgents, store.Filter{
		"project_id": o.docsProjectID,
		"name":       name,
	}, func() store.Document { return &models.Agent{} })
	if err != nil {
		return nil, fmt.Errorf("find documentation agent: %w", err)
	}
	if len(results) > 0 {
		return results[0].(*models.Agent), nil
	}

	now := o.now()
	agent := &models.Agent{
		Base:         models.Base{ID: o.newID(), CreatedAt: now, UpdatedAt: now},
		ProjectID:    o.docsProjectID,
		Name:         name,
		Instructions: docAgentInstructions,
		State:        models.AgentStateEnabled,
	}
	if err := o.store.Insert(ctx, models.CollectionAgents, agent); err != nil {
		return nil, fmt.Errorf("insert documentation agent: %w", err)
	}
	return agent, nil
}

func (o *Orchestrator) fail(ctx context.Context, training *models.Training, reason string) error {
	training.ProjectMD.Status = models.ProjectMDStatusFailed
	training.ProjectMD.ErrorMessage = reason
	return o.save(ctx, training)
}

func (o *Orchestrator) save(ctx context.Context, training *models.Training) error {
	return o.store.Update(ctx, models.CollectionTrainings, training.ID, store.Patch{
		"projectmd":  training.ProjectMD,
		"updated_at": o.now(),
	})
}
