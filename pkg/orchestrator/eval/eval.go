// Package eval implements EvalOrchestrator: it drives an EvaluationRun
// through target-agent fan-out, grader fan-out, and score aggregation,
// per spec.md §4.9.
package eval

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/taskforge/platform/pkg/apperr"
	"github.com/taskforge/platform/pkg/dispatcher"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/orchestrator"
	"github.com/taskforge/platform/pkg/store"
)

// pollInterval and maxIterations are vars, not consts, so tests can shrink
// them rather than waiting out the production 1s/3600-iteration bound (the
// same testability deviation used for runner.CancellationPollInterval).
var (
	pollInterval  = 1 * time.Second
	maxIterations = 3600
)

const (
	graderPromptTemplate = `You are an expert evaluator. Assess the actual response against the expected output and criteria below.

**Task/Query:** %s
**Expected Output:** %s
**Actual Response:** %s
**Evaluation Guideline:** %s
**Overall Criteria:** %s

**Required Response Format:**
Score: [0.0-1.0]
Reasoning: [Your detailed explanation]`
)

var (
	scoreLabelRe = regexp.MustCompile(`(?i)Score:\s*([0-9]*\.?[0-9]+)`)
	scoreNumRe   = regexp.MustCompile(`[0-9]*\.?[0-9]+`)
)

// Orchestrator drives one EvaluationRun to completion.
type Orchestrator struct {
	store      store.Store
	dispatcher *dispatcher.Dispatcher
	now        func() time.Time
}

// New builds an Orchestrator over the given Store and Dispatcher.
func New(s store.Store, d *dispatcher.Dispatcher) *Orchestrator {
	return &Orchestrator{store: s, dispatcher: d, now: time.Now}
}

// Run implements spec.md §4.9 steps 1-6 for the EvaluationRun identified by
// runID. Per-test-case failures are isolated into that result's status and
// error_message; only Store/load failures abort the whole run.
func (o *Orchestrator) Run(ctx context.Context, runID string) error {
	run := &models.EvaluationRun{}
	if err := o.store.Get(ctx, models.CollectionEvaluationRuns, runID, run); err != nil {
		return fmt.Errorf("eval: load run %s: %w", runID, err)
	}
	evaluation := &models.Evaluation{}
	if err := o.store.Get(ctx, models.CollectionEvaluations, run.EvaluationID, evaluation); err != nil {
		return fmt.Errorf("eval: load evaluation %s: %w", run.EvaluationID, err)
	}

	// Step 1.
	run.Status = models.EvaluationRunStatusRunning
	run.ProjectID = evaluation.ProjectID
	run.TotalTestCases = len(evaluation.TestCases)
	run.TestCaseResults = make([]models.TestCaseResult, len(evaluation.TestCases))
	for i, tc := range evaluation.TestCases {
		run.TestCaseResults[i] = models.TestCaseResult{TestCaseID: tc.ID, Status: models.TestCaseStatusPending}
	}
	if err := o.save(ctx, run); err != nil {
		return err
	}

	// Step 2: target fan-out.
	for i, tc := range evaluation.TestCases {
		res := &run.TestCaseResults[i]
		pair, err := o.dispatcher.CreateTask(ctx, dispatcher.CreateTaskInput{
			ProjectID: evaluation.ProjectID,
			AgentID:   run.TargetAgentID,
			Content:   tc.Task,
		})
		if err != nil {
			o.markFailed(run, res, err.Error())
			continue
		}
		res.TargetTaskID = pair.AssistantTaskID
		res.Status = models.TestCaseStatusRunningTarget
	}
	if err := o.save(ctx, run); err != nil {
		return err
	}

	// Step 3: poll loop.
	poller := orchestrator.Poller{Interval: pollInterval, MaxIterations: maxIterations}
	pollErr := poller.Run(ctx, func(ctx context.Context) (bool, error) {
		changed, err := o.tick(ctx, run, evaluation)
		if err != nil {
			return false, err
		}
		if changed {
			if err := o.save(ctx, run); err != nil {
				return false, err
			}
		}
		return run.AllTerminal(), nil
	})
	if pollErr != nil {
		if apperr.Is(pollErr, apperr.Timeout) {
			// Step 5.
			run.Status = models.EvaluationRunStatusFailed
			run.Error = "Evaluation timed out"
			return o.save(ctx, run)
		}
		return pollErr
	}

	// Step 4: aggregate.
	o.aggregate(run)
	return o.save(ctx, run)
}

// tick advances every non-terminal result by one step, per spec.md §4.9
// step 3. It reports whether any result changed state this tick.
func (o *Orchestrator) tick(ctx context.Context, run *models.EvaluationRun, evaluation *models.Evaluation) (bool, error) {
	changed := false
	for i := range run.TestCaseResults {
		res := &run.TestCaseResults[i]
		switch res.Status {
		case models.TestCaseStatusRunningTarget:
			if o.advanceTarget(ctx, run, res, evaluation) {
				changed = true
			}
		case models.TestCaseStatusRunningGrader:
			if o.advanceGrader(ctx, run, res) {
				changed = true
			}
		}
	}
	return changed, nil
}

func (o *Orchestrator) advanceTarget(ctx context.Context, run *models.EvaluationRun, res *models.TestCaseResult, evaluation *models.Evaluation) bool {
	task := &models.Task{}
	if err := o.store.Get(ctx, models.CollectionTasks, res.TargetTaskID, task); err != nil {
		o.markFailed(run, res, err.Error())
		return true
	}
	switch task.Status {
	case models.TaskStatusFailed:
		o.markFailed(run, res, task.Content)
		return true
	case models.TaskStatusCompleted:
	default:
		return false
	}

	res.TargetResponse = task.Content
	tc := findTestCase(evaluation.TestCases, res.TestCaseID)
	prompt := fmt.Sprintf(graderPromptTemplate, tc.Task, tc.ExpectedOutput, task.Content, tc.EvaluationGuideline, evaluation.Criteria)

	pair, err := o.dispatcher.CreateTask(ctx, dispatcher.CreateTaskInput{
		ProjectID: run.GradingProjectID,
		AgentID:   run.GradingAgentID,
		Content:   prompt,
	})
	if err != nil {
		o.markFailed(run, res, err.Error())
		return true
	}
	res.GraderTaskID = pair.AssistantTaskID
	res.Status = models.TestCaseStatusRunningGrader
	return true
}

func (o *Orchestrator) advanceGrader(ctx context.Context, run *models.EvaluationRun, res *models.TestCaseResult) bool {
	task := &models.Task{}
	if err := o.store.Get(ctx, models.CollectionTasks, res.GraderTaskID, task); err != nil {
		o.markFailed(run, res, err.Error())
		return true
	}
	switch task.Status {
	case models.TaskStatusFailed:
		o.markFailed(run, res, task.Content)
		return true
	case models.TaskStatusCompleted:
	default:
		return false
	}

	res.GraderResponse = task.Content
	res.Score = parseScore(task.Content)
	completed := o.now()
	res.CompletedAt = &completed
	res.Status = models.TestCaseStatusCompleted
	run.CompletedTestCases++
	return true
}

func (o *Orchestrator) markFailed(run *models.EvaluationRun, res *models.TestCaseResult, reason string) {
	res.Status = models.TestCaseStatusFailed
	res.ErrorMessage = reason
	run.FailedTestCases++
}

// aggregate implements spec.md §4.9 step 4.
func (o *Orchestrator) aggregate(run *models.EvaluationRun) {
	var sum float64
	var n int
	for _, res := range run.TestCaseResults {
		if res.Score != nil {
			sum += *res.Score
			n++
		}
	}
	if n > 0 {
		mean := sum / float64(n)
		run.OverallScore = &mean
	}
	run.Status = models.EvaluationRunStatusCompleted
}

func (o *Orchestrator) save(ctx context.Context, run *models.EvaluationRun) error {
	return o.store.Update(ctx, models.CollectionEvaluationRuns, run.ID, store.Patch{
		"status":               string(run.Status),
		"project_id":           run.ProjectID,
		"total_test_cases":     run.TotalTestCases,
		"completed_test_cases": run.CompletedTestCases,
		"failed_test_cases":    run.FailedTestCases,
		"overall_score":        run.OverallScore,
		"test_case_results":    run.TestCaseResults,
		"error":                run.Error,
		"updated_at":           o.now(),
	})
}

func findTestCase(cases []models.TestCase, id string) models.TestCase {
	for _, tc := range cases {
		if tc.ID == id {
			return tc
		}
	}
	return models.TestCase{}
}

// parseScore extracts a 0-1 score from grader output, per spec.md §4.9
// step 3: a labelled "Score: <n>" first; otherwise the first bare number
// in the text, scaled down from a 0-10 or 0-100 range if it falls there.
// Returns nil if no number is found.
func parseScore(text string) *float64 {
	if m := scoreLabelRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return normalizeScore(v)
		}
	}

	m := scoreNumRe.FindString(text)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return normalizeScore(v)
}

// normalizeScore scales a raw captured number onto [0,1]: passed through
// as-is if already in range, otherwise divided down from a 0-10 or 0-100
// scale. Returns nil if it fits none of those ranges.
func normalizeScore(v float64) *float64 {
	switch {
	case v >= 0 && v <= 1:
		return &v
	case v > 1 && v <= 10:
		scaled := v / 10
		return &scaled
	case v > 10 && v <= 100:
		scaled := v / 100
		return &scaled
	default:
		return nil
	}
}
