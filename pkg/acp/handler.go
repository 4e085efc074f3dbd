// Package acp implements the ACP-compatible task submission surface of
// spec.md §6: POST /api/v1/runs creates a task pair through the
// Dispatcher, GET /api/v1/runs/{run_id} reports the assistant task's
// current status and output.
package acp

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/taskforge/platform/pkg/apperr"
	"github.com/taskforge/platform/pkg/dispatcher"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/store"
)

// Handler wires the Dispatcher and Store behind the ACP HTTP surface.
type Handler struct {
	dispatcher *dispatcher.Dispatcher
	store      store.Store
}

// NewHandler builds a Handler over its dependencies.
func NewHandler(d *dispatcher.Dispatcher, s store.Store) *Handler {
	return &Handler{dispatcher: d, store: s}
}

type runPart struct {
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

type runInput struct {
	Parts []runPart `json:"parts"`
}

type createRunRequest struct {
	AgentName string     `json:"agent_name"`
	Input     []runInput `json:"input"`
	Mode      string     `json:"mode,omitempty"`
}

type createRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type getRunResponse struct {
	RunID  string    `json:"run_id"`
	Status string    `json:"status"`
	Output []runInput `json:"output"`
}

// acpStatus maps a Task's internal lifecycle status onto the ACP status
// vocabulary spec.md §6 names.
func acpStatus(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusQueued:
		return "created"
	case models.TaskStatusProcessing:
		return "in-progress"
	case models.TaskStatusCompleted:
		return "completed"
	case models.TaskStatusFailed:
		return "failed"
	default:
		return string(s)
	}
}

func firstTextPart(input []runInput) string {
	for _, in := range input {
		for _, p := range in.Parts {
			if p.ContentType == "" || p.ContentType == "text/plain" {
				return p.Content
			}
		}
	}
	return ""
}

// HandleCreateRun implements POST /api/v1/runs.
func (h *Handler) HandleCreateRun(c *echo.Context) error {
	var req createRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AgentName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent_name is required")
	}
	content := firstTextPart(req.Input)
	if content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "input must contain a text/plain part")
	}

	agent := &models.Agent{}
	if err := h.store.Get(c.Request().Context(), models.CollectionAgents, req.AgentName, agent); err != nil {
		return mapACPError(err)
	}

	pair, err := h.dispatcher.CreateTask(c.Request().Context(), dispatcher.CreateTaskInput{
		ProjectID: agent.ProjectID,
		AgentID:   agent.ID,
		Content:   content,
	})
	if err != nil {
		return mapACPError(err)
	}

	return c.JSON(http.StatusCreated, createRunResponse{
		RunID:  pair.AssistantTaskID,
		Status: acpStatus(models.TaskStatusQueued),
	})
}

// HandleGetRun implements GET /api/v1/runs/{run_id}.
func (h *Handler) HandleGetRun(c *echo.Context) error {
	runID := c.Param("run_id")
	if runID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "run_id is required")
	}

	task := &models.Task{}
	if err := h.store.Get(c.Request().Context(), models.CollectionTasks, runID, task); err != nil {
		return mapACPError(err)
	}

	resp := getRunResponse{
		RunID:  task.ID,
		Status: acpStatus(task.Status),
	}
	if task.Status == models.TaskStatusCompleted || task.Status == models.TaskStatusFailed {
		resp.Output = []runInput{{Parts: []runPart{{ContentType: "text/plain", Content: task.Content}}}}
	}
	return c.JSON(http.StatusOK, resp)
}

func mapACPError(err error) *echo.HTTPError {
	switch {
	case apperr.Is(err, apperr.NotFound):
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	case apperr.Is(err, apperr.Validation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperr.Is(err, apperr.Throttled):
		return echo.NewHTTPError(http.StatusTooManyRequests, "admission throttled")
	case apperr.Is(err, apperr.Conflict):
		return echo.NewHTTPError(http.StatusConflict, "resource already exists")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
