package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/relaypoint/relaypoint/pkg/model"
	"github.com/relaypoint/relaypoint/pkg/store/postgres"
	"github.com/relaypoint/relaypoint/pkg/workflow"
)

type WorkflowHandler struct {
	workflows *postgres.WorkflowRepository
	logger    *zap.Logger
}

func NewWorkflowHandler(workflows *postgres.WorkflowRepository, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows, logger: logger}
}

type workflowRequest struct {
	Name        string                   `json:"name" binding:"required"`
	Description string                   `json:"description"`
	Status      string                   `json:"status"`
	Nodes       []map[string]interface{} `json:"nodes" binding:"required"`
	CreatedBy   string                   `json:"created_by"`
}

type workflowResponse struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Status      string                   `json:"status"`
	Nodes       []map[string]interface{} `json:"nodes"`
	CreatedAt   string                   `json:"created_at"`
}

type executionResponse struct {
	ID             string      `json:"id"`
	WorkflowID     string      `json:"workflow_id"`
	TriggerType    string      `json:"trigger_type"`
	Status         string      `json:"status"`
	StepsCompleted int         `json:"steps_completed"`
	TotalSteps     int         `json:"total_steps"`
	StartedAt      *string     `json:"started_at,omitempty"`
	CompletedAt    *string     `json:"completed_at,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	Snapshot       model.JSONB `json:"trigger_snapshot"`
}

func (h *WorkflowHandler) Create(c *gin.Context) {
	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	status := model.WorkflowStatus(req.Status)
	if req.Status == "" {
		status = model.WorkflowDraft
	}

	if err := validateNodes(req.Nodes, status); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nodes", "details": err.Error()})
		return
	}

	definition := &model.WorkflowDefinition{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		Nodes:       model.JSONBList(req.Nodes),
		CreatedBy:   req.CreatedBy,
	}

	if err := h.workflows.CreateDefinition(c.Request.Context(), definition); err != nil {
		h.logger.Error("failed to create workflow definition", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create workflow"})
		return
	}

	c.JSON(http.StatusCreated, toWorkflowResponse(definition))
}

func (h *WorkflowHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	definition, err := h.workflows.GetDefinition(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
			return
		}
		h.logger.Error("failed to load workflow", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load workflow"})
		return
	}

	c.JSON(http.StatusOK, toWorkflowResponse(definition))
}

func (h *WorkflowHandler) List(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	definitions, total, err := h.workflows.ListDefinitions(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list workflows", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list workflows"})
		return
	}

	responses := make([]workflowResponse, 0, len(definitions))
	for i := range definitions {
		responses = append(responses, toWorkflowResponse(&definitions[i]))
	}

	c.JSON(http.StatusOK, gin.H{"workflows": responses, "total": total})
}

func (h *WorkflowHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	status := model.WorkflowStatus(req.Status)
	if req.Status == "" {
		status = model.WorkflowDraft
	}

	if err := validateNodes(req.Nodes, status); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nodes", "details": err.Error()})
		return
	}

	definition := &model.WorkflowDefinition{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		Nodes:       model.JSONBList(req.Nodes),
	}

	if err := h.workflows.UpdateDefinition(c.Request.Context(), definition); err != nil {
		h.logger.Error("failed to update workflow", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update workflow"})
		return
	}

	c.JSON(http.StatusOK, toWorkflowResponse(definition))
}

func (h *WorkflowHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	if err := h.workflows.DeleteDefinition(c.Request.Context(), id); err != nil {
		h.logger.Error("failed to delete workflow", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete workflow"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *WorkflowHandler) ListExecutions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	executions, total, err := h.workflows.ListExecutions(c.Request.Context(), id, limit, offset)
	if err != nil {
		h.logger.Error("failed to list executions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list executions"})
		return
	}

	responses := make([]executionResponse, 0, len(executions))
	for i := range executions {
		execution := executions[i]
		responses = append(responses, executionResponse{
			ID:             execution.ID.String(),
			WorkflowID:     execution.WorkflowID.String(),
			TriggerType:    execution.TriggerType,
			Status:         string(execution.Status),
			StepsCompleted: execution.StepsCompleted,
			TotalSteps:     execution.TotalSteps,
			StartedAt:      formatTime(execution.StartedAt),
			CompletedAt:    formatTime(execution.CompletedAt),
			ErrorMessage:   execution.ErrorMessage,
			Snapshot:       execution.TriggerSnapshot,
		})
	}

	c.JSON(http.StatusOK, gin.H{"executions": responses, "total": total})
}

// validateNodes rejects definitions this engine could never match. Drafts may
// be saved half-built; an active definition must parse and start with a
// trigger node.
func validateNodes(raw []map[string]interface{}, status model.WorkflowStatus) error {
	if status != model.WorkflowActive {
		return nil
	}
	nodes, err := workflow.ParseNodes(raw)
	if err != nil {
		return err
	}
	if _, ok := workflow.TriggerEventName(nodes); !ok {
		return errors.New("node 0 must be a trigger node")
	}
	return nil
}

func toWorkflowResponse(definition *model.WorkflowDefinition) workflowResponse {
	return workflowResponse{
		ID:          definition.ID.String(),
		Name:        definition.Name,
		Description: definition.Description,
		Status:      string(definition.Status),
		Nodes:       definition.Nodes,
		CreatedAt:   definition.CreatedAt.UTC().Format(time.RFC3339),
	}
}
