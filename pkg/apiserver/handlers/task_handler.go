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
	"github.com/relaypoint/relaypoint/pkg/pipeline"
	"github.com/relaypoint/relaypoint/pkg/store/postgres"
)

type TaskHandler struct {
	committer *pipeline.Committer
	entities  *postgres.EntityRepository
	logger    *zap.Logger
}

func NewTaskHandler(committer *pipeline.Committer, entities *postgres.EntityRepository, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{committer: committer, entities: entities, logger: logger}
}

type taskRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    int      `json:"priority"`
	Tags        []string `json:"tags"`
	StartDate   *string  `json:"start_date"`
	DueDate     *string  `json:"due_date"`
	AssigneeID  *string  `json:"assignee_id"`
	ContactID   *string  `json:"contact_id"`
	CreatedBy   string   `json:"created_by"`
}

type taskResponse struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Status       string   `json:"status"`
	Priority     int      `json:"priority"`
	Tags         []string `json:"tags,omitempty"`
	StartDate    *string  `json:"start_date,omitempty"`
	DueDate      *string  `json:"due_date,omitempty"`
	AssigneeID   *string  `json:"assignee_id,omitempty"`
	ContactID    *string  `json:"contact_id,omitempty"`
	AssigneeName *string  `json:"assignee_name,omitempty"`
	ContactName  *string  `json:"contact_name,omitempty"`
	ContactPhone *string  `json:"contact_phone,omitempty"`
	CreatedBy    string   `json:"created_by,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	task, err := taskFromRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.committer.CreateTask(c.Request.Context(), task); err != nil {
		h.logger.Error("failed to create task", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		return
	}

	c.JSON(http.StatusCreated, toTaskResponse(task))
}

func (h *TaskHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	task, err := taskFromRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task.ID = id

	if err := h.committer.UpdateTask(c.Request.Context(), task); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("failed to update task", zap.String("task_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	task, err := h.entities.GetTask(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to load task", zap.String("task_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load task"})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) List(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	tasks, total, err := h.entities.ListTasks(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list tasks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
		return
	}

	responses := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		responses = append(responses, toTaskResponse(&tasks[i]))
	}

	c.JSON(http.StatusOK, gin.H{"tasks": responses, "total": total})
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	if err := h.committer.DeleteTask(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("failed to delete task", zap.String("task_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete task"})
		return
	}

	c.Status(http.StatusNoContent)
}

func taskFromRequest(req *taskRequest) (*model.Task, error) {
	startDate, err := parseTime(req.StartDate)
	if err != nil {
		return nil, errors.New("invalid start_date")
	}
	dueDate, err := parseTime(req.DueDate)
	if err != nil {
		return nil, errors.New("invalid due_date")
	}
	assigneeID, err := parseUUIDPtr(req.AssigneeID)
	if err != nil {
		return nil, errors.New("invalid assignee_id")
	}
	contactID, err := parseUUIDPtr(req.ContactID)
	if err != nil {
		return nil, errors.New("invalid contact_id")
	}

	status := model.TaskStatus(req.Status)
	if req.Status == "" {
		status = model.TaskOpen
	}

	return &model.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Priority:    req.Priority,
		Tags:        req.Tags,
		StartDate:   startDate,
		DueDate:     dueDate,
		AssigneeID:  assigneeID,
		ContactID:   contactID,
		CreatedBy:   req.CreatedBy,
	}, nil
}

func toTaskResponse(task *model.Task) taskResponse {
	var assigneeID, contactID *string
	if task.AssigneeID != nil {
		value := task.AssigneeID.String()
		assigneeID = &value
	}
	if task.ContactID != nil {
		value := task.ContactID.String()
		contactID = &value
	}

	return taskResponse{
		ID:           task.ID.String(),
		Title:        task.Title,
		Description:  task.Description,
		Status:       string(task.Status),
		Priority:     task.Priority,
		Tags:         task.Tags,
		StartDate:    formatTime(task.StartDate),
		DueDate:      formatTime(task.DueDate),
		AssigneeID:   assigneeID,
		ContactID:    contactID,
		AssigneeName: task.AssigneeName,
		ContactName:  task.ContactName,
		ContactPhone: task.ContactPhone,
		CreatedBy:    task.CreatedBy,
		CreatedAt:    task.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    task.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
