package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/relaypoint/relaypoint/pkg/model"
	"github.com/relaypoint/relaypoint/pkg/pipeline"
	"github.com/relaypoint/relaypoint/pkg/reminder"
	"github.com/relaypoint/relaypoint/pkg/store/postgres"
)

type ReminderHandler struct {
	committer *pipeline.Committer
	reminders *postgres.ReminderRepository
	logger    *zap.Logger
}

func NewReminderHandler(committer *pipeline.Committer, reminders *postgres.ReminderRepository, logger *zap.Logger) *ReminderHandler {
	return &ReminderHandler{committer: committer, reminders: reminders, logger: logger}
}

type reminderRequest struct {
	ReferenceType   string  `json:"reference_type" binding:"required"`
	CustomDatetime  *string `json:"custom_datetime"`
	OffsetDirection string  `json:"offset_direction" binding:"required"`
	OffsetAmount    int     `json:"offset_amount"`
	OffsetUnit      string  `json:"offset_unit" binding:"required"`
}

type reminderResponse struct {
	ID                 string  `json:"id"`
	ParentEntityID     string  `json:"parent_entity_id"`
	ReferenceType      string  `json:"reference_type"`
	CustomDatetime     *string `json:"custom_datetime,omitempty"`
	OffsetDirection    string  `json:"offset_direction"`
	OffsetAmount       int     `json:"offset_amount"`
	OffsetUnit         string  `json:"offset_unit"`
	CalculatedFireTime *string `json:"calculated_fire_time,omitempty"`
	IsSent             bool    `json:"is_sent"`
	SentAt             *string `json:"sent_at,omitempty"`
	Display            string  `json:"display"`
}

func (h *ReminderHandler) Create(c *gin.Context) {
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	var req reminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	rule, err := reminderFromRequest(&req, parentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.committer.CreateReminder(c.Request.Context(), rule); err != nil {
		switch {
		case errors.Is(err, pipeline.ErrParentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		case isValidationError(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("failed to create reminder", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create reminder"})
		}
		return
	}

	c.JSON(http.StatusCreated, toReminderResponse(rule))
}

func (h *ReminderHandler) ListByTask(c *gin.Context) {
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	rules, err := h.reminders.ListByParent(c.Request.Context(), parentID)
	if err != nil {
		h.logger.Error("failed to list reminders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reminders"})
		return
	}

	responses := make([]reminderResponse, 0, len(rules))
	for i := range rules {
		responses = append(responses, toReminderResponse(&rules[i]))
	}

	c.JSON(http.StatusOK, gin.H{"reminders": responses})
}

func (h *ReminderHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reminder id"})
		return
	}

	var req reminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	existing, err := h.reminders.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "reminder not found"})
			return
		}
		h.logger.Error("failed to load reminder", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reminder"})
		return
	}

	rule, err := reminderFromRequest(&req, existing.ParentEntityID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = existing.ID

	if err := h.committer.UpdateReminder(c.Request.Context(), rule); err != nil {
		switch {
		case errors.Is(err, pipeline.ErrReminderAlreadySent):
			c.JSON(http.StatusConflict, gin.H{"error": "reminder has already been sent"})
		case errors.Is(err, pipeline.ErrParentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		case isValidationError(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("failed to update reminder", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update reminder"})
		}
		return
	}

	c.JSON(http.StatusOK, toReminderResponse(rule))
}

func (h *ReminderHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reminder id"})
		return
	}

	if err := h.reminders.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("failed to delete reminder", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete reminder"})
		return
	}

	c.Status(http.StatusNoContent)
}

func reminderFromRequest(req *reminderRequest, parentID uuid.UUID) (*model.ReminderRule, error) {
	customDatetime, err := parseTime(req.CustomDatetime)
	if err != nil {
		return nil, errors.New("invalid custom_datetime")
	}

	return &model.ReminderRule{
		ParentEntityID:  parentID,
		ReferenceType:   model.ReferenceType(req.ReferenceType),
		CustomDatetime:  customDatetime,
		OffsetDirection: model.OffsetDirection(req.OffsetDirection),
		OffsetAmount:    req.OffsetAmount,
		OffsetUnit:      model.OffsetUnit(req.OffsetUnit),
	}, nil
}

func isValidationError(err error) bool {
	return errors.Is(err, model.ErrCustomDatetimeRequired) ||
		errors.Is(err, model.ErrCustomDatetimeForbidden) ||
		errors.Is(err, model.ErrNegativeOffset) ||
		errors.Is(err, model.ErrUnknownReferenceType) ||
		errors.Is(err, model.ErrUnknownOffsetUnit) ||
		errors.Is(err, model.ErrUnknownOffsetDirection)
}

func toReminderResponse(rule *model.ReminderRule) reminderResponse {
	return reminderResponse{
		ID:                 rule.ID.String(),
		ParentEntityID:     rule.ParentEntityID.String(),
		ReferenceType:      string(rule.ReferenceType),
		CustomDatetime:     formatTime(rule.CustomDatetime),
		OffsetDirection:    string(rule.OffsetDirection),
		OffsetAmount:       rule.OffsetAmount,
		OffsetUnit:         string(rule.OffsetUnit),
		CalculatedFireTime: formatTime(rule.CalculatedFireTime),
		IsSent:             rule.IsSent,
		SentAt:             formatTime(rule.SentAt),
		Display:            reminder.Display(rule),
	}
}
