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
	"github.com/relaypoint/relaypoint/pkg/store/postgres"
)

// ContactHandler also serves team members; both are reference directories the
// denormalization resolver reads from.
type ContactHandler struct {
	committer *pipeline.Committer
	entities  *postgres.EntityRepository
	logger    *zap.Logger
}

func NewContactHandler(committer *pipeline.Committer, entities *postgres.EntityRepository, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{committer: committer, entities: entities, logger: logger}
}

type contactRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type contactResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

func (h *ContactHandler) Create(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	contact := &model.Contact{
		ID:    uuid.New(),
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	}

	if err := h.committer.CreateContact(c.Request.Context(), contact); err != nil {
		h.logger.Error("failed to create contact", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create contact"})
		return
	}

	c.JSON(http.StatusCreated, toContactResponse(contact))
}

func (h *ContactHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
		return
	}

	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	contact := &model.Contact{
		ID:    id,
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	}

	if err := h.committer.UpdateContact(c.Request.Context(), contact); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
			return
		}
		h.logger.Error("failed to update contact", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update contact"})
		return
	}

	c.JSON(http.StatusOK, toContactResponse(contact))
}

func (h *ContactHandler) List(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	contacts, total, err := h.entities.ListContacts(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list contacts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list contacts"})
		return
	}

	responses := make([]contactResponse, 0, len(contacts))
	for i := range contacts {
		responses = append(responses, toContactResponse(&contacts[i]))
	}

	c.JSON(http.StatusOK, gin.H{"contacts": responses, "total": total})
}

func (h *ContactHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
		return
	}

	if err := h.committer.DeleteContact(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
			return
		}
		h.logger.Error("failed to delete contact", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete contact"})
		return
	}

	c.Status(http.StatusNoContent)
}

type memberRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type memberResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (h *ContactHandler) CreateMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	member := &model.TeamMember{
		ID:    uuid.New(),
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}

	if err := h.entities.CreateTeamMember(c.Request.Context(), member); err != nil {
		h.logger.Error("failed to create team member", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create team member"})
		return
	}

	c.JSON(http.StatusCreated, memberResponse{
		ID:    member.ID.String(),
		Name:  member.Name,
		Email: member.Email,
		Phone: member.Phone,
	})
}

func (h *ContactHandler) ListMembers(c *gin.Context) {
	members, err := h.entities.ListTeamMembers(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list team members", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list team members"})
		return
	}

	responses := make([]memberResponse, 0, len(members))
	for i := range members {
		responses = append(responses, memberResponse{
			ID:    members[i].ID.String(),
			Name:  members[i].Name,
			Email: members[i].Email,
			Phone: members[i].Phone,
		})
	}

	c.JSON(http.StatusOK, gin.H{"members": responses})
}

func toContactResponse(contact *model.Contact) contactResponse {
	return contactResponse{
		ID:    contact.ID.String(),
		Name:  contact.Name,
		Phone: contact.Phone,
		Email: contact.Email,
	}
}
