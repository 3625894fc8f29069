package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/relaypoint/relaypoint/pkg/model"
	"github.com/relaypoint/relaypoint/pkg/store"
	"github.com/relaypoint/relaypoint/pkg/store/postgres"
)

type SubscriptionHandler struct {
	subscriptions *postgres.SubscriptionRepository
	deliveries    store.DeliveryLogStore
	logger        *zap.Logger
}

func NewSubscriptionHandler(subscriptions *postgres.SubscriptionRepository, deliveries store.DeliveryLogStore, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, deliveries: deliveries, logger: logger}
}

type subscriptionRequest struct {
	Name         string `json:"name" binding:"required"`
	TriggerEvent string `json:"trigger_event" binding:"required"`
	EndpointURL  string `json:"endpoint_url" binding:"required"`
	HTTPMethod   string `json:"http_method"`
	IsActive     *bool  `json:"is_active"`
}

type subscriptionResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	TriggerEvent  string  `json:"trigger_event"`
	EndpointURL   string  `json:"endpoint_url"`
	HTTPMethod    string  `json:"http_method"`
	IsActive      bool    `json:"is_active"`
	TotalCalls    int64   `json:"total_calls"`
	SuccessCount  int64   `json:"success_count"`
	FailureCount  int64   `json:"failure_count"`
	LastTriggered *string `json:"last_triggered,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	if err := validateSubscriptionRequest(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	method := req.HTTPMethod
	if method == "" {
		method = http.MethodPost
	}

	subscription := &model.WebhookSubscription{
		ID:           uuid.New(),
		Name:         req.Name,
		TriggerEvent: req.TriggerEvent,
		EndpointURL:  req.EndpointURL,
		HTTPMethod:   method,
		IsActive:     isActive,
	}

	if err := h.subscriptions.Create(c.Request.Context(), subscription); err != nil {
		h.logger.Error("failed to create subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, toSubscriptionResponse(subscription))
}

func (h *SubscriptionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}

	subscription, err := h.subscriptions.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		h.logger.Error("failed to load subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return
	}

	c.JSON(http.StatusOK, toSubscriptionResponse(subscription))
}

func (h *SubscriptionHandler) List(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	subscriptions, total, err := h.subscriptions.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list subscriptions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list subscriptions"})
		return
	}

	responses := make([]subscriptionResponse, 0, len(subscriptions))
	for i := range subscriptions {
		responses = append(responses, toSubscriptionResponse(&subscriptions[i]))
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": responses, "total": total})
}

func (h *SubscriptionHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}

	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	if err := validateSubscriptionRequest(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.subscriptions.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		h.logger.Error("failed to load subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return
	}

	existing.Name = req.Name
	existing.TriggerEvent = req.TriggerEvent
	existing.EndpointURL = req.EndpointURL
	if req.HTTPMethod != "" {
		existing.HTTPMethod = req.HTTPMethod
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if err := h.subscriptions.Update(c.Request.Context(), existing); err != nil {
		h.logger.Error("failed to update subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update subscription"})
		return
	}

	c.JSON(http.StatusOK, toSubscriptionResponse(existing))
}

func (h *SubscriptionHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}

	if err := h.subscriptions.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("failed to delete subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete subscription"})
		return
	}

	c.Status(http.StatusNoContent)
}

func validateSubscriptionRequest(req *subscriptionRequest) error {
	parsed, err := url.Parse(req.EndpointURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("invalid endpoint_url")
	}
	switch req.HTTPMethod {
	case "", http.MethodPost, http.MethodGet, http.MethodPut, http.MethodPatch:
		return nil
	}
	return errors.New("unsupported http_method")
}

func toSubscriptionResponse(subscription *model.WebhookSubscription) subscriptionResponse {
	return subscriptionResponse{
		ID:            subscription.ID.String(),
		Name:          subscription.Name,
		TriggerEvent:  subscription.TriggerEvent,
		EndpointURL:   subscription.EndpointURL,
		HTTPMethod:    subscription.HTTPMethod,
		IsActive:      subscription.IsActive,
		TotalCalls:    subscription.TotalCalls,
		SuccessCount:  subscription.SuccessCount,
		FailureCount:  subscription.FailureCount,
		LastTriggered: formatTime(subscription.LastTriggered),
		CreatedAt:     subscription.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type deliveryResponse struct {
	TriggerEvent string `json:"trigger_event"`
	EndpointURL  string `json:"endpoint_url"`
	StatusCode   int32  `json:"status_code"`
	Success      bool   `json:"success"`
	DurationMs   int64  `json:"duration_ms"`
	AttemptedAt  string `json:"attempted_at"`
}

// ListDeliveries returns the recent delivery attempts recorded for one
// subscription, newest first.
func (h *SubscriptionHandler) ListDeliveries(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}

	limit := parseLimit(c.Query("limit"), 50)

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp"})
			return
		}
		since = &parsed
	}

	records, err := h.deliveries.List(c.Request.Context(), id.String(), since, limit)
	if err != nil {
		h.logger.Error("failed to list deliveries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list deliveries"})
		return
	}

	responses := make([]deliveryResponse, 0, len(records))
	for i := range records {
		responses = append(responses, deliveryResponse{
			TriggerEvent: records[i].TriggerEvent,
			EndpointURL:  records[i].EndpointURL,
			StatusCode:   records[i].StatusCode,
			Success:      records[i].Success,
			DurationMs:   records[i].DurationMs,
			AttemptedAt:  records[i].AttemptedAt.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"deliveries": responses})
}
