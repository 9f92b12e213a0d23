package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"weaponwatch-server-go/internal/logging"
	"weaponwatch-server-go/internal/services/verification"
)

type VerificationHandler struct {
	verification *verification.Service
}

func NewVerificationHandler(v *verification.Service) *VerificationHandler {
	return &VerificationHandler{verification: v}
}

type ActorRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

type EndEventRequest struct {
	ActorID     string `json:"actor_id" binding:"required"`
	Acknowledge bool   `json:"acknowledge"`
}

type TransferRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
	ToID    string `json:"to_stakeholder_id"`
	ToEmail string `json:"to_email"`
}

// @Summary Confirm a pending threat
// @Description The current verification authority confirms the pending detection, making the event active
// @Tags verification
// @Accept json
// @Produce json
// @Param site_id path string true "Site ID"
// @Param request body ActorRequest true "Acting stakeholder"
// @Success 200 {object} models.Site
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sites/{site_id}/confirm [post]
func (h *VerificationHandler) Confirm(c *gin.Context) {
	siteID := c.Param("site_id")

	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.Set("actor_id", req.ActorID)

	site, err := h.verification.Confirm(c.Request.Context(), siteID, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

// @Summary Dismiss a pending detection
// @Description The current verification authority declares the pending detection a false alarm
// @Tags verification
// @Accept json
// @Produce json
// @Param site_id path string true "Site ID"
// @Param request body ActorRequest true "Acting stakeholder"
// @Success 200 {object} models.Site
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sites/{site_id}/dismiss [post]
func (h *VerificationHandler) Dismiss(c *gin.Context) {
	siteID := c.Param("site_id")

	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.Set("actor_id", req.ActorID)

	site, err := h.verification.Dismiss(c.Request.Context(), siteID, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

// @Summary End an active event
// @Description Reset cameras, revert authority if it failed over, clear the record and broadcast the resolution. Requires an explicit acknowledge flag. Retryable on partial failure.
// @Tags verification
// @Accept json
// @Produce json
// @Param site_id path string true "Site ID"
// @Param request body EndEventRequest true "Acting stakeholder with acknowledgement"
// @Success 200 {object} verification.EndEventResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 502 {object} verification.EndEventResult
// @Router /sites/{site_id}/end-event [post]
func (h *VerificationHandler) EndEvent(c *gin.Context) {
	siteID := c.Param("site_id")

	var req EndEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.Set("actor_id", req.ActorID)

	result, err := h.verification.EndEvent(c.Request.Context(), siteID, req.ActorID, req.Acknowledge)
	if err != nil {
		if result != nil && !result.Complete() {
			logging.Error(c).Err(err).Str("site_id", siteID).Msg("End event partially failed")
			c.JSON(http.StatusBadGateway, result)
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Transfer verification authority
// @Description Administrative transfer of verification authority to another stakeholder, named by id or email
// @Tags verification
// @Accept json
// @Produce json
// @Param site_id path string true "Site ID"
// @Param request body TransferRequest true "Transfer request"
// @Success 200 {object} models.Stakeholder
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /sites/{site_id}/transfer [post]
func (h *VerificationHandler) Transfer(c *gin.Context) {
	siteID := c.Param("site_id")

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if req.ToID == "" && req.ToEmail == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "to_stakeholder_id or to_email is required"})
		return
	}
	c.Set("actor_id", req.ActorID)

	target, err := h.verification.Transfer(c.Request.Context(), siteID, req.ActorID,
		verification.TransferTarget{ID: req.ToID, Email: req.ToEmail})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, target)
}
