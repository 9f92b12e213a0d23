package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"weaponwatch-server-go/internal/logging"
	"weaponwatch-server-go/internal/models"
	"weaponwatch-server-go/internal/services/verification"
)

type DetectionHandler struct {
	verification *verification.Service
}

func NewDetectionHandler(v *verification.Service) *DetectionHandler {
	return &DetectionHandler{verification: v}
}

// @Summary Report a detection
// @Description Record a detection from an external producer against a site. A report during a live cycle is rejected.
// @Tags detections
// @Accept json
// @Produce json
// @Param site_id path string true "Site ID"
// @Param detection body models.DetectionReport true "Detection report"
// @Success 202 {object} models.Site
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sites/{site_id}/detections [post]
func (h *DetectionHandler) ReportDetection(c *gin.Context) {
	siteID := c.Param("site_id")

	var report models.DetectionReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	site, err := h.verification.RecordDetection(c.Request.Context(), siteID, report)
	if err != nil {
		respondError(c, err)
		return
	}

	logging.Info(c).
		Str("site_id", siteID).
		Str("camera_id", report.CameraID).
		Msg("Detection recorded")
	c.JSON(http.StatusAccepted, site)
}
