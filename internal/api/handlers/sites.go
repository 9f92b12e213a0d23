package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	"weaponwatch-server-go/internal/logging"
	"weaponwatch-server-go/internal/models"
	"weaponwatch-server-go/internal/services/feed"
	"weaponwatch-server-go/internal/store"
)

type SiteHandler struct {
	store *store.Store
	feed  *feed.Hub
}

func NewSiteHandler(st *store.Store, hub *feed.Hub) *SiteHandler {
	return &SiteHandler{store: st, feed: hub}
}

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dashboards are served from another origin.
		return true
	},
}

type SiteResponse struct {
	Site         models.Site          `json:"site"`
	Cameras      []models.Camera      `json:"cameras"`
	Stakeholders []models.Stakeholder `json:"stakeholders"`
}

// @Summary Site snapshot
// @Description Current incident record, cameras and stakeholder roster for a site
// @Tags sites
// @Accept json
// @Produce json
// @Param site_id path string true "Site ID"
// @Success 200 {object} SiteResponse
// @Failure 404 {object} ErrorResponse
// @Router /sites/{site_id} [get]
func (h *SiteHandler) GetSite(c *gin.Context) {
	siteID := c.Param("site_id")

	site, err := h.store.GetSite(c.Request.Context(), siteID)
	if err != nil {
		respondError(c, err)
		return
	}
	cameras, err := h.store.ListCameras(c.Request.Context(), siteID)
	if err != nil {
		respondError(c, err)
		return
	}
	roster, err := h.store.ListStakeholders(c.Request.Context(), siteID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SiteResponse{Site: *site, Cameras: cameras, Stakeholders: roster})
}

// @Summary Live site feed
// @Description WebSocket stream of site record changes
// @Tags sites
// @Param site_id path string true "Site ID"
// @Success 101 {string} string "Switching Protocols"
// @Failure 404 {object} ErrorResponse
// @Router /sites/{site_id}/ws [get]
func (h *SiteHandler) SiteFeed(c *gin.Context) {
	siteID := c.Param("site_id")

	if _, err := h.store.GetSite(c.Request.Context(), siteID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c).Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.feed.RegisterClient(conn, siteID)
	logging.Info(c).Str("site_id", siteID).Msg("Feed connection established")
}
