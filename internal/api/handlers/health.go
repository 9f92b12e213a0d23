package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	ServerID  string
	Messaging interface{ IsConnected() bool }
}

func NewHealthHandler(serverID string, messaging interface{ IsConnected() bool }) *HealthHandler {
	return &HealthHandler{ServerID: serverID, Messaging: messaging}
}

type HealthResponse struct {
	Status    string `json:"status" example:"healthy"`
	ServerID  string `json:"server_id" example:"server-1"`
	Messaging bool   `json:"messaging"`
}

type ServerInfoResponse struct {
	ServerID     string   `json:"server_id" example:"server-1"`
	Status       string   `json:"status" example:"running"`
	Version      string   `json:"version" example:"1.0.0"`
	Capabilities []string `json:"capabilities"`
}

// @Summary Health check
// @Description Check if the server is healthy and responsive
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	connected := false
	if h.Messaging != nil {
		connected = h.Messaging.IsConnected()
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		ServerID:  h.ServerID,
		Messaging: connected,
	})
}

// @Summary Server information
// @Description Get basic server information and capabilities
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} ServerInfoResponse
// @Router / [get]
func (h *HealthHandler) ServerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, ServerInfoResponse{
		ServerID: h.ServerID,
		Status:   "running",
		Version:  "1.0.0",
		Capabilities: []string{
			"detection_ingest",
			"escalation_failover",
			"push_notifications",
			"live_feed",
		},
	})
}
