package systemhandler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthResponse struct {
	Status    string    `json:"status"    example:"OK"`
	Timestamp time.Time `json:"timestamp" example:"2025-07-27T16:05:05Z"`
	Database  string    `json:"database"  example:"Connected"`
} // @name HealthResponse

type ICEServersResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
} // @name ICEServersResponse

type Handler struct {
	db   Pinger
	ice  []webrtc.ICEServer
	now  func() time.Time
	wait time.Duration
}

func New(db Pinger, ice []webrtc.ICEServer) *Handler {
	return &Handler{db: db, ice: ice, now: time.Now, wait: 2 * time.Second}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.health)
	r.GET("/api/ice-servers", h.iceServers)
}

// @Summary		Health check
// @Tags			System
// @Success		200	{object}	HealthResponse
// @Router			/health [get]
func (h *Handler) health(ginCtx *gin.Context) {
	state := "Connected"
	ctx, cancel := context.WithTimeout(ginCtx.Request.Context(), h.wait)
	defer cancel()
	if h.db == nil || h.db.PingContext(ctx) != nil {
		state = "Disconnected"
	}
	ginCtx.JSON(http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC(),
		Database:  state,
	})
}

// @Summary		ICE servers
// @Description	STUN/TURN servers clients should hand to their peer connections.
// @Tags			System
// @Success		200	{object}	ICEServersResponse
// @Router			/api/ice-servers [get]
func (h *Handler) iceServers(ginCtx *gin.Context) {
	servers := h.ice
	if servers == nil {
		servers = []webrtc.ICEServer{}
	}
	ginCtx.JSON(http.StatusOK, ICEServersResponse{ICEServers: servers})
}
