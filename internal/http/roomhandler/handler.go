package roomhandler

import (
	"errors"
	"net/http"

	"codesync/internal/services/rooms"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc rooms.IRoomService
}

func New(svc rooms.IRoomService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api/rooms")
	g.POST("/create-room", h.create)
	g.GET("/check-room/:roomID", h.check)
	g.POST("/join-room", h.join)
	g.POST("/close-room", h.close)
	g.GET("/room/:roomID", h.info)
	g.POST("/update-activity/:roomID", h.touch)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorResponse{Success: false, Message: msg})
}

// statusFor maps service errors onto HTTP codes; unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rooms.ErrInvalidRoomID),
		errors.Is(err, rooms.ErrInvalidCreator),
		errors.Is(err, rooms.ErrInvalidName),
		errors.Is(err, rooms.ErrInvalidUserName):
		return http.StatusBadRequest
	case errors.Is(err, rooms.ErrRoomExists):
		return http.StatusConflict
	case errors.Is(err, rooms.ErrRoomNotFound), errors.Is(err, rooms.ErrCloseDenied):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func failWith(c *gin.Context, err error, internalMsg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("rooms.http", zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, status, internalMsg)
		return
	}
	fail(c, status, err.Error())
}

// @Summary		Create a room record
// @Description	Registers a new room id with its creator.
// @Tags			Rooms
// @Param			body	body		CreateRoomBody	true	"Room payload"
// @Success		201		{object}	Response{data=RoomSummary}
// @Failure		400		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/api/rooms/create-room [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateRoomBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		fail(ginCtx, http.StatusBadRequest, "Room ID and creator name are required")
		return
	}

	dto, err := h.svc.CreateRoom(ginCtx.Request.Context(), body.RoomID, body.Creator, body.Name)
	if err != nil {
		failWith(ginCtx, err, "Failed to create room. Please try again.")
		return
	}
	ginCtx.JSON(http.StatusCreated, Response{
		Success: true,
		Message: "Room created successfully",
		Data: RoomSummary{
			RoomID:    dto.RoomID,
			Creator:   dto.Creator,
			Name:      dto.Name,
			CreatedAt: dto.CreatedAt,
		},
	})
}

// @Summary		Check a room
// @Description	Reports whether an active record exists for the id.
// @Tags			Rooms
// @Param			roomID	path		string	true	"Room ID"	default(AB12CD34)
// @Success		200		{object}	Response{data=RoomCheck}
// @Failure		404		{object}	Response{data=RoomCheck}
// @Router			/api/rooms/check-room/{roomID} [get]
func (h *Handler) check(ginCtx *gin.Context) {
	dto, err := h.svc.GetRoom(ginCtx.Request.Context(), ginCtx.Param("roomID"))
	if errors.Is(err, rooms.ErrRoomNotFound) {
		ginCtx.JSON(http.StatusNotFound, Response{
			Success: false,
			Message: "Room not found or inactive",
			Data:    RoomCheck{Exists: false},
		})
		return
	}
	if err != nil {
		failWith(ginCtx, err, "Error checking room status")
		return
	}
	ginCtx.JSON(http.StatusOK, Response{
		Success: true,
		Data: RoomCheck{
			RoomID:           dto.RoomID,
			Creator:          dto.Creator,
			Name:             dto.Name,
			ParticipantCount: len(dto.Participants),
			Exists:           true,
			IsActive:         dto.IsActive,
		},
	})
}

// @Summary		Join a room record
// @Description	Adds a participant to an active room. isCreator is informational only.
// @Tags			Rooms
// @Param			body	body		JoinRoomBody	true	"Join payload"
// @Success		200		{object}	Response{data=JoinResult}
// @Failure		400		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Router			/api/rooms/join-room [post]
func (h *Handler) join(ginCtx *gin.Context) {
	var body JoinRoomBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		fail(ginCtx, http.StatusBadRequest, "Room ID and username are required")
		return
	}

	dto, isCreator, err := h.svc.JoinRoom(ginCtx.Request.Context(), body.RoomID, body.UserName)
	if err != nil {
		failWith(ginCtx, err, "Failed to join room")
		return
	}
	ginCtx.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Successfully joined room",
		Data: JoinResult{
			RoomID:    dto.RoomID,
			Creator:   dto.Creator,
			Name:      dto.Name,
			IsCreator: isCreator,
		},
	})
}

// @Summary		Close a room record
// @Description	Marks the record inactive. Only the creator may close it.
// @Tags			Rooms
// @Param			body	body		CloseRoomBody	true	"Close payload"
// @Success		200		{object}	Response
// @Failure		404		{object}	ErrorResponse
// @Router			/api/rooms/close-room [post]
func (h *Handler) close(ginCtx *gin.Context) {
	var body CloseRoomBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		fail(ginCtx, http.StatusBadRequest, "Room ID and creator name are required")
		return
	}

	if err := h.svc.CloseRoom(ginCtx.Request.Context(), body.RoomID, body.Creator); err != nil {
		if statusFor(err) == http.StatusNotFound {
			fail(ginCtx, http.StatusNotFound, "Room not found or you're not the creator")
			return
		}
		failWith(ginCtx, err, "Failed to close room")
		return
	}
	ginCtx.JSON(http.StatusOK, Response{Success: true, Message: "Room closed successfully"})
}

// @Summary		Get room details
// @Description	Returns the full active record including participants.
// @Tags			Rooms
// @Param			roomID	path		string	true	"Room ID"	default(AB12CD34)
// @Success		200		{object}	Response{data=rooms.RoomDTO}
// @Failure		404		{object}	ErrorResponse
// @Router			/api/rooms/room/{roomID} [get]
func (h *Handler) info(ginCtx *gin.Context) {
	dto, err := h.svc.GetRoom(ginCtx.Request.Context(), ginCtx.Param("roomID"))
	if err != nil {
		failWith(ginCtx, err, "Error fetching room details")
		return
	}
	ginCtx.JSON(http.StatusOK, Response{Success: true, Data: dto})
}

// @Summary		Touch a room
// @Description	Refreshes the record's activity timestamp and expiry timer.
// @Tags			Rooms
// @Param			roomID	path		string	true	"Room ID"	default(AB12CD34)
// @Success		200		{object}	Response
// @Failure		404		{object}	ErrorResponse
// @Router			/api/rooms/update-activity/{roomID} [post]
func (h *Handler) touch(ginCtx *gin.Context) {
	if err := h.svc.TouchRoom(ginCtx.Request.Context(), ginCtx.Param("roomID")); err != nil {
		failWith(ginCtx, err, "Error updating activity")
		return
	}
	ginCtx.JSON(http.StatusOK, Response{Success: true})
}
