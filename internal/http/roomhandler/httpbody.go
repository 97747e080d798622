package roomhandler

import "time"

type CreateRoomBody struct {
	RoomID  string `json:"roomID"  binding:"required" example:"AB12CD34"`
	Creator string `json:"creator" binding:"required" example:"Alice"`
	Name    string `json:"name"                       example:"Pairing session"`
} // @name CreateRoomRequest

type JoinRoomBody struct {
	RoomID   string `json:"roomID"   binding:"required" example:"AB12CD34"`
	UserName string `json:"userName" binding:"required" example:"Bob"`
} // @name JoinRoomRequest

type CloseRoomBody struct {
	RoomID  string `json:"roomID"  binding:"required" example:"AB12CD34"`
	Creator string `json:"creator" binding:"required" example:"Alice"`
} // @name CloseRoomRequest

type RoomSummary struct {
	RoomID    string    `json:"roomID"    example:"AB12CD34"`
	Creator   string    `json:"creator"   example:"Alice"`
	Name      string    `json:"name"      example:"Alice's Room"`
	CreatedAt time.Time `json:"createdAt" example:"2025-07-27T16:05:05Z"`
} // @name RoomSummary

type RoomCheck struct {
	RoomID           string `json:"roomID,omitempty"`
	Creator          string `json:"creator,omitempty"`
	Name             string `json:"name,omitempty"`
	ParticipantCount int    `json:"participantCount"`
	Exists           bool   `json:"exists"`
	IsActive         bool   `json:"isActive"`
} // @name RoomCheck

type JoinResult struct {
	RoomID    string `json:"roomID"`
	Creator   string `json:"creator"`
	Name      string `json:"name"`
	IsCreator bool   `json:"isCreator"`
} // @name JoinRoomResult

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
} // @name Response

type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message"`
} // @name ErrorResponse
